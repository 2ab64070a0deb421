package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uplinkhub/cmd/cli/authentication"
	"uplinkhub/cmd/cli/command/state"
	"uplinkhub/internal/smoketest"
)

func TestResolveKey(t *testing.T) {
	stored := func(key string, err error) func() (*authentication.StoredKey, error) {
		return func() (*authentication.StoredKey, error) {
			if err != nil {
				return nil, err
			}
			return &authentication.StoredKey{Key: key}, nil
		}
	}

	tests := []struct {
		name    string
		env     string
		load    func() (*authentication.StoredKey, error)
		want    string
		wantErr bool
	}{
		{"env wins", "env-key", stored("keyring-key", nil), "env-key", false},
		{"keyring fallback", "  ", stored(" keyring-key\n", nil), "keyring-key", false},
		{"nothing stored", "", stored("", authentication.ErrNoStoredKey), "", false},
		{"keyring broken", "", stored("", errors.New("dbus unavailable")), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveKey(tt.env, tt.load)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "*****", maskKey("short"))
	assert.Equal(t, "serv*****c123", maskKey("server-abc123"))
}

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{"42", "true", `"quoted"`, "plain words", `{"a":1}`})
	assert.Equal(t, []any{42.0, true, "quoted", "plain words", map[string]any{"a": 1.0}}, got)
	assert.Empty(t, parseArgs(nil))
}

func TestRecordHold_ClearsStateHoweverHoldEnds(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	held := &state.HoldState{URL: "ws://localhost:8090/_/uplink", Name: "laptop", ConnectedAt: time.Now().UTC(), PID: 4242}

	tests := []struct {
		name    string
		hold    func(ctx context.Context) error
		wantErr bool
	}{
		{"enter pressed", func(ctx context.Context) error { return nil }, false},
		{"connect failed", func(ctx context.Context) error { return errors.New("credential rejected") }, true},
		{"interrupted", func(ctx context.Context) error {
			// Ctrl+C: the context ends while stdin is still blocked elsewhere
			<-ctx.Done()
			return nil
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			err := recordHold(quiet, held, func() error {
				during, err := state.LoadHoldState()
				require.NoError(t, err)
				require.NotNil(t, during, "state is visible while holding")
				assert.Equal(t, "laptop", during.Name)
				return tt.hold(ctx)
			})

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			after, err := state.LoadHoldState()
			require.NoError(t, err)
			assert.Nil(t, after)
		})
	}
}

func TestProcedureOverrideOnlyOnTestCommand(t *testing.T) {
	flag := testCmd.Flags().Lookup("procedure")
	require.NotNil(t, flag)
	assert.Equal(t, smoketest.TestProfile.Procedure, flag.DefValue)
	assert.Equal(t, "p", flag.Shorthand)

	assert.Nil(t, confirmCmd.Flags().Lookup("procedure"))
}
