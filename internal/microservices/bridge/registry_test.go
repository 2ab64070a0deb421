package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uplinkhub/pkg/protocol"
)

var fixedNow = func() time.Time {
	return time.Date(2026, 2, 17, 10, 30, 0, 0, time.UTC)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	fn := func(ctx context.Context, args []any, kwargs map[string]any) (any, error) { return "ok", nil }

	require.NoError(t, reg.Register("b_func", fn))
	require.NoError(t, reg.Register("a_func", fn))

	assert.Error(t, reg.Register("a_func", fn), "duplicate names are refused")
	assert.Error(t, reg.Register("", fn))
	assert.Error(t, reg.Register("nil_func", nil))

	_, ok := reg.Lookup("a_func")
	assert.True(t, ok)
	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a_func", "b_func"}, reg.Names())
}

func TestInvoke_RecoversPanic(t *testing.T) {
	_, err := invoke(context.Background(), func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		panic("kaboom")
	}, nil, nil)
	assert.ErrorContains(t, err, "kaboom")

	_, err = invoke(context.Background(), func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return nil, errors.New("plain failure")
	}, nil, nil)
	assert.EqualError(t, err, "plain failure")
}

func TestRegisterDiagnostics(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterDiagnostics(reg, fixedNow))

	assert.Equal(t, []string{
		protocol.ProcTestUplinkConnection,
		protocol.ProcTestUplinkConnectionV2,
		protocol.ProcSmokeTestModule,
	}, reg.Names())

	fn, ok := reg.Lookup(protocol.ProcTestUplinkConnectionV2)
	require.True(t, ok)
	resp, err := fn(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"status":        "success",
		"message":       "Uplink v2 is working!",
		"timestamp":     "2026-02-17T10:30:00Z",
		"server_module": "server_shared.utilities",
	}, resp)

	// registering twice collides
	assert.Error(t, RegisterDiagnostics(reg, fixedNow))
}
