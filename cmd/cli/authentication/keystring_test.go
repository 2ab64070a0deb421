package authentication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestUplinkKeyLifecycle(t *testing.T) {
	keyring.MockInit()

	_, err := GetUplinkKey()
	assert.ErrorIs(t, err, ErrNoStoredKey)

	require.NoError(t, StoreUplinkKey("server-abc123", "wss://example.test/uplink"))

	stored, err := GetUplinkKey()
	require.NoError(t, err)
	assert.Equal(t, "server-abc123", stored.Key)
	assert.Equal(t, "wss://example.test/uplink", stored.URL)
	assert.NotZero(t, stored.SavedAt)

	require.NoError(t, DeleteUplinkKey())
	_, err = GetUplinkKey()
	assert.ErrorIs(t, err, ErrNoStoredKey)

	// clearing twice is fine
	assert.NoError(t, DeleteUplinkKey())
}
