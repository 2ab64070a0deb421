package bridge

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-ticket-secret-0123456789abcdef"

func TestKeyAuthenticator(t *testing.T) {
	auth, err := NewKeyAuthenticator("valid-key", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, auth.Verify("valid-key"))
	assert.False(t, auth.Verify("valid-key "))
	assert.False(t, auth.Verify(""))
}

func TestKeyAuthenticator_EmptyKey(t *testing.T) {
	_, err := NewKeyAuthenticator("", bcrypt.MinCost)
	assert.Error(t, err)
}

func TestKeyAuthenticatorFromHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("server-side-key"), bcrypt.MinCost)
	require.NoError(t, err)

	auth, err := NewKeyAuthenticatorFromHash(string(hash))
	require.NoError(t, err)
	assert.True(t, auth.Verify("server-side-key"))

	_, err = NewKeyAuthenticatorFromHash("not-a-hash")
	assert.Error(t, err)
}

func TestKeyAuthenticatorFor(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("server-side-key"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("bcrypt hash", func(t *testing.T) {
		auth, err := KeyAuthenticatorFor(string(hash), bcrypt.MinCost)
		require.NoError(t, err)
		assert.True(t, auth.Verify("server-side-key"))
		assert.False(t, auth.Verify(string(hash)))
	})

	t.Run("plain key", func(t *testing.T) {
		auth, err := KeyAuthenticatorFor("server-side-key", bcrypt.MinCost)
		require.NoError(t, err)
		assert.True(t, auth.Verify("server-side-key"))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := KeyAuthenticatorFor("", bcrypt.MinCost)
		assert.Error(t, err)
	})
}

func TestTicketService_RoundTrip(t *testing.T) {
	tickets := NewTicketService(testSecret, time.Hour)

	ticket, err := tickets.Issue("session-42")
	require.NoError(t, err)

	sessionID, err := tickets.Validate(ticket)
	require.NoError(t, err)
	assert.Equal(t, "session-42", sessionID)
}

func TestTicketService_Rejects(t *testing.T) {
	tickets := NewTicketService(testSecret, time.Hour)

	t.Run("garbage", func(t *testing.T) {
		_, err := tickets.Validate("forged")
		assert.Error(t, err)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewTicketService("another-secret-0123456789abcdef000", time.Hour)
		ticket, err := other.Issue("session-1")
		require.NoError(t, err)
		_, err = tickets.Validate(ticket)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewTicketService(testSecret, -time.Minute)
		ticket, err := expired.Issue("session-1")
		require.NoError(t, err)
		_, err = tickets.Validate(ticket)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, TicketClaims{
			SessionID:        "session-1",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: ticketIssuer},
		})
		unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tickets.Validate(unsigned)
		assert.Error(t, err)
	})
}
