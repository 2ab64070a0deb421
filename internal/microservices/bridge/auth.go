package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"uplinkhub/internal/middleware/auth"
)

// KeyAuthenticator checks uplink keys against a bcrypt hash, the plain key is never kept
type KeyAuthenticator struct {
	hash string
}

// NewKeyAuthenticator hashes key with the given bcrypt cost (bcrypt.DefaultCost in production)
func NewKeyAuthenticator(key string, cost int) (*KeyAuthenticator, error) {
	if key == "" {
		return nil, errors.New("uplink key is empty")
	}
	hash, err := auth.HashKey(key, cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash uplink key: %w", err)
	}
	return &KeyAuthenticator{hash: hash}, nil
}

// NewKeyAuthenticatorFromHash uses an existing bcrypt hash
func NewKeyAuthenticatorFromHash(hash string) (*KeyAuthenticator, error) {
	if !auth.IsHash(hash) {
		return nil, errors.New("invalid bcrypt hash")
	}
	return &KeyAuthenticator{hash: hash}, nil
}

// KeyAuthenticatorFor accepts either a bcrypt hash of the key or the key itself
func KeyAuthenticatorFor(setting string, cost int) (*KeyAuthenticator, error) {
	if auth.IsHash(setting) {
		return NewKeyAuthenticatorFromHash(setting)
	}
	return NewKeyAuthenticator(setting, cost)
}

func (a *KeyAuthenticator) Verify(key string) bool {
	return auth.VerifyKey(a.hash, key) == nil
}

// TicketClaims identify the session a CALL belongs to
type TicketClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

const ticketIssuer = "uplink-bridge"

// TicketService issues and checks the HS256 session tickets handed out at AUTH_OK
type TicketService struct {
	secret []byte
	ttl    time.Duration
}

func NewTicketService(secret string, ttl time.Duration) *TicketService {
	return &TicketService{secret: []byte(secret), ttl: ttl}
}

// TTL is how long an issued ticket stays valid
func (t *TicketService) TTL() time.Duration {
	return t.ttl
}

func (t *TicketService) Issue(sessionID string) (string, error) {
	now := time.Now()
	claims := TicketClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ticketIssuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}
	return signed, nil
}

// Validate returns the session id a ticket was issued for
func (t *TicketService) Validate(ticket string) (string, error) {
	claims := &TicketClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(ticketIssuer))

	if err != nil || !token.Valid {
		return "", fmt.Errorf("failed to parse ticket: %w", err)
	}
	if claims.SessionID == "" {
		return "", errors.New("ticket has no session_id")
	}
	return claims.SessionID, nil
}
