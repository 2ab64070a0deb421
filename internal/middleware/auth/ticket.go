package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextSessionID is the gin context key RequireTicket stores the session id under
const ContextSessionID = "sessionID"

// TicketValidator returns the session id a ticket was issued for
type TicketValidator interface {
	Validate(ticket string) (string, error)
}

// RequireTicket is a Gin middleware that only lets through requests carrying
// a session ticket issued at AUTH_OK, as "Authorization: Bearer <ticket>"
func RequireTicket(validator TicketValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		// format: "Bearer <ticket>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		sessionID, err := validator.Validate(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid ticket"})
			c.Abort()
			return
		}

		c.Set(ContextSessionID, sessionID)
		c.Next()
	}
}
