package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"referral_system/internal/config" // Application configuration
	"referral_system/internal/utils"  // Admin token utilities

	"github.com/gin-gonic/gin" // Gin web framework
)

// AdminIdentityKey is the gin context key carrying the authorized admin identity
const AdminIdentityKey = "adminIdentity"

// AdminAuth verifies an admin session token and authorizes its identity
// against the configured admin username and email allow-list. The token is
// taken from the adminToken cookie, with the Authorization header as a
// fallback. A missing or invalid token is 401; a valid token whose identity
// is not allow-listed is 403.
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Cookie takes precedence over the Authorization header
		tokenStr, err := c.Cookie("adminToken")
		if err != nil || tokenStr == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		// No token at all
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Unauthorized"})
			return
		}
		// Verify signature and expiry
		claims, err := utils.ParseAdminToken(tokenStr, cfg.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Invalid or expired token"})
			return
		}
		// Valid token, but the identity must be allow-listed.
		// The lists are read from cfg per request, not frozen at startup.
		if !cfg.IsAdminIdentity(claims.Identity) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"ok": false, "error": "Admin access required"})
			return
		}
		c.Set(AdminIdentityKey, claims.Identity) // Store admin identity in context
		c.Next()                                 // Proceed to the next handler
	}
}
