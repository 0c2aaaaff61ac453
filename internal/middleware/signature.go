package middleware

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // Address normalization

	"referral_system/internal/config" // Application configuration
	"referral_system/internal/utils"  // Signature verification

	"github.com/gin-gonic/gin" // Gin web framework
)

// WalletAddressKey is the gin context key carrying the authenticated wallet address
const WalletAddressKey = "walletAddress"

// WalletAuth verifies that the caller controls the wallet address it claims.
// The challenge nonce comes from the x-nonce header, falling back to the
// fixed default. The enable flag is read from cfg on every request, so
// flipping it does not require re-registering the middleware.
func WalletAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.GetHeader("x-wallet") // Claimed wallet address

		// Flag read per request, not captured at registration
		if !cfg.VerifySignatures {
			c.Set(WalletAddressKey, strings.ToLower(address))
			c.Next()
			return
		}

		signature := c.GetHeader("x-signature") // Signature over the nonce
		// Both credentials must be present
		if address == "" || signature == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Missing credentials"})
			return
		}
		nonce := c.GetHeader("x-nonce") // Optional caller-supplied challenge
		if nonce == "" {
			nonce = utils.DefaultNonce
		}
		// Recover the signer and compare to the claimed address
		if err := utils.VerifyWalletSignature(address, signature, nonce); err != nil {
			msg := "Signature verification error"
			if errors.Is(err, utils.ErrSignatureMismatch) {
				msg = "Invalid signature"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": msg})
			return
		}
		c.Set(WalletAddressKey, strings.ToLower(address)) // Store verified address in context
		c.Next()                                          // Proceed to the next handler
	}
}
