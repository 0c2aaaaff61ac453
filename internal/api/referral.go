package api

import (
	"context"  // Context for Redis operations
	"errors"   // Sentinel error matching
	"net/http" // HTTP status codes
	"strconv"  // Cache key building
	"time"     // Cache TTL

	"referral_system/internal/domain"     // Importing domain models
	"referral_system/internal/ledger"     // Referral ledger service
	"referral_system/internal/middleware" // Context keys
	"referral_system/internal/utils"      // Cache utilities

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// statsCacheTTL is how long referral stats stay cached
const statsCacheTTL = 60 * time.Second

// statsCacheKey builds the cache key for an account's referral stats
func statsCacheKey(accountID uint) string {
	return utils.CacheKey("refstats", "account", strconv.Itoa(int(accountID)))
}

// accountByWallet resolves the authenticated wallet address from the request
// context to its account row. Writes the error response itself and reports
// false when the account cannot be resolved.
func accountByWallet(c *gin.Context, db *gorm.DB) (*domain.Account, bool) {
	addrVal, exists := c.Get(middleware.WalletAddressKey) // Get wallet address from context
	addr, _ := addrVal.(string)
	// Check the middleware attached a wallet address
	if !exists || addr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Unauthorized"})
		return nil, false
	}
	var acc domain.Account // Fetch account from database
	if err := db.Where("wallet_address = ?", addr).First(&acc).Error; err != nil {
		// If account not found, return not found
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Account not found"})
		return nil, false
	}
	return &acc, true
}

// GetReferralCodeHandler returns the caller's referral code, generating one
// on first request
func GetReferralCodeHandler(db *gorm.DB, svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := accountByWallet(c, db) // Resolve the authenticated account
		if !ok {
			return
		}
		code, err := svc.EnsureReferralCode(c.Request.Context(), acc.ID)
		if err != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"account_id": acc.ID,      // Account ID
				"error":      err.Error(), // Error message
			}).Error("Referral code generation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to generate referral code"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "code": code}) // Return the code
	}
}

// ClaimRequest represents a referral claim request
type ClaimRequest struct {
	Code string `json:"code" binding:"required"` // Referral code being claimed
}

// ClaimReferralHandler links the caller to the owner of the submitted
// referral code and credits both parties
func ClaimReferralHandler(db *gorm.DB, svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := accountByWallet(c, db) // Resolve the authenticated account
		if !ok {
			return
		}
		var req ClaimRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request"})
			return
		}

		result, err := svc.ProcessReferral(c.Request.Context(), acc.ID, req.Code)
		if err != nil {
			// Domain failures are expected outcomes rendered to the user
			if errors.Is(err, ledger.ErrInvalidReferralCode) ||
				errors.Is(err, ledger.ErrSelfReferral) ||
				errors.Is(err, ledger.ErrAlreadyReferred) {
				c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
				return
			}
			// Anything else is a persistence-level fault: log the cause,
			// return a generic failure
			logrus.WithFields(logrus.Fields{
				"account_id": acc.ID,      // Claiming account ID
				"code":       req.Code,    // Submitted code
				"error":      err.Error(), // Underlying cause
			}).Error("Referral processing failed")
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Referral processing failed"})
			return
		}

		// Log successful referral
		logrus.WithFields(logrus.Fields{
			"account_id":  acc.ID,                          // Referred account ID
			"referrer_id": result.ReferrerID,               // Referrer account ID
			"reward":      result.Reward,                   // Credited amount
			"timestamp":   time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Referral processed")

		// Invalidate referral stats cache for both parties
		if rdb != nil {
			ctx := context.Background() // Context for Redis operations
			_ = utils.DeleteCache(ctx, rdb, statsCacheKey(acc.ID))
			_ = utils.DeleteCache(ctx, rdb, statsCacheKey(result.ReferrerID))
		}

		// Return success response
		c.JSON(http.StatusOK, gin.H{"ok": true, "referrer_id": result.ReferrerID, "reward": result.Reward})
	}
}

// ReferralStatsHandler returns the caller's referral stats, served from
// cache when fresh
func ReferralStatsHandler(db *gorm.DB, svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := accountByWallet(c, db) // Resolve the authenticated account
		if !ok {
			return
		}
		ctx := context.Background()       // Context for Redis operations
		cacheKey := statsCacheKey(acc.ID) // Cache key for this account's stats
		var cached ledger.Stats
		// Try to get from cache
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			// Return cached stats
			c.JSON(http.StatusOK, gin.H{"ok": true, "stats": cached, "cached": true})
			return
		}
		stats, err := svc.ReferralStats(c.Request.Context(), acc.ID)
		if err != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"account_id": acc.ID,      // Account ID
				"error":      err.Error(), // Error message
			}).Error("Failed to load referral stats")
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to load referral stats"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, stats, statsCacheTTL)          // Cache the stats
		c.JSON(http.StatusOK, gin.H{"ok": true, "stats": stats, "cached": false}) // Return stats
	}
}
