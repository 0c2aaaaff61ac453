package api

import (
	"context"       // Context for Redis operations
	"crypto/subtle" // Constant-time compare for the legacy plain password
	"net/http"      // HTTP status codes
	"strconv"       // String conversion
	"strings"       // String manipulation
	"time"          // Time durations

	"referral_system/internal/config"     // Application configuration
	"referral_system/internal/domain"     // Importing domain models
	"referral_system/internal/middleware" // Context keys
	"referral_system/internal/utils"      // Utility functions
	"referral_system/internal/validate"   // Request validation

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"golang.org/x/crypto/bcrypt"   // Password hashing
	"gorm.io/gorm"                 // GORM ORM library
)

// AdminLoginRequest represents an admin login request
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"` // Admin username
	Password string `json:"password" binding:"required"` // Admin password
}

// checkAdminPassword compares the supplied password against the configured
// one. A bcrypt hash is preferred; a legacy plain value is compared in
// constant time.
func checkAdminPassword(configured, supplied string) bool {
	if configured == "" {
		return false
	}
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) == 1
}

// AdminLoginHandler authenticates the configured admin and issues a session token
func AdminLoginHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdminLoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request"})
			return
		}
		// Verify username and password
		if req.Username != cfg.AdminUsername || !checkAdminPassword(cfg.AdminPassword, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Invalid credentials"})
			return
		}
		// Generate the admin session token
		token, err := utils.GenerateAdminToken(req.Username, cfg.JWTSecret)
		if err != nil {
			// If token generation fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to generate token"})
			return
		}
		// Set the session cookie; the bearer header remains a fallback
		c.SetCookie("adminToken", token, int(24*time.Hour/time.Second), "/", "", cfg.IsProd, true)
		c.JSON(http.StatusOK, gin.H{"ok": true, "token": token}) // Return the token
	}
}

// AccountAdminResponse represents the account data returned to admin
type AccountAdminResponse struct {
	ID            uint    `json:"id"`             // Account ID
	WalletAddress string  `json:"wallet_address"` // Wallet address
	Balance       int64   `json:"balance"`        // Current balance
	ReferralCode  *string `json:"referral_code"`  // Referral code, if issued
	ReferredBy    *uint   `json:"referred_by"`    // Referrer account ID, if any
}

// ListAccountsHandler returns all accounts with pagination
func ListAccountsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background() // Use background context for Redis
		// Create a cache key based on pagination parameters
		cacheKey := utils.CacheKey("admin", "accounts", "page="+c.DefaultQuery("page", "1"), "size="+c.DefaultQuery("page_size", "20"))
		// Try to get cached response
		var cached struct {
			Accounts   []AccountAdminResponse `json:"accounts"`    // List of accounts
			Page       int                    `json:"page"`        // Current page
			PageSize   int                    `json:"page_size"`   // Page size
			Total      int64                  `json:"total"`       // Total number of accounts
			TotalPages int                    `json:"total_pages"` // Total pages
		}
		// If cached data found, return it
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"ok":          true,
				"accounts":    cached.Accounts,   // List of accounts
				"page":        cached.Page,       // Current page
				"page_size":   cached.PageSize,   // Page size
				"total":       cached.Total,      // Total number of accounts
				"total_pages": cached.TotalPages, // Total pages
				"cached":      true,              // Indicate response is from cache
			})
			return
		}
		page := 1      // Default page number
		pageSize := 20 // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// Check and set page size within limits
		if ps := c.Query("page_size"); ps != "" {
			// If valid, set page size
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size
			}
		}
		offset := (page - 1) * pageSize // Calculate offset for pagination
		var total int64                 // Total account count
		// Fetch total account count
		if err := db.Model(&domain.Account{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to count accounts"})
			return
		}
		var accounts []domain.Account // Slice to hold accounts
		// Apply offset and limit for pagination
		if err := db.Offset(offset).Limit(pageSize).Find(&accounts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to fetch accounts"})
			return
		}
		// The total number of pages
		totalPages := (int(total) + pageSize - 1) / pageSize
		// Prepare response data
		resp := make([]AccountAdminResponse, len(accounts))
		// Map accounts to response format
		for i, a := range accounts {
			resp[i] = AccountAdminResponse{
				ID:            a.ID,            // Account ID
				WalletAddress: a.WalletAddress, // Wallet address
				Balance:       a.Balance,       // Current balance
				ReferralCode:  a.ReferralCode,  // Referral code
				ReferredBy:    a.ReferredBy,    // Referrer account ID
			}
		}
		// Prepare final response data
		respData := gin.H{
			"ok":          true,
			"accounts":    resp,       // List of accounts
			"page":        page,       // Current page
			"page_size":   pageSize,   // Page size
			"total":       total,      // Total number of accounts
			"total_pages": totalPages, // Total pages
			"cached":      false,      // Indicate response is not from cache
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, 60*time.Second)
		c.JSON(http.StatusOK, respData) // Return the response
	}
}

// GetAccountByAddressHandler returns a single account looked up by its
// wallet address
func GetAccountByAddressHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Validate the address parameter
		addr, ferr := validate.Address(c.Param("address"))
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": ferr.Error()})
			return
		}
		var acc domain.Account // Fetch account from database
		// Addresses are stored lowercase, so the lookup is case-insensitive
		if err := db.Where("wallet_address = ?", strings.ToLower(addr)).First(&acc).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Account not found"})
			return
		}
		// Return the account in the admin response shape
		c.JSON(http.StatusOK, gin.H{"ok": true, "account": AccountAdminResponse{
			ID:            acc.ID,            // Account ID
			WalletAddress: acc.WalletAddress, // Wallet address
			Balance:       acc.Balance,       // Current balance
			ReferralCode:  acc.ReferralCode,  // Referral code
			ReferredBy:    acc.ReferredBy,    // Referrer account ID
		}})
	}
}

// AdjustBalanceRequest represents an admin balance adjustment
type AdjustBalanceRequest struct {
	Amount int64 `json:"amount" binding:"required"` // Signed adjustment, negative values debit
}

// AdjustBalanceHandler applies a signed balance adjustment to one account.
// The balance can never go negative; a debit past zero is rejected.
func AdjustBalanceHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Validate the id parameter
		id, ferr := validate.NumericID("id", c.Param("id"))
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": ferr.Error()})
			return
		}
		var req AdjustBalanceRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount == 0 {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid amount"})
			return
		}
		// Apply the adjustment with the non-negative guard in the WHERE clause
		res := db.Model(&domain.Account{}).
			Where("id = ? AND balance + ? >= 0", id, req.Amount).
			Update("balance", gorm.Expr("balance + ?", req.Amount))
		if res.Error != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"account_id": id,                // Account ID
				"amount":     req.Amount,        // Adjustment amount
				"error":      res.Error.Error(), // Error message
			}).Error("Balance adjustment failed")
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Adjustment failed"})
			return
		}
		if res.RowsAffected == 0 {
			// Either the account does not exist or the debit would go negative
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Account not found or insufficient balance"})
			return
		}
		// Log the adjustment with the acting admin
		logrus.WithFields(logrus.Fields{
			"account_id": id,                                        // Account ID
			"amount":     req.Amount,                                // Adjustment amount
			"admin":      c.GetString(middleware.AdminIdentityKey),  // Acting admin identity
			"timestamp":  time.Now().Format(time.RFC3339),           // Current timestamp
		}).Info("Balance adjusted")
		// Return success response
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ApproveWithdrawalRequest represents a withdrawal approval
type ApproveWithdrawalRequest struct {
	TxHash string `json:"tx_hash"` // Optional settlement transaction hash
}

// ApproveWithdrawalHandler marks a pending withdrawal as approved
func ApproveWithdrawalHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Validate the id parameter
		id, ferr := validate.NumericID("id", c.Param("id"))
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": ferr.Error()})
			return
		}
		var req ApproveWithdrawalRequest // Bind JSON request to struct
		// Body is optional for approvals without a hash
		_ = c.ShouldBindJSON(&req)
		// Validate the optional transaction hash
		txHash, ferr := validate.OptionalTxHash("tx_hash", req.TxHash)
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": ferr.Error()})
			return
		}
		// Approve only a still-pending withdrawal
		res := db.Model(&domain.Withdrawal{}).
			Where("id = ? AND status = ?", id, domain.WithdrawalPending).
			Updates(map[string]any{
				"status":  domain.WithdrawalApproved, // New status
				"tx_hash": txHash,                    // Settlement hash, if provided
			})
		if res.Error != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"withdrawal_id": id,                // Withdrawal ID
				"error":         res.Error.Error(), // Error message
			}).Error("Withdrawal approval failed")
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Approval failed"})
			return
		}
		if res.RowsAffected == 0 {
			// Not found, or already approved/rejected
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Pending withdrawal not found"})
			return
		}
		// Log the approval with the acting admin
		logrus.WithFields(logrus.Fields{
			"withdrawal_id": id,                                        // Withdrawal ID
			"admin":         c.GetString(middleware.AdminIdentityKey),  // Acting admin identity
			"timestamp":     time.Now().Format(time.RFC3339),           // Current timestamp
		}).Info("Withdrawal approved")
		// Return success response
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ModerationRequest represents a moderation intake payload
type ModerationRequest struct {
	Text string `json:"text" binding:"required"` // Text being reviewed
}

// ModerationHandler validates and acknowledges a moderation submission. The
// content itself lives in the CMS, which is outside this service.
func ModerationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ModerationRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request"})
			return
		}
		// Validate the moderation text schema
		text, ferr := validate.ModerationText(req.Text)
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": ferr.Error()})
			return
		}
		// Log the intake with the acting admin
		logrus.WithFields(logrus.Fields{
			"admin":     c.GetString(middleware.AdminIdentityKey),  // Acting admin identity
			"length":    len(text),                                 // Text length
			"timestamp": time.Now().Format(time.RFC3339),           // Current timestamp
		}).Info("Moderation text accepted")
		// Return success response
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
