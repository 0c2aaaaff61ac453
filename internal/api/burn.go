package api

import (
	"net/http" // HTTP status codes
	"time"     // Timestamps for logging

	"referral_system/internal/domain"   // Importing domain models
	"referral_system/internal/validate" // Request validation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// BurnRequest represents a burn request
type BurnRequest struct {
	Amount string `json:"amount" binding:"required"` // Amount as a numeric string
	TxHash string `json:"tx_hash"`                   // Optional on-chain transaction hash
	Note   string `json:"note"`                      // Optional note
}

// BurnHandler debits the caller's balance and records an audit row
func BurnHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := accountByWallet(c, db) // Resolve the authenticated account
		if !ok {
			return
		}
		var req BurnRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request"})
			return
		}
		// Validate the burn schema
		amount, ferr := validate.PositiveAmount("amount", req.Amount)
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": ferr.Error()})
			return
		}
		txHash, ferr := validate.OptionalTxHash("tx_hash", req.TxHash)
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": ferr.Error()})
			return
		}
		note, ferr := validate.OptionalNote("note", req.Note)
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": ferr.Error()})
			return
		}

		// Atomic debit plus audit row. The balance guard is in the WHERE
		// clause so a concurrent debit cannot drive the balance negative.
		insufficient := false
		err := db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&domain.Account{}).
				Where("id = ? AND balance >= ?", acc.ID, amount).
				Update("balance", gorm.Expr("balance - ?", amount))
			if res.Error != nil {
				return res.Error // Return error to rollback
			}
			if res.RowsAffected == 0 {
				insufficient = true
				return gorm.ErrInvalidData // Abort: not enough balance
			}
			// Create the audit record
			rec := domain.BurnRecord{
				AccountID: acc.ID, // Burning account
				Amount:    amount, // Burned amount
				TxHash:    txHash, // Optional transaction hash
				Note:      note,   // Optional note
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err // Return error to rollback
			}
			return nil // Commit transaction
		})
		if insufficient {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Insufficient balance"})
			return
		}
		if err != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"account_id": acc.ID,      // Account ID
				"amount":     amount,      // Requested amount
				"error":      err.Error(), // Error message
			}).Error("Burn failed") // Log burn failure
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Burn failed"})
			return
		}
		// Log successful burn
		logrus.WithFields(logrus.Fields{
			"account_id": acc.ID,                          // Account ID
			"amount":     amount,                          // Burned amount
			"type":       "burn",                          // Operation type
			"timestamp":  time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Burn recorded")
		// Return success response
		c.JSON(http.StatusOK, gin.H{"ok": true, "burned": amount})
	}
}
