package domain

// Account Model
type Account struct {
	ID                    uint    `gorm:"primaryKey"`                        // Primary key
	WalletAddress         string  `gorm:"uniqueIndex;size:64;not null"`      // Wallet address, stored lowercase
	Balance               int64   `gorm:"not null;default:0"`                // Balance in whole units, never negative
	ReferralCode          *string `gorm:"uniqueIndex;size:8"`                // Referral code, nil until first requested
	ReferredBy            *uint   // Account ID of the referrer, set at most once
	ReferralRewardClaimed bool    `gorm:"default:false"`                     // Whether the signup reward was credited
	CreatedAt             int64   `gorm:"autoCreateTime:milli"`              // Timestamp of creation in milliseconds
}
