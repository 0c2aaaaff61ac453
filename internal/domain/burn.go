package domain

// BurnRecord Model
type BurnRecord struct {
	ID        uint    `gorm:"primaryKey"`           // Primary key
	AccountID uint    `gorm:"index;not null"`       // Foreign key to Account
	Amount    int64   `gorm:"not null"`             // Burned amount
	TxHash    *string `gorm:"size:128"`             // Optional on-chain transaction hash
	Note      *string `gorm:"size:255"`             // Optional note
	CreatedAt int64   `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
