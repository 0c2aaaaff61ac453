package domain

// Withdrawal statuses
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

// Withdrawal Model
type Withdrawal struct {
	ID        uint    `gorm:"primaryKey"`           // Primary key
	AccountID uint    `gorm:"index;not null"`       // Foreign key to Account
	Amount    int64   `gorm:"not null"`             // Requested amount
	Status    string  `gorm:"default:pending"`      // Status: pending, approved, rejected
	TxHash    *string `gorm:"size:128"`             // Settlement transaction hash, set on approval
	CreatedAt int64   `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
	UpdatedAt int64   `gorm:"autoUpdateTime:milli"` // Timestamp of last update in milliseconds
}
