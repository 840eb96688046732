package model

import (
	"time"
)

// 交易类型
const (
	TransactionTypeDeposit = "deposit"
	TransactionTypePayment = "payment"
)

// 交易状态
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction 账本条目。completed 后不再变更，余额等于
// completed 与 pending（预扣）金额之和。
type Transaction struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	UserID        int64      `gorm:"not null;index" json:"user_id"`
	Amount        float64    `gorm:"type:decimal(12,2);not null" json:"amount"` // 充值为正，扣费为负
	Type          string     `gorm:"size:20;not null;index" json:"type"`        // deposit, payment
	Status        string     `gorm:"size:20;default:pending;index" json:"status"`
	PaymentMethod string     `gorm:"size:30" json:"payment_method,omitempty"` // sbp_qr, bank_card
	IntentCode    string     `gorm:"size:64;index" json:"intent_code,omitempty"`
	Description   string     `gorm:"size:500" json:"description"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}
