package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Receipt struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	OrderID            uint            `gorm:"uniqueIndex;not null" json:"order_id"`
	ReceiptNumber      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"receipt_number"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	CashbackPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"cashback_percentage"`
	CashbackAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"cashback_amount"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
}
