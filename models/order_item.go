package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a line of an order. Name, price and discount are copied from
// the menu at checkout and never follow later catalogue edits.
type OrderItem struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	OrderID            uint            `gorm:"not null;index" json:"order_id"`
	MenuItemID         uint            `gorm:"not null;index" json:"menu_item_id"`
	Name               string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity           int             `gorm:"not null" json:"quantity"`
	Price              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_percentage"`
	Size               string          `gorm:"type:varchar(32)" json:"size,omitempty"`
	Color              string          `gorm:"type:varchar(32)" json:"color,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// LineTotal is quantity times the discounted unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return ApplyDiscount(i.Price, i.DiscountPercentage).Mul(decimal.NewFromInt(int64(i.Quantity)))
}
