package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Name               string          `gorm:"type:varchar(255);not null" json:"name"`
	Category           string          `gorm:"type:varchar(50);not null;default:'food';index" json:"category"`
	Price              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_percentage"`
	Available          bool            `gorm:"not null;index" json:"available"`
	Sizes              string          `gorm:"type:text" json:"sizes,omitempty"`
	Colors             string          `gorm:"type:text" json:"colors,omitempty"`
	Description        string          `gorm:"type:text" json:"description"`
	ImageURL           string          `gorm:"type:varchar(255)" json:"image_url"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// SizeList returns the declared sizes, empty when the item has none.
func (m MenuItem) SizeList() []string { return splitList(m.Sizes) }

// ColorList returns the declared colours, empty when the item has none.
func (m MenuItem) ColorList() []string { return splitList(m.Colors) }

// EffectivePrice applies the active percentage discount to the list price.
func (m MenuItem) EffectivePrice() decimal.Decimal {
	return ApplyDiscount(m.Price, m.DiscountPercentage)
}

// ApplyDiscount returns price reduced by pct percent.
func ApplyDiscount(price, pct decimal.Decimal) decimal.Decimal {
	if pct.LessThanOrEqual(decimal.Zero) {
		return price
	}
	if pct.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return decimal.Zero
	}
	factor := decimal.NewFromInt(100).Sub(pct).Div(decimal.NewFromInt(100))
	return price.Mul(factor).Round(2)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
