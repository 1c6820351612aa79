package models

import "time"

// CartItem is one line of a cart. OwnerKey is the Identity key of the user
// or guest session that owns it.
type CartItem struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OwnerKey   string    `gorm:"type:varchar(80);not null;uniqueIndex:idx_cart_line" json:"-"`
	MenuItemID uint      `gorm:"not null;uniqueIndex:idx_cart_line" json:"menu_item_id"`
	MenuItem   MenuItem  `gorm:"foreignKey:MenuItemID" json:"menu_item"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	Size       string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_cart_line" json:"size,omitempty"`
	Color      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_cart_line" json:"color,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Counter is a named sequence, incremented in place.
type Counter struct {
	Name  string `gorm:"primaryKey;type:varchar(32)"`
	Value int64  `gorm:"not null;default:0"`
}

const TicketCounter = "ticket"
