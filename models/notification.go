package models

import (
	"time"
)

type NotificationType string

const (
	NotificationOrder     NotificationType = "order"
	NotificationBroadcast NotificationType = "broadcast"
	NotificationSystem    NotificationType = "system"
)

// Notification rows with a nil RecipientID address every member of
// RecipientType, resolved when read.
type Notification struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	RecipientType    PartyType        `gorm:"type:varchar(20);not null;index:idx_notification_recipient" json:"recipient_type"`
	RecipientID      *uint            `gorm:"index:idx_notification_recipient" json:"recipient_id,omitempty"`
	SenderType       PartyType        `gorm:"type:varchar(20)" json:"sender_type,omitempty"`
	SenderID         *uint            `json:"sender_id,omitempty"`
	Title            string           `gorm:"type:varchar(100);not null" json:"title"`
	Body             string           `gorm:"type:text;not null" json:"body"`
	NotificationType NotificationType `gorm:"type:varchar(20);not null;default:'system'" json:"notification_type"`
	OrderID          *uint            `gorm:"index" json:"order_id,omitempty"`
	ReadFlag         bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt        time.Time        `gorm:"not null;index" json:"created_at"`
}

// IsBroadcast reports whether the row targets a whole party type.
func (n *Notification) IsBroadcast() bool {
	return n.RecipientType == PartyAll || n.RecipientID == nil
}

// NotificationRead marks a broadcast row as read for one reader.
type NotificationRead struct {
	ID             uint      `gorm:"primaryKey"`
	NotificationID uint      `gorm:"not null;uniqueIndex:idx_notification_reader"`
	ReaderKey      string    `gorm:"type:varchar(80);not null;uniqueIndex:idx_notification_reader"`
	CreatedAt      time.Time `gorm:"not null"`
}
