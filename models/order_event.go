package models

import (
	"time"
)

type OrderEventType string

const (
	EventOrderCreated   OrderEventType = "created"
	EventOrderApproved  OrderEventType = "approved"
	EventOrderReady     OrderEventType = "ready"
	EventOrderServed    OrderEventType = "served"
	EventOrderOnWay     OrderEventType = "on_way"
	EventOrderDelivered OrderEventType = "delivered"
	EventOrderCancelled OrderEventType = "cancelled"
)

// OrderEvent is an outbox row written in the same transaction as the order
// change it describes. The event monitor turns it into notifications.
type OrderEvent struct {
	ID          uint           `gorm:"primaryKey"`
	OrderID     uint           `gorm:"not null;index"`
	EventType   OrderEventType `gorm:"type:varchar(20);not null"`
	ActorType   PartyType      `gorm:"type:varchar(20)"`
	ActorID     *uint
	Processed   bool      `gorm:"not null;default:false;index:idx_event_pending"`
	Attempts    int       `gorm:"not null;default:0"`
	LastError   string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null;index:idx_event_pending"`
	ProcessedAt *time.Time
}
