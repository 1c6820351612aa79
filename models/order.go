package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusWaiting   OrderStatus = "waiting"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusServed    OrderStatus = "served"
	OrderStatusOnWay     OrderStatus = "on_way"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal statuses never transition again.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusServed || s == OrderStatusDelivered || s == OrderStatusCancelled
}

var statusLabels = map[OrderStatus]string{
	OrderStatusPending:   "Tasdiqlash kutilmoqda",
	OrderStatusWaiting:   "Navbatda",
	OrderStatusReady:     "Tayyor",
	OrderStatusServed:    "Berildi",
	OrderStatusOnWay:     "Yo'lda",
	OrderStatusDelivered: "Yetkazildi",
	OrderStatusCancelled: "Bekor qilindi",
}

func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the customer facing text for the status.
func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeDelivery OrderType = "delivery"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeDineIn || t == OrderTypeDelivery
}

type Order struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	UserID       *uint       `gorm:"index" json:"user_id,omitempty"`
	SessionID    string      `gorm:"type:varchar(64);index" json:"-"`
	CustomerName string      `gorm:"type:varchar(255);not null" json:"customer_name"`
	TicketNo     int64       `gorm:"uniqueIndex;not null" json:"ticket_no"`
	OrderType    OrderType   `gorm:"type:varchar(20);not null;default:'dine_in'" json:"order_type"`
	Status       OrderStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	BranchID     *uint       `gorm:"index" json:"branch_id,omitempty"`

	DeliveryAddress    string          `gorm:"type:text" json:"delivery_address,omitempty"`
	DeliveryLatitude   *float64        `json:"delivery_latitude,omitempty"`
	DeliveryLongitude  *float64        `json:"delivery_longitude,omitempty"`
	DeliveryDistanceKm float64         `gorm:"not null;default:0" json:"delivery_distance_km"`
	DeliveryPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"delivery_price"`
	DeliveryMapURL     string          `gorm:"type:varchar(255)" json:"delivery_map_url,omitempty"`

	CourierID          *uint           `gorm:"index" json:"courier_id,omitempty"`
	CourierPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"courier_price"`
	CourierTimeMinutes int             `gorm:"not null;default:0" json:"courier_time_minutes"`

	CustomerPhone string `gorm:"type:varchar(32)" json:"customer_phone,omitempty"`
	CardNumber    string `gorm:"type:varchar(32)" json:"-"`
	Note          string `gorm:"type:text" json:"note,omitempty"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`

	CreatedAt    time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ETATime      time.Time  `gorm:"column:eta_time" json:"eta_time"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ReadyAt      *time.Time `json:"ready_at,omitempty"`
	PickedUpAt   *time.Time `json:"picked_up_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`

	OrderItems []OrderItem `gorm:"foreignKey:OrderID" json:"order_items,omitempty"`
	Receipt    *Receipt    `gorm:"foreignKey:OrderID" json:"receipt,omitempty"`
}

// OwnedBy reports whether the identity placed the order.
func (o *Order) OwnedBy(id Identity) bool {
	switch {
	case id.Role == RoleUser:
		return o.UserID != nil && *o.UserID == id.ID
	case id.IsGuest():
		return id.SessionID != "" && o.SessionID == id.SessionID
	}
	return false
}
