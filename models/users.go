package models

import "time"

// User is a customer account.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Phone     string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"phone"`
	Email     *string   `gorm:"type:varchar(255);uniqueIndex" json:"email,omitempty"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Address   string    `gorm:"type:text" json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Staff struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	FirstName     string     `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName      string     `gorm:"type:varchar(100)" json:"last_name"`
	Phone         string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"phone"`
	Password      string     `gorm:"type:varchar(255);not null" json:"-"`
	BranchID      *uint      `gorm:"index" json:"branch_id,omitempty"`
	WorkedHours   float64    `gorm:"not null;default:0" json:"worked_hours"`
	HandledOrders int        `gorm:"not null;default:0" json:"handled_orders"`
	LastActivity  *time.Time `json:"last_activity,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Staff) TableName() string { return "staff" }

type Courier struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	FirstName           string     `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName            string     `gorm:"type:varchar(100)" json:"last_name"`
	Phone               string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"phone"`
	Password            string     `gorm:"type:varchar(255);not null" json:"-"`
	WorkedHours         float64    `gorm:"not null;default:0" json:"worked_hours"`
	CompletedDeliveries int        `gorm:"not null;default:0" json:"completed_deliveries"`
	LastActivity        *time.Time `json:"last_activity,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type Branch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Active    bool      `gorm:"not null;index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
