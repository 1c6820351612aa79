package models

import "time"

type Chat struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	IsGroup       bool         `gorm:"not null;default:false" json:"is_group"`
	Name          string       `gorm:"type:varchar(100)" json:"name"`
	Slug          *string      `gorm:"type:varchar(50);uniqueIndex" json:"-"`
	PairKey       *string      `gorm:"type:varchar(120);uniqueIndex" json:"-"`
	LastMessageAt *time.Time   `json:"last_message_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	Members       []ChatMember `gorm:"foreignKey:ChatID" json:"members,omitempty"`
}

// ChatMember with a nil MemberID admits every identity of MemberType.
type ChatMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatID     uint      `gorm:"not null;index" json:"chat_id"`
	MemberType PartyType `gorm:"type:varchar(20);not null" json:"member_type"`
	MemberID   *uint     `json:"member_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Admits reports whether the membership row covers the identity.
func (m ChatMember) Admits(id Identity) bool {
	if m.MemberType != id.Party() {
		return false
	}
	if m.MemberID == nil {
		return true
	}
	pid := id.PartyID()
	return pid != nil && *pid == *m.MemberID
}

type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatID     uint      `gorm:"not null;index" json:"chat_id"`
	SenderType PartyType `gorm:"type:varchar(20);not null" json:"sender_type"`
	SenderID   *uint     `json:"sender_id,omitempty"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}
