package services

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/database"
	"github.com/yeremiapane/restaurant-dispatch/kds"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxMessageLength = 2000

type defaultGroup struct {
	slug    string
	name    string
	members []models.PartyType
}

// Every default group also admits the super-admin.
var defaultGroups = []defaultGroup{
	{slug: "all-team", name: "All Team", members: []models.PartyType{models.PartyStaff, models.PartyCouriers}},
	{slug: "staff", name: "Staffs", members: []models.PartyType{models.PartyStaff}},
	{slug: "couriers", name: "Couriers", members: []models.PartyType{models.PartyCouriers}},
}

type PrivateChatRequest struct {
	CounterpartType string `json:"counterpart_type" binding:"required"`
	CounterpartID   uint   `json:"counterpart_id"`
}

type ChatService struct {
	db  *gorm.DB
	hub Pusher
}

func NewChatService(db *gorm.DB, hub Pusher) *ChatService {
	if hub == nil {
		hub = noopPusher{}
	}
	return &ChatService{db: db, hub: hub}
}

// ensureDefaultGroups creates the team group chats the first time anyone asks.
func (s *ChatService) ensureDefaultGroups(ctx context.Context) error {
	return database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		for _, g := range defaultGroups {
			slug := g.slug
			chat := models.Chat{IsGroup: true, Name: g.name, Slug: &slug, CreatedAt: utcNow()}
			res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).Create(&chat)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			members := []models.ChatMember{{ChatID: chat.ID, MemberType: models.PartySuperAdmin, CreatedAt: utcNow()}}
			for _, p := range g.members {
				members = append(members, models.ChatMember{ChatID: chat.ID, MemberType: p, CreatedAt: utcNow()})
			}
			if err := tx.Create(&members).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// memberScope restricts chat_members to rows that admit id.
func memberScope(q *gorm.DB, id models.Identity) *gorm.DB {
	var own uint
	if pid := id.PartyID(); pid != nil {
		own = *pid
	}
	return q.Where("chat_members.member_type = ? AND (chat_members.member_id IS NULL OR chat_members.member_id = ?)", id.Party(), own)
}

// ListChats returns the chats id belongs to, most recently active first.
func (s *ChatService) ListChats(ctx context.Context, id models.Identity) ([]models.Chat, error) {
	if id.IsGuest() {
		return nil, apperror.Unauthorized("sign in to use chats")
	}
	if id.IsTeam() {
		if err := s.ensureDefaultGroups(ctx); err != nil {
			return nil, err
		}
	}

	var chatIDs []uint
	if err := memberScope(s.db.WithContext(ctx).Model(&models.ChatMember{}), id).
		Distinct().Pluck("chat_members.chat_id", &chatIDs).Error; err != nil {
		return nil, err
	}
	chats := []models.Chat{}
	if len(chatIDs) == 0 {
		return chats, nil
	}
	err := s.db.WithContext(ctx).Preload("Members").
		Where("id IN ?", chatIDs).
		Order("COALESCE(last_message_at, created_at) DESC, id DESC").
		Find(&chats).Error
	return chats, err
}

// pairKey is the same for (a, b) and (b, a).
func pairKey(a, b models.Identity) string {
	keys := []string{a.Key(), b.Key()}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// GetOrCreatePrivateChat returns the one private chat between a and the
// counterpart, creating it on first use.
func (s *ChatService) GetOrCreatePrivateChat(ctx context.Context, a models.Identity, req PrivateChatRequest) (*models.Chat, error) {
	if a.IsGuest() {
		return nil, apperror.Unauthorized("sign in to use chats")
	}
	party, ok := models.ParsePartyType(req.CounterpartType)
	if !ok {
		return nil, apperror.Validation("unknown counterpart type %q", req.CounterpartType)
	}
	b, ok := models.IdentityFor(party, req.CounterpartID)
	if !ok {
		return nil, apperror.Validation("a private chat needs one counterpart")
	}
	if a.Key() == b.Key() {
		return nil, apperror.Validation("cannot open a private chat with yourself")
	}
	if !a.IsTeam() && !b.IsTeam() {
		return nil, apperror.Forbidden("private chats need a staff member, courier or the super-admin")
	}
	if err := s.mustExist(ctx, b); err != nil {
		return nil, err
	}

	key := pairKey(a, b)
	var chat models.Chat
	err := database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		chat = models.Chat{PairKey: &key, CreatedAt: utcNow()}
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).Create(&chat)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			members := []models.ChatMember{
				{ChatID: chat.ID, MemberType: a.Party(), MemberID: a.PartyID(), CreatedAt: utcNow()},
				{ChatID: chat.ID, MemberType: b.Party(), MemberID: b.PartyID(), CreatedAt: utcNow()},
			}
			if err := tx.Create(&members).Error; err != nil {
				return err
			}
		}
		return tx.Preload("Members").Where("pair_key = ?", key).First(&chat).Error
	})
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *ChatService) mustExist(ctx context.Context, id models.Identity) error {
	var model interface{}
	switch id.Role {
	case models.RoleUser:
		model = &models.User{}
	case models.RoleStaff:
		model = &models.Staff{}
	case models.RoleCourier:
		model = &models.Courier{}
	default:
		return nil
	}
	err := s.db.WithContext(ctx).Select("id").First(model, id.ID).Error
	return notFoundOr(err, "%s %d not found", id.Party(), id.ID)
}

// member loads the chat and checks that id may use it.
func (s *ChatService) member(ctx context.Context, chatID uint, id models.Identity) (*models.Chat, error) {
	if id.IsGuest() {
		return nil, apperror.Unauthorized("sign in to use chats")
	}
	var chat models.Chat
	if err := s.db.WithContext(ctx).Preload("Members").First(&chat, chatID).Error; err != nil {
		return nil, notFoundOr(err, "chat %d not found", chatID)
	}
	for _, m := range chat.Members {
		if m.Admits(id) {
			return &chat, nil
		}
	}
	return nil, apperror.Forbidden("you are not a member of chat %d", chatID)
}

// PostMessage stores a message and pushes it to every member online.
func (s *ChatService) PostMessage(ctx context.Context, chatID uint, sender models.Identity, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n == 0 || n > maxMessageLength {
		return nil, apperror.Validation("message must be between 1 and %d characters", maxMessageLength)
	}
	chat, err := s.member(ctx, chatID, sender)
	if err != nil {
		return nil, err
	}

	msg := models.ChatMessage{
		ChatID:     chatID,
		SenderType: sender.Party(),
		SenderID:   sender.PartyID(),
		Text:       text,
		CreatedAt:  utcNow(),
	}
	err = database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		msg.ID = 0
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Chat{}).Where("id = ?", chatID).Update("last_message_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}

	out := kds.Message{Event: kds.EventChatMessage, Data: msg}
	for _, m := range chat.Members {
		s.hub.SendTo(kds.Audience{Party: m.MemberType, ID: m.MemberID}, out)
	}
	return &msg, nil
}

// Messages returns the next limit messages after afterID, oldest first.
// Without afterID it returns the latest page.
func (s *ChatService) Messages(ctx context.Context, chatID uint, reader models.Identity, limit int, afterID uint) ([]models.ChatMessage, error) {
	if _, err := s.member(ctx, chatID, reader); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Limit(pageLimit(limit, 50, 200))
	var msgs []models.ChatMessage
	if afterID > 0 {
		// The next page after the cursor, so polling never skips messages.
		err := q.Where("id > ?", afterID).Order("id ASC").Find(&msgs).Error
		return msgs, err
	}
	if err := q.Order("id DESC").Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
