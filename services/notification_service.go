package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/database"
	"github.com/yeremiapane/restaurant-dispatch/kds"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BroadcastRequest struct {
	RecipientType string `json:"recipient_type" binding:"required"`
	RecipientID   *uint  `json:"recipient_id"`
	Title         string `json:"title" binding:"required"`
	Body          string `json:"body" binding:"required"`
}

// NotificationView is a notification as one reader sees it.
type NotificationView struct {
	models.Notification
	Read bool `json:"read"`
}

type notificationRow struct {
	models.Notification
	MarkID *uint `gorm:"column:mark_id"`
}

type NotificationService struct {
	db  *gorm.DB
	hub Pusher
}

func NewNotificationService(db *gorm.DB, hub Pusher) *NotificationService {
	if hub == nil {
		hub = noopPusher{}
	}
	return &NotificationService{db: db, hub: hub}
}

// Notify stores one notification and nothing else.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	return s.notifyTx(s.db.WithContext(ctx), n)
}

func (s *NotificationService) notifyTx(tx *gorm.DB, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = utcNow()
	}
	if n.NotificationType == "" {
		n.NotificationType = models.NotificationSystem
	}
	return tx.Create(n).Error
}

// Broadcast lets the super-admin address a party type, or one member of it.
func (s *NotificationService) Broadcast(ctx context.Context, sender models.Identity, req BroadcastRequest) (*models.Notification, error) {
	if sender.Role != models.RoleSuperAdmin {
		return nil, apperror.Forbidden("only the super-admin can broadcast")
	}
	party, ok := models.ParsePartyType(req.RecipientType)
	if !ok {
		return nil, apperror.Validation("unknown recipient type %q", req.RecipientType)
	}
	if party == models.PartyAll && req.RecipientID != nil {
		return nil, apperror.Validation("recipient_id cannot be combined with recipient type all")
	}
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if title == "" || body == "" {
		return nil, apperror.Validation("title and body are required")
	}
	if len([]rune(title)) > 100 {
		return nil, apperror.Validation("title must be at most 100 characters")
	}

	n := &models.Notification{
		RecipientType:    party,
		RecipientID:      req.RecipientID,
		SenderType:       sender.Party(),
		SenderID:         sender.PartyID(),
		Title:            title,
		Body:             body,
		NotificationType: models.NotificationBroadcast,
	}
	if err := s.Notify(ctx, n); err != nil {
		return nil, err
	}
	s.push(*n)
	return n, nil
}

func (s *NotificationService) push(n models.Notification) {
	s.hub.SendTo(kds.Audience{Party: n.RecipientType, ID: n.RecipientID}, kds.Message{Event: kds.EventNotification, Data: n})
}

// visible restricts a query to notifications addressed to id, including
// broadcasts to its party type. Resolved at read time, so members created
// after a broadcast still see it.
func visible(q *gorm.DB, id models.Identity) *gorm.DB {
	var own uint
	if pid := id.PartyID(); pid != nil {
		own = *pid
	}
	return q.Where(
		"(notifications.recipient_type = ? OR (notifications.recipient_type = ? AND (notifications.recipient_id IS NULL OR notifications.recipient_id = ?)))",
		models.PartyAll, id.Party(), own,
	)
}

func (s *NotificationService) baseQuery(ctx context.Context, id models.Identity) (*gorm.DB, error) {
	if id.IsGuest() {
		return nil, apperror.Unauthorized("sign in to see notifications")
	}
	q := s.db.WithContext(ctx).Table("notifications").
		Joins("LEFT JOIN notification_reads ON notification_reads.notification_id = notifications.id AND notification_reads.reader_key = ?", id.Key())
	return visible(q, id), nil
}

const unreadCondition = "((notifications.recipient_type <> 'all' AND notifications.recipient_id IS NOT NULL AND notifications.read_flag = ?) OR " +
	"((notifications.recipient_type = 'all' OR notifications.recipient_id IS NULL) AND notification_reads.id IS NULL))"

// List returns the newest notifications visible to id.
func (s *NotificationService) List(ctx context.Context, id models.Identity, unreadOnly bool, limit int) ([]NotificationView, error) {
	q, err := s.baseQuery(ctx, id)
	if err != nil {
		return nil, err
	}
	if unreadOnly {
		q = q.Where(unreadCondition, false)
	}

	var rows []notificationRow
	if err := q.Select("notifications.*, notification_reads.id AS mark_id").
		Order("notifications.created_at DESC, notifications.id DESC").
		Limit(pageLimit(limit, 50, 200)).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]NotificationView, 0, len(rows))
	for _, r := range rows {
		read := r.ReadFlag
		if r.IsBroadcast() {
			read = r.MarkID != nil
		}
		out = append(out, NotificationView{Notification: r.Notification, Read: read})
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, id models.Identity) (int64, error) {
	q, err := s.baseQuery(ctx, id)
	if err != nil {
		return 0, err
	}
	var n int64
	err = q.Where(unreadCondition, false).Count(&n).Error
	return n, err
}

// MarkRead marks one notification read for id. Direct rows flip their flag;
// broadcast rows get a per-reader mark so colleagues still see them unread.
func (s *NotificationService) MarkRead(ctx context.Context, id models.Identity, notificationID uint) error {
	if id.IsGuest() {
		return apperror.Unauthorized("sign in to see notifications")
	}
	return database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		var n models.Notification
		err := visible(tx.Model(&models.Notification{}), id).Where("notifications.id = ?", notificationID).First(&n).Error
		if err != nil {
			return notFoundOr(err, "notification %d not found", notificationID)
		}
		return markTx(tx, id, n)
	})
}

func markTx(tx *gorm.DB, id models.Identity, n models.Notification) error {
	if n.IsBroadcast() {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.NotificationRead{
			NotificationID: n.ID,
			ReaderKey:      id.Key(),
			CreatedAt:      utcNow(),
		}).Error
	}
	return tx.Model(&models.Notification{}).Where("id = ?", n.ID).Update("read_flag", true).Error
}

// MarkAllRead marks everything visible to id as read and returns how many
// notifications changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, id models.Identity) (int, error) {
	q, err := s.baseQuery(ctx, id)
	if err != nil {
		return 0, err
	}
	var unread []models.Notification
	if err := q.Where(unreadCondition, false).Select("notifications.*").Scan(&unread).Error; err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}

	err = database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		for _, n := range unread {
			if err := markTx(tx, id, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// planFanOut lists the notifications one lifecycle event produces.
func planFanOut(ev models.OrderEvent, order models.Order) []models.Notification {
	var out []models.Notification
	add := func(party models.PartyType, id *uint, title, body string) {
		orderID := order.ID
		out = append(out, models.Notification{
			RecipientType:    party,
			RecipientID:      id,
			SenderType:       ev.ActorType,
			SenderID:         ev.ActorID,
			Title:            title,
			Body:             body,
			NotificationType: models.NotificationOrder,
			OrderID:          &orderID,
			CreatedAt:        utcNow(),
		})
	}
	customer := func() {
		if order.UserID == nil {
			return
		}
		add(models.PartyUsers, order.UserID,
			fmt.Sprintf("Buyurtma #%d", order.TicketNo),
			fmt.Sprintf("Buyurtmangiz holati: %s", order.Status.Label()))
	}

	switch ev.EventType {
	case models.EventOrderCreated:
		add(models.PartySuperAdmin, nil, "Order awaiting approval",
			fmt.Sprintf("Ticket #%d from %s, %s, total %s", order.TicketNo, order.CustomerName, order.OrderType, utils.FormatSom(order.TotalAmount)))
		customer()
	case models.EventOrderApproved:
		add(models.PartyStaff, nil, "New order",
			fmt.Sprintf("Ticket #%d (%s) is waiting for the kitchen", order.TicketNo, order.OrderType))
		customer()
	case models.EventOrderReady:
		if order.OrderType == models.OrderTypeDelivery {
			add(models.PartyCouriers, nil, "Order ready for pickup",
				fmt.Sprintf("Ticket #%d to %s, %.1f km", order.TicketNo, order.DeliveryAddress, order.DeliveryDistanceKm))
		}
		customer()
	case models.EventOrderOnWay, models.EventOrderDelivered, models.EventOrderServed, models.EventOrderCancelled:
		customer()
	}
	return out
}

// FanOut writes the notifications of ev inside tx.
func (s *NotificationService) FanOut(tx *gorm.DB, ev models.OrderEvent, order models.Order) ([]models.Notification, error) {
	planned := planFanOut(ev, order)
	for i := range planned {
		if err := s.notifyTx(tx, &planned[i]); err != nil {
			return nil, err
		}
	}
	return planned, nil
}

// Push sends already committed notifications to live clients.
func (s *NotificationService) Push(notifications []models.Notification) {
	for _, n := range notifications {
		s.push(n)
	}
}
