package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/config"
	"github.com/yeremiapane/restaurant-dispatch/database"
	"github.com/yeremiapane/restaurant-dispatch/geo"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"gorm.io/gorm"
)

type CheckoutRequest struct {
	CustomerName   string           `json:"customer_name"`
	OrderType      models.OrderType `json:"order_type"`
	Phone          string           `json:"phone"`
	Address        string           `json:"address"`
	Latitude       *float64         `json:"latitude"`
	Longitude      *float64         `json:"longitude"`
	CardNumber     string           `json:"card_number"`
	Note           string           `json:"note"`
	DeliveryMapURL string           `json:"delivery_map_url"`
}

// TicketStatus is what a customer polling by ticket number sees.
type TicketStatus struct {
	OrderID       uint               `json:"order_id"`
	TicketNo      int64              `json:"ticket_no"`
	Status        models.OrderStatus `json:"status"`
	StatusText    string             `json:"status_text"`
	OrderType     models.OrderType   `json:"order_type"`
	QueuePosition int64              `json:"queue_position"`
	ETA           time.Time          `json:"eta_time"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	CreatedAt     time.Time          `json:"created_at"`
	ApprovedAt    *time.Time         `json:"approved_at,omitempty"`
	ReadyAt       *time.Time         `json:"ready_at,omitempty"`
	PickedUpAt    *time.Time         `json:"picked_up_at,omitempty"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
}

type OrderFilter struct {
	Statuses  []models.OrderStatus
	OrderType models.OrderType
	Limit     int
	Offset    int
}

const expiredReason = "expired"

type OrderService struct {
	db       *gorm.DB
	cfg      config.Business
	carts    *CartService
	resolver *geo.Resolver
	events   Waker
	now      func() time.Time
}

func NewOrderService(db *gorm.DB, cfg config.Business, carts *CartService, resolver *geo.Resolver, events Waker) *OrderService {
	if events == nil {
		events = noopWaker{}
	}
	if resolver == nil {
		resolver = geo.NewResolver(nil)
	}
	return &OrderService{db: db, cfg: cfg, carts: carts, resolver: resolver, events: events, now: utcNow}
}

type deliveryPlan struct {
	address  string
	point    *geo.Point
	distance float64
	branchID *uint
	price    decimal.Decimal
}

// Checkout turns the caller's cart into a pending order. Address resolution
// runs first, outside the transaction; everything that writes is one
// transaction.
func (s *OrderService) Checkout(ctx context.Context, customer models.Identity, req CheckoutRequest) (*models.Order, error) {
	owner, err := OwnerFor(customer)
	if err != nil {
		return nil, err
	}

	if req.OrderType == "" {
		req.OrderType = models.OrderTypeDineIn
	}
	if !req.OrderType.Valid() {
		return nil, apperror.Validation("unknown order type %q", req.OrderType)
	}

	var user *models.User
	if customer.Role == models.RoleUser {
		user = &models.User{}
		if err := s.db.WithContext(ctx).First(user, customer.ID).Error; err != nil {
			return nil, notFoundOr(err, "user %d not found", customer.ID)
		}
	}

	name := strings.TrimSpace(req.CustomerName)
	if name == "" && user != nil {
		name = user.Name
	}
	if name == "" {
		name = "Guest"
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" && user != nil {
		phone = user.Phone
	}
	if phone != "" {
		if phone, err = NormalizePhone(phone); err != nil {
			return nil, err
		}
	}

	var plan *deliveryPlan
	if req.OrderType == models.OrderTypeDelivery {
		if phone == "" {
			return nil, apperror.Validation("a phone number is required for delivery")
		}
		if plan, err = s.planDelivery(ctx, req); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var order models.Order
	err = database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		lines, err := s.carts.lines(tx, owner)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperror.Validation("cart empty")
		}

		items := make([]models.OrderItem, 0, len(lines))
		total := decimal.Zero
		for _, l := range lines {
			if l.MenuItem.ID == 0 || !l.MenuItem.Available {
				return apperror.Validation("%s is no longer available, remove it from the cart", l.MenuItem.Name)
			}
			oi := models.OrderItem{
				MenuItemID:         l.MenuItemID,
				Name:               l.MenuItem.Name,
				Quantity:           l.Quantity,
				Price:              l.MenuItem.Price,
				DiscountPercentage: l.MenuItem.DiscountPercentage,
				Size:               l.Size,
				Color:              l.Color,
			}
			items = append(items, oi)
			total = total.Add(oi.LineTotal())
		}
		if total.LessThan(s.cfg.MinOrderAmount) {
			return apperror.Validation("minimum order amount is %s", utils.FormatSom(s.cfg.MinOrderAmount))
		}

		ticketNo, err := nextTicket(tx)
		if err != nil {
			return err
		}

		var queue int64
		if err := tx.Model(&models.Order{}).Where("status = ?", models.OrderStatusWaiting).Count(&queue).Error; err != nil {
			return err
		}

		order = models.Order{
			CustomerName:  name,
			TicketNo:      ticketNo,
			OrderType:     req.OrderType,
			Status:        models.OrderStatusPending,
			CustomerPhone: phone,
			CardNumber:    strings.TrimSpace(req.CardNumber),
			Note:          strings.TrimSpace(req.Note),
			TotalAmount:   total,
			ETATime:       EstimateReady(s.cfg, queue, now),
			CreatedAt:     now,
		}
		if user != nil {
			order.UserID = &user.ID
		} else {
			order.SessionID = customer.SessionID
		}
		if plan != nil {
			order.DeliveryAddress = plan.address
			order.DeliveryDistanceKm = plan.distance
			order.DeliveryPrice = plan.price
			order.BranchID = plan.branchID
			order.DeliveryMapURL = strings.TrimSpace(req.DeliveryMapURL)
			if plan.point != nil {
				order.DeliveryLatitude = &plan.point.Lat
				order.DeliveryLongitude = &plan.point.Lon
			}
		}

		if err := tx.Omit("OrderItems", "Receipt").Create(&order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		order.OrderItems = items

		receipt := models.Receipt{
			OrderID:            order.ID,
			ReceiptNumber:      ReceiptNumber(now, ticketNo),
			TotalAmount:        total,
			CashbackPercentage: s.cfg.CashbackPercentage,
			CashbackAmount:     Cashback(total, s.cfg.CashbackPercentage),
			CreatedAt:          now,
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return err
		}
		order.Receipt = &receipt

		if err := s.carts.clear(tx, owner); err != nil {
			return err
		}
		return recordEvent(tx, order.ID, models.EventOrderCreated, customer)
	})
	if err != nil {
		return nil, err
	}

	s.carts.evictCount(ctx, owner)
	s.events.Wake()
	utils.InfoLogger.WithFields(map[string]interface{}{
		"order_id":  order.ID,
		"ticket_no": order.TicketNo,
		"type":      order.OrderType,
		"total":     order.TotalAmount.String(),
	}).Info("Order placed")
	return &order, nil
}

// nextTicket increments the shared counter and reads it back inside tx.
func nextTicket(tx *gorm.DB) (int64, error) {
	res := tx.Model(&models.Counter{}).
		Where("name = ?", models.TicketCounter).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected != 1 {
		return 0, errors.New("ticket counter row missing, run migrations")
	}
	var counter models.Counter
	if err := tx.Where("name = ?", models.TicketCounter).First(&counter).Error; err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (s *OrderService) planDelivery(ctx context.Context, req CheckoutRequest) (*deliveryPlan, error) {
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, apperror.Validation("a delivery address is required")
	}

	plan := &deliveryPlan{address: address, price: s.cfg.DeliveryBasePrice}
	if req.Latitude != nil && req.Longitude != nil {
		plan.point = &geo.Point{Lat: *req.Latitude, Lon: *req.Longitude}
	} else {
		plan.point = s.resolver.Locate(ctx, address)
	}

	origin := geo.Point{Lat: s.cfg.RestaurantLat, Lon: s.cfg.RestaurantLon}
	var branches []models.Branch
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&branches).Error; err != nil {
		return nil, err
	}
	if len(branches) > 0 {
		best := branches[0]
		if plan.point != nil {
			bestKm := math.MaxFloat64
			for _, b := range branches {
				if d := geo.DistanceKm(geo.Point{Lat: b.Latitude, Lon: b.Longitude}, *plan.point); d < bestKm {
					best, bestKm = b, d
				}
			}
		}
		plan.branchID = &best.ID
		origin = geo.Point{Lat: best.Latitude, Lon: best.Longitude}
	}

	if plan.point != nil {
		plan.distance = math.Round(geo.DistanceKm(origin, *plan.point)*10) / 10
	} else {
		plan.distance = geo.EstimateDistanceKm(address)
	}
	if plan.distance > s.cfg.MaxDeliveryDistanceKm {
		return nil, apperror.Validation("address is %.1f km away, we deliver up to %.0f km", plan.distance, s.cfg.MaxDeliveryDistanceKm)
	}
	return plan, nil
}

func recordEvent(tx *gorm.DB, orderID uint, ev models.OrderEventType, actor models.Identity) error {
	return tx.Create(&models.OrderEvent{
		OrderID:   orderID,
		EventType: ev,
		ActorType: actor.Party(),
		ActorID:   actor.PartyID(),
		CreatedAt: utcNow(),
	}).Error
}

// transition is one edge of the order state machine.
type transition struct {
	name    string
	from    []models.OrderStatus
	to      models.OrderStatus
	event   models.OrderEventType
	where   func(tx *gorm.DB) *gorm.DB
	refused string
	set     map[string]interface{}
	after   func(tx *gorm.DB, order *models.Order) error
}

// apply runs t as a single conditional UPDATE. When no row changes, the
// current state decides between NotFound and Conflict.
func (s *OrderService) apply(ctx context.Context, orderID uint, actor models.Identity, t transition) (*models.Order, error) {
	var order models.Order
	err := database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		if err := applyTransition(tx, orderID, t, s.now()); err != nil {
			return err
		}
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if t.after != nil {
			if err := t.after(tx, &order); err != nil {
				return err
			}
		}
		return recordEvent(tx, orderID, t.event, actor)
	})
	if err != nil {
		return nil, err
	}

	s.events.Wake()
	utils.InfoLogger.WithFields(map[string]interface{}{
		"order_id": orderID,
		"event":    t.event,
		"actor":    actor.Key(),
	}).Info("Order status changed")
	return &order, nil
}

func applyTransition(tx *gorm.DB, orderID uint, t transition, now time.Time) error {
	updates := map[string]interface{}{"status": t.to, "updated_at": now}
	for k, v := range t.set {
		updates[k] = v
	}

	q := tx.Model(&models.Order{}).Where("id = ? AND status IN ?", orderID, t.from)
	if t.where != nil {
		q = t.where(q)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var cur models.Order
	if err := tx.Select("id", "status", "order_type", "courier_id").First(&cur, orderID).Error; err != nil {
		return notFoundOr(err, "order %d not found", orderID)
	}
	for _, st := range t.from {
		if cur.Status == st && t.refused != "" {
			return apperror.Conflict("cannot %s order %d: %s", t.name, orderID, t.refused)
		}
	}
	return apperror.Conflict("cannot %s order %d: it is %s", t.name, orderID, cur.Status)
}

// Approve moves a pending order into the kitchen queue.
func (s *OrderService) Approve(ctx context.Context, actor models.Identity, orderID uint) (*models.Order, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, apperror.Forbidden("only the super-admin approves orders")
	}
	now := s.now()
	return s.apply(ctx, orderID, actor, transition{
		name:  "approve",
		from:  []models.OrderStatus{models.OrderStatusPending},
		to:    models.OrderStatusWaiting,
		event: models.EventOrderApproved,
		set:   map[string]interface{}{"approved_at": now},
		after: func(tx *gorm.DB, order *models.Order) error {
			ahead, err := queueAhead(tx, order)
			if err != nil {
				return err
			}
			order.ETATime = EstimateReady(s.cfg, ahead, now)
			return tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("eta_time", order.ETATime).Error
		},
	})
}

// MarkReady is the kitchen finishing an order.
func (s *OrderService) MarkReady(ctx context.Context, actor models.Identity, orderID uint) (*models.Order, error) {
	if actor.Role != models.RoleStaff {
		return nil, apperror.Forbidden("only staff mark orders ready")
	}
	return s.apply(ctx, orderID, actor, transition{
		name:  "mark ready",
		from:  []models.OrderStatus{models.OrderStatusWaiting},
		to:    models.OrderStatusReady,
		event: models.EventOrderReady,
		set:   map[string]interface{}{"ready_at": s.now()},
		after: countHandled(actor),
	})
}

// MarkServed completes a dine-in order.
func (s *OrderService) MarkServed(ctx context.Context, actor models.Identity, orderID uint) (*models.Order, error) {
	if actor.Role != models.RoleStaff {
		return nil, apperror.Forbidden("only staff serve orders")
	}
	return s.apply(ctx, orderID, actor, transition{
		name:    "serve",
		from:    []models.OrderStatus{models.OrderStatusReady},
		to:      models.OrderStatusServed,
		event:   models.EventOrderServed,
		where:   func(q *gorm.DB) *gorm.DB { return q.Where("order_type = ?", models.OrderTypeDineIn) },
		refused: "delivery orders are handed to a courier",
		set:     map[string]interface{}{"finished_at": s.now()},
		after:   countHandled(actor),
	})
}

func countHandled(actor models.Identity) func(tx *gorm.DB, order *models.Order) error {
	return func(tx *gorm.DB, _ *models.Order) error {
		return tx.Model(&models.Staff{}).Where("id = ?", actor.ID).
			UpdateColumn("handled_orders", gorm.Expr("handled_orders + 1")).Error
	}
}

// Cancel applies the cancellation rules of the acting role: staff and the
// super-admin may cancel up to ready, customers only their own orders before
// the kitchen finishes them.
func (s *OrderService) Cancel(ctx context.Context, actor models.Identity, orderID uint, reason string) (*models.Order, error) {
	t := transition{
		name:  "cancel",
		to:    models.OrderStatusCancelled,
		event: models.EventOrderCancelled,
		set: map[string]interface{}{
			"cancelled_at":  s.now(),
			"cancel_reason": strings.TrimSpace(reason),
		},
	}

	switch actor.Role {
	case models.RoleStaff, models.RoleSuperAdmin:
		t.from = []models.OrderStatus{models.OrderStatusPending, models.OrderStatusWaiting, models.OrderStatusReady}
	case models.RoleUser, models.RoleGuest, "":
		var order models.Order
		if err := s.db.WithContext(ctx).Select("id", "user_id", "session_id").First(&order, orderID).Error; err != nil {
			return nil, notFoundOr(err, "order %d not found", orderID)
		}
		if !order.OwnedBy(actor) {
			return nil, apperror.Forbidden("order %d belongs to another customer", orderID)
		}
		t.from = []models.OrderStatus{models.OrderStatusPending, models.OrderStatusWaiting}
	default:
		return nil, apperror.Forbidden("couriers cannot cancel orders")
	}
	return s.apply(ctx, orderID, actor, t)
}

// CancelByTicket is the customer cancel path keyed by ticket number.
func (s *OrderService) CancelByTicket(ctx context.Context, actor models.Identity, ticketNo int64, reason string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Select("id").Where("ticket_no = ?", ticketNo).First(&order).Error; err != nil {
		return nil, notFoundOr(err, "ticket %d not found", ticketNo)
	}
	return s.Cancel(ctx, actor, order.ID, reason)
}

// ExpireStale cancels waiting orders older than the configured expiry and
// returns how many it cancelled.
func (s *OrderService) ExpireStale(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.cfg.OrderExpiry)
	var expired []uint

	err := database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		expired = expired[:0]
		var ids []uint
		if err := tx.Model(&models.Order{}).
			Where("status = ? AND created_at < ?", models.OrderStatusWaiting, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			err := applyTransition(tx, id, transition{
				name: "expire",
				from: []models.OrderStatus{models.OrderStatusWaiting},
				to:   models.OrderStatusCancelled,
				set:  map[string]interface{}{"cancelled_at": now, "cancel_reason": expiredReason},
			}, now)
			if errors.Is(err, apperror.ErrConflict) {
				continue
			}
			if err != nil {
				return err
			}
			if err := recordEvent(tx, id, models.EventOrderCancelled, models.Identity{}); err != nil {
				return err
			}
			expired = append(expired, id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		s.events.Wake()
		utils.InfoLogger.WithField("orders", expired).Info("Expired stale waiting orders")
	}
	return len(expired), nil
}

// queueAhead counts waiting orders placed before order.
func queueAhead(tx *gorm.DB, order *models.Order) (int64, error) {
	var n int64
	err := tx.Model(&models.Order{}).
		Where("status = ? AND id <> ?", models.OrderStatusWaiting, order.ID).
		Where("(created_at < ? OR (created_at = ? AND id < ?))", order.CreatedAt, order.CreatedAt, order.ID).
		Count(&n).Error
	return n, err
}

// StatusByTicket is the customer polling view of an order.
func (s *OrderService) StatusByTicket(ctx context.Context, ticketNo int64) (*TicketStatus, error) {
	db := s.db.WithContext(ctx)
	var order models.Order
	if err := db.Where("ticket_no = ?", ticketNo).First(&order).Error; err != nil {
		return nil, notFoundOr(err, "ticket %d not found", ticketNo)
	}

	st := &TicketStatus{
		OrderID:     order.ID,
		TicketNo:    order.TicketNo,
		Status:      order.Status,
		StatusText:  order.Status.Label(),
		OrderType:   order.OrderType,
		ETA:         order.ETATime,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
		ApprovedAt:  order.ApprovedAt,
		ReadyAt:     order.ReadyAt,
		PickedUpAt:  order.PickedUpAt,
		FinishedAt:  order.FinishedAt,
		CancelledAt: order.CancelledAt,
	}
	if order.Status == models.OrderStatusWaiting {
		ahead, err := queueAhead(db, &order)
		if err != nil {
			return nil, err
		}
		st.QueuePosition = ahead + 1
	}
	return st, nil
}

func (s *OrderService) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("OrderItems").Preload("Receipt").First(&order, orderID).Error; err != nil {
		return nil, notFoundOr(err, "order %d not found", orderID)
	}
	return &order, nil
}

// GetFor returns an order if viewer may see it. Customers see only their own.
func (s *OrderService) GetFor(ctx context.Context, viewer models.Identity, orderID uint) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if viewer.IsTeam() || order.OwnedBy(viewer) {
		return order, nil
	}
	return nil, apperror.NotFound("order %d not found", orderID)
}

// List serves the staff and super-admin dashboards. Stale orders are expired
// first so the queue never shows abandoned tickets.
func (s *OrderService) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	if _, err := s.ExpireStale(ctx); err != nil {
		utils.ErrorLogger.Errorf("expire stale orders before listing: %v", err)
	}

	q := s.db.WithContext(ctx).Model(&models.Order{}).Preload("OrderItems")
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.OrderType != "" {
		q = q.Where("order_type = ?", f.OrderType)
	}
	var orders []models.Order
	err := q.Order("created_at ASC, id ASC").
		Limit(pageLimit(f.Limit, 100, 500)).
		Offset(f.Offset).
		Find(&orders).Error
	return orders, err
}

func (s *OrderService) ListForUser(ctx context.Context, userID uint, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("OrderItems").Preload("Receipt").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(pageLimit(limit, 20, 100)).
		Find(&orders).Error
	return orders, err
}

// ParseStatuses turns a comma separated query value into statuses.
func ParseStatuses(raw string) ([]models.OrderStatus, error) {
	var out []models.OrderStatus
	for _, part := range strings.Split(raw, ",") {
		p := models.OrderStatus(strings.ToLower(strings.TrimSpace(part)))
		if p == "" {
			continue
		}
		if !p.Valid() {
			return nil, apperror.Validation("unknown order status %q", part)
		}
		out = append(out, p)
	}
	return out, nil
}
