package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dispatch/cache"
	"github.com/yeremiapane/restaurant-dispatch/config"
	"github.com/yeremiapane/restaurant-dispatch/database"
	"github.com/yeremiapane/restaurant-dispatch/kds"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// setupTestDB opens a private in-memory sqlite database. One connection makes
// concurrent goroutines queue the way row locks would make them.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.Database{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

type sentMessage struct {
	Audience kds.Audience
	Message  kds.Message
}

// recordingPusher stands in for the websocket hub.
type recordingPusher struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (p *recordingPusher) SendTo(a kds.Audience, m kds.Message) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMessage{Audience: a, Message: m})
	return 1
}

func (p *recordingPusher) events(event string) []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []sentMessage
	for _, s := range p.sent {
		if s.Message.Event == event {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	db            *gorm.DB
	cfg           config.Business
	hub           *recordingPusher
	carts         *CartService
	orders        *OrderService
	dispatch      *DispatchService
	notifications *NotificationService
	chats         *ChatService
	monitor       *EventMonitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	cfg := config.DefaultBusiness()
	hub := &recordingPusher{}
	notifications := NewNotificationService(db, hub)
	monitor := NewEventMonitor(db, notifications, hub)
	carts := NewCartService(db, cache.NewMemory(), time.Minute)
	return &fixture{
		db:            db,
		cfg:           cfg,
		hub:           hub,
		carts:         carts,
		orders:        NewOrderService(db, cfg, carts, nil, monitor),
		dispatch:      NewDispatchService(db, cfg, monitor),
		notifications: notifications,
		chats:         NewChatService(db, hub),
		monitor:       monitor,
	}
}

func seedMenuItem(t *testing.T, db *gorm.DB, item models.MenuItem) models.MenuItem {
	t.Helper()
	if item.Name == "" {
		item.Name = "Plov"
	}
	if item.Price.IsZero() {
		item.Price = decimal.NewFromInt(30000)
	}
	item.Available = true
	require.NoError(t, db.Create(&item).Error)
	return item
}

func hashed(t *testing.T, raw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func seedUser(t *testing.T, db *gorm.DB, phone string) models.User {
	t.Helper()
	u := models.User{Name: "Aziz", Phone: phone, Password: hashed(t, "secret1")}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedStaff(t *testing.T, db *gorm.DB, phone string) models.Staff {
	t.Helper()
	s := models.Staff{FirstName: "Dilnoza", Phone: phone, Password: hashed(t, "secret1")}
	require.NoError(t, db.Create(&s).Error)
	return s
}

func seedCourier(t *testing.T, db *gorm.DB, phone string) models.Courier {
	t.Helper()
	c := models.Courier{FirstName: "Jasur", Phone: phone, Password: hashed(t, "secret1")}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// placeOrder fills a guest cart and checks it out.
func (f *fixture) placeOrder(t *testing.T, customer models.Identity, orderType models.OrderType, item models.MenuItem, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()
	owner, err := OwnerFor(customer)
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, owner, AddToCartRequest{MenuItemID: item.ID, Quantity: qty})
	require.NoError(t, err)

	req := CheckoutRequest{OrderType: orderType}
	if orderType == models.OrderTypeDelivery {
		req.Phone = "901234567"
		req.Address = "Chilonzor 5"
	}
	order, err := f.orders.Checkout(ctx, customer, req)
	require.NoError(t, err)
	return order
}

// advance drives an order through approval and the kitchen.
func (f *fixture) advance(t *testing.T, orderID uint, to models.OrderStatus, staff models.Identity) {
	t.Helper()
	ctx := context.Background()
	_, err := f.orders.Approve(ctx, models.SuperAdminIdentity(), orderID)
	require.NoError(t, err)
	if to == models.OrderStatusWaiting {
		return
	}
	_, err = f.orders.MarkReady(ctx, staff, orderID)
	require.NoError(t, err)
}
