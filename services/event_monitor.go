package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yeremiapane/restaurant-dispatch/database"
	"github.com/yeremiapane/restaurant-dispatch/kds"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"gorm.io/gorm"
)

// EventMetrics counts what the monitor has done since start.
type EventMetrics struct {
	Processed    int64 `json:"processed"`
	Failed       int64 `json:"failed"`
	DeadLettered int64 `json:"dead_lettered"`
}

var errEventTaken = errors.New("event already processed")

// EventMonitor drains the order event outbox into notifications and live
// pushes. Delivery is at least once: an event is marked processed in the same
// transaction that writes its notifications.
type EventMonitor struct {
	DB          *gorm.DB
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
	StopChan    chan struct{}

	notifications *NotificationService
	hub           Pusher
	wake          chan struct{}
	done          chan struct{}
	startOnce     sync.Once
	stopOnce      sync.Once
	started       atomic.Bool

	mutex   sync.Mutex
	metrics EventMetrics
}

func NewEventMonitor(db *gorm.DB, notifications *NotificationService, hub Pusher) *EventMonitor {
	if hub == nil {
		hub = noopPusher{}
	}
	return &EventMonitor{
		DB:            db,
		Interval:      1 * time.Second,
		MaxAttempts:   5,
		BatchSize:     100,
		StopChan:      make(chan struct{}),
		notifications: notifications,
		hub:           hub,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

func (m *EventMonitor) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		go m.run()
		utils.InfoLogger.WithField("interval", m.Interval).Info("Event monitor started")
	})
}

func (m *EventMonitor) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-m.StopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ticker.C:
		case <-m.wake:
		case <-m.StopChan:
			return
		}
		if _, err := m.ProcessPending(ctx); err != nil && ctx.Err() == nil {
			utils.ErrorLogger.Errorf("Error processing order events: %v", err)
		}
	}
}

// Stop ends the loop, cancelling the batch in flight, and waits for it.
func (m *EventMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.StopChan)
	})
	if m.started.Load() {
		<-m.done
	}
}

// Wake asks for a drain without waiting for the next tick.
func (m *EventMonitor) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// ProcessPending handles one batch of unprocessed events, oldest first, and
// returns how many were delivered.
func (m *EventMonitor) ProcessPending(ctx context.Context) (int, error) {
	var events []models.OrderEvent
	if err := m.DB.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at ASC, id ASC").
		Limit(m.BatchSize).
		Find(&events).Error; err != nil {
		return 0, err
	}

	delivered := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		err := m.processEvent(ctx, ev)
		switch {
		case err == nil:
			delivered++
			m.count(func(x *EventMetrics) { x.Processed++ })
		case errors.Is(err, errEventTaken):
		default:
			m.recordFailure(ctx, ev, err)
		}
	}
	return delivered, nil
}

func (m *EventMonitor) processEvent(ctx context.Context, ev models.OrderEvent) error {
	var order models.Order
	var written []models.Notification

	err := database.WithRetry(ctx, m.DB, func(tx *gorm.DB) error {
		written = nil
		if err := tx.First(&order, ev.OrderID).Error; err != nil {
			return err
		}
		var err error
		if written, err = m.notifications.FanOut(tx, ev, order); err != nil {
			return err
		}
		now := utcNow()
		res := tx.Model(&models.OrderEvent{}).
			Where("id = ? AND processed = ?", ev.ID, false).
			Updates(map[string]interface{}{"processed": true, "processed_at": now, "attempts": gorm.Expr("attempts + 1")})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errEventTaken
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.notifications.Push(written)
	m.pushOrder(order)
	return nil
}

// pushOrder tells the dashboards that care about the order's new state.
func (m *EventMonitor) pushOrder(order models.Order) {
	msg := kds.Message{Event: kds.EventOrderUpdate, Data: order}
	m.hub.SendTo(kds.Audience{Party: models.PartySuperAdmin}, msg)

	switch order.Status {
	case models.OrderStatusWaiting, models.OrderStatusReady, models.OrderStatusServed, models.OrderStatusCancelled:
		m.hub.SendTo(kds.Audience{Party: models.PartyStaff}, msg)
	}
	if order.OrderType == models.OrderTypeDelivery {
		switch {
		case order.Status == models.OrderStatusReady:
			m.hub.SendTo(kds.Audience{Party: models.PartyCouriers}, msg)
		case order.CourierID != nil:
			m.hub.SendTo(kds.Audience{Party: models.PartyCouriers, ID: order.CourierID}, msg)
		}
	}
	if order.UserID != nil {
		m.hub.SendTo(kds.Audience{Party: models.PartyUsers, ID: order.UserID}, msg)
	}
}

// recordFailure counts a failed attempt and dead-letters the event once it
// has used up its attempts. The order change itself is never touched.
func (m *EventMonitor) recordFailure(ctx context.Context, ev models.OrderEvent, cause error) {
	attempts := ev.Attempts + 1
	updates := map[string]interface{}{"attempts": attempts, "last_error": cause.Error()}
	dead := attempts >= m.MaxAttempts
	if dead {
		updates["processed"] = true
		updates["processed_at"] = utcNow()
	}

	if err := m.DB.WithContext(ctx).Model(&models.OrderEvent{}).
		Where("id = ? AND processed = ?", ev.ID, false).
		Updates(updates).Error; err != nil {
		utils.ErrorLogger.Errorf("Error recording failure of event %d: %v", ev.ID, err)
	}

	fields := map[string]interface{}{"event_id": ev.ID, "order_id": ev.OrderID, "event": ev.EventType, "attempts": attempts}
	if dead {
		m.count(func(x *EventMetrics) { x.DeadLettered++ })
		utils.ErrorLogger.WithFields(fields).Errorf("Order event dead-lettered: %v", cause)
		return
	}
	m.count(func(x *EventMetrics) { x.Failed++ })
	utils.InfoLogger.WithFields(fields).Warnf("Order event failed, will retry: %v", cause)
}

func (m *EventMonitor) count(fn func(*EventMetrics)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	fn(&m.metrics)
}

func (m *EventMonitor) GetMetrics() EventMetrics {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.metrics
}
