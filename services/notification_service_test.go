package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/kds"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"gorm.io/gorm"
)

func TestBroadcastVisibleToStaffCreatedLater(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	early := seedStaff(t, f.db, "+998901000001")

	n, err := f.notifications.Broadcast(ctx, models.SuperAdminIdentity(), BroadcastRequest{
		RecipientType: "staffs", Title: "Inventory", Body: "Count the rice tonight",
	})
	require.NoError(t, err)
	assert.Nil(t, n.RecipientID)
	assert.Equal(t, models.PartyStaff, n.RecipientType)

	late := seedStaff(t, f.db, "+998901000002")
	for _, s := range []models.Staff{early, late} {
		list, err := f.notifications.List(ctx, models.StaffIdentity(s.ID), false, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Inventory", list[0].Title)
		assert.False(t, list[0].Read)
	}

	courierList, err := f.notifications.List(ctx, models.CourierIdentity(1), false, 0)
	require.NoError(t, err)
	assert.Empty(t, courierList)

	pushed := f.hub.events(kds.EventNotification)
	require.Len(t, pushed, 1)
	assert.Equal(t, models.PartyStaff, pushed[0].Audience.Party)
}

func TestBroadcastRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.notifications.Broadcast(ctx, models.StaffIdentity(1), BroadcastRequest{RecipientType: "all", Title: "x", Body: "y"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.notifications.Broadcast(ctx, models.SuperAdminIdentity(), BroadcastRequest{RecipientType: "robots", Title: "x", Body: "y"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	id := uint(3)
	_, err = f.notifications.Broadcast(ctx, models.SuperAdminIdentity(), BroadcastRequest{RecipientType: "all", RecipientID: &id, Title: "x", Body: "y"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.notifications.Broadcast(ctx, models.SuperAdminIdentity(), BroadcastRequest{RecipientType: "all", Title: " ", Body: "y"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestMarkReadSemantics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := models.StaffIdentity(seedStaff(t, f.db, "+998901000001").ID)
	b := models.StaffIdentity(seedStaff(t, f.db, "+998901000002").ID)
	admin := models.SuperAdminIdentity()

	group, err := f.notifications.Broadcast(ctx, admin, BroadcastRequest{RecipientType: "staff", Title: "Shift", Body: "Meeting at 9"})
	require.NoError(t, err)
	direct, err := f.notifications.Broadcast(ctx, admin, BroadcastRequest{RecipientType: "staff", RecipientID: &a.ID, Title: "You", Body: "Come early"})
	require.NoError(t, err)
	everyone, err := f.notifications.Broadcast(ctx, admin, BroadcastRequest{RecipientType: "all", Title: "Holiday", Body: "Closed Monday"})
	require.NoError(t, err)

	count, err := f.notifications.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	count, err = f.notifications.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, f.notifications.MarkRead(ctx, a, group.ID))
	require.NoError(t, f.notifications.MarkRead(ctx, a, group.ID), "marking twice is harmless")
	require.NoError(t, f.notifications.MarkRead(ctx, a, direct.ID))

	count, err = f.notifications.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = f.notifications.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "a colleague reading a broadcast does not hide it")

	err = f.notifications.MarkRead(ctx, b, direct.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "not addressed to b")

	unread, err := f.notifications.List(ctx, a, true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, everyone.ID, unread[0].ID)

	changed, err := f.notifications.MarkAllRead(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	count, err = f.notifications.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = f.notifications.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = f.notifications.List(ctx, models.Guest("g"), false, 0)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestPlanFanOut(t *testing.T) {
	userID := uint(4)
	delivery := models.Order{ID: 1, TicketNo: 12, OrderType: models.OrderTypeDelivery, UserID: &userID, Status: models.OrderStatusReady}
	dineIn := models.Order{ID: 2, TicketNo: 13, OrderType: models.OrderTypeDineIn}

	parties := func(ns []models.Notification) []models.PartyType {
		var out []models.PartyType
		for _, n := range ns {
			out = append(out, n.RecipientType)
		}
		return out
	}

	tests := []struct {
		name  string
		event models.OrderEventType
		order models.Order
		want  []models.PartyType
	}{
		{"created", models.EventOrderCreated, delivery, []models.PartyType{models.PartySuperAdmin, models.PartyUsers}},
		{"approved", models.EventOrderApproved, delivery, []models.PartyType{models.PartyStaff, models.PartyUsers}},
		{"ready delivery", models.EventOrderReady, delivery, []models.PartyType{models.PartyCouriers, models.PartyUsers}},
		{"ready dine-in guest", models.EventOrderReady, dineIn, nil},
		{"on way", models.EventOrderOnWay, delivery, []models.PartyType{models.PartyUsers}},
		{"delivered", models.EventOrderDelivered, delivery, []models.PartyType{models.PartyUsers}},
		{"cancelled guest", models.EventOrderCancelled, dineIn, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := planFanOut(models.OrderEvent{OrderID: tt.order.ID, EventType: tt.event}, tt.order)
			assert.Equal(t, tt.want, parties(got))
			for _, n := range got {
				require.NotNil(t, n.OrderID)
				assert.Equal(t, tt.order.ID, *n.OrderID)
			}
		})
	}
}

func TestEventMonitorFansOutOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := seedUser(t, f.db, "+998935550011")
	plov := seedMenuItem(t, f.db, models.MenuItem{})
	order := f.placeOrder(t, models.UserIdentity(user.ID), models.OrderTypeDineIn, plov, 1)
	_, err := f.orders.Approve(ctx, models.SuperAdminIdentity(), order.ID)
	require.NoError(t, err)

	n, err := f.monitor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var pending int64
	f.db.Model(&models.OrderEvent{}).Where("processed = ?", false).Count(&pending)
	assert.Zero(t, pending)

	mine, err := f.notifications.List(ctx, models.UserIdentity(user.ID), false, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	admin, err := f.notifications.List(ctx, models.SuperAdminIdentity(), false, 0)
	require.NoError(t, err)
	assert.Len(t, admin, 1)
	staff, err := f.notifications.List(ctx, models.StaffIdentity(1), false, 0)
	require.NoError(t, err)
	assert.Len(t, staff, 1)

	n, err = f.monitor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is delivered twice")

	assert.NotEmpty(t, f.hub.events(kds.EventOrderUpdate))
	assert.Equal(t, int64(2), f.monitor.GetMetrics().Processed)
}

func TestEventMonitorDeadLetters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.monitor.MaxAttempts = 2
	plov := seedMenuItem(t, f.db, models.MenuItem{})
	order := f.placeOrder(t, models.Guest("g"), models.OrderTypeDineIn, plov, 1)

	boom := errors.New("notifications table unavailable")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_notifications", func(d *gorm.DB) {
		if d.Statement.Schema != nil && d.Statement.Schema.Table == "notifications" {
			_ = d.AddError(boom)
		}
	}))

	for i := 0; i < 2; i++ {
		n, err := f.monitor.ProcessPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	var ev models.OrderEvent
	require.NoError(t, f.db.Where("order_id = ?", order.ID).First(&ev).Error)
	assert.True(t, ev.Processed, "dead-lettered")
	assert.Equal(t, 2, ev.Attempts)
	assert.Contains(t, ev.LastError, "unavailable")

	var notifications int64
	f.db.Model(&models.Notification{}).Count(&notifications)
	assert.Zero(t, notifications)

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status, "the order change stays committed")

	m := f.monitor.GetMetrics()
	assert.Equal(t, int64(1), m.Failed)
	assert.Equal(t, int64(1), m.DeadLettered)
}

func TestEventMonitorStartStop(t *testing.T) {
	f := newFixture(t)
	f.monitor.Stop()

	g := newFixture(t)
	g.monitor.Start()
	g.monitor.Wake()
	g.monitor.Stop()
	g.monitor.Stop()
}
