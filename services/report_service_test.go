package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/models"
)

type fixedMetrics EventMetrics

func (m fixedMetrics) GetMetrics() EventMetrics { return EventMetrics(m) }

func TestDashboardAndDailyReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := models.StaffIdentity(seedStaff(t, f.db, "+998901000001").ID)
	plov := seedMenuItem(t, f.db, models.MenuItem{Price: decimal.NewFromInt(30000)})

	served := f.placeOrder(t, models.Guest("a"), models.OrderTypeDineIn, plov, 2)
	f.advance(t, served.ID, models.OrderStatusReady, staff)
	_, err := f.orders.MarkServed(ctx, staff, served.ID)
	require.NoError(t, err)

	cancelled := f.placeOrder(t, models.Guest("b"), models.OrderTypeDineIn, plov, 1)
	_, err = f.orders.Cancel(ctx, staff, cancelled.ID, "")
	require.NoError(t, err)

	f.placeOrder(t, models.Guest("c"), models.OrderTypeDineIn, plov, 1)

	reports := NewReportService(f.db, fixedMetrics{Processed: 4})
	stats, err := reports.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, int64(3), stats.TodayOrders)
	assert.Equal(t, int64(1), stats.ByStatus[models.OrderStatusServed])
	assert.Equal(t, int64(1), stats.ByStatus[models.OrderStatusCancelled])
	assert.Equal(t, int64(1), stats.ByStatus[models.OrderStatusPending])
	assert.True(t, stats.TodayRevenue.Equal(decimal.NewFromInt(60000)), stats.TodayRevenue.String())
	assert.Equal(t, int64(4), stats.Events.Processed)
	assert.Positive(t, stats.PendingEvents)

	report, err := reports.DailyReport(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Orders)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, report.Cancelled)
	assert.True(t, report.Revenue.Equal(decimal.NewFromInt(60000)))
	assert.True(t, report.Cashback.Equal(decimal.NewFromInt(600)), report.Cashback.String())
	require.Len(t, report.Rows, 3)
	assert.Equal(t, 2, report.Rows[0].Items)

	empty, err := reports.DailyReport(ctx, time.Now().UTC().AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Zero(t, empty.Orders)
	assert.Empty(t, empty.Rows)
}

func TestParseReportDate(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	d, err := ParseReportDate("", now)
	require.NoError(t, err)
	assert.Equal(t, now, d)

	d, err = ParseReportDate("2026-01-31", now)
	require.NoError(t, err)
	assert.Equal(t, 31, d.Day())

	_, err = ParseReportDate("31/01/2026", now)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
