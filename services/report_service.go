package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"gorm.io/gorm"
)

// MetricsSource exposes what the event monitor has done so far.
type MetricsSource interface {
	GetMetrics() EventMetrics
}

type DashboardStats struct {
	TotalOrders    int64                        `json:"total_orders"`
	TodayOrders    int64                        `json:"today_orders"`
	TodayRevenue   decimal.Decimal              `json:"today_revenue"`
	AvgPrepMinutes float64                      `json:"avg_prep_minutes"`
	ByStatus       map[models.OrderStatus]int64 `json:"by_status"`
	PendingEvents  int64                        `json:"pending_events"`
	Events         EventMetrics                 `json:"events"`
}

type DailyReportRow struct {
	OrderID       uint               `json:"order_id"`
	TicketNo      int64              `json:"ticket_no"`
	CustomerName  string             `json:"customer_name"`
	OrderType     models.OrderType   `json:"order_type"`
	Status        models.OrderStatus `json:"status"`
	Items         int                `json:"items"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	DeliveryPrice decimal.Decimal    `json:"delivery_price"`
	CourierPrice  decimal.Decimal    `json:"courier_price"`
	CreatedAt     time.Time          `json:"created_at"`
}

type DailyReport struct {
	Date      string           `json:"date"`
	Orders    int              `json:"orders"`
	Completed int              `json:"completed"`
	Cancelled int              `json:"cancelled"`
	Revenue   decimal.Decimal  `json:"revenue"`
	Cashback  decimal.Decimal  `json:"cashback"`
	Rows      []DailyReportRow `json:"rows"`
}

var completedStatuses = []models.OrderStatus{models.OrderStatusServed, models.OrderStatusDelivered}

type ReportService struct {
	db      *gorm.DB
	metrics MetricsSource
	now     func() time.Time
}

func NewReportService(db *gorm.DB, metrics MetricsSource) *ReportService {
	return &ReportService{db: db, metrics: metrics, now: utcNow}
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// DashboardStats is the super-admin overview.
func (s *ReportService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	start, end := dayBounds(s.now())
	stats := &DashboardStats{ByStatus: map[models.OrderStatus]int64{}, TodayRevenue: decimal.Zero}

	var counts []struct {
		Status models.OrderStatus
		N      int64
	}
	if err := db.Model(&models.Order{}).Select("status, COUNT(*) AS n").Group("status").Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.N
		stats.TotalOrders += c.N
	}

	if err := db.Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&stats.TodayOrders).Error; err != nil {
		return nil, err
	}

	var today []models.Order
	if err := db.Select("id", "total_amount", "approved_at", "ready_at").
		Where("status IN ? AND created_at >= ? AND created_at < ?", completedStatuses, start, end).
		Find(&today).Error; err != nil {
		return nil, err
	}
	var prepMinutes float64
	var prepCount int
	for _, o := range today {
		stats.TodayRevenue = stats.TodayRevenue.Add(o.TotalAmount)
		if o.ApprovedAt != nil && o.ReadyAt != nil && o.ReadyAt.After(*o.ApprovedAt) {
			prepMinutes += o.ReadyAt.Sub(*o.ApprovedAt).Minutes()
			prepCount++
		}
	}
	if prepCount > 0 {
		stats.AvgPrepMinutes = prepMinutes / float64(prepCount)
	}

	if err := db.Model(&models.OrderEvent{}).Where("processed = ?", false).Count(&stats.PendingEvents).Error; err != nil {
		return nil, err
	}
	if s.metrics != nil {
		stats.Events = s.metrics.GetMetrics()
	}
	return stats, nil
}

// ParseReportDate accepts YYYY-MM-DD; empty means today.
func ParseReportDate(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.UTC(), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperror.Validation("date must look like 2006-01-02")
	}
	return day, nil
}

// DailyReport lists every order placed on day with the day's totals.
// Revenue counts completed orders only.
func (s *ReportService) DailyReport(ctx context.Context, day time.Time) (*DailyReport, error) {
	start, end := dayBounds(day)
	var orders []models.Order
	if err := s.db.WithContext(ctx).Preload("OrderItems").Preload("Receipt").
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("ticket_no ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	report := &DailyReport{
		Date:     start.Format("2006-01-02"),
		Revenue:  decimal.Zero,
		Cashback: decimal.Zero,
		Rows:     make([]DailyReportRow, 0, len(orders)),
	}
	for _, o := range orders {
		items := 0
		for _, it := range o.OrderItems {
			items += it.Quantity
		}
		report.Rows = append(report.Rows, DailyReportRow{
			OrderID:       o.ID,
			TicketNo:      o.TicketNo,
			CustomerName:  o.CustomerName,
			OrderType:     o.OrderType,
			Status:        o.Status,
			Items:         items,
			TotalAmount:   o.TotalAmount,
			DeliveryPrice: o.DeliveryPrice,
			CourierPrice:  o.CourierPrice,
			CreatedAt:     o.CreatedAt,
		})

		report.Orders++
		switch o.Status {
		case models.OrderStatusServed, models.OrderStatusDelivered:
			report.Completed++
			report.Revenue = report.Revenue.Add(o.TotalAmount)
			if o.Receipt != nil {
				report.Cashback = report.Cashback.Add(o.Receipt.CashbackAmount)
			}
		case models.OrderStatusCancelled:
			report.Cancelled++
		}
	}
	return report, nil
}
