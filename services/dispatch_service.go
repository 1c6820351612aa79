package services

import (
	"context"
	"time"

	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/config"
	"github.com/yeremiapane/restaurant-dispatch/database"
	"github.com/yeremiapane/restaurant-dispatch/geo"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"gorm.io/gorm"
)

// DispatchService hands ready delivery orders to couriers.
type DispatchService struct {
	db     *gorm.DB
	cfg    config.Business
	events Waker
	now    func() time.Time
}

func NewDispatchService(db *gorm.DB, cfg config.Business, events Waker) *DispatchService {
	if events == nil {
		events = noopWaker{}
	}
	return &DispatchService{db: db, cfg: cfg, events: events, now: utcNow}
}

// Available lists ready delivery orders nobody has claimed, oldest first.
func (s *DispatchService) Available(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("OrderItems").
		Where("status = ? AND order_type = ? AND courier_id IS NULL", models.OrderStatusReady, models.OrderTypeDelivery).
		Order("ready_at ASC, id ASC").
		Find(&orders).Error
	return orders, err
}

// Claim assigns an order to the courier. Of two couriers racing for the same
// order exactly one wins; the other gets a ConflictError.
func (s *DispatchService) Claim(ctx context.Context, courierID, orderID uint) (*models.Order, error) {
	actor := models.CourierIdentity(courierID)
	var order models.Order

	err := database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		var courier models.Courier
		if err := tx.Select("id").First(&courier, courierID).Error; err != nil {
			return notFoundOr(err, "courier %d not found", courierID)
		}

		var cur models.Order
		if err := tx.Select("id", "delivery_distance_km", "delivery_address").First(&cur, orderID).Error; err != nil {
			return notFoundOr(err, "order %d not found", orderID)
		}
		distance := cur.DeliveryDistanceKm
		if distance <= 0 {
			distance = geo.EstimateDistanceKm(cur.DeliveryAddress)
		}
		price, minutes := CourierQuote(s.cfg, distance)
		now := s.now()

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND order_type = ? AND courier_id IS NULL",
				orderID, models.OrderStatusReady, models.OrderTypeDelivery).
			Updates(map[string]interface{}{
				"status":               models.OrderStatusOnWay,
				"courier_id":           courierID,
				"courier_price":        price,
				"courier_time_minutes": minutes,
				"picked_up_at":         now,
				"updated_at":           now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return claimConflict(tx, orderID)
		}

		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		return recordEvent(tx, orderID, models.EventOrderOnWay, actor)
	})
	if err != nil {
		return nil, err
	}

	s.events.Wake()
	utils.InfoLogger.WithFields(map[string]interface{}{
		"order_id":   orderID,
		"courier_id": courierID,
		"price":      order.CourierPrice.String(),
		"minutes":    order.CourierTimeMinutes,
	}).Info("Order claimed")
	return &order, nil
}

func claimConflict(tx *gorm.DB, orderID uint) error {
	var cur models.Order
	if err := tx.Select("id", "status", "order_type", "courier_id").First(&cur, orderID).Error; err != nil {
		return notFoundOr(err, "order %d not found", orderID)
	}
	switch {
	case cur.CourierID != nil:
		return apperror.Conflict("order %d already taken by another courier", orderID)
	case cur.OrderType != models.OrderTypeDelivery:
		return apperror.Conflict("order %d is not a delivery order", orderID)
	}
	return apperror.Conflict("cannot claim order %d: it is %s", orderID, cur.Status)
}

// Deliver completes an order for the courier that carries it.
func (s *DispatchService) Deliver(ctx context.Context, courierID, orderID uint) (*models.Order, error) {
	actor := models.CourierIdentity(courierID)
	var order models.Order

	err := database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		now := s.now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND courier_id = ?", orderID, models.OrderStatusOnWay, courierID).
			Updates(map[string]interface{}{
				"status":      models.OrderStatusDelivered,
				"finished_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			var cur models.Order
			if err := tx.Select("id", "status", "courier_id").First(&cur, orderID).Error; err != nil {
				return notFoundOr(err, "order %d not found", orderID)
			}
			if cur.CourierID != nil && *cur.CourierID != courierID {
				return apperror.Forbidden("order %d is assigned to another courier", orderID)
			}
			return apperror.Conflict("cannot deliver order %d: it is %s", orderID, cur.Status)
		}

		if err := tx.Model(&models.Courier{}).Where("id = ?", courierID).
			UpdateColumn("completed_deliveries", gorm.Expr("completed_deliveries + 1")).Error; err != nil {
			return err
		}
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		return recordEvent(tx, orderID, models.EventOrderDelivered, actor)
	})
	if err != nil {
		return nil, err
	}

	s.events.Wake()
	utils.InfoLogger.WithFields(map[string]interface{}{
		"order_id":   orderID,
		"courier_id": courierID,
	}).Info("Order delivered")
	return &order, nil
}

// Active lists the orders the courier is carrying now.
func (s *DispatchService) Active(ctx context.Context, courierID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("OrderItems").
		Where("courier_id = ? AND status = ?", courierID, models.OrderStatusOnWay).
		Order("picked_up_at ASC").
		Find(&orders).Error
	return orders, err
}

func (s *DispatchService) History(ctx context.Context, courierID uint, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("courier_id = ? AND status = ?", courierID, models.OrderStatusDelivered).
		Order("finished_at DESC").
		Limit(pageLimit(limit, 20, 100)).
		Find(&orders).Error
	return orders, err
}
