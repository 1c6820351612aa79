package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/cache"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type MenuItemRequest struct {
	Name               string          `json:"name" binding:"required"`
	Category           string          `json:"category"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Available          *bool           `json:"available"`
	Sizes              []string        `json:"sizes"`
	Colors             []string        `json:"colors"`
	Description        string          `json:"description"`
	ImageURL           string          `json:"image_url"`
}

type MenuService struct {
	db       *gorm.DB
	cache    cache.Cache
	cacheTTL time.Duration
	group    singleflight.Group
}

func NewMenuService(db *gorm.DB, c cache.Cache, ttl time.Duration) *MenuService {
	if c == nil {
		c = cache.NewMemory()
	}
	return &MenuService{db: db, cache: c, cacheTTL: ttl}
}

// Active lists the available menu items. Concurrent misses share one query.
func (s *MenuService) Active(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if cache.GetJSON(ctx, s.cache, cache.KeyActiveMenu, &items) {
		return items, nil
	}

	v, err, _ := s.group.Do(cache.KeyActiveMenu, func() (interface{}, error) {
		var fresh []models.MenuItem
		if err := s.db.WithContext(ctx).
			Where("available = ?", true).
			Order("category ASC, name ASC, id ASC").
			Find(&fresh).Error; err != nil {
			return nil, err
		}
		if err := cache.SetJSON(ctx, s.cache, cache.KeyActiveMenu, fresh, s.cacheTTL); err != nil {
			utils.InfoLogger.Warnf("cache active menu: %v", err)
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.MenuItem), nil
}

func (s *MenuService) Get(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFoundOr(err, "menu item %d not found", id)
	}
	return &item, nil
}

func validatePricing(price, discount decimal.Decimal) error {
	if !price.IsPositive() {
		return apperror.Validation("price must be positive")
	}
	if discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
		return apperror.Validation("discount must be between 0 and 100")
	}
	return nil
}

// Create adds a menu item. Items are available unless the request says otherwise.
func (s *MenuService) Create(ctx context.Context, req MenuItemRequest) (*models.MenuItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("name is required")
	}
	if err := validatePricing(req.Price, req.DiscountPercentage); err != nil {
		return nil, err
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		category = "food"
	}
	available := req.Available == nil || *req.Available

	item := models.MenuItem{
		Name:               name,
		Category:           category,
		Price:              req.Price,
		DiscountPercentage: req.DiscountPercentage,
		Available:          available,
		Sizes:              strings.Join(req.Sizes, ","),
		Colors:             strings.Join(req.Colors, ","),
		Description:        strings.TrimSpace(req.Description),
		ImageURL:           strings.TrimSpace(req.ImageURL),
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	s.evict(ctx)
	utils.InfoLogger.WithField("menu_item_id", item.ID).Info("Menu item created")
	return &item, nil
}

// UpdatePrice changes list price and discount. Placed orders keep their
// snapshot.
func (s *MenuService) UpdatePrice(ctx context.Context, id uint, price, discount decimal.Decimal) (*models.MenuItem, error) {
	if err := validatePricing(price, discount); err != nil {
		return nil, err
	}
	return s.update(ctx, id, map[string]interface{}{"price": price, "discount_percentage": discount})
}

// SetAvailability is the menu toggle. The cached listing is evicted before it
// returns.
func (s *MenuService) SetAvailability(ctx context.Context, id uint, available bool) (*models.MenuItem, error) {
	return s.update(ctx, id, map[string]interface{}{"available": available})
}

func (s *MenuService) update(ctx context.Context, id uint, updates map[string]interface{}) (*models.MenuItem, error) {
	updates["updated_at"] = utcNow()
	res := s.db.WithContext(ctx).Model(&models.MenuItem{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperror.NotFound("menu item %d not found", id)
	}
	s.evict(ctx)
	return s.Get(ctx, id)
}

func (s *MenuService) evict(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.KeyActiveMenu); err != nil {
		utils.ErrorLogger.Errorf("evict menu cache: %v", err)
	}
}
