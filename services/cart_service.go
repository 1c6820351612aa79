package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/cache"
	"github.com/yeremiapane/restaurant-dispatch/database"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxLineQuantity is the largest quantity one cart line may hold.
const MaxLineQuantity = 10000

// CartOwner is the user account or guest session a cart belongs to.
type CartOwner struct {
	key string
}

// OwnerFor returns the cart owner of a customer identity.
func OwnerFor(id models.Identity) (CartOwner, error) {
	switch {
	case id.Role == models.RoleUser && id.ID != 0:
		return CartOwner{key: id.Key()}, nil
	case id.IsGuest() && id.SessionID != "":
		return CartOwner{key: id.Key()}, nil
	case id.IsGuest():
		return CartOwner{}, apperror.Validation("no session, enable cookies and retry")
	}
	return CartOwner{}, apperror.Forbidden("only customers have a cart")
}

func (o CartOwner) Key() string { return o.key }

type AddToCartRequest struct {
	MenuItemID uint   `json:"menu_item_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
	Size       string `json:"size"`
	Color      string `json:"color"`
}

type CartLine struct {
	models.CartItem
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartView struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type CartService struct {
	db       *gorm.DB
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewCartService(db *gorm.DB, c cache.Cache, ttl time.Duration) *CartService {
	if c == nil {
		c = cache.NewMemory()
	}
	return &CartService{db: db, cache: c, cacheTTL: ttl}
}

// Add puts quantity of a menu item into the cart, merging with an existing
// line for the same item, size and colour.
func (s *CartService) Add(ctx context.Context, owner CartOwner, req AddToCartRequest) (*models.CartItem, error) {
	if req.Quantity <= 0 || req.Quantity > MaxLineQuantity {
		return nil, apperror.Validation("quantity must be between 1 and %d", MaxLineQuantity)
	}

	var item models.MenuItem
	if err := s.db.WithContext(ctx).First(&item, req.MenuItemID).Error; err != nil {
		return nil, notFoundOr(err, "menu item %d not found", req.MenuItemID)
	}
	if !item.Available {
		return nil, apperror.Validation("%s is not available right now", item.Name)
	}

	size, err := pickVariant(item.SizeList(), req.Size, "size", item.Name, normalizeSize)
	if err != nil {
		return nil, err
	}
	color, err := pickVariant(item.ColorList(), req.Color, "color", item.Name, normalizeColor)
	if err != nil {
		return nil, err
	}

	var line models.CartItem
	err = database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		line = models.CartItem{}
		merged, err := mergeLine(tx, owner.key, item.ID, size, color, req.Quantity)
		if err != nil {
			return err
		}
		if !merged {
			line = models.CartItem{OwnerKey: owner.key, MenuItemID: item.ID, Quantity: req.Quantity, Size: size, Color: color}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&line)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// a concurrent add created the line first
				if merged, err = mergeLine(tx, owner.key, item.ID, size, color, req.Quantity); err != nil {
					return err
				}
				if !merged {
					return apperror.Conflict("cart changed concurrently, please retry")
				}
			}
		}
		return tx.Where("owner_key = ? AND menu_item_id = ? AND size = ? AND color = ?", owner.key, item.ID, size, color).
			First(&line).Error
	})
	if err != nil {
		return nil, err
	}

	s.evictCount(ctx, owner)
	line.MenuItem = item
	return &line, nil
}

// mergeLine adds quantity to an existing line in one statement. It reports
// false when no such line exists.
func mergeLine(tx *gorm.DB, ownerKey string, itemID uint, size, color string, quantity int) (bool, error) {
	res := tx.Model(&models.CartItem{}).
		Where("owner_key = ? AND menu_item_id = ? AND size = ? AND color = ?", ownerKey, itemID, size, color).
		Where("quantity + ? <= ?", quantity, MaxLineQuantity).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", quantity),
			"updated_at": utcNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var existing int64
	if err := tx.Model(&models.CartItem{}).
		Where("owner_key = ? AND menu_item_id = ? AND size = ? AND color = ?", ownerKey, itemID, size, color).
		Count(&existing).Error; err != nil {
		return false, err
	}
	if existing > 0 {
		return false, apperror.Validation("a cart line cannot hold more than %d items", MaxLineQuantity)
	}
	return false, nil
}

// pickVariant validates a requested size/colour against what the item offers
// and returns the item's own spelling of it.
func pickVariant(allowed []string, requested, kind, itemName string, normalize func(string) string) (string, error) {
	if len(allowed) == 0 {
		return "", nil
	}
	if strings.TrimSpace(requested) == "" {
		return "", apperror.Validation("please select a %s for %s", kind, itemName)
	}
	want := normalize(requested)
	for _, a := range allowed {
		if normalize(a) == want {
			return a, nil
		}
	}
	return "", apperror.Validation("%s %q is not available for %s", kind, strings.TrimSpace(requested), itemName)
}

// normalizeSize makes "42", " 42.0 " and "42" compare equal.
func normalizeSize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}

func normalizeColor(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *CartService) lines(tx *gorm.DB, owner CartOwner) ([]models.CartItem, error) {
	var items []models.CartItem
	err := tx.Preload("MenuItem").
		Where("owner_key = ?", owner.key).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// Items returns the cart with per-line and overall totals.
func (s *CartService) Items(ctx context.Context, owner CartOwner) (*CartView, error) {
	items, err := s.lines(s.db.WithContext(ctx), owner)
	if err != nil {
		return nil, err
	}
	view := &CartView{Items: make([]CartLine, 0, len(items)), Total: decimal.Zero}
	for _, it := range items {
		unit := it.MenuItem.EffectivePrice()
		lt := unit.Mul(decimal.NewFromInt(int64(it.Quantity)))
		view.Items = append(view.Items, CartLine{CartItem: it, UnitPrice: unit, LineTotal: lt})
		view.Total = view.Total.Add(lt)
		view.Count += it.Quantity
	}
	return view, nil
}

// Total is zero for an empty cart.
func (s *CartService) Total(ctx context.Context, owner CartOwner) (decimal.Decimal, error) {
	view, err := s.Items(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return view.Total, nil
}

// Count is the number of units in the cart, served from cache when fresh.
func (s *CartService) Count(ctx context.Context, owner CartOwner) (int64, error) {
	key := cache.CartCountKey(owner.key)
	var count int64
	if cache.GetJSON(ctx, s.cache, key, &count) {
		return count, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("owner_key = ?", owner.key).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&count).Error; err != nil {
		return 0, err
	}
	if err := cache.SetJSON(ctx, s.cache, key, count, s.cacheTTL); err != nil {
		utils.InfoLogger.Warnf("cache cart count: %v", err)
	}
	return count, nil
}

func (s *CartService) Remove(ctx context.Context, owner CartOwner, cartItemID uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND owner_key = ?", cartItemID, owner.key).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("cart item %d not found", cartItemID)
	}
	s.evictCount(ctx, owner)
	return nil
}

// clear empties the cart inside the checkout transaction.
func (s *CartService) clear(tx *gorm.DB, owner CartOwner) error {
	return tx.Where("owner_key = ?", owner.key).Delete(&models.CartItem{}).Error
}

// MergeGuestCart moves the lines of a guest session into a user's cart. Lines
// already present in the user's cart are merged, up to the line limit.
func (s *CartService) MergeGuestCart(ctx context.Context, sessionID string, userID uint) error {
	if sessionID == "" {
		return nil
	}
	guest := CartOwner{key: models.Guest(sessionID).Key()}
	user := CartOwner{key: models.UserIdentity(userID).Key()}

	err := database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		var lines []models.CartItem
		if err := tx.Where("owner_key = ?", guest.key).Find(&lines).Error; err != nil {
			return err
		}
		for _, l := range lines {
			res := tx.Model(&models.CartItem{}).
				Where("owner_key = ? AND menu_item_id = ? AND size = ? AND color = ?", user.key, l.MenuItemID, l.Size, l.Color).
				Updates(map[string]interface{}{
					"quantity":   gorm.Expr("CASE WHEN quantity + ? > ? THEN ? ELSE quantity + ? END", l.Quantity, MaxLineQuantity, MaxLineQuantity, l.Quantity),
					"updated_at": utcNow(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				if err := tx.Delete(&models.CartItem{}, l.ID).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&models.CartItem{}).Where("id = ?", l.ID).Update("owner_key", user.key).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.evictCount(ctx, guest, user)
	return nil
}

func (s *CartService) evictCount(ctx context.Context, owners ...CartOwner) {
	keys := make([]string, 0, len(owners))
	for _, o := range owners {
		keys = append(keys, cache.CartCountKey(o.key))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		utils.ErrorLogger.Errorf("evict cart count: %v", err)
	}
}
