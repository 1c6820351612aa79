package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/models"
)

func TestOwnerFor(t *testing.T) {
	_, err := OwnerFor(models.Guest(""))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = OwnerFor(models.StaffIdentity(1))
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	o, err := OwnerFor(models.UserIdentity(7))
	require.NoError(t, err)
	assert.Equal(t, "users:7", o.Key())

	o, err = OwnerFor(models.Guest("abc"))
	require.NoError(t, err)
	assert.Equal(t, "guest:abc", o.Key())
}

func TestCartAddMergesSameVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shoe := seedMenuItem(t, f.db, models.MenuItem{Name: "Sneaker", Price: decimal.NewFromInt(100000), Sizes: "41,42,43"})
	owner, _ := OwnerFor(models.Guest("s1"))

	_, err := f.carts.Add(ctx, owner, AddToCartRequest{MenuItemID: shoe.ID, Quantity: 1, Size: "42"})
	require.NoError(t, err)
	line, err := f.carts.Add(ctx, owner, AddToCartRequest{MenuItemID: shoe.ID, Quantity: 2, Size: " 42.0 "})
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, "42", line.Size)

	_, err = f.carts.Add(ctx, owner, AddToCartRequest{MenuItemID: shoe.ID, Quantity: 1, Size: "43"})
	require.NoError(t, err)

	view, err := f.carts.Items(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 4, view.Count)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(400000)))
}

func TestCartAddValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shoe := seedMenuItem(t, f.db, models.MenuItem{Name: "Sneaker", Sizes: "42"})
	owner, _ := OwnerFor(models.Guest("s1"))

	tests := []struct {
		name string
		req  AddToCartRequest
		kind error
	}{
		{"missing item", AddToCartRequest{MenuItemID: 999, Quantity: 1}, apperror.ErrNotFound},
		{"zero quantity", AddToCartRequest{MenuItemID: shoe.ID, Quantity: 0, Size: "42"}, apperror.ErrValidation},
		{"too many", AddToCartRequest{MenuItemID: shoe.ID, Quantity: MaxLineQuantity + 1, Size: "42"}, apperror.ErrValidation},
		{"size required", AddToCartRequest{MenuItemID: shoe.ID, Quantity: 1}, apperror.ErrValidation},
		{"unknown size", AddToCartRequest{MenuItemID: shoe.ID, Quantity: 1, Size: "44"}, apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.carts.Add(ctx, owner, tt.req)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	require.NoError(t, f.db.Model(&models.MenuItem{}).Where("id = ?", shoe.ID).Update("available", false).Error)
	_, err := f.carts.Add(ctx, owner, AddToCartRequest{MenuItemID: shoe.ID, Quantity: 1, Size: "42"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCartMergeRespectsLineLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := seedMenuItem(t, f.db, models.MenuItem{})
	owner, _ := OwnerFor(models.Guest("s1"))

	_, err := f.carts.Add(ctx, owner, AddToCartRequest{MenuItemID: item.ID, Quantity: MaxLineQuantity})
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, owner, AddToCartRequest{MenuItemID: item.ID, Quantity: 1})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	view, err := f.carts.Items(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, MaxLineQuantity, view.Count)
}

func TestCartColorIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := seedMenuItem(t, f.db, models.MenuItem{Name: "Cap", Colors: "Red,Blue"})
	owner, _ := OwnerFor(models.Guest("s1"))

	line, err := f.carts.Add(ctx, owner, AddToCartRequest{MenuItemID: item.ID, Quantity: 1, Color: "RED"})
	require.NoError(t, err)
	assert.Equal(t, "Red", line.Color)
}

func TestCartTotalEmptyAndCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := OwnerFor(models.Guest("empty"))

	total, err := f.carts.Total(ctx, owner)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	item := seedMenuItem(t, f.db, models.MenuItem{Price: decimal.NewFromInt(10000), DiscountPercentage: decimal.NewFromInt(10)})
	count, err := f.carts.Count(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = f.carts.Add(ctx, owner, AddToCartRequest{MenuItemID: item.ID, Quantity: 3})
	require.NoError(t, err)
	count, err = f.carts.Count(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "adding evicts the cached count")

	total, err = f.carts.Total(ctx, owner)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(27000)), total.String())
}

func TestCartRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := seedMenuItem(t, f.db, models.MenuItem{})
	alice, _ := OwnerFor(models.Guest("alice"))
	bob, _ := OwnerFor(models.Guest("bob"))

	line, err := f.carts.Add(ctx, alice, AddToCartRequest{MenuItemID: item.ID, Quantity: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, f.carts.Remove(ctx, bob, line.ID), apperror.ErrNotFound)
	require.NoError(t, f.carts.Remove(ctx, alice, line.ID))
	assert.ErrorIs(t, f.carts.Remove(ctx, alice, line.ID), apperror.ErrNotFound)
}

func TestMergeGuestCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plov := seedMenuItem(t, f.db, models.MenuItem{Name: "Plov"})
	tea := seedMenuItem(t, f.db, models.MenuItem{Name: "Tea", Price: decimal.NewFromInt(5000)})
	user := seedUser(t, f.db, "+998901112233")

	guest, _ := OwnerFor(models.Guest("sess"))
	account, _ := OwnerFor(models.UserIdentity(user.ID))

	_, err := f.carts.Add(ctx, account, AddToCartRequest{MenuItemID: plov.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, guest, AddToCartRequest{MenuItemID: plov.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, guest, AddToCartRequest{MenuItemID: tea.ID, Quantity: 4})
	require.NoError(t, err)

	require.NoError(t, f.carts.MergeGuestCart(ctx, "sess", user.ID))

	view, err := f.carts.Items(ctx, account)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	qty := map[uint]int{}
	for _, l := range view.Items {
		qty[l.MenuItemID] = l.Quantity
	}
	assert.Equal(t, 3, qty[plov.ID])
	assert.Equal(t, 4, qty[tea.ID])

	left, err := f.carts.Items(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, left.Items)
}
