package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/config"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

func newAuth(f *fixture) (*AuthService, *utils.TokenIssuer) {
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)
	return NewAuthService(f.db, tokens, config.SuperAdmin{Username: "boss", Password: "s3cret"}, f.carts), tokens
}

func TestRegisterAndLoginUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth, tokens := newAuth(f)

	user, err := auth.RegisterUser(ctx, RegisterRequest{Name: "Aziz", Phone: "90 111 22 33", Password: "secret1", Email: "Aziz@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "+998901112233", user.Phone)
	require.NotNil(t, user.Email)
	assert.Equal(t, "aziz@example.com", *user.Email)

	_, err = auth.RegisterUser(ctx, RegisterRequest{Name: "Other", Phone: "+998901112233", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	_, err = auth.RegisterUser(ctx, RegisterRequest{Name: "Short", Phone: "+998901112244", Password: "123"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	plov := seedMenuItem(t, f.db, models.MenuItem{})
	guestOwner, _ := OwnerFor(models.Guest("before-login"))
	_, err = f.carts.Add(ctx, guestOwner, AddToCartRequest{MenuItemID: plov.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = auth.LoginUser(ctx, LoginRequest{Phone: "901112233", Password: "wrong"}, "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	_, err = auth.LoginUser(ctx, LoginRequest{Phone: "901119999", Password: "secret1"}, "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	res, err := auth.LoginUser(ctx, LoginRequest{Phone: "901112233", Password: "secret1"}, "before-login")
	require.NoError(t, err)
	id, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.UserIdentity(user.ID), id)

	userOwner, _ := OwnerFor(id)
	count, err := f.carts.Count(ctx, userOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "guest cart moved into the account")
}

func TestTeamLoginAccruesHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth, tokens := newAuth(f)
	staff := seedStaff(t, f.db, "+998901000001")
	courier := seedCourier(t, f.db, "+998902000001")

	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return now }

	threeHoursAgo := now.Add(-3 * time.Hour)
	require.NoError(t, f.db.Model(&models.Staff{}).Where("id = ?", staff.ID).Update("last_activity", threeHoursAgo).Error)
	twoDaysAgo := now.Add(-48 * time.Hour)
	require.NoError(t, f.db.Model(&models.Courier{}).Where("id = ?", courier.ID).Update("last_activity", twoDaysAgo).Error)

	res, err := auth.LoginStaff(ctx, LoginRequest{Phone: "+998901000001", Password: "secret1"})
	require.NoError(t, err)
	id, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.StaffIdentity(staff.ID), id)

	var s models.Staff
	require.NoError(t, f.db.First(&s, staff.ID).Error)
	assert.InDelta(t, 3.0, s.WorkedHours, 0.001)

	_, err = auth.LoginCourier(ctx, LoginRequest{Phone: "+998902000001", Password: "secret1"})
	require.NoError(t, err)
	var c models.Courier
	require.NoError(t, f.db.First(&c, courier.ID).Error)
	assert.InDelta(t, MaxShiftHours, c.WorkedHours, 0.001)

	_, err = auth.LoginCourier(ctx, LoginRequest{Phone: "+998902000001", Password: "nope"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	_, err = auth.LoginStaff(ctx, LoginRequest{Phone: "+998902000001", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized, "a courier is not staff")
}

func TestAccruedHours(t *testing.T) {
	now := time.Now()
	assert.Zero(t, AccruedHours(nil, now))
	future := now.Add(time.Hour)
	assert.Zero(t, AccruedHours(&future, now))
	half := now.Add(-30 * time.Minute)
	assert.InDelta(t, 0.5, AccruedHours(&half, now), 0.0001)
	old := now.Add(-20 * time.Hour)
	assert.Equal(t, MaxShiftHours, AccruedHours(&old, now))
}

func TestLoginSuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth, tokens := newAuth(f)

	res, err := auth.LoginSuperAdmin(ctx, SuperAdminLoginRequest{Username: "boss", Password: "s3cret"})
	require.NoError(t, err)
	id, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, id.Role)

	_, err = auth.LoginSuperAdmin(ctx, SuperAdminLoginRequest{Username: "boss", Password: "guess"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	disabled := NewAuthService(f.db, tokens, config.SuperAdmin{Username: "boss"}, nil)
	_, err = disabled.LoginSuperAdmin(ctx, SuperAdminLoginRequest{Username: "boss", Password: ""})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestCreateTeamMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth, _ := newAuth(f)
	admin := models.SuperAdminIdentity()
	req := TeamMemberRequest{FirstName: "Nodira", Phone: "+998977770001", Password: "kitchen1"}

	_, err := auth.CreateStaff(ctx, models.StaffIdentity(1), req)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	staff, err := auth.CreateStaff(ctx, admin, req)
	require.NoError(t, err)
	assert.NotZero(t, staff.ID)
	assert.NotEqual(t, "kitchen1", staff.Password)

	_, err = auth.CreateStaff(ctx, admin, req)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	courier, err := auth.CreateCourier(ctx, admin, TeamMemberRequest{FirstName: "Sardor", Phone: "977770002", Password: "wheels1"})
	require.NoError(t, err)
	assert.Equal(t, "+998977770002", courier.Phone)

	res, err := auth.LoginCourier(ctx, LoginRequest{Phone: "977770002", Password: "wheels1"})
	require.NoError(t, err)
	assert.Equal(t, models.CourierIdentity(courier.ID), res.Identity)
}
