package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/config"
	"github.com/yeremiapane/restaurant-dispatch/database"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MaxShiftHours caps what one login can add to worked_hours.
const MaxShiftHours = 8.0

var errBadCredentials = apperror.Unauthorized("invalid credentials")

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required,uzphone"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required,min=6"`
	Address  string `json:"address"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SuperAdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TeamMemberRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone" binding:"required,uzphone"`
	Password  string `json:"password" binding:"required,min=6"`
	BranchID  *uint  `json:"branch_id"`
}

type LoginResult struct {
	Token    string          `json:"token"`
	Identity models.Identity `json:"identity"`
	Profile  interface{}     `json:"profile,omitempty"`
}

type AuthService struct {
	db     *gorm.DB
	tokens *utils.TokenIssuer
	admin  config.SuperAdmin
	carts  *CartService
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, tokens *utils.TokenIssuer, admin config.SuperAdmin, carts *CartService) *AuthService {
	return &AuthService{db: db, tokens: tokens, admin: admin, carts: carts, now: utcNow}
}

func hashPassword(raw string) (string, error) {
	if len(raw) < 6 {
		return "", apperror.Validation("password must be at least 6 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// phoneTaken turns a unique violation on phone into a Conflict.
func phoneTaken(tx *gorm.DB, model interface{}, phone string) error {
	var n int64
	if err := tx.Model(model).Where("phone = ?", phone).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperror.Conflict("phone %s is already registered", phone)
	}
	return nil
}

// RegisterUser creates a customer account.
func (s *AuthService) RegisterUser(ctx context.Context, req RegisterRequest) (*models.User, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("name is required")
	}
	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{Name: name, Phone: phone, Password: hashed, Address: strings.TrimSpace(req.Address)}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		user.Email = &email
	}
	err = database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		if err := phoneTaken(tx, &models.User{}, phone); err != nil {
			return err
		}
		if user.Email != nil {
			var n int64
			if err := tx.Model(&models.User{}).Where("email = ?", *user.Email).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return apperror.Conflict("email %s is already registered", *user.Email)
			}
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithField("user_id", user.ID).Info("New user registered")
	return &user, nil
}

// LoginUser signs a customer in and moves the guest session's cart into the
// account.
func (s *AuthService) LoginUser(ctx context.Context, req LoginRequest, sessionID string) (*LoginResult, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, errBadCredentials
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, errBadCredentials
	}

	if s.carts != nil {
		if err := s.carts.MergeGuestCart(ctx, sessionID, user.ID); err != nil {
			utils.ErrorLogger.Errorf("merge guest cart into user %d: %v", user.ID, err)
		}
	}
	return s.issue(models.UserIdentity(user.ID), user)
}

// LoginStaff signs a staff member in and accrues the hours since their last
// activity.
func (s *AuthService) LoginStaff(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	var staff models.Staff
	if err := s.loginTeam(ctx, &staff, req); err != nil {
		return nil, err
	}
	return s.issue(models.StaffIdentity(staff.ID), staff)
}

func (s *AuthService) LoginCourier(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	var courier models.Courier
	if err := s.loginTeam(ctx, &courier, req); err != nil {
		return nil, err
	}
	return s.issue(models.CourierIdentity(courier.ID), courier)
}

func (s *AuthService) loginTeam(ctx context.Context, dest interface{}, req LoginRequest) error {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return errBadCredentials
	}
	return database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Where("phone = ?", phone).First(dest).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errBadCredentials
			}
			return err
		}
		var id uint
		var hash string
		var last *time.Time
		var worked float64
		switch a := dest.(type) {
		case *models.Staff:
			id, hash, last, worked = a.ID, a.Password, a.LastActivity, a.WorkedHours
		case *models.Courier:
			id, hash, last, worked = a.ID, a.Password, a.LastActivity, a.WorkedHours
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			return errBadCredentials
		}

		now := s.now()
		worked += AccruedHours(last, now)
		if err := tx.Model(dest).Where("id = ?", id).Updates(map[string]interface{}{
			"worked_hours":  worked,
			"last_activity": now,
		}).Error; err != nil {
			return err
		}
		switch a := dest.(type) {
		case *models.Staff:
			a.WorkedHours, a.LastActivity = worked, &now
		case *models.Courier:
			a.WorkedHours, a.LastActivity = worked, &now
		}
		return nil
	})
}

// AccruedHours is the time since last activity, capped at one shift.
func AccruedHours(last *time.Time, now time.Time) float64 {
	if last == nil || !now.After(*last) {
		return 0
	}
	h := now.Sub(*last).Hours()
	if h > MaxShiftHours {
		return MaxShiftHours
	}
	return h
}

// LoginSuperAdmin checks the credentials from config. An empty configured
// password disables the account.
func (s *AuthService) LoginSuperAdmin(_ context.Context, req SuperAdminLoginRequest) (*LoginResult, error) {
	if s.admin.Password == "" {
		return nil, errBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.admin.Password)) == 1
	if !userOK || !passOK {
		return nil, errBadCredentials
	}
	return s.issue(models.SuperAdminIdentity(), nil)
}

func (s *AuthService) issue(id models.Identity, profile interface{}) (*LoginResult, error) {
	token, err := s.tokens.Generate(id)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithField("identity", id.Key()).Info("Login successful")
	return &LoginResult{Token: token, Identity: id, Profile: profile}, nil
}

// CreateStaff registers a kitchen staff account. Super-admin only.
func (s *AuthService) CreateStaff(ctx context.Context, actor models.Identity, req TeamMemberRequest) (*models.Staff, error) {
	staff := &models.Staff{BranchID: req.BranchID}
	if err := s.createTeam(ctx, actor, staff, req, &staff.FirstName, &staff.LastName, &staff.Phone, &staff.Password); err != nil {
		return nil, err
	}
	return staff, nil
}

func (s *AuthService) CreateCourier(ctx context.Context, actor models.Identity, req TeamMemberRequest) (*models.Courier, error) {
	courier := &models.Courier{}
	if err := s.createTeam(ctx, actor, courier, req, &courier.FirstName, &courier.LastName, &courier.Phone, &courier.Password); err != nil {
		return nil, err
	}
	return courier, nil
}

func (s *AuthService) createTeam(ctx context.Context, actor models.Identity, dest interface{}, req TeamMemberRequest, first, last, phone, password *string) error {
	if actor.Role != models.RoleSuperAdmin {
		return apperror.Forbidden("only the super-admin manages the team")
	}
	p, err := NormalizePhone(req.Phone)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(req.FirstName)
	if name == "" {
		return apperror.Validation("first name is required")
	}
	hashed, err := hashPassword(req.Password)
	if err != nil {
		return err
	}
	*first, *last, *phone, *password = name, strings.TrimSpace(req.LastName), p, hashed

	err = database.WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		if err := phoneTaken(tx, dest, p); err != nil {
			return err
		}
		return tx.Create(dest).Error
	})
	if err != nil {
		return err
	}
	utils.InfoLogger.WithField("phone", p).Info("Team member created")
	return nil
}
