package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"commfeed/internal/apperr"
	"commfeed/internal/db"
	"commfeed/internal/logging"
	"commfeed/internal/models"
	"commfeed/internal/utils"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// MinPasswordLength 密码最短长度
const MinPasswordLength = 6

// Karma 用户声望：总计与窗口内合计，都由流水汇总
type Karma struct {
	UserID uint          `json:"user_id"`
	Total  int64         `json:"total"`
	Window time.Duration `json:"-"`
	Recent int64         `json:"recent"`
}

type UserService struct {
	db     *gorm.DB
	ledger *Ledger
	clock  clockwork.Clock
}

func NewUserService(conn *gorm.DB, ledger *Ledger, clock clockwork.Clock) *UserService {
	return &UserService{db: conn, ledger: ledger, clock: clock}
}

// Register 注册新用户。用户名或邮箱已存在时返回 Conflict。
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if username == "" || utf8.RuneCountInString(username) > 50 {
		return nil, apperr.Validation("username must be 1-50 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid email address")
	}
	if len(password) < MinPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, apperr.Storage("hash password", err)
	}

	user := models.User{
		Username:  username,
		Email:     email,
		Password:  hash,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.Conflict("username or email already registered")
		}
		return nil, apperr.Storage("create user", err)
	}

	logging.FromContext(ctx).Info("user registered", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// Authenticate 校验邮箱与密码，失败统一返回 Unauthorized，不区分是哪一项错误
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, apperr.Storage("load user", err)
	}

	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user %d not found", userID)
	}
	if err != nil {
		return nil, apperr.Storage("load user", err)
	}
	return &user, nil
}

// Karma 返回用户的声望总计以及最近 window 内的合计
func (s *UserService) Karma(ctx context.Context, userID uint, window time.Duration) (*Karma, error) {
	if window <= 0 {
		return nil, apperr.Validation("window must be positive")
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	total, err := s.ledger.SumFor(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	since := s.clock.Now().UTC().Add(-window)
	recent, err := s.ledger.SumFor(ctx, userID, &since)
	if err != nil {
		return nil, err
	}

	return &Karma{UserID: userID, Total: total, Window: window, Recent: recent}, nil
}
