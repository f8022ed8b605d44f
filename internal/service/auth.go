package service

import (
	"context"
	"errors"
	"time"

	"license-management-system/internal/apperr"
	"license-management-system/internal/logger"
	"license-management-system/internal/model"
	"license-management-system/internal/util"

	"golang.org/x/crypto/bcrypt"
)

const msgBadCredentials = "invalid username or password"

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)
	RecordLogin(ctx context.Context, entry *model.LoginLog) error
}

type LoginRequest struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// AuthService 账号密码登录并签发令牌
type AuthService struct {
	users  UserRepository
	secret string
	ttl    time.Duration
	clock  Clock
	logg   *logger.Logger
}

func NewAuthService(users UserRepository, secret string, ttl time.Duration, clock Clock, logg *logger.Logger) (*AuthService, error) {
	if users == nil {
		return nil, errors.New("user repository required")
	}
	if secret == "" {
		return nil, errors.New("jwt secret required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &AuthService{users: users, secret: secret, ttl: ttl, clock: clock, logg: logg}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if req.Username == "" || req.Password == "" {
		return nil, apperr.New(apperr.CodeValidation, "username and password are required")
	}

	now := s.clock.Now()
	entry := &model.LoginLog{
		Username:  req.Username,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Status:    model.LoginFailed,
		CreatedAt: now,
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if !apperr.Is(err, apperr.CodeNotFound) {
			return nil, err
		}
		s.recordLogin(ctx, entry)
		return nil, apperr.New(apperr.CodeUnauthorized, msgBadCredentials)
	}
	entry.UserID = user.ID

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.recordLogin(ctx, entry)
		return nil, apperr.New(apperr.CodeUnauthorized, msgBadCredentials)
	}
	if !user.IsActive() {
		s.recordLogin(ctx, entry)
		return nil, apperr.New(apperr.CodeForbidden, "account is disabled")
	}

	token, err := util.GenerateToken(s.secret, user.ID, user.Role, s.ttl)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "generate token")
	}

	entry.Status = model.LoginSuccess
	s.recordLogin(ctx, entry)
	user.LastLogin = &now

	return &LoginResult{Token: token, ExpiresAt: now.Add(s.ttl), User: user}, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, id uint) (*model.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *AuthService) recordLogin(ctx context.Context, entry *model.LoginLog) {
	if err := s.users.RecordLogin(ctx, entry); err != nil {
		s.logg.Warn(ctx, "failed to record login", err)
	}
}
