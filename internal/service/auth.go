package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/parking-slot-reservation/internal/logging"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/repository"
	"github.com/iliyamo/parking-slot-reservation/internal/utils"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a
// wrong password, without saying which.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthConfig holds the token and hashing settings of AuthService.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	ResetTTL       time.Duration
}

// Session is what a successful login, registration or refresh returns.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// AuthService registers users, issues access/refresh token pairs and runs
// the forgot/reset password flow.  Refresh and reset tokens are stored
// hashed; reset tokens are single use.
type AuthService struct {
	cfg    AuthConfig
	users  *repository.UserRepo
	tokens *repository.TokenRepo
	log    *logging.Logger
	now    func() time.Time
}

func NewAuthService(cfg AuthConfig, users *repository.UserRepo, tokens *repository.TokenRepo, logger *logging.Logger, now func() time.Time) *AuthService {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{cfg: cfg, users: users, tokens: tokens, log: logger, now: now}
}

// Register creates a USER account and signs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	if err := utils.CheckPasswordPolicy(password); err != nil {
		return nil, err
	}
	uid, err := s.users.Create(ctx, name, email, password, model.RoleUser, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", uid)
	return s.issue(ctx, u)
}

// Login verifies the credentials and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is returned.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*Session, error) {
	hash := utils.HashToken(strings.TrimSpace(raw))
	uid, err := s.tokens.ValidateRefresh(ctx, hash, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, repository.ErrTokenInvalid
		}
		return nil, err
	}
	return s.issue(ctx, u)
}

// RefreshAccess returns a new access token for a valid refresh token
// without rotating it.
func (s *AuthService) RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, error) {
	uid, err := s.tokens.ValidateRefresh(ctx, utils.HashToken(strings.TrimSpace(raw)), s.now().UTC())
	if err != nil {
		return utils.AccessToken{}, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return utils.AccessToken{}, repository.ErrTokenInvalid
		}
		return utils.AccessToken{}, err
	}
	return utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
}

// Logout revokes a single refresh token.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	hash := utils.HashToken(strings.TrimSpace(raw))
	if _, err := s.tokens.ValidateRefresh(ctx, hash, s.now().UTC()); err != nil {
		return err
	}
	return s.tokens.RevokeByHash(ctx, hash)
}

// LogoutAll revokes every refresh token of a user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint64) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// ForgotPassword issues a reset token for the account with email.  There
// is no mail delivery; the caller decides whether to log the token or
// hand it back to the client.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	exp := s.now().UTC().Add(s.cfg.ResetTTL)
	if err := s.tokens.StoreReset(ctx, u.ID, utils.HashToken(token), exp); err != nil {
		return "", err
	}
	s.log.Info("password reset requested", "user_id", u.ID, "expires_at", exp.Format(time.RFC3339))
	return token, nil
}

// ResetPassword consumes a reset token issued for email and sets a new
// password.  Existing refresh tokens are revoked.
func (s *AuthService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if err := utils.CheckPasswordPolicy(newPassword); err != nil {
		return err
	}
	if _, err := uuid.Parse(strings.TrimSpace(token)); err != nil {
		return repository.ErrTokenInvalid
	}
	uid, err := s.tokens.ConsumeReset(ctx, utils.HashToken(strings.TrimSpace(token)), s.now().UTC())
	if err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return err
	}
	if !strings.EqualFold(u.Email, strings.TrimSpace(email)) {
		return repository.ErrTokenInvalid
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, uid, hash); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, uid); err != nil {
		return err
	}
	s.log.Info("password reset", "user_id", uid)
	return nil
}

func (s *AuthService) issue(ctx context.Context, u model.User) (*Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &Session{User: u, Access: access, Refresh: refresh}, nil
}
