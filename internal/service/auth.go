package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stockflow/internal/events"
	"github.com/Skotchmaster/stockflow/internal/hash"
	"github.com/Skotchmaster/stockflow/internal/lockout"
	"github.com/Skotchmaster/stockflow/internal/logging"
	"github.com/Skotchmaster/stockflow/internal/metrics"
	"github.com/Skotchmaster/stockflow/internal/models"
	"github.com/Skotchmaster/stockflow/internal/session"
	"github.com/Skotchmaster/stockflow/internal/tenancy"
	"github.com/Skotchmaster/stockflow/internal/tokens"
)

var (
	// ErrUnauthenticated covers both bad credentials and a locked account so
	// callers cannot tell them apart.
	ErrUnauthenticated = errors.New("invalid email or password")
	// ErrInvalidSession wraps every refresh token failure.
	ErrInvalidSession = errors.New("session invalid, please re-authenticate")
	ErrValidation     = errors.New("validation failed")
	ErrUserNotFound   = errors.New("user not found")
)

const MinPasswordLength = 8

type AuthService struct {
	DB       *gorm.DB
	Sessions *session.Store
	Lock     *lockout.Guard
	Signer   *tokens.Signer
	Events   events.Publisher
	Metrics  *metrics.Metrics
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	UserID       uint
	TenantID     uint
	Role         models.Role
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", string(e.Type), "error", err)
	}
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	access, accessExp, err := s.Signer.Sign(user.ID, user.TenantID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.result(user, access, accessExp, refresh), nil
}

func (s *AuthService) result(user *models.User, access string, accessExp time.Time, refresh session.Token) *AuthResult {
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh.Value,
		AccessExp:    accessExp,
		RefreshExp:   refresh.ExpiresAt,
		UserID:       user.ID,
		TenantID:     user.TenantID,
		Role:         user.Role,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", email)

	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			hash.CheckPassword(hash.Dummy, password)
			s.Metrics.Login("failure")
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, ErrUnauthenticated
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("load user: %w", err)
	}
	l = l.With("user_id", user.ID, "tenant_id", user.TenantID)

	// a locked account is rejected before the password is looked at
	if user.Locked {
		s.Metrics.Login("locked")
		l.Warn("login_failed", "status", 401, "reason", "account locked")
		return nil, ErrUnauthenticated
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		state, err := s.Lock.RecordFailure(ctx, user.ID)
		if err != nil {
			l.Error("login_failed", "status", 500, "reason", "cannot record failure", "error", err)
			return nil, err
		}
		s.Metrics.Login("failure")
		s.publish(ctx, events.Event{Type: events.LoginFailed, TenantID: user.TenantID, UserID: user.ID})
		if state == lockout.StateLocked {
			s.Metrics.Lockout()
			s.publish(ctx, events.Event{Type: events.AccountLocked, TenantID: user.TenantID, UserID: user.ID})
			l.Warn("account_locked", "threshold", s.Lock.Threshold)
		}
		l.Warn("login_failed", "status", 401, "reason", "bad password")
		return nil, ErrUnauthenticated
	}

	if err := s.Lock.RecordSuccess(ctx, user.ID); err != nil {
		if errors.Is(err, lockout.ErrLocked) {
			s.Metrics.Login("locked")
			l.Warn("login_failed", "status", 401, "reason", "locked concurrently")
			return nil, ErrUnauthenticated
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	res, err := s.issue(ctx, &user)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	s.Metrics.Login("success")
	l.Info("login_successful")
	return res, nil
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrTokenNotFound),
		errors.Is(err, session.ErrTokenRevoked),
		errors.Is(err, session.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return err
}

// Refresh consumes refreshToken and returns a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if refreshToken == "" {
		s.Metrics.Refresh("invalid")
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, session.ErrTokenNotFound)
	}

	newRefresh, err := s.Sessions.Rotate(ctx, refreshToken)
	if err != nil {
		err = sessionError(err)
		if errors.Is(err, ErrInvalidSession) {
			s.Metrics.Refresh("invalid")
			l.Warn("refresh_failed", "status", 401, "error", err)
		} else {
			l.Error("refresh_failed", "status", 500, "error", err)
		}
		return nil, err
	}
	l = l.With("user_id", newRefresh.UserID)

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, newRefresh.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.Metrics.Refresh("invalid")
			return nil, fmt.Errorf("%w: %w", ErrInvalidSession, ErrUserNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	// a locked account keeps no live sessions
	if user.Locked {
		if _, err := s.Sessions.RevokeAll(ctx, user.ID); err != nil {
			l.Error("refresh_failed", "status", 500, "error", err)
			return nil, err
		}
		s.Metrics.Refresh("locked")
		l.Warn("refresh_failed", "status", 401, "reason", "account locked")
		return nil, ErrInvalidSession
	}

	access, accessExp, err := s.Signer.Sign(user.ID, user.TenantID, user.Role)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}
	s.Metrics.Refresh("success")
	l.Info("refresh_successful")
	return s.result(&user, access, accessExp, newRefresh), nil
}

// Logout validates refreshToken and then revokes every session of its owner.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	userID, err := s.Sessions.Validate(ctx, refreshToken)
	if err != nil {
		err = sessionError(err)
		l.Warn("logout_failed", "error", err)
		return err
	}

	n, err := s.Sessions.RevokeAll(ctx, userID)
	if err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot revoke sessions", "error", err)
		return err
	}
	s.Metrics.Revoked(n)
	s.publish(ctx, events.Event{Type: events.SessionsRevoked, UserID: userID, Count: n})
	l.Info("successful_logout", "user_id", userID, "revoked", n)
	return nil
}

// ChangePassword replaces the password of the user bound to ctx's tenant and
// revokes all of their sessions.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password", "user_id", userID)

	if len(newPassword) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}

	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return err
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ? AND tenant_id = ?", userID, tenantID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !hash.CheckPassword(user.PasswordHash, oldPassword) {
		l.Warn("change_password_failed", "status", 401, "reason", "bad password")
		return ErrUnauthenticated
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		l.Error("change_password_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return err
	}
	if err := s.DB.WithContext(ctx).Model(&user).Update("password_hash", pwHash).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	n, err := s.Sessions.RevokeAll(ctx, user.ID)
	if err != nil {
		return err
	}
	s.Metrics.Revoked(n)
	s.publish(ctx, events.Event{Type: events.PasswordChanged, TenantID: tenantID, UserID: user.ID})
	s.publish(ctx, events.Event{Type: events.SessionsRevoked, TenantID: tenantID, UserID: user.ID, Count: n})
	l.Info("password_changed", "revoked", n)
	return nil
}

// UnlockAccount resets the lock state of a user in the bound tenant.
func (s *AuthService) UnlockAccount(ctx context.Context, userID uint) error {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return err
	}
	l := logging.FromContext(ctx).With("svc", "auth.unlock", "user_id", userID)

	var count int64
	err = s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if count == 0 {
		return ErrUserNotFound
	}

	if err := s.Lock.Reset(ctx, userID); err != nil {
		if errors.Is(err, lockout.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.publish(ctx, events.Event{Type: events.AccountUnlocked, TenantID: tenantID, UserID: userID})
	l.Info("account_unlocked")
	return nil
}
