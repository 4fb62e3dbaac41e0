// Package session issues and rotates opaque refresh tokens.
//
// Only the SHA-256 digest of a token is persisted. A token is usable for one
// rotation or logout; afterwards its row stays revoked until the sweeper
// deletes it past expiry.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stockflow/internal/models"
)

var (
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
)

const (
	DefaultTokenBytes = 32
	MinTokenBytes     = 16
)

// Token is a freshly issued refresh token with the expiry stored for it.
type Token struct {
	Value     string
	UserID    uint
	ExpiresAt time.Time
}

type Store struct {
	DB         *gorm.DB
	TTL        time.Duration
	TokenBytes int
	Now        func() time.Time
}

func NewStore(db *gorm.DB, ttl time.Duration, tokenBytes int) *Store {
	if tokenBytes < MinTokenBytes {
		tokenBytes = DefaultTokenBytes
	}
	return &Store{DB: db, TTL: ttl, TokenBytes: tokenBytes, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func Sha256Hex(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Store) newToken() (string, error) {
	n := s.TokenBytes
	if n < MinTokenBytes {
		n = DefaultTokenBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Store) insert(tx *gorm.DB, userID uint) (Token, error) {
	value, err := s.newToken()
	if err != nil {
		return Token{}, err
	}
	row := models.RefreshToken{
		TokenHash: Sha256Hex(value),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.TTL),
	}
	if err := tx.Create(&row).Error; err != nil {
		return Token{}, fmt.Errorf("store refresh token: %w", err)
	}
	return Token{Value: value, UserID: userID, ExpiresAt: row.ExpiresAt}, nil
}

// Issue creates a fresh refresh token for userID.
func (s *Store) Issue(ctx context.Context, userID uint) (Token, error) {
	return s.insert(s.DB.WithContext(ctx), userID)
}

func (s *Store) load(tx *gorm.DB, token string) (*models.RefreshToken, error) {
	var row models.RefreshToken
	if err := tx.Where("token_hash = ?", Sha256Hex(token)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	return &row, nil
}

func (s *Store) check(row *models.RefreshToken) error {
	if row.Revoked {
		return ErrTokenRevoked
	}
	if !row.ExpiresAt.After(s.now()) {
		return ErrTokenExpired
	}
	return nil
}

// Validate returns the owner of a live token without consuming it.
func (s *Store) Validate(ctx context.Context, token string) (uint, error) {
	row, err := s.load(s.DB.WithContext(ctx), token)
	if err != nil {
		return 0, err
	}
	if err := s.check(row); err != nil {
		return 0, err
	}
	return row.UserID, nil
}

// Rotate consumes oldToken and issues its replacement in one transaction.
// Of several concurrent rotations of the same token exactly one succeeds;
// the rest get ErrTokenRevoked.
func (s *Store) Rotate(ctx context.Context, oldToken string) (Token, error) {
	var fresh Token
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(tx, oldToken)
		if err != nil {
			return err
		}
		if err := s.check(row); err != nil {
			return err
		}
		if err := revokeRow(tx, row.ID); err != nil {
			return err
		}
		fresh, err = s.insert(tx, row.UserID)
		return err
	})
	if err != nil {
		return Token{}, err
	}
	return fresh, nil
}

// revokeRow flips revoked only if nobody else did first.
func revokeRow(tx *gorm.DB, id uint) error {
	res := tx.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Update("revoked", true)
	if res.Error != nil {
		return fmt.Errorf("revoke refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTokenRevoked
	}
	return nil
}

// Revoke consumes a single live token.
func (s *Store) Revoke(ctx context.Context, token string) error {
	db := s.DB.WithContext(ctx)
	row, err := s.load(db, token)
	if err != nil {
		return err
	}
	if err := s.check(row); err != nil {
		return err
	}
	return revokeRow(db, row.ID)
}

// RevokeAll revokes every outstanding token of userID and reports how many
// were live.
func (s *Store) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	if res.Error != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Sweep deletes tokens whose expiry has passed. Expired tokens already fail
// Validate, so sweeping only reclaims storage.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
