// Package lockout counts failed logins per user and locks the account at a
// threshold. All state lives on the user row and every change is a single
// atomic UPDATE, so concurrent attempts never lose increments.
package lockout

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stockflow/internal/models"
)

var (
	ErrLocked       = errors.New("account locked")
	ErrUserNotFound = errors.New("user not found")
)

const DefaultThreshold = 5

type State string

const (
	StateOpen   State = "OPEN"
	StateLocked State = "LOCKED"
)

func stateOf(locked bool) State {
	if locked {
		return StateLocked
	}
	return StateOpen
}

type Guard struct {
	DB        *gorm.DB
	Threshold int
}

func NewGuard(db *gorm.DB, threshold int) *Guard {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Guard{DB: db, Threshold: threshold}
}

func (g *Guard) threshold() int {
	if g.Threshold < 1 {
		return DefaultThreshold
	}
	return g.Threshold
}

type lockRow struct {
	FailedAttempts int
	Locked         bool
}

func (g *Guard) read(db *gorm.DB, userID uint) (lockRow, error) {
	var row lockRow
	err := db.Model(&models.User{}).
		Select("failed_attempts", "locked").
		Where("id = ?", userID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lockRow{}, ErrUserNotFound
		}
		return lockRow{}, fmt.Errorf("read lock state: %w", err)
	}
	return row, nil
}

func (g *Guard) Check(ctx context.Context, userID uint) (State, error) {
	row, err := g.read(g.DB.WithContext(ctx), userID)
	if err != nil {
		return "", err
	}
	return stateOf(row.Locked), nil
}

// RecordFailure counts one failed credential check and returns the state
// after it. The attempt that reaches the threshold is the one that locks.
func (g *Guard) RecordFailure(ctx context.Context, userID uint) (State, error) {
	db := g.DB.WithContext(ctx)
	res := db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"failed_attempts": gorm.Expr("failed_attempts + 1"),
			"locked":          gorm.Expr("CASE WHEN failed_attempts + 1 >= ? THEN TRUE ELSE locked END", g.threshold()),
		})
	if res.Error != nil {
		return "", fmt.Errorf("record failed login: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrUserNotFound
	}

	row, err := g.read(db, userID)
	if err != nil {
		return "", err
	}
	return stateOf(row.Locked), nil
}

// RecordSuccess clears the counter of an open account. It fails with
// ErrLocked if a concurrent failure locked the account first.
func (g *Guard) RecordSuccess(ctx context.Context, userID uint) error {
	res := g.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND locked = ?", userID, false).
		Update("failed_attempts", 0)
	if res.Error != nil {
		return fmt.Errorf("record successful login: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := g.read(g.DB.WithContext(ctx), userID); err != nil {
			return err
		}
		return ErrLocked
	}
	return nil
}

// Reset returns an account to OPEN with a zero counter.
func (g *Guard) Reset(ctx context.Context, userID uint) error {
	res := g.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"failed_attempts": 0, "locked": false})
	if res.Error != nil {
		return fmt.Errorf("reset lock state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
