package access

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stockflow/internal/models"
)

// PrincipalSource loads a principal by user id within a tenant.
type PrincipalSource interface {
	Load(ctx context.Context, tenantID, userID uint) (Principal, error)
}

// GormLoader reads the user and its branch assignments on every call.
type GormLoader struct {
	DB *gorm.DB
}

func (l *GormLoader) Load(ctx context.Context, tenantID, userID uint) (Principal, error) {
	var user models.User
	err := l.DB.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Principal{}, ErrPrincipalNotFound
		}
		return Principal{}, fmt.Errorf("load user: %w", err)
	}

	var branchIDs []uint
	err = l.DB.WithContext(ctx).
		Model(&models.UserBranch{}).
		Joins("JOIN branches ON branches.id = user_branches.branch_id").
		Where("user_branches.user_id = ? AND branches.tenant_id = ?", userID, tenantID).
		Order("user_branches.branch_id").
		Pluck("user_branches.branch_id", &branchIDs).Error
	if err != nil {
		return Principal{}, fmt.Errorf("load branch assignments: %w", err)
	}

	return Principal{
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Role:      user.Role,
		BranchIDs: branchIDs,
	}, nil
}
