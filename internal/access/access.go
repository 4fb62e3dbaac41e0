// Package access resolves which branches a principal may see.
package access

import (
	"context"
	"errors"
	"slices"

	"github.com/Skotchmaster/stockflow/internal/models"
)

var (
	// ErrForbiddenBranchAccess means the branch lies outside the caller's scope.
	ErrForbiddenBranchAccess = errors.New("branch not accessible")
	// ErrPrincipalNotFound means the user does not exist in the bound tenant.
	ErrPrincipalNotFound = errors.New("principal not found")
)

// Principal is the authenticated user as loaded for the current request.
type Principal struct {
	UserID    uint
	TenantID  uint
	Role      models.Role
	BranchIDs []uint
}

// IsAdmin reports whether p sees every branch of its tenant.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// BranchScope is either unrestricted or restricted to an explicit, possibly
// empty, set of branches. The zero value is RestrictedTo() and sees nothing.
type BranchScope struct {
	unrestricted bool
	ids          []uint
}

// Unrestricted is the scope of an administrator: every branch of the tenant.
func Unrestricted() BranchScope {
	return BranchScope{unrestricted: true}
}

// RestrictedTo limits a scope to ids. Duplicates are dropped.
func RestrictedTo(ids ...uint) BranchScope {
	set := slices.Clone(ids)
	slices.Sort(set)
	return BranchScope{ids: slices.Compact(set)}
}

// IsUnrestricted reports whether s spans the whole tenant.
func (s BranchScope) IsUnrestricted() bool { return s.unrestricted }

// BranchIDs returns the allowed branches of a restricted scope, sorted and
// deduplicated. It is nil for an unrestricted scope.
func (s BranchScope) BranchIDs() []uint {
	if s.unrestricted {
		return nil
	}
	return slices.Clone(s.ids)
}

// Allows reports whether branchID is visible within s.
func (s BranchScope) Allows(branchID uint) bool {
	if s.unrestricted {
		return true
	}
	_, found := slices.BinarySearch(s.ids, branchID)
	return found
}

// Resolver maps a principal to the branches it may read.
type Resolver struct{}

// NewResolver returns a Resolver using the default role policy.
func NewResolver() *Resolver { return &Resolver{} }

// AccessibleBranches is recomputed on every call; assignments may change
// between requests.
func (r *Resolver) AccessibleBranches(p Principal) BranchScope {
	if p.IsAdmin() {
		return Unrestricted()
	}
	return RestrictedTo(p.BranchIDs...)
}

// Authorize returns ErrForbiddenBranchAccess unless scope allows branchID.
func (r *Resolver) Authorize(scope BranchScope, branchID uint) error {
	if !scope.Allows(branchID) {
		return ErrForbiddenBranchAccess
	}
	return nil
}

type userIDKey struct{}

// WithUserID binds the authenticated user id to ctx.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the user id bound by WithUserID.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	v, ok := ctx.Value(userIDKey{}).(uint)
	return v, ok && v != 0
}
