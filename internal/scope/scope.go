// Package scope builds tenant- and branch-scoped, sorted, paginated reads for
// any entity described by an Entity descriptor.
//
// Items and the total count come from two separate reads with no shared
// snapshot. A concurrent write between them can make Total disagree with
// Items, and offset paging can skip or repeat rows while rows are inserted or
// deleted. Both are accepted limitations.
package scope

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/stockflow/internal/access"
	"github.com/Skotchmaster/stockflow/internal/metrics"
	"github.com/Skotchmaster/stockflow/internal/tenancy"
	"github.com/Skotchmaster/stockflow/internal/util"
)

var (
	ErrInvalidSort = errors.New("invalid sort field")
	ErrNotFound    = errors.New("record not found")
	ErrNoPrincipal = errors.New("no authenticated principal in context")
)

type Sort struct {
	Field string
	Desc  bool
}

// ParseSort reads "name,-createdAt" style sort parameters; a leading '-'
// means descending.
func ParseSort(raw string) []Sort {
	var out []Sort
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s := Sort{Field: part}
		if strings.HasPrefix(part, "-") {
			s = Sort{Field: strings.TrimPrefix(part, "-"), Desc: true}
		} else if strings.HasPrefix(part, "+") {
			s.Field = strings.TrimPrefix(part, "+")
		}
		out = append(out, s)
	}
	return out
}

type Page struct {
	Number int
	Size   int
}

func NewPage(number, size int) Page {
	offset, limit := util.Calculate(number, size)
	return Page{Number: offset/limit + 1, Size: limit}
}

func (p Page) offsetLimit() (int, int) {
	return util.Calculate(p.Number, p.Size)
}

type Result[T any] struct {
	Items      []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

type Engine struct {
	DB         *gorm.DB
	Principals access.PrincipalSource
	Resolver   *access.Resolver
	Metrics    *metrics.Metrics
}

func NewEngine(db *gorm.DB, principals access.PrincipalSource, resolver *access.Resolver, m *metrics.Metrics) *Engine {
	return &Engine{DB: db, Principals: principals, Resolver: resolver, Metrics: m}
}

// Resolve returns the bound tenant and the caller's branch scope, computed
// fresh for this call.
func (e *Engine) Resolve(ctx context.Context) (uint, access.BranchScope, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return 0, access.BranchScope{}, err
	}
	userID, ok := access.UserIDFromContext(ctx)
	if !ok {
		return 0, access.BranchScope{}, ErrNoPrincipal
	}
	p, err := e.Principals.Load(ctx, tenantID, userID)
	if err != nil {
		return 0, access.BranchScope{}, err
	}
	return tenantID, e.Resolver.AccessibleBranches(p), nil
}

// List returns one page of T visible to the caller plus the filtered total.
func List[T any](ctx context.Context, e *Engine, entity Entity[T], sorts []Sort, page Page) (*Result[T], error) {
	return list(ctx, e, entity, nil, sorts, page)
}

// ListInBranch lists T owned by one branch; the branch must be visible to
// the caller or ErrForbiddenBranchAccess is returned.
func ListInBranch[T any](ctx context.Context, e *Engine, entity Entity[T], branchID uint, sorts []Sort, page Page) (*Result[T], error) {
	return list(ctx, e, entity, &branchID, sorts, page)
}

func list[T any](ctx context.Context, e *Engine, entity Entity[T], branchID *uint, sorts []Sort, page Page) (*Result[T], error) {
	order, err := entity.orderBy(sorts)
	if err != nil {
		return nil, err
	}
	tenantID, bs, err := e.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	offset, limit := page.offsetLimit()
	res := &Result[T]{Items: []T{}, Page: offset/limit + 1, Size: limit}

	if branchID != nil {
		if entity.BranchColumn == "" {
			return nil, fmt.Errorf("%s is not branch scoped", entity.Name)
		}
		if err := e.Resolver.Authorize(bs, *branchID); err != nil {
			return nil, err
		}
	}

	restricted := entity.BranchColumn != "" && !bs.IsUnrestricted()
	allowed := bs.BranchIDs()
	if restricted && len(allowed) == 0 {
		e.Metrics.ScopedRead(entity.Name, "empty")
		return res, nil
	}

	base := func() *gorm.DB {
		q := e.DB.WithContext(ctx).Model(new(T)).Where("tenant_id = ?", tenantID)
		if restricted {
			q = q.Where(clause.IN{Column: clause.Column{Name: entity.BranchColumn}, Values: toValues(allowed)})
		}
		if branchID != nil {
			q = q.Where(clause.Eq{Column: clause.Column{Name: entity.BranchColumn}, Value: *branchID})
		}
		return q
	}

	if err := base().Count(&res.Total).Error; err != nil {
		return nil, fmt.Errorf("count %s: %w", entity.Name, err)
	}

	q := base()
	for _, o := range order {
		q = q.Order(o)
	}
	if err := q.Offset(offset).Limit(limit).Find(&res.Items).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", entity.Name, err)
	}

	res.TotalPages = (res.Total + int64(limit) - 1) / int64(limit)
	res.HasPrev = res.Page > 1
	res.HasNext = int64(offset+limit) < res.Total

	if restricted {
		e.Metrics.ScopedRead(entity.Name, "restricted")
	} else {
		e.Metrics.ScopedRead(entity.Name, "unrestricted")
	}
	return res, nil
}

// Get loads one T by id within the caller's tenant. A row owned by a branch
// the caller cannot see yields ErrForbiddenBranchAccess.
func Get[T any](ctx context.Context, e *Engine, entity Entity[T], id uint) (*T, error) {
	tenantID, bs, err := e.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	item := new(T)
	err = e.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).
		First(item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", entity.Name, err)
	}

	if entity.BranchOf != nil {
		if err := e.Resolver.Authorize(bs, entity.BranchOf(item)); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (en Entity[T]) orderBy(sorts []Sort) ([]clause.OrderByColumn, error) {
	out := make([]clause.OrderByColumn, 0, len(sorts)+1)
	byID := false
	for _, s := range sorts {
		col, ok := en.Sortable[s.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSort, s.Field)
		}
		if col == "id" {
			byID = true
		}
		out = append(out, clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: s.Desc})
	}
	// insertion order by default, and as the final tie-breaker
	if !byID {
		out = append(out, clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}
	return out, nil
}

func toValues(ids []uint) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
