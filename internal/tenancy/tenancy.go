// Package tenancy binds the active tenant to a single request.
//
// The binding lives in the request's context.Context and is never stored in
// package state, so goroutines serving other requests (including pooled,
// reused workers) cannot observe it.
package tenancy

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrContextMissing means tenant-scoped code ran without a bound tenant.
	// Callers must treat it as fatal for the request.
	ErrContextMissing = errors.New("tenant context missing")
	// ErrTenantAlreadyBound means a request tried to switch tenants midway.
	ErrTenantAlreadyBound = errors.New("tenant already bound to request")
)

type ctxKey struct{}

// binding is stored by pointer so Clear can mask a parent value.
type binding struct {
	tenantID uint
	cleared  bool
}

// WithTenant binds tenantID to ctx. A request's tenant is set once: rebinding
// to a different tenant fails, rebinding the same tenant is a no-op.
func WithTenant(ctx context.Context, tenantID uint) (context.Context, error) {
	if tenantID == 0 {
		return ctx, fmt.Errorf("bind tenant: %w", ErrContextMissing)
	}
	if current, err := FromContext(ctx); err == nil {
		if current != tenantID {
			return ctx, ErrTenantAlreadyBound
		}
		return ctx, nil
	}
	return context.WithValue(ctx, ctxKey{}, &binding{tenantID: tenantID}), nil
}

// FromContext returns the bound tenant or ErrContextMissing.
func FromContext(ctx context.Context) (uint, error) {
	if ctx == nil {
		return 0, ErrContextMissing
	}
	b, ok := ctx.Value(ctxKey{}).(*binding)
	if !ok || b == nil || b.cleared {
		return 0, ErrContextMissing
	}
	return b.tenantID, nil
}

// Clear returns a context in which no tenant is bound.
func Clear(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, &binding{cleared: true})
}

// Run executes fn with tenantID bound. The caller's ctx never carries the
// binding, so nothing leaks past Run even if fn panics.
func Run(ctx context.Context, tenantID uint, fn func(ctx context.Context) error) error {
	scoped, err := WithTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	scoped, cancel := context.WithCancel(scoped)
	defer cancel()
	return fn(scoped)
}
