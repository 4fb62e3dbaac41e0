package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/stockflow/internal/db/dbtest"
	"github.com/Skotchmaster/stockflow/internal/models"
)

func TestResolver_AccessibleBranches(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name         string
		principal    Principal
		unrestricted bool
		ids          []uint
	}{
		{
			name:         "admin ignores assignments",
			principal:    Principal{Role: models.RoleAdmin, BranchIDs: []uint{1}},
			unrestricted: true,
		},
		{
			name:      "manager restricted to assignments",
			principal: Principal{Role: models.RoleManager, BranchIDs: []uint{7, 3, 7}},
			ids:       []uint{3, 7},
		},
		{
			name:      "staff without assignments sees nothing",
			principal: Principal{Role: models.RoleStaff},
			ids:       []uint{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := r.AccessibleBranches(tt.principal)
			assert.Equal(t, tt.unrestricted, scope.IsUnrestricted())
			if !tt.unrestricted {
				assert.ElementsMatch(t, tt.ids, scope.BranchIDs())
			}
		})
	}
}

func TestBranchScope_Allows(t *testing.T) {
	assert.True(t, Unrestricted().Allows(99))

	scope := RestrictedTo(3, 7)
	assert.True(t, scope.Allows(3))
	assert.True(t, scope.Allows(7))
	assert.False(t, scope.Allows(5))

	var zero BranchScope
	assert.False(t, zero.IsUnrestricted())
	assert.False(t, zero.Allows(1))
	assert.Empty(t, zero.BranchIDs())
}

func TestBranchScope_BranchIDsIsCopy(t *testing.T) {
	scope := RestrictedTo(1, 2)
	ids := scope.BranchIDs()
	ids[0] = 100
	assert.Equal(t, []uint{1, 2}, scope.BranchIDs())
}

func TestResolver_Authorize(t *testing.T) {
	r := NewResolver()
	require.NoError(t, r.Authorize(RestrictedTo(3), 3))
	assert.ErrorIs(t, r.Authorize(RestrictedTo(3), 4), ErrForbiddenBranchAccess)
	assert.ErrorIs(t, r.Authorize(RestrictedTo(), 4), ErrForbiddenBranchAccess)
	require.NoError(t, r.Authorize(Unrestricted(), 4))
}

func TestUserIDContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := UserIDFromContext(WithUserID(context.Background(), 12))
	assert.True(t, ok)
	assert.EqualValues(t, 12, id)
}

func TestGormLoader_Load(t *testing.T) {
	gdb := dbtest.New(t)
	ctx := context.Background()

	t1 := models.Tenant{Name: "acme"}
	t2 := models.Tenant{Name: "globex"}
	require.NoError(t, gdb.Create(&t1).Error)
	require.NoError(t, gdb.Create(&t2).Error)

	own := models.Branch{TenantID: t1.ID, Name: "north"}
	foreign := models.Branch{TenantID: t2.ID, Name: "elsewhere"}
	require.NoError(t, gdb.Create(&own).Error)
	require.NoError(t, gdb.Create(&foreign).Error)

	user := models.User{TenantID: t1.ID, Email: "staff@acme.test", PasswordHash: "x", Role: models.RoleStaff}
	require.NoError(t, gdb.Create(&user).Error)
	require.NoError(t, gdb.Create(&[]models.UserBranch{
		{UserID: user.ID, BranchID: own.ID},
		{UserID: user.ID, BranchID: foreign.ID},
	}).Error)

	loader := &GormLoader{DB: gdb}

	p, err := loader.Load(ctx, t1.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, p.Role)
	assert.Equal(t, t1.ID, p.TenantID)
	assert.Equal(t, []uint{own.ID}, p.BranchIDs)

	_, err = loader.Load(ctx, t2.ID, user.ID)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestGormLoader_SeesAssignmentChanges(t *testing.T) {
	gdb := dbtest.New(t)
	ctx := context.Background()

	tenant := models.Tenant{Name: "acme"}
	require.NoError(t, gdb.Create(&tenant).Error)
	b1 := models.Branch{TenantID: tenant.ID, Name: "a"}
	b2 := models.Branch{TenantID: tenant.ID, Name: "b"}
	require.NoError(t, gdb.Create(&b1).Error)
	require.NoError(t, gdb.Create(&b2).Error)
	user := models.User{TenantID: tenant.ID, Email: "m@acme.test", PasswordHash: "x", Role: models.RoleManager}
	require.NoError(t, gdb.Create(&user).Error)
	require.NoError(t, gdb.Create(&models.UserBranch{UserID: user.ID, BranchID: b1.ID}).Error)

	loader := &GormLoader{DB: gdb}
	r := NewResolver()

	p, err := loader.Load(ctx, tenant.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, r.AccessibleBranches(p).Allows(b2.ID))

	require.NoError(t, gdb.Create(&models.UserBranch{UserID: user.ID, BranchID: b2.ID}).Error)

	p, err = loader.Load(ctx, tenant.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, r.AccessibleBranches(p).Allows(b2.ID))
}
