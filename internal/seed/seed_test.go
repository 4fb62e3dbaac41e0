package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/stockflow/internal/db/dbtest"
	"github.com/Skotchmaster/stockflow/internal/hash"
	"github.com/Skotchmaster/stockflow/internal/models"
)

type countingIndexer struct{ n int }

func (c *countingIndexer) IndexProduct(context.Context, models.Product) error {
	c.n++
	return nil
}

func TestRun(t *testing.T) {
	gdb := dbtest.New(t)
	idx := &countingIndexer{}

	require.NoError(t, Run(context.Background(), gdb, idx))
	assert.Equal(t, 12, idx.n)

	var staff models.User
	require.NoError(t, gdb.Where("email = ?", StaffEmail).First(&staff).Error)
	assert.Equal(t, models.RoleStaff, staff.Role)
	assert.True(t, hash.CheckPassword(staff.PasswordHash, Password))

	var moves int64
	require.NoError(t, gdb.Model(&models.StockMovement{}).Count(&moves).Error)
	assert.EqualValues(t, 12, moves)

	assert.ErrorIs(t, Run(context.Background(), gdb, nil), ErrAlreadySeeded)
}
