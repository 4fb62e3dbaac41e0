package session

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/stockflow/internal/db"
	"github.com/Skotchmaster/stockflow/internal/models"
)

// Runs against a real connection pool, where rotations of one token overlap
// instead of queueing on a single SQLite connection.
func TestRotate_ConcurrentOnPostgres(t *testing.T) {
	dsn := os.Getenv("SESSION_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SESSION_TEST_DATABASE_URL is required for tests")
	}
	ctx := context.Background()

	gdb, err := db.Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))

	tenant := models.Tenant{Name: "rotate-" + uuid.NewString()}
	require.NoError(t, gdb.Create(&tenant).Error)
	user := models.User{TenantID: tenant.ID, Email: uuid.NewString() + "@acme.test", PasswordHash: "x", Role: models.RoleStaff}
	require.NoError(t, gdb.Create(&user).Error)

	t.Cleanup(func() {
		gdb.Where("user_id = ?", user.ID).Delete(&models.RefreshToken{})
		gdb.Delete(&user)
		gdb.Delete(&tenant)
		_ = db.Close(gdb)
	})

	s := NewStore(gdb, time.Hour, DefaultTokenBytes)
	old, err := issued(s.Issue(ctx, user.ID))
	require.NoError(t, err)

	const n = 16
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Rotate(ctx, old)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrTokenRevoked)
	}
	assert.Equal(t, 1, wins)

	var live int64
	require.NoError(t, gdb.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", user.ID, false).
		Count(&live).Error)
	assert.EqualValues(t, 1, live)
}
