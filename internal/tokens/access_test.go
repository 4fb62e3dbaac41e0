package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/stockflow/internal/models"
)

func TestSignAndParse(t *testing.T) {
	s := NewSigner([]byte("secret"), 15*time.Minute)

	tok, exp, err := s.Sign(42, 7, models.RoleManager)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	claims, err := s.Parse(tok)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.TenantID)
	assert.Equal(t, models.RoleManager, claims.Role)
	assert.NotEmpty(t, claims.ID)

	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, uid)
}

func TestParse_Rejects(t *testing.T) {
	s := NewSigner([]byte("secret"), time.Minute)
	tok, _, err := s.Sign(1, 1, models.RoleStaff)
	require.NoError(t, err)

	other := NewSigner([]byte("other"), time.Minute)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	claims := AccessClaims{
		TenantID: 1,
		Role:     models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewSigner([]byte("secret"), time.Minute).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RequiresTenant(t *testing.T) {
	s := NewSigner([]byte("secret"), time.Minute)
	tok, _, err := s.Sign(1, 0, models.RoleStaff)
	require.NoError(t, err)
	_, err = s.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
