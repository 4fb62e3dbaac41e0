package models

import (
	"time"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

type Tenant struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null"                 json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Branch struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID  uint      `gorm:"index;not null"           json:"tenant_id"`
	Name      string    `gorm:"not null"                 json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User carries the principal data and the account lock state.
type User struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID       uint      `gorm:"index;not null"           json:"tenant_id"`
	Email          string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash   string    `gorm:"not null"                 json:"-"`
	Role           Role      `gorm:"type:varchar(16);not null" json:"role"`
	FailedAttempts int       `gorm:"not null;default:0"       json:"-"`
	Locked         bool      `gorm:"not null;default:false"   json:"locked"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type UserBranch struct {
	UserID   uint `gorm:"primaryKey" json:"user_id"`
	BranchID uint `gorm:"primaryKey" json:"branch_id"`
}

type Product struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID  uint      `gorm:"index;not null"           json:"tenant_id"`
	BranchID  uint      `gorm:"index;not null"           json:"branch_id"`
	SKU       string    `gorm:"not null"                 json:"sku"`
	Name      string    `gorm:"not null"                 json:"name"`
	Quantity  int       `gorm:"not null;default:0"       json:"quantity"`
	Price     float64   `gorm:"not null"                 json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

type StockMovement struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID  uint      `gorm:"index;not null"           json:"tenant_id"`
	BranchID  uint      `gorm:"index;not null"           json:"branch_id"`
	ProductID uint      `gorm:"index;not null"           json:"product_id"`
	Delta     int       `gorm:"not null"                 json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshToken stores the SHA-256 digest of an opaque refresh token.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"                json:"id"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	UserID    uint      `gorm:"index;not null"            json:"user_id"`
	ExpiresAt time.Time `gorm:"index;not null"            json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false"    json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Tenant{},
		&Branch{},
		&User{},
		&UserBranch{},
		&Product{},
		&StockMovement{},
		&RefreshToken{},
	}
}
