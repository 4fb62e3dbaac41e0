// Package seed loads a small demo tenant for local development.
package seed

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stockflow/internal/hash"
	"github.com/Skotchmaster/stockflow/internal/logging"
	"github.com/Skotchmaster/stockflow/internal/models"
)

const (
	AdminEmail   = "admin@demo.test"
	ManagerEmail = "manager@demo.test"
	StaffEmail   = "staff@demo.test"
	Password     = "password123"
)

// Indexer receives every seeded product; nil skips indexing.
type Indexer interface {
	IndexProduct(ctx context.Context, p models.Product) error
}

var ErrAlreadySeeded = errors.New("demo data already present")

// Run creates the demo tenant unless the admin user already exists.
func Run(ctx context.Context, db *gorm.DB, idx Indexer) error {
	l := logging.FromContext(ctx).With("svc", "seed")

	var n int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", AdminEmail).Count(&n).Error; err != nil {
		return fmt.Errorf("check seed: %w", err)
	}
	if n > 0 {
		return ErrAlreadySeeded
	}

	pw, err := hash.HashPassword(Password)
	if err != nil {
		return err
	}

	var products []models.Product
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant := models.Tenant{Name: "Demo Hardware"}
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}

		branches := []models.Branch{
			{TenantID: tenant.ID, Name: "Central"},
			{TenantID: tenant.ID, Name: "Harbour"},
			{TenantID: tenant.ID, Name: "Airport"},
		}
		if err := tx.Create(&branches).Error; err != nil {
			return err
		}

		users := []models.User{
			{TenantID: tenant.ID, Email: AdminEmail, PasswordHash: pw, Role: models.RoleAdmin},
			{TenantID: tenant.ID, Email: ManagerEmail, PasswordHash: pw, Role: models.RoleManager},
			{TenantID: tenant.ID, Email: StaffEmail, PasswordHash: pw, Role: models.RoleStaff},
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}
		assignments := []models.UserBranch{
			{UserID: users[1].ID, BranchID: branches[0].ID},
			{UserID: users[1].ID, BranchID: branches[1].ID},
			{UserID: users[2].ID, BranchID: branches[1].ID},
		}
		if err := tx.Create(&assignments).Error; err != nil {
			return err
		}

		catalog := []struct {
			sku   string
			name  string
			price float64
		}{
			{"HB-100", "hex bolt M8", 0.35},
			{"WN-200", "wing nut M8", 0.20},
			{"DS-300", "drywall screw 50mm", 0.05},
			{"AN-400", "wall anchor 8mm", 0.12},
		}
		for i, b := range branches {
			for j, c := range catalog {
				products = append(products, models.Product{
					TenantID: tenant.ID,
					BranchID: b.ID,
					SKU:      c.sku,
					Name:     c.name,
					Quantity: 100*(i+1) + 10*j,
					Price:    c.price,
				})
			}
		}
		if err := tx.Create(&products).Error; err != nil {
			return err
		}

		moves := make([]models.StockMovement, 0, len(products))
		for _, p := range products {
			moves = append(moves, models.StockMovement{
				TenantID:  p.TenantID,
				BranchID:  p.BranchID,
				ProductID: p.ID,
				Delta:     p.Quantity,
				Reason:    "initial stock",
			})
		}
		return tx.Create(&moves).Error
	})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	l.Info("seed_done", "products", len(products))

	if idx == nil {
		return nil
	}
	for _, p := range products {
		if err := idx.IndexProduct(ctx, p); err != nil {
			l.Warn("seed_index_failed", "product_id", p.ID, "error", err)
			return err
		}
	}
	return nil
}
