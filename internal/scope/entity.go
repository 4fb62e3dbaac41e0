package scope

import "github.com/Skotchmaster/stockflow/internal/models"

// Entity describes how a model is scoped. Every listing in the service is one
// List call with one of these descriptors.
type Entity[T any] struct {
	Name string
	// BranchColumn is the column holding the owning branch. Empty means the
	// entity is scoped by tenant only.
	BranchColumn string
	// BranchOf returns the owning branch of a loaded row.
	BranchOf func(*T) uint
	// Sortable maps API sort fields to columns; anything else is rejected.
	Sortable map[string]string
}

var Products = Entity[models.Product]{
	Name:         "products",
	BranchColumn: "branch_id",
	BranchOf:     func(p *models.Product) uint { return p.BranchID },
	Sortable: map[string]string{
		"id":        "id",
		"name":      "name",
		"sku":       "sku",
		"quantity":  "quantity",
		"price":     "price",
		"branchId":  "branch_id",
		"createdAt": "created_at",
	},
}

var StockMovements = Entity[models.StockMovement]{
	Name:         "stock_movements",
	BranchColumn: "branch_id",
	BranchOf:     func(m *models.StockMovement) uint { return m.BranchID },
	Sortable: map[string]string{
		"id":        "id",
		"delta":     "delta",
		"productId": "product_id",
		"branchId":  "branch_id",
		"createdAt": "created_at",
	},
}

// Branches are scoped by their own id.
var Branches = Entity[models.Branch]{
	Name:         "branches",
	BranchColumn: "id",
	BranchOf:     func(b *models.Branch) uint { return b.ID },
	Sortable: map[string]string{
		"id":        "id",
		"name":      "name",
		"createdAt": "created_at",
	},
}
