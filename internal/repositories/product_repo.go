package repositories

import (
	"errors"
	"time"

	"stockmaster/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ListQuery describes the filters, sorting, and paging for a product listing.
type ListQuery struct {
	Search   string // case-insensitive substring match on name
	Category string // exact match
	LowStock bool   // restrict to quantity <= threshold
	SortBy   string // json field name; unknown fields fall back to createdAt
	Order    string // "asc" or "desc"
	Offset   int
	Limit    int
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(q ListQuery) ([]models.Product, int64, error)
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
	DeleteByIDs(ids []string) (int64, error)

	// FindByName matches name case-insensitively, skipping excludeID when set.
	FindByName(name, excludeID string) (*models.Product, error)
	FindByBarcode(barcode, excludeID string) (*models.Product, error)

	// LowStock returns products with quantity <= threshold, lowest quantity first.
	LowStock() ([]models.Product, error)
	// RecentProducts returns the n most recently created products.
	RecentProducts(n int) ([]models.Product, error)
	// MovedSince returns products restocked or sold on or after t.
	MovedSince(t time.Time) ([]models.Product, error)
}
