package repositories

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stockmaster/internal/models"
)

// sortColumns maps json field names accepted by the API to database columns.
// Sorting is restricted to this list so user input never reaches the ORDER BY
// clause directly.
var sortColumns = map[string]string{
	"name":      "name",
	"quantity":  "quantity",
	"threshold": "threshold",
	"category":  "category",
	"price":     "price",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// escapeLike escapes LIKE metacharacters so search input matches literally
// instead of acting as a wildcard pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List retrieves a page of products matching the query, plus the total count
// of matching rows before paging.
func (r *GORMProductRepository) List(q ListQuery) ([]models.Product, int64, error) {
	tx := r.db.Model(&models.Product{})

	if q.Search != "" {
		tx = tx.Where(`LOWER(name) LIKE LOWER(?) ESCAPE '\'`, "%"+escapeLike(q.Search)+"%")
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.LowStock {
		tx = tx.Where("quantity <= threshold")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "desc"
	if q.Order == "asc" {
		direction = "asc"
	}

	var products []models.Product
	err := tx.Order(column + " " + direction).
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// GetAll retrieves all products from the database.
func (r *GORMProductRepository) GetAll() ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product in the database, assigning an ID if missing.
func (r *GORMProductRepository) Create(product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update saves all fields of an existing product.
func (r *GORMProductRepository) Update(product *models.Product) error {
	res := r.db.Save(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Save does not report ErrRecordNotFound for updates, so check
		// RowsAffected instead.
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a product by its ID.
func (r *GORMProductRepository) Delete(id string) error {
	res := r.db.Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteByIDs removes every existing product among ids and reports how many
// rows were actually deleted.
func (r *GORMProductRepository) DeleteByIDs(ids []string) (int64, error) {
	res := r.db.Delete(&models.Product{}, "id IN ?", ids)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to bulk delete products: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FindByName retrieves a product whose name matches case-insensitively,
// excluding excludeID when it is non-empty.
func (r *GORMProductRepository) FindByName(name, excludeID string) (*models.Product, error) {
	tx := r.db.Where("LOWER(name) = LOWER(?)", name)
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}

	var product models.Product
	if err := tx.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product named %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find product by name: %w", err)
	}
	return &product, nil
}

// FindByBarcode retrieves a product by barcode, excluding excludeID when set.
func (r *GORMProductRepository) FindByBarcode(barcode, excludeID string) (*models.Product, error) {
	tx := r.db.Where("barcode = ?", barcode)
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}

	var product models.Product
	if err := tx.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with barcode %q: %w", barcode, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find product by barcode: %w", err)
	}
	return &product, nil
}

// LowStock retrieves products at or below their threshold, lowest quantity first.
func (r *GORMProductRepository) LowStock() ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("quantity <= threshold").
		Order("quantity asc").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get low stock products: %w", err)
	}
	return products, nil
}

// RecentProducts retrieves the n most recently created products.
func (r *GORMProductRepository) RecentProducts(n int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Order("created_at desc").Limit(n).Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent products: %w", err)
	}
	return products, nil
}

// MovedSince retrieves products with a restock or sale on or after t, most
// recently restocked first.
func (r *GORMProductRepository) MovedSince(t time.Time) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("last_restocked >= ? OR last_sold >= ?", t, t).
		Order("last_restocked desc").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get stock movement: %w", err)
	}
	return products, nil
}
