package repositories

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockmaster/internal/models"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
// It mirrors the filter semantics of the GORM implementation so services can
// be exercised without a database.
type MockProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
	}
}

// List returns a page of matching products plus the total match count.
func (r *MockProductRepository) List(q ListQuery) ([]models.Product, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if q.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.LowStock && !p.IsLowStock() {
			continue
		}
		matched = append(matched, p)
	}

	sortProducts(matched, q.SortBy, q.Order)

	total := int64(len(matched))
	if q.Offset >= len(matched) {
		return []models.Product{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], total, nil
}

func sortProducts(products []models.Product, sortBy, order string) {
	less := func(a, b models.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch sortBy {
	case "name":
		less = func(a, b models.Product) bool { return a.Name < b.Name }
	case "quantity":
		less = func(a, b models.Product) bool { return a.Quantity < b.Quantity }
	case "threshold":
		less = func(a, b models.Product) bool { return a.Threshold < b.Threshold }
	case "category":
		less = func(a, b models.Product) bool { return a.Category < b.Category }
	case "price":
		less = func(a, b models.Product) bool { return a.Price < b.Price }
	case "updatedAt":
		less = func(a, b models.Product) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
	sort.SliceStable(products, func(i, j int) bool {
		if order == "asc" {
			return less(products[i], products[j])
		}
		return less(products[j], products[i])
	})
}

// GetAll returns all products.
func (r *MockProductRepository) GetAll() ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return &product, nil
}

// Create adds a new product, assigning an ID and timestamps if missing.
func (r *MockProductRepository) Create(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[product.ID]; !ok {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}
	product.UpdatedAt = time.Now()
	r.products[product.ID] = *product
	return nil
}

// Delete removes a product by its ID.
func (r *MockProductRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	delete(r.products, id)
	return nil
}

// DeleteByIDs removes the existing subset of ids and reports the deleted count.
func (r *MockProductRepository) DeleteByIDs(ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		if _, ok := r.products[id]; ok {
			delete(r.products, id)
			deleted++
		}
	}
	return deleted, nil
}

// FindByName matches a product name case-insensitively, skipping excludeID.
func (r *MockProductRepository) FindByName(name, excludeID string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.ID != excludeID && strings.EqualFold(p.Name, name) {
			product := p
			return &product, nil
		}
	}
	return nil, fmt.Errorf("product named %q: %w", name, ErrNotFound)
}

// FindByBarcode matches a product barcode, skipping excludeID.
func (r *MockProductRepository) FindByBarcode(barcode, excludeID string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.ID != excludeID && p.Barcode == barcode {
			product := p
			return &product, nil
		}
	}
	return nil, fmt.Errorf("product with barcode %q: %w", barcode, ErrNotFound)
}

// LowStock returns products at or below threshold, lowest quantity first.
func (r *MockProductRepository) LowStock() ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var low []models.Product
	for _, p := range r.products {
		if p.IsLowStock() {
			low = append(low, p)
		}
	}
	sort.SliceStable(low, func(i, j int) bool { return low[i].Quantity < low[j].Quantity })
	return low, nil
}

// RecentProducts returns the n most recently created products.
func (r *MockProductRepository) RecentProducts(n int) ([]models.Product, error) {
	all, _ := r.GetAll()
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// MovedSince returns products restocked or sold on or after t.
func (r *MockProductRepository) MovedSince(t time.Time) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var moved []models.Product
	for _, p := range r.products {
		restocked := p.LastRestocked != nil && !p.LastRestocked.Before(t)
		sold := p.LastSold != nil && !p.LastSold.Before(t)
		if restocked || sold {
			moved = append(moved, p)
		}
	}
	sort.SliceStable(moved, func(i, j int) bool {
		a, b := moved[i].LastRestocked, moved[j].LastRestocked
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return moved, nil
}
