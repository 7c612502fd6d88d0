package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"stockmaster/internal/models"
	"stockmaster/internal/repositories"
	"stockmaster/pkg/rabbitmq"
)

// Defaults applied when a create request omits optional fields.
const (
	DefaultThreshold = 5
	DefaultCategory  = "General"
	DefaultUnit      = "pieces"
	DefaultStatus    = "active"
	DefaultPageSize  = 10
)

// CreateProductInput is the request body for creating a product.
type CreateProductInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=100"`
	Description string   `json:"description" validate:"omitempty,max=500"`
	Quantity    *int     `json:"quantity" validate:"required,gte=0"`
	Threshold   *int     `json:"threshold" validate:"omitempty,gte=0"`
	Category    string   `json:"category" validate:"omitempty,min=2,max=50"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Unit        string   `json:"unit" validate:"omitempty,oneof=pieces kg liters boxes units"`
	Status      string   `json:"status" validate:"omitempty,oneof=active inactive discontinued"`
	Location    string   `json:"location" validate:"omitempty,max=100"`
	Supplier    string   `json:"supplier" validate:"omitempty,max=100"`
	Barcode     string   `json:"barcode" validate:"omitempty,max=50"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=30"`
}

// UpdateProductInput is the request body for a partial product update. Only
// non-nil fields are applied.
type UpdateProductInput struct {
	Name        *string   `json:"name" validate:"omitempty,max=100"`
	Description *string   `json:"description" validate:"omitempty,max=500"`
	Quantity    *int      `json:"quantity"`
	Threshold   *int      `json:"threshold"`
	Category    *string   `json:"category" validate:"omitempty,max=50"`
	Price       *float64  `json:"price" validate:"omitempty,gte=0"`
	Unit        *string   `json:"unit" validate:"omitempty,oneof=pieces kg liters boxes units"`
	Status      *string   `json:"status" validate:"omitempty,oneof=active inactive discontinued"`
	Location    *string   `json:"location" validate:"omitempty,max=100"`
	Supplier    *string   `json:"supplier" validate:"omitempty,max=100"`
	Barcode     *string   `json:"barcode" validate:"omitempty,max=50"`
	Tags        *[]string `json:"tags" validate:"omitempty,dive,max=30"`
}

// ListProductsQuery carries the query parameters of the product listing.
type ListProductsQuery struct {
	Page     int
	Limit    int
	SortBy   string
	Order    string
	Search   string
	Category string
	LowStock bool
}

// Pagination describes the position of a page within the full result set.
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

// ProductPage is a page of products plus its pagination metadata.
type ProductPage struct {
	Products   []models.Product `json:"products"`
	Pagination Pagination       `json:"pagination"`
}

// BulkError reports why a single record of a bulk create was rejected.
type BulkError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// BulkCreateResult is the per-item breakdown of a bulk create.
type BulkCreateResult struct {
	Created []models.Product `json:"results"`
	Errors  []BulkError      `json:"errors"`
}

// OverallStats summarizes the whole product collection.
type OverallStats struct {
	TotalProducts int     `json:"totalProducts"`
	TotalQuantity int     `json:"totalQuantity"`
	TotalValue    float64 `json:"totalValue"`
	AvgQuantity   float64 `json:"avgQuantity"`
	MinQuantity   int     `json:"minQuantity"`
	MaxQuantity   int     `json:"maxQuantity"`
}

// CategoryStat is a per-category product count and quantity total.
type CategoryStat struct {
	Category      string `json:"category"`
	Count         int    `json:"count"`
	TotalQuantity int    `json:"totalQuantity"`
}

// ProductStats is the /products/stats response body.
type ProductStats struct {
	Overall       OverallStats   `json:"overall"`
	LowStockCount int            `json:"lowStockCount"`
	CategoryStats []CategoryStat `json:"categoryStats"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo     repositories.ProductRepository
	validate *validator.Validate
	events   rabbitmq.Publisher // nil disables stock alerts
}

// NewProductService creates a new ProductService. events may be nil, in which
// case stock alerts are not published.
func NewProductService(repo repositories.ProductRepository, events rabbitmq.Publisher) *ProductService {
	return &ProductService{
		repo:     repo,
		validate: validator.New(),
		events:   events,
	}
}

// ListProducts returns a page of products matching the query. Out-of-range
// pages return an empty list with correct totals, not an error.
func (s *ProductService) ListProducts(q ListProductsQuery) (*ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}

	products, total, err := s.repo.List(repositories.ListQuery{
		Search:   q.Search,
		Category: q.Category,
		LowStock: q.LowStock,
		SortBy:   q.SortBy,
		Order:    q.Order,
		Offset:   (q.Page - 1) * q.Limit,
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(q.Limit)))
	return &ProductPage{
		Products: products,
		Pagination: Pagination{
			CurrentPage:  q.Page,
			TotalPages:   totalPages,
			TotalItems:   total,
			ItemsPerPage: q.Limit,
			HasNextPage:  q.Page < totalPages,
			HasPrevPage:  q.Page > 1,
		},
	}, nil
}

// GetProduct retrieves a single product by its ID.
func (s *ProductService) GetProduct(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// GetLowStockProducts returns all products at or below their threshold.
func (s *ProductService) GetLowStockProducts() ([]models.Product, error) {
	return s.repo.LowStock()
}

// GetStats computes collection-wide statistics and a per-category breakdown.
func (s *ProductService) GetStats() (*ProductStats, error) {
	products, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	stats := &ProductStats{CategoryStats: []CategoryStat{}}
	byCategory := make(map[string]*CategoryStat)
	for i := range products {
		p := &products[i]
		stats.Overall.TotalProducts++
		stats.Overall.TotalQuantity += p.Quantity
		stats.Overall.TotalValue += p.StockValue()
		if p.IsLowStock() {
			stats.LowStockCount++
		}
		if stats.Overall.TotalProducts == 1 || p.Quantity < stats.Overall.MinQuantity {
			stats.Overall.MinQuantity = p.Quantity
		}
		if p.Quantity > stats.Overall.MaxQuantity {
			stats.Overall.MaxQuantity = p.Quantity
		}

		cs, ok := byCategory[p.Category]
		if !ok {
			cs = &CategoryStat{Category: p.Category}
			byCategory[p.Category] = cs
		}
		cs.Count++
		cs.TotalQuantity += p.Quantity
	}
	if stats.Overall.TotalProducts > 0 {
		stats.Overall.AvgQuantity = float64(stats.Overall.TotalQuantity) / float64(stats.Overall.TotalProducts)
	}

	for _, cs := range byCategory {
		stats.CategoryStats = append(stats.CategoryStats, *cs)
	}
	sort.SliceStable(stats.CategoryStats, func(i, j int) bool {
		return stats.CategoryStats[i].Count > stats.CategoryStats[j].Count
	})
	return stats, nil
}

// CreateProduct validates the input, applies defaults, rejects duplicate
// names and barcodes, and persists the product stamped with the creating user.
func (s *ProductService) CreateProduct(input CreateProductInput, userID string) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)

	if err := s.validate.Struct(input); err != nil {
		return nil, toValidationError(err)
	}

	if _, err := s.repo.FindByName(input.Name, ""); err == nil {
		return nil, &DuplicateError{Message: "A product with this name already exists"}
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	if input.Barcode != "" {
		if _, err := s.repo.FindByBarcode(input.Barcode, ""); err == nil {
			return nil, &DuplicateError{Message: "A product with this barcode already exists"}
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
	}

	product := &models.Product{
		Name:        input.Name,
		Description: input.Description,
		Quantity:    *input.Quantity,
		Threshold:   DefaultThreshold,
		Category:    DefaultCategory,
		Unit:        DefaultUnit,
		Status:      DefaultStatus,
		Location:    input.Location,
		Supplier:    input.Supplier,
		Barcode:     input.Barcode,
		Tags:        input.Tags,
		CreatedBy:   userID,
		UpdatedBy:   userID,
	}
	if input.Threshold != nil {
		product.Threshold = *input.Threshold
	}
	if input.Category != "" {
		product.Category = input.Category
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Unit != "" {
		product.Unit = input.Unit
	}
	if input.Status != "" {
		product.Status = input.Status
	}

	if err := s.repo.Create(product); err != nil {
		return nil, err
	}

	if product.IsLowStock() {
		s.publishEvent(rabbitmq.EventLowStock, product)
	}
	return product, nil
}

// BulkCreateProducts creates each input independently. A bad record is
// reported in the errors list and never aborts the rest of the batch.
func (s *ProductService) BulkCreateProducts(inputs []CreateProductInput, userID string) *BulkCreateResult {
	result := &BulkCreateResult{
		Created: []models.Product{},
		Errors:  []BulkError{},
	}
	for _, input := range inputs {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			name = "Unknown"
		}
		product, err := s.CreateProduct(input, userID)
		if err != nil {
			result.Errors = append(result.Errors, BulkError{Name: name, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, *product)
	}
	return result
}

// UpdateProduct applies a partial update. It rejects negative quantities and
// thresholds, blank names and categories, and duplicate names/barcodes. When
// the quantity rises it stamps LastRestocked; when it falls it stamps LastSold.
func (s *ProductService) UpdateProduct(id string, input UpdateProductInput, userID string) (*models.Product, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, toValidationError(err)
	}

	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	wasLow := product.IsLowStock()
	prevQuantity := product.Quantity

	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, NewValidationError("quantity", "must be non-negative")
		}
		product.Quantity = *input.Quantity
	}
	if input.Threshold != nil {
		if *input.Threshold < 0 {
			return nil, NewValidationError("threshold", "must be non-negative")
		}
		product.Threshold = *input.Threshold
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if utf8.RuneCountInString(name) < 2 {
			return nil, NewValidationError("name", "must be at least 2 characters")
		}
		if _, err := s.repo.FindByName(name, product.ID); err == nil {
			return nil, &DuplicateError{Message: "A product with this name already exists"}
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		product.Name = name
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if utf8.RuneCountInString(category) < 2 {
			return nil, NewValidationError("category", "must be at least 2 characters")
		}
		product.Category = category
	}
	if input.Barcode != nil {
		barcode := strings.TrimSpace(*input.Barcode)
		if barcode != "" {
			if _, err := s.repo.FindByBarcode(barcode, product.ID); err == nil {
				return nil, &DuplicateError{Message: "A product with this barcode already exists"}
			} else if !errors.Is(err, repositories.ErrNotFound) {
				return nil, err
			}
		}
		product.Barcode = barcode
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Unit != nil {
		product.Unit = *input.Unit
	}
	if input.Status != nil {
		product.Status = *input.Status
	}
	if input.Location != nil {
		product.Location = *input.Location
	}
	if input.Supplier != nil {
		product.Supplier = *input.Supplier
	}
	if input.Tags != nil {
		product.Tags = *input.Tags
	}

	now := time.Now()
	if product.Quantity > prevQuantity {
		product.LastRestocked = &now
	} else if product.Quantity < prevQuantity {
		product.LastSold = &now
	}
	product.UpdatedBy = userID

	if err := s.repo.Update(product); err != nil {
		return nil, err
	}

	if product.Quantity > prevQuantity {
		s.publishEvent(rabbitmq.EventRestocked, product)
	}
	if !wasLow && product.IsLowStock() {
		s.publishEvent(rabbitmq.EventLowStock, product)
	}
	return product, nil
}

// DeleteProduct deletes a product by its ID, returning the deleted record.
func (s *ProductService) DeleteProduct(id string) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(id); err != nil {
		return nil, err
	}
	return product, nil
}

// BulkDeleteProducts removes the existing subset of ids and reports the true
// deleted count.
func (s *ProductService) BulkDeleteProducts(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, NewValidationError("ids", "Product IDs array is required")
	}
	return s.repo.DeleteByIDs(ids)
}

func (s *ProductService) publishEvent(event string, p *models.Product) {
	if s.events == nil {
		return
	}
	err := s.events.PublishStockEvent(rabbitmq.StockEvent{
		Event:       event,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    p.Quantity,
		Threshold:   p.Threshold,
		OccurredAt:  time.Now(),
	})
	if err != nil {
		log.Printf("Warning: failed to publish %s event for product %s: %v", event, p.ID, err)
	}
}

// toValidationError converts validator.ValidationErrors into the service's
// field-message form.
func toValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		fields[e.Field()] = fmt.Sprintf("failed on the '%s' rule", e.Tag())
	}
	return &ValidationError{Fields: fields}
}
