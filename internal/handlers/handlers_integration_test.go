package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stockmaster/internal/handlers"
	"stockmaster/internal/middleware"
	"stockmaster/internal/models"
	"stockmaster/internal/repositories"
	"stockmaster/internal/services"
)

var dbCounter int64

// setupApp wires a Fiber app over a fresh in-memory SQLite database. Each
// call gets its own named database so tests stay isolated.
func setupApp(t *testing.T) (*fiber.App, *services.ProductService) {
	t.Helper()

	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	productService := services.NewProductService(productRepo, nil)
	analyticsService := services.NewAnalyticsService(productRepo)
	authService := services.NewAuthService(userRepo, "test_jwt_secret")

	authGate := middleware.AuthRequired(authService)
	productHandler := handlers.NewProductHandler(productService, authGate)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, authGate)
	authHandler := handlers.NewAuthHandler(authService, authGate)
	systemHandler := handlers.NewSystemHandler(db, "test")

	app := fiber.New()
	systemHandler.RegisterRoutes(app)
	api := app.Group("/api")
	productHandler.RegisterRoutes(api)
	analyticsHandler.RegisterRoutes(api)
	authHandler.RegisterRoutes(api)
	app.Use(handlers.NotFound)

	return app, productService
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// registerAndLogin creates a user and returns a valid bearer token.
func registerAndLogin(t *testing.T, app *fiber.App) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"username": "tester",
		"email":    "tester@example.com",
		"password": "password123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	loginBody, _ := json.Marshal(map[string]string{
		"username": "tester",
		"password": "password123",
	})
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(loginBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	resp.Body.Close()
	assert.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func jsonRequest(method, target, token string, payload any) *http.Request {
	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthFlow(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app)

	// Duplicate registration is rejected.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "tester",
		"email":    "other@example.com",
		"password": "password123",
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// /me returns the authenticated principal.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/auth/me", token, nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var meResp struct {
		User models.User `json:"user"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&meResp))
	resp.Body.Close()
	assert.Equal(t, "tester", meResp.User.Username)

	// Bad credentials fail with 401.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "tester",
		"password": "wrong",
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestUnauthenticatedWritesAreRejected(t *testing.T) {
	app, _ := setupApp(t)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/products", "", map[string]any{
		"name": "Widget", "quantity": 3,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var errResp map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	resp.Body.Close()
	assert.Equal(t, "Access token required", errResp["error"])

	// A garbage token is rejected as invalid.
	resp, err = app.Test(jsonRequest(http.MethodDelete, "/api/products/bulk", "garbage", map[string]any{
		"ids": []string{"x"},
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	resp.Body.Close()
	assert.Equal(t, "Invalid token", errResp["error"])

	// Reads stay public.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products", "", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Analytics requires a token.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/analytics/dashboard", "", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestProductLifecycle(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app)

	// Create a product that starts below its threshold.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/products", token, map[string]any{
		"name":      "Widget",
		"quantity":  3,
		"threshold": 5,
		"category":  "Tools",
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var createResp struct {
		Message string         `json:"message"`
		Product models.Product `json:"product"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&createResp))
	resp.Body.Close()
	assert.Contains(t, createResp.Message, "added successfully")
	assert.NotEmpty(t, createResp.Product.ID)
	assert.Equal(t, models.StockStatusLow, createResp.Product.StockStatus())
	productID := createResp.Product.ID

	// It shows up in the low-stock listing.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products/low-stock", "", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var lowResp struct {
		Count    int              `json:"count"`
		Products []models.Product `json:"products"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&lowResp))
	resp.Body.Close()
	assert.Equal(t, 1, lowResp.Count)
	assert.Equal(t, "Widget", lowResp.Products[0].Name)

	// Restocking above the threshold stamps LastRestocked.
	resp, err = app.Test(jsonRequest(http.MethodPut, "/api/products/"+productID, token, map[string]any{
		"quantity": 10,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updateResp struct {
		Product models.Product `json:"product"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&updateResp))
	resp.Body.Close()
	assert.Equal(t, 10, updateResp.Product.Quantity)
	assert.Equal(t, models.StockStatusIn, updateResp.Product.StockStatus())
	assert.NotNil(t, updateResp.Product.LastRestocked)

	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products/low-stock", "", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&lowResp))
	resp.Body.Close()
	assert.Equal(t, 0, lowResp.Count)

	// Delete and verify 404 afterwards.
	resp, err = app.Test(jsonRequest(http.MethodDelete, "/api/products/"+productID, token, nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products/"+productID, "", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Malformed ids are a client error, not a 404.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products/not-a-uuid", "", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestProductValidationAndDuplicates(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app)

	// Negative quantity is rejected.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/products", token, map[string]any{
		"name": "Bad", "quantity": -1,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Negative threshold is rejected.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/products", token, map[string]any{
		"name": "Bad", "quantity": 1, "threshold": -1,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// First create succeeds; a second differing only by case is a duplicate.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/products", token, map[string]any{
		"name": "Widget", "quantity": 1,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/products", token, map[string]any{
		"name": "wIDGET", "quantity": 1,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	resp.Body.Close()
	assert.Contains(t, errResp["error"], "already exists")
}

func TestProductListPaginationAndFilters(t *testing.T) {
	app, productService := setupApp(t)

	for i := 0; i < 12; i++ {
		quantity := i
		category := "Tools"
		if i%2 == 0 {
			category = "Office"
		}
		_, err := productService.CreateProduct(services.CreateProductInput{
			Name:      fmt.Sprintf("Item %02d", i),
			Quantity:  &quantity,
			Category:  category,
			Threshold: new(int), // threshold 0: only quantity 0 is low
		}, "seed")
		assert.NoError(t, err)
	}

	var listResp struct {
		Products   []models.Product    `json:"products"`
		Pagination services.Pagination `json:"pagination"`
	}

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/products?page=1&limit=5", "", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
	resp.Body.Close()
	assert.Len(t, listResp.Products, 5)
	assert.Equal(t, int64(12), listResp.Pagination.TotalItems)
	assert.Equal(t, 3, listResp.Pagination.TotalPages)
	assert.True(t, listResp.Pagination.HasNextPage)

	// Page beyond range: empty items, intact metadata.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products?page=7&limit=5", "", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
	resp.Body.Close()
	assert.Empty(t, listResp.Products)
	assert.Equal(t, int64(12), listResp.Pagination.TotalItems)

	// Category filter.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products?category=Tools&limit=20", "", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
	resp.Body.Close()
	assert.Equal(t, int64(6), listResp.Pagination.TotalItems)

	// Case-insensitive name search.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products?search=item%2001", "", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
	resp.Body.Close()
	assert.Equal(t, int64(1), listResp.Pagination.TotalItems)
	assert.Equal(t, "Item 01", listResp.Products[0].Name)

	// Low-stock flag: only the quantity-0 product qualifies.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products?lowStock=true&limit=20", "", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
	resp.Body.Close()
	assert.Equal(t, int64(1), listResp.Pagination.TotalItems)
	assert.Equal(t, "Item 00", listResp.Products[0].Name)

	// Sorting by quantity ascending.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products?sort=quantity&order=asc&limit=3", "", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
	resp.Body.Close()
	assert.Equal(t, 0, listResp.Products[0].Quantity)
	assert.Equal(t, 1, listResp.Products[1].Quantity)
}

func TestProductSearchTreatsWildcardsLiterally(t *testing.T) {
	app, productService := setupApp(t)

	names := []string{"100% Cotton Tee", "100s Cotton Tee", "Spare_Part", "SpareXPart"}
	for _, name := range names {
		quantity := 1
		_, err := productService.CreateProduct(services.CreateProductInput{
			Name: name, Quantity: &quantity,
		}, "seed")
		assert.NoError(t, err)
	}

	var listResp struct {
		Products   []models.Product    `json:"products"`
		Pagination services.Pagination `json:"pagination"`
	}

	// "%" in the search term is a literal percent sign, not a wildcard.
	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/products?search=100%25", "", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
	resp.Body.Close()
	assert.Equal(t, int64(1), listResp.Pagination.TotalItems)
	assert.Equal(t, "100% Cotton Tee", listResp.Products[0].Name)

	// "_" matches only a literal underscore, not any single character.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/products?search=Spare_", "", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
	resp.Body.Close()
	assert.Equal(t, int64(1), listResp.Pagination.TotalItems)
	assert.Equal(t, "Spare_Part", listResp.Products[0].Name)
}

func TestBulkEndpoints(t *testing.T) {
	app, productService := setupApp(t)
	token := registerAndLogin(t, app)

	// Bulk create: one good record, one missing its name, one duplicate.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/products/bulk", token, map[string]any{
		"products": []map[string]any{
			{"name": "Hammer", "quantity": 5},
			{"quantity": 2},
			{"name": "hammer", "quantity": 1},
		},
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var bulkResp struct {
		Added   int                  `json:"added"`
		Failed  int                  `json:"failed"`
		Results []models.Product     `json:"results"`
		Errors  []services.BulkError `json:"errors"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&bulkResp))
	resp.Body.Close()
	assert.Equal(t, 1, bulkResp.Added)
	assert.Equal(t, 2, bulkResp.Failed)

	// Bulk delete: only existing ids count toward the total.
	quantity := 1
	p2, err := productService.CreateProduct(services.CreateProductInput{
		Name: "Wrench", Quantity: &quantity,
	}, "seed")
	assert.NoError(t, err)

	resp, err = app.Test(jsonRequest(http.MethodDelete, "/api/products/bulk", token, map[string]any{
		"ids": []string{bulkResp.Results[0].ID, p2.ID, "00000000-0000-0000-0000-000000000000"},
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var deleteResp struct {
		Message      string `json:"message"`
		DeletedCount int64  `json:"deletedCount"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&deleteResp))
	resp.Body.Close()
	assert.Equal(t, int64(2), deleteResp.DeletedCount)
	assert.Contains(t, deleteResp.Message, "deleted 2 products")

	// Empty id list is a client error.
	resp, err = app.Test(jsonRequest(http.MethodDelete, "/api/products/bulk", token, map[string]any{
		"ids": []string{},
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAnalyticsEndpoints(t *testing.T) {
	app, productService := setupApp(t)
	token := registerAndLogin(t, app)

	seed := []services.CreateProductInput{
		{Name: "Hammer", Category: "Tools", Supplier: "Acme"},
		{Name: "Screwdriver", Category: "Tools", Supplier: "Acme"},
		{Name: "Stapler", Category: "Office"},
	}
	quantities := []int{10, 2, 0}
	prices := []float64{5, 3, 8}
	for i := range seed {
		seed[i].Quantity = &quantities[i]
		seed[i].Price = &prices[i]
		_, err := productService.CreateProduct(seed[i], "seed")
		assert.NoError(t, err)
	}

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/analytics/dashboard", token, nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var dashResp struct {
		Overview services.DashboardOverview `json:"overview"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&dashResp))
	resp.Body.Close()
	assert.Equal(t, 3, dashResp.Overview.TotalProducts)
	assert.Equal(t, 1, dashResp.Overview.OutOfStockCount)
	assert.InDelta(t, 56.0, dashResp.Overview.TotalValue, 1e-9)

	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/analytics/category-performance", token, nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/analytics/supplier-analysis", token, nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var supplierResp struct {
		Suppliers []services.SupplierPerformance `json:"suppliers"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&supplierResp))
	resp.Body.Close()
	assert.Len(t, supplierResp.Suppliers, 1) // Stapler has no supplier

	// CSV export sets attachment headers and a date-stamped filename.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/analytics/export?type=inventory&format=csv", token, nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "inventory-report-")
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, string(body), "id,name,description,quantity")
	assert.Contains(t, string(body), "Hammer")
}
