package services_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stockmaster/internal/models"
	"stockmaster/internal/repositories"
	"stockmaster/internal/services"
)

func seedAnalyticsRepo(t *testing.T) *repositories.MockProductRepository {
	t.Helper()
	repo := repositories.NewMockProductRepository()

	recentRestock := time.Now().Add(-40 * time.Hour) // under two days ago
	oldRestock := time.Now().AddDate(0, 0, -60)

	seed := []models.Product{
		{Name: "Hammer", Quantity: 10, Threshold: 2, Category: "Tools", Price: 5, Supplier: "Acme", LastRestocked: &recentRestock},
		{Name: "Screwdriver", Quantity: 2, Threshold: 5, Category: "Tools", Price: 3, Supplier: "Acme"},
		{Name: "Stapler", Quantity: 0, Threshold: 5, Category: "Office", Price: 8, Supplier: "OfficeCo", LastRestocked: &oldRestock},
		{Name: "Paper", Quantity: 100, Threshold: 20, Category: "Office", Price: 0.1},
	}
	for i := range seed {
		assert.NoError(t, repo.Create(&seed[i]))
	}
	return repo
}

func TestAnalyticsService_Dashboard(t *testing.T) {
	service := services.NewAnalyticsService(seedAnalyticsRepo(t))

	report, err := service.Dashboard()
	assert.NoError(t, err)

	assert.Equal(t, 4, report.Overview.TotalProducts)
	assert.Equal(t, 2, report.Overview.LowStockCount)   // Screwdriver, Stapler
	assert.Equal(t, 1, report.Overview.OutOfStockCount) // Stapler
	assert.InDelta(t, 10*5.0+2*3.0+0+100*0.1, report.Overview.TotalValue, 1e-9)
	assert.Len(t, report.RecentProducts, 4)
	assert.Len(t, report.CategoryStats, 2)
	assert.Len(t, report.TopCategories, 2)
}

func TestAnalyticsService_InventoryValue(t *testing.T) {
	service := services.NewAnalyticsService(seedAnalyticsRepo(t))

	report, err := service.InventoryValue("", "value", "desc")
	assert.NoError(t, err)
	assert.Equal(t, 4, report.Count)
	assert.Equal(t, "Hammer", report.Items[0].Name) // 50 is the largest value
	assert.Equal(t, models.StockStatusIn, report.Items[0].StockStatus)
	assert.InDelta(t, 66.0, report.TotalValue, 1e-9)

	filtered, err := service.InventoryValue("Office", "value", "asc")
	assert.NoError(t, err)
	assert.Equal(t, 2, filtered.Count)
	assert.Equal(t, "Stapler", filtered.Items[0].Name)
	assert.Equal(t, models.StockStatusOut, filtered.Items[0].StockStatus)
}

func TestAnalyticsService_StockMovement(t *testing.T) {
	service := services.NewAnalyticsService(seedAnalyticsRepo(t))

	report, err := service.StockMovement(30)
	assert.NoError(t, err)
	assert.Equal(t, "30 days", report.Period)
	// Only Hammer moved within the window; Stapler's restock is 60 days old.
	assert.Equal(t, 1, report.TotalItems)
	assert.Equal(t, "Hammer", report.Items[0].Name)
	if assert.NotNil(t, report.Items[0].DaysSinceRestock) {
		assert.Equal(t, 2, *report.Items[0].DaysSinceRestock)
	}

	wide, err := service.StockMovement(90)
	assert.NoError(t, err)
	assert.Equal(t, 2, wide.TotalItems)
}

func TestAnalyticsService_CategoryPerformance(t *testing.T) {
	service := services.NewAnalyticsService(seedAnalyticsRepo(t))

	report, err := service.CategoryPerformance()
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Summary.TotalGroups)
	assert.Equal(t, 4, report.Summary.TotalProducts)

	byName := make(map[string]services.CategoryPerformance)
	for _, c := range report.Categories {
		byName[c.Category] = c
	}

	tools := byName["Tools"]
	assert.Equal(t, 2, tools.TotalProducts)
	assert.Equal(t, 1, tools.LowStockCount)
	assert.Equal(t, 0, tools.OutOfStockCount)
	assert.Equal(t, 50.0, tools.StockHealth) // 1 of 2 not low
	assert.Equal(t, 4.0, tools.AvgPrice)     // (5+3)/2

	office := byName["Office"]
	assert.Equal(t, 1, office.LowStockCount)
	assert.Equal(t, 1, office.OutOfStockCount)
	assert.Equal(t, 50.0, office.StockHealth)
	assert.Equal(t, 4.05, office.AvgPrice) // (8+0.1)/2

	// Sorted by total value descending: Tools (56) before Office (10).
	assert.Equal(t, "Tools", report.Categories[0].Category)
}

func TestAnalyticsService_SupplierAnalysis(t *testing.T) {
	service := services.NewAnalyticsService(seedAnalyticsRepo(t))

	report, err := service.SupplierAnalysis()
	assert.NoError(t, err)

	// Paper has no supplier and must be excluded.
	assert.Equal(t, 2, report.Summary.TotalGroups)
	assert.Equal(t, 3, report.Summary.TotalProducts)

	byName := make(map[string]services.SupplierPerformance)
	for _, s := range report.Suppliers {
		byName[s.Supplier] = s
	}
	acme := byName["Acme"]
	assert.Equal(t, 2, acme.TotalProducts)
	assert.InDelta(t, 56.0, acme.TotalValue, 1e-9)
	assert.Equal(t, 28.0, acme.AvgValuePerProduct)
	assert.Equal(t, 1, acme.LowStockCount)
}

func TestAnalyticsService_ExportJSON(t *testing.T) {
	service := services.NewAnalyticsService(seedAnalyticsRepo(t))

	result, err := service.Export("low-stock", "json")
	assert.NoError(t, err)
	assert.NotNil(t, result.JSON)
	assert.Nil(t, result.CSV)
	assert.Equal(t, "low-stock", result.JSON.Type)
	assert.Equal(t, 2, result.JSON.Count)

	products, ok := result.JSON.Data.([]models.Product)
	assert.True(t, ok)
	for _, p := range products {
		assert.LessOrEqual(t, p.Quantity, p.Threshold)
	}
}

func TestAnalyticsService_ExportCSV(t *testing.T) {
	service := services.NewAnalyticsService(seedAnalyticsRepo(t))

	result, err := service.Export("inventory", "csv")
	assert.NoError(t, err)
	assert.Nil(t, result.JSON)

	expectedName := "inventory-report-" + time.Now().Format("2006-01-02") + ".csv"
	assert.Equal(t, expectedName, result.Filename)

	lines := strings.Split(strings.TrimSpace(string(result.CSV)), "\n")
	assert.Len(t, lines, 5) // header + 4 products
	assert.True(t, strings.HasPrefix(lines[0], "id,name,description,quantity,threshold,category"))

	// Category summary export renders its own column set.
	catResult, err := service.Export("categories", "csv")
	assert.NoError(t, err)
	catLines := strings.Split(strings.TrimSpace(string(catResult.CSV)), "\n")
	assert.Equal(t, "category,count,totalQuantity", catLines[0])
	assert.Len(t, catLines, 3) // header + Tools + Office
}

func TestAnalyticsService_ExportUnknownTypeFallsBackToAll(t *testing.T) {
	service := services.NewAnalyticsService(seedAnalyticsRepo(t))

	result, err := service.Export("bogus", "json")
	assert.NoError(t, err)
	assert.Equal(t, "all", result.JSON.Type)
	assert.Equal(t, 4, result.JSON.Count)
}
