package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"stockmaster/internal/models"
	"stockmaster/internal/repositories"
)

// DashboardOverview is the headline block of the dashboard report.
type DashboardOverview struct {
	TotalProducts   int     `json:"totalProducts"`
	LowStockCount   int     `json:"lowStockCount"`
	OutOfStockCount int     `json:"outOfStockCount"`
	TotalValue      float64 `json:"totalValue"`
}

// DashboardReport aggregates the data behind the dashboard view.
type DashboardReport struct {
	Overview       DashboardOverview `json:"overview"`
	CategoryStats  []CategoryStat    `json:"categoryStats"`
	RecentProducts []models.Product  `json:"recentProducts"`
	TopCategories  []CategoryStat    `json:"topCategories"`
}

// InventoryValueItem is a per-product valuation row.
type InventoryValueItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Value       float64 `json:"value"`
	StockStatus string  `json:"stockStatus"`
}

// InventoryValueReport is the inventory valuation response.
type InventoryValueReport struct {
	TotalValue float64              `json:"totalValue"`
	Items      []InventoryValueItem `json:"items"`
	Count      int                  `json:"count"`
}

// StockMovementItem annotates a recently moved product.
type StockMovementItem struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Category         string     `json:"category"`
	Quantity         int        `json:"quantity"`
	LastRestocked    *time.Time `json:"lastRestocked"`
	LastSold         *time.Time `json:"lastSold"`
	DaysSinceRestock *int       `json:"daysSinceRestock"`
}

// StockMovementReport lists products with restock or sale activity in the
// report window.
type StockMovementReport struct {
	Period     string              `json:"period"`
	TotalItems int                 `json:"totalItems"`
	Items      []StockMovementItem `json:"items"`
}

// CategoryPerformance is a per-category aggregate.
type CategoryPerformance struct {
	Category        string  `json:"category"`
	TotalProducts   int     `json:"totalProducts"`
	TotalQuantity   int     `json:"totalQuantity"`
	TotalValue      float64 `json:"totalValue"`
	AvgPrice        float64 `json:"avgPrice"`
	LowStockCount   int     `json:"lowStockCount"`
	OutOfStockCount int     `json:"outOfStockCount"`
	StockHealth     float64 `json:"stockHealth"`
}

// GroupSummary totals a grouped report.
type GroupSummary struct {
	TotalGroups   int     `json:"totalGroups"`
	TotalProducts int     `json:"totalProducts"`
	TotalValue    float64 `json:"totalValue"`
}

// CategoryPerformanceReport is the category performance response.
type CategoryPerformanceReport struct {
	Categories []CategoryPerformance `json:"categories"`
	Summary    GroupSummary          `json:"summary"`
}

// SupplierPerformance is a per-supplier aggregate. Products without a
// supplier are excluded from the report.
type SupplierPerformance struct {
	Supplier           string  `json:"supplier"`
	TotalProducts      int     `json:"totalProducts"`
	TotalQuantity      int     `json:"totalQuantity"`
	TotalValue         float64 `json:"totalValue"`
	LowStockCount      int     `json:"lowStockCount"`
	AvgValuePerProduct float64 `json:"avgValuePerProduct"`
}

// SupplierAnalysisReport is the supplier analysis response.
type SupplierAnalysisReport struct {
	Suppliers []SupplierPerformance `json:"suppliers"`
	Summary   GroupSummary          `json:"summary"`
}

// ExportEnvelope wraps a JSON export payload.
type ExportEnvelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
	Data      any       `json:"data"`
}

// ExportResult is a rendered export. Exactly one of JSON and CSV is set,
// depending on the requested format.
type ExportResult struct {
	Filename string // "<report>-YYYY-MM-DD.csv", empty for JSON exports
	JSON     *ExportEnvelope
	CSV      []byte
}

// AnalyticsService computes read-only reports over the product collection.
// No report mutates stored data.
type AnalyticsService struct {
	repo repositories.ProductRepository
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(repo repositories.ProductRepository) *AnalyticsService {
	return &AnalyticsService{
		repo: repo,
	}
}

// Dashboard computes the overview counts, top categories, and most recent
// products for the dashboard view.
func (s *AnalyticsService) Dashboard() (*DashboardReport, error) {
	products, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentProducts(5)
	if err != nil {
		return nil, err
	}

	report := &DashboardReport{RecentProducts: recent}
	for i := range products {
		p := &products[i]
		report.Overview.TotalProducts++
		report.Overview.TotalValue += p.StockValue()
		if p.IsLowStock() {
			report.Overview.LowStockCount++
		}
		if p.Quantity == 0 {
			report.Overview.OutOfStockCount++
		}
	}

	stats := categoryStats(products)
	report.CategoryStats = topN(stats, 5)
	report.TopCategories = topN(stats, 10)
	return report, nil
}

// InventoryValue projects every product to its stock value, optionally
// filtered by category and sorted by any projected field.
func (s *AnalyticsService) InventoryValue(category, sortBy, order string) (*InventoryValueReport, error) {
	products, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	report := &InventoryValueReport{Items: []InventoryValueItem{}}
	for i := range products {
		p := &products[i]
		if category != "" && p.Category != category {
			continue
		}
		item := InventoryValueItem{
			ID:          p.ID,
			Name:        p.Name,
			Category:    p.Category,
			Quantity:    p.Quantity,
			Price:       p.Price,
			Value:       p.StockValue(),
			StockStatus: p.StockStatus(),
		}
		report.Items = append(report.Items, item)
		report.TotalValue += item.Value
	}
	report.Count = len(report.Items)

	less := func(a, b InventoryValueItem) bool { return a.Value < b.Value }
	switch sortBy {
	case "name":
		less = func(a, b InventoryValueItem) bool { return a.Name < b.Name }
	case "category":
		less = func(a, b InventoryValueItem) bool { return a.Category < b.Category }
	case "quantity":
		less = func(a, b InventoryValueItem) bool { return a.Quantity < b.Quantity }
	case "price":
		less = func(a, b InventoryValueItem) bool { return a.Price < b.Price }
	}
	sort.SliceStable(report.Items, func(i, j int) bool {
		if order == "asc" {
			return less(report.Items[i], report.Items[j])
		}
		return less(report.Items[j], report.Items[i])
	})
	return report, nil
}

// StockMovement lists products restocked or sold within the last days days,
// annotated with days since their last restock.
func (s *AnalyticsService) StockMovement(days int) (*StockMovementReport, error) {
	if days < 1 {
		days = 30
	}
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	products, err := s.repo.MovedSince(since)
	if err != nil {
		return nil, err
	}

	items := make([]StockMovementItem, 0, len(products))
	for i := range products {
		p := &products[i]
		items = append(items, StockMovementItem{
			ID:               p.ID,
			Name:             p.Name,
			Category:         p.Category,
			Quantity:         p.Quantity,
			LastRestocked:    p.LastRestocked,
			LastSold:         p.LastSold,
			DaysSinceRestock: p.DaysSinceRestock(now),
		})
	}
	return &StockMovementReport{
		Period:     fmt.Sprintf("%d days", days),
		TotalItems: len(items),
		Items:      items,
	}, nil
}

// CategoryPerformance aggregates totals, averages, and stock health per
// category, sorted by total value descending.
func (s *AnalyticsService) CategoryPerformance() (*CategoryPerformanceReport, error) {
	products, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]*CategoryPerformance)
	priceSums := make(map[string]float64)
	for i := range products {
		p := &products[i]
		cp, ok := byCategory[p.Category]
		if !ok {
			cp = &CategoryPerformance{Category: p.Category}
			byCategory[p.Category] = cp
		}
		cp.TotalProducts++
		cp.TotalQuantity += p.Quantity
		cp.TotalValue += p.StockValue()
		priceSums[p.Category] += p.Price
		if p.IsLowStock() {
			cp.LowStockCount++
		}
		if p.Quantity == 0 {
			cp.OutOfStockCount++
		}
	}

	report := &CategoryPerformanceReport{Categories: []CategoryPerformance{}}
	for category, cp := range byCategory {
		cp.AvgPrice = round2(priceSums[category] / float64(cp.TotalProducts))
		cp.StockHealth = round2(100 * float64(cp.TotalProducts-cp.LowStockCount) / float64(cp.TotalProducts))
		report.Categories = append(report.Categories, *cp)
		report.Summary.TotalProducts += cp.TotalProducts
		report.Summary.TotalValue += cp.TotalValue
	}
	report.Summary.TotalGroups = len(report.Categories)
	sort.SliceStable(report.Categories, func(i, j int) bool {
		return report.Categories[i].TotalValue > report.Categories[j].TotalValue
	})
	return report, nil
}

// SupplierAnalysis aggregates totals per supplier, excluding products with an
// empty supplier, sorted by total value descending.
func (s *AnalyticsService) SupplierAnalysis() (*SupplierAnalysisReport, error) {
	products, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	bySupplier := make(map[string]*SupplierPerformance)
	for i := range products {
		p := &products[i]
		if p.Supplier == "" {
			continue
		}
		sp, ok := bySupplier[p.Supplier]
		if !ok {
			sp = &SupplierPerformance{Supplier: p.Supplier}
			bySupplier[p.Supplier] = sp
		}
		sp.TotalProducts++
		sp.TotalQuantity += p.Quantity
		sp.TotalValue += p.StockValue()
		if p.IsLowStock() {
			sp.LowStockCount++
		}
	}

	report := &SupplierAnalysisReport{Suppliers: []SupplierPerformance{}}
	for _, sp := range bySupplier {
		sp.AvgValuePerProduct = round2(sp.TotalValue / float64(sp.TotalProducts))
		report.Suppliers = append(report.Suppliers, *sp)
		report.Summary.TotalProducts += sp.TotalProducts
		report.Summary.TotalValue += sp.TotalValue
	}
	report.Summary.TotalGroups = len(report.Suppliers)
	sort.SliceStable(report.Suppliers, func(i, j int) bool {
		return report.Suppliers[i].TotalValue > report.Suppliers[j].TotalValue
	})
	return report, nil
}

// Export renders an inventory data set as JSON or CSV. exportType selects the
// data set (all, inventory, low-stock, categories); unknown types fall back
// to the full inventory.
func (s *AnalyticsService) Export(exportType, format string) (*ExportResult, error) {
	var (
		products   []models.Product
		categories []CategoryStat
		filename   string
		err        error
	)

	switch exportType {
	case "inventory":
		products, err = s.repo.GetAll()
		filename = "inventory-report"
	case "low-stock":
		products, err = s.repo.LowStock()
		filename = "low-stock-report"
	case "categories":
		products, err = s.repo.GetAll()
		if err == nil {
			categories = categoryStats(products)
			products = nil
		}
		filename = "category-report"
	default:
		exportType = "all"
		products, err = s.repo.GetAll()
		filename = "full-inventory-report"
	}
	if err != nil {
		return nil, err
	}

	if format == "csv" {
		var body []byte
		if categories != nil {
			body, err = categoriesToCSV(categories)
		} else {
			body, err = productsToCSV(products)
		}
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			Filename: fmt.Sprintf("%s-%s.csv", filename, time.Now().Format("2006-01-02")),
			CSV:      body,
		}, nil
	}

	envelope := &ExportEnvelope{Type: exportType, Timestamp: time.Now()}
	if categories != nil {
		envelope.Count = len(categories)
		envelope.Data = categories
	} else {
		envelope.Count = len(products)
		envelope.Data = products
	}
	return &ExportResult{JSON: envelope}, nil
}

// productsToCSV renders products as quoted CSV with a header row.
func productsToCSV(products []models.Product) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"id", "name", "description", "quantity", "threshold", "category",
		"price", "unit", "status", "location", "supplier", "barcode",
		"stockStatus", "stockValue", "createdAt", "updatedAt",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range products {
		p := &products[i]
		row := []string{
			p.ID, p.Name, p.Description,
			strconv.Itoa(p.Quantity), strconv.Itoa(p.Threshold), p.Category,
			strconv.FormatFloat(p.Price, 'f', -1, 64), p.Unit, p.Status,
			p.Location, p.Supplier, p.Barcode,
			p.StockStatus(), strconv.FormatFloat(p.StockValue(), 'f', -1, 64),
			p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to render CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// categoriesToCSV renders the category summary as CSV with a header row.
func categoriesToCSV(categories []CategoryStat) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"category", "count", "totalQuantity"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, c := range categories {
		row := []string{c.Category, strconv.Itoa(c.Count), strconv.Itoa(c.TotalQuantity)}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to render CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// categoryStats folds products into per-category counts sorted by count.
func categoryStats(products []models.Product) []CategoryStat {
	byCategory := make(map[string]*CategoryStat)
	for i := range products {
		p := &products[i]
		cs, ok := byCategory[p.Category]
		if !ok {
			cs = &CategoryStat{Category: p.Category}
			byCategory[p.Category] = cs
		}
		cs.Count++
		cs.TotalQuantity += p.Quantity
	}
	stats := make([]CategoryStat, 0, len(byCategory))
	for _, cs := range byCategory {
		stats = append(stats, *cs)
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	return stats
}

func topN(stats []CategoryStat, n int) []CategoryStat {
	if len(stats) > n {
		stats = stats[:n]
	}
	out := make([]CategoryStat, len(stats))
	copy(out, stats)
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
