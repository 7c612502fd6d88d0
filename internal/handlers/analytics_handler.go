package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"stockmaster/internal/services"
)

// AnalyticsHandler handles HTTP requests for analytics reports. Every route
// is read-only and requires authentication.
type AnalyticsHandler struct {
	service *services.AnalyticsService
	auth    fiber.Handler
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(service *services.AnalyticsService, auth fiber.Handler) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		auth:    auth,
	}
}

// RegisterRoutes registers the analytics routes behind the auth gate.
func (h *AnalyticsHandler) RegisterRoutes(router fiber.Router) {
	analytics := router.Group("/analytics", h.auth)
	analytics.Get("/dashboard", h.HandleDashboard)
	analytics.Get("/inventory-value", h.HandleInventoryValue)
	analytics.Get("/stock-movement", h.HandleStockMovement)
	analytics.Get("/category-performance", h.HandleCategoryPerformance)
	analytics.Get("/supplier-analysis", h.HandleSupplierAnalysis)
	analytics.Get("/export", h.HandleExport)
}

// HandleDashboard returns the dashboard overview report.
func (h *AnalyticsHandler) HandleDashboard(c *fiber.Ctx) error {
	report, err := h.service.Dashboard()
	if err != nil {
		return serviceError(c, err, "Report not found", "Failed to fetch dashboard analytics")
	}
	return c.JSON(report)
}

// HandleInventoryValue returns the per-product valuation report.
func (h *AnalyticsHandler) HandleInventoryValue(c *fiber.Ctx) error {
	report, err := h.service.InventoryValue(
		c.Query("category"),
		c.Query("sortBy", "value"),
		c.Query("order", "desc"),
	)
	if err != nil {
		return serviceError(c, err, "Report not found", "Failed to fetch inventory value")
	}
	return c.JSON(report)
}

// HandleStockMovement returns products with restock/sale activity in the
// requested window (default 30 days).
func (h *AnalyticsHandler) HandleStockMovement(c *fiber.Ctx) error {
	report, err := h.service.StockMovement(c.QueryInt("days", 30))
	if err != nil {
		return serviceError(c, err, "Report not found", "Failed to fetch stock movement")
	}
	return c.JSON(report)
}

// HandleCategoryPerformance returns per-category aggregates and stock health.
func (h *AnalyticsHandler) HandleCategoryPerformance(c *fiber.Ctx) error {
	report, err := h.service.CategoryPerformance()
	if err != nil {
		return serviceError(c, err, "Report not found", "Failed to fetch category performance")
	}
	return c.JSON(fiber.Map{
		"categories": report.Categories,
		"summary": fiber.Map{
			"totalCategories": report.Summary.TotalGroups,
			"totalProducts":   report.Summary.TotalProducts,
			"totalValue":      report.Summary.TotalValue,
		},
	})
}

// HandleSupplierAnalysis returns per-supplier aggregates, excluding products
// without a supplier.
func (h *AnalyticsHandler) HandleSupplierAnalysis(c *fiber.Ctx) error {
	report, err := h.service.SupplierAnalysis()
	if err != nil {
		return serviceError(c, err, "Report not found", "Failed to fetch supplier analysis")
	}
	return c.JSON(fiber.Map{
		"suppliers": report.Suppliers,
		"summary": fiber.Map{
			"totalSuppliers": report.Summary.TotalGroups,
			"totalProducts":  report.Summary.TotalProducts,
			"totalValue":     report.Summary.TotalValue,
		},
	})
}

// HandleExport streams a report as JSON or as a CSV attachment with a
// date-stamped filename.
func (h *AnalyticsHandler) HandleExport(c *fiber.Ctx) error {
	result, err := h.service.Export(c.Query("type", "all"), c.Query("format", "json"))
	if err != nil {
		return serviceError(c, err, "Report not found", "Failed to export data")
	}

	if result.CSV != nil {
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.Filename))
		return c.Send(result.CSV)
	}
	return c.JSON(result.JSON)
}
