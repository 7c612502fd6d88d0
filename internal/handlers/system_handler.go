package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const apiVersion = "1.0.0"

// SystemHandler serves the liveness and info routes.
type SystemHandler struct {
	db          *gorm.DB
	environment string
	startedAt   time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil.
func NewSystemHandler(db *gorm.DB, environment string) *SystemHandler {
	return &SystemHandler{
		db:          db,
		environment: environment,
		startedAt:   time.Now(),
	}
}

// RegisterRoutes registers /health, /, and /api/docs.
func (h *SystemHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HandleHealth)
	app.Get("/", h.HandleRoot)
	app.Get("/api/docs", h.HandleDocs)
}

// HandleHealth reports liveness, uptime, and database connectivity.
func (h *SystemHandler) HandleHealth(c *fiber.Ctx) error {
	database := "disconnected"
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil && sqlDB.Ping() == nil {
			database = "connected"
		}
	}
	return c.JSON(fiber.Map{
		"status":      "OK",
		"timestamp":   time.Now().Format(time.RFC3339),
		"uptime":      time.Since(h.startedAt).Seconds(),
		"environment": h.environment,
		"database":    database,
	})
}

// HandleRoot returns API info and the endpoint map.
func (h *SystemHandler) HandleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":     "StockMaster API is running",
		"version":     apiVersion,
		"environment": h.environment,
		"timestamp":   time.Now().Format(time.RFC3339),
		"endpoints": fiber.Map{
			"health":    "/health",
			"products":  "/api/products",
			"analytics": "/api/analytics",
			"auth":      "/api/auth",
			"docs":      "/api/docs",
		},
	})
}

// HandleDocs returns a human-readable endpoint summary.
func (h *SystemHandler) HandleDocs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"title":   "StockMaster API Documentation",
		"version": apiVersion,
		"endpoints": fiber.Map{
			"authentication": fiber.Map{
				"POST /api/auth/register": "Register a new user",
				"POST /api/auth/login":    "Login user",
				"GET /api/auth/me":        "Get current user (protected)",
			},
			"products": fiber.Map{
				"GET /api/products":           "List products (page, limit, sort, order, search, category, lowStock)",
				"GET /api/products/stats":     "Product statistics",
				"GET /api/products/low-stock": "Products at or below threshold",
				"GET /api/products/:id":       "Get product by id",
				"POST /api/products":          "Add new product (protected)",
				"POST /api/products/bulk":     "Bulk add products (protected)",
				"PUT /api/products/:id":       "Update product (protected)",
				"DELETE /api/products/:id":    "Delete product (protected)",
				"DELETE /api/products/bulk":   "Bulk delete products (protected)",
			},
			"analytics": fiber.Map{
				"GET /api/analytics/dashboard":            "Dashboard overview (protected)",
				"GET /api/analytics/inventory-value":      "Inventory valuation (protected)",
				"GET /api/analytics/stock-movement":       "Stock movement, last N days (protected)",
				"GET /api/analytics/category-performance": "Category performance (protected)",
				"GET /api/analytics/supplier-analysis":    "Supplier analysis (protected)",
				"GET /api/analytics/export":               "Export as JSON or CSV (protected)",
			},
			"system": fiber.Map{
				"GET /health": "Health check",
				"GET /":       "API info",
			},
		},
		"authentication": "Use Bearer token in Authorization header for protected routes",
	})
}

// NotFound is the fallback handler for unknown routes.
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":  "Route not found",
		"path":   c.OriginalURL(),
		"method": c.Method(),
	})
}
