package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"stockmaster/internal/services"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service *services.ProductService
	auth    fiber.Handler
}

// NewProductHandler creates a new ProductHandler. auth guards the mutating
// routes; reads stay public.
func NewProductHandler(service *services.ProductService, auth fiber.Handler) *ProductHandler {
	return &ProductHandler{
		service: service,
		auth:    auth,
	}
}

// RegisterRoutes registers the product routes. Fixed paths are registered
// before /:id so "stats", "low-stock", and "bulk" are not captured as ids.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	products := router.Group("/products")
	products.Get("/", h.HandleListProducts)
	products.Get("/stats", h.HandleGetStats)
	products.Get("/low-stock", h.HandleGetLowStock)
	products.Post("/bulk", h.auth, h.HandleBulkCreate)
	products.Delete("/bulk", h.auth, h.HandleBulkDelete)
	products.Get("/:id", h.HandleGetProduct)
	products.Post("/", h.auth, h.HandleCreateProduct)
	products.Put("/:id", h.auth, h.HandleUpdateProduct)
	products.Delete("/:id", h.auth, h.HandleDeleteProduct)
}

// HandleListProducts returns a paginated, filtered, sorted product listing.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	page, err := h.service.ListProducts(services.ListProductsQuery{
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", services.DefaultPageSize),
		SortBy:   c.Query("sort", "createdAt"),
		Order:    c.Query("order", "desc"),
		Search:   c.Query("search"),
		Category: c.Query("category"),
		LowStock: c.Query("lowStock") == "true",
	})
	if err != nil {
		return serviceError(c, err, "Product not found", "Failed to fetch products")
	}
	return c.JSON(page)
}

// HandleGetStats returns collection-wide product statistics.
func (h *ProductHandler) HandleGetStats(c *fiber.Ctx) error {
	stats, err := h.service.GetStats()
	if err != nil {
		return serviceError(c, err, "Product not found", "Failed to fetch statistics")
	}
	return c.JSON(stats)
}

// HandleGetLowStock returns every product at or below its threshold.
func (h *ProductHandler) HandleGetLowStock(c *fiber.Ctx) error {
	products, err := h.service.GetLowStockProducts()
	if err != nil {
		return serviceError(c, err, "Product not found", "Failed to fetch low stock products")
	}
	return c.JSON(fiber.Map{
		"count":    len(products),
		"products": products,
	})
}

// productID extracts and validates the :id path parameter.
func productID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID format",
		})
	}
	return id, nil
}

// HandleGetProduct returns a single product by its ID.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if id == "" {
		return err
	}
	product, err := h.service.GetProduct(id)
	if err != nil {
		return serviceError(c, err, "Product not found", "Failed to fetch product")
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a single product for the authenticated user.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var input services.CreateProductInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	userID, _ := c.Locals("user_id").(string)
	product, err := h.service.CreateProduct(input, userID)
	if err != nil {
		return serviceError(c, err, "Product not found", "Failed to add product")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product added successfully",
		"product": product,
	})
}

// BulkCreateRequest is the request body for batch creation.
type BulkCreateRequest struct {
	Products []services.CreateProductInput `json:"products"`
}

// HandleBulkCreate creates many products with per-item success/failure
// isolation.
func (h *ProductHandler) HandleBulkCreate(c *fiber.Ctx) error {
	var req BulkCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Products) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Products array is required",
		})
	}

	userID, _ := c.Locals("user_id").(string)
	result := h.service.BulkCreateProducts(req.Products, userID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": fmt.Sprintf("Successfully added %d products", len(result.Created)),
		"added":   len(result.Created),
		"failed":  len(result.Errors),
		"results": result.Created,
		"errors":  result.Errors,
	})
}

// HandleUpdateProduct applies a partial update to a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var input services.UpdateProductInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	id, err := productID(c)
	if id == "" {
		return err
	}
	userID, _ := c.Locals("user_id").(string)
	product, err := h.service.UpdateProduct(id, input, userID)
	if err != nil {
		return serviceError(c, err, "Product not found", "Failed to update product")
	}
	return c.JSON(fiber.Map{
		"message": "Product updated successfully",
		"product": product,
	})
}

// HandleDeleteProduct deletes a product and echoes the removed record.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if id == "" {
		return err
	}
	product, err := h.service.DeleteProduct(id)
	if err != nil {
		return serviceError(c, err, "Product not found", "Failed to delete product")
	}
	return c.JSON(fiber.Map{
		"message":        "Product deleted successfully",
		"deletedProduct": product,
	})
}

// BulkDeleteRequest is the request body for batch deletion.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// HandleBulkDelete removes the existing subset of the given ids and reports
// the true deleted count.
func (h *ProductHandler) HandleBulkDelete(c *fiber.Ctx) error {
	var req BulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.IDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Product IDs array is required",
		})
	}

	deleted, err := h.service.BulkDeleteProducts(req.IDs)
	if err != nil {
		return serviceError(c, err, "Product not found", "Failed to delete products")
	}
	return c.JSON(fiber.Map{
		"message":      fmt.Sprintf("Successfully deleted %d products", deleted),
		"deletedCount": deleted,
	})
}
