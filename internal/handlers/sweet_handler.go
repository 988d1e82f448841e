package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"mithai/internal/middleware"
	"mithai/internal/models"
	"mithai/internal/services"
)

// SweetHandler handles HTTP requests for the catalog and its stock.
type SweetHandler struct {
	service     *services.SweetService
	authService *services.AuthService
	idempotent  fiber.Handler
	validate    *validator.Validate
}

// NewSweetHandler creates a new SweetHandler. idempotent guards the purchase
// and checkout routes; nil disables replay.
func NewSweetHandler(service *services.SweetService, authService *services.AuthService, idempotent fiber.Handler) *SweetHandler {
	if idempotent == nil {
		idempotent = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &SweetHandler{
		service:     service,
		authService: authService,
		idempotent:  idempotent,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the sweet routes. Every route needs a valid
// token; catalog writes and restocking also need the admin role.
func (h *SweetHandler) RegisterRoutes(router fiber.Router) {
	admin := middleware.RequireRole(h.authService, models.RoleAdmin)

	sweetRoutes := router.Group("/sweets", middleware.AuthRequired(h.authService))
	sweetRoutes.Get("/", h.HandleList)
	sweetRoutes.Get("/search", h.HandleSearch)
	sweetRoutes.Get("/categories", h.HandleCategories)
	sweetRoutes.Post("/checkout", h.idempotent, h.HandleCheckout)
	sweetRoutes.Get("/:id", h.HandleGet)
	sweetRoutes.Post("/", admin, h.HandleCreate)
	sweetRoutes.Put("/:id", admin, h.HandleUpdate)
	sweetRoutes.Delete("/:id", admin, h.HandleDelete)
	sweetRoutes.Post("/:id/purchase", h.idempotent, h.HandlePurchase)
	sweetRoutes.Post("/:id/restock", admin, h.HandleRestock)
}

// HandleList returns the whole catalog.
func (h *SweetHandler) HandleList(c *fiber.Ctx) error {
	sweets, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(sweets)
}

// HandleSearch filters the catalog by ?q=, ?category= and ?maxPrice=.
func (h *SweetHandler) HandleSearch(c *fiber.Ctx) error {
	filter := models.SearchFilter{
		Text:     strings.TrimSpace(c.Query("q")),
		Category: strings.TrimSpace(c.Query("category")),
	}
	if raw := strings.TrimSpace(c.Query("maxPrice")); raw != "" {
		maxPrice, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: maxPrice must be a number", models.ErrValidation)
		}
		filter.MaxPrice = &maxPrice
	}

	sweets, err := h.service.Search(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(sweets)
}

// HandleCategories returns the distinct categories in the catalog.
func (h *SweetHandler) HandleCategories(c *fiber.Ctx) error {
	categories, err := h.service.Categories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(categories)
}

// HandleGet returns one sweet.
func (h *SweetHandler) HandleGet(c *fiber.Ctx) error {
	id, err := sweetID(c)
	if err != nil {
		return err
	}
	sweet, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(sweet)
}

// CreateSweetRequest is the body of POST /sweets.
type CreateSweetRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Category    string  `json:"category" validate:"max=100"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Description string  `json:"description"`
}

// HandleCreate adds a sweet to the catalog.
func (h *SweetHandler) HandleCreate(c *fiber.Ctx) error {
	var req CreateSweetRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	sweet := models.Sweet{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Description: req.Description,
	}
	if err := h.service.Create(c.UserContext(), middleware.IdentityFrom(c), &sweet); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sweet)
}

// UpdateSweetRequest is the body of PUT /sweets/:id. Omitted or null fields
// are left unchanged.
type UpdateSweetRequest struct {
	Name        *string  `json:"name" validate:"omitnil,min=1,max=255"`
	Category    *string  `json:"category" validate:"omitnil,max=100"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
}

// HandleUpdate applies a partial update to a sweet.
func (h *SweetHandler) HandleUpdate(c *fiber.Ctx) error {
	id, err := sweetID(c)
	if err != nil {
		return err
	}
	var req UpdateSweetRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	patch := models.SweetPatch{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Description: req.Description,
	}
	if err := h.service.Update(c.UserContext(), middleware.IdentityFrom(c), id, patch); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product updated successfully"})
}

// HandleDelete removes a sweet from the catalog.
func (h *SweetHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := sweetID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), middleware.IdentityFrom(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product removed from inventory"})
}

// PurchaseRequest is the optional body of POST /sweets/:id/purchase.
type PurchaseRequest struct {
	Quantity *int `json:"quantity"`
}

// HandlePurchase buys units of a sweet. Without a body one unit is bought.
func (h *SweetHandler) HandlePurchase(c *fiber.Ctx) error {
	id, err := sweetID(c)
	if err != nil {
		return err
	}
	quantity := 1
	if len(c.Body()) > 0 {
		var req PurchaseRequest
		if err := bind(c, h.validate, &req); err != nil {
			return err
		}
		if req.Quantity != nil {
			quantity = *req.Quantity
		}
	}

	result, err := h.service.Purchase(c.UserContext(), middleware.IdentityFrom(c), id, quantity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":           "Purchase successful",
		"product":           result.Name,
		"quantityPurchased": result.Quantity,
		"remaining":         result.Remaining,
	})
}

// RestockRequest is the body of POST /sweets/:id/restock.
type RestockRequest struct {
	Amount int `json:"amount"`
}

// HandleRestock adds units to a sweet's stock.
func (h *SweetHandler) HandleRestock(c *fiber.Ctx) error {
	id, err := sweetID(c)
	if err != nil {
		return err
	}
	var req RestockRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	remaining, err := h.service.Restock(c.UserContext(), middleware.IdentityFrom(c), id, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":   fmt.Sprintf("Restocked successfully. Added %d units.", req.Amount),
		"remaining": remaining,
	})
}

// CheckoutRequest is the body of POST /sweets/checkout.
type CheckoutRequest struct {
	Items []models.StockLine `json:"items" validate:"required,min=1"`
}

// HandleCheckout buys a whole cart atomically.
func (h *SweetHandler) HandleCheckout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	receipt, err := h.service.Checkout(c.UserContext(), middleware.IdentityFrom(c), req.Items)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Checkout successful",
		"receipt": receipt,
	})
}

func sweetID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid sweet id %q", models.ErrValidation, c.Params("id"))
	}
	return uint(id), nil
}
