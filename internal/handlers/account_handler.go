package handlers

import (
	"pharmahub/internal/middleware"
	"pharmahub/internal/models"
	"pharmahub/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AccountHandler handles HTTP requests for the vendor and pharmacy directory.
type AccountHandler struct {
	service *services.AccountService
	logger  *zap.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(service *services.AccountService, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{service: service, logger: logger}
}

// RegisterRoutes registers the account routes.
func (h *AccountHandler) RegisterRoutes(router fiber.Router) {
	accountRoutes := router.Group("/accounts")
	accountRoutes.Post("/", middleware.RequireRoles(models.RoleAdmin), h.HandleRegister)
	accountRoutes.Get("/:id", h.HandleGetAccount)
}

type registerAccountBody struct {
	ID           string                  `json:"id" validate:"omitempty,max=36"`
	Role         string                  `json:"role" validate:"required,oneof=admin vendor pharmacy"`
	Email        string                  `json:"email" validate:"required,email"`
	Name         string                  `json:"name" validate:"required,max=100"`
	Phone        string                  `json:"phone" validate:"max=32"`
	BusinessName string                  `json:"business_name" validate:"max=150"`
	Vendor       *models.VendorProfile   `json:"vendor"`
	Pharmacy     *models.PharmacyProfile `json:"pharmacy"`
}

// HandleRegister adds a directory entry.
func (h *AccountHandler) HandleRegister(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var body registerAccountBody
	if ok, err := parseBody(c, &body); !ok {
		return err
	}

	account := &models.Account{
		ID:           body.ID,
		Role:         models.Role(body.Role),
		Email:        body.Email,
		Name:         body.Name,
		Phone:        body.Phone,
		BusinessName: body.BusinessName,
		Vendor:       body.Vendor,
		Pharmacy:     body.Pharmacy,
	}
	if err := h.service.RegisterAccount(c.UserContext(), identity, account); err != nil {
		return respondError(c, h.logger, "Registration failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account registered successfully",
		"account": account,
	})
}

// HandleGetAccount returns a directory entry.
func (h *AccountHandler) HandleGetAccount(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)
	account, err := h.service.GetAccount(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve account", err)
	}
	return c.JSON(account)
}
