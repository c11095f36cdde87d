package handlers

import (
	"pharmahub/internal/middleware"
	"pharmahub/internal/models"
	"pharmahub/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MedicationHandler handles HTTP requests for the medication catalog.
type MedicationHandler struct {
	service *services.MedicationService
	logger  *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler.
func NewMedicationHandler(service *services.MedicationService, logger *zap.Logger) *MedicationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationHandler{service: service, logger: logger}
}

// RegisterRoutes registers the medication routes.
func (h *MedicationHandler) RegisterRoutes(router fiber.Router) {
	medicationRoutes := router.Group("/medications")
	medicationRoutes.Post("/", middleware.RequireRoles(models.RoleVendor, models.RoleAdmin), h.HandleCreateMedication)
	medicationRoutes.Get("/:id", h.HandleGetMedicationByID)
}

type createMedicationBody struct {
	VendorID      string   `json:"vendor_id"`
	Name          string   `json:"name" validate:"required,max=150"`
	GenericName   string   `json:"generic_name" validate:"max=150"`
	Price         float64  `json:"price" validate:"required,gt=0"`
	DiscountPrice *float64 `json:"discount_price" validate:"omitempty,gt=0"`
	Stock         int      `json:"stock" validate:"gte=0"`
}

// HandleCreateMedication lists a new medication with its initial stock.
func (h *MedicationHandler) HandleCreateMedication(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var body createMedicationBody
	if ok, err := parseBody(c, &body); !ok {
		return err
	}

	medication := &models.Medication{
		VendorID:      body.VendorID,
		Name:          body.Name,
		GenericName:   body.GenericName,
		Price:         body.Price,
		DiscountPrice: body.DiscountPrice,
		Stock:         body.Stock,
	}
	if err := h.service.CreateMedication(c.UserContext(), identity, medication); err != nil {
		return respondError(c, h.logger, "Could not create medication", err)
	}
	return c.Status(fiber.StatusCreated).JSON(medication)
}

// HandleGetMedicationByID retrieves a medication with its current stock.
func (h *MedicationHandler) HandleGetMedicationByID(c *fiber.Ctx) error {
	medication, err := h.service.GetMedicationByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve medication", err)
	}
	return c.JSON(medication)
}
