package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"pharmahub/internal/idempotency"
	"pharmahub/internal/middleware"
	"pharmahub/internal/models"
	"pharmahub/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service     *services.OrderService
	analytics   *services.AnalyticsService
	idempotency idempotency.Store
	logger      *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. A nil store disables
// Idempotency-Key handling.
func NewOrderHandler(service *services.OrderService, analytics *services.AnalyticsService, store idempotency.Store, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{
		service:     service,
		analytics:   analytics,
		idempotency: store,
		logger:      logger,
	}
}

// RegisterRoutes registers the order routes. router must already run
// middleware.AuthRequired.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", middleware.RequireRoles(models.RolePharmacy), h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/search", h.HandleSearchOrders)
	orderRoutes.Get("/analytics", h.HandleGetAnalytics)
	orderRoutes.Get("/vendor/:id/top-selling", h.HandleTopSelling)
	orderRoutes.Post("/bulk-status", middleware.RequireRoles(models.RoleAdmin), h.HandleBulkUpdate)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/status", h.HandleUpdateOrderStatus)
	orderRoutes.Put("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Put("/:id/delivery/location", middleware.RequireRoles(models.RoleVendor), h.HandleUpdateDeliveryLocation)
	orderRoutes.Put("/:id/delivery/person", middleware.RequireRoles(models.RoleVendor), h.HandleAssignDeliveryPerson)
	orderRoutes.Put("/:id/delivery/estimated-time", middleware.RequireRoles(models.RoleVendor), h.HandleUpdateEstimatedTime)
	orderRoutes.Get("/:id/delivery/tracking", h.HandleGetDeliveryTracking)
	orderRoutes.Put("/:id/payment", middleware.RequireRoles(models.RoleAdmin), h.HandleUpdatePaymentStatus)
}

type orderItemBody struct {
	MedicationID string `json:"medication_id" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
}

type createOrderBody struct {
	VendorID      string              `json:"vendor_id" validate:"required"`
	Items         []orderItemBody     `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string              `json:"payment_method" validate:"required,oneof=creditCard bankTransfer cod"`
	DeliveryInfo  models.DeliveryInfo `json:"delivery_info"`
}

// HandleCreateOrder places an order on behalf of the calling pharmacy.
// Repeating a request with the same Idempotency-Key returns the first
// response without reserving stock again.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var body createOrderBody
	if ok, err := parseBody(c, &body); !ok {
		return err
	}

	req := services.CreateOrderRequest{
		VendorID:      body.VendorID,
		PaymentMethod: models.PaymentMethod(body.PaymentMethod),
		DeliveryInfo:  body.DeliveryInfo,
	}
	for _, item := range body.Items {
		req.Items = append(req.Items, services.OrderItemRequest{MedicationID: item.MedicationID, Quantity: item.Quantity})
	}

	ctx := c.UserContext()
	key := strings.TrimSpace(c.Get(idempotencyHeader))
	if key != "" && h.idempotency != nil {
		// keys are scoped per pharmacy
		key = identity.SubjectID + ":" + key
		stored, err := h.idempotency.Begin(ctx, key)
		if errors.Is(err, idempotency.ErrInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "A request with this idempotency key is still being processed",
			})
		}
		if err != nil {
			return respondError(c, h.logger, "Could not create order", err)
		}
		if stored != nil {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			c.Set("Idempotent-Replayed", "true")
			return c.Status(fiber.StatusCreated).Send(stored)
		}
	} else {
		key = ""
	}

	order, err := h.service.CreateOrder(ctx, identity.SubjectID, req)
	if err != nil {
		if key != "" {
			if abandonErr := h.idempotency.Abandon(ctx, key); abandonErr != nil {
				h.logger.Warn("failed to release idempotency key", zap.Error(abandonErr))
			}
		}
		return respondError(c, h.logger, "Could not create order", err)
	}

	encoded, err := json.Marshal(order)
	if err != nil {
		return respondError(c, h.logger, "Could not encode order", err)
	}
	if key != "" {
		if err := h.idempotency.Complete(ctx, key, encoded); err != nil {
			h.logger.Warn("failed to record idempotent result", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusCreated).Send(encoded)
}

// HandleGetOrders lists the caller's orders with filters and pagination.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	filter, err := parseOrderFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid query parameters",
			"error":   err.Error(),
		})
	}

	page, err := h.service.GetOrders(c.UserContext(), identity, filter)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(page)
}

func parseOrderFilter(c *fiber.Ctx) (models.OrderFilter, error) {
	filter := models.OrderFilter{
		Status:        models.OrderStatus(c.Query("status")),
		PaymentStatus: models.PaymentStatus(c.Query("paymentStatus")),
		Page:          c.QueryInt("page", 1),
		Limit:         c.QueryInt("limit", 10),
	}
	if filter.Status != "" && !services.ValidStatus(filter.Status) {
		return filter, errors.New("unknown status " + strconv.Quote(string(filter.Status)))
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return filter, errors.New("unknown paymentStatus " + strconv.Quote(string(filter.PaymentStatus)))
	}

	switch c.Query("sort", "createdAt") {
	case "createdAt", "created_at":
		filter.SortBy = "created_at"
	case "total":
		filter.SortBy = "total"
	default:
		return filter, errors.New("sort must be createdAt or total")
	}
	switch strings.ToLower(c.Query("order", "desc")) {
	case "asc":
		filter.Ascending = true
	case "desc":
	default:
		return filter, errors.New("order must be asc or desc")
	}

	for param, dst := range map[string]**time.Time{"startDate": &filter.StartDate, "endDate": &filter.EndDate} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			return filter, errors.New(param + " must be RFC3339 or YYYY-MM-DD")
		}
		if param == "endDate" && len(raw) == len("2006-01-02") {
			// a bare end date includes the whole day
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*dst = &t
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// HandleSearchOrders searches the caller's orders by id or item name.
func (h *OrderHandler) HandleSearchOrders(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)
	orders, err := h.service.SearchOrders(c.UserContext(), identity, c.Query("q"))
	if err != nil {
		return respondError(c, h.logger, "Could not search orders", err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)
	order, err := h.service.GetOrderByID(c.UserContext(), c.Params("id"), identity)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

type statusBody struct {
	Status string `json:"status" validate:"required"`
}

// HandleUpdateOrderStatus moves an order along the delivery state machine.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var body statusBody
	if ok, err := parseBody(c, &body); !ok {
		return err
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), c.Params("id"), identity, models.OrderStatus(body.Status))
	return h.respondOrder(c, order, err, "Could not update order status")
}

// HandleCancelOrder cancels an order and restores its stock.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)
	order, err := h.service.CancelOrder(c.UserContext(), c.Params("id"), identity)
	return h.respondOrder(c, order, err, "Could not cancel order")
}

// respondOrder writes the outcome of a single-order mutation. A cancellation
// that committed but failed to restore some stock still reports the order.
func (h *OrderHandler) respondOrder(c *fiber.Ctx, order *models.Order, err error, message string) error {
	if err != nil && order == nil {
		return respondError(c, h.logger, message, err)
	}
	if err != nil {
		h.logger.Error("order updated with errors", zap.String("order_id", order.ID), zap.Error(err))
	}
	return c.JSON(order)
}

type locationBody struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// HandleUpdateDeliveryLocation records the courier's current position.
func (h *OrderHandler) HandleUpdateDeliveryLocation(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var body locationBody
	if ok, err := parseBody(c, &body); !ok {
		return err
	}

	order, err := h.service.UpdateDeliveryLocation(c.UserContext(), c.Params("id"), identity, models.Coordinates{
		Latitude:  *body.Latitude,
		Longitude: *body.Longitude,
	})
	return h.respondOrder(c, order, err, "Could not update delivery location")
}

type deliveryPersonBody struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

// HandleAssignDeliveryPerson records the courier for an order.
func (h *OrderHandler) HandleAssignDeliveryPerson(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var body deliveryPersonBody
	if ok, err := parseBody(c, &body); !ok {
		return err
	}

	order, err := h.service.AssignDeliveryPerson(c.UserContext(), c.Params("id"), identity, services.DeliveryPerson{
		ID:    body.ID,
		Name:  body.Name,
		Phone: body.Phone,
	})
	return h.respondOrder(c, order, err, "Could not assign delivery person")
}

type estimatedTimeBody struct {
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time" validate:"required"`
}

// HandleUpdateEstimatedTime records the vendor's delivery estimate.
func (h *OrderHandler) HandleUpdateEstimatedTime(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var body estimatedTimeBody
	if ok, err := parseBody(c, &body); !ok {
		return err
	}

	order, err := h.service.UpdateEstimatedDeliveryTime(c.UserContext(), c.Params("id"), identity, *body.EstimatedDeliveryTime)
	return h.respondOrder(c, order, err, "Could not update estimated delivery time")
}

// HandleGetDeliveryTracking returns the delivery view of an order.
func (h *OrderHandler) HandleGetDeliveryTracking(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)
	tracking, err := h.service.GetDeliveryTracking(c.UserContext(), c.Params("id"), identity)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve delivery tracking", err)
	}
	return c.JSON(tracking)
}

type paymentBody struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid failed"`
}

// HandleUpdatePaymentStatus records a payment outcome.
func (h *OrderHandler) HandleUpdatePaymentStatus(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var body paymentBody
	if ok, err := parseBody(c, &body); !ok {
		return err
	}

	order, err := h.service.UpdatePaymentStatus(c.UserContext(), c.Params("id"), identity, models.PaymentStatus(body.PaymentStatus))
	return h.respondOrder(c, order, err, "Could not update payment status")
}

type bulkUpdateBody struct {
	OrderIDs      []string `json:"order_ids" validate:"required,min=1,max=100,dive,required"`
	Status        string   `json:"status"`
	PaymentStatus string   `json:"payment_status" validate:"omitempty,oneof=pending paid failed"`
}

// HandleBulkUpdate applies one status and/or payment change to many orders
// and reports a result per order.
func (h *OrderHandler) HandleBulkUpdate(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var body bulkUpdateBody
	if ok, err := parseBody(c, &body); !ok {
		return err
	}

	results, err := h.service.BulkUpdateOrders(c.UserContext(), identity, services.BulkUpdateRequest{
		OrderIDs:      body.OrderIDs,
		Status:        models.OrderStatus(body.Status),
		PaymentStatus: models.PaymentStatus(body.PaymentStatus),
	})
	if err != nil {
		return respondError(c, h.logger, "Could not update orders", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	return c.JSON(fiber.Map{
		"updated": len(results) - failed,
		"failed":  failed,
		"results": results,
	})
}
