package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"
	"pharmahub/internal/notify"
	"pharmahub/internal/repositories"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultTaxRate     = 0.05
	defaultDeliveryFee = 5.0
	defaultMaxRetries  = 3
	defaultPageSize    = 10
	maxPageSize        = 100
	searchLimit        = 20
)

// OrderServiceConfig holds the pricing and retry knobs of the order workflow.
type OrderServiceConfig struct {
	TaxRate     float64
	DeliveryFee float64
	// MaxRetries bounds how many times a write that lost an optimistic
	// concurrency race is retried before Conflict is returned.
	MaxRetries int
}

// DefaultOrderServiceConfig returns a 5% tax rate, a 5.0 delivery fee and 3 retries.
func DefaultOrderServiceConfig() OrderServiceConfig {
	return OrderServiceConfig{
		TaxRate:     defaultTaxRate,
		DeliveryFee: defaultDeliveryFee,
		MaxRetries:  defaultMaxRetries,
	}
}

// OrderItemRequest is one requested line of a new order.
type OrderItemRequest struct {
	MedicationID string `json:"medication_id"`
	Quantity     int    `json:"quantity"`
}

// CreateOrderRequest is a validated order creation request.
type CreateOrderRequest struct {
	VendorID      string               `json:"vendor_id"`
	Items         []OrderItemRequest   `json:"items"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	DeliveryInfo  models.DeliveryInfo  `json:"delivery_info"`
}

// DeliveryPerson identifies the courier assigned to an order.
type DeliveryPerson struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// DeliveryTracking is the read model behind the tracking endpoint.
type DeliveryTracking struct {
	OrderID      string             `json:"order_id"`
	Status       models.OrderStatus `json:"status"`
	DeliveryInfo struct {
		EstimatedDeliveryTime *time.Time           `json:"estimated_delivery_time,omitempty"`
		ActualDeliveryTime    *time.Time           `json:"actual_delivery_time,omitempty"`
		DeliveryPersonName    string               `json:"delivery_person_name,omitempty"`
		DeliveryPersonPhone   string               `json:"delivery_person_phone,omitempty"`
		CurrentLocation       *models.LiveLocation `json:"current_location,omitempty"`
	} `json:"delivery_info"`
	Destination models.Address `json:"destination"`
}

// OrderService drives orders through creation, status changes and
// cancellation. It composes the inventory ledger with the state machine and
// emits events only after the corresponding write has been committed.
type OrderService struct {
	orders     repositories.OrderRepository
	accounts   repositories.AccountRepository
	ledger     *InventoryLedger
	dispatcher notify.Dispatcher
	config     OrderServiceConfig
	now        func() time.Time
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orders repositories.OrderRepository,
	accounts repositories.AccountRepository,
	ledger *InventoryLedger,
	dispatcher notify.Dispatcher,
	config OrderServiceConfig,
	logger *zap.Logger,
) *OrderService {
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &OrderService{
		orders:     orders,
		accounts:   accounts,
		ledger:     ledger,
		dispatcher: dispatcher,
		config:     config,
		now:        time.Now,
		logger:     logger,
		tracer:     otel.Tracer("pharmahub/services"),
	}
}

// SetClock overrides the time source used for delivery and location stamps.
func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateOrder reserves stock for every line and persists a pending order.
// If any reservation fails, the reservations already made for this request
// are released before the error is returned.
func (s *OrderService) CreateOrder(ctx context.Context, pharmacyID string, req CreateOrderRequest) (order *models.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("pharmacy.id", pharmacyID),
		attribute.String("vendor.id", req.VendorID),
		attribute.Int("order.items", len(req.Items)),
	))
	defer func() { endSpan(span, err) }()

	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	pharmacy, err := s.accounts.FindByRole(ctx, pharmacyID, models.RolePharmacy)
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.FindByRole(ctx, req.VendorID, models.RoleVendor); err != nil {
		return nil, err
	}

	// once the first unit is reserved the sequence runs to completion or is
	// fully compensated, whatever happens to the caller
	ctx = context.WithoutCancel(ctx)
	reserved := make([]*Reservation, 0, len(req.Items))
	for _, item := range req.Items {
		reservation, err := s.ledger.Reserve(ctx, item.MedicationID, req.VendorID, item.Quantity)
		if err != nil {
			s.rollback(ctx, reserved)
			s.logger.Info("order creation rejected",
				zap.String("pharmacy_id", pharmacyID),
				zap.String("medication_id", item.MedicationID),
				zap.Error(err),
			)
			return nil, err
		}
		reserved = append(reserved, reservation)
	}

	order = s.buildOrder(pharmacyID, req, reserved)
	if err := s.orders.Create(ctx, order); err != nil {
		s.rollback(ctx, reserved)
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("pharmacy_id", pharmacyID),
		zap.String("vendor_id", order.VendorID),
		zap.Float64("total", order.Total),
	)

	s.dispatcher.Dispatch(notify.VendorChannel(order.VendorID), notify.EventNewOrder, map[string]interface{}{
		"orderId":      order.ID,
		"pharmacyName": pharmacy.BusinessName,
		"total":        order.Total,
		"items":        len(order.Items),
	})

	return order, nil
}

func validateCreateRequest(req CreateOrderRequest) error {
	if req.VendorID == "" {
		return apperr.Validation("vendor_id is required")
	}
	if len(req.Items) == 0 {
		return apperr.Validation("at least one item is required")
	}
	for i, item := range req.Items {
		if item.MedicationID == "" {
			return apperr.Validation("items[%d].medication_id is required", i)
		}
		if item.Quantity <= 0 {
			return apperr.Validation("items[%d].quantity must be positive", i)
		}
	}
	switch req.PaymentMethod {
	case models.PaymentCreditCard, models.PaymentBankTransfer, models.PaymentCOD:
	default:
		return apperr.Validation("unknown payment method %q", req.PaymentMethod)
	}
	return nil
}

// rollback releases reservations in reverse order. Failures that survive the
// ledger's retries are logged and do not replace the error that triggered the
// rollback.
func (s *OrderService) rollback(ctx context.Context, reserved []*Reservation) {
	for i := len(reserved) - 1; i >= 0; i-- {
		r := reserved[i]
		if err := s.ledger.Restore(ctx, r.MedicationID, r.Quantity); err != nil {
			s.logger.Error("failed to release reservation during rollback",
				zap.String("medication_id", r.MedicationID),
				zap.Int("quantity", r.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (s *OrderService) buildOrder(pharmacyID string, req CreateOrderRequest, reserved []*Reservation) *models.Order {
	subtotal := decimal.Zero
	lines := make([]models.OrderLine, 0, len(reserved))
	for _, r := range reserved {
		lineTotal := decimal.NewFromFloat(r.UnitPrice).Mul(decimal.NewFromInt(int64(r.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, models.OrderLine{
			MedicationID: r.MedicationID,
			Name:         r.Name,
			Quantity:     r.Quantity,
			UnitPrice:    r.UnitPrice,
			TotalPrice:   lineTotal.InexactFloat64(),
		})
	}
	tax := subtotal.Mul(decimal.NewFromFloat(s.config.TaxRate)).Round(2)
	fee := decimal.NewFromFloat(s.config.DeliveryFee).Round(2)
	total := subtotal.Add(tax).Add(fee)

	deliveryInfo := req.DeliveryInfo
	deliveryInfo.ActualDeliveryTime = nil
	deliveryInfo.CurrentLocation = nil

	return &models.Order{
		PharmacyID:    pharmacyID,
		VendorID:      req.VendorID,
		Items:         lines,
		Subtotal:      subtotal.InexactFloat64(),
		Tax:           tax.InexactFloat64(),
		DeliveryFee:   fee.InexactFloat64(),
		Total:         total.InexactFloat64(),
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: req.PaymentMethod,
		DeliveryInfo:  deliveryInfo,
	}
}

// GetOrders lists the orders visible to actor. Vendors and pharmacies only
// ever see their own orders regardless of the filter they pass.
func (s *OrderService) GetOrders(ctx context.Context, actor models.Identity, filter models.OrderFilter) (*models.OrderPage, error) {
	filter = scopeFilter(actor, filter)
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	pages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &models.OrderPage{
		Orders: orders,
		Pagination: models.Pagination{
			Total: total,
			Page:  filter.Page,
			Limit: filter.Limit,
			Pages: pages,
		},
	}, nil
}

func scopeFilter(actor models.Identity, filter models.OrderFilter) models.OrderFilter {
	switch actor.Role {
	case models.RoleVendor:
		filter.VendorID = actor.SubjectID
	case models.RolePharmacy:
		filter.PharmacyID = actor.SubjectID
	}
	return filter
}

// GetOrderByID returns an order the actor is a party to (or any order for admins).
func (s *OrderService) GetOrderByID(ctx context.Context, id string, actor models.Identity) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(order, actor) {
		return nil, apperr.Forbidden("not authorized to access order %s", id)
	}
	return order, nil
}

// GetDeliveryTracking returns the delivery-facing view of an order.
func (s *OrderService) GetDeliveryTracking(ctx context.Context, id string, actor models.Identity) (*DeliveryTracking, error) {
	order, err := s.GetOrderByID(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	tracking := &DeliveryTracking{
		OrderID:     order.ID,
		Status:      order.Status,
		Destination: order.DeliveryInfo.Address,
	}
	tracking.DeliveryInfo.EstimatedDeliveryTime = order.DeliveryInfo.EstimatedDeliveryTime
	tracking.DeliveryInfo.ActualDeliveryTime = order.DeliveryInfo.ActualDeliveryTime
	tracking.DeliveryInfo.DeliveryPersonName = order.DeliveryInfo.DeliveryPersonName
	tracking.DeliveryInfo.DeliveryPersonPhone = order.DeliveryInfo.DeliveryPersonPhone
	tracking.DeliveryInfo.CurrentLocation = order.DeliveryInfo.CurrentLocation
	return tracking, nil
}

// SearchOrders finds visible orders whose id or item names contain term,
// case-insensitively. At most 20 results, newest first.
func (s *OrderService) SearchOrders(ctx context.Context, actor models.Identity, term string) ([]models.Order, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, apperr.Validation("search term is required")
	}

	orders, _, err := s.orders.List(ctx, scopeFilter(actor, models.OrderFilter{}))
	if err != nil {
		return nil, err
	}

	results := make([]models.Order, 0, searchLimit)
	for _, order := range orders {
		if len(results) == searchLimit {
			break
		}
		if orderMatches(order, term) {
			results = append(results, order)
		}
	}
	return results, nil
}

func orderMatches(order models.Order, term string) bool {
	if strings.Contains(strings.ToLower(order.ID), term) {
		return true
	}
	for _, item := range order.Items {
		if strings.Contains(strings.ToLower(item.Name), term) {
			return true
		}
	}
	return false
}

// mutate loads an order, applies change and writes it back under optimistic
// concurrency. When the write loses a race the order is reloaded and change
// re-evaluated against the fresh state.
func (s *OrderService) mutate(ctx context.Context, id string, change func(order *models.Order) error) (*models.Order, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		order, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := change(order); err != nil {
			return nil, err
		}
		err = s.orders.Update(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("retrying order write after conflict",
			zap.String("order_id", id),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, lastErr
}

// UpdateOrderStatus moves an order forward on behalf of its vendor. A
// requested status of cancelled runs the full cancellation workflow.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, actor models.Identity, status models.OrderStatus) (order *models.Order, err error) {
	if status == models.StatusCancelled {
		return s.CancelOrder(ctx, id, actor)
	}

	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer func() { endSpan(span, err) }()

	order, err = s.mutate(ctx, id, func(order *models.Order) error {
		return ApplyStatus(order, actor, status, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)
	s.dispatcher.Dispatch(notify.PharmacyChannel(order.PharmacyID), notify.EventOrderStatusUpdated, map[string]interface{}{
		"orderId": order.ID,
		"status":  order.Status,
	})
	return order, nil
}

// CancelOrder cancels an order on behalf of its vendor or pharmacy and
// returns every reserved unit to stock. Only the caller whose write wins the
// version check performs the release, so stock is restored exactly once.
func (s *OrderService) CancelOrder(ctx context.Context, id string, actor models.Identity) (order *models.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer func() { endSpan(span, err) }()

	order, err = s.mutate(ctx, id, func(order *models.Order) error {
		return ApplyStatus(order, actor, models.StatusCancelled, s.now())
	})
	if err != nil {
		return nil, err
	}

	var releaseErrs []error
	for _, item := range order.Items {
		if err := s.ledger.Restore(ctx, item.MedicationID, item.Quantity); err != nil {
			s.logger.Error("failed to restore stock for cancelled order",
				zap.String("order_id", order.ID),
				zap.String("medication_id", item.MedicationID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
			releaseErrs = append(releaseErrs, err)
		}
	}

	s.logger.Info("order cancelled",
		zap.String("order_id", order.ID),
		zap.String("cancelled_by", string(actor.Role)),
	)

	target := notify.VendorChannel(order.VendorID)
	if actor.Role == models.RoleVendor {
		target = notify.PharmacyChannel(order.PharmacyID)
	}
	s.dispatcher.Dispatch(target, notify.EventOrderCancelled, map[string]interface{}{
		"orderId":     order.ID,
		"cancelledBy": actor.Role,
	})

	if len(releaseErrs) > 0 {
		return order, fmt.Errorf("order %s cancelled but stock release failed: %w", order.ID, errors.Join(releaseErrs...))
	}
	return order, nil
}

// UpdateDeliveryLocation records the courier's live position.
func (s *OrderService) UpdateDeliveryLocation(ctx context.Context, id string, actor models.Identity, location models.Coordinates) (*models.Order, error) {
	order, err := s.mutate(ctx, id, func(order *models.Order) error {
		if err := CanUpdateDelivery(order, actor); err != nil {
			return err
		}
		order.DeliveryInfo.CurrentLocation = &models.LiveLocation{
			Latitude:  location.Latitude,
			Longitude: location.Longitude,
			UpdatedAt: s.now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(notify.PharmacyChannel(order.PharmacyID), notify.EventDeliveryLocationUpdated, map[string]interface{}{
		"orderId":  order.ID,
		"location": order.DeliveryInfo.CurrentLocation,
	})
	return order, nil
}

// AssignDeliveryPerson records the courier handling the order.
func (s *OrderService) AssignDeliveryPerson(ctx context.Context, id string, actor models.Identity, person DeliveryPerson) (*models.Order, error) {
	order, err := s.mutate(ctx, id, func(order *models.Order) error {
		if err := CanUpdateDelivery(order, actor); err != nil {
			return err
		}
		order.DeliveryInfo.DeliveryPersonID = person.ID
		order.DeliveryInfo.DeliveryPersonName = person.Name
		order.DeliveryInfo.DeliveryPersonPhone = person.Phone
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(notify.PharmacyChannel(order.PharmacyID), notify.EventDeliveryPersonAssigned, map[string]interface{}{
		"orderId": order.ID,
		"deliveryPerson": map[string]string{
			"name":  person.Name,
			"phone": person.Phone,
		},
	})
	return order, nil
}

// UpdateEstimatedDeliveryTime records the vendor's delivery estimate.
func (s *OrderService) UpdateEstimatedDeliveryTime(ctx context.Context, id string, actor models.Identity, estimate time.Time) (*models.Order, error) {
	order, err := s.mutate(ctx, id, func(order *models.Order) error {
		if err := CanUpdateDelivery(order, actor); err != nil {
			return err
		}
		eta := estimate
		order.DeliveryInfo.EstimatedDeliveryTime = &eta
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(notify.PharmacyChannel(order.PharmacyID), notify.EventEstimatedDeliveryTimeUpdated, map[string]interface{}{
		"orderId":               order.ID,
		"estimatedDeliveryTime": order.DeliveryInfo.EstimatedDeliveryTime,
	})
	return order, nil
}

// UpdatePaymentStatus records a payment outcome. Admin only.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id string, actor models.Identity, status models.PaymentStatus) (*models.Order, error) {
	order, err := s.mutate(ctx, id, func(order *models.Order) error {
		next, err := NextPaymentStatus(order, actor, status)
		if err != nil {
			return err
		}
		order.PaymentStatus = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment status updated",
		zap.String("order_id", order.ID),
		zap.String("payment_status", string(order.PaymentStatus)),
	)
	payload := map[string]interface{}{
		"orderId":       order.ID,
		"paymentStatus": order.PaymentStatus,
	}
	s.dispatcher.Dispatch(notify.VendorChannel(order.VendorID), notify.EventPaymentStatusUpdated, payload)
	s.dispatcher.Dispatch(notify.PharmacyChannel(order.PharmacyID), notify.EventPaymentStatusUpdated, payload)
	return order, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
