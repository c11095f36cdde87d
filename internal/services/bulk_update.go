package services

import (
	"context"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"
)

// BulkUpdateRequest asks for a status and/or payment status change on many orders.
type BulkUpdateRequest struct {
	OrderIDs      []string             `json:"order_ids"`
	Status        models.OrderStatus   `json:"status,omitempty"`
	PaymentStatus models.PaymentStatus `json:"payment_status,omitempty"`
}

// BulkUpdateResult reports the outcome for one order of a bulk update.
type BulkUpdateResult struct {
	OrderID string        `json:"order_id"`
	Order   *models.Order `json:"order,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// BulkUpdateOrders applies req to each order independently. Status changes
// are evaluated as if the owning vendor requested them, so the state machine
// and the ledger are involved exactly as for a single update; an order that
// fails does not stop the others.
func (s *OrderService) BulkUpdateOrders(ctx context.Context, actor models.Identity, req BulkUpdateRequest) ([]BulkUpdateResult, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("only admins may bulk update orders")
	}
	if len(req.OrderIDs) == 0 {
		return nil, apperr.Validation("at least one order id is required")
	}
	if req.Status == "" && req.PaymentStatus == "" {
		return nil, apperr.Validation("status or payment_status is required")
	}

	results := make([]BulkUpdateResult, 0, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		order, err := s.bulkUpdateOne(ctx, actor, id, req)
		result := BulkUpdateResult{OrderID: id, Order: order}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *OrderService) bulkUpdateOne(ctx context.Context, actor models.Identity, id string, req BulkUpdateRequest) (*models.Order, error) {
	var order *models.Order
	if req.Status != "" {
		current, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		vendor := models.Identity{SubjectID: current.VendorID, Role: models.RoleVendor}
		order, err = s.UpdateOrderStatus(ctx, id, vendor, req.Status)
		if err != nil {
			return nil, err
		}
	}
	if req.PaymentStatus != "" {
		updated, err := s.UpdatePaymentStatus(ctx, id, actor, req.PaymentStatus)
		if err != nil {
			return order, err
		}
		order = updated
	}
	return order, nil
}
