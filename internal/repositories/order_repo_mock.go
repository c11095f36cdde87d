package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// Stored orders are deep-copied on the way in and out.
type MockOrderRepository struct {
	orders map[string]*models.Order
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*models.Order),
	}
}

// Create adds a new order at version 1.
func (r *MockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Version = 1
	r.orders[order.ID] = order.Clone()
	return nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, apperr.NotFound("order with ID %s not found", id)
	}
	return order.Clone(), nil
}

// List returns orders matching filter.
func (r *MockOrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	r.mu.RLock()
	matched := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if matches(order, filter) {
			matched = append(matched, *order.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less, equal bool
		if filter.SortBy == "total" {
			less, equal = a.Total < b.Total, a.Total == b.Total
		} else {
			less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}
		if equal {
			return a.ID < b.ID
		}
		if filter.Ascending {
			return less
		}
		return !less
	})

	total := int64(len(matched))
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.Limit
		if start >= len(matched) {
			return []models.Order{}, total, nil
		}
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func matches(order *models.Order, filter models.OrderFilter) bool {
	if filter.PharmacyID != "" && order.PharmacyID != filter.PharmacyID {
		return false
	}
	if filter.VendorID != "" && order.VendorID != filter.VendorID {
		return false
	}
	if filter.Status != "" && order.Status != filter.Status {
		return false
	}
	if filter.PaymentStatus != "" && order.PaymentStatus != filter.PaymentStatus {
		return false
	}
	if filter.StartDate != nil && order.CreatedAt.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && order.CreatedAt.After(*filter.EndDate) {
		return false
	}
	return true
}

// Update swaps in order if the stored version matches.
func (r *MockOrderRepository) Update(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return apperr.NotFound("order with ID %s not found", order.ID)
	}
	if stored.Version != order.Version {
		return apperr.Conflict("order %s was modified concurrently (expected version %d)", order.ID, order.Version)
	}

	next := stored.Clone()
	next.Status = order.Status
	next.PaymentStatus = order.PaymentStatus
	next.DeliveryInfo = order.Clone().DeliveryInfo
	next.Version = stored.Version + 1
	next.UpdatedAt = time.Now()
	r.orders[order.ID] = next

	order.Version = next.Version
	order.UpdatedAt = next.UpdatedAt
	return nil
}
