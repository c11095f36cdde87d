package repositories

import (
	"context"

	"pharmahub/internal/models"
)

// MedicationRepository defines data access for medications. Stock changes go
// through DecrementStock/IncrementStock only, and both must be single atomic
// updates in the backing store.
type MedicationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Medication, error)
	Create(ctx context.Context, medication *models.Medication) error
	// DecrementStock removes quantity units when the medication belongs to
	// vendorID and has at least quantity in stock, returning the post-update row.
	DecrementStock(ctx context.Context, id, vendorID string, quantity int) (*models.Medication, error)
	IncrementStock(ctx context.Context, id string, quantity int) error
}

// OrderRepository defines data access for orders.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// List returns the matching page and the total match count. A zero Limit
	// returns every match.
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error)
	// Update writes order if the stored version still equals order.Version,
	// then increments order.Version. A stale version yields apperr.ErrConflict.
	Update(ctx context.Context, order *models.Order) error
}

// AccountRepository is the user directory.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// FindByRole returns the account only when it holds role.
	FindByRole(ctx context.Context, id string, role models.Role) (*models.Account, error)
}
