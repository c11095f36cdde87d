package repositories

import (
	"context"
	"sync"
	"time"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"

	"github.com/google/uuid"
)

// MockMedicationRepository is an in-memory implementation of MedicationRepository.
// Each stock mutation holds the write lock for its whole check-and-update.
type MockMedicationRepository struct {
	medications map[string]models.Medication
	mu          sync.RWMutex
}

// NewMockMedicationRepository creates a new instance of MockMedicationRepository.
func NewMockMedicationRepository() *MockMedicationRepository {
	return &MockMedicationRepository{
		medications: make(map[string]models.Medication),
	}
}

// GetByID returns a medication by its ID.
func (r *MockMedicationRepository) GetByID(ctx context.Context, id string) (*models.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	medication, ok := r.medications[id]
	if !ok {
		return nil, apperr.NotFound("medication with ID %s not found", id)
	}
	return &medication, nil
}

// Create adds a new medication.
func (r *MockMedicationRepository) Create(ctx context.Context, medication *models.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if medication.ID == "" {
		medication.ID = uuid.New().String()
	}
	if medication.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	now := time.Now()
	medication.CreatedAt = now
	medication.UpdatedAt = now
	r.medications[medication.ID] = *medication
	return nil
}

// DecrementStock takes quantity units if available.
func (r *MockMedicationRepository) DecrementStock(ctx context.Context, id, vendorID string, quantity int) (*models.Medication, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive, got %d", quantity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	medication, ok := r.medications[id]
	if !ok {
		return nil, apperr.NotFound("medication with ID %s not found", id)
	}
	if vendorID != "" && medication.VendorID != vendorID {
		return nil, apperr.NotFound("medication with ID %s does not belong to vendor %s", id, vendorID)
	}
	if medication.Stock < quantity {
		return nil, &apperr.InsufficientStockError{MedicationID: id, Name: medication.Name, Requested: quantity}
	}
	medication.Stock -= quantity
	medication.UpdatedAt = time.Now()
	r.medications[id] = medication
	return &medication, nil
}

// IncrementStock returns quantity units to stock.
func (r *MockMedicationRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return apperr.Validation("quantity must be positive, got %d", quantity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	medication, ok := r.medications[id]
	if !ok {
		return apperr.NotFound("medication with ID %s not found for stock release", id)
	}
	medication.Stock += quantity
	medication.UpdatedAt = time.Now()
	r.medications[id] = medication
	return nil
}
