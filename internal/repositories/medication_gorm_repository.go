package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMMedicationRepository is a GORM implementation of MedicationRepository.
type GORMMedicationRepository struct {
	db *gorm.DB
}

// NewGORMMedicationRepository creates a new instance of GORMMedicationRepository.
func NewGORMMedicationRepository(db *gorm.DB) *GORMMedicationRepository {
	return &GORMMedicationRepository{
		db: db,
	}
}

// GetByID retrieves a single medication by its ID from the database.
func (r *GORMMedicationRepository) GetByID(ctx context.Context, id string) (*models.Medication, error) {
	var medication models.Medication
	if err := r.db.WithContext(ctx).First(&medication, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("medication with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get medication by ID %s: %w", id, err)
	}
	return &medication, nil
}

// Create creates a new medication in the database.
func (r *GORMMedicationRepository) Create(ctx context.Context, medication *models.Medication) error {
	if medication.ID == "" {
		medication.ID = uuid.New().String()
	}
	if medication.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	if err := r.db.WithContext(ctx).Create(medication).Error; err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

// DecrementStock runs a single conditional UPDATE so that two concurrent
// reservations can never both take the last units.
func (r *GORMMedicationRepository) DecrementStock(ctx context.Context, id, vendorID string, quantity int) (*models.Medication, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive, got %d", quantity)
	}

	var updated models.Medication
	query := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND stock >= ?", id, quantity)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}
	res := query.UpdateColumns(map[string]interface{}{
		"stock":      gorm.Expr("stock - ?", quantity),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to decrement stock for medication %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.classifyMiss(ctx, id, vendorID, quantity)
	}
	return &updated, nil
}

// classifyMiss explains why a conditional decrement matched no row.
func (r *GORMMedicationRepository) classifyMiss(ctx context.Context, id, vendorID string, quantity int) error {
	medication, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if vendorID != "" && medication.VendorID != vendorID {
		return apperr.NotFound("medication with ID %s does not belong to vendor %s", id, vendorID)
	}
	return &apperr.InsufficientStockError{MedicationID: id, Name: medication.Name, Requested: quantity}
}

// IncrementStock atomically returns quantity units to stock.
func (r *GORMMedicationRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return apperr.Validation("quantity must be positive, got %d", quantity)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Medication{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", quantity),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to increment stock for medication %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("medication with ID %s not found for stock release", id)
	}
	return nil
}
