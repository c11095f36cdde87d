package services

import (
	"context"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"
	"pharmahub/internal/repositories"
)

// MedicationService handles the catalog side of medications. Stock is only
// ever set at creation; afterwards it moves through the InventoryLedger.
type MedicationService struct {
	repo repositories.MedicationRepository
}

// NewMedicationService creates a new MedicationService.
func NewMedicationService(repo repositories.MedicationRepository) *MedicationService {
	return &MedicationService{
		repo: repo,
	}
}

// GetMedicationByID retrieves a single medication by its ID.
func (s *MedicationService) GetMedicationByID(ctx context.Context, id string) (*models.Medication, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateMedication lists a new medication for the acting vendor. Admins may
// list on behalf of the vendor named in medication.VendorID.
func (s *MedicationService) CreateMedication(ctx context.Context, actor models.Identity, medication *models.Medication) error {
	switch actor.Role {
	case models.RoleVendor:
		medication.VendorID = actor.SubjectID
	case models.RoleAdmin:
		if medication.VendorID == "" {
			return apperr.Validation("vendor_id is required")
		}
	default:
		return apperr.Forbidden("only vendors may list medications")
	}
	if medication.Price <= 0 {
		return apperr.Validation("price must be positive")
	}
	if medication.DiscountPrice != nil && (*medication.DiscountPrice <= 0 || *medication.DiscountPrice > medication.Price) {
		return apperr.Validation("discount_price must be positive and not above price")
	}
	return s.repo.Create(ctx, medication)
}
