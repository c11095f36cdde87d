package services_test

import (
	"context"
	"testing"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"
	"pharmahub/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockMedicationRepository is a mock implementation of repositories.MedicationRepository
type MockMedicationRepository struct {
	mock.Mock
}

func (m *MockMedicationRepository) GetByID(ctx context.Context, id string) (*models.Medication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Medication), args.Error(1)
}

func (m *MockMedicationRepository) Create(ctx context.Context, medication *models.Medication) error {
	args := m.Called(ctx, medication)
	return args.Error(0)
}

func (m *MockMedicationRepository) DecrementStock(ctx context.Context, id, vendorID string, quantity int) (*models.Medication, error) {
	args := m.Called(ctx, id, vendorID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Medication), args.Error(1)
}

func (m *MockMedicationRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	args := m.Called(ctx, id, quantity)
	return args.Error(0)
}

func TestMedicationService_GetMedicationByID(t *testing.T) {
	mockRepo := new(MockMedicationRepository)
	service := services.NewMedicationService(mockRepo)
	ctx := context.Background()

	expected := &models.Medication{ID: "med-1", VendorID: "vendor-a", Name: "Amoxicillin", Price: 10, Stock: 100}
	mockRepo.On("GetByID", ctx, "med-1").Return(expected, nil).Once()
	mockRepo.On("GetByID", ctx, "missing").Return(nil, apperr.NotFound("medication with ID missing not found")).Once()

	medication, err := service.GetMedicationByID(ctx, "med-1")
	assert.NoError(t, err)
	assert.Equal(t, expected, medication)

	medication, err = service.GetMedicationByID(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Nil(t, medication)
	mockRepo.AssertExpectations(t)
}

func TestMedicationService_CreateMedication(t *testing.T) {
	mockRepo := new(MockMedicationRepository)
	service := services.NewMedicationService(mockRepo)
	ctx := context.Background()

	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.Medication")).Return(nil)

	// vendors always list under their own id
	medication := &models.Medication{VendorID: "vendor-b", Name: "Ibuprofen", Price: 4, Stock: 20}
	err := service.CreateMedication(ctx, vendorA, medication)
	assert.NoError(t, err)
	assert.Equal(t, vendorA.SubjectID, medication.VendorID)

	medication = &models.Medication{VendorID: "vendor-b", Name: "Ibuprofen", Price: 4}
	assert.NoError(t, service.CreateMedication(ctx, admin, medication))
	assert.Equal(t, "vendor-b", medication.VendorID)

	mockRepo.AssertNumberOfCalls(t, "Create", 2)
}

func TestMedicationService_CreateMedicationRejections(t *testing.T) {
	mockRepo := new(MockMedicationRepository)
	service := services.NewMedicationService(mockRepo)
	ctx := context.Background()
	highDiscount := 12.0

	tests := []struct {
		name       string
		actor      models.Identity
		medication *models.Medication
		wantErr    error
	}{
		{"pharmacy forbidden", pharmacyA, &models.Medication{Name: "X", Price: 1}, apperr.ErrForbidden},
		{"admin without vendor", admin, &models.Medication{Name: "X", Price: 1}, apperr.ErrValidation},
		{"zero price", vendorA, &models.Medication{Name: "X"}, apperr.ErrValidation},
		{"discount above price", vendorA, &models.Medication{Name: "X", Price: 10, DiscountPrice: &highDiscount}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, service.CreateMedication(ctx, tt.actor, tt.medication), tt.wantErr)
		})
	}
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
