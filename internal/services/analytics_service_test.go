package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"
	"pharmahub/internal/repositories"
	"pharmahub/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, repo repositories.OrderRepository, vendorID, pharmacyID string, status models.OrderStatus, created time.Time, lines ...models.OrderLine) {
	t.Helper()
	subtotal := 0.0
	for _, l := range lines {
		subtotal += l.TotalPrice
	}
	require.NoError(t, repo.Create(context.Background(), &models.Order{
		VendorID:      vendorID,
		PharmacyID:    pharmacyID,
		Items:         lines,
		Subtotal:      subtotal,
		Tax:           subtotal * 0.05,
		DeliveryFee:   5,
		Total:         subtotal*1.05 + 5,
		Status:        status,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     created,
	}))
}

func line(id, name string, qty int, unit float64) models.OrderLine {
	return models.OrderLine{MedicationID: id, Name: name, Quantity: qty, UnitPrice: unit, TotalPrice: float64(qty) * unit}
}

func TestAnalyticsService_GetOrderAnalytics(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	jan := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)
	seedOrder(t, repo, vendorA.SubjectID, pharmacyA.SubjectID, models.StatusDelivered, jan, line("med-1", "Amoxicillin", 2, 10))
	seedOrder(t, repo, vendorA.SubjectID, pharmacyA.SubjectID, models.StatusPending, feb, line("med-1", "Amoxicillin", 1, 10))
	seedOrder(t, repo, vendorA.SubjectID, pharmacyB.SubjectID, models.StatusCancelled, feb, line("med-2", "Ibuprofen", 5, 4))
	seedOrder(t, repo, vendorB.SubjectID, pharmacyB.SubjectID, models.StatusConfirmed, jan, line("med-9", "Insulin", 1, 100))
	service := services.NewAnalyticsService(repo)

	analytics, err := service.GetOrderAnalytics(context.Background(), vendorA)
	require.NoError(t, err)

	assert.Equal(t, 3, analytics.TotalOrders)
	assert.Equal(t, 1, analytics.OrdersByStatus[models.StatusDelivered])
	assert.Equal(t, 1, analytics.OrdersByStatus[models.StatusCancelled])
	assert.Equal(t, 3, analytics.OrdersByPaymentStatus[models.PaymentPending])
	// cancelled orders are excluded from financials
	assert.Equal(t, 30.0, analytics.Financial.Subtotal)
	assert.Equal(t, 1.5, analytics.Financial.Tax)
	assert.Equal(t, 10.0, analytics.Financial.DeliveryFee)
	assert.Equal(t, 41.5, analytics.Financial.Total)

	require.Len(t, analytics.MonthlyData, 2)
	assert.Equal(t, services.MonthlyBucket{Year: 2024, Month: 1, Count: 1, Revenue: 26}, analytics.MonthlyData[0])
	assert.Equal(t, 2024, analytics.MonthlyData[1].Year)
	assert.Equal(t, 2, analytics.MonthlyData[1].Month)
	assert.Equal(t, 2, analytics.MonthlyData[1].Count)
	assert.Equal(t, 41.5, analytics.MonthlyData[1].Revenue, "monthly revenue counts every order")

	all, err := service.GetOrderAnalytics(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalOrders)

	none, err := service.GetOrderAnalytics(context.Background(), models.Identity{SubjectID: "new", Role: models.RolePharmacy})
	require.NoError(t, err)
	assert.Zero(t, none.TotalOrders)
	assert.Empty(t, none.MonthlyData)
}

func TestAnalyticsService_TopSellingMedications(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	seedOrder(t, repo, vendorA.SubjectID, pharmacyA.SubjectID, models.StatusDelivered, now,
		line("med-1", "Amoxicillin", 4, 10), line("med-2", "Ibuprofen", 4, 4))
	seedOrder(t, repo, vendorA.SubjectID, pharmacyB.SubjectID, models.StatusPending, now,
		line("med-3", "Cetirizine", 6, 2), line("med-1", "Amoxicillin", 1, 10))
	seedOrder(t, repo, vendorA.SubjectID, pharmacyB.SubjectID, models.StatusCancelled, now,
		line("med-2", "Ibuprofen", 50, 4))
	seedOrder(t, repo, vendorB.SubjectID, pharmacyB.SubjectID, models.StatusDelivered, now,
		line("med-9", "Insulin", 99, 100))
	service := services.NewAnalyticsService(repo)

	rows, err := service.TopSellingMedications(context.Background(), vendorA, vendorA.SubjectID)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, services.TopSellingMedication{MedicationID: "med-3", MedicationName: "Cetirizine", TotalQuantity: 6, TotalRevenue: 12, OrderCount: 1}, rows[0])
	// equal quantity, higher revenue first
	assert.Equal(t, "med-1", rows[1].MedicationID)
	assert.Equal(t, 5, rows[1].TotalQuantity)
	assert.Equal(t, 2, rows[1].OrderCount)
	assert.Equal(t, "med-2", rows[2].MedicationID)
	assert.Equal(t, 4, rows[2].TotalQuantity, "cancelled orders do not count")

	_, err = service.TopSellingMedications(context.Background(), vendorB, vendorA.SubjectID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = service.TopSellingMedications(context.Background(), pharmacyA, vendorA.SubjectID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = service.TopSellingMedications(context.Background(), admin, vendorA.SubjectID)
	assert.NoError(t, err)
}

func TestAnalyticsService_TopSellingLimitAndTieBreak(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	var lines []models.OrderLine
	for i := 0; i < 12; i++ {
		lines = append(lines, line(fmt.Sprintf("med-%02d", i), "Generic", 1, 1))
	}
	seedOrder(t, repo, vendorA.SubjectID, pharmacyA.SubjectID, models.StatusPending, time.Now(), lines...)
	service := services.NewAnalyticsService(repo)

	rows, err := service.TopSellingMedications(context.Background(), admin, vendorA.SubjectID)
	require.NoError(t, err)

	require.Len(t, rows, 10)
	assert.Equal(t, "med-00", rows[0].MedicationID)
	assert.Equal(t, "med-09", rows[9].MedicationID)
}
