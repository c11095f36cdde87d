package services_test

import (
	"testing"
	"time"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"
	"pharmahub/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderIn(status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:            "order-1",
		VendorID:      vendorA.SubjectID,
		PharmacyID:    pharmacyA.SubjectID,
		Status:        status,
		PaymentStatus: models.PaymentPending,
	}
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name      string
		from      models.OrderStatus
		actor     models.Identity
		requested models.OrderStatus
		wantErr   error
	}{
		{"vendor confirms", models.StatusPending, vendorA, models.StatusConfirmed, nil},
		{"vendor prepares", models.StatusConfirmed, vendorA, models.StatusPreparing, nil},
		{"vendor dispatches", models.StatusPreparing, vendorA, models.StatusOutForDelivery, nil},
		{"vendor delivers", models.StatusOutForDelivery, vendorA, models.StatusDelivered, nil},
		{"vendor skips forward", models.StatusPending, vendorA, models.StatusPreparing, nil},
		{"vendor moves backward", models.StatusPreparing, vendorA, models.StatusConfirmed, apperr.ErrInvalidTransition},
		{"same status", models.StatusConfirmed, vendorA, models.StatusConfirmed, apperr.ErrInvalidTransition},
		{"unknown status", models.StatusPending, vendorA, models.OrderStatus("shipped"), apperr.ErrInvalidTransition},
		{"pharmacy cannot confirm", models.StatusPending, pharmacyA, models.StatusConfirmed, apperr.ErrForbidden},
		{"admin cannot confirm", models.StatusPending, admin, models.StatusConfirmed, apperr.ErrForbidden},
		{"other vendor cannot confirm", models.StatusPending, vendorB, models.StatusConfirmed, apperr.ErrForbidden},
		{"delivered is terminal", models.StatusDelivered, vendorA, models.StatusDelivered, apperr.ErrInvalidTransition},
		{"cancelled is terminal", models.StatusCancelled, vendorA, models.StatusConfirmed, apperr.ErrInvalidTransition},
		{"pharmacy cancels pending", models.StatusPending, pharmacyA, models.StatusCancelled, nil},
		{"vendor cancels preparing", models.StatusPreparing, vendorA, models.StatusCancelled, nil},
		{"pharmacy cancels out for delivery", models.StatusOutForDelivery, pharmacyA, models.StatusCancelled, nil},
		{"cannot cancel delivered", models.StatusDelivered, pharmacyA, models.StatusCancelled, apperr.ErrInvalidTransition},
		{"cannot cancel twice", models.StatusCancelled, vendorA, models.StatusCancelled, apperr.ErrInvalidTransition},
		{"other pharmacy cannot cancel", models.StatusPending, pharmacyB, models.StatusCancelled, apperr.ErrForbidden},
		{"admin cannot cancel", models.StatusPending, admin, models.StatusCancelled, apperr.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := orderIn(tt.from)
			next, err := services.NextStatus(order, tt.actor, tt.requested)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, next)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.requested, next)
			}
			assert.Equal(t, tt.from, order.Status, "NextStatus must not modify the order")
		})
	}
}

func TestApplyStatus_StampsDeliveryTime(t *testing.T) {
	order := orderIn(models.StatusOutForDelivery)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, services.ApplyStatus(order, vendorA, models.StatusDelivered, now))

	assert.Equal(t, models.StatusDelivered, order.Status)
	require.NotNil(t, order.DeliveryInfo.ActualDeliveryTime)
	assert.True(t, now.Equal(*order.DeliveryInfo.ActualDeliveryTime))
}

func TestApplyStatus_LeavesOrderOnError(t *testing.T) {
	order := orderIn(models.StatusPending)

	err := services.ApplyStatus(order, pharmacyA, models.StatusDelivered, time.Now())

	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Nil(t, order.DeliveryInfo.ActualDeliveryTime)
}

func TestNextPaymentStatus(t *testing.T) {
	tests := []struct {
		name      string
		from      models.PaymentStatus
		actor     models.Identity
		requested models.PaymentStatus
		wantErr   error
	}{
		{"admin marks paid", models.PaymentPending, admin, models.PaymentPaid, nil},
		{"admin marks failed", models.PaymentPending, admin, models.PaymentFailed, nil},
		{"admin reverses to pending", models.PaymentFailed, admin, models.PaymentPending, nil},
		{"same value rejected", models.PaymentPaid, admin, models.PaymentPaid, apperr.ErrInvalidTransition},
		{"unknown value rejected", models.PaymentPending, admin, models.PaymentStatus("refunded"), apperr.ErrInvalidTransition},
		{"vendor forbidden", models.PaymentPending, vendorA, models.PaymentPaid, apperr.ErrForbidden},
		{"pharmacy forbidden", models.PaymentPending, pharmacyA, models.PaymentPaid, apperr.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := orderIn(models.StatusDelivered)
			order.PaymentStatus = tt.from
			next, err := services.NextPaymentStatus(order, tt.actor, tt.requested)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.requested, next)
		})
	}
}

func TestCanView(t *testing.T) {
	order := orderIn(models.StatusPending)

	assert.True(t, services.CanView(order, vendorA))
	assert.True(t, services.CanView(order, pharmacyA))
	assert.True(t, services.CanView(order, admin))
	assert.False(t, services.CanView(order, vendorB))
	assert.False(t, services.CanView(order, pharmacyB))
	// a vendor id that happens to equal the pharmacy id must not grant access
	assert.False(t, services.CanView(order, models.Identity{SubjectID: pharmacyA.SubjectID, Role: models.RoleVendor}))
}

func TestCanUpdateDelivery(t *testing.T) {
	for _, tc := range []struct {
		status models.OrderStatus
		actor  models.Identity
		want   error
	}{
		{models.StatusPending, vendorA, nil},
		{models.StatusOutForDelivery, vendorA, nil},
		{models.StatusPreparing, pharmacyA, apperr.ErrForbidden},
		{models.StatusPreparing, admin, apperr.ErrForbidden},
		{models.StatusDelivered, vendorA, apperr.ErrInvalidTransition},
		{models.StatusCancelled, vendorA, apperr.ErrInvalidTransition},
	} {
		err := services.CanUpdateDelivery(orderIn(tc.status), tc.actor)
		if tc.want == nil {
			assert.NoError(t, err, tc.status)
		} else {
			assert.ErrorIs(t, err, tc.want, tc.status)
		}
	}
}
