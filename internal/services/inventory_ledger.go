package services

import (
	"context"
	"errors"
	"time"

	"pharmahub/internal/apperr"
	"pharmahub/internal/notify"
	"pharmahub/internal/repositories"

	"go.uber.org/zap"
)

// DefaultLowStockThreshold is the stock level below which vendors get a stockAlert.
const DefaultLowStockThreshold = 10

const (
	restoreAttempts = 5
	restoreBackoff  = 20 * time.Millisecond
)

// Reservation is the price/name snapshot taken when stock is reserved.
type Reservation struct {
	MedicationID string
	Name         string
	UnitPrice    float64
	Quantity     int
}

// InventoryLedger is the only mutator of medication stock.
type InventoryLedger struct {
	repo       repositories.MedicationRepository
	dispatcher notify.Dispatcher
	threshold  int
	logger     *zap.Logger
}

// NewInventoryLedger creates a new InventoryLedger.
func NewInventoryLedger(repo repositories.MedicationRepository, dispatcher notify.Dispatcher, threshold int, logger *zap.Logger) *InventoryLedger {
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryLedger{
		repo:       repo,
		dispatcher: dispatcher,
		threshold:  threshold,
		logger:     logger,
	}
}

// Reserve takes quantity units of a medication sold by vendorID. It fails
// with apperr.ErrInsufficientStock when fewer units remain and leaves stock
// untouched in that case.
func (l *InventoryLedger) Reserve(ctx context.Context, medicationID, vendorID string, quantity int) (*Reservation, error) {
	medication, err := l.repo.DecrementStock(ctx, medicationID, vendorID, quantity)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("stock reserved",
		zap.String("medication_id", medicationID),
		zap.Int("quantity", quantity),
		zap.Int("remaining", medication.Stock),
	)

	if medication.Stock < l.threshold {
		l.dispatcher.Dispatch(notify.VendorChannel(medication.VendorID), notify.EventStockAlert, map[string]interface{}{
			"medicationId": medication.ID,
			"name":         medication.Name,
			"currentStock": medication.Stock,
		})
	}

	return &Reservation{
		MedicationID: medication.ID,
		Name:         medication.Name,
		UnitPrice:    medication.UnitPrice(),
		Quantity:     quantity,
	}, nil
}

// Release returns quantity units to stock. Callers release each reservation
// at most once.
func (l *InventoryLedger) Release(ctx context.Context, medicationID string, quantity int) error {
	if err := l.repo.IncrementStock(ctx, medicationID, quantity); err != nil {
		return err
	}
	l.logger.Debug("stock released",
		zap.String("medication_id", medicationID),
		zap.Int("quantity", quantity),
	)
	return nil
}

// Restore releases units that were already taken from stock by a reservation
// being compensated or an order being cancelled. It ignores cancellation of
// ctx and retries transient storage failures, since a lost release would
// leave the units unaccounted for.
func (l *InventoryLedger) Restore(ctx context.Context, medicationID string, quantity int) error {
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= restoreAttempts; attempt++ {
		if err = l.Release(ctx, medicationID, quantity); err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrValidation) {
			return err
		}
		l.logger.Warn("stock release failed, retrying",
			zap.String("medication_id", medicationID),
			zap.Int("quantity", quantity),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < restoreAttempts {
			time.Sleep(time.Duration(attempt) * restoreBackoff)
		}
	}
	return err
}
