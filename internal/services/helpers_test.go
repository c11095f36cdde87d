package services_test

import (
	"context"
	"sync"
	"testing"

	"pharmahub/internal/models"
	"pharmahub/internal/repositories"
	"pharmahub/internal/services"

	"github.com/stretchr/testify/require"
)

type dispatched struct {
	Channel string
	Event   string
	Payload map[string]interface{}
}

// recordingDispatcher captures every dispatched event.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []dispatched
}

func (d *recordingDispatcher) Dispatch(channel, event string, payload interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, _ := payload.(map[string]interface{})
	d.events = append(d.events, dispatched{Channel: channel, Event: event, Payload: p})
}

func (d *recordingDispatcher) named(event string) []dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dispatched
	for _, e := range d.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

var (
	vendorA   = models.Identity{SubjectID: "vendor-a", Role: models.RoleVendor}
	vendorB   = models.Identity{SubjectID: "vendor-b", Role: models.RoleVendor}
	pharmacyA = models.Identity{SubjectID: "pharmacy-a", Role: models.RolePharmacy}
	pharmacyB = models.Identity{SubjectID: "pharmacy-b", Role: models.RolePharmacy}
	admin     = models.Identity{SubjectID: "admin-1", Role: models.RoleAdmin}
)

type fixture struct {
	medications *repositories.MockMedicationRepository
	orders      *repositories.MockOrderRepository
	accounts    *repositories.MockAccountRepository
	dispatcher  *recordingDispatcher
	ledger      *services.InventoryLedger
	service     *services.OrderService
}

// newFixture seeds vendor-a, vendor-b, pharmacy-a and pharmacy-b plus two
// medications of vendor-a: med-1 (price 10, stock 100) and med-2 (price 4,
// stock 5).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		medications: repositories.NewMockMedicationRepository(),
		orders:      repositories.NewMockOrderRepository(),
		accounts:    repositories.NewMockAccountRepository(),
		dispatcher:  &recordingDispatcher{},
	}
	for _, account := range []models.Account{
		{ID: vendorA.SubjectID, Role: models.RoleVendor, BusinessName: "Vendor A", Vendor: &models.VendorProfile{BusinessLicense: "VL-A"}},
		{ID: vendorB.SubjectID, Role: models.RoleVendor, BusinessName: "Vendor B", Vendor: &models.VendorProfile{BusinessLicense: "VL-B"}},
		{ID: pharmacyA.SubjectID, Role: models.RolePharmacy, BusinessName: "Pharmacy A", Pharmacy: &models.PharmacyProfile{PharmacyLicense: "PL-A"}},
		{ID: pharmacyB.SubjectID, Role: models.RolePharmacy, BusinessName: "Pharmacy B", Pharmacy: &models.PharmacyProfile{PharmacyLicense: "PL-B"}},
	} {
		account := account
		require.NoError(t, f.accounts.Create(ctx, &account))
	}
	for _, med := range []models.Medication{
		{ID: "med-1", VendorID: vendorA.SubjectID, Name: "Amoxicillin", Price: 10, Stock: 100},
		{ID: "med-2", VendorID: vendorA.SubjectID, Name: "Ibuprofen", Price: 4, Stock: 5},
	} {
		med := med
		require.NoError(t, f.medications.Create(ctx, &med))
	}

	f.ledger = services.NewInventoryLedger(f.medications, f.dispatcher, services.DefaultLowStockThreshold, nil)
	f.service = services.NewOrderService(f.orders, f.accounts, f.ledger, f.dispatcher, services.DefaultOrderServiceConfig(), nil)
	return f
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	med, err := f.medications.GetByID(context.Background(), id)
	require.NoError(t, err)
	return med.Stock
}

func orderRequest(items ...services.OrderItemRequest) services.CreateOrderRequest {
	return services.CreateOrderRequest{
		VendorID:      vendorA.SubjectID,
		Items:         items,
		PaymentMethod: models.PaymentCOD,
		DeliveryInfo: models.DeliveryInfo{
			Address:      models.Address{Street: "1 Main St", City: "Springfield"},
			ContactName:  "Front desk",
			ContactPhone: "555-0100",
		},
	}
}

func item(medicationID string, quantity int) services.OrderItemRequest {
	return services.OrderItemRequest{MedicationID: medicationID, Quantity: quantity}
}
