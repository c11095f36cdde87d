package services

import (
	"context"
	"sort"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"
	"pharmahub/internal/repositories"

	"github.com/shopspring/decimal"
)

const topSellingLimit = 10

// FinancialSummary sums money fields over non-cancelled orders.
type FinancialSummary struct {
	Total       float64 `json:"total"`
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
}

// MonthlyBucket aggregates the orders created in one calendar month (UTC).
type MonthlyBucket struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

// OrderAnalytics is the reporting view over an actor's orders.
type OrderAnalytics struct {
	TotalOrders           int                          `json:"total_orders"`
	OrdersByStatus        map[models.OrderStatus]int   `json:"orders_by_status"`
	OrdersByPaymentStatus map[models.PaymentStatus]int `json:"orders_by_payment_status"`
	Financial             FinancialSummary             `json:"financial"`
	MonthlyData           []MonthlyBucket              `json:"monthly_data"`
}

// TopSellingMedication is one row of the top-sellers ranking.
type TopSellingMedication struct {
	MedicationID   string  `json:"medication_id"`
	MedicationName string  `json:"medication_name"`
	TotalQuantity  int     `json:"total_quantity"`
	TotalRevenue   float64 `json:"total_revenue"`
	OrderCount     int     `json:"order_count"`
}

// AnalyticsService derives read-only reports from committed orders.
type AnalyticsService struct {
	orders repositories.OrderRepository
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(orders repositories.OrderRepository) *AnalyticsService {
	return &AnalyticsService{orders: orders}
}

// GetOrderAnalytics aggregates the orders visible to actor.
func (s *AnalyticsService) GetOrderAnalytics(ctx context.Context, actor models.Identity) (*OrderAnalytics, error) {
	orders, _, err := s.orders.List(ctx, scopeFilter(actor, models.OrderFilter{Ascending: true}))
	if err != nil {
		return nil, err
	}

	result := &OrderAnalytics{
		TotalOrders:           len(orders),
		OrdersByStatus:        make(map[models.OrderStatus]int),
		OrdersByPaymentStatus: make(map[models.PaymentStatus]int),
		MonthlyData:           []MonthlyBucket{},
	}

	total, subtotal, tax, fee := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	type monthKey struct{ year, month int }
	months := make(map[monthKey]*MonthlyBucket)
	monthRevenue := make(map[monthKey]decimal.Decimal)

	for _, order := range orders {
		result.OrdersByStatus[order.Status]++
		result.OrdersByPaymentStatus[order.PaymentStatus]++

		if order.Status != models.StatusCancelled {
			total = total.Add(decimal.NewFromFloat(order.Total))
			subtotal = subtotal.Add(decimal.NewFromFloat(order.Subtotal))
			tax = tax.Add(decimal.NewFromFloat(order.Tax))
			fee = fee.Add(decimal.NewFromFloat(order.DeliveryFee))
		}

		created := order.CreatedAt.UTC()
		key := monthKey{created.Year(), int(created.Month())}
		bucket, ok := months[key]
		if !ok {
			bucket = &MonthlyBucket{Year: key.year, Month: key.month}
			months[key] = bucket
		}
		bucket.Count++
		monthRevenue[key] = monthRevenue[key].Add(decimal.NewFromFloat(order.Total))
	}

	result.Financial = FinancialSummary{
		Total:       total.Round(2).InexactFloat64(),
		Subtotal:    subtotal.Round(2).InexactFloat64(),
		Tax:         tax.Round(2).InexactFloat64(),
		DeliveryFee: fee.Round(2).InexactFloat64(),
	}

	for key, bucket := range months {
		bucket.Revenue = monthRevenue[key].Round(2).InexactFloat64()
		result.MonthlyData = append(result.MonthlyData, *bucket)
	}
	sort.Slice(result.MonthlyData, func(i, j int) bool {
		a, b := result.MonthlyData[i], result.MonthlyData[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})

	return result, nil
}

// TopSellingMedications ranks a vendor's medications by units sold across
// non-cancelled orders. Ties are broken by revenue, then medication id.
func (s *AnalyticsService) TopSellingMedications(ctx context.Context, actor models.Identity, vendorID string) ([]TopSellingMedication, error) {
	if actor.Role != models.RoleAdmin && !(actor.Role == models.RoleVendor && actor.SubjectID == vendorID) {
		return nil, apperr.Forbidden("not authorized to view top sellers of vendor %s", vendorID)
	}

	orders, _, err := s.orders.List(ctx, models.OrderFilter{VendorID: vendorID, Ascending: true})
	if err != nil {
		return nil, err
	}

	type tally struct {
		row     TopSellingMedication
		revenue decimal.Decimal
		orders  map[string]struct{}
	}
	tallies := make(map[string]*tally)
	for _, order := range orders {
		if order.Status == models.StatusCancelled {
			continue
		}
		for _, item := range order.Items {
			t, ok := tallies[item.MedicationID]
			if !ok {
				t = &tally{
					row:    TopSellingMedication{MedicationID: item.MedicationID, MedicationName: item.Name},
					orders: make(map[string]struct{}),
				}
				tallies[item.MedicationID] = t
			}
			t.row.TotalQuantity += item.Quantity
			t.revenue = t.revenue.Add(decimal.NewFromFloat(item.TotalPrice))
			t.orders[order.ID] = struct{}{}
		}
	}

	rows := make([]TopSellingMedication, 0, len(tallies))
	for _, t := range tallies {
		t.row.TotalRevenue = t.revenue.Round(2).InexactFloat64()
		t.row.OrderCount = len(t.orders)
		rows = append(rows, t.row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.TotalQuantity != b.TotalQuantity {
			return a.TotalQuantity > b.TotalQuantity
		}
		if a.TotalRevenue != b.TotalRevenue {
			return a.TotalRevenue > b.TotalRevenue
		}
		return a.MedicationID < b.MedicationID
	})
	if len(rows) > topSellingLimit {
		rows = rows[:topSellingLimit]
	}
	return rows, nil
}
