package models

import "time"

// OrderStatus is a position in the delivery state machine.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is possible out of s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentStatus is recorded from an external payment authority.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// PaymentMethod is fixed at creation time.
type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "creditCard"
	PaymentBankTransfer PaymentMethod = "bankTransfer"
	PaymentCOD          PaymentMethod = "cod"
)

// OrderLine is a single item within an order. Name and UnitPrice are
// snapshots taken when the stock was reserved.
type OrderLine struct {
	MedicationID string  `json:"medication_id"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	TotalPrice   float64 `json:"total_price"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Address is the delivery destination snapshot.
type Address struct {
	Street      string       `json:"street"`
	City        string       `json:"city"`
	State       string       `json:"state"`
	Zip         string       `json:"zip"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// LiveLocation is the courier's last reported position.
type LiveLocation struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeliveryInfo is relayed data; nothing in it is computed by the engine
// except ActualDeliveryTime.
type DeliveryInfo struct {
	Address               Address       `json:"address"`
	ContactName           string        `json:"contact_name"`
	ContactPhone          string        `json:"contact_phone"`
	DeliveryNotes         string        `json:"delivery_notes,omitempty"`
	EstimatedDeliveryTime *time.Time    `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    *time.Time    `json:"actual_delivery_time,omitempty"`
	DeliveryPersonID      string        `json:"delivery_person_id,omitempty"`
	DeliveryPersonName    string        `json:"delivery_person_name,omitempty"`
	DeliveryPersonPhone   string        `json:"delivery_person_phone,omitempty"`
	CurrentLocation       *LiveLocation `json:"current_location,omitempty"`
}

// Order represents a pharmacy's purchase from a single vendor.
type Order struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PharmacyID    string        `json:"pharmacy_id" gorm:"type:varchar(36);index"`
	VendorID      string        `json:"vendor_id" gorm:"type:varchar(36);index"`
	Items         []OrderLine   `json:"items" gorm:"serializer:json"`
	Subtotal      float64       `json:"subtotal"`
	Tax           float64       `json:"tax"`
	DeliveryFee   float64       `json:"delivery_fee"`
	Total         float64       `json:"total"`
	Status        OrderStatus   `json:"status" gorm:"type:varchar(32);index"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(16);index"`
	PaymentMethod PaymentMethod `json:"payment_method" gorm:"type:varchar(16)"`
	DeliveryInfo  DeliveryInfo  `json:"delivery_info" gorm:"serializer:json"`
	Version       int           `json:"version"` // optimistic concurrency token
	CreatedAt     time.Time     `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderLine(nil), o.Items...)
	di := o.DeliveryInfo
	if o.DeliveryInfo.Address.Coordinates != nil {
		coords := *o.DeliveryInfo.Address.Coordinates
		di.Address.Coordinates = &coords
	}
	if o.DeliveryInfo.EstimatedDeliveryTime != nil {
		t := *o.DeliveryInfo.EstimatedDeliveryTime
		di.EstimatedDeliveryTime = &t
	}
	if o.DeliveryInfo.ActualDeliveryTime != nil {
		t := *o.DeliveryInfo.ActualDeliveryTime
		di.ActualDeliveryTime = &t
	}
	if o.DeliveryInfo.CurrentLocation != nil {
		loc := *o.DeliveryInfo.CurrentLocation
		di.CurrentLocation = &loc
	}
	c.DeliveryInfo = di
	return &c
}

// OrderFilter narrows order listings. Empty fields do not filter.
type OrderFilter struct {
	PharmacyID    string
	VendorID      string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	StartDate     *time.Time
	EndDate       *time.Time
	SortBy        string // "created_at" or "total"
	Ascending     bool
	Page          int
	Limit         int
}

// Pagination is the metadata returned with a page of orders.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}
