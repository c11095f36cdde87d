package models

import "time"

// Medication is a vendor's listing. Stock is owned by the inventory ledger and
// is never assigned directly by order logic.
type Medication struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	VendorID      string    `json:"vendor_id" gorm:"type:varchar(36);index"`
	Name          string    `json:"name" gorm:"type:varchar(150)"`
	GenericName   string    `json:"generic_name" gorm:"type:varchar(150)"`
	Price         float64   `json:"price"`
	DiscountPrice *float64  `json:"discount_price,omitempty"`
	Stock         int       `json:"stock" gorm:"check:stock >= 0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UnitPrice is the price an order line snapshots: the discount price when one
// is set, the list price otherwise.
func (m *Medication) UnitPrice() float64 {
	if m.DiscountPrice != nil && *m.DiscountPrice > 0 {
		return *m.DiscountPrice
	}
	return m.Price
}
