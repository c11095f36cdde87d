package models

import "time"

// Role identifies which kind of marketplace account an identity belongs to.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleVendor   Role = "vendor"
	RolePharmacy Role = "pharmacy"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVendor, RolePharmacy:
		return true
	}
	return false
}

// Identity is the subject+role assertion attached to every request.
type Identity struct {
	SubjectID string `json:"subject_id"`
	Role      Role   `json:"role"`
}

// VendorProfile holds the fields only vendors carry.
type VendorProfile struct {
	BusinessLicense    string  `json:"business_license"`
	DeliveryCapability bool    `json:"delivery_capability"`
	Rating             float64 `json:"rating"`
}

// PharmacyProfile holds the fields only pharmacies carry.
type PharmacyProfile struct {
	PharmacyLicense  string   `json:"pharmacy_license"`
	PreferredVendors []string `json:"preferred_vendors"`
}

// Account is a marketplace user. Exactly one of Vendor or Pharmacy is set,
// matching Role; admins carry neither.
type Account struct {
	ID           string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Role         Role             `json:"role" gorm:"type:varchar(16);index"`
	Email        string           `json:"email" gorm:"uniqueIndex;type:varchar(255)"`
	Name         string           `json:"name" gorm:"type:varchar(100)"`
	Phone        string           `json:"phone" gorm:"type:varchar(32)"`
	BusinessName string           `json:"business_name" gorm:"type:varchar(150)"`
	Vendor       *VendorProfile   `json:"vendor,omitempty" gorm:"serializer:json"`
	Pharmacy     *PharmacyProfile `json:"pharmacy,omitempty" gorm:"serializer:json"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
