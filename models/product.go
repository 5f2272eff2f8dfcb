package models

import "time"

// ProductKind tags which kind of bookable a ProductRef points at.
type ProductKind string

const (
	ProductTour   ProductKind = "tour"
	ProductHotel  ProductKind = "hotel"
	ProductFlight ProductKind = "flight"
)

// Valid reports whether k is one of the known product kinds.
func (k ProductKind) Valid() bool {
	switch k {
	case ProductTour, ProductHotel, ProductFlight:
		return true
	}
	return false
}

// ProductRef identifies a bookable product. Bookings, availability rows and voucher
// scopes all refer to products through it rather than a bare id.
type ProductRef struct {
	Kind ProductKind `bson:"kind" json:"kind" validate:"required,oneof=tour hotel flight"`
	ID   string      `bson:"id" json:"id" validate:"required"`
}

func (r ProductRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// TourRef is shorthand for the only product kind the storefront sells today.
func TourRef(id string) ProductRef {
	return ProductRef{Kind: ProductTour, ID: id}
}

// PriceEntry is one row of a product's per-day price history.
type PriceEntry struct {
	ID            uint   `bson:"-" json:"-" gorm:"primaryKey"`
	ProductID     string `bson:"-" json:"-" gorm:"size:64;index"`
	EffectiveFrom string `bson:"effective_from" json:"effective_from" gorm:"size:10"` // YYYY-MM-DD
	UnitPrice     int64  `bson:"unit_price" json:"unit_price"`                        // minor units
}

// Product is a tour (or other bookable) with its price history.
type Product struct {
	ID        string       `bson:"id" json:"id" gorm:"primaryKey;size:64"`
	Kind      ProductKind  `bson:"kind" json:"kind" gorm:"size:16;index"`
	Name      string       `bson:"name" json:"name"`
	Days      int          `bson:"days" json:"days"`
	Nights    int          `bson:"nights" json:"nights"`
	BasePrice int64        `bson:"base_price" json:"base_price"` // fallback when no entry applies; 0 = none
	Prices    []PriceEntry `bson:"prices" json:"prices" gorm:"foreignKey:ProductID;references:ID"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updated_at"`
}

// Ref returns the product's reference.
func (p Product) Ref() ProductRef {
	return ProductRef{Kind: p.Kind, ID: p.ID}
}

// Availability tracks bookable capacity for one product on one date.
type Availability struct {
	ID             string     `bson:"id" json:"id" gorm:"primaryKey;size:64"`
	Product        ProductRef `bson:"product" json:"product" gorm:"embedded;embeddedPrefix:product_"`
	Date           string     `bson:"date" json:"date" gorm:"size:10"` // YYYY-MM-DD
	MaxSlots       int        `bson:"max_slots" json:"max_slots"`
	AvailableSlots int        `bson:"available_slots" json:"available_slots"`
	IsActive       bool       `bson:"is_active" json:"is_active"`
	LockSeq        int64      `bson:"lock_seq" json:"-" gorm:"-"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updated_at"`
}
