package models

import (
	"math"
	"time"
)

// Stock status values derived from quantity vs. threshold.
const (
	StockStatusOut = "out-of-stock"
	StockStatusLow = "low-stock"
	StockStatusIn  = "in-stock"
)

// Product represents a stock-keeping unit in the inventory.
type Product struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name          string     `json:"name" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=2,max=100"`
	Description   string     `json:"description" validate:"omitempty,max=500"`
	Quantity      int        `json:"quantity" validate:"gte=0"`
	Threshold     int        `json:"threshold" validate:"gte=0"`
	Category      string     `json:"category" gorm:"type:varchar(50);index" validate:"required,min=2,max=50"`
	Price         float64    `json:"price" validate:"gte=0"`
	Unit          string     `json:"unit" gorm:"type:varchar(20)" validate:"oneof=pieces kg liters boxes units"`
	Status        string     `json:"status" gorm:"type:varchar(20)" validate:"oneof=active inactive discontinued"`
	Location      string     `json:"location" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	Supplier      string     `json:"supplier" gorm:"type:varchar(100);index" validate:"omitempty,max=100"`
	Barcode       string     `json:"barcode" gorm:"type:varchar(50);index" validate:"omitempty,max=50"`
	Tags          []string   `json:"tags" gorm:"serializer:json" validate:"omitempty,dive,max=30"`
	CreatedBy     string     `json:"createdBy" gorm:"type:varchar(36)"`
	UpdatedBy     string     `json:"updatedBy" gorm:"type:varchar(36)"`
	LastRestocked *time.Time `json:"lastRestocked"`
	LastSold      *time.Time `json:"lastSold"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// StockStatus derives the stock state from quantity and threshold:
// out-of-stock when quantity is 0, low-stock when 0 < quantity <= threshold,
// in-stock otherwise.
func (p *Product) StockStatus() string {
	switch {
	case p.Quantity <= 0:
		return StockStatusOut
	case p.Quantity <= p.Threshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

// IsLowStock reports whether the product is at or below its reorder threshold.
func (p *Product) IsLowStock() bool {
	return p.Quantity <= p.Threshold
}

// StockValue returns the monetary value of the on-hand quantity.
func (p *Product) StockValue() float64 {
	return float64(p.Quantity) * p.Price
}

// DaysSinceRestock returns the number of whole days (rounded up) since the
// product was last restocked, or nil if it never was.
func (p *Product) DaysSinceRestock(now time.Time) *int {
	if p.LastRestocked == nil {
		return nil
	}
	days := int(math.Ceil(now.Sub(*p.LastRestocked).Hours() / 24))
	return &days
}
