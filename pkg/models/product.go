package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryWholeBeans  Category = "WHOLE_BEANS"
	CategoryEspresso    Category = "ESPRESSO"
	CategoryRetailPacks Category = "RETAIL_PACKS"
	CategoryAccessories Category = "ACCESSORIES"
)

var Categories = []Category{
	CategoryWholeBeans,
	CategoryEspresso,
	CategoryRetailPacks,
	CategoryAccessories,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

const (
	DefaultProductionWeightPerUnit = 5.0
	DefaultProductionUnit          = "lbs"
)

type Product struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Description             string          `json:"description,omitempty"`
	Category                Category        `json:"category"`
	Unit                    string          `json:"unit"`
	Price                   decimal.Decimal `json:"price"`
	ProductionWeightPerUnit *float64        `json:"production_weight_per_unit,omitempty"`
	ProductionUnit          *string         `json:"production_unit,omitempty"`
	IsGlobal                bool            `json:"is_global"`
	IsActive                bool            `json:"is_active"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// CustomerProductAssignment grants a customer access to a product and
// optionally overrides its price for that customer.
type CustomerProductAssignment struct {
	CustomerID  string           `json:"customer_id"`
	ProductID   string           `json:"product_id"`
	CustomPrice *decimal.Decimal `json:"custom_price,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
