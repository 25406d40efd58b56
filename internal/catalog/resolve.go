// Package catalog resolves which products a customer can see and at what
// price.
package catalog

import (
	"sort"

	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
)

type Entry struct {
	Product       models.Product  `json:"product"`
	Price         decimal.Decimal `json:"price"`
	IsCustomPrice bool            `json:"is_custom_price"`
	IsAssigned    bool            `json:"is_assigned"`
}

// Resolve returns the active products visible to one customer. Global
// products are always visible; others need an assignment. A custom price on
// an assignment overrides the catalog price.
func Resolve(products []models.Product, assignments []models.CustomerProductAssignment) []Entry {
	assigned := make(map[string]models.CustomerProductAssignment, len(assignments))
	for _, a := range assignments {
		assigned[a.ProductID] = a
	}

	entries := make([]Entry, 0, len(products))
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		a, ok := assigned[p.ID]
		if !p.IsGlobal && !ok {
			continue
		}
		entry := Entry{Product: p, Price: p.Price, IsAssigned: ok}
		if ok && a.CustomPrice != nil {
			entry.Price = *a.CustomPrice
			entry.IsCustomPrice = true
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ci, cj := categoryRank(entries[i].Product.Category), categoryRank(entries[j].Product.Category)
		if ci != cj {
			return ci < cj
		}
		return entries[i].Product.Name < entries[j].Product.Name
	})
	return entries
}

func categoryRank(c models.Category) int {
	for i, known := range models.Categories {
		if known == c {
			return i
		}
	}
	return len(models.Categories)
}

// Index keys entries by product id.
func Index(entries []Entry) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.Product.ID] = e
	}
	return out
}
