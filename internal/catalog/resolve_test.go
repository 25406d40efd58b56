package catalog

import (
	"testing"

	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolveVisibility(t *testing.T) {
	products := []models.Product{
		{ID: "house", Name: "House Blend", Category: models.CategoryWholeBeans, Price: price("12.50"), IsGlobal: true, IsActive: true},
		{ID: "reserve", Name: "Reserve Geisha", Category: models.CategoryWholeBeans, Price: price("40"), IsActive: true},
		{ID: "private", Name: "Private Label", Category: models.CategoryRetailPacks, Price: price("9"), IsActive: true},
		{ID: "retired", Name: "Old Blend", Category: models.CategoryWholeBeans, Price: price("8"), IsGlobal: true},
	}
	custom := price("35.00")
	assignments := []models.CustomerProductAssignment{
		{ProductID: "reserve", CustomPrice: &custom},
		{ProductID: "retired"},
	}

	entries := Resolve(products, assignments)
	index := Index(entries)

	assert.Len(t, entries, 2)
	assert.Contains(t, index, "house")
	assert.Contains(t, index, "reserve")
	assert.NotContains(t, index, "private")
	assert.NotContains(t, index, "retired")

	assert.True(t, index["reserve"].IsCustomPrice)
	assert.True(t, index["reserve"].Price.Equal(custom))
	assert.False(t, index["house"].IsCustomPrice)
	assert.True(t, index["house"].Price.Equal(price("12.50")))
}

func TestResolveGlobalOverride(t *testing.T) {
	products := []models.Product{
		{ID: "house", Name: "House Blend", Category: models.CategoryWholeBeans, Price: price("12.50"), IsGlobal: true, IsActive: true},
	}
	custom := price("11")
	entries := Resolve(products, []models.CustomerProductAssignment{{ProductID: "house", CustomPrice: &custom}})

	assert.Len(t, entries, 1)
	assert.True(t, entries[0].IsAssigned)
	assert.True(t, entries[0].Price.Equal(custom))
	assert.True(t, entries[0].Product.Price.Equal(price("12.50")))
}

func TestResolveOrdering(t *testing.T) {
	products := []models.Product{
		{ID: "mug", Name: "Mug", Category: models.CategoryAccessories, IsGlobal: true, IsActive: true},
		{ID: "b", Name: "Brazil", Category: models.CategoryWholeBeans, IsGlobal: true, IsActive: true},
		{ID: "shot", Name: "Shot", Category: models.CategoryEspresso, IsGlobal: true, IsActive: true},
		{ID: "a", Name: "Anaerobic", Category: models.CategoryWholeBeans, IsGlobal: true, IsActive: true},
	}

	var ids []string
	for _, e := range Resolve(products, nil) {
		ids = append(ids, e.Product.ID)
	}
	assert.Equal(t, []string{"a", "b", "shot", "mug"}, ids)
}
