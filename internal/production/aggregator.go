// Package production turns placed orders into a production schedule: how
// much of each product has to be roasted or packed for a date range.
package production

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/jogardn/roastery-orders/pkg/models"
)

const StatusFilterAll = "all"

var (
	ErrInvalidWeight   = errors.New("invalid production weight")
	ErrInvalidLineItem = errors.New("invalid line item")
)

type Options struct {
	StartDate       time.Time
	EndDate         time.Time
	StatusFilter    string
	IncludeArchived bool
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type OrderEntry struct {
	OrderID          string             `json:"order_id"`
	OrderNumber      string             `json:"order_number"`
	CustomerName     string             `json:"customer_name"`
	Quantity         int                `json:"quantity"`
	ProductionWeight float64            `json:"production_weight"`
	Status           models.OrderStatus `json:"status"`
	DueDate          time.Time          `json:"due_date"`
}

type Item struct {
	ProductID               string          `json:"product_id"`
	ProductName             string          `json:"product_name"`
	Category                models.Category `json:"category"`
	Unit                    string          `json:"unit"`
	ProductionWeightPerUnit float64         `json:"production_weight_per_unit"`
	ProductionUnit          string          `json:"production_unit"`
	TotalQuantity           int             `json:"total_quantity"`
	TotalProductionWeight   float64         `json:"total_production_weight"`
	OrderCount              int             `json:"order_count"`
	Orders                  []OrderEntry    `json:"orders"`
}

type CategorySummary struct {
	Quantity int `json:"quantity"`
	Products int `json:"products"`
}

type Summary struct {
	TotalProducts int                                 `json:"total_products"`
	TotalQuantity int                                 `json:"total_quantity"`
	ByCategory    map[models.Category]CategorySummary `json:"by_category"`
}

type Schedule struct {
	DateRange       DateRange                  `json:"date_range"`
	TotalItems      int                        `json:"total_items"`
	TotalOrders     int                        `json:"total_orders"`
	ProductionItems []Item                     `json:"production_items"`
	OrdersByStatus  map[models.OrderStatus]int `json:"orders_by_status"`
	Summary         Summary                    `json:"summary"`
}

// Include reports whether an order belongs in a schedule built with opts.
// Cancelled orders never do.
func Include(order *models.Order, opts Options) bool {
	if order.Status == models.StatusCancelled {
		return false
	}
	if order.IsArchived && !opts.IncludeArchived {
		return false
	}
	if opts.StatusFilter != "" && opts.StatusFilter != StatusFilterAll && string(order.Status) != opts.StatusFilter {
		return false
	}
	if !opts.StartDate.IsZero() && order.CreatedAt.Before(opts.StartDate) {
		return false
	}
	if !opts.EndDate.IsZero() && order.CreatedAt.After(opts.EndDate) {
		return false
	}
	return true
}

// Aggregate groups the line items of the included orders by product.
// Weights keep full float64 precision; round with FormatWeight when rendering.
func Aggregate(orders []models.Order, opts Options) (*Schedule, error) {
	schedule := &Schedule{
		DateRange:       DateRange{Start: opts.StartDate, End: opts.EndDate},
		ProductionItems: []Item{},
		OrdersByStatus:  make(map[models.OrderStatus]int),
		Summary: Summary{
			ByCategory: make(map[models.Category]CategorySummary),
		},
	}

	// index into schedule.ProductionItems, in first-seen order
	byProduct := make(map[string]int)

	for i := range orders {
		order := &orders[i]
		if !Include(order, opts) {
			continue
		}

		schedule.TotalOrders++
		schedule.OrdersByStatus[order.Status]++

		for _, line := range order.Items {
			if line.Product == nil {
				return nil, fmt.Errorf("%w: order %s item %s has no product data", ErrInvalidLineItem, order.ID, line.ID)
			}
			if line.Quantity <= 0 {
				return nil, fmt.Errorf("%w: order %s product %s quantity %d", ErrInvalidLineItem, order.ID, line.Product.ID, line.Quantity)
			}
			schedule.TotalItems++

			idx, seen := byProduct[line.Product.ID]
			if !seen {
				item, err := newItem(line.Product)
				if err != nil {
					return nil, err
				}
				schedule.ProductionItems = append(schedule.ProductionItems, item)
				idx = len(schedule.ProductionItems) - 1
				byProduct[line.Product.ID] = idx
			}
			item := &schedule.ProductionItems[idx]

			weight := float64(line.Quantity) * item.ProductionWeightPerUnit
			item.TotalQuantity += line.Quantity
			item.TotalProductionWeight += weight

			if entry := findEntry(item.Orders, order.ID); entry != nil {
				entry.Quantity += line.Quantity
				entry.ProductionWeight += weight
				continue
			}
			item.Orders = append(item.Orders, OrderEntry{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				CustomerName:     order.CustomerName,
				Quantity:         line.Quantity,
				ProductionWeight: weight,
				Status:           order.Status,
				DueDate:          order.CreatedAt,
			})
			item.OrderCount++
		}
	}

	// Ties keep first-seen order.
	sort.SliceStable(schedule.ProductionItems, func(a, b int) bool {
		return schedule.ProductionItems[a].TotalQuantity > schedule.ProductionItems[b].TotalQuantity
	})

	schedule.Summary.TotalProducts = len(schedule.ProductionItems)
	for _, item := range schedule.ProductionItems {
		schedule.Summary.TotalQuantity += item.TotalQuantity
		cat := schedule.Summary.ByCategory[item.Category]
		cat.Quantity += item.TotalQuantity
		cat.Products++
		schedule.Summary.ByCategory[item.Category] = cat
	}

	return schedule, nil
}

func newItem(p *models.Product) (Item, error) {
	weight := models.DefaultProductionWeightPerUnit
	if p.ProductionWeightPerUnit != nil {
		weight = *p.ProductionWeightPerUnit
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return Item{}, fmt.Errorf("%w: product %s has weight per unit %v", ErrInvalidWeight, p.ID, weight)
		}
	}
	unit := models.DefaultProductionUnit
	if p.ProductionUnit != nil && *p.ProductionUnit != "" {
		unit = *p.ProductionUnit
	}
	return Item{
		ProductID:               p.ID,
		ProductName:             p.Name,
		Category:                p.Category,
		Unit:                    p.Unit,
		ProductionWeightPerUnit: weight,
		ProductionUnit:          unit,
		Orders:                  []OrderEntry{},
	}, nil
}

func findEntry(entries []OrderEntry, orderID string) *OrderEntry {
	for i := range entries {
		if entries[i].OrderID == orderID {
			return &entries[i]
		}
	}
	return nil
}

// FormatWeight rounds a weight to one decimal place for display.
func FormatWeight(weight float64) string {
	return strconv.FormatFloat(weight, 'f', 1, 64)
}
