package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jogardn/roastery-orders/internal/client"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML layout accepted by seed.
type catalogFile struct {
	Products  []seedProduct  `yaml:"products"`
	Customers []seedCustomer `yaml:"customers"`
}

type seedProduct struct {
	Name                    string   `yaml:"name"`
	Description             string   `yaml:"description"`
	Category                string   `yaml:"category"`
	Unit                    string   `yaml:"unit"`
	Price                   string   `yaml:"price"`
	ProductionWeightPerUnit *float64 `yaml:"production_weight_per_unit"`
	ProductionUnit          *string  `yaml:"production_unit"`
	Global                  bool     `yaml:"global"`
}

type seedCustomer struct {
	Email        string           `yaml:"email"`
	Name         string           `yaml:"name"`
	CompanyName  string           `yaml:"company_name"`
	Phone        string           `yaml:"phone"`
	Password     string           `yaml:"password"`
	CustomerCode *int             `yaml:"customer_code"`
	Products     []seedAssignment `yaml:"products"`
}

// seedAssignment names a product from the same file. Price is optional.
type seedAssignment struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <catalog.yaml>",
	Short: "Create the products and customers listed in a catalog file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func parseCatalog(data []byte) (*catalogFile, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	names := make(map[string]bool, len(file.Products))
	for i, p := range file.Products {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("product %d: name is required", i+1)
		}
		if names[p.Name] {
			return nil, fmt.Errorf("product %q listed twice", p.Name)
		}
		names[p.Name] = true
		if !models.Category(p.Category).Valid() {
			return nil, fmt.Errorf("product %q: unknown category %q", p.Name, p.Category)
		}
		if _, err := decimal.NewFromString(p.Price); err != nil {
			return nil, fmt.Errorf("product %q: invalid price %q", p.Name, p.Price)
		}
	}

	for _, c := range file.Customers {
		for _, a := range c.Products {
			if !names[a.Name] {
				return nil, fmt.Errorf("customer %s: product %q is not in the catalog", c.Email, a.Name)
			}
			if a.Price != "" {
				if _, err := decimal.NewFromString(a.Price); err != nil {
					return nil, fmt.Errorf("customer %s: invalid price %q for %q", c.Email, a.Price, a.Name)
				}
			}
		}
	}
	return &file, nil
}

func (p seedProduct) input() client.ProductInput {
	return client.ProductInput{
		Name:                    p.Name,
		Description:             p.Description,
		Category:                models.Category(p.Category),
		Unit:                    p.Unit,
		Price:                   decimal.RequireFromString(p.Price),
		ProductionWeightPerUnit: p.ProductionWeightPerUnit,
		ProductionUnit:          p.ProductionUnit,
		IsGlobal:                p.Global,
	}
}

// assignments maps a customer's product names to ids.
func (c seedCustomer) assignments(ids map[string]string) []client.Assignment {
	out := make([]client.Assignment, 0, len(c.Products))
	for _, a := range c.Products {
		assignment := client.Assignment{ProductID: ids[a.Name]}
		if a.Price != "" {
			price := decimal.RequireFromString(a.Price)
			assignment.CustomPrice = &price
		}
		out = append(out, assignment)
	}
	return out
}

func runSeed(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	file, err := parseCatalog(data)
	if err != nil {
		return err
	}

	c, err := login(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	ids := make(map[string]string, len(file.Products))
	for _, p := range file.Products {
		product, err := c.CreateProduct(ctx, p.input())
		if err != nil {
			return fmt.Errorf("create product %q: %w", p.Name, err)
		}
		ids[p.Name] = product.ID
		logger.WithField("product_id", product.ID).WithField("name", p.Name).Info("Product created")
	}

	for _, sc := range file.Customers {
		customer, err := c.CreateCustomer(ctx, client.CustomerInput{
			Email:        sc.Email,
			Name:         sc.Name,
			CompanyName:  sc.CompanyName,
			Phone:        sc.Phone,
			Password:     sc.Password,
			CustomerCode: sc.CustomerCode,
		})
		if err != nil {
			return fmt.Errorf("create customer %s: %w", sc.Email, err)
		}
		if len(sc.Products) > 0 {
			if err := c.ReplaceAssignments(ctx, customer.ID, sc.assignments(ids)); err != nil {
				return fmt.Errorf("assign products to %s: %w", sc.Email, err)
			}
		}
		logger.WithFields(logrus.Fields{
			"customer_id": customer.ID,
			"email":       customer.Email,
			"assigned":    len(sc.Products),
		}).Info("Customer created")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d products and %d customers\n", len(file.Products), len(file.Customers))
	return nil
}
