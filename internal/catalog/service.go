package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/sirupsen/logrus"
)

var ErrInvalidAssignment = errors.New("invalid product assignment")

type Repository interface {
	ListProducts(ctx context.Context, includeInactive bool) ([]models.Product, error)
	ListAssignments(ctx context.Context, customerID string) ([]models.CustomerProductAssignment, error)
	ReplaceAssignments(ctx context.Context, customerID string, assignments []models.CustomerProductAssignment) error
}

// Cache stores resolved catalogs per customer. A miss returns ok=false and
// the slot to fill; SetCatalog must be given that slot so a fill racing an
// invalidation lands somewhere no reader looks.
type Cache interface {
	GetCatalog(ctx context.Context, customerID string) (entries []Entry, slot string, ok bool, err error)
	SetCatalog(ctx context.Context, slot string, entries []Entry) error
	InvalidateCustomer(ctx context.Context, customerID string) error
	InvalidateAll(ctx context.Context) error
}

type Service struct {
	repo   Repository
	cache  Cache
	logger *logrus.Logger
}

func NewService(repo Repository, logger *logrus.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) SetCache(cache Cache) {
	s.cache = cache
}

func (s *Service) ForCustomer(ctx context.Context, customerID string) ([]Entry, error) {
	var slot string
	if s.cache != nil {
		entries, missed, ok, err := s.cache.GetCatalog(ctx, customerID)
		switch {
		case err != nil:
			s.logger.WithError(err).WithField("customer_id", customerID).Warn("Catalog cache read failed")
		case ok:
			return entries, nil
		}
		slot = missed
	}

	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	assignments, err := s.repo.ListAssignments(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	entries := Resolve(products, assignments)

	if slot != "" {
		if err := s.cache.SetCatalog(ctx, slot, entries); err != nil {
			s.logger.WithError(err).WithField("customer_id", customerID).Warn("Catalog cache write failed")
		}
	}
	return entries, nil
}

// ReplaceAssignments swaps the customer's whole assignment set.
func (s *Service) ReplaceAssignments(ctx context.Context, customerID string, assignments []models.CustomerProductAssignment) error {
	seen := make(map[string]bool, len(assignments))
	for i := range assignments {
		a := &assignments[i]
		if a.ProductID == "" {
			return fmt.Errorf("%w: missing product id", ErrInvalidAssignment)
		}
		if seen[a.ProductID] {
			return fmt.Errorf("%w: product %s listed twice", ErrInvalidAssignment, a.ProductID)
		}
		seen[a.ProductID] = true
		if a.CustomPrice != nil && a.CustomPrice.IsNegative() {
			return fmt.Errorf("%w: negative custom price for product %s", ErrInvalidAssignment, a.ProductID)
		}
		a.CustomerID = customerID
	}

	if err := s.repo.ReplaceAssignments(ctx, customerID, assignments); err != nil {
		return fmt.Errorf("replace assignments: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"customer_id": customerID,
		"count":       len(assignments),
	}).Info("Customer product assignments replaced")

	if s.cache != nil {
		if err := s.cache.InvalidateCustomer(ctx, customerID); err != nil {
			s.logger.WithError(err).WithField("customer_id", customerID).Warn("Catalog cache invalidation failed")
		}
	}
	return nil
}

// ProductsChanged drops every cached catalog after a product write.
func (s *Service) ProductsChanged(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.WithError(err).Warn("Catalog cache flush failed")
	}
}
