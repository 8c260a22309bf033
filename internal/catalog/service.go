package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/arcadia-retail/arcadia/internal/numbering"
	"github.com/arcadia-retail/arcadia/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	CreateProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error)
}

// AuditPort records catalog mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalog operations.
type Service struct {
	repo  RepositoryPort
	ids   *numbering.Generator
	audit AuditPort
}

// NewService constructs a catalog service.
func NewService(repo RepositoryPort, ids *numbering.Generator, audit AuditPort) *Service {
	return &Service{repo: repo, ids: ids, audit: audit}
}

// CreateProductInput carries a new product definition.
type CreateProductInput struct {
	Name           string
	Code           string
	Unit           int
	Category       int
	Brand          int
	TaxID          int
	HSNSACCode     string
	SupplierID     string
	MRP            float64
	RetailPrice    float64
	PurchasePrice  float64
	WholesalePrice float64
	StockQty       float64
	MinStockQty    float64
	StoreLocation  string
}

// CreateProduct mints a product identifier and persists the product.
// A concurrent writer claiming the same identifier triggers re-issuance.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*Product, error) {
	p := Product{
		Name:           input.Name,
		Code:           input.Code,
		Unit:           input.Unit,
		Category:       input.Category,
		Brand:          input.Brand,
		TaxID:          input.TaxID,
		HSNSACCode:     input.HSNSACCode,
		SupplierID:     input.SupplierID,
		MRP:            input.MRP,
		RetailPrice:    input.RetailPrice,
		PurchasePrice:  input.PurchasePrice,
		WholesalePrice: input.WholesalePrice,
		StockQty:       input.StockQty,
		MinStockQty:    input.MinStockQty,
		StoreLocation:  input.StoreLocation,
		Status:         StatusActive,
		Availability:   AvailabilityInStock,
	}

	// A lost race on the minted identifier re-issues; a duplicate code is a
	// real conflict and bounces after a few tries.
	var created bool
	for attempt := 0; attempt < 3 && !created; attempt++ {
		id, err := s.ids.Next(ctx, ProductSeriesPrefix)
		if err != nil {
			return nil, err
		}
		p.ID = id
		switch err := s.repo.CreateProduct(ctx, p); {
		case err == nil:
			created = true
		case errors.Is(err, ErrAlreadyExists):
			continue
		default:
			return nil, fmt.Errorf("catalog: create product: %w", err)
		}
	}
	if !created {
		return nil, ErrAlreadyExists
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   shared.AuditProductCreated,
			Entity:   "product",
			EntityID: p.ID,
			Meta:     map[string]any{"code": p.Code},
		})
	}
	return &p, nil
}

// GetProduct retrieves a product by identifier.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns a paginated product listing.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filter)
}
