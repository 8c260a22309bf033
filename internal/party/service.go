package party

import (
	"context"
	"errors"
	"fmt"

	"github.com/arcadia-retail/arcadia/internal/numbering"
	"github.com/arcadia-retail/arcadia/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	CreateParty(ctx context.Context, p Party) error
	GetParty(ctx context.Context, id string) (*Party, error)
	ListParties(ctx context.Context, filter ListFilter) ([]Party, int, error)
}

// AuditPort records party mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates customer and supplier operations.
type Service struct {
	repo  RepositoryPort
	ids   *numbering.Generator
	audit AuditPort
}

// NewService constructs a party service.
func NewService(repo RepositoryPort, ids *numbering.Generator, audit AuditPort) *Service {
	return &Service{repo: repo, ids: ids, audit: audit}
}

// CreatePartyInput carries a new customer or supplier definition.
type CreatePartyInput struct {
	Role    Role
	Name    string
	Email   string
	Phone   string
	Address string
	GSTIN   string
}

// CreateParty mints an identifier in the role's series and persists the
// party with zeroed ledger aggregates.
func (s *Service) CreateParty(ctx context.Context, input CreatePartyInput) (*Party, error) {
	if !input.Role.Valid() {
		return nil, fmt.Errorf("party: unknown role %q", input.Role)
	}

	p := Party{
		Role:    input.Role,
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
		GSTIN:   input.GSTIN,
		Status:  StatusActive,
	}

	var created bool
	for attempt := 0; attempt < 3 && !created; attempt++ {
		id, err := s.ids.Next(ctx, input.Role.SeriesPrefix())
		if err != nil {
			return nil, err
		}
		p.ID = id
		switch err := s.repo.CreateParty(ctx, p); {
		case err == nil:
			created = true
		case errors.Is(err, ErrAlreadyExists):
			continue
		default:
			return nil, err
		}
	}
	if !created {
		return nil, ErrAlreadyExists
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   shared.AuditPartyCreated,
			Entity:   string(input.Role),
			EntityID: p.ID,
			Meta:     map[string]any{"name": p.Name},
		})
	}
	return &p, nil
}

// GetParty retrieves a party by identifier.
func (s *Service) GetParty(ctx context.Context, id string) (*Party, error) {
	return s.repo.GetParty(ctx, id)
}

// ListParties returns a paginated listing for one role.
func (s *Service) ListParties(ctx context.Context, filter ListFilter) ([]Party, int, error) {
	return s.repo.ListParties(ctx, filter)
}
