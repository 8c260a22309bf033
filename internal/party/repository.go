package party

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcadia-retail/arcadia/internal/platform/db"
	"github.com/arcadia-retail/arcadia/internal/shared"
)

// Repository provides PostgreSQL backed persistence for parties.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partyColumns = `party_id, role, name, email, phone, address, gstin,
	total_amount, total_paid, total_due, status, created_at, updated_at`

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.Role, &p.Name, &p.Email, &p.Phone, &p.Address, &p.GSTIN,
		&p.TotalAmount, &p.TotalPaid, &p.TotalDue, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateParty inserts a party row.
func (r *Repository) CreateParty(ctx context.Context, p Party) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx, `INSERT INTO parties (`+partyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.Role, p.Name, p.Email, p.Phone, p.Address, p.GSTIN,
		p.TotalAmount, p.TotalPaid, p.TotalDue, p.Status, now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("party: create: %w", err)
	}
	return nil
}

// ActiveParty returns the party when it exists, carries the expected role and
// is active; ErrNotFound otherwise.
func (r *Repository) ActiveParty(ctx context.Context, id string, role Role) (*Party, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties
		WHERE party_id = $1 AND role = $2 AND status = $3`, id, role, StatusActive)
	p, err := scanParty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("party: active party: %w", err)
	}
	return &p, nil
}

// GetParty returns a party regardless of status.
func (r *Repository) GetParty(ctx context.Context, id string) (*Party, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE party_id = $1`, id)
	p, err := scanParty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("party: get: %w", err)
	}
	return &p, nil
}

// ApplyDocument adds a document's financial effect to the running aggregates.
// The increments happen in a single statement so concurrent recordings
// cannot lose each other's updates. Zero rows affected is the failure signal
// the recorder compensates on.
func (r *Repository) ApplyDocument(ctx context.Context, id string, role Role, delta LedgerDelta) error {
	tag, err := r.pool.Exec(ctx, `UPDATE parties SET
			total_amount = ROUND((total_amount + $3)::numeric, 2),
			total_paid   = ROUND((total_paid + $4)::numeric, 2),
			total_due    = ROUND((total_due + $5)::numeric, 2),
			updated_at   = $6
		WHERE party_id = $1 AND role = $2 AND status = $7`,
		id, role, delta.NetTotal, delta.Paid, delta.Due(), time.Now(), StatusActive)
	if err != nil {
		return fmt.Errorf("party: apply document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLedgerNotApplied
	}
	return nil
}

// ListParties returns a paginated listing for one role.
func (r *Repository) ListParties(ctx context.Context, filter ListFilter) ([]Party, int, error) {
	search := "%" + filter.Search + "%"
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM parties
		WHERE role = $1 AND ($2 = '%%' OR name ILIKE $2 OR party_id ILIKE $2)`,
		filter.Role, search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("party: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+partyColumns+` FROM parties
		WHERE role = $1 AND ($2 = '%%' OR name ILIKE $2 OR party_id ILIKE $2)
		ORDER BY party_id DESC LIMIT $3 OFFSET $4`,
		filter.Role, search, filter.PerPage, shared.Offset(filter.Page, filter.PerPage))
	if err != nil {
		return nil, 0, fmt.Errorf("party: list: %w", err)
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("party: scan: %w", err)
		}
		parties = append(parties, p)
	}
	return parties, total, rows.Err()
}

// LastNumber returns the highest party identifier for prefix. Length sorts
// before value so identifiers past the four-digit padding still compare by
// numeric magnitude.
func (r *Repository) LastNumber(ctx context.Context, prefix string) (string, error) {
	var last string
	err := r.pool.QueryRow(ctx,
		`SELECT party_id FROM parties WHERE party_id LIKE $1 || '%'
		ORDER BY LENGTH(party_id) DESC, party_id DESC LIMIT 1`, prefix).
		Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("party: last number: %w", err)
	}
	return last, nil
}

// NumberExists reports whether a party identifier is already taken.
func (r *Repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM parties WHERE party_id = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("party: number exists: %w", err)
	}
	return exists, nil
}
