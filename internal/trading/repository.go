package trading

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

// PGRepository provides PostgreSQL backed persistence for documents.
// Each operation commits independently; the recorder's compensation logic
// relies on DeleteDocument sweeping all three tables by document number.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const documentColumns = `doc_number, kind, party_id, doc_date, subtotal, tax_total,
	discount_percentage, discount_amount, net_total, paid, outstanding, remarks, status,
	created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.Number, &d.Kind, &d.PartyID, &d.Date, &d.Subtotal, &d.TaxTotal,
		&d.Discount.Percentage, &d.Discount.Amount, &d.NetTotal, &d.Paid, &d.Outstanding,
		&d.Remarks, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// LastNumber returns the highest document number issued for prefix.
// Ordering by length before value keeps numeric magnitude once a series
// outgrows its zero padding, where a plain MAX would stick at 9999.
func (r *PGRepository) LastNumber(ctx context.Context, prefix string) (string, error) {
	var last string
	err := r.pool.QueryRow(ctx,
		`SELECT doc_number FROM documents WHERE doc_number LIKE $1 || '%'
		ORDER BY LENGTH(doc_number) DESC, doc_number DESC LIMIT 1`, prefix).
		Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("trading: last number: %w", err)
	}
	return last, nil
}

// NumberExists reports whether a document number is already claimed.
func (r *PGRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE doc_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("trading: number exists: %w", err)
	}
	return exists, nil
}

// InsertDocument persists the header. The unique index on doc_number turns
// a lost generation race into ErrDuplicateNumber.
func (r *PGRepository) InsertDocument(ctx context.Context, doc Document) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx, `INSERT INTO documents (`+documentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		doc.Number, doc.Kind, doc.PartyID, doc.Date, doc.Subtotal, doc.TaxTotal,
		doc.Discount.Percentage, doc.Discount.Amount, doc.NetTotal, doc.Paid, doc.Outstanding,
		doc.Remarks, doc.Status, now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("trading: insert document: %w", err)
	}
	return nil
}

// InsertLineItems writes all lines in one batch and returns how many rows
// were persisted. The caller compares the count against the attempt.
func (r *PGRepository) InsertLineItems(ctx context.Context, items []LineItem) (int, error) {
	now := time.Now()
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, []any{
			item.DocumentNumber, item.ProductID, item.Quantity, item.PriceType,
			item.Price.Retail, item.Price.Wholesale, item.Price.Purchase, item.Price.MRP,
			item.Tax.Percentage, item.Tax.Amount, item.Total, item.HSNSACCode, item.Unit, now,
		})
	}
	copied, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"document_items"},
		[]string{"doc_number", "product_id", "quantity", "price_type",
			"retail_price", "wholesale_price", "purchase_price", "mrp",
			"tax_percentage", "tax_amount", "total", "hsn_sac_code", "unit", "created_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return int(copied), fmt.Errorf("trading: insert line items: %w", err)
	}
	return int(copied), nil
}

// InsertPayment persists the inline payment row.
func (r *PGRepository) InsertPayment(ctx context.Context, p Payment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO document_payments
		(reference, doc_number, party_id, method, amount, payment_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.Reference, p.DocumentNumber, p.PartyID, p.Method, p.Amount, p.Date, time.Now())
	if err != nil {
		return fmt.Errorf("trading: insert payment: %w", err)
	}
	return nil
}

// DeleteDocument removes the header, all line items and any payments
// written under number. Used only as compensation for failed recordings.
func (r *PGRepository) DeleteDocument(ctx context.Context, number string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM document_payments WHERE doc_number = $1`, number); err != nil {
		return fmt.Errorf("trading: delete payments: %w", err)
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM document_items WHERE doc_number = $1`, number); err != nil {
		return fmt.Errorf("trading: delete items: %w", err)
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE doc_number = $1`, number); err != nil {
		return fmt.Errorf("trading: delete document: %w", err)
	}
	return nil
}

// GetDocument returns a document header and its lines.
func (r *PGRepository) GetDocument(ctx context.Context, kind Kind, number string) (*Document, []LineItem, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE doc_number = $1 AND kind = $2`, number, kind)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("trading: get document: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT doc_number, product_id, quantity, price_type,
			retail_price, wholesale_price, purchase_price, mrp,
			tax_percentage, tax_amount, total, hsn_sac_code, unit
		FROM document_items WHERE doc_number = $1 ORDER BY product_id`, number)
	if err != nil {
		return nil, nil, fmt.Errorf("trading: get items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.DocumentNumber, &item.ProductID, &item.Quantity, &item.PriceType,
			&item.Price.Retail, &item.Price.Wholesale, &item.Price.Purchase, &item.Price.MRP,
			&item.Tax.Percentage, &item.Tax.Amount, &item.Total, &item.HSNSACCode, &item.Unit); err != nil {
			return nil, nil, fmt.Errorf("trading: scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &doc, items, nil
}

// ListDocuments returns a paginated listing for one kind, newest first.
func (r *PGRepository) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	search := "%" + filter.Search + "%"
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents
		WHERE kind = $1 AND ($2 = '' OR party_id = $2) AND ($3 = '%%' OR doc_number ILIKE $3)`,
		filter.Kind, filter.PartyID, search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("trading: count documents: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE kind = $1 AND ($2 = '' OR party_id = $2) AND ($3 = '%%' OR doc_number ILIKE $3)
		ORDER BY doc_number DESC LIMIT $4 OFFSET $5`,
		filter.Kind, filter.PartyID, search, filter.PerPage, shared.Offset(filter.Page, filter.PerPage))
	if err != nil {
		return nil, 0, fmt.Errorf("trading: list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("trading: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}
