package catalog

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

// Repository provides PostgreSQL backed persistence for catalog data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `product_id, product_name, product_code, unit, category, brand, tax_id,
	hsn_sac_code, supplier_id, mrp, retail_price, purchase_price, wholesale_price,
	opening_stock_qty, min_stock_qty, store_location, status, availability, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Unit, &p.Category, &p.Brand, &p.TaxID,
		&p.HSNSACCode, &p.SupplierID, &p.MRP, &p.RetailPrice, &p.PurchasePrice, &p.WholesalePrice,
		&p.StockQty, &p.MinStockQty, &p.StoreLocation, &p.Status, &p.Availability, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateProduct inserts a product row.
func (r *Repository) CreateProduct(ctx context.Context, p Product) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		p.ID, p.Name, p.Code, p.Unit, p.Category, p.Brand, p.TaxID,
		p.HSNSACCode, p.SupplierID, p.MRP, p.RetailPrice, p.PurchasePrice, p.WholesalePrice,
		p.StockQty, p.MinStockQty, p.StoreLocation, p.Status, p.Availability, now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("catalog: create product: %w", err)
	}
	return nil
}

// GetProduct returns a product by identifier.
func (r *Repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get product: %w", err)
	}
	return &p, nil
}

// SellableProducts returns the subset of ids that are active and in stock.
// The caller compares the returned count against the requested count.
func (r *Repository) SellableProducts(ctx context.Context, ids []string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE product_id = ANY($1) AND status = $2 AND availability = $3`,
		ids, StatusActive, AvailabilityInStock)
	if err != nil {
		return nil, fmt.Errorf("catalog: sellable products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListProducts returns a paginated product listing.
func (r *Repository) ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	search := "%" + filter.Search + "%"
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products
		WHERE ($1 = '%%' OR product_name ILIKE $1 OR product_code ILIKE $1)`, search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: count products: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE ($1 = '%%' OR product_name ILIKE $1 OR product_code ILIKE $1)
		ORDER BY product_id DESC LIMIT $2 OFFSET $3`,
		search, filter.PerPage, shared.Offset(filter.Page, filter.PerPage))
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// TaxSetting returns the tax setting for id, or nil when absent.
func (r *Repository) TaxSetting(ctx context.Context, id int) (*TaxSetting, error) {
	var setting TaxSetting
	var status int
	err := r.pool.QueryRow(ctx,
		`SELECT tax_id, tax, status FROM tax_settings WHERE tax_id = $1`, id).
		Scan(&setting.ID, &setting.Payload, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: tax setting: %w", err)
	}
	setting.Active = status == StatusActive
	return &setting, nil
}

// StockQty reads the current on-hand quantity for a product.
func (r *Repository) StockQty(ctx context.Context, productID string) (float64, error) {
	var qty float64
	err := r.pool.QueryRow(ctx,
		`SELECT opening_stock_qty FROM products WHERE product_id = $1`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("catalog: stock qty: %w", err)
	}
	return qty, nil
}

// SetStockQty writes the on-hand quantity for a product.
func (r *Repository) SetStockQty(ctx context.Context, productID string, qty float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET opening_stock_qty = $2, updated_at = $3 WHERE product_id = $1`,
		productID, qty, time.Now())
	if err != nil {
		return fmt.Errorf("catalog: set stock qty: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BelowMinStock lists products whose on-hand quantity sits under the
// configured minimum. Used by the low-stock background scan.
func (r *Repository) BelowMinStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE status = $1 AND opening_stock_qty < min_stock_qty
		ORDER BY opening_stock_qty ASC`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("catalog: below min stock: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// LastNumber returns the highest product identifier for prefix. Length sorts
// before value so identifiers past the four-digit padding still compare by
// numeric magnitude.
func (r *Repository) LastNumber(ctx context.Context, prefix string) (string, error) {
	var last string
	err := r.pool.QueryRow(ctx,
		`SELECT product_id FROM products WHERE product_id LIKE $1 || '%'
		ORDER BY LENGTH(product_id) DESC, product_id DESC LIMIT 1`, prefix).
		Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: last number: %w", err)
	}
	return last, nil
}

// NumberExists reports whether a product identifier is already taken.
func (r *Repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE product_id = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("catalog: number exists: %w", err)
	}
	return exists, nil
}
