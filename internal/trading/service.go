package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/arcadia-retail/arcadia/internal/catalog"
	"github.com/arcadia-retail/arcadia/internal/inventory"
	"github.com/arcadia-retail/arcadia/internal/numbering"
	"github.com/arcadia-retail/arcadia/internal/party"
	"github.com/arcadia-retail/arcadia/internal/shared"
)

// Repository persists documents, line items and payments. InsertDocument
// returns ErrDuplicateNumber when the unique index on the document number
// rejects the row; the recorder re-issues the number on that signal.
type Repository interface {
	LastNumber(ctx context.Context, prefix string) (string, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	InsertDocument(ctx context.Context, doc Document) error
	InsertLineItems(ctx context.Context, items []LineItem) (int, error)
	InsertPayment(ctx context.Context, p Payment) error
	DeleteDocument(ctx context.Context, number string) error
	GetDocument(ctx context.Context, kind Kind, number string) (*Document, []LineItem, error)
	ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error)
}

// PartyLedger exposes counterparty lookup and running-aggregate updates.
type PartyLedger interface {
	ActiveParty(ctx context.Context, id string, role party.Role) (*party.Party, error)
	ApplyDocument(ctx context.Context, id string, role party.Role, delta party.LedgerDelta) error
}

// ProductSource fetches the sellable subset of requested products.
type ProductSource interface {
	SellableProducts(ctx context.Context, ids []string) ([]catalog.Product, error)
}

// TaxRateSource resolves the rate for a product's tax reference.
type TaxRateSource interface {
	RateFor(ctx context.Context, taxID int) (catalog.TaxRate, error)
}

// StockPort applies and reverses signed stock deltas.
type StockPort interface {
	Apply(ctx context.Context, deltas []inventory.Delta) ([]inventory.Delta, error)
	Reverse(ctx context.Context, deltas []inventory.Delta) error
}

// AuditPort records workflow outcomes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Recorder orchestrates the multi-step recording of a commercial document.
// Each step commits separately; there is no enclosing transaction. Failures
// after the header write trigger compensating deletes of everything written
// under the document number, plus reversal of stock deltas already applied.
type Recorder struct {
	repo     Repository
	parties  PartyLedger
	products ProductSource
	taxes    TaxRateSource
	stock    StockPort
	ids      *numbering.Generator
	audit    AuditPort
	logger   *slog.Logger

	maxNumberAttempts int
}

// RecorderConfig groups optional settings.
type RecorderConfig struct {
	// MaxNumberAttempts bounds how many header inserts may be retried on
	// unique-index rejections before the recording fails as retryable.
	MaxNumberAttempts int
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo Repository, parties PartyLedger, products ProductSource, taxes TaxRateSource, stock StockPort, audit AuditPort, logger *slog.Logger, cfg RecorderConfig) *Recorder {
	attempts := cfg.MaxNumberAttempts
	if attempts <= 0 {
		attempts = numbering.DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		repo:              repo,
		parties:           parties,
		products:          products,
		taxes:             taxes,
		stock:             stock,
		ids:               numbering.NewGenerator(repo, attempts),
		audit:             audit,
		logger:            logger,
		maxNumberAttempts: attempts,
	}
}

// LineInput is one requested (product, quantity) pair.
type LineInput struct {
	ProductID string
	Quantity  float64
}

// RecordInput carries one document-recording request.
type RecordInput struct {
	Kind          Kind
	PartyID       string
	Lines         []LineInput
	PaidAmount    float64
	PaymentMethod PaymentMethod
	Discount      Discount
	Remarks       string
	Date          time.Time
}

// Record validates, prices and persists one purchase or sale, then applies
// its stock and ledger effects. On success the persisted header is returned.
func (r *Recorder) Record(ctx context.Context, input RecordInput) (*Document, error) {
	if !input.Kind.Valid() {
		return nil, fmt.Errorf("trading: unknown document kind %q", input.Kind)
	}
	if input.PaidAmount < 0 || math.IsNaN(input.PaidAmount) || math.IsInf(input.PaidAmount, 0) {
		return nil, ErrInvalidPayment
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = PaymentCash
	}
	if !input.PaymentMethod.Valid() {
		return nil, ErrInvalidPayment
	}

	role := input.Kind.PartyRole()
	counterparty, err := r.parties.ActiveParty(ctx, input.PartyID, role)
	if err != nil {
		if errors.Is(err, party.ErrNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, fmt.Errorf("trading: fetch party: %w", err)
	}

	if len(input.Lines) == 0 {
		return nil, ErrInvalidLineItems
	}
	ids := make([]string, 0, len(input.Lines))
	qtyByProduct := make(map[string]float64, len(input.Lines))
	for _, line := range input.Lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return nil, ErrInvalidLineItems
		}
		ids = append(ids, line.ProductID)
		qtyByProduct[line.ProductID] = line.Quantity
	}

	products, err := r.products.SellableProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("trading: fetch products: %w", err)
	}
	// Missing, inactive, unavailable and duplicated references all surface
	// as a count mismatch.
	if len(products) != len(input.Lines) {
		return nil, ErrProductsUnavailable
	}

	items, subtotal, taxTotal, err := r.priceLines(ctx, products, qtyByProduct)
	if err != nil {
		return nil, err
	}

	discount := input.Discount
	if discount.Amount == 0 && discount.Percentage > 0 {
		discount.Amount = round2(discount.Percentage * subtotal / 100)
	}
	netTotal := round2(subtotal + taxTotal - discount.Amount)
	outstanding := round2(netTotal - input.PaidAmount)

	docDate := input.Date
	if docDate.IsZero() {
		docDate = time.Now()
	}
	doc := Document{
		Kind:        input.Kind,
		PartyID:     input.PartyID,
		Date:        docDate,
		Subtotal:    subtotal,
		TaxTotal:    taxTotal,
		Discount:    discount,
		NetTotal:    netTotal,
		Paid:        round2(input.PaidAmount),
		Outstanding: outstanding,
		Remarks:     input.Remarks,
		Status:      StatusActive,
	}

	if err := r.insertHeader(ctx, &doc); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].DocumentNumber = doc.Number
	}

	written, err := r.repo.InsertLineItems(ctx, items)
	if err != nil || written != len(items) {
		r.compensate(ctx, doc.Number, "line items", err)
		return nil, ErrPartialWrite
	}

	if input.PaidAmount > 0 {
		payment := Payment{
			Reference:      uuid.NewString(),
			DocumentNumber: doc.Number,
			PartyID:        input.PartyID,
			Method:         input.PaymentMethod,
			Amount:         round2(input.PaidAmount),
			Date:           docDate,
		}
		if err := r.repo.InsertPayment(ctx, payment); err != nil {
			r.compensate(ctx, doc.Number, "payment", err)
			return nil, ErrPaymentWrite
		}
	}

	deltas := make([]inventory.Delta, 0, len(items))
	for _, item := range items {
		deltas = append(deltas, inventory.Delta{
			ProductID: item.ProductID,
			Qty:       input.Kind.StockSign() * item.Quantity,
		})
	}
	applied, err := r.stock.Apply(ctx, deltas)
	if err != nil {
		if revErr := r.stock.Reverse(ctx, applied); revErr != nil {
			r.logger.Error("stock reversal incomplete",
				slog.String("document", doc.Number), slog.Any("error", revErr))
		}
		r.compensate(ctx, doc.Number, "stock", err)
		return nil, ErrStockAdjust
	}

	ledgerDelta := party.LedgerDelta{NetTotal: netTotal, Paid: input.PaidAmount}
	if err := r.parties.ApplyDocument(ctx, counterparty.ID, role, ledgerDelta); err != nil {
		if revErr := r.stock.Reverse(ctx, applied); revErr != nil {
			r.logger.Error("stock reversal incomplete",
				slog.String("document", doc.Number), slog.Any("error", revErr))
		}
		r.compensate(ctx, doc.Number, "ledger", err)
		return nil, ErrLedgerUpdate
	}

	if r.audit != nil {
		_ = r.audit.Record(ctx, shared.AuditLog{
			Action:   shared.AuditDocumentRecorded,
			Entity:   string(input.Kind),
			EntityID: doc.Number,
			Meta: map[string]any{
				"party_id":  input.PartyID,
				"net_total": netTotal,
				"paid":      doc.Paid,
			},
		})
	}
	return &doc, nil
}

// priceLines builds line items from the fetched products, pricing every
// line at the retail price regardless of document kind.
func (r *Recorder) priceLines(ctx context.Context, products []catalog.Product, qtyByProduct map[string]float64) ([]LineItem, float64, float64, error) {
	items := make([]LineItem, 0, len(products))
	var subtotal, taxTotal float64
	for _, product := range products {
		qty, ok := qtyByProduct[product.ID]
		if !ok {
			return nil, 0, 0, ErrProductsUnavailable
		}
		rate, err := r.taxes.RateFor(ctx, product.TaxID)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("trading: resolve tax for %s: %w", product.ID, err)
		}

		lineTotal := product.RetailPrice * qty
		lineTax := rate.LineTax(product.RetailPrice, qty)
		items = append(items, LineItem{
			ProductID: product.ID,
			Quantity:  qty,
			PriceType: "retail",
			Price: PriceSnapshot{
				Retail:    product.RetailPrice,
				Wholesale: product.WholesalePrice,
				Purchase:  product.PurchasePrice,
				MRP:       product.MRP,
			},
			Tax:        LineTax{Percentage: rate.Percentage, Amount: lineTax},
			Total:      lineTotal,
			HSNSACCode: product.HSNSACCode,
			Unit:       product.Unit,
		})
		subtotal += lineTotal
		taxTotal += lineTax
	}
	return items, round2(subtotal), round2(taxTotal), nil
}

// insertHeader mints a document number and persists the header, re-issuing
// on unique-index rejections up to the configured bound. The pre-check in
// the generator is advisory; the insert is the authoritative claim.
func (r *Recorder) insertHeader(ctx context.Context, doc *Document) error {
	for attempt := 0; attempt < r.maxNumberAttempts; attempt++ {
		number, err := r.ids.Next(ctx, doc.Kind.SeriesPrefix())
		if err != nil {
			return err
		}
		doc.Number = number
		err = r.repo.InsertDocument(ctx, *doc)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrDuplicateNumber) {
			continue
		}
		return fmt.Errorf("trading: insert document: %w", err)
	}
	return numbering.ErrSeriesExhausted
}

// compensate best-effort deletes everything written under number.
func (r *Recorder) compensate(ctx context.Context, number, step string, cause error) {
	r.logger.Error("recording failed, compensating",
		slog.String("document", number), slog.String("step", step), slog.Any("error", cause))
	if err := r.repo.DeleteDocument(ctx, number); err != nil {
		r.logger.Error("compensating delete failed",
			slog.String("document", number), slog.Any("error", err))
	}
	if r.audit != nil {
		_ = r.audit.Record(ctx, shared.AuditLog{
			Action:   shared.AuditDocumentRolledBack,
			Entity:   "document",
			EntityID: number,
			Meta:     map[string]any{"step": step},
		})
	}
}

// GetDocument returns a recorded document and its lines.
func (r *Recorder) GetDocument(ctx context.Context, kind Kind, number string) (*Document, []LineItem, error) {
	return r.repo.GetDocument(ctx, kind, number)
}

// ListDocuments returns a paginated document listing.
func (r *Recorder) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	return r.repo.ListDocuments(ctx, filter)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
