package trading

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcadia-retail/arcadia/internal/catalog"
	"github.com/arcadia-retail/arcadia/internal/inventory"
	"github.com/arcadia-retail/arcadia/internal/numbering"
	"github.com/arcadia-retail/arcadia/internal/party"
	"github.com/arcadia-retail/arcadia/internal/shared"
)

type memDocs struct {
	docs     map[string]Document
	items    map[string][]LineItem
	payments map[string][]Payment

	// shadow numbers pass the generator's probe but are rejected on
	// insert, simulating a row committed by a concurrent writer between
	// probe and insert. The rejection converts the number into a claimed
	// one so the re-issue sees the winner's row.
	shadow  map[string]bool
	claimed map[string]bool

	rejectAllInserts bool
	failItems        bool
	itemsShortfall   int
	failPayment      bool

	insertCalls int
}

func newMemDocs() *memDocs {
	return &memDocs{
		docs:     make(map[string]Document),
		items:    make(map[string][]LineItem),
		payments: make(map[string][]Payment),
		shadow:   make(map[string]bool),
		claimed:  make(map[string]bool),
	}
}

// numberAfter mirrors the repository's length-then-value ordering so wide
// suffixes beat shorter ones.
func numberAfter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func (m *memDocs) LastNumber(_ context.Context, prefix string) (string, error) {
	last := ""
	for number := range m.docs {
		if strings.HasPrefix(number, prefix) && numberAfter(number, last) {
			last = number
		}
	}
	for number := range m.claimed {
		if strings.HasPrefix(number, prefix) && numberAfter(number, last) {
			last = number
		}
	}
	return last, nil
}

func (m *memDocs) NumberExists(_ context.Context, number string) (bool, error) {
	if m.claimed[number] {
		return true, nil
	}
	_, ok := m.docs[number]
	return ok, nil
}

func (m *memDocs) InsertDocument(_ context.Context, doc Document) error {
	m.insertCalls++
	if m.rejectAllInserts {
		return ErrDuplicateNumber
	}
	if m.shadow[doc.Number] {
		delete(m.shadow, doc.Number)
		m.claimed[doc.Number] = true
		return ErrDuplicateNumber
	}
	if _, ok := m.docs[doc.Number]; ok {
		return ErrDuplicateNumber
	}
	m.docs[doc.Number] = doc
	return nil
}

func (m *memDocs) InsertLineItems(_ context.Context, items []LineItem) (int, error) {
	if m.failItems {
		return 0, errors.New("items write refused")
	}
	n := len(items) - m.itemsShortfall
	if n < 0 {
		n = 0
	}
	for _, item := range items[:n] {
		m.items[item.DocumentNumber] = append(m.items[item.DocumentNumber], item)
	}
	return n, nil
}

func (m *memDocs) InsertPayment(_ context.Context, p Payment) error {
	if m.failPayment {
		return errors.New("payment write refused")
	}
	m.payments[p.DocumentNumber] = append(m.payments[p.DocumentNumber], p)
	return nil
}

func (m *memDocs) DeleteDocument(_ context.Context, number string) error {
	delete(m.docs, number)
	delete(m.items, number)
	delete(m.payments, number)
	return nil
}

func (m *memDocs) GetDocument(_ context.Context, kind Kind, number string) (*Document, []LineItem, error) {
	doc, ok := m.docs[number]
	if !ok || doc.Kind != kind {
		return nil, nil, ErrNotFound
	}
	return &doc, m.items[number], nil
}

func (m *memDocs) ListDocuments(_ context.Context, filter ListFilter) ([]Document, int, error) {
	var docs []Document
	for _, d := range m.docs {
		if d.Kind == filter.Kind {
			docs = append(docs, d)
		}
	}
	return docs, len(docs), nil
}

type memLedger struct {
	parties   map[string]*party.Party
	failApply bool
}

func (m *memLedger) ActiveParty(_ context.Context, id string, role party.Role) (*party.Party, error) {
	p, ok := m.parties[id]
	if !ok || p.Role != role || p.Status != party.StatusActive {
		return nil, party.ErrNotFound
	}
	return p, nil
}

func (m *memLedger) ApplyDocument(_ context.Context, id string, role party.Role, delta party.LedgerDelta) error {
	if m.failApply {
		return errors.New("ledger refused")
	}
	p, ok := m.parties[id]
	if !ok || p.Role != role {
		return party.ErrLedgerNotApplied
	}
	p.TotalAmount += delta.NetTotal
	p.TotalPaid += delta.Paid
	p.TotalDue += delta.Due()
	return nil
}

type memProducts struct {
	products map[string]catalog.Product
}

func (m *memProducts) SellableProducts(_ context.Context, ids []string) ([]catalog.Product, error) {
	seen := make(map[string]bool, len(ids))
	var out []catalog.Product
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := m.products[id]; ok && p.Sellable() {
			out = append(out, p)
		}
	}
	return out, nil
}

type staticTaxes struct {
	rates map[int]float64
}

func (s *staticTaxes) RateFor(_ context.Context, taxID int) (catalog.TaxRate, error) {
	return catalog.TaxRate{Percentage: s.rates[taxID]}, nil
}

type memStock struct {
	qty    map[string]float64
	failOn string
}

func (m *memStock) StockQty(_ context.Context, productID string) (float64, error) {
	if productID == m.failOn {
		return 0, errors.New("stock read refused")
	}
	q, ok := m.qty[productID]
	if !ok {
		return 0, catalog.ErrNotFound
	}
	return q, nil
}

func (m *memStock) SetStockQty(_ context.Context, productID string, qty float64) error {
	m.qty[productID] = qty
	return nil
}

type memAudit struct {
	logs []shared.AuditLog
}

func (m *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *memAudit) actions() []string {
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

type fixture struct {
	repo     *memDocs
	ledger   *memLedger
	products *memProducts
	stock    *memStock
	audit    *memAudit
	recorder *Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemDocs()
	ledger := &memLedger{parties: map[string]*party.Party{
		"CUST0001": {ID: "CUST0001", Role: party.RoleCustomer, Name: "Walk-in", Status: party.StatusActive},
		"SUP0001":  {ID: "SUP0001", Role: party.RoleSupplier, Name: "Mills & Co", Status: party.StatusActive},
	}}
	products := &memProducts{products: map[string]catalog.Product{
		"PRO0001": {
			ID: "PRO0001", Name: "Basmati Rice 5kg", TaxID: 1,
			RetailPrice: 50, WholesalePrice: 45, PurchasePrice: 40, MRP: 55,
			HSNSACCode: "1006", Unit: 2,
			Status: catalog.StatusActive, Availability: catalog.AvailabilityInStock,
		},
		"PRO0002": {
			ID: "PRO0002", Name: "Sunflower Oil 1L", TaxID: 2,
			RetailPrice: 120, WholesalePrice: 110, PurchasePrice: 100, MRP: 130,
			Status: catalog.StatusActive, Availability: catalog.AvailabilityInStock,
		},
		"PRO0009": {
			ID: "PRO0009", Name: "Discontinued Soap", TaxID: 1,
			RetailPrice: 30,
			Status:      catalog.StatusInactive, Availability: catalog.AvailabilityInStock,
		},
	}}
	stock := &memStock{qty: map[string]float64{"PRO0001": 100, "PRO0002": 40, "PRO0009": 5}}
	taxes := &staticTaxes{rates: map[int]float64{1: 18, 2: 5}}
	audit := &memAudit{}

	f := &fixture{repo: repo, ledger: ledger, products: products, stock: stock, audit: audit}
	f.recorder = NewRecorder(repo, ledger, products, taxes,
		inventory.NewAdjuster(stock), audit, slog.Default(), RecorderConfig{MaxNumberAttempts: 5})
	return f
}

func saleInput() RecordInput {
	return RecordInput{
		Kind:       KindSale,
		PartyID:    "CUST0001",
		Lines:      []LineInput{{ProductID: "PRO0001", Quantity: 10}},
		PaidAmount: 400,
	}
}

func TestRecordSaleAppliesAllEffects(t *testing.T) {
	f := newFixture(t)

	doc, err := f.recorder.Record(context.Background(), saleInput())
	require.NoError(t, err)

	require.Equal(t, "BNO0001", doc.Number)
	require.Equal(t, 500.0, doc.Subtotal)
	require.Equal(t, 90.0, doc.TaxTotal)
	require.Equal(t, 590.0, doc.NetTotal)
	require.Equal(t, 400.0, doc.Paid)
	require.Equal(t, 190.0, doc.Outstanding)
	require.InDelta(t, doc.NetTotal, doc.Subtotal+doc.TaxTotal-doc.Discount.Amount, 1e-9)

	items := f.repo.items["BNO0001"]
	require.Len(t, items, 1)
	require.Equal(t, "PRO0001", items[0].ProductID)
	require.Equal(t, "retail", items[0].PriceType)
	require.Equal(t, 50.0, items[0].Price.Retail)
	require.Equal(t, 18.0, items[0].Tax.Percentage)
	require.Equal(t, 90.0, items[0].Tax.Amount)
	require.Equal(t, 500.0, items[0].Total)

	payments := f.repo.payments["BNO0001"]
	require.Len(t, payments, 1)
	require.Equal(t, PaymentCash, payments[0].Method)
	require.Equal(t, 400.0, payments[0].Amount)
	require.NotEmpty(t, payments[0].Reference)

	require.Equal(t, 90.0, f.stock.qty["PRO0001"])

	cust := f.ledger.parties["CUST0001"]
	require.Equal(t, 590.0, cust.TotalAmount)
	require.Equal(t, 400.0, cust.TotalPaid)
	require.Equal(t, 190.0, cust.TotalDue)

	require.Equal(t, []string{shared.AuditDocumentRecorded}, f.audit.actions())
}

func TestRecordPurchaseIncreasesStock(t *testing.T) {
	f := newFixture(t)

	doc, err := f.recorder.Record(context.Background(), RecordInput{
		Kind:       KindPurchase,
		PartyID:    "SUP0001",
		Lines:      []LineInput{{ProductID: "PRO0001", Quantity: 4}},
		PaidAmount: 200,
	})
	require.NoError(t, err)

	require.Equal(t, "INV0001", doc.Number)
	require.Equal(t, 104.0, f.stock.qty["PRO0001"])

	sup := f.ledger.parties["SUP0001"]
	require.Equal(t, doc.NetTotal, sup.TotalAmount)
	require.Equal(t, 200.0, sup.TotalPaid)
	require.InDelta(t, doc.NetTotal-200, sup.TotalDue, 1e-9)
}

func TestRecordNumbersAdvancePerSeries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.recorder.Record(ctx, saleInput())
	require.NoError(t, err)
	second, err := f.recorder.Record(ctx, saleInput())
	require.NoError(t, err)
	purchase, err := f.recorder.Record(ctx, RecordInput{
		Kind:    KindPurchase,
		PartyID: "SUP0001",
		Lines:   []LineInput{{ProductID: "PRO0002", Quantity: 2}},
	})
	require.NoError(t, err)

	require.Equal(t, "BNO0001", first.Number)
	require.Equal(t, "BNO0002", second.Number)
	require.Equal(t, "INV0001", purchase.Number)
}

func TestRecordNumbersContinuePastFourDigits(t *testing.T) {
	f := newFixture(t)
	f.repo.claimed["BNO9999"] = true
	f.repo.claimed["BNO10025"] = true

	doc, err := f.recorder.Record(context.Background(), saleInput())
	require.NoError(t, err)
	require.Equal(t, "BNO10026", doc.Number)
}

func TestRecordReissuesNumberAfterInsertRace(t *testing.T) {
	f := newFixture(t)
	f.repo.shadow["BNO0001"] = true

	doc, err := f.recorder.Record(context.Background(), saleInput())
	require.NoError(t, err)

	require.Equal(t, "BNO0002", doc.Number)
	require.Equal(t, 2, f.repo.insertCalls)
}

func TestRecordFailsWhenSeriesExhausted(t *testing.T) {
	f := newFixture(t)
	f.repo.rejectAllInserts = true

	_, err := f.recorder.Record(context.Background(), saleInput())
	require.ErrorIs(t, err, numbering.ErrSeriesExhausted)

	require.Empty(t, f.repo.docs)
	require.Equal(t, 100.0, f.stock.qty["PRO0001"])
	require.Zero(t, f.ledger.parties["CUST0001"].TotalAmount)
}

func TestRecordRejectsUnknownParty(t *testing.T) {
	f := newFixture(t)

	input := saleInput()
	input.PartyID = "CUST0404"
	_, err := f.recorder.Record(context.Background(), input)
	require.ErrorIs(t, err, ErrPartyNotFound)
	require.Empty(t, f.repo.docs)
}

func TestRecordRejectsPartyWithWrongRole(t *testing.T) {
	f := newFixture(t)

	input := saleInput()
	input.PartyID = "SUP0001"
	_, err := f.recorder.Record(context.Background(), input)
	require.ErrorIs(t, err, ErrPartyNotFound)
}

func TestRecordRejectsBadLineItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := saleInput()
	input.Lines = nil
	_, err := f.recorder.Record(ctx, input)
	require.ErrorIs(t, err, ErrInvalidLineItems)

	input = saleInput()
	input.Lines = []LineInput{{ProductID: "PRO0001", Quantity: 0}}
	_, err = f.recorder.Record(ctx, input)
	require.ErrorIs(t, err, ErrInvalidLineItems)

	input = saleInput()
	input.Lines = []LineInput{{ProductID: "", Quantity: 3}}
	_, err = f.recorder.Record(ctx, input)
	require.ErrorIs(t, err, ErrInvalidLineItems)
}

func TestRecordRejectsUnavailableProduct(t *testing.T) {
	f := newFixture(t)

	input := saleInput()
	input.Lines = []LineInput{{ProductID: "PRO0009", Quantity: 1}}
	_, err := f.recorder.Record(context.Background(), input)
	require.ErrorIs(t, err, ErrProductsUnavailable)

	require.Empty(t, f.repo.docs)
	require.Equal(t, 5.0, f.stock.qty["PRO0009"])
}

func TestRecordRejectsDuplicateProductReferences(t *testing.T) {
	f := newFixture(t)

	input := saleInput()
	input.Lines = []LineInput{
		{ProductID: "PRO0001", Quantity: 2},
		{ProductID: "PRO0001", Quantity: 3},
	}
	_, err := f.recorder.Record(context.Background(), input)
	require.ErrorIs(t, err, ErrProductsUnavailable)
	require.Empty(t, f.repo.docs)
}

func TestRecordRejectsBadPaidAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := saleInput()
	input.PaidAmount = -1
	_, err := f.recorder.Record(ctx, input)
	require.ErrorIs(t, err, ErrInvalidPayment)

	input = saleInput()
	input.PaidAmount = math.NaN()
	_, err = f.recorder.Record(ctx, input)
	require.ErrorIs(t, err, ErrInvalidPayment)

	input = saleInput()
	input.PaymentMethod = PaymentMethod("barter")
	_, err = f.recorder.Record(ctx, input)
	require.ErrorIs(t, err, ErrInvalidPayment)
}

func TestRecordSkipsPaymentRowWhenUnpaid(t *testing.T) {
	f := newFixture(t)

	input := saleInput()
	input.PaidAmount = 0
	doc, err := f.recorder.Record(context.Background(), input)
	require.NoError(t, err)

	require.Empty(t, f.repo.payments[doc.Number])
	require.Equal(t, doc.NetTotal, doc.Outstanding)
}

func TestRecordDerivesDiscountFromPercentage(t *testing.T) {
	f := newFixture(t)

	input := saleInput()
	input.Discount = Discount{Percentage: 10}
	doc, err := f.recorder.Record(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, 50.0, doc.Discount.Amount)
	require.Equal(t, 540.0, doc.NetTotal)
	require.Equal(t, 140.0, doc.Outstanding)
}

func TestRecordRollsBackOnLineItemFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failItems = true

	_, err := f.recorder.Record(context.Background(), saleInput())
	require.ErrorIs(t, err, ErrPartialWrite)

	require.Empty(t, f.repo.docs)
	require.Empty(t, f.repo.items)
	require.Equal(t, 100.0, f.stock.qty["PRO0001"])
	require.Zero(t, f.ledger.parties["CUST0001"].TotalAmount)
	require.Contains(t, f.audit.actions(), shared.AuditDocumentRolledBack)
}

func TestRecordRollsBackOnShortItemWrite(t *testing.T) {
	f := newFixture(t)
	f.repo.itemsShortfall = 1

	input := saleInput()
	input.Lines = []LineInput{
		{ProductID: "PRO0001", Quantity: 2},
		{ProductID: "PRO0002", Quantity: 1},
	}
	_, err := f.recorder.Record(context.Background(), input)
	require.ErrorIs(t, err, ErrPartialWrite)
	require.Empty(t, f.repo.docs)
	require.Empty(t, f.repo.items)
}

func TestRecordRollsBackOnPaymentFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failPayment = true

	_, err := f.recorder.Record(context.Background(), saleInput())
	require.ErrorIs(t, err, ErrPaymentWrite)

	require.Empty(t, f.repo.docs)
	require.Empty(t, f.repo.payments)
	require.Equal(t, 100.0, f.stock.qty["PRO0001"])
}

func TestRecordRollsBackPartialStockOnFailure(t *testing.T) {
	f := newFixture(t)
	f.stock.failOn = "PRO0002"

	input := saleInput()
	input.Lines = []LineInput{
		{ProductID: "PRO0001", Quantity: 10},
		{ProductID: "PRO0002", Quantity: 5},
	}
	_, err := f.recorder.Record(context.Background(), input)
	require.ErrorIs(t, err, ErrStockAdjust)

	require.Empty(t, f.repo.docs)
	require.Equal(t, 100.0, f.stock.qty["PRO0001"])
	require.Equal(t, 40.0, f.stock.qty["PRO0002"])
	require.Zero(t, f.ledger.parties["CUST0001"].TotalAmount)
}

func TestRecordReversesStockOnLedgerFailure(t *testing.T) {
	f := newFixture(t)
	f.ledger.failApply = true

	_, err := f.recorder.Record(context.Background(), saleInput())
	require.ErrorIs(t, err, ErrLedgerUpdate)

	require.Empty(t, f.repo.docs)
	require.Equal(t, 100.0, f.stock.qty["PRO0001"])
	require.Contains(t, f.audit.actions(), shared.AuditDocumentRolledBack)
}

func TestLedgerAccumulatesAcrossDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.recorder.Record(ctx, saleInput())
	require.NoError(t, err)

	input := saleInput()
	input.Lines = []LineInput{{ProductID: "PRO0002", Quantity: 2}}
	input.PaidAmount = 100
	_, err = f.recorder.Record(ctx, input)
	require.NoError(t, err)

	cust := f.ledger.parties["CUST0001"]
	// 590 from the first sale, 240 + 12 tax from the second.
	require.InDelta(t, 842.0, cust.TotalAmount, 1e-9)
	require.InDelta(t, 500.0, cust.TotalPaid, 1e-9)
	require.InDelta(t, cust.TotalAmount-cust.TotalPaid, cust.TotalDue, 1e-9)
}

func TestGetDocumentReturnsHeaderAndLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	recorded, err := f.recorder.Record(ctx, saleInput())
	require.NoError(t, err)

	doc, items, err := f.recorder.GetDocument(ctx, KindSale, recorded.Number)
	require.NoError(t, err)
	require.Equal(t, recorded.Number, doc.Number)
	require.Len(t, items, 1)

	_, _, err = f.recorder.GetDocument(ctx, KindPurchase, recorded.Number)
	require.ErrorIs(t, err, ErrNotFound)
}
