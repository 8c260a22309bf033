package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arcadia-retail/arcadia/internal/trading"
)

// DocumentSource reads recorded documents for rendering.
type DocumentSource interface {
	GetDocument(ctx context.Context, kind trading.Kind, number string) (*trading.Document, []trading.LineItem, error)
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} {{.Doc.Number}}</title>
<style>
body { font-family: sans-serif; font-size: 13px; color: #222; }
h1 { font-size: 18px; margin-bottom: 2px; }
table { width: 100%; border-collapse: collapse; margin-top: 12px; }
th, td { border: 1px solid #999; padding: 5px 8px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.totals td { border: none; }
.muted { color: #666; }
</style>
</head>
<body>
<h1>{{.Title}} {{.Doc.Number}}</h1>
<p class="muted">Party: {{.Doc.PartyID}} &middot; Date: {{.Doc.Date.Format "2006-01-02"}}</p>
<table>
<tr><th>Product</th><th>Qty</th><th>Rate</th><th>Tax</th><th>Total</th></tr>
{{range .Items}}
<tr>
<td>{{.ProductID}}</td>
<td>{{printf "%.2f" .Quantity}}</td>
<td>{{printf "%.2f" .Price.Retail}}</td>
<td>{{printf "%.2f" .Tax.Amount}}</td>
<td>{{printf "%.2f" .Total}}</td>
</tr>
{{end}}
</table>
<table class="totals">
<tr><td>Subtotal</td><td>{{printf "%.2f" .Doc.Subtotal}}</td></tr>
<tr><td>Tax</td><td>{{printf "%.2f" .Doc.TaxTotal}}</td></tr>
{{if gt .Doc.Discount.Amount 0.0}}<tr><td>Discount</td><td>-{{printf "%.2f" .Doc.Discount.Amount}}</td></tr>{{end}}
<tr><td><strong>Net total</strong></td><td><strong>{{printf "%.2f" .Doc.NetTotal}}</strong></td></tr>
<tr><td>Paid</td><td>{{printf "%.2f" .Doc.Paid}}</td></tr>
<tr><td>Outstanding</td><td>{{printf "%.2f" .Doc.Outstanding}}</td></tr>
</table>
</body>
</html>`))

type invoiceData struct {
	Title string
	Doc   *trading.Document
	Items []trading.LineItem
}

// RenderInvoiceHTML builds the printable HTML for a recorded document.
func RenderInvoiceHTML(doc *trading.Document, items []trading.LineItem) (string, error) {
	title := "Purchase Invoice"
	if doc.Kind == trading.KindSale {
		title = "Sales Invoice"
	}
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, invoiceData{Title: title, Doc: doc, Items: items}); err != nil {
		return "", fmt.Errorf("report: render invoice: %w", err)
	}
	return buf.String(), nil
}

// Handler serves document PDFs.
type Handler struct {
	client *Client
	source DocumentSource
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, source DocumentSource, logger *slog.Logger) *Handler {
	return &Handler{client: client, source: source, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/sales/{number}", h.invoice(trading.KindSale))
	r.Get("/purchases/{number}", h.invoice(trading.KindPurchase))
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) invoice(kind trading.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")
		doc, items, err := h.source.GetDocument(r.Context(), kind, number)
		if err != nil {
			if errors.Is(err, trading.ErrNotFound) {
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			h.logger.Error("load document for pdf", slog.String("number", number), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		html, err := RenderInvoiceHTML(doc, items)
		if err != nil {
			h.logger.Error("render invoice html", slog.String("number", number), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		pdf, err := h.client.RenderHTML(r.Context(), html)
		if err != nil {
			h.logger.Error("render invoice pdf", slog.String("number", number), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", number))
		_, _ = w.Write(pdf)
	}
}
