package trading

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arcadia-retail/arcadia/internal/numbering"
	"github.com/arcadia-retail/arcadia/internal/party"
	"github.com/arcadia-retail/arcadia/internal/platform/httpx"
	"github.com/arcadia-retail/arcadia/internal/shared"
)

// Handler wires HTTP endpoints for recording and reading trade documents.
// The same handler serves both purchase and sale routes; the mounted path
// fixes the document kind.
type Handler struct {
	logger    *slog.Logger
	recorder  *Recorder
	validator *validator.Validate
}

// NewHandler constructs a trading handler.
func NewHandler(logger *slog.Logger, recorder *Recorder) *Handler {
	return &Handler{logger: logger, recorder: recorder, validator: validator.New()}
}

// MountPurchaseRoutes registers the purchase document routes.
func (h *Handler) MountPurchaseRoutes(r chi.Router) {
	h.mount(r, KindPurchase)
}

// MountSaleRoutes registers the sale document routes.
func (h *Handler) MountSaleRoutes(r chi.Router) {
	h.mount(r, KindSale)
}

func (h *Handler) mount(r chi.Router, kind Kind) {
	r.Post("/", h.handleRecord(kind))
	r.Get("/", h.handleList(kind))
	r.Get("/{number}", h.handleGet(kind))
}

type lineRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

type recordRequest struct {
	PartyID       string        `json:"party_id" validate:"required"`
	Products      []lineRequest `json:"products" validate:"required,min=1,dive"`
	PaidAmount    float64       `json:"paid_amount" validate:"gte=0"`
	PaymentMethod string        `json:"payment_method"`
	Discount      Discount      `json:"discount"`
	Remarks       string        `json:"remarks" validate:"max=500"`
	DocumentDate  time.Time     `json:"document_date"`
}

type documentResponse struct {
	Document *Document  `json:"document"`
	Items    []LineItem `json:"items,omitempty"`
}

func (h *Handler) handleRecord(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}

		lines := make([]LineInput, 0, len(req.Products))
		for _, p := range req.Products {
			lines = append(lines, LineInput{ProductID: p.ProductID, Quantity: p.Quantity})
		}
		doc, err := h.recorder.Record(r.Context(), RecordInput{
			Kind:          kind,
			PartyID:       req.PartyID,
			Lines:         lines,
			PaidAmount:    req.PaidAmount,
			PaymentMethod: PaymentMethod(req.PaymentMethod),
			Discount:      req.Discount,
			Remarks:       req.Remarks,
			Date:          req.DocumentDate,
		})
		if err != nil {
			h.respondRecordError(w, kind, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, documentResponse{Document: doc})
	}
}

func (h *Handler) respondRecordError(w http.ResponseWriter, kind Kind, err error) {
	switch {
	case errors.Is(err, ErrPartyNotFound), errors.Is(err, party.ErrNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "party not found or inactive")
	case errors.Is(err, ErrInvalidLineItems):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "line items must name products with positive quantities")
	case errors.Is(err, ErrProductsUnavailable):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "one or more products are unavailable for sale")
	case errors.Is(err, ErrInvalidPayment):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "paid amount must be a non-negative number")
	case errors.Is(err, numbering.ErrSeriesExhausted):
		httpx.Problem(w, http.StatusServiceUnavailable, "Busy", "could not issue a document number, retry shortly")
	default:
		h.logger.Error("record document", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "document recording failed and was rolled back")
	}
}

func (h *Handler) handleGet(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")
		doc, items, err := h.recorder.GetDocument(r.Context(), kind, number)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				httpx.Problem(w, http.StatusNotFound, "Not Found", "document not found")
				return
			}
			h.logger.Error("get document", slog.String("number", number), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, documentResponse{Document: doc, Items: items})
	}
}

type listDocumentsResponse struct {
	Documents  []Document        `json:"documents"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleList(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage := shared.PageParams(r)
		filter := ListFilter{
			Kind:    kind,
			PartyID: r.URL.Query().Get("party_id"),
			Search:  r.URL.Query().Get("search"),
			Page:    page,
			PerPage: perPage,
		}

		docs, total, err := h.recorder.ListDocuments(r.Context(), filter)
		if err != nil {
			h.logger.Error("list documents", slog.String("kind", string(kind)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if docs == nil {
			docs = []Document{}
		}
		httpx.JSON(w, http.StatusOK, listDocumentsResponse{
			Documents:  docs,
			Pagination: shared.NewPagination(page, perPage, total),
		})
	}
}
