package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arcadia-retail/arcadia/internal/platform/httpx"
	"github.com/arcadia-retail/arcadia/internal/shared"
)

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
}

type createProductRequest struct {
	Name           string  `json:"product_name" validate:"required,min=3,max=100"`
	Code           string  `json:"product_code" validate:"required"`
	Unit           int     `json:"unit" validate:"required"`
	Category       int     `json:"category" validate:"required"`
	Brand          int     `json:"brand"`
	TaxID          int     `json:"tax" validate:"required"`
	HSNSACCode     string  `json:"hsn_sac_code" validate:"required"`
	SupplierID     string  `json:"supplier" validate:"required"`
	MRP            float64 `json:"mrp" validate:"gte=0"`
	RetailPrice    float64 `json:"retailsales_price" validate:"gte=0"`
	PurchasePrice  float64 `json:"purchasesale_price" validate:"gte=0"`
	WholesalePrice float64 `json:"wholesale_price" validate:"gte=0"`
	StockQty       float64 `json:"opening_stock_qty" validate:"gte=0"`
	MinStockQty    float64 `json:"min_stock_qty" validate:"gte=0"`
	StoreLocation  string  `json:"store_location"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	product, err := h.service.CreateProduct(r.Context(), CreateProductInput{
		Name:           req.Name,
		Code:           req.Code,
		Unit:           req.Unit,
		Category:       req.Category,
		Brand:          req.Brand,
		TaxID:          req.TaxID,
		HSNSACCode:     req.HSNSACCode,
		SupplierID:     req.SupplierID,
		MRP:            req.MRP,
		RetailPrice:    req.RetailPrice,
		PurchasePrice:  req.PurchasePrice,
		WholesalePrice: req.WholesalePrice,
		StockQty:       req.StockQty,
		MinStockQty:    req.MinStockQty,
		StoreLocation:  req.StoreLocation,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "product code or name already exists")
			return
		}
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
			return
		}
		h.logger.Error("get product", slog.String("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

type listProductsResponse struct {
	Products   []Product         `json:"products"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filter := ListFilter{
		Search:  r.URL.Query().Get("search"),
		Page:    page,
		PerPage: perPage,
	}

	products, total, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, listProductsResponse{
		Products:   products,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}
