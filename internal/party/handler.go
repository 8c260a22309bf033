package party

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arcadia-retail/arcadia/internal/platform/httpx"
	"github.com/arcadia-retail/arcadia/internal/shared"
)

// Handler wires HTTP endpoints for customers and suppliers.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a party handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountCustomerRoutes registers customer routes.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	h.mount(r, RoleCustomer)
}

// MountSupplierRoutes registers supplier routes.
func (h *Handler) MountSupplierRoutes(r chi.Router) {
	h.mount(r, RoleSupplier)
}

func (h *Handler) mount(r chi.Router, role Role) {
	r.Post("/", h.handleCreate(role))
	r.Get("/", h.handleList(role))
	r.Get("/{id}", h.handleGet)
}

type createPartyRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	GSTIN   string `json:"gstin"`
}

func (h *Handler) handleCreate(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPartyRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}

		p, err := h.service.CreateParty(r.Context(), CreatePartyInput{
			Role:    role,
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Address: req.Address,
			GSTIN:   req.GSTIN,
		})
		if err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				httpx.Problem(w, http.StatusConflict, "Duplicate", "party already exists")
				return
			}
			h.logger.Error("create party", slog.String("role", string(role)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, p)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.service.GetParty(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "party not found")
			return
		}
		h.logger.Error("get party", slog.String("party_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type listPartiesResponse struct {
	Parties    []Party           `json:"parties"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleList(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage := shared.PageParams(r)
		parties, total, err := h.service.ListParties(r.Context(), ListFilter{
			Role:    role,
			Search:  r.URL.Query().Get("search"),
			Page:    page,
			PerPage: perPage,
		})
		if err != nil {
			h.logger.Error("list parties", slog.String("role", string(role)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if parties == nil {
			parties = []Party{}
		}
		httpx.JSON(w, http.StatusOK, listPartiesResponse{
			Parties:    parties,
			Pagination: shared.NewPagination(page, perPage, total),
		})
	}
}
