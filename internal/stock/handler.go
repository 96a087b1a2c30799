package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/platform/httpx"
)

// ServicePort is the subset of Service used by the HTTP handler.
type ServicePort interface {
	Cardex(ctx context.Context, q CardexQuery) (Statement, error)
	Valuation(ctx context.Context, q ValuationQuery) (ValuationReport, error)
	Summary(ctx context.Context, q ValuationQuery) ([]SummaryRow, error)
	NearExpiry(ctx context.Context, days int) ([]ExpiringBatch, error)
	Reconcile(ctx context.Context, productID string) (ReconcileReport, error)
	Invalidate(ctx context.Context, productID string) error
}

// Handler wires HTTP endpoints for stock ledger queries.
type Handler struct {
	logger    *slog.Logger
	service   ServicePort
	validator *validator.Validate
	loc       *time.Location
}

// NewHandler constructs the stock handler. Dates in query strings are read in loc.
func NewHandler(logger *slog.Logger, service ServicePort, loc *time.Location) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), loc: loc}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{productID}/cardex", h.handleCardex)
	r.Get("/products/{productID}/reconcile", h.handleReconcile)
	r.Post("/products/{productID}/invalidate", h.handleInvalidate)
	r.Get("/valuation", h.handleValuation)
	r.Get("/summary", h.handleSummary)
	r.Get("/near-expiry", h.handleNearExpiry)
}

type cardexParams struct {
	ProductID string `validate:"required,max=64"`
	Batch     string `validate:"max=64"`
	From      string `validate:"omitempty,datetime=2006-01-02"`
	To        string `validate:"omitempty,datetime=2006-01-02"`
}

type listParams struct {
	Company string `validate:"max=128"`
	Search  string `validate:"max=128"`
}

type expiryParams struct {
	Days int `validate:"gte=0,lte=3650"`
}

func (h *Handler) handleCardex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := cardexParams{
		ProductID: chi.URLParam(r, "productID"),
		Batch:     strings.TrimSpace(q.Get("batch")),
		From:      strings.TrimSpace(q.Get("from")),
		To:        strings.TrimSpace(q.Get("to")),
	}
	if !h.validate(w, params) {
		return
	}
	query := CardexQuery{ProductID: params.ProductID, BatchNumber: params.Batch}
	if params.From != "" {
		query.From, _ = time.ParseInLocation("2006-01-02", params.From, h.loc)
	}
	if params.To != "" {
		query.To, _ = time.ParseInLocation("2006-01-02", params.To, h.loc)
	}
	st, err := h.service.Cardex(r.Context(), query)
	if err != nil {
		h.respondError(w, "build cardex", err)
		return
	}
	h.logger.Info("built cardex",
		slog.String("product_id", params.ProductID),
		slog.String("batch", params.Batch),
		slog.Int("rows", len(st.Rows)))
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if !h.validate(w, cardexParams{ProductID: productID}) {
		return
	}
	report, err := h.service.Reconcile(r.Context(), productID)
	if err != nil {
		h.respondError(w, "reconcile stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if !h.validate(w, cardexParams{ProductID: productID}) {
		return
	}
	if err := h.service.Invalidate(r.Context(), productID); err != nil {
		h.respondError(w, "invalidate stock cache", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	params, ok := h.listParams(w, r)
	if !ok {
		return
	}
	report, err := h.service.Valuation(r.Context(), ValuationQuery{Company: params.Company, Search: params.Search})
	if err != nil {
		h.respondError(w, "valuate stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	params, ok := h.listParams(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Summary(r.Context(), ValuationQuery{Company: params.Company, Search: params.Search})
	if err != nil {
		h.respondError(w, "summarize stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) handleNearExpiry(w http.ResponseWriter, r *http.Request) {
	var params expiryParams
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "days: must be an integer")
			return
		}
		params.Days = days
	}
	if !h.validate(w, params) {
		return
	}
	rows, err := h.service.NearExpiry(r.Context(), params.Days)
	if err != nil {
		h.respondError(w, "list near expiry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) listParams(w http.ResponseWriter, r *http.Request) (listParams, bool) {
	q := r.URL.Query()
	params := listParams{Company: strings.TrimSpace(q.Get("company")), Search: strings.TrimSpace(q.Get("q"))}
	return params, h.validate(w, params)
}

func (h *Handler) validate(w http.ResponseWriter, params any) bool {
	err := h.validator.Struct(params)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]string, 0, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			details = append(details, fmt.Sprintf("%s: failed %s", strings.ToLower(fieldErr.Field()), fieldErr.Tag()))
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", strings.Join(details, "; "))
		return false
	}
	httpx.RespondError(w, err)
	return false
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case IsNotFound(err):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrInvalidWindow):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, ErrStoreNotReady):
		h.logger.Warn(action, slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err))
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
