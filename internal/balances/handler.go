package balances

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contalibre/contalibre/internal/ledger"
	"github.com/contalibre/contalibre/internal/platform/httpx"
)

// Handler exposes the /api/saldos endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the balance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{cuentaId}", h.get)
	r.Get("/{cuentaId}/valor", h.value)
	r.Get("/{cuentaId}/hasta-fecha", h.valueAsOf)
	r.Get("/{cuentaId}/validar-saldo-negativo", h.allowsNegative)
	r.Get("/{cuentaId}/validar-activa", h.isActive)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListAll(r.Context())
	if err != nil {
		h.respondError(w, "list balances", err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) value(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	value, err := h.service.Value(r.Context(), id)
	if err != nil {
		h.respondError(w, "get balance value", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"saldo": value.StringFixed(2)})
}

func (h *Handler) valueAsOf(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("fecha"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fecha, expected YYYY-MM-DD")
		return
	}
	value, err := h.service.ValueAsOf(r.Context(), id, date)
	if err != nil {
		h.respondError(w, "get balance as of date", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"saldo": value.StringFixed(2)})
}

func (h *Handler) allowsNegative(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	allowed, err := h.service.AllowsNegative(r.Context(), id)
	if err != nil {
		h.respondError(w, "check negative balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"permiteSaldoNegativo": allowed})
}

func (h *Handler) isActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	active, err := h.service.IsActive(r.Context(), id)
	if err != nil {
		h.respondError(w, "check account active", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"activa": active})
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "cuentaId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
