package transactions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/contalibre/contalibre/internal/ledger"
	"github.com/contalibre/contalibre/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// Handler exposes the /api/transacciones endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/search", h.search)
	r.Get("/filtros", h.listWithFilters)
	r.Get("/rango-fechas", h.listByDateRange)
	r.Get("/rango-fechas/count", h.countByDateRange)
	r.Get("/fecha/{fecha}", h.listByDate)
	r.Get("/estado/{estado}", h.listByStatus)
	r.Get("/tercero/{terceroId}", h.listByParty)
	r.Get("/tercero/{terceroId}/count", h.countByParty)
	r.Get("/tercero/{terceroId}/rango-fechas", h.listByPartyAndDateRange)
	r.Get("/{id}", h.get)
	r.Get("/{id}/detalle", h.getWithLines)
	r.Post("/", h.create)
	r.Put("/{id}/estado", h.setStatus)
	r.Put("/{id}/anular", h.void)
	r.Put("/{id}/reactivar", h.reactivate)
	r.Put("/{id}/pendiente", h.markPending)
}

type lineDTO struct {
	ID       int64           `json:"id"`
	CuentaID int64           `json:"cuentaId"`
	Tipo     string          `json:"tipo"`
	Valor    decimal.Decimal `json:"valor"`
}

type transactionDTO struct {
	ID          int64     `json:"id"`
	Fecha       string    `json:"fecha"`
	Descripcion string    `json:"descripcion"`
	TerceroID   int64     `json:"terceroId"`
	Estado      string    `json:"estado"`
	Partidas    []lineDTO `json:"partidas,omitempty"`
}

type lineRequest struct {
	CuentaID int64           `json:"cuentaId"`
	Tipo     string          `json:"tipo"`
	Valor    decimal.Decimal `json:"valor"`
}

type transactionRequest struct {
	Fecha       string        `json:"fecha"`
	Descripcion string        `json:"descripcion"`
	TerceroID   int64         `json:"terceroId"`
	Partidas    []lineRequest `json:"partidas"`
}

type statusRequest struct {
	Estado string `json:"estado"`
}

func toTransactionDTO(t Transaction) transactionDTO {
	dto := transactionDTO{
		ID:          t.ID,
		Fecha:       t.Date.Format(dateLayout),
		Descripcion: t.Description,
		TerceroID:   t.PartyID,
		Estado:      string(t.Status),
	}
	for _, line := range t.Lines {
		dto.Partidas = append(dto.Partidas, lineDTO{
			ID:       line.ID,
			CuentaID: line.AccountID,
			Tipo:     string(line.Kind),
			Valor:    line.Value,
		})
	}
	return dto
}

func toTransactionDTOs(list []Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(list))
	for _, t := range list {
		out = append(out, toTransactionDTO(t))
	}
	return out
}

func (req transactionRequest) toInput() (CreateInput, error) {
	date, err := time.Parse(dateLayout, req.Fecha)
	if err != nil {
		return CreateInput{}, errors.New("invalid fecha, expected YYYY-MM-DD")
	}
	in := CreateInput{
		Date:        date,
		Description: req.Descripcion,
		PartyID:     req.TerceroID,
	}
	for _, line := range req.Partidas {
		in.Lines = append(in.Lines, LineInput{
			AccountID: line.CuentaID,
			Kind:      LineKind(line.Tipo),
			Value:     line.Valor,
		})
	}
	return in, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAll(r.Context())
	if err != nil {
		h.respondError(w, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTOs(list))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTO(t))
}

func (h *Handler) getWithLines(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetWithLines(r.Context(), id)
	if err != nil {
		h.respondError(w, "get transaction detail", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTO(t))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	t, err := h.service.CreateTransaction(r.Context(), in)
	if err != nil {
		h.respondError(w, "create transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionDTO(t))
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	t, err := h.service.SetStatus(r.Context(), id, req.Estado)
	if err != nil {
		h.respondError(w, "set transaction status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTO(t))
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Void, "void transaction")
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reactivate, "reactivate transaction")
}

func (h *Handler) markPending(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkPending, "mark transaction pending")
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (Transaction, error), op string) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	t, err := fn(r.Context(), id)
	if err != nil {
		h.respondError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTO(t))
}

func (h *Handler) listByParty(w http.ResponseWriter, r *http.Request) {
	partyID, ok := h.partyID(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByParty(r.Context(), partyID)
	if err != nil {
		h.respondError(w, "list transactions by party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTOs(list))
}

func (h *Handler) countByParty(w http.ResponseWriter, r *http.Request) {
	partyID, ok := h.partyID(w, r)
	if !ok {
		return
	}
	count, err := h.service.CountByParty(r.Context(), partyID)
	if err != nil {
		h.respondError(w, "count transactions by party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *Handler) listByDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(dateLayout, chi.URLParam(r, "fecha"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fecha, expected YYYY-MM-DD")
		return
	}
	list, err := h.service.ListByDate(r.Context(), date)
	if err != nil {
		h.respondError(w, "list transactions by date", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTOs(list))
}

func (h *Handler) listByDateRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByDateRange(r.Context(), start, end)
	if err != nil {
		h.respondError(w, "list transactions by range", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTOs(list))
}

func (h *Handler) countByDateRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	count, err := h.service.CountByDateRange(r.Context(), start, end)
	if err != nil {
		h.respondError(w, "count transactions by range", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *Handler) listByPartyAndDateRange(w http.ResponseWriter, r *http.Request) {
	partyID, ok := h.partyID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByPartyAndDateRange(r.Context(), partyID, start, end)
	if err != nil {
		h.respondError(w, "list transactions by party and range", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTOs(list))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.SearchByDescription(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, "search transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTOs(list))
}

func (h *Handler) listByStatus(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListByStatus(r.Context(), chi.URLParam(r, "estado"))
	if err != nil {
		h.respondError(w, "list transactions by status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTOs(list))
}

func (h *Handler) listWithFilters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f Filters
	if raw := q.Get("terceroId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid terceroId")
			return
		}
		f.PartyID = &id
	}
	if raw := q.Get("fechaInicio"); raw != "" {
		start, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fechaInicio, expected YYYY-MM-DD")
			return
		}
		f.Start = &start
	}
	if raw := q.Get("fechaFin"); raw != "" {
		end, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fechaFin, expected YYYY-MM-DD")
			return
		}
		f.End = &end
	}
	f.Description = q.Get("descripcion")

	list, err := h.service.ListWithFilters(r.Context(), f)
	if err != nil {
		h.respondError(w, "list transactions with filters", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionDTOs(list))
}

func (h *Handler) transactionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transaction id")
		return 0, false
	}
	return id, true
}

func (h *Handler) partyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "terceroId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid party id")
		return 0, false
	}
	return id, true
}

func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	start, err := time.Parse(dateLayout, r.URL.Query().Get("fechaInicio"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fechaInicio, expected YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("fechaFin"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fechaFin, expected YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var (
		unbalanced *UnbalancedError
		negative   *NegativeBalanceError
	)
	switch {
	case errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrPartyNotFound),
		errors.Is(err, ledger.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &unbalanced),
		errors.As(err, &negative),
		errors.Is(err, ErrTooFewLines),
		errors.Is(err, ErrInvalidLineValue),
		errors.Is(err, ledger.ErrAccountInactive):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidLineKind),
		errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
