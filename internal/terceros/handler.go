package terceros

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/contalibre/contalibre/internal/platform/httpx"
	"github.com/contalibre/contalibre/internal/sanitize"
)

// Handler exposes the /api/terceros endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	sanitizer sanitize.Sanitizer
	validate  *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sanitizer sanitize.Sanitizer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		sanitizer: sanitizer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers the party routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/activos", h.listActive)
	r.Get("/inactivos", h.listInactive)
	r.Get("/search", h.search)
	r.Get("/tipo-documento/{tipo}", h.listByDocumentType)
	r.Get("/con-transacciones", h.listWithTransactions)
	r.Get("/{id}", h.get)
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Put("/{id}/activar", h.activate)
	r.Put("/{id}/desactivar", h.deactivate)
	r.Delete("/{id}", h.remove)
}

type partyDTO struct {
	ID              int64  `json:"id"`
	Nombre          string `json:"nombre"`
	TipoDocumento   string `json:"tipoDocumento"`
	NumeroDocumento string `json:"numeroDocumento"`
	Email           string `json:"email"`
	Telefono        string `json:"telefono"`
	Direccion       string `json:"direccion"`
	Activo          bool   `json:"activo"`
}

type partyRequest struct {
	Nombre          string `json:"nombre" validate:"required,max=200"`
	TipoDocumento   string `json:"tipoDocumento" validate:"required"`
	NumeroDocumento string `json:"numeroDocumento" validate:"required,max=20"`
	Email           string `json:"email" validate:"omitempty,email,max=100"`
	Telefono        string `json:"telefono" validate:"omitempty,max=20"`
	Direccion       string `json:"direccion" validate:"omitempty,max=300"`
}

func toPartyDTO(p Party) partyDTO {
	return partyDTO{
		ID:              p.ID,
		Nombre:          p.Name,
		TipoDocumento:   string(p.DocumentType),
		NumeroDocumento: p.DocumentNumber,
		Email:           p.Email,
		Telefono:        p.Phone,
		Direccion:       p.Address,
		Activo:          p.Active,
	}
}

func toPartyDTOs(parties []Party) []partyDTO {
	out := make([]partyDTO, 0, len(parties))
	for _, p := range parties {
		out = append(out, toPartyDTO(p))
	}
	return out
}

// toInput applies the sanitizer to the free-text fields after the injection
// gate has passed. Document number and phone are format-constrained already.
func (h *Handler) toInput(req partyRequest) (PartyInput, error) {
	t, err := ParseDocumentType(req.TipoDocumento)
	if err != nil {
		return PartyInput{}, err
	}
	return PartyInput{
		Name:           h.sanitizer.Sanitize(req.Nombre),
		DocumentType:   t,
		DocumentNumber: req.NumeroDocumento,
		Email:          h.sanitizer.Sanitize(req.Email),
		Phone:          req.Telefono,
		Address:        h.sanitizer.Sanitize(req.Direccion),
	}, nil
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (partyRequest, bool) {
	var req partyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return partyRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return partyRequest{}, false
	}
	for _, field := range []string{req.Nombre, req.Email, req.Direccion} {
		if !h.sanitizer.IsSafe(field) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "input contains unsafe content")
			return partyRequest{}, false
		}
	}
	return req, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	parties, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, "list parties", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartyDTOs(parties))
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	h.listByActive(w, r, true)
}

func (h *Handler) listInactive(w http.ResponseWriter, r *http.Request) {
	h.listByActive(w, r, false)
}

func (h *Handler) listByActive(w http.ResponseWriter, r *http.Request, active bool) {
	parties, err := h.service.ListByActive(r.Context(), active)
	if err != nil {
		h.respondError(w, "list parties by state", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartyDTOs(parties))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.partyID(w, r)
	if !ok {
		return
	}
	party, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartyDTO(party))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	in, err := h.toInput(req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	party, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.respondError(w, "create party", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPartyDTO(party))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.partyID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	in, err := h.toInput(req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	party, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.respondError(w, "update party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartyDTO(party))
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := h.partyID(w, r)
	if !ok {
		return
	}
	var (
		party Party
		err   error
	)
	if active {
		party, err = h.service.Activate(r.Context(), id)
	} else {
		party, err = h.service.Deactivate(r.Context(), id)
	}
	if err != nil {
		h.respondError(w, "toggle party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartyDTO(party))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.partyID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete party", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if !h.sanitizer.IsSafe(q) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "query contains unsafe content")
		return
	}
	parties, err := h.service.Search(r.Context(), h.sanitizer.Sanitize(q))
	if err != nil {
		h.respondError(w, "search parties", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartyDTOs(parties))
}

func (h *Handler) listByDocumentType(w http.ResponseWriter, r *http.Request) {
	parties, err := h.service.ListByDocumentType(r.Context(), chi.URLParam(r, "tipo"))
	if err != nil {
		h.respondError(w, "list parties by document type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartyDTOs(parties))
}

func (h *Handler) listWithTransactions(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("fechaInicio"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fechaInicio, expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("fechaFin"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fechaFin, expected YYYY-MM-DD")
		return
	}
	parties, err := h.service.ListWithTransactionsInRange(r.Context(), start, end)
	if err != nil {
		h.respondError(w, "list parties with transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartyDTOs(parties))
}

func (h *Handler) partyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid party id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrPartyNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateDocument):
		httpx.Problem(w, http.StatusConflict, "Duplicate Document", err.Error())
	case errors.Is(err, ErrHasTransactions):
		httpx.Problem(w, http.StatusConflict, "Party In Use", err.Error())
	case errors.Is(err, ErrInvalidDocumentType), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
