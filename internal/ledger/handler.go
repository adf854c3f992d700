package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/contalibre/contalibre/internal/platform/httpx"
)

// Handler exposes the chart of accounts endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the /api/cuentas routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/activas", h.listActive)
	r.Get("/search", h.search)
	r.Get("/search/activas", h.searchActive)
	r.Get("/tipo/{tipo}", h.listByType)
	r.Get("/{id}", h.get)
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Put("/{id}/activar", h.activate)
	r.Put("/{id}/desactivar", h.deactivate)
	r.Delete("/{id}", h.remove)
}

type accountDTO struct {
	ID                   int64  `json:"id"`
	Codigo               string `json:"codigo"`
	Nombre               string `json:"nombre"`
	Tipo                 string `json:"tipo"`
	PermiteSaldoNegativo bool   `json:"permiteSaldoNegativo"`
	Activo               bool   `json:"activo"`
}

type accountRequest struct {
	Codigo               string `json:"codigo"`
	Nombre               string `json:"nombre"`
	Tipo                 string `json:"tipo"`
	PermiteSaldoNegativo bool   `json:"permiteSaldoNegativo"`
	Activo               *bool  `json:"activo"`
}

func toAccountDTO(a Account) accountDTO {
	return accountDTO{
		ID:                   a.ID,
		Codigo:               a.Code,
		Nombre:               a.Name,
		Tipo:                 string(a.Type),
		PermiteSaldoNegativo: a.AllowsNegative,
		Activo:               a.Active,
	}
}

func toAccountDTOs(accounts []Account) []accountDTO {
	out := make([]accountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountDTO(a))
	}
	return out
}

func (req accountRequest) toInput() (AccountInput, error) {
	t, err := ParseAccountType(req.Tipo)
	if err != nil {
		return AccountInput{}, err
	}
	active := true
	if req.Activo != nil {
		active = *req.Activo
	}
	return AccountInput{
		Code:           req.Codigo,
		Name:           req.Nombre,
		Type:           t,
		AllowsNegative: req.PermiteSaldoNegativo,
		Active:         active,
	}, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context(), false)
	if err != nil {
		h.respondError(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountDTOs(accounts))
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context(), true)
	if err != nil {
		h.respondError(w, "list active accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountDTOs(accounts))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountDTO(account))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	account, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.respondError(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountDTO(account))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	account, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.respondError(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountDTO(account))
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var (
		account Account
		err     error
	)
	if active {
		account, err = h.service.Activate(r.Context(), id)
	} else {
		account, err = h.service.Deactivate(r.Context(), id)
	}
	if err != nil {
		h.respondError(w, "toggle account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountDTO(account))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	h.searchWith(w, r, false)
}

func (h *Handler) searchActive(w http.ResponseWriter, r *http.Request) {
	h.searchWith(w, r, true)
}

func (h *Handler) searchWith(w http.ResponseWriter, r *http.Request, onlyActive bool) {
	name := r.URL.Query().Get("nombre")
	accounts, err := h.service.SearchByName(r.Context(), name, onlyActive)
	if err != nil {
		h.respondError(w, "search accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountDTOs(accounts))
}

func (h *Handler) listByType(w http.ResponseWriter, r *http.Request) {
	t, err := ParseAccountType(chi.URLParam(r, "tipo"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	accounts, err := h.service.ListByType(r.Context(), t)
	if err != nil {
		h.respondError(w, "list accounts by type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountDTOs(accounts))
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate Code", err.Error())
	case errors.Is(err, ErrAccountInUse):
		httpx.Problem(w, http.StatusConflict, "Account In Use", err.Error())
	case errors.Is(err, ErrInvalidAccountType), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
