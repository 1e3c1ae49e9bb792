package documents

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/guard"
	"github.com/odyssey-erp/rowguard/internal/platform/httpx"
)

var errNoUnit = errors.New("documents: no unit of work in request context")

// Handler exposes documents and their grants over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/grants", h.listGrants)
	r.Post("/{id}/grants", h.createGrant)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	u, rights, err := h.readParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	docs, err := h.service.List(r.Context(), u, rights)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	httpx.JSON(w, http.StatusOK, docs)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	u, rights, err := h.readParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := h.service.Get(r.Context(), u, id, rights)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	u, err := unitOf(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in DocumentInput
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := h.service.Create(r.Context(), u, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	u, err := unitOf(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in DocumentInput
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := h.service.Update(r.Context(), u, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	u, err := unitOf(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), u, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	u, err := unitOf(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	grants, err := h.service.ListGrants(r.Context(), u, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if grants == nil {
		grants = []Grant{}
	}
	httpx.JSON(w, http.StatusOK, grants)
}

func (h *Handler) createGrant(w http.ResponseWriter, r *http.Request) {
	u, err := unitOf(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in GrantInput
	if err := h.decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.service.AddGrant(r.Context(), u, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, g)
}

func (h *Handler) readParams(r *http.Request) (*guard.Unit, access.Rights, error) {
	u, err := unitOf(r)
	if err != nil {
		return nil, access.None, err
	}
	raw := r.URL.Query().Get("rights")
	if raw == "" {
		return u, access.None, nil
	}
	rights, err := access.ParseRights(raw)
	if err != nil {
		return nil, access.None, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err)
	}
	if rights == access.None {
		return nil, access.None, fmt.Errorf("%w: rights must not be None", httpx.ErrBadRequest)
	}
	return u, rights, nil
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrBadRequest, err)
	}
	if err := h.validator.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNoneGrant):
		err = fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, errNoUnit):
		h.logger.Error("documents: request without unit of work", slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}

func unitOf(r *http.Request) (*guard.Unit, error) {
	u := guard.UnitFromContext(r.Context())
	if u == nil {
		return nil, errNoUnit
	}
	return u, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid document id %q", httpx.ErrBadRequest, chi.URLParam(r, "id"))
	}
	return id, nil
}
