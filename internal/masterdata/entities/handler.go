package entities

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/groupledger/groupledger/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/descendants", h.descendants)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "entities retrieved", list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid entity id", nil)
		return
	}
	entity, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "entity retrieved", entity)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var entity Entity
	if err := shared.DecodeJSON(r, &entity); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	created, err := h.service.Create(r.Context(), entity)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, "entity created", created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid entity id", nil)
		return
	}
	var entity Entity
	if err := shared.DecodeJSON(r, &entity); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.service.Update(r.Context(), id, entity); err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "entity updated", nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid entity id", nil)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "entity deleted", nil)
}

func (h *Handler) descendants(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid entity id", nil)
		return
	}
	subtree, err := h.service.Descendants(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "descendants retrieved", subtree)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		shared.RespondJSON(w, http.StatusNotFound, "entity not found", nil)
	case errors.Is(err, ErrDuplicateCode):
		shared.RespondJSON(w, http.StatusConflict, "entity code already exists", nil)
	case errors.Is(err, ErrSelfParent), errors.Is(err, ErrHierarchyCycle):
		shared.RespondJSON(w, http.StatusBadRequest, err.Error(), nil)
	default:
		shared.RespondError(w, h.logger, err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
