package periods

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

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
	r.Get("/current", h.current)
	r.Get("/validate", h.validateDate)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
}

type periodRequest struct {
	Label     string `json:"label"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsActive  *bool  `json:"is_active"`
}

func (req periodRequest) toPeriod() (Period, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return Period{}, err
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return Period{}, err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Period{Label: req.Label, StartDate: start, EndDate: end, IsActive: active}, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	list, err := h.service.List(r.Context(), includeInactive)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "financial years retrieved", list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid period id", nil)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "financial year retrieved", p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	p, err := req.toPeriod()
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "dates must be YYYY-MM-DD", nil)
		return
	}
	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, "financial year created", created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid period id", nil)
		return
	}
	var req periodRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	p, err := req.toPeriod()
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "dates must be YYYY-MM-DD", nil)
		return
	}
	if err := h.service.Update(r.Context(), id, p); err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "financial year updated", nil)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid period id", nil)
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "financial year deactivated", nil)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Current(r.Context(), time.Now().UTC())
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "current financial year", p)
}

func (h *Handler) validateDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "date must be YYYY-MM-DD", nil)
		return
	}
	p, err := h.service.ValidateDate(r.Context(), date, time.Now().UTC())
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "date is within the current financial year", p)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		shared.RespondJSON(w, http.StatusNotFound, "financial year not found", nil)
	case errors.Is(err, ErrDuplicateLabel):
		shared.RespondJSON(w, http.StatusConflict, "financial year label already exists", nil)
	default:
		shared.RespondError(w, h.logger, err)
	}
}
