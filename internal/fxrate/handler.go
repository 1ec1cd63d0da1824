package fxrate

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/groupledger/groupledger/internal/shared"
)

var validate = validator.New()

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listLatest)
	r.Post("/", h.createLegacy)
	r.Put("/", h.updateLegacy)
	r.Get("/history/{currency}", h.history)
	r.Get("/entity-rates/{entityCode}", h.entityRates)
	r.Post("/entity-rates", h.upsertEntityRate)
}

func (h *Handler) listLatest(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.ListLatest(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "conversion rates retrieved", rates)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.History(r.Context(), chi.URLParam(r, "currency"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "conversion rate history retrieved", rates)
}

func (h *Handler) createLegacy(w http.ResponseWriter, r *http.Request) {
	var rate LegacyRate
	if err := shared.DecodeJSON(r, &rate); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	saved, err := h.service.CreateLegacy(r.Context(), rate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, "conversion rate saved", saved)
}

func (h *Handler) updateLegacy(w http.ResponseWriter, r *http.Request) {
	var rate LegacyRate
	if err := shared.DecodeJSON(r, &rate); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	saved, err := h.service.UpdateLegacy(r.Context(), rate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "conversion rate updated", saved)
}

func (h *Handler) entityRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.EntityRates(r.Context(), chi.URLParam(r, "entityCode"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "entity rates retrieved", rates)
}

type entityRateRequest struct {
	EntityCode  string   `json:"entity_code" validate:"required"`
	Currency    string   `json:"currency" validate:"required,len=3,alpha"`
	YearLabel   string   `json:"financial_year" validate:"required"`
	OpeningRate *float64 `json:"opening_rate" validate:"omitempty,gt=0"`
	ClosingRate *float64 `json:"closing_rate" validate:"omitempty,gt=0"`
}

func (h *Handler) upsertEntityRate(w http.ResponseWriter, r *http.Request) {
	var req entityRateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	saved, err := h.service.UpsertEntityRate(r.Context(), EntityRate{
		EntityCode:  req.EntityCode,
		Currency:    req.Currency,
		YearLabel:   req.YearLabel,
		OpeningRate: req.OpeningRate,
		ClosingRate: req.ClosingRate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "entity rate saved", saved)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		shared.RespondJSON(w, http.StatusNotFound, "conversion rate not found", nil)
		return
	}
	shared.RespondError(w, h.logger, err)
}
