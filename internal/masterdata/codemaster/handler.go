package codemaster

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/groupledger/groupledger/internal/shared"
)

type Handler struct {
	logger         *slog.Logger
	service        *Service
	progress       *shared.ProgressStore
	maxUploadBytes int64
}

func NewHandler(logger *slog.Logger, service *Service, progress *shared.ProgressStore, maxUploadBytes int64) *Handler {
	return &Handler{logger: logger, service: service, progress: progress, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.upsert)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Delete("/", h.deleteAll)
	r.Post("/upload", h.bulkUpload)
	r.Get("/upload/{operationID}/progress", h.uploadProgress)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "mappings retrieved", list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid mapping id", nil)
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "mapping retrieved", m)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var m Mapping
	if err := shared.DecodeJSON(r, &m); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	saved, created, err := h.service.Upsert(r.Context(), m)
	if err != nil {
		h.respondError(w, err)
		return
	}
	status := http.StatusOK
	message := "mapping updated"
	if created {
		status = http.StatusCreated
		message = "mapping created"
	}
	shared.RespondJSON(w, status, message, saved)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid mapping id", nil)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "mapping deleted", nil)
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.DeleteAll(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "mappings deleted", map[string]int64{"deleted": count})
}

func (h *Handler) bulkUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid multipart payload", nil)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "file field is required", nil)
		return
	}
	defer file.Close()

	operationID := ""
	if h.progress != nil {
		if id, err := h.progress.Begin(r.Context(), "saving mappings"); err == nil {
			operationID = id
		} else {
			h.logger.Warn("begin upload progress", slog.Any("error", err))
		}
	}

	result, err := h.service.BulkUpload(r.Context(), file, operationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "mappings uploaded", result)
}

func (h *Handler) uploadProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.progress.Get(r.Context(), chi.URLParam(r, "operationID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "progress retrieved", p)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		shared.RespondJSON(w, http.StatusNotFound, "mapping not found", nil)
		return
	}
	shared.RespondError(w, h.logger, err)
}
