package ledger

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/groupledger/groupledger/internal/shared"
)

type Handler struct {
	logger         *slog.Logger
	service        *Service
	maxUploadBytes int64
}

func NewHandler(logger *slog.Logger, service *Service, maxUploadBytes int64) *Handler {
	return &Handler{logger: logger, service: service, maxUploadBytes: maxUploadBytes}
}

// MountRoutes attaches the ledger endpoints directly under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/ledger/upload", h.upload)
	r.Get("/ledger/upload/{operationID}/progress", h.uploadProgress)
	r.Post("/ledger/sync", h.sync)
	r.Delete("/ledger/unmapped", h.pruneUnmapped)
	r.Delete("/ledger", h.purge)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "invalid multipart payload", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, "file field is required", nil)
		return
	}
	defer file.Close()

	req := UploadRequest{
		EntityCode: r.FormValue("entity_code"),
		Month:      r.FormValue("month"),
		YearLabel:  r.FormValue("financial_year"),
		File:       file,
		FileName:   header.Filename,
	}
	if flag := strings.TrimSpace(r.FormValue("new_company")); flag != "" {
		v := strings.EqualFold(flag, "true") || flag == "1"
		req.NewCompany = &v
	}
	if h.service.progress != nil {
		if id, err := h.service.progress.Begin(r.Context(), "uploading trial balance"); err == nil {
			req.OperationID = id
		} else {
			h.logger.Warn("begin upload progress", slog.Any("error", err))
		}
	}

	summary, err := h.service.Upload(r.Context(), req)
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "trial balance uploaded", summary)
}

func (h *Handler) uploadProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Progress(r.Context(), chi.URLParam(r, "operationID"))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "progress retrieved", p)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	if particular := strings.TrimSpace(r.URL.Query().Get("particular")); particular != "" {
		out, err := h.service.SyncParticular(r.Context(), particular)
		if err != nil {
			shared.RespondError(w, h.logger, err)
			return
		}
		shared.RespondJSON(w, http.StatusOK, "mapping synced", out)
		return
	}
	out, err := h.service.SyncCategories(r.Context())
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "categories synced", out)
}

func (h *Handler) pruneUnmapped(w http.ResponseWriter, r *http.Request) {
	pruned, err := h.service.PruneUnmapped(r.Context())
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "unmapped rows pruned", map[string]int64{"pruned": pruned})
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.Purge(r.Context())
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "ledger purged", map[string]int64{"deleted": removed})
}
