package reporting

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

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
	r.Get("/rows", h.rows)
	r.Get("/rows/export", h.exportRows)
	r.Get("/summary", h.summary)
	r.Get("/consolidation", h.consolidation)
	r.Get("/consolidation/export", h.exportConsolidation)
	r.Get("/fx-gaps", h.fxGaps)
	r.Get("/uploads", h.uploads)
}

func queryFromRequest(r *http.Request) Query {
	q := r.URL.Query()
	subtree := strings.EqualFold(q.Get("subtree"), "true") || q.Get("subtree") == "1"
	return Query{
		EntityCode: q.Get("entity_code"),
		Subtree:    subtree,
		YearLabel:  q.Get("financial_year"),
		Month:      q.Get("month"),
	}
}

func (h *Handler) rows(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Rows(r.Context(), queryFromRequest(r))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "rows retrieved", rows)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), queryFromRequest(r))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "summary retrieved", summary)
}

func (h *Handler) consolidation(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Consolidation(r.Context(), queryFromRequest(r))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "consolidation retrieved", report)
}

func (h *Handler) exportConsolidation(w http.ResponseWriter, r *http.Request) {
	buf, name, err := h.service.ExportConsolidation(r.Context(), queryFromRequest(r))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	h.sendWorkbook(w, buf, name)
}

func (h *Handler) exportRows(w http.ResponseWriter, r *http.Request) {
	buf, name, err := h.service.ExportRows(r.Context(), queryFromRequest(r))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	h.sendWorkbook(w, buf, name)
}

func (h *Handler) sendWorkbook(w http.ResponseWriter, buf *bytes.Buffer, name string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("workbook export write failed", slog.Any("error", err))
	}
}

func (h *Handler) fxGaps(w http.ResponseWriter, r *http.Request) {
	gaps, err := h.service.FxGaps(r.Context())
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "conversion gaps retrieved", gaps)
}

func (h *Handler) uploads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	history, err := h.service.UploadHistory(r.Context(), r.URL.Query().Get("entity_code"), limit)
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, "upload history retrieved", history)
}
