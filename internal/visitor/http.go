package visitor

import (
	"log/slog"
	"net/http"

	"github.com/Younus004/wisdom/common/httputil"
	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/datetime"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/visitors", h.Log)
	router.Get("/visitors", h.List)
	router.Post("/visitors/{id}/time-out", h.MarkTimeOut)
}

func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	var req LogRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	v, err := h.service.Log(r.Context(), req)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, v)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{Purpose: q.Get("purpose"), Search: q.Get("search")}
	if raw := q.Get("date"); raw != "" {
		day, err := datetime.Parse(raw)
		if err != nil {
			httputil.RespondWithAppError(w, r, h.logger, apperr.Invalid("date", "date must be YYYY-MM-DD"))
			return
		}
		f.Date = day
	}

	visitors, err := h.service.List(r.Context(), f)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, visitors)
}

func (h *Handler) MarkTimeOut(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.MarkTimeOut(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, v)
}
