package enquiry

import (
	"log/slog"
	"net/http"

	"github.com/Younus004/wisdom/common/httputil"

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
	router.Route("/enquiries", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Post("/{id}/followups", h.AddFollowup)
		r.Get("/{id}/followups", h.History)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	e, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, e)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	enquiries, err := h.service.List(r.Context(), ListFilter{
		ClassInterested: q.Get("class"),
		Status:          q.Get("status"),
		Search:          q.Get("search"),
	})
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, enquiries)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, e)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	e, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, e)
}

func (h *Handler) AddFollowup(w http.ResponseWriter, r *http.Request) {
	var req FollowupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	fu, err := h.service.AddFollowup(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, fu)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, history)
}
