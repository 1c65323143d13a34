package student

import (
	"log/slog"
	"net/http"
	"strconv"

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
	router.Post("/students", h.Register)
	router.Get("/students", h.List)
	router.Get("/students/next-admission-no", h.NextAdmissionNo)
	router.Get("/students/{admissionNo}", h.Get)
	router.Get("/students/{admissionNo}/registration-form", h.RegistrationForm)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	st, err := h.service.Register(r.Context(), req)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, st)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	students, err := h.service.List(r.Context(), ListFilter{
		Class:   q.Get("class"),
		Section: q.Get("section"),
		Status:  q.Get("status"),
		Search:  q.Get("search"),
	})
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	items := make([]ListItem, 0, len(students))
	for _, st := range students {
		items = append(items, NewListItem(st))
	}

	httputil.RespondWithJSON(w, http.StatusOK, items)
}

func (h *Handler) NextAdmissionNo(w http.ResponseWriter, r *http.Request) {
	next, err := h.service.NextAdmissionNo(r.Context())
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"admission_no": next})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), chi.URLParam(r, "admissionNo"))
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, st)
}

func (h *Handler) RegistrationForm(w http.ResponseWriter, r *http.Request) {
	stored, err := h.service.RegistrationForm(r.Context(), chi.URLParam(r, "admissionNo"))
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	f, err := h.service.OpenForm(stored.Name)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	w.Header().Set("X-Document-Created", strconv.FormatBool(stored.Created))
	httputil.ServeDocument(w, r, stored.Name, f, info.ModTime())
}
