package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Younus004/wisdom/common/httputil"
	"github.com/Younus004/wisdom/internal/validation"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service   *Service
	validator *validation.Validator
	logger    *slog.Logger
	cookie    CookieOptions
}

func NewHandler(service *Service, v *validation.Validator, logger *slog.Logger, cookie CookieOptions) *Handler {
	if cookie.MaxAge == 0 {
		cookie.MaxAge = int(service.tokens.TTL().Seconds())
	}
	return &Handler{
		service:   service,
		validator: v,
		logger:    logger,
		cookie:    cookie,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/login", h.Login)
	router.Post("/auth/logout", h.Logout)
}

// Login authenticates the front office operator
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.logger.WarnContext(r.Context(), "login rejected", "login", req.Login)
		}
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "operator logged in", "login", resp.Login)

	SetAuthCookie(w, resp.AccessToken, h.cookie)
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearAuthCookie(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}
