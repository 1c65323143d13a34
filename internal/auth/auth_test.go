package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/auth"
	"github.com/Younus004/wisdom/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (chi.Router, *auth.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	svc, err := auth.NewService(auth.Credentials{Login: "frontdesk", Password: "s3cret-pass"},
		auth.NewTokenIssuer("test-secret-key-for-testing", time.Hour))
	require.NoError(t, err)

	router := chi.NewRouter()
	auth.NewHandler(svc, validation.New(), logger, auth.CookieOptions{}).RegisterRoutes(router)
	router.With(auth.Middleware(svc, logger)).Get("/api/whoami", func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireFrontOffice(r.Context()); err != nil {
			http.Error(w, err.Error(), apperr.HTTPStatus(err))
			return
		}
		p, _ := auth.PrincipalFrom(r.Context())
		w.Write([]byte(p.Login))
	})
	return router, svc
}

func login(t *testing.T, router http.Handler, user, pass string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"login": user, "password": pass})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthHandler(t *testing.T) {
	router, _ := setupRouter(t)

	t.Run("Login_Success_SetsCookie", func(t *testing.T) {
		w := login(t, router, "frontdesk", "s3cret-pass")
		require.Equal(t, http.StatusOK, w.Code)

		var resp auth.LoginResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, auth.RoleFrontOffice, resp.Role)

		var found bool
		for _, c := range w.Result().Cookies() {
			if c.Name == "token" {
				found = true
				assert.True(t, c.HttpOnly)
				assert.Equal(t, resp.AccessToken, c.Value)
			}
		}
		assert.True(t, found, "auth cookie should be set")
	})

	t.Run("Login_WrongPassword", func(t *testing.T) {
		w := login(t, router, "frontdesk", "nope")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Login_MissingFields", func(t *testing.T) {
		w := login(t, router, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Protected_WithCookie", func(t *testing.T) {
		lw := login(t, router, "frontdesk", "s3cret-pass")
		req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
		for _, c := range lw.Result().Cookies() {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "frontdesk", w.Body.String())
	})

	t.Run("Protected_WithBearer", func(t *testing.T) {
		var resp auth.LoginResponse
		require.NoError(t, json.NewDecoder(login(t, router, "frontdesk", "s3cret-pass").Body).Decode(&resp))

		req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Protected_NoToken", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Logout_ClearsCookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})
}

func TestTokenIssuer(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret-a", time.Minute)

	token, err := issuer.Generate(auth.Principal{Login: "frontdesk", Role: auth.RoleFrontOffice})
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		p, err := issuer.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, auth.Principal{Login: "frontdesk", Role: auth.RoleFrontOffice}, p)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := auth.NewTokenIssuer("secret-b", time.Minute).Validate(token)
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Validate("not-a-jwt")
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestRequireFrontOffice(t *testing.T) {
	ctx := context.Background()

	require.ErrorIs(t, auth.RequireFrontOffice(ctx), apperr.ErrUnauthorized)

	other := auth.WithPrincipal(ctx, auth.Principal{Login: "teacher1", Role: "Teacher"})
	require.ErrorIs(t, auth.RequireFrontOffice(other), apperr.ErrForbidden)

	require.NoError(t, auth.RequireFrontOffice(auth.FrontOffice(ctx, "frontdesk")))
}
