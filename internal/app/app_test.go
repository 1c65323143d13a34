package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Younus004/wisdom/internal/app"
	"github.com/Younus004/wisdom/internal/config"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("AUTH_LOGIN", "frontoffice")
	t.Setenv("AUTH_PASSWORD", "s3cret-pass")
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("SCHOOL_TIMEZONE", "UTC")
	cfg, err := config.LoadFrom("test", t.TempDir())
	require.NoError(t, err)
	return cfg
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func (c *client) do(method, path string, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func newApp(t *testing.T) (*app.App, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := app.New(context.Background(), testConfig(t), logger,
		app.WithFilesystem(fs),
		app.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a, fs
}

func TestApp_FrontOfficeFlow(t *testing.T) {
	a, fs := newApp(t)
	c := &client{t: t, handler: a.Handler()}

	t.Run("health is public", func(t *testing.T) {
		w := c.do(http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)

		w = c.do(http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("api requires login", func(t *testing.T) {
		w := c.do(http.MethodGet, "/api/students", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := c.do(http.MethodPost, "/auth/login", `{"login":"frontoffice","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	w := c.do(http.MethodPost, "/auth/login", `{"login":"frontoffice","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.AccessToken)
	c.token = login.AccessToken

	w = c.do(http.MethodPost, "/api/students", `{
		"name": "Asha Rao",
		"dob": "2018-06-02",
		"gender": "Female",
		"blood_group": "O+",
		"class": "2",
		"section": "A",
		"father_name": "Ravi Rao",
		"father_mobile": "9876543210",
		"mother_name": "Lata Rao",
		"mother_mobile": "9123456780",
		"address": "12 Lake View, Hyderabad",
		"admission_fee": 3000,
		"school_fee": 6000,
		"book_fee": 1500,
		"discount": 500,
		"paid": 0,
		"payment_mode": "Cash",
		"balance_due_date": "2026-06-30"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var registered struct {
		AdmissionNo string `json:"admission_no"`
		BillNo      int64  `json:"bill_no"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
	assert.Equal(t, "0001", registered.AdmissionNo)
	assert.Equal(t, int64(1001), registered.BillNo)

	w = c.do(http.MethodPost, "/api/students/0001/payments", `{"amount":4000,"mode":"UPI","next_due":"2026-04-10"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var receipt struct {
		ReceiptNo    int64  `json:"receipt_no"`
		DocumentPath string `json:"document_path"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	assert.Equal(t, int64(10001), receipt.ReceiptNo)

	exists, err := afero.Exists(fs, receipt.DocumentPath)
	require.NoError(t, err)
	assert.True(t, exists)

	t.Run("receipt document served", func(t *testing.T) {
		w := c.do(http.MethodGet, "/api/students/0001/receipts/10001/document", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("due list reflects payment", func(t *testing.T) {
		w := c.do(http.MethodGet, "/api/fees/due", "")
		require.Equal(t, http.StatusOK, w.Code)
		var due struct {
			Count       int             `json:"count"`
			Outstanding json.Number     `json:"outstanding"`
			Students    json.RawMessage `json:"students"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &due))
		assert.Equal(t, 1, due.Count)
		assert.Equal(t, "6000", due.Outstanding.String())
	})

	t.Run("enquiry and visitor", func(t *testing.T) {
		w := c.do(http.MethodPost, "/api/enquiries", `{"name":"Kiran","mobile":"9000000001","class_interested":"LKG","source":"Walk-in","lead_temp":"Warm"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = c.do(http.MethodPost, "/api/visitors", `{"name":"Ravi Rao","mobile":"9876543210","purpose":"Collect Child","child_admission_no":"0001"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = c.do(http.MethodGet, "/api/visitors?date=2026-03-10", "")
		require.Equal(t, http.StatusOK, w.Code)
		var visitors []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &visitors))
		require.Len(t, visitors, 1)
		assert.Equal(t, "Asha Rao", visitors[0]["child_name"])
	})
}

func TestNew_InvalidAuthConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Login = ""

	_, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), app.WithFilesystem(afero.NewMemMapFs()))
	require.Error(t, err)
}

func TestNew_UnwritableDocumentDir(t *testing.T) {
	cfg := testConfig(t)
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	_, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), app.WithFilesystem(fs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "receipts archive")
}
