package visitor_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/auth"
	"github.com/Younus004/wisdom/internal/datetime"
	"github.com/Younus004/wisdom/internal/events"
	"github.com/Younus004/wisdom/internal/metrics"
	"github.com/Younus004/wisdom/internal/store/memstore"
	"github.com/Younus004/wisdom/internal/student"
	"github.com/Younus004/wisdom/internal/validation"
	"github.com/Younus004/wisdom/internal/visitor"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func setup(t *testing.T) (*visitor.Service, *clock, *events.Recorder) {
	t.Helper()
	s := memstore.New()
	students := student.NewRepository(s)
	require.NoError(t, students.Create(context.Background(), &student.Student{
		AdmissionNo: "0007",
		Profile:     student.Profile{Name: "Asha Rao", Class: "2", Section: "A"},
	}))

	clk := &clock{now: time.Date(2026, 4, 1, 8, 15, 0, 0, time.UTC)}
	recorder := &events.Recorder{}
	svc := visitor.NewService(s, students, validation.New(), recorder, metrics.NewMock(),
		slog.New(slog.NewTextHandler(os.Stderr, nil)), clk.Now, time.UTC)
	return svc, clk, recorder
}

func frontOffice() context.Context {
	return auth.FrontOffice(context.Background(), "frontdesk")
}

func TestService_Log(t *testing.T) {
	svc, clk, recorder := setup(t)
	ctx := frontOffice()

	v, err := svc.Log(ctx, visitor.LogRequest{Name: "Electrician", Mobile: "9000000000", Purpose: "Repair", ChildAdmissionNo: "0007"})
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), v.TimeIn)
	assert.Equal(t, datetime.Date{Year: 2026, Month: 4, Day: 1}, v.VisitDate)
	assert.Empty(t, v.ChildAdmissionNo, "child is ignored for other purposes")
	assert.Nil(t, v.TimeOut)
	assert.Equal(t, []string{events.VisitorLogged}, recorder.Types())

	t.Run("collect child", func(t *testing.T) {
		v, err := svc.Log(ctx, visitor.LogRequest{Name: "Ravi Rao", Mobile: "9876543210", Purpose: visitor.PurposeCollectChild, ChildAdmissionNo: "0007"})
		require.NoError(t, err)
		assert.Equal(t, "0007", v.ChildAdmissionNo)
		assert.Equal(t, "Asha Rao", v.ChildName)
	})

	t.Run("details are trimmed", func(t *testing.T) {
		v, err := svc.Log(ctx, visitor.LogRequest{Name: "Courier", Mobile: "9000000009", Purpose: "General Visit", Details: "  parcel for accounts  "})
		require.NoError(t, err)
		assert.Equal(t, "parcel for accounts", v.Details)
	})

	t.Run("collect child without child", func(t *testing.T) {
		_, err := svc.Log(ctx, visitor.LogRequest{Name: "Ravi Rao", Mobile: "9876543210", Purpose: visitor.PurposeCollectChild})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("collect unknown child", func(t *testing.T) {
		_, err := svc.Log(ctx, visitor.LogRequest{Name: "Ravi Rao", Mobile: "9876543210", Purpose: visitor.PurposeCollectChild, ChildAdmissionNo: "0404"})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("unknown purpose", func(t *testing.T) {
		_, err := svc.Log(ctx, visitor.LogRequest{Name: "Ravi Rao", Mobile: "9876543210", Purpose: "Sightseeing"})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("missing mobile", func(t *testing.T) {
		_, err := svc.Log(ctx, visitor.LogRequest{Name: "Ravi Rao", Purpose: "General Visit"})
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestService_List(t *testing.T) {
	svc, clk, _ := setup(t)
	ctx := frontOffice()

	_, err := svc.Log(ctx, visitor.LogRequest{Name: "Yesterday", Mobile: "9000000001", Purpose: "General Visit"})
	require.NoError(t, err)

	clk.Set(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC))
	_, err = svc.Log(ctx, visitor.LogRequest{Name: "Plumber", Mobile: "9000000002", Purpose: "Repair", Details: "Leaking tap in lab 2"})
	require.NoError(t, err)
	clk.Set(time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC))
	_, err = svc.Log(ctx, visitor.LogRequest{Name: "Lata Rao", Mobile: "9000000003", Purpose: "Meet Principal"})
	require.NoError(t, err)

	names := func(vs []visitor.Visitor) []string {
		out := []string{}
		for _, v := range vs {
			out = append(out, v.Name)
		}
		return out
	}

	tests := []struct {
		name   string
		filter visitor.ListFilter
		want   []string
	}{
		{"today by default", visitor.ListFilter{}, []string{"Lata Rao", "Plumber"}},
		{"explicit day", visitor.ListFilter{Date: datetime.Date{Year: 2026, Month: 4, Day: 1}}, []string{"Yesterday"}},
		{"purpose", visitor.ListFilter{Purpose: "Repair"}, []string{"Plumber"}},
		{"search purpose", visitor.ListFilter{Search: "principal"}, []string{"Lata Rao"}},
		{"search mobile", visitor.ListFilter{Search: "0002"}, []string{"Plumber"}},
		{"search details", visitor.ListFilter{Search: "leaking tap"}, []string{"Plumber"}},
		{"empty day", visitor.ListFilter{Date: datetime.Date{Year: 2026, Month: 1, Day: 1}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs, err := svc.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(vs))
		})
	}
}

func TestService_MarkTimeOut(t *testing.T) {
	svc, clk, recorder := setup(t)
	ctx := frontOffice()

	v, err := svc.Log(ctx, visitor.LogRequest{Name: "Plumber", Mobile: "9000000002", Purpose: "Repair"})
	require.NoError(t, err)

	clk.Set(v.TimeIn.Add(45 * time.Minute))
	out, err := svc.MarkTimeOut(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, out.TimeOut)
	assert.Equal(t, v.TimeIn.Add(45*time.Minute), *out.TimeOut)
	assert.Equal(t, []string{events.VisitorLogged, events.VisitorCheckedOut}, recorder.Types())

	t.Run("second attempt conflicts", func(t *testing.T) {
		_, err := svc.MarkTimeOut(ctx, v.ID)
		require.ErrorIs(t, err, visitor.ErrAlreadyCheckedOut)
		assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))
	})

	t.Run("unknown visitor", func(t *testing.T) {
		_, err := svc.MarkTimeOut(ctx, "missing")
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("clock behind time in", func(t *testing.T) {
		clk.Set(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
		late, err := svc.Log(ctx, visitor.LogRequest{Name: "Courier", Mobile: "9000000004", Purpose: "General Visit"})
		require.NoError(t, err)

		clk.Set(late.TimeIn.Add(-time.Minute))
		out, err := svc.MarkTimeOut(ctx, late.ID)
		require.NoError(t, err)
		assert.Equal(t, late.TimeIn, *out.TimeOut)
	})
}

func TestService_MarkTimeOut_Concurrent(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := frontOffice()

	v, err := svc.Log(ctx, visitor.LogRequest{Name: "Plumber", Mobile: "9000000002", Purpose: "Repair"})
	require.NoError(t, err)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.MarkTimeOut(ctx, v.ID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, visitor.ErrAlreadyCheckedOut):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(attempts-1), conflicts.Load())
}

func TestHandler(t *testing.T) {
	svc, _, _ := setup(t)
	router := chi.NewRouter()
	visitor.NewHandler(svc, slog.New(slog.NewTextHandler(os.Stderr, nil))).RegisterRoutes(router)

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf).WithContext(frontOffice())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/visitors", visitor.LogRequest{Name: "Plumber", Mobile: "9000000002", Purpose: "Repair"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v visitor.Visitor
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))

	t.Run("List", func(t *testing.T) {
		w := do(http.MethodGet, "/visitors?date=2026-04-01", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var list []visitor.Visitor
		require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
		assert.Len(t, list, 1)
	})

	t.Run("List_BadDate", func(t *testing.T) {
		w := do(http.MethodGet, "/visitors?date=01-04-2026", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MarkTimeOut_Once", func(t *testing.T) {
		w := do(http.MethodPost, "/visitors/"+v.ID+"/time-out", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = do(http.MethodPost, "/visitors/"+v.ID+"/time-out", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
