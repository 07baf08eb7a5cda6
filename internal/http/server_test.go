package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterlog/internal/auth"
	"meterlog/internal/bills/memory"
	"meterlog/internal/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()
	provider := auth.NewProvider(store, []byte("test-secret-0123456789"), time.Hour)
	svc := services.NewBillService(store, nil)
	srv := NewServer(":0", svc, provider, Options{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

// signUp registers an account over HTTP and returns its session cookie.
func signUp(t *testing.T, srv *Server, email string) *http.Cookie {
	t.Helper()
	form := url.Values{
		"email":     {email},
		"full_name": {"Test User"},
		"password":  {"strongpassword"},
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set on register")
	return nil
}

func do(srv *Server, method, target string, form url.Values, cookie *http.Cookie, htmx bool) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", nil, nil, false).Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/readyz", nil, nil, false).Code)
}

func TestRecordViewsRequireSession(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, http.MethodGet, "/bills/water", nil, nil, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = do(srv, http.MethodGet, "/dashboard", nil, nil, true)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t)
	signUp(t, srv, "amira@example.com")

	rec := do(srv, http.MethodPost, "/login", url.Values{
		"email":    {"amira@example.com"},
		"password": {"wrongpassword"},
	}, nil, false)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
}

func TestLoginRedirectsToDashboard(t *testing.T) {
	srv := newTestServer(t)
	signUp(t, srv, "amira@example.com")

	rec := do(srv, http.MethodPost, "/login", url.Values{
		"email":    {"amira@example.com"},
		"password": {"strongpassword"},
	}, nil, false)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestBillCRUDOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	cookie := signUp(t, srv, "amira@example.com")

	rec := do(srv, http.MethodPost, "/bills/water", url.Values{
		"month":            {"2024-02"},
		"previous_reading": {"100"},
		"current_reading":  {"150"},
		"rate":             {"10"},
	}, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), "bills:changed")

	rec = do(srv, http.MethodGet, "/bills/water?year=2024", nil, cookie, false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "2024-02")
	assert.Contains(t, body, "50")  // derived consumption
	assert.Contains(t, body, "500") // derived amount

	// Find the row id through the edit link on the page.
	id := extractBillID(t, body)

	rec = do(srv, http.MethodPost, "/bills/water/"+id, url.Values{
		"month":            {"2024-02"},
		"previous_reading": {"100"},
		"current_reading":  {"160"},
		"rate":             {"10"},
	}, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/bills/water?year=2024", nil, cookie, false)
	assert.Contains(t, rec.Body.String(), "600")

	rec = do(srv, http.MethodPost, "/bills/water/"+id+"/delete", nil, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/bills/water?year=2024", nil, cookie, false)
	assert.Contains(t, rec.Body.String(), "No bills recorded")
}

func extractBillID(t *testing.T, body string) string {
	t.Helper()
	marker := `hx-get="/bills/water/`
	search := body
	for {
		idx := strings.Index(search, marker)
		require.NotEqual(t, -1, idx, "no edit link in page")
		rest := search[idx+len(marker):]
		quote := strings.Index(rest, `"`)
		require.NotEqual(t, -1, quote)
		if strings.HasSuffix(rest[:quote], "/edit") {
			return strings.TrimSuffix(rest[:quote], "/edit")
		}
		search = rest
	}
}

func TestCreateBillValidation(t *testing.T) {
	srv := newTestServer(t)
	cookie := signUp(t, srv, "amira@example.com")

	rec := do(srv, http.MethodPost, "/bills/electricity", url.Values{
		"previous_reading": {"100"},
		"current_reading":  {"150"},
	}, cookie, true)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing month")
}

func TestUnknownKindIs404(t *testing.T) {
	srv := newTestServer(t)
	cookie := signUp(t, srv, "amira@example.com")

	rec := do(srv, http.MethodGet, "/bills/gas", nil, cookie, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewBillFormPrefillsPreviousReading(t *testing.T) {
	srv := newTestServer(t)
	cookie := signUp(t, srv, "amira@example.com")

	rec := do(srv, http.MethodPost, "/bills/water", url.Values{
		"month":            {"2024-03"},
		"previous_reading": {"100"},
		"current_reading":  {"155.5"},
		"rate":             {"2"},
	}, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/bills/water/new", nil, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="155.5"`)
}

func TestDerivationPreviewFragment(t *testing.T) {
	srv := newTestServer(t)
	cookie := signUp(t, srv, "amira@example.com")

	rec := do(srv, http.MethodGet,
		"/bills/water/new?month=2024-04&previous_reading=10&current_reading=30&rate=2.5",
		nil, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "20")
	assert.Contains(t, body, "50")
	assert.Contains(t, body, "computed")
}

func TestDashboardRendersBothPanels(t *testing.T) {
	srv := newTestServer(t)
	cookie := signUp(t, srv, "amira@example.com")

	rec := do(srv, http.MethodPost, "/bills/water", url.Values{
		"month":            {"2024-01"},
		"previous_reading": {"0"},
		"current_reading":  {"12"},
		"rate":             {"3"},
	}, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/dashboard?year=2024", nil, cookie, false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Water")
	assert.Contains(t, body, "Electricity")
	assert.Contains(t, body, "m³")
	assert.Contains(t, body, "No Electricity bills for 2024")
}

func TestUsersCannotTouchEachOthersBills(t *testing.T) {
	srv := newTestServer(t)
	owner := signUp(t, srv, "owner@example.com")
	other := signUp(t, srv, "other@example.com")

	rec := do(srv, http.MethodPost, "/bills/water", url.Values{
		"month":            {"2024-05"},
		"previous_reading": {"0"},
		"current_reading":  {"10"},
		"rate":             {"1"},
	}, owner, true)
	require.Equal(t, http.StatusOK, rec.Code)

	body := do(srv, http.MethodGet, "/bills/water?year=2024", nil, owner, false).Body.String()
	id := extractBillID(t, body)

	rec = do(srv, http.MethodPost, "/bills/water/"+id+"/delete", nil, other, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(srv, http.MethodGet, "/bills/water/"+id+"/edit", nil, other, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitOnPosts(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{"email": {"x@example.com"}, "password": {"nope"}}
	limited := false
	for i := 0; i < 70; i++ {
		rec := do(srv, http.MethodPost, "/login", form, nil, false)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
			break
		}
	}
	assert.True(t, limited, "expected rate limiter to kick in")
}
