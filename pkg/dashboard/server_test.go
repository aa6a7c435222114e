package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoria/dashboard/pkg/apiclient"
	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/auth/authtest"
	"github.com/tutoria/dashboard/pkg/middleware"
	"github.com/tutoria/dashboard/pkg/observability"
	"github.com/tutoria/dashboard/pkg/session"
)

// backend fakes the auth, management and AI APIs
type backend struct {
	t *testing.T

	mu      sync.Mutex
	users   map[string]*auth.User // by username
	tokens  map[string]*auth.User // by access token
	deleted []string

	courseStatus atomic.Int32
	calls        atomic.Int32
}

func newBackend(t *testing.T) *backend {
	b := &backend{
		t: t,
		users: map[string]*auth.User{
			"root":    authtest.SuperAdmin(),
			"aprof":   authtest.AdminProfessor("uni-1"),
			"prof":    authtest.RegularProfessor("uni-1", "c1"),
			"student": authtest.Student("uni-1", "c1"),
		},
		tokens: map[string]*auth.User{},
	}
	return b
}

var testCourses = []apiclient.Course{
	{ID: "c1", Name: "Intro", UniversityID: "uni-1"},
	{ID: "c2", Name: "Compilers", UniversityID: "uni-1"},
	{ID: "c3", Name: "Ethics", UniversityID: "uni-2"},
}

func (b *backend) user(r *http.Request) *auth.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds apiclient.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		b.mu.Lock()
		user, ok := b.users[creds.Username]
		b.mu.Unlock()
		if !ok || creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		token := authtest.ValidToken(b.t, user.ID)
		b.mu.Lock()
		b.tokens[token] = user
		b.mu.Unlock()
		json.NewEncoder(w).Encode(auth.Tokens{AccessToken: token, RefreshToken: "r-" + user.ID})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		user := b.user(r)
		if user == nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("PUT /auth/me/preferences", func(w http.ResponseWriter, r *http.Request) {
		var prefs auth.Preferences
		json.NewDecoder(r.Body).Decode(&prefs)
		u := *b.user(r)
		u.Theme, u.Language = prefs.Theme, prefs.Language
		json.NewEncoder(w).Encode(&u)
	})

	mux.HandleFunc("GET /api/{collection}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /api/universities", func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		json.NewEncoder(w).Encode([]apiclient.University{{ID: "uni-1", Name: "Tutoria U"}, {ID: "uni-2", Name: "Other U"}})
	})
	mux.HandleFunc("POST /api/universities", func(w http.ResponseWriter, r *http.Request) {
		var u apiclient.University
		json.NewDecoder(r.Body).Decode(&u)
		u.ID = "uni-3"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(u)
	})
	mux.HandleFunc("GET /api/courses", func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		if status := b.courseStatus.Load(); status != 0 {
			w.WriteHeader(int(status))
			w.Write([]byte(`{"detail":"courses unavailable"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": testCourses})
	})
	mux.HandleFunc("GET /api/courses/{id}", func(w http.ResponseWriter, r *http.Request) {
		for _, c := range testCourses {
			if c.ID == r.PathValue("id") {
				json.NewEncoder(w).Encode(c)
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("DELETE /api/courses/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deleted = append(b.deleted, r.PathValue("id"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/analytics/overview", func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		json.NewEncoder(w).Encode(apiclient.AnalyticsOverview{TotalCourses: 3})
	})
	mux.HandleFunc("GET /api/analytics/usage", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]apiclient.UsagePoint{{Date: "2026-10-01", Sessions: 4}})
	})
	mux.HandleFunc("POST /ai/improve-prompt", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiclient.ImprovePromptResponse{ImprovedPrompt: "You are a patient tutor."})
	})
	return mux
}

type harness struct {
	server   *Server
	backend  *backend
	sessions *session.Store
	metrics  *observability.Metrics
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	b := newBackend(t)
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	client := apiclient.New(apiclient.Config{
		ManagementURL: srv.URL + "/api",
		AuthURL:       srv.URL,
		AIURL:         srv.URL + "/ai",
		HTTPClient:    srv.Client(),
	})
	store := session.New(session.Options{Client: client, Storage: session.NewMemoryStorage()})

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	opts.Client = client
	opts.Sessions = store
	opts.Metrics = metrics

	return &harness{server: NewServer(opts), backend: b, sessions: store, metrics: metrics}
}

func (h *harness) restore(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sessions.Restore(context.Background()))
}

func (h *harness) loginAs(t *testing.T, username string) {
	t.Helper()
	h.restore(t)
	_, err := h.sessions.Login(context.Background(), username, "secret")
	require.NoError(t, err)
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestServer_LoadingSession(t *testing.T) {
	h := newHarness(t, Options{})

	rec := h.do(http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"loading"}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/session", "")
	assert.JSONEq(t, `{"state":"loading"}`, rec.Body.String())

	rec = h.do(http.MethodPost, "/api/universities", `{"name":"X"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_AnonymousRedirectsToLogin(t *testing.T) {
	h := newHarness(t, Options{})
	h.restore(t)

	for _, path := range []string{"/dashboard", "/courses", "/universities", "/settings"} {
		rec := h.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}

	rec := h.do(http.MethodGet, "/login", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_PageRules(t *testing.T) {
	tests := []struct {
		user    string
		path    string
		allowed bool
	}{
		{"root", "/universities", true},
		{"root", "/ai-models", true},
		{"aprof", "/universities", false},
		{"aprof", "/professors", true},
		{"aprof", "/analytics", true},
		{"prof", "/courses", true},
		{"prof", "/professors", false},
		{"prof", "/tokens", false},
		{"student", "/courses", false},
		{"student", "/settings", true},
	}

	for _, tt := range tests {
		t.Run(tt.user+tt.path, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.loginAs(t, tt.user)

			rec := h.do(http.MethodGet, tt.path, "")
			if tt.allowed {
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, tt.path, decodeView(t, rec)["page"])
				return
			}
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
		})
	}
}

func TestServer_DashboardLoadsConcurrently(t *testing.T) {
	h := newHarness(t, Options{})
	h.loginAs(t, "root")

	rec := h.do(http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeView(t, rec)
	data := view["data"].(map[string]interface{})
	assert.Len(t, data["universities"], 2)
	assert.Len(t, data["courses"], 3)
	assert.NotNil(t, data["overview"])
	assert.Equal(t, int32(3), h.backend.calls.Load())

	actions := view["actions"].(map[string]interface{})
	assert.Contains(t, actions, "createUniversity")
	assert.Contains(t, actions, "viewAnalytics")
}

func TestServer_FragmentsFollowRole(t *testing.T) {
	h := newHarness(t, Options{})
	h.loginAs(t, "prof")

	rec := h.do(http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeView(t, rec)
	assert.NotContains(t, view, "actions")
	data := view["data"].(map[string]interface{})
	assert.NotContains(t, data, "universities")
	assert.NotContains(t, data, "overview")
	assert.ElementsMatch(t, []interface{}{"/courses", "/dashboard", "/files", "/modules", "/settings", "/students"}, view["navigation"])
}

func TestServer_CoursesFilteredByPermission(t *testing.T) {
	h := newHarness(t, Options{})
	h.loginAs(t, "prof")

	rec := h.do(http.MethodGet, "/courses", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Data struct {
			Courses []CourseRow `json:"courses"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Data.Courses, 1)
	assert.Equal(t, "c1", view.Data.Courses[0].ID)
	assert.True(t, view.Data.Courses[0].CanEdit)
	assert.False(t, view.Data.Courses[0].CanDelete)
}

func TestServer_BackendErrors(t *testing.T) {
	h := newHarness(t, Options{})
	h.loginAs(t, "root")

	h.backend.courseStatus.Store(http.StatusInternalServerError)
	rec := h.do(http.MethodGet, "/courses", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "courses unavailable")

	h.backend.courseStatus.Store(http.StatusForbidden)
	rec = h.do(http.MethodGet, "/courses", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_Login(t *testing.T) {
	h := newHarness(t, Options{})
	h.restore(t)

	rec := h.do(http.MethodPost, "/login", `{"username":"root","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect username or password")

	rec = h.do(http.MethodPost, "/login", `{"username":"","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/login", `{"username":"aprof","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var info SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "authenticated", info.State)
	assert.Equal(t, auth.AccessAdminProfessor, info.AccessRole)
	assert.Contains(t, info.Pages, "/professors")
	assert.NotEmpty(t, info.Permissions)

	rec = h.do(http.MethodGet, "/login", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestServer_LoginForm(t *testing.T) {
	h := newHarness(t, Options{})
	h.restore(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=root&password=secret"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.True(t, h.sessions.IsAuthenticated())
}

func TestServer_LoginRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	})
	h := newHarness(t, Options{LoginLimiter: limiter})
	h.restore(t)

	for i := 0; i < 2; i++ {
		rec := h.do(http.MethodPost, "/login", `{"username":"root","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := h.do(http.MethodPost, "/login", `{"username":"root","password":"secret"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, h.sessions.IsAuthenticated())
}

func TestServer_Logout(t *testing.T) {
	h := newHarness(t, Options{})
	h.loginAs(t, "root")

	rec := h.do(http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = h.do(http.MethodGet, "/api/session", "")
	assert.JSONEq(t, `{"state":"anonymous"}`, rec.Body.String())
}

func TestServer_CreateUniversity(t *testing.T) {
	t.Run("super admin", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.loginAs(t, "root")

		rec := h.do(http.MethodPost, "/api/universities", `{"name":"New U"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"uni-3"`)

		rec = h.do(http.MethodPost, "/api/universities", `{"name":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("admin professor", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.loginAs(t, "aprof")

		rec := h.do(http.MethodPost, "/api/universities", `{"name":"New U"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.restore(t)

		rec := h.do(http.MethodPost, "/api/universities", `{"name":"New U"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestServer_DeleteCourseResolvesUniversity(t *testing.T) {
	h := newHarness(t, Options{})
	h.loginAs(t, "aprof")

	rec := h.do(http.MethodDelete, "/api/courses/c2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodDelete, "/api/courses/c3", "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "course of another university")

	assert.Equal(t, []string{"c2"}, h.backend.deleted)
}

func TestServer_ImprovePrompt(t *testing.T) {
	h := newHarness(t, Options{})
	h.loginAs(t, "prof")

	rec := h.do(http.MethodPost, "/api/prompts/improve?courseId=c1", `{"prompt":"be nice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "patient tutor")

	rec = h.do(http.MethodPost, "/api/prompts/improve?courseId=c2", `{"prompt":"be nice"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_UpdatePreferences(t *testing.T) {
	h := newHarness(t, Options{})
	h.loginAs(t, "prof")

	rec := h.do(http.MethodPut, "/settings/preferences", `{"theme":"neon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPut, "/settings/preferences", `{"theme":"dark","language":"fr"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.ThemeDark, h.sessions.CurrentUser().Theme)

	rec = h.do(http.MethodGet, "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"language":"fr"`)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	health := observability.NewHealthChecker()
	h := newHarness(t, Options{Health: health})
	h.restore(t)

	rec := h.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.do(http.MethodGet, "/dashboard", "")
	rec = h.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/dashboard"`)
	assert.Contains(t, rec.Body.String(), "tutoria_authz_decisions_total")
}

func TestServer_Run(t *testing.T) {
	h := newHarness(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- h.server.Run(ctx, HTTPConfig{
			Addr:            "127.0.0.1:0",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_ServesLoadingUntilStartupRestores(t *testing.T) {
	h := newHarness(t, Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.server.Serve(ctx, ln, HTTPConfig{
			ShutdownTimeout: time.Second,
			Startup: func(ctx context.Context) error {
				select {
				case <-release:
				case <-ctx.Done():
					return nil
				}
				return h.sessions.Restore(ctx)
			},
		})
	}()

	client := &http.Client{
		Timeout: time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	get := func(path string) (int, string, error) {
		resp, err := client.Get(base + path)
		if err != nil {
			return 0, "", err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body), err
	}

	code, body, err := get("/dashboard")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"loading"}`, body)

	close(release)
	assert.Eventually(t, func() bool {
		code, _, err := get("/dashboard")
		return err == nil && code == http.StatusSeeOther
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_StartupErrorStopsServer(t *testing.T) {
	h := newHarness(t, Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	restoreErr := errors.New("session storage unavailable")
	done := make(chan error, 1)
	go func() {
		done <- h.server.Serve(context.Background(), ln, HTTPConfig{
			ShutdownTimeout: time.Second,
			Startup:         func(context.Context) error { return restoreErr },
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, restoreErr)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
