package dashboard

import (
	"net/http"

	"github.com/tutoria/dashboard/pkg/httputil"
	"github.com/tutoria/dashboard/pkg/middleware"
	"github.com/tutoria/dashboard/pkg/observability"
	"github.com/tutoria/dashboard/pkg/pages"
	"github.com/tutoria/dashboard/pkg/rbac"
)

func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.metrics, routeLabel))

	// Probes and metrics
	s.router.HandleFunc("/healthz", s.health.Readiness).Methods(http.MethodGet)
	s.router.HandleFunc("/livez", s.health.Liveness).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	// Session
	s.router.HandleFunc(pages.Login, s.loginPage).Methods(http.MethodGet)
	login := http.Handler(http.HandlerFunc(s.login))
	if s.limiter != nil {
		login = middleware.RateLimit(s.limiter, "login")(login)
	}
	s.router.Handle(pages.Login, login).Methods(http.MethodPost)
	s.router.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	s.router.HandleFunc("/api/session", s.sessionInfo).Methods(http.MethodGet)
	s.router.Handle("/", http.RedirectHandler(pages.Dashboard, http.StatusSeeOther)).Methods(http.MethodGet)

	// Page views
	protect := middleware.ProtectedRoute(s.sessions, middleware.RouteOptions{
		Rules:   s.rules,
		Metrics: s.metrics,
	})
	for path, h := range map[string]http.HandlerFunc{
		pages.Dashboard:    s.dashboardPage,
		pages.Universities: s.universitiesPage,
		pages.Courses:      s.coursesPage,
		pages.Modules:      s.modulesPage,
		pages.Files:        s.filesPage,
		pages.Professors:   s.professorsPage,
		pages.Students:     s.studentsPage,
		pages.Tokens:       s.tokensPage,
		pages.Analytics:    s.analyticsPage,
		pages.AIModels:     s.aiModelsPage,
		pages.Settings:     s.settingsPage,
	} {
		s.router.Handle(path, protect(h)).Methods(http.MethodGet)
	}

	// JSON actions; these answer 401/403 instead of redirecting
	api := httputil.Chain(s.requireRestored, middleware.SessionUser(s.sessions))
	s.router.Handle("/settings/preferences", api(http.HandlerFunc(s.updatePreferences))).Methods(http.MethodPut)
	s.router.Handle("/api/universities", api(
		s.permissions.RequirePermission(rbac.ActionCreate, rbac.ResourceUniversity, nil)(http.HandlerFunc(s.createUniversity)),
	)).Methods(http.MethodPost)
	s.router.Handle("/api/courses/{courseId}", api(
		s.permissions.RequirePermission(rbac.ActionDelete, rbac.ResourceCourse, s.courseContext)(http.HandlerFunc(s.deleteCourse)),
	)).Methods(http.MethodDelete)
	s.router.Handle("/api/prompts/improve", api(
		s.permissions.RequirePermission(rbac.ActionUpdate, rbac.ResourceModule, rbac.RouteContext)(http.HandlerFunc(s.improvePrompt)),
	)).Methods(http.MethodPost)
}

// requireRestored answers 503 until the session has been restored
func (s *Server) requireRestored(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessions.Loading() {
			httputil.WriteLoading(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
