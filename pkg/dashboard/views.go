package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/tutoria/dashboard/pkg/apiclient"
	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/guard"
	"github.com/tutoria/dashboard/pkg/httputil"
	"github.com/tutoria/dashboard/pkg/middleware"
	"github.com/tutoria/dashboard/pkg/pages"
	"github.com/tutoria/dashboard/pkg/rbac"
)

// View is the JSON rendition of a dashboard page
type View struct {
	Page       string                 `json:"page"`
	User       *auth.User             `json:"user"`
	Navigation []string               `json:"navigation"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Actions    map[string]interface{} `json:"actions,omitempty"`
}

// Action describes a control the frontend may render
type Action struct {
	Label  string `json:"label"`
	Method string `json:"method"`
	Href   string `json:"href"`
}

// loader fills data for one page; each key is loaded concurrently
type loader map[string]func(ctx context.Context) (interface{}, error)

// render loads data concurrently and writes the view with the fragments
// the user may see
func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, loads loader, fragments []guard.Fragment) {
	user := middleware.GetUser(r)

	data, err := load(r.Context(), loads)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}

	view := View{
		Page:       page,
		User:       user,
		Navigation: s.rules.Accessible(user),
		Data:       data,
	}
	if visible := s.guards.Visible(user, fragments); len(visible) > 0 {
		view.Actions = visible
	}
	httputil.WriteSuccess(w, view)
}

func load(ctx context.Context, loads loader) (map[string]interface{}, error) {
	if len(loads) == 0 {
		return nil, nil
	}

	results := make([]interface{}, 0, len(loads))
	keys := make([]string, 0, len(loads))
	for k := range loads {
		keys = append(keys, k)
		results = append(results, nil)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		fn := loads[key]
		g.Go(func() error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := make(map[string]interface{}, len(keys))
	for i, key := range keys {
		data[key] = results[i]
	}
	return data, nil
}

// scopeQuery limits list queries to the user's university unless the
// user is a super admin or the request names one explicitly
func scopeQuery(r *http.Request, user *auth.User, keys ...string) url.Values {
	q := url.Values{}
	for _, k := range keys {
		if v := r.URL.Query().Get(k); v != "" {
			q.Set(k, v)
		}
	}
	if q.Get("universityId") == "" && !user.IsSuperAdmin() && user.University() != "" {
		q.Set("universityId", user.University())
	}
	return q
}

func (s *Server) dashboardPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	loads := loader{
		"courses": func(ctx context.Context) (interface{}, error) {
			return s.client.Courses().List(ctx, scopeQuery(r, user))
		},
	}
	if user.IsSuperAdmin() {
		loads["universities"] = func(ctx context.Context) (interface{}, error) {
			return s.client.Universities().List(ctx, nil)
		}
	}
	if s.rules.CanAccessPage(user, pages.Analytics, nil) {
		loads["overview"] = func(ctx context.Context) (interface{}, error) {
			return s.client.AnalyticsOverview(ctx, scopeQuery(r, user).Get("universityId"))
		}
	}

	s.render(w, r, pages.Dashboard, loads, []guard.Fragment{
		guard.SuperAdminOnly("createUniversity", Action{Label: "New university", Method: http.MethodPost, Href: "/api/universities"}),
		guard.AdminOnly("viewAnalytics", Action{Label: "Analytics", Method: http.MethodGet, Href: pages.Analytics}),
	})
}

func (s *Server) universitiesPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, pages.Universities, loader{
		"universities": func(ctx context.Context) (interface{}, error) {
			return s.client.Universities().List(ctx, nil)
		},
	}, []guard.Fragment{
		guard.SuperAdminOnly("createUniversity", Action{Label: "New university", Method: http.MethodPost, Href: "/api/universities"}),
	})
}

func (s *Server) coursesPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	query := scopeQuery(r, user)
	permCtx := &rbac.Context{UniversityID: query.Get("universityId")}

	s.render(w, r, pages.Courses, loader{
		"courses": func(ctx context.Context) (interface{}, error) {
			courses, err := s.client.Courses().List(ctx, query)
			if err != nil {
				return nil, err
			}
			return s.visibleCourses(user, courses), nil
		},
	}, []guard.Fragment{
		guard.PermissionGuard("createCourse",
			guard.Permission{Action: rbac.ActionCreate, Resource: rbac.ResourceCourse, Context: permCtx},
			Action{Label: "New course", Method: http.MethodPost, Href: "/api/courses"}),
	})
}

// CourseRow is a course with the controls the user gets for it
type CourseRow struct {
	apiclient.Course
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
}

// visibleCourses keeps the courses the user may read and marks what they
// may change
func (s *Server) visibleCourses(user *auth.User, courses []apiclient.Course) []CourseRow {
	rows := make([]CourseRow, 0, len(courses))
	for _, c := range courses {
		ctx := &rbac.Context{UniversityID: c.UniversityID, CourseID: c.ID}
		if !s.checker.CheckPermission(user, rbac.ActionRead, rbac.ResourceCourse, ctx) {
			continue
		}
		rows = append(rows, CourseRow{
			Course:    c,
			CanEdit:   s.checker.CheckPermission(user, rbac.ActionUpdate, rbac.ResourceCourse, ctx),
			CanDelete: s.checker.CheckPermission(user, rbac.ActionDelete, rbac.ResourceCourse, ctx),
		})
	}
	return rows
}

func (s *Server) modulesPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	query := scopeQuery(r, user, "courseId")

	s.render(w, r, pages.Modules, loader{
		"modules": func(ctx context.Context) (interface{}, error) {
			return s.client.Modules().List(ctx, query)
		},
		"aiModels": func(ctx context.Context) (interface{}, error) {
			return s.client.AIModels().List(ctx, nil)
		},
	}, []guard.Fragment{
		guard.PermissionGuard("createModule",
			guard.Permission{Action: rbac.ActionCreate, Resource: rbac.ResourceModule, Context: rbac.RouteContext(r)},
			Action{Label: "New module", Method: http.MethodPost, Href: "/api/modules"}),
		guard.PermissionGuard("improvePrompt",
			guard.Permission{Action: rbac.ActionUpdate, Resource: rbac.ResourceModule, Context: rbac.RouteContext(r)},
			Action{Label: "Improve prompt", Method: http.MethodPost, Href: "/api/prompts/improve"}),
	})
}

func (s *Server) filesPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	s.render(w, r, pages.Files, loader{
		"files": func(ctx context.Context) (interface{}, error) {
			return s.client.Files().List(ctx, scopeQuery(r, user, "moduleId", "courseId"))
		},
	}, []guard.Fragment{
		guard.PermissionGuard("uploadFile",
			guard.Permission{Action: rbac.ActionCreate, Resource: rbac.ResourceFile, Context: rbac.RouteContext(r)},
			Action{Label: "Upload", Method: http.MethodPost, Href: "/api/files"}),
	})
}

func (s *Server) professorsPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	s.render(w, r, pages.Professors, loader{
		"professors": func(ctx context.Context) (interface{}, error) {
			return s.client.Professors().List(ctx, scopeQuery(r, user))
		},
	}, []guard.Fragment{
		guard.AdminOnly("inviteProfessor", Action{Label: "Invite professor", Method: http.MethodPost, Href: "/api/professors"}),
	})
}

func (s *Server) studentsPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	s.render(w, r, pages.Students, loader{
		"students": func(ctx context.Context) (interface{}, error) {
			return s.client.Students().List(ctx, scopeQuery(r, user, "courseId"))
		},
	}, []guard.Fragment{
		guard.AdminOnly("enrollStudent", Action{Label: "Enroll student", Method: http.MethodPost, Href: "/api/students"}),
	})
}

func (s *Server) tokensPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	s.render(w, r, pages.Tokens, loader{
		"tokens": func(ctx context.Context) (interface{}, error) {
			return s.client.AccessTokens().List(ctx, scopeQuery(r, user, "moduleId"))
		},
	}, []guard.Fragment{
		guard.PermissionGuard("createToken",
			guard.Permission{Action: rbac.ActionCreate, Resource: rbac.ResourceToken, Context: &rbac.Context{UniversityID: user.University()}},
			Action{Label: "New token", Method: http.MethodPost, Href: "/api/tokens"}),
	})
}

func (s *Server) analyticsPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	universityID := scopeQuery(r, user).Get("universityId")
	days, err := httputil.PositiveQueryInt(r, "days", 30)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	s.render(w, r, pages.Analytics, loader{
		"overview": func(ctx context.Context) (interface{}, error) {
			return s.client.AnalyticsOverview(ctx, universityID)
		},
		"usage": func(ctx context.Context) (interface{}, error) {
			return s.client.AnalyticsUsage(ctx, universityID, days)
		},
	}, nil)
}

func (s *Server) aiModelsPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, pages.AIModels, loader{
		"aiModels": func(ctx context.Context) (interface{}, error) {
			return s.client.AIModels().List(ctx, nil)
		},
	}, []guard.Fragment{
		guard.SuperAdminOnly("createModel", Action{Label: "New model", Method: http.MethodPost, Href: "/api/ai-models"}),
	})
}

func (s *Server) settingsPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	s.render(w, r, pages.Settings, loader{
		"preferences": func(context.Context) (interface{}, error) {
			return auth.Preferences{Theme: user.Theme, Language: user.Language}, nil
		},
	}, nil)
}

// writeBackendError maps a backend failure to a response. An expired
// session sends the user to the login page.
func (s *Server) writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		httputil.Redirect(w, r, pages.Login)
	case errors.Is(err, apiclient.ErrTimeout):
		httputil.WriteErrorMessage(w, http.StatusGatewayTimeout, "the server did not respond in time")
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict,
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			httputil.WriteErrorMessage(w, apiErr.StatusCode, apiErr.Message)
		default:
			httputil.WriteBadGateway(w, apiErr.Message)
		}
	default:
		s.logger.WithError(err).Error("backend request failed")
		httputil.WriteBadGateway(w, "backend request failed")
	}
}
