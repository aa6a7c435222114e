package dashboard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/httputil"
	"github.com/tutoria/dashboard/pkg/pages"
	"github.com/tutoria/dashboard/pkg/rbac"
	"github.com/tutoria/dashboard/pkg/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionInfo describes the current session to the frontend
type SessionInfo struct {
	State       string            `json:"state"`
	User        *auth.User        `json:"user,omitempty"`
	AccessRole  auth.AccessRole   `json:"accessRole,omitempty"`
	Pages       []string          `json:"pages,omitempty"`
	Permissions []rbac.Permission `json:"permissions,omitempty"`
}

// loginPage handles GET /login
func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if s.sessions.IsAuthenticated() {
		httputil.Redirect(w, r, pages.Dashboard)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"page": "login"})
}

// login handles POST /login with a JSON or form body
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	form := httputil.IsForm(r)
	if form {
		err := httputil.ReadForm(r, map[string]*string{"username": &req.Username, "password": &req.Password})
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
	} else if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !httputil.RequireNonEmpty(w, strings.TrimSpace(req.Username), "username") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	user, err := s.sessions.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		var loginErr *session.LoginError
		if errors.As(err, &loginErr) {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, loginErr.Message)
			return
		}
		httputil.WriteInternalError(w, r, err)
		return
	}

	if form {
		httputil.Redirect(w, r, pages.Dashboard)
		return
	}
	httputil.WriteSuccess(w, s.describe(user))
}

// logout handles POST /logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context()); err != nil {
		s.logger.WithError(err).Warn("logout left stored session behind")
	}
	httputil.Redirect(w, r, pages.Login)
}

// sessionInfo handles GET /api/session
func (s *Server) sessionInfo(w http.ResponseWriter, r *http.Request) {
	if s.sessions.Loading() {
		httputil.WriteSuccess(w, SessionInfo{State: session.StateLoading.String()})
		return
	}
	user := s.sessions.CurrentUser()
	if user == nil {
		httputil.WriteSuccess(w, SessionInfo{State: session.StateAnonymous.String()})
		return
	}
	httputil.WriteSuccess(w, s.describe(user))
}

func (s *Server) describe(user *auth.User) SessionInfo {
	return SessionInfo{
		State:       session.StateAuthenticated.String(),
		User:        user,
		AccessRole:  user.AccessRole(),
		Pages:       s.rules.Accessible(user),
		Permissions: s.checker.EffectivePermissions(user),
	}
}
