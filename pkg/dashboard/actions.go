package dashboard

import (
	"net/http"
	"strings"

	"github.com/tutoria/dashboard/pkg/apiclient"
	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/httputil"
	"github.com/tutoria/dashboard/pkg/middleware"
	"github.com/tutoria/dashboard/pkg/rbac"
)

type createUniversityRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// updatePreferences handles PUT /settings/preferences
func (s *Server) updatePreferences(w http.ResponseWriter, r *http.Request) {
	if middleware.GetUser(r) == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var prefs auth.Preferences
	if !httputil.ParseJSONOrError(w, r, &prefs) {
		return
	}
	switch prefs.Theme {
	case "", auth.ThemeLight, auth.ThemeDark, auth.ThemeSystem:
	default:
		httputil.WriteBadRequest(w, "theme must be light, dark or system")
		return
	}

	user, err := s.sessions.UpdatePreferences(r.Context(), prefs)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// createUniversity handles POST /api/universities
func (s *Server) createUniversity(w http.ResponseWriter, r *http.Request) {
	var req createUniversityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	university, err := s.client.Universities().Create(r.Context(), req)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	httputil.WriteCreated(w, university)
}

// courseContext resolves the university of the course being acted on so
// university-scoped permissions can be checked
func (s *Server) courseContext(r *http.Request) *rbac.Context {
	permCtx := rbac.RouteContext(r)
	if permCtx.CourseID == "" || permCtx.UniversityID != "" {
		return permCtx
	}

	course, err := s.client.Courses().Get(r.Context(), permCtx.CourseID)
	if err != nil {
		s.logger.WithError(err).WithField("course_id", permCtx.CourseID).Debug("could not resolve course university")
		return permCtx
	}
	permCtx.UniversityID = course.UniversityID
	return permCtx
}

// deleteCourse handles DELETE /api/courses/{courseId}
func (s *Server) deleteCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := httputil.PathParam(w, r, "courseId")
	if !ok {
		return
	}
	if err := s.client.Courses().Delete(r.Context(), courseID); err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// improvePrompt handles POST /api/prompts/improve
func (s *Server) improvePrompt(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ImprovePromptRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, strings.TrimSpace(req.Prompt), "prompt") {
		return
	}

	resp, err := s.client.ImprovePrompt(r.Context(), req)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}
