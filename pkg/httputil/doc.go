// Package httputil provides HTTP helpers shared by the dashboard handlers.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteForbidden(w, "insufficient permissions")
//	httputil.WriteLoading(w) // 503 {"status":"loading"}, Retry-After: 1
//	httputil.Redirect(w, r, "/login")
//
// Error bodies are always {"error": "...", "request_id": "..."}.
//
// # Request Parsing
//
//	var req LoginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	courseID, ok := httputil.PathParam(w, r, "courseId")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
//
// RequestIDMiddleware must run before LoggingMiddleware so request logs carry
// the request id.
package httputil
