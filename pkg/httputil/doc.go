// Package httputil provides HTTP helpers shared by the API handlers.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, roles)
//	httputil.WriteCreated(w, role)
//	httputil.WriteError(w, http.StatusBadRequest, err)
//
// Every error body has the shape {"error": "..."} with optional details.
//
// # Request Parsing
//
//	var req SaveGroupRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
