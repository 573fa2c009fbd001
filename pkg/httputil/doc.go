// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, rows)
//
// Error responses:
//
//	httputil.WriteBadRequest(w, "invalid role id")
//	httputil.WriteUnauthorized(w, "authentication required")
//	httputil.WriteConflict(w, "role has no row for this code")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req toggleRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path parameters:
//
//	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	code, ok := httputil.ParsePathStringOrError(w, r, "code")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: request id and role identity middleware
package httputil
