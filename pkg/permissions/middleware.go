package permissions

import (
	"context"
	"errors"
	"net/http"

	"github.com/kardexhq/kardex/pkg/httputil"
	"github.com/kardexhq/kardex/pkg/observability"
)

// RequireAny returns middleware that admits the request when the
// authenticated role holds at least one of the codes. Unauthenticated
// requests get 401; identified but insufficient roles get 403.
func RequireAny(gate *Gate, codes ...string) func(http.Handler) http.Handler {
	return requireMiddleware(gate.RequireAny, codes)
}

// RequireAll returns middleware that admits the request only when the
// authenticated role holds every one of the codes.
func RequireAll(gate *Gate, codes ...string) func(http.Handler) http.Handler {
	return requireMiddleware(gate.RequireAll, codes)
}

func requireMiddleware(check func(context.Context, int64, ...string) error, codes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roleID := observability.GetRoleID(r.Context())
			if err := check(r.Context(), roleID, codes...); err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthError maps gate errors onto HTTP statuses. The 401/403 split
// mirrors the gate's distinction between an unidentified caller and an
// identified one that lacks the grants.
func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnauthenticated) {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var fe *ForbiddenError
	if errors.As(err, &fe) {
		httputil.WriteJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":   "forbidden",
			"missing": fe.Missing,
		})
		return
	}

	httputil.WriteInternalError(w, err)
}
