package middleware

import (
	"net/http"
	"strconv"

	"github.com/kardexhq/kardex/pkg/httputil"
	"github.com/kardexhq/kardex/pkg/observability"
)

// RoleHeader carries the authenticated role id set by the fronting auth
// proxy. This service trusts the header; session handling and user login
// happen upstream.
const RoleHeader = "X-Kardex-Role"

// RoleIdentity extracts the caller's role id from the request header and
// places it on the context. Requests without the header pass through
// unidentified; the permission gate turns that into a 401 where it matters.
func RoleIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(RoleHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		roleID, err := strconv.ParseInt(header, 10, 64)
		if err != nil || roleID <= 0 {
			httputil.WriteBadRequest(w, "invalid "+RoleHeader+" header")
			return
		}

		ctx := observability.WithRoleID(r.Context(), roleID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RoleID returns the authenticated role id for the request, zero when the
// caller is unidentified.
func RoleID(r *http.Request) int64 {
	return observability.GetRoleID(r.Context())
}
