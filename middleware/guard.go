package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/taskforge/authrbac"
	"github.com/taskforge/authrbac/permission"
)

// AccessTokenCookie is the cookie checked before the Authorization
// header.
const AccessTokenCookie = "accessToken"

type principalContextKey struct{}

// PrincipalFromContext describes the principalfromcontext operation and its observable behavior.
//
// PrincipalFromContext does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func PrincipalFromContext(ctx context.Context) (*authrbac.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*authrbac.Principal)
	return principal, ok
}

// Authenticate resolves the caller from the accessToken cookie or a
// Bearer Authorization header and stores the Principal on the request
// context. Requests without a valid access token get 401.
func Authenticate(engine *authrbac.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			accessToken, ok := requestToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := authrbac.WithClientIP(r.Context(), clientIP(r))
			ctx = authrbac.WithUserAgent(ctx, r.UserAgent())

			principal, err := engine.Authenticate(ctx, accessToken)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx = context.WithValue(ctx, principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermissions rejects the request with 403 unless the Principal
// injected by [Authenticate] satisfies the required permissions under
// the given logic. Without a Principal the request gets 401.
func RequirePermissions(required []permission.Permission, logic authrbac.Logic) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			granted := principal.Permissions.HasAll(required)
			if logic == authrbac.LogicOr {
				granted = principal.Permissions.HasAny(required)
			}
			if !granted {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	accessToken := value[len(bearer):]
	if accessToken == "" {
		return "", false
	}

	return accessToken, true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
