package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/paventhan183/dr-appointment/libs/httpx"
)

type ctxKey int

const ctxKeyClaims ctxKey = iota

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return c, ok && c != nil
}

// RequireBearer rejects requests without a valid bearer token: 401 when the
// header is missing or malformed, 403 when the token does not verify.
// Requests for which skip reports true pass through untouched.
func RequireBearer(issuer *Issuer, skip func(*http.Request) bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip != nil && skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized access")
				return
			}
			claims, err := issuer.Verify(token)
			if err != nil {
				httpx.WriteError(w, http.StatusForbidden, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
