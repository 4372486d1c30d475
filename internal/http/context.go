package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/office-calendar/internal/application"
)

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// pathID returns the {id} wildcard matched by the router.
func pathID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("id"))
}
