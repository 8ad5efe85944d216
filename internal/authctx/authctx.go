// Package authctx carries the per-request identity spec.md §4.4 describes
// and the gin middleware that installs it. Unlike compozy's ambient
// userctx, the zero value here is explicit: absent or invalid credentials
// install a nil Identity, and the request continues so public tools still
// run (spec.md: "the request continues so that public tools can still
// run").
package authctx

import (
	"context"
	"strings"
)

// Identity is the auth record installed on a request. A nil *Identity
// means "unauthenticated" everywhere in this package.
type Identity struct {
	ClientName       string
	Permissions      []string
	AllowedResources []string
}

func (i *Identity) hasPermission(perm string) bool {
	if i == nil {
		return false
	}
	for _, p := range i.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// CheckAccess reports whether the identity may operate on spaceID: admins
// pass unconditionally; everyone else needs an empty AllowedResources
// (meaning "all spaces") or an explicit match.
func CheckAccess(i *Identity, spaceID string) bool {
	if i == nil {
		return false
	}
	if i.hasPermission("admin") {
		return true
	}
	if len(i.AllowedResources) == 0 {
		return true
	}
	for _, s := range i.AllowedResources {
		if s == spaceID {
			return true
		}
	}
	return false
}

// CheckWrite reports whether the identity has admin or write permission.
func CheckWrite(i *Identity) bool {
	return i.hasPermission("admin") || i.hasPermission("write")
}

// CheckAdmin reports whether the identity has admin permission.
func CheckAdmin(i *Identity) bool {
	return i.hasPermission("admin")
}

// CurrentAgent returns the identity's client name, or "anonymous" when i
// is nil or its name is empty.
func CurrentAgent(i *Identity) string {
	if i == nil || i.ClientName == "" {
		return "anonymous"
	}
	return i.ClientName
}

type ctxKey string

const identityCtxKey ctxKey = "live_memory_identity"

// WithIdentity returns a copy of ctx carrying identity (which may be nil).
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// FromContext returns the Identity installed on ctx, or nil if none was
// installed (or the request was anonymous).
func FromContext(ctx context.Context) *Identity {
	if ctx == nil {
		return nil
	}
	v := ctx.Value(identityCtxKey)
	if v == nil {
		return nil
	}
	identity, _ := v.(*Identity)
	return identity
}

// ExtractToken pulls the bearer token out of an Authorization header value
// or, failing that, a query-string token (the latter exists to authenticate
// SSE streams from browsers, which cannot set custom headers on an
// EventSource request).
func ExtractToken(authorizationHeader, queryToken string) string {
	if authorizationHeader != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(authorizationHeader, prefix) {
			token := strings.TrimSpace(strings.TrimPrefix(authorizationHeader, prefix))
			if token != "" {
				return token
			}
		}
		return ""
	}
	return queryToken
}

// BypassPaths are the two routes spec.md §4.4 exempts from authentication
// entirely.
var BypassPaths = map[string]bool{
	"/health":      true,
	"/favicon.ico": true,
}
