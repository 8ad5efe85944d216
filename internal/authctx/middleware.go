package authctx

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/chrlesur/live-memory/internal/tokens"
)

// Validator resolves a cleartext token to a registry record. Satisfied by
// *tokens.Registry; kept as an interface so middleware tests don't need a
// real objectstore-backed registry.
type Validator interface {
	Validate(ctx context.Context, cleartext string) (tokens.Record, bool, error)
}

// bootstrapIdentity is the synthetic admin identity presented for free
// when the bootstrap key is supplied (spec.md §4.3).
func bootstrapIdentity() *Identity {
	return &Identity{
		ClientName:       "bootstrap",
		Permissions:      []string{"admin", "read", "write"},
		AllowedResources: nil,
	}
}

// Middleware returns the gin handler that extracts a token, checks it
// against the bootstrap key first and the registry second, and installs
// the resulting Identity (possibly nil) on the request context. It never
// aborts the chain — absent/invalid tokens simply install nil.
func Middleware(bootstrapKey string, registry Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if BypassPaths[path] {
			c.Next()
			return
		}

		token := ExtractToken(c.GetHeader("Authorization"), c.Query("token"))

		var identity *Identity
		switch {
		case token == "":
			identity = nil
		case bootstrapKey != "" && token == bootstrapKey:
			identity = bootstrapIdentity()
		default:
			rec, ok, err := registry.Validate(c.Request.Context(), token)
			if err == nil && ok {
				identity = &Identity{
					ClientName:       rec.Name,
					Permissions:      rec.Permissions,
					AllowedResources: rec.SpaceIDs,
				}
			}
		}

		ctx := WithIdentity(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
