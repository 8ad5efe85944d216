package authctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAccess(t *testing.T) {
	t.Run("Should deny a nil identity", func(t *testing.T) {
		assert.False(t, CheckAccess(nil, "demo"))
	})

	t.Run("Should allow admin regardless of scope", func(t *testing.T) {
		i := &Identity{Permissions: []string{"admin"}, AllowedResources: []string{"other"}}
		assert.True(t, CheckAccess(i, "demo"))
	})

	t.Run("Should allow any space when AllowedResources is empty", func(t *testing.T) {
		i := &Identity{Permissions: []string{"read"}}
		assert.True(t, CheckAccess(i, "demo"))
	})

	t.Run("Should require an explicit match otherwise", func(t *testing.T) {
		i := &Identity{Permissions: []string{"read"}, AllowedResources: []string{"other"}}
		assert.False(t, CheckAccess(i, "demo"))
	})
}

func TestCheckWriteAndAdmin(t *testing.T) {
	t.Run("Should treat admin as write-capable", func(t *testing.T) {
		i := &Identity{Permissions: []string{"admin"}}
		assert.True(t, CheckWrite(i))
	})

	t.Run("Should require write or admin explicitly", func(t *testing.T) {
		i := &Identity{Permissions: []string{"read"}}
		assert.False(t, CheckWrite(i))
	})

	t.Run("Should require admin specifically for CheckAdmin", func(t *testing.T) {
		i := &Identity{Permissions: []string{"write"}}
		assert.False(t, CheckAdmin(i))
	})
}

func TestCurrentAgent(t *testing.T) {
	t.Run("Should return anonymous for nil identity", func(t *testing.T) {
		assert.Equal(t, "anonymous", CurrentAgent(nil))
	})

	t.Run("Should return the client name otherwise", func(t *testing.T) {
		assert.Equal(t, "demo-agent", CurrentAgent(&Identity{ClientName: "demo-agent"}))
	})
}

func TestExtractToken(t *testing.T) {
	t.Run("Should extract a bearer token", func(t *testing.T) {
		assert.Equal(t, "abc", ExtractToken("Bearer abc", ""))
	})

	t.Run("Should fall back to query token when header is absent", func(t *testing.T) {
		assert.Equal(t, "abc", ExtractToken("", "abc"))
	})

	t.Run("Should reject a malformed header", func(t *testing.T) {
		assert.Equal(t, "", ExtractToken("Token abc", "fallback"))
	})

	t.Run("Should reject an empty bearer token", func(t *testing.T) {
		assert.Equal(t, "", ExtractToken("Bearer ", "fallback"))
	})
}

func TestContextRoundTrip(t *testing.T) {
	t.Run("Should round-trip an identity through context", func(t *testing.T) {
		i := &Identity{ClientName: "demo"}
		ctx := WithIdentity(context.Background(), i)
		assert.Same(t, i, FromContext(ctx))
	})

	t.Run("Should return nil when nothing was installed", func(t *testing.T) {
		assert.Nil(t, FromContext(context.Background()))
	})
}
