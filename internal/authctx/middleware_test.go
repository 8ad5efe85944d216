package authctx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/chrlesur/live-memory/internal/tokens"
)

type fakeValidator struct {
	record tokens.Record
	ok     bool
}

func (f fakeValidator) Validate(context.Context, string) (tokens.Record, bool, error) {
	return f.record, f.ok, nil
}

func newRouter(bootstrapKey string, v Validator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(bootstrapKey, v))
	r.GET("/test", func(c *gin.Context) {
		identity := FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"agent": CurrentAgent(identity)})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func TestMiddleware_NoToken(t *testing.T) {
	t.Run("Should install a nil identity and still allow the request through", func(t *testing.T) {
		router := newRouter("", fakeValidator{})
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"agent":"anonymous"}`, w.Body.String())
	})
}

func TestMiddleware_BootstrapKey(t *testing.T) {
	t.Run("Should install a synthetic admin identity for the bootstrap key", func(t *testing.T) {
		router := newRouter("boot-secret", fakeValidator{})
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("Authorization", "Bearer boot-secret")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"agent":"bootstrap"}`, w.Body.String())
	})
}

func TestMiddleware_RegistryToken(t *testing.T) {
	t.Run("Should install the registry's identity on a valid token", func(t *testing.T) {
		v := fakeValidator{record: tokens.Record{Name: "demo-agent", Permissions: []string{"read"}}, ok: true}
		router := newRouter("", v)
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("Authorization", "Bearer lm_something")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"agent":"demo-agent"}`, w.Body.String())
	})

	t.Run("Should install nil identity for an invalid token but still allow the request", func(t *testing.T) {
		router := newRouter("", fakeValidator{ok: false})
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("Authorization", "Bearer bad-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"agent":"anonymous"}`, w.Body.String())
	})
}

func TestMiddleware_BypassPaths(t *testing.T) {
	t.Run("Should skip auth entirely for /health", func(t *testing.T) {
		router := newRouter("", fakeValidator{})
		req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestMiddleware_QueryToken(t *testing.T) {
	t.Run("Should accept a token from the query string for SSE clients", func(t *testing.T) {
		v := fakeValidator{record: tokens.Record{Name: "browser-agent"}, ok: true}
		router := newRouter("", v)
		req := httptest.NewRequest(http.MethodGet, "/test?token=lm_something", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"agent":"browser-agent"}`, w.Body.String())
	})
}
