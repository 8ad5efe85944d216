package mcpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrlesur/live-memory/internal/authctx"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// heartbeatInterval keeps idle SSE connections (and any intermediating
// proxy) from timing out.
const heartbeatInterval = 25 * time.Second

// Server is the gin-based HTTP+SSE host for the MCP transport spec.md
// §4.11 describes. Grounded on compozy-compozy's engine/infra/server
// (gin.New + explicit middleware chain, a Run(ctx) lifecycle method) and
// its router/sse_test.go for the wire format.
type Server struct {
	deps     *Deps
	sessions *sessionRegistry
	engine   *gin.Engine
	hostname string
}

// NewServer builds the gin engine and registers every route. hostname, if
// non-empty, is forced onto every request's Host header (spec.md's
// deployments sit behind a reverse proxy that does not always set it).
func NewServer(deps *Deps, hostname string) *Server {
	s := &Server{deps: deps, sessions: newSessionRegistry(), hostname: hostname}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(authctx.Middleware(deps.BootstrapKey, deps.Tokens))
	engine.Use(requestLoggingMiddleware())
	if hostname != "" {
		engine.Use(hostNormalizationMiddleware(hostname))
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/sse", s.handleSSE)
	engine.POST("/message", s.handleMessage)

	s.engine = engine
	return s
}

// Handler exposes the underlying http.Handler for use by an *http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.deps.Store.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSSE opens a long-lived event stream: writes the "endpoint" event
// carrying the session-scoped URL the client must POST JSON-RPC requests
// to, then heartbeats until the client disconnects (spec.md §4.11 points
// 1-2).
func (s *Server) handleSSE(c *gin.Context) {
	identity := authctx.FromContext(c.Request.Context())
	stream := StartSSE(c.Writer)
	sessionID, sess := s.sessions.create(identity, stream)
	defer s.sessions.remove(sessionID)
	sseSessionsActive.Inc()
	defer sseSessionsActive.Dec()

	endpoint := fmt.Sprintf("/message?sessionId=%s", sessionID)
	if err := sess.send("endpoint", []byte(endpoint)); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sess.heartbeat(); err != nil {
				return
			}
		}
	}
}

// handleMessage is POST {session_endpoint}: it parses one JSON-RPC request,
// dispatches it, and writes the response onto the matching SSE stream
// rather than this request's HTTP body (spec.md §4.11 point 4). The HTTP
// response itself is just a 202 acknowledging receipt, per the MCP SSE
// transport convention.
func (s *Server) handleMessage(c *gin.Context) {
	sessionID := c.Query("sessionId")
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "unknown session"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid JSON-RPC body: " + err.Error()})
		return
	}

	resp := dispatch(c.Request.Context(), s.deps, sess, req)
	c.Status(http.StatusAccepted)
	if resp == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("encoding JSON-RPC response", "error", err)
		return
	}
	if err := sess.send("message", raw); err != nil {
		logger.FromContext(c.Request.Context()).Warn("writing JSON-RPC response to SSE stream", "error", err)
	}
}
