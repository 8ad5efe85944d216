package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrlesur/live-memory/internal/authctx"
	"github.com/chrlesur/live-memory/internal/backup"
	"github.com/chrlesur/live-memory/internal/consolidator"
	"github.com/chrlesur/live-memory/internal/gc"
	"github.com/chrlesur/live-memory/internal/graphbridge"
	"github.com/chrlesur/live-memory/internal/livenote"
	"github.com/chrlesur/live-memory/internal/locks"
	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/internal/space"
	"github.com/chrlesur/live-memory/internal/tokens"
)

// testDeps builds a full Deps over an in-memory fake store, wiring every
// service the same way internal/app does, so tool handler tests exercise
// the real collaborators rather than hand-rolled doubles.
func testDeps() *Deps {
	store := objectstore.NewFake()
	mgr := locks.NewManager()
	notes := livenote.NewService(store)
	cons := consolidator.New(store, mgr, notes, nil, consolidator.Config{})
	return &Deps{
		Store:        store,
		Spaces:       space.NewService(store),
		Notes:        notes,
		Consolidator: cons,
		Backups:      backup.NewService(store),
		GraphBridge:  graphbridge.NewService(store),
		Tokens:       tokens.NewRegistry(store, mgr),
		GC:           gc.New(store, notes, cons),
		ServerName:   "live-memory-test",
		BucketName:   "live-memory-test-bucket",
	}
}

func idPtr(v int64) *int64 { return &v }

func TestDispatch_Initialize(t *testing.T) {
	t.Run("Should echo the protocol version and server info", func(t *testing.T) {
		req := rpcRequest{JSONRPC: "2.0", ID: idPtr(1), Method: "initialize"}
		resp := dispatch(context.Background(), testDeps(), nil, req)
		require.NotNil(t, resp)
		assert.Nil(t, resp.Error)
		m, ok := resp.Result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, protocolVersion, m["protocolVersion"])
	})
}

func TestDispatch_NotificationsInitialized(t *testing.T) {
	t.Run("Should return nil for a notification", func(t *testing.T) {
		req := rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"}
		resp := dispatch(context.Background(), testDeps(), nil, req)
		assert.Nil(t, resp)
	})
}

func TestDispatch_UnknownMethod(t *testing.T) {
	t.Run("Should return a method-not-found error", func(t *testing.T) {
		req := rpcRequest{JSONRPC: "2.0", ID: idPtr(2), Method: "bogus"}
		resp := dispatch(context.Background(), testDeps(), nil, req)
		require.NotNil(t, resp)
		require.NotNil(t, resp.Error)
		assert.Equal(t, errCodeMethodNotFound, resp.Error.Code)
	})
}

func toolCallRequest(t *testing.T, id int64, name string, args map[string]any) rpcRequest {
	t.Helper()
	params, err := json.Marshal(toolCallParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return rpcRequest{JSONRPC: "2.0", ID: idPtr(id), Method: "tools/call", Params: params}
}

func decodeToolResult(t *testing.T, resp *rpcResponse) map[string]any {
	t.Helper()
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	m, ok := resp.Result.(toolCallResult)
	require.True(t, ok)
	require.Len(t, m.Content, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(m.Content[0].Text), &payload))
	return payload
}

func TestDispatch_ToolCall(t *testing.T) {
	t.Run("Should run a public tool with no identity installed", func(t *testing.T) {
		req := toolCallRequest(t, 3, "system_health", nil)
		resp := dispatch(context.Background(), testDeps(), nil, req)
		payload := decodeToolResult(t, resp)
		assert.Equal(t, "ok", payload["status"])
	})

	t.Run("Should reject a protected tool with no identity installed", func(t *testing.T) {
		req := toolCallRequest(t, 4, "space_list", nil)
		resp := dispatch(context.Background(), testDeps(), nil, req)
		payload := decodeToolResult(t, resp)
		assert.Equal(t, "error", payload["status"])
		assert.Contains(t, payload["message"], "Authentication required")
	})

	t.Run("Should run a protected tool once the session carries an identity", func(t *testing.T) {
		recorder := newFlushRecorder()
		stream := StartSSE(recorder)
		identity := &authctx.Identity{ClientName: "demo", Permissions: []string{"admin"}}
		_, sess := newSessionRegistry().create(identity, stream)

		req := toolCallRequest(t, 5, "space_list", nil)
		resp := dispatch(context.Background(), testDeps(), sess, req)
		payload := decodeToolResult(t, resp)
		assert.Equal(t, "ok", payload["status"])
	})

	t.Run("Should reject an unknown tool name", func(t *testing.T) {
		req := toolCallRequest(t, 6, "nonexistent", nil)
		resp := dispatch(context.Background(), testDeps(), nil, req)
		require.NotNil(t, resp)
		require.NotNil(t, resp.Error)
		assert.Equal(t, errCodeInvalidParams, resp.Error.Code)
	})
}
