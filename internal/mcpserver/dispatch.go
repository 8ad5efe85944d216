package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chrlesur/live-memory/internal/authctx"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// dispatch handles one JSON-RPC request and returns the response to send
// on the session's SSE stream, or nil for a notification (no id, no
// response expected) per spec.md §4.11 point 3.
func dispatch(ctx context.Context, deps *Deps, sess *clientSession, req rpcRequest) *rpcResponse {
	switch req.Method {
	case "initialize":
		return dispatchInitialize(req)
	case "notifications/initialized":
		return nil
	case "tools/call":
		return dispatchToolCall(ctx, deps, sess, req)
	default:
		resp := errorResponse(req.ID, errCodeMethodNotFound, "unknown method: "+req.Method)
		return &resp
	}
}

func dispatchInitialize(req rpcRequest) *rpcResponse {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp := errorResponse(req.ID, errCodeInvalidParams, "invalid initialize params: "+err.Error())
			return &resp
		}
	}
	result := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": "live-memory", "version": "1.0.0"},
	}
	resp := resultResponse(req.ID, result)
	return &resp
}

func dispatchToolCall(ctx context.Context, deps *Deps, sess *clientSession, req rpcRequest) *rpcResponse {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp := errorResponse(req.ID, errCodeInvalidParams, "invalid tools/call params: "+err.Error())
		return &resp
	}

	entry, ok := toolTable[params.Name]
	if !ok {
		resp := errorResponse(req.ID, errCodeInvalidParams, "unknown tool: "+params.Name)
		return &resp
	}

	callCtx := ctx
	if sess != nil {
		callCtx = authctx.WithIdentity(ctx, sess.identity)
	}
	if !entry.public && authctx.FromContext(callCtx) == nil {
		payload := errorResult("Authentication required")
		toolCallsTotal.WithLabelValues(params.Name, "error").Inc()
		result, _ := textResult(payload)
		resp := resultResponse(req.ID, result)
		return &resp
	}

	start := time.Now()
	payload := entry.handler(callCtx, deps, params.Arguments)
	status, _ := payload["status"].(string)
	toolCallsTotal.WithLabelValues(params.Name, status).Inc()
	logger.FromContext(ctx).Info("tool call", "tool", params.Name, "status", status, "duration", time.Since(start))

	result, err := textResult(payload)
	if err != nil {
		resp := errorResponse(req.ID, errCodeInternal, "encoding tool result: "+err.Error())
		return &resp
	}
	resp := resultResponse(req.ID, result)
	return &resp
}
