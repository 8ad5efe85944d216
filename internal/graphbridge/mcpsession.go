package graphbridge

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// mcpSession wraps a mark3labs/mcp-go SSE client connection, performing the
// initialize handshake once at dial time so callers only ever issue tool
// calls.
type mcpSession struct {
	client *client.Client
}

// dialMCP is the default session factory: it opens a real outbound
// MCP-over-SSE connection, authenticated with a bearer token, the same
// transport shape the MCP Transport server (§4.11) speaks on the inbound
// side.
func dialMCP(ctx context.Context, url, token string) (session, error) {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	c, err := client.NewSSEMCPClient(url, transport.WithHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("build sse client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "live-memory-graphbridge", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	return &mcpSession{client: c}, nil
}

func (m *mcpSession) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := m.client.CallTool(ctx, req)
	if err != nil {
		return "", err
	}
	if res.IsError {
		return "", fmt.Errorf("remote %s reported an error", name)
	}
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			return tc.Text, nil
		}
	}
	return "", nil
}

func (m *mcpSession) close() error {
	return m.client.Close()
}

var _ session = (*mcpSession)(nil)
