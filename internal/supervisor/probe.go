package supervisor

import (
	"context"
	"fmt"
	"net"
	"time"

	"mcpdeck/internal/api"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Probe checks the liveness of a managed server. Check returns nil when
// the server answered; the returned version is the server-reported version
// when the probe speaks a protocol that carries one, otherwise empty.
type Probe interface {
	Check(ctx context.Context, cfg api.ServerConfig) (version string, err error)
}

// TCPProbe confirms liveness by completing a TCP handshake against the
// server's configured host and port. Used during startup, where the
// process may accept connections before the MCP endpoint is fully wired.
type TCPProbe struct {
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
}

// NewTCPProbe creates a TCPProbe with a 2 second dial timeout.
func NewTCPProbe() *TCPProbe {
	return &TCPProbe{DialTimeout: 2 * time.Second}
}

// Check implements Probe.
func (p *TCPProbe) Check(ctx context.Context, cfg api.ServerConfig) (string, error) {
	dialer := net.Dialer{Timeout: p.DialTimeout}
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("tcp probe %s: %w", addr, err)
	}
	conn.Close()
	return "", nil
}

// protocolVersion is the MCP protocol revision announced during the
// handshake.
const protocolVersion = "2024-11-05"

// MCPProbe confirms liveness at the protocol level: it initializes an MCP
// session over streamable HTTP and pings it. A server that accepts TCP but
// cannot complete the MCP handshake fails this probe.
type MCPProbe struct {
	// RequestTimeout bounds one initialize+ping round trip.
	RequestTimeout time.Duration
}

// NewMCPProbe creates an MCPProbe with a 5 second request timeout.
func NewMCPProbe() *MCPProbe {
	return &MCPProbe{RequestTimeout: 5 * time.Second}
}

// Check implements Probe.
func (p *MCPProbe) Check(ctx context.Context, cfg api.ServerConfig) (string, error) {
	url := fmt.Sprintf("http://%s/mcp", net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)))

	mcpClient, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return "", fmt.Errorf("failed to create MCP client: %w", err)
	}
	defer mcpClient.Close()

	checkCtx, cancel := context.WithTimeout(ctx, p.RequestTimeout)
	defer cancel()

	initResult, err := mcpClient.Initialize(checkCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: protocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    "mcpdeck",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		return "", fmt.Errorf("mcp initialize %s: %w", url, err)
	}

	if err := mcpClient.Ping(checkCtx); err != nil {
		return "", fmt.Errorf("mcp ping %s: %w", url, err)
	}
	return initResult.ServerInfo.Version, nil
}
