package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-protocol-go/mcp"
	"github.com/ggoodman/mcp-protocol-go/protocol"
)

var (
	// ErrUnsupportedProtocolVersion is returned by Connect when the server
	// answers with a protocol revision this client cannot speak.
	ErrUnsupportedProtocolVersion = errors.New("mcpclient: unsupported protocol version")
	// ErrCapabilitiesLocked is returned by RegisterCapabilities once connected.
	ErrCapabilitiesLocked = errors.New("mcpclient: capabilities cannot change after connecting")
)

// Option configures a Client.
type Option func(*Client)

// WithCapabilities sets the capabilities advertised during initialize.
func WithCapabilities(caps mcp.ClientCapabilities) Option {
	return func(c *Client) { c.caps = caps }
}

// WithProtocolOptions passes options through to the underlying Protocol.
func WithProtocolOptions(opts ...protocol.Option) Option {
	return func(c *Client) { c.protoOpts = append(c.protoOpts, opts...) }
}

// Client is an MCP client. The embedded Protocol exposes the generic request,
// notification and handler registration API.
type Client struct {
	*protocol.Protocol

	info      mcp.ImplementationInfo
	protoOpts []protocol.Option

	mu           sync.RWMutex
	caps         mcp.ClientCapabilities
	serverCaps   mcp.ServerCapabilities
	serverInfo   mcp.ImplementationInfo
	instructions string
	version      string
}

// New constructs a Client that identifies itself with info.
func New(info mcp.ImplementationInfo, opts ...Option) *Client {
	c := &Client{info: info}
	for _, opt := range opts {
		opt(c)
	}
	popts := append([]protocol.Option{protocol.WithName("client")}, c.protoOpts...)
	popts = append(popts, protocol.WithCapabilityChecker(checker{c: c}))
	c.Protocol = protocol.New(popts...)
	return c
}

// RegisterCapabilities merges caps into the capabilities advertised during
// initialize. It fails once the client is connected.
func (c *Client) RegisterCapabilities(caps mcp.ClientCapabilities) error {
	if c.Connected() {
		return ErrCapabilitiesLocked
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	merged, err := mcp.MergeClientCapabilities(c.caps, caps)
	if err != nil {
		return err
	}
	c.caps = merged
	return nil
}

// Capabilities returns the capabilities this client advertises.
func (c *Client) Capabilities() mcp.ClientCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caps
}

// ServerCapabilities returns what the server advertised during initialize.
func (c *Client) ServerCapabilities() mcp.ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverCaps
}

// ServerInfo returns the server's implementation info.
func (c *Client) ServerInfo() mcp.ImplementationInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Instructions returns the usage instructions the server sent, if any.
func (c *Client) Instructions() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instructions
}

// ProtocolVersion returns the negotiated protocol revision.
func (c *Client) ProtocolVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Connect attaches t and performs the initialize handshake. ctx bounds the
// handshake only; the connection stays open until Close. On failure the
// connection is closed.
func (c *Client) Connect(ctx context.Context, t protocol.Transport) error {
	if err := c.Protocol.Connect(ctx, t); err != nil {
		return err
	}
	if err := c.initialize(ctx); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

func (c *Client) initialize(ctx context.Context) error {
	res, err := protocol.Call[mcp.InitializeResult](ctx, c.Protocol, string(mcp.InitializeMethod), mcp.InitializeRequest{
		ProtocolVersion: mcp.LatestProtocolVersion,
		Capabilities:    c.Capabilities(),
		ClientInfo:      c.info,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if !mcp.IsSupportedProtocolVersion(res.ProtocolVersion) {
		return fmt.Errorf("%w: %q", ErrUnsupportedProtocolVersion, res.ProtocolVersion)
	}

	c.mu.Lock()
	c.serverCaps = res.Capabilities
	c.serverInfo = res.ServerInfo
	c.instructions = res.Instructions
	c.version = res.ProtocolVersion
	c.mu.Unlock()

	c.Logger().InfoContext(ctx, "client.initialize.ok",
		slog.String("server", res.ServerInfo.Name),
		slog.String("server_version", res.ServerInfo.Version),
		slog.String("protocol_version", res.ProtocolVersion),
	)

	if err := c.Notify(ctx, string(mcp.InitializedNotificationMethod), nil); err != nil {
		return fmt.Errorf("send initialized: %w", err)
	}
	return nil
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context, opts ...protocol.RequestOption) error {
	_, err := c.Request(ctx, string(mcp.PingMethod), nil, opts...)
	return err
}

// SetLoggingLevel asks the server to send log messages at level and above.
func (c *Client) SetLoggingLevel(ctx context.Context, level mcp.LoggingLevel, opts ...protocol.RequestOption) error {
	if !mcp.IsValidLoggingLevel(level) {
		return fmt.Errorf("invalid logging level %q", level)
	}
	_, err := c.Request(ctx, string(mcp.LoggingSetLevelMethod), mcp.SetLevelRequest{Level: level}, opts...)
	return err
}

// SendRootsListChanged tells the server that the client's roots changed.
func (c *Client) SendRootsListChanged(ctx context.Context) error {
	return c.Notify(ctx, string(mcp.RootsListChangedNotificationMethod), nil)
}

// HandleListRoots answers roots/list with the roots returned by fn. The
// client must advertise the roots capability.
func (c *Client) HandleListRoots(fn func(ctx context.Context) ([]mcp.Root, error)) error {
	return c.SetRequestHandler(string(mcp.RootsListMethod), protocol.TypedHandler(
		func(ctx context.Context, _ *protocol.RequestContext, _ mcp.ListRootsRequest) (*mcp.ListRootsResult, error) {
			roots, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			if roots == nil {
				roots = []mcp.Root{}
			}
			return &mcp.ListRootsResult{Roots: roots}, nil
		}))
}

// HandleCreateMessage answers sampling/createMessage with fn. The client must
// advertise the sampling capability.
func (c *Client) HandleCreateMessage(fn func(ctx context.Context, req mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error)) error {
	return c.SetRequestHandler(string(mcp.SamplingCreateMessageMethod), protocol.TypedHandler(
		func(ctx context.Context, _ *protocol.RequestContext, req mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error) {
			return fn(ctx, req)
		}))
}

// OnLoggingMessage registers fn for notifications/message from the server.
func (c *Client) OnLoggingMessage(fn func(ctx context.Context, msg mcp.LoggingMessageNotification)) error {
	return c.SetNotificationHandler(string(mcp.LoggingMessageNotificationMethod), protocol.TypedNotificationHandler(
		func(ctx context.Context, msg mcp.LoggingMessageNotification) error {
			fn(ctx, msg)
			return nil
		}))
}
