package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
	"github.com/ggoodman/mcp-protocol-go/mcp"
	"github.com/ggoodman/mcp-protocol-go/protocol"
)

// ErrCapabilitiesLocked is returned by RegisterCapabilities once connected.
var ErrCapabilitiesLocked = errors.New("mcpserver: capabilities cannot change after connecting")

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCapabilities sets the capabilities advertised in the initialize result.
func WithCapabilities(caps mcp.ServerCapabilities) ServerOption {
	return func(s *Server) { s.caps = caps }
}

// WithInstructions sets the usage instructions sent to the client.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) { s.instructions = instructions }
}

// WithPreferredProtocolVersion sets the revision offered when the client asks
// for one this server does not support. Defaults to mcp.LatestProtocolVersion.
func WithPreferredProtocolVersion(version string) ServerOption {
	return func(s *Server) { s.preferredVersion = version }
}

// WithOnInitialized registers a callback that runs when the client confirms
// the handshake with notifications/initialized.
func WithOnInitialized(fn func(ctx context.Context)) ServerOption {
	return func(s *Server) { s.onInitialized = fn }
}

// WithProtocolOptions passes options through to the underlying Protocol.
func WithProtocolOptions(opts ...protocol.Option) ServerOption {
	return func(s *Server) { s.protoOpts = append(s.protoOpts, opts...) }
}

// Server is an MCP server. The embedded Protocol exposes the generic request,
// notification and handler registration API.
type Server struct {
	*protocol.Protocol

	info             mcp.ImplementationInfo
	instructions     string
	preferredVersion string
	onInitialized    func(ctx context.Context)
	protoOpts        []protocol.Option

	mu          sync.RWMutex
	caps        mcp.ServerCapabilities
	clientCaps  mcp.ClientCapabilities
	clientInfo  mcp.ImplementationInfo
	version     string
	initialized bool
	logLevel    mcp.LoggingLevel
}

// New constructs a Server that identifies itself with info.
func New(info mcp.ImplementationInfo, opts ...ServerOption) *Server {
	s := &Server{info: info, preferredVersion: mcp.LatestProtocolVersion}
	for _, opt := range opts {
		opt(s)
	}

	popts := []protocol.Option{
		protocol.WithName("server"),
		protocol.WithDebouncedNotificationMethods(
			string(mcp.ToolsListChangedNotificationMethod),
			string(mcp.ResourcesListChangedNotificationMethod),
			string(mcp.PromptsListChangedNotificationMethod),
		),
	}
	popts = append(popts, s.protoOpts...)
	popts = append(popts, protocol.WithCapabilityChecker(checker{s: s}))
	s.Protocol = protocol.New(popts...)

	// Neither method maps to a capability, so registration cannot fail.
	_ = s.SetRequestHandler(string(mcp.InitializeMethod), protocol.TypedHandler(s.handleInitialize))
	_ = s.SetNotificationHandler(string(mcp.InitializedNotificationMethod), protocol.TypedNotificationHandler(s.handleInitialized))
	return s
}

// RegisterCapabilities merges caps into the advertised capabilities. It fails
// once the server is connected.
func (s *Server) RegisterCapabilities(caps mcp.ServerCapabilities) error {
	if s.Connected() {
		return ErrCapabilitiesLocked
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, err := mcp.MergeServerCapabilities(s.caps, caps)
	if err != nil {
		return err
	}
	s.caps = merged
	return nil
}

// Connect attaches t. When logging is advertised and no logging/setLevel
// handler is registered, one that records the client's level is installed.
func (s *Server) Connect(ctx context.Context, t protocol.Transport) error {
	if s.Capabilities().Logging != nil && s.AssertCanSetRequestHandler(string(mcp.LoggingSetLevelMethod)) == nil {
		if err := s.SetRequestHandler(string(mcp.LoggingSetLevelMethod), protocol.TypedHandler(s.handleSetLevel)); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.clientCaps = mcp.ClientCapabilities{}
	s.clientInfo = mcp.ImplementationInfo{}
	s.version = ""
	s.initialized = false
	s.logLevel = ""
	s.mu.Unlock()

	return s.Protocol.Connect(ctx, t)
}

// Capabilities returns the capabilities this server advertises.
func (s *Server) Capabilities() mcp.ServerCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// ClientCapabilities returns what the client advertised during initialize.
func (s *Server) ClientCapabilities() mcp.ClientCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCaps
}

// ClientInfo returns the client's implementation info.
func (s *Server) ClientInfo() mcp.ImplementationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

// ProtocolVersion returns the negotiated protocol revision.
func (s *Server) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Initialized reports whether the client completed the handshake.
func (s *Server) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Server) handleInitialize(ctx context.Context, _ *protocol.RequestContext, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	version := req.ProtocolVersion
	if !mcp.IsSupportedProtocolVersion(version) {
		version = s.preferredVersion
	}

	s.mu.Lock()
	s.clientCaps = req.Capabilities
	s.clientInfo = req.ClientInfo
	s.version = version
	caps := s.caps
	s.mu.Unlock()

	s.Logger().InfoContext(ctx, "server.initialize",
		slog.String("client", req.ClientInfo.Name),
		slog.String("client_version", req.ClientInfo.Version),
		slog.String("requested_version", req.ProtocolVersion),
		slog.String("protocol_version", version),
	)

	return &mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    caps,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

func (s *Server) handleInitialized(ctx context.Context, _ mcp.InitializedNotification) error {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	if s.onInitialized != nil {
		s.onInitialized(ctx)
	}
	return nil
}

func (s *Server) handleSetLevel(ctx context.Context, _ *protocol.RequestContext, req mcp.SetLevelRequest) (mcp.EmptyResult, error) {
	if !mcp.IsValidLoggingLevel(req.Level) {
		return mcp.EmptyResult{}, &jsonrpc.Error{Code: jsonrpc.ErrorCodeInvalidParams, Message: fmt.Sprintf("invalid logging level %q", req.Level)}
	}
	s.mu.Lock()
	s.logLevel = req.Level
	s.mu.Unlock()
	s.Logger().DebugContext(ctx, "server.logging.set_level", slog.String("level", string(req.Level)))
	return mcp.EmptyResult{}, nil
}

// Ping checks that the client is responsive.
func (s *Server) Ping(ctx context.Context, opts ...protocol.RequestOption) error {
	_, err := s.Request(ctx, string(mcp.PingMethod), nil, opts...)
	return err
}

// SendLoggingMessage sends a log message to the client. Messages below the
// level the client asked for with logging/setLevel are dropped.
func (s *Server) SendLoggingMessage(ctx context.Context, level mcp.LoggingLevel, logger string, data any) error {
	s.mu.RLock()
	floor := s.logLevel
	s.mu.RUnlock()
	if floor != "" && severity(level) < severity(floor) {
		return nil
	}
	return s.Notify(ctx, string(mcp.LoggingMessageNotificationMethod), mcp.LoggingMessageNotification{
		Level:  level,
		Logger: logger,
		Data:   data,
	})
}

// SendToolListChanged tells the client that the tool list changed.
func (s *Server) SendToolListChanged(ctx context.Context) error {
	return s.Notify(ctx, string(mcp.ToolsListChangedNotificationMethod), nil)
}

// SendResourceListChanged tells the client that the resource list changed.
func (s *Server) SendResourceListChanged(ctx context.Context) error {
	return s.Notify(ctx, string(mcp.ResourcesListChangedNotificationMethod), nil)
}

// SendPromptListChanged tells the client that the prompt list changed.
func (s *Server) SendPromptListChanged(ctx context.Context) error {
	return s.Notify(ctx, string(mcp.PromptsListChangedNotificationMethod), nil)
}

// SendResourceUpdated tells a subscribed client that the resource at uri
// changed.
func (s *Server) SendResourceUpdated(ctx context.Context, uri string) error {
	return s.Notify(ctx, string(mcp.ResourcesUpdatedNotificationMethod), map[string]string{"uri": uri})
}

// ListRoots asks the client for its filesystem roots.
func (s *Server) ListRoots(ctx context.Context, opts ...protocol.RequestOption) (*mcp.ListRootsResult, error) {
	res, err := protocol.Call[mcp.ListRootsResult](ctx, s.Protocol, string(mcp.RootsListMethod), nil, opts...)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateMessage asks the client to sample a message from its model.
func (s *Server) CreateMessage(ctx context.Context, req mcp.CreateMessageRequest, opts ...protocol.RequestOption) (*mcp.CreateMessageResult, error) {
	res, err := protocol.Call[mcp.CreateMessageResult](ctx, s.Protocol, string(mcp.SamplingCreateMessageMethod), req, opts...)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func severity(level mcp.LoggingLevel) int {
	switch level {
	case mcp.LoggingLevelDebug:
		return 0
	case mcp.LoggingLevelInfo:
		return 1
	case mcp.LoggingLevelNotice:
		return 2
	case mcp.LoggingLevelWarning:
		return 3
	case mcp.LoggingLevelError:
		return 4
	case mcp.LoggingLevelCritical:
		return 5
	case mcp.LoggingLevelAlert:
		return 6
	case mcp.LoggingLevelEmergency:
		return 7
	}
	return -1
}
