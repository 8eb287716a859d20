package mcp

import (
	"encoding/json"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

// ProgressToken correlates progress notifications with the request that
// asked for them. Like a request id it is either a string or an integer.
type ProgressToken = jsonrpc.RequestID

// RequestMeta is the reserved _meta object carried in request params.
type RequestMeta struct {
	ProgressToken *ProgressToken `json:"progressToken,omitempty"`
}

// BaseMetadata carries optional metadata for responses.
type BaseMetadata struct {
	Meta map[string]any `json:"_meta,omitempty"`
}

// CancelledNotification informs the peer that a request was cancelled.
type CancelledNotification struct {
	RequestID jsonrpc.RequestID `json:"requestId"`
	Reason    string            `json:"reason,omitempty"`
}

// ProgressNotificationParams conveys progress of a long-running operation.
// Total is nil when the sender does not know it.
type ProgressNotificationParams struct {
	ProgressToken ProgressToken `json:"progressToken"`
	Progress      float64       `json:"progress"`
	Total         *float64      `json:"total,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// PingRequest is a no-op request used to test connectivity.
type PingRequest struct{}

// EmptyResult is returned for operations that do not return data.
type EmptyResult struct {
	BaseMetadata
}

// InitializeRequest starts the MCP initialization handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion" jsonschema:"required"`
	Capabilities    ClientCapabilities `json:"capabilities" jsonschema:"required"`
	ClientInfo      ImplementationInfo `json:"clientInfo" jsonschema:"required"`
}

// InitializeResult returns negotiated capabilities and server info.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion" jsonschema:"required"`
	Capabilities    ServerCapabilities `json:"capabilities" jsonschema:"required"`
	ServerInfo      ImplementationInfo `json:"serverInfo" jsonschema:"required"`
	Instructions    string             `json:"instructions,omitempty"`
	BaseMetadata
}

// InitializedNotification signals that initialization completed.
type InitializedNotification struct{}

// SetLevelRequest sets the peer's logging level.
type SetLevelRequest struct {
	Level LoggingLevel `json:"level"`
}

// LoggingMessageNotification conveys a structured log message.
type LoggingMessageNotification struct {
	Level  LoggingLevel `json:"level"`
	Data   any          `json:"data"`
	Logger string       `json:"logger,omitempty"`
}

// ListRootsRequest requests the root entries.
type ListRootsRequest struct{}

// ListRootsResult returns root entries.
type ListRootsResult struct {
	Roots []Root `json:"roots" jsonschema:"required"`
	BaseMetadata
}

// CreateMessageRequest requests a model-generated message. Message content
// is passed through untouched.
type CreateMessageRequest struct {
	Messages         []SamplingMessage `json:"messages"`
	ModelPreferences json.RawMessage   `json:"modelPreferences,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	IncludeContext   string            `json:"includeContext,omitempty"`
	Temperature      float64           `json:"temperature,omitempty"`
	MaxTokens        int               `json:"maxTokens"`
	StopSequences    []string          `json:"stopSequences,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// CreateMessageResult returns a generated message.
type CreateMessageResult struct {
	Role       Role            `json:"role" jsonschema:"required"`
	Content    json.RawMessage `json:"content" jsonschema:"required"`
	Model      string          `json:"model" jsonschema:"required"`
	StopReason string          `json:"stopReason,omitempty"`
	BaseMetadata
}

// SamplingMessage is a message used as input to model sampling.
type SamplingMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Root identifies a workspace root.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}
