package mcpserver

import (
	"strings"

	"github.com/ggoodman/mcp-protocol-go/mcp"
	"github.com/ggoodman/mcp-protocol-go/protocol"
)

// checker applies the server capability rules. Outbound requests are checked
// against the client's capabilities; notifications and handlers against the
// server's own.
type checker struct{ s *Server }

func (k checker) AssertCapabilityForMethod(method string) error {
	client := k.s.ClientCapabilities()
	missing := func(capability string) error {
		return &protocol.CapabilityError{Method: method, Capability: capability, Peer: true}
	}

	switch mcp.Method(method) {
	case mcp.SamplingCreateMessageMethod:
		if client.Sampling == nil {
			return missing("sampling")
		}
	case mcp.ElicitationCreateMethod:
		if client.Elicitation == nil {
			return missing("elicitation")
		}
	case mcp.RootsListMethod:
		if client.Roots == nil {
			return missing("roots")
		}
	}
	return nil
}

func (k checker) AssertNotificationCapability(method string) error {
	local := k.s.Capabilities()
	missing := func(capability string) error {
		return &protocol.CapabilityError{Method: method, Capability: capability}
	}

	switch mcp.Method(method) {
	case mcp.LoggingMessageNotificationMethod:
		if local.Logging == nil {
			return missing("logging")
		}
	case mcp.ResourcesUpdatedNotificationMethod, mcp.ResourcesListChangedNotificationMethod:
		if local.Resources == nil {
			return missing("resources")
		}
	case mcp.ToolsListChangedNotificationMethod:
		if local.Tools == nil {
			return missing("tools")
		}
	case mcp.PromptsListChangedNotificationMethod:
		if local.Prompts == nil {
			return missing("prompts")
		}
	}
	return nil
}

func (k checker) AssertRequestHandlerCapability(method string) error {
	local := k.s.Capabilities()
	missing := func(capability string) error {
		return &protocol.CapabilityError{Method: method, Capability: capability}
	}

	switch {
	case method == string(mcp.CompletionCompleteMethod):
		if local.Completions == nil {
			return missing("completions")
		}
	case method == string(mcp.LoggingSetLevelMethod):
		if local.Logging == nil {
			return missing("logging")
		}
	case strings.HasPrefix(method, "prompts/"):
		if local.Prompts == nil {
			return missing("prompts")
		}
	case strings.HasPrefix(method, "resources/"):
		if local.Resources == nil {
			return missing("resources")
		}
	case strings.HasPrefix(method, "tools/"):
		if local.Tools == nil {
			return missing("tools")
		}
	}
	return nil
}
