package mcpclient

import (
	"github.com/ggoodman/mcp-protocol-go/mcp"
	"github.com/ggoodman/mcp-protocol-go/protocol"
)

// checker applies the client capability rules. Outbound requests are checked
// against the server's capabilities; notifications and handlers against the
// client's own.
type checker struct{ c *Client }

func (k checker) AssertCapabilityForMethod(method string) error {
	server := k.c.ServerCapabilities()
	missing := func(capability string) error {
		return &protocol.CapabilityError{Method: method, Capability: capability, Peer: true}
	}

	switch mcp.Method(method) {
	case mcp.LoggingSetLevelMethod:
		if server.Logging == nil {
			return missing("logging")
		}
	case mcp.PromptsGetMethod, mcp.PromptsListMethod:
		if server.Prompts == nil {
			return missing("prompts")
		}
	case mcp.ResourcesListMethod, mcp.ResourcesTemplatesListMethod, mcp.ResourcesReadMethod,
		mcp.ResourcesSubscribeMethod, mcp.ResourcesUnsubscribeMethod:
		if server.Resources == nil {
			return missing("resources")
		}
		if mcp.Method(method) == mcp.ResourcesSubscribeMethod && !server.Resources.Subscribe {
			return missing("resources.subscribe")
		}
	case mcp.ToolsCallMethod, mcp.ToolsListMethod:
		if server.Tools == nil {
			return missing("tools")
		}
	case mcp.CompletionCompleteMethod:
		if server.Completions == nil {
			return missing("completions")
		}
	}
	return nil
}

func (k checker) AssertNotificationCapability(method string) error {
	if mcp.Method(method) == mcp.RootsListChangedNotificationMethod {
		local := k.c.Capabilities()
		if local.Roots == nil || !local.Roots.ListChanged {
			return &protocol.CapabilityError{Method: method, Capability: "roots.listChanged"}
		}
	}
	return nil
}

func (k checker) AssertRequestHandlerCapability(method string) error {
	local := k.c.Capabilities()
	missing := func(capability string) error {
		return &protocol.CapabilityError{Method: method, Capability: capability}
	}

	switch mcp.Method(method) {
	case mcp.SamplingCreateMessageMethod:
		if local.Sampling == nil {
			return missing("sampling")
		}
	case mcp.ElicitationCreateMethod:
		if local.Elicitation == nil {
			return missing("elicitation")
		}
	case mcp.RootsListMethod:
		if local.Roots == nil {
			return missing("roots")
		}
	}
	return nil
}
