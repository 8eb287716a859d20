package protocol

// CapabilityChecker holds the capability rules of one side of a connection.
// The client and server peers provide implementations.
type CapabilityChecker interface {
	// AssertCapabilityForMethod checks that the peer supports an outbound
	// request. It is consulted only in strict mode.
	AssertCapabilityForMethod(method string) error
	// AssertNotificationCapability checks that the local side advertised the
	// capability behind an outbound notification. It is consulted only in
	// strict mode.
	AssertNotificationCapability(method string) error
	// AssertRequestHandlerCapability checks that the local side advertised
	// the capability behind a request handler being registered.
	AssertRequestHandlerCapability(method string) error
}
