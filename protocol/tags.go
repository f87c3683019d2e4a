package protocol

// LocatorTag is the locator service's resolve method: the client sends
// nothing further after the initial invoke (void upstream) and receives
// a single primitive value or error — `(endpoints, version, graph)` on
// success.
var LocatorTag = Tag{
	Name:     "locator::resolve",
	Version:  0,
	Dispatch: PrimitiveNode("locator::resolve"),
	Upstream: VoidNode("locator::resolve::upstream"),
}

// HTTPTag models the HTTP event's two streaming directions, boundary
// shapes only: the worker's Dispatch graph
// carries the request head as the invoke's own args and any request-body
// chunks as the streaming tail; Upstream carries the response head
// `(code, headers)` as its first message, then response-body chunks.
// Parsing either side is a pluggable middleware concern the core does
// not implement — this Tag only guarantees the frames are delivered in
// shape.
var HTTPTag = Tag{
	Name:     "http",
	Version:  0,
	Dispatch: StreamingNode("http::request"),
	Upstream: StreamingNode("http::response"),
}
