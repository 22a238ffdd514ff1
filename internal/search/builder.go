package search

// Processor rewrites a request. Implementations must be pure transforms.
type Processor interface {
	ProcessSearchRequest(req Request) Request
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(Request) Request

// ProcessSearchRequest calls f(req).
func (f ProcessorFunc) ProcessSearchRequest(req Request) Request {
	return f(req)
}

// Builder turns raw terms into requests, running the configured processors
// in order.
type Builder struct {
	processors []Processor
}

// NewBuilder returns a Builder applying processors in the given order.
func NewBuilder(processors ...Processor) *Builder {
	return &Builder{processors: processors}
}

// Build parses terms and applies every processor in sequence.
func (b *Builder) Build(terms []string) Request {
	req := NewRequest(terms)
	if b == nil {
		return req
	}
	for _, p := range b.processors {
		req = p.ProcessSearchRequest(req)
	}
	return req
}
