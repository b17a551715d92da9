package llm

import "context"

// Client is implemented by every remote planning provider.
type Client interface {
	// Send performs one request/response round-trip.
	Send(ctx context.Context, req *Request) (*Response, error)
}
