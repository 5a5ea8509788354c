// CLAUDE:SUMMARY Transport-agnostic Endpoint type and Middleware chaining used by sitegen tools and audit.
package kit

import "context"

// Endpoint is a single business operation, independent of the transport
// that decoded its request.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(next Endpoint) Endpoint

// Chain composes middlewares so that the first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
