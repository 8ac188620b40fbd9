// Package transport defines the contract shared by the network listeners.
//
// The daemon runs every transport (HTTP API, gRPC health) side by side and
// stops them together. Transports hold no job state; they call into the
// job manager and post-processors they were built with.
package transport

import "context"

// Transport is the interface that every listener must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "http", "grpc").
	Name() string

	// Listen accepts connections until the context is cancelled.
	Listen(ctx context.Context) error

	// Close gracefully shuts down the transport, draining in-flight requests.
	Close() error
}
