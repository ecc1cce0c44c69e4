// Package llm provides the model gateway: pluggable narrative backends
// behind a single contract.
package llm

import "context"

// Message is one entry of the outbound conversation, provider-neutral.
// Role is "user" or "model"; each backend converts to its own wire
// vocabulary.
type Message struct {
	Role    string
	Content string
}

// Client is the interface every narrative backend must implement.
type Client interface {
	// Generate sends one compiled turn (system instructions plus the
	// conversation so far) and returns the backend's raw text output.
	// The text is expected, but not guaranteed, to be a single JSON
	// object matching the response contract; validation happens in the
	// caller. Transient upstream failures are retried internally; the
	// returned error means the attempt budget is exhausted.
	Generate(ctx context.Context, instructions string, conversation []Message) (string, error)

	// Name identifies the backend in logs and fallback narratives.
	Name() string
}
