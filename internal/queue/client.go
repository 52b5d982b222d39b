package queue

import "context"

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Handler processes a raw queue payload. A nil return acknowledges the
// job; an error triggers the backend's retry policy.
type Handler func(ctx context.Context, body string) error
