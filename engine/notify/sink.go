package notify

import "context"

// Sink receives every emitted notification in emission order.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Publish(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
