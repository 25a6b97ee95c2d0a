package queue

import "context"

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Delivery is one received message plus the handle needed to acknowledge it.
type Delivery struct {
	Body         string
	Receipt      string
	ReceiveCount int
}

// Consumer receives deliveries from a queue backend. Delivery is
// at-least-once: a message that is never acknowledged comes back.
type Consumer interface {
	// Receive blocks up to the backend's wait interval and returns zero or
	// more deliveries. An empty slice with a nil error means "nothing yet".
	Receive(ctx context.Context) ([]Delivery, error)
	// Ack removes a delivered message so it is not redelivered.
	Ack(ctx context.Context, receipt string) error
}
