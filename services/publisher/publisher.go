package publisher

// Publisher represents a service for announcing finished partitions to
// downstream consumers.
type Publisher interface {
	// Publish publishes a message under a key
	Publish(key string, message []byte) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(string, []byte) error { return nil }
func (Noop) TrimStreams() error           { return nil }
func (Noop) Close() error                 { return nil }
