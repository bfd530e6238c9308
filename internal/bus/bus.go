// Package bus adapts the event bus (Kafka) to the narrow interfaces
// internal/ingest needs, so the ingestion loop can be tested against a
// fake without a broker, the same way a TCP accept loop can be hidden
// behind a small interface so a real listener and a stub are
// interchangeable in tests.
package bus

import "context"

// Message is one record read from or written to a topic partition.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

// Consumer reads messages from one or more partitions assigned to this
// process and commits offsets once the caller has durably processed them.
// Implementations provide at-least-once delivery: exactly-once replay is
// out of scope, only whatever guarantee the underlying bus provides.
type Consumer interface {
	FetchMessage(ctx context.Context) (Message, error)
	CommitMessages(ctx context.Context, msgs ...Message) error
	Close() error
}

// Producer publishes journal envelopes to the output topic.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...Message) error
	Close() error
}
