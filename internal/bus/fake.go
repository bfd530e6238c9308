package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrDrained is returned by FakeConsumer once its preloaded messages are
// exhausted, so loop tests can distinguish "no more input" from "transport
// error" without a real broker timeout.
var ErrDrained = errors.New("bus: fake consumer drained")

// FakeConsumer is an in-memory Consumer for tests: it replays a fixed
// slice of messages and records which offsets were committed.
type FakeConsumer struct {
	mu        sync.Mutex
	pending   []Message
	Committed []Message
}

func NewFakeConsumer(msgs ...Message) *FakeConsumer {
	return &FakeConsumer{pending: msgs}
}

func (c *FakeConsumer) FetchMessage(ctx context.Context) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return Message{}, ErrDrained
	}
	m := c.pending[0]
	c.pending = c.pending[1:]
	return m, nil
}

func (c *FakeConsumer) CommitMessages(ctx context.Context, msgs ...Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Committed = append(c.Committed, msgs...)
	return nil
}

func (c *FakeConsumer) Close() error { return nil }

// FakeProducer records every message written to it.
type FakeProducer struct {
	mu      sync.Mutex
	Written []Message
}

func NewFakeProducer() *FakeProducer { return &FakeProducer{} }

func (p *FakeProducer) WriteMessages(ctx context.Context, msgs ...Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Written = append(p.Written, msgs...)
	return nil
}

func (p *FakeProducer) Close() error { return nil }
