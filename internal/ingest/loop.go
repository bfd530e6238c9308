package ingest

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchex/internal/book"
	"matchex/internal/bus"
	"matchex/internal/catalog"
	"matchex/internal/deadletter"
	"matchex/internal/journal"
	"matchex/internal/metrics"
)

// BackoffPolicy configures the bounded exponential backoff with jitter
// used between transport retries.
type BackoffPolicy struct {
	Initial   time.Duration
	Max       time.Duration
	JitterPct int
}

func (p BackoffPolicy) next(attempt int) time.Duration {
	d := p.Initial << attempt
	if d > p.Max || d <= 0 {
		d = p.Max
	}
	if p.JitterPct <= 0 {
		return d
	}
	jitter := time.Duration(rand.Int63n(int64(d) * int64(p.JitterPct) / 100))
	return d + jitter
}

// Loop drives one symbol's ingestion: fetch, decode, apply, publish,
// commit. Uses the same tomb.v2-supervised goroutine shape a
// Run/sessionHandler pair would, with a Kafka consume loop in place of
// a TCP accept loop since input now arrives over the bus rather than a
// client socket.
type Loop struct {
	Symbol        catalog.Symbol
	Book          *book.OrderBook
	Consumer      bus.Consumer
	Producer      bus.Producer
	DeadLetter    deadletter.Sink
	Metrics       *metrics.Registry
	DecodeRetries int
	Backoff       BackoffPolicy

	OutputTopic string
}

// Run executes the loop until t is dying or ctx is canceled. It never
// returns a non-nil error for ordinary shutdown; transport errors are
// retried with backoff and recovered locally rather than propagated.
func (l *Loop) Run(t *tomb.Tomb) error {
	ctx := t.Context(nil)

	attempt := 0
	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		msg, err := l.Consumer.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, bus.ErrDrained) {
				return nil
			}
			log.Error().Err(err).Str("symbol", l.Symbol.Name()).Msg("fetch message failed")
			if !sleepOrDone(ctx, l.Backoff.next(attempt)) {
				return nil
			}
			attempt++
			continue
		}
		attempt = 0

		if err := l.handle(ctx, msg); err != nil {
			log.Error().Err(err).Str("symbol", l.Symbol.Name()).Msg("handle message failed")
			if !sleepOrDone(ctx, l.Backoff.next(0)) {
				return nil
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// handle decodes one message, applies it to the book, publishes the
// resulting journal events, and commits the offset only after a
// successful publish.
func (l *Loop) handle(ctx context.Context, msg bus.Message) error {
	cmd, err := l.decodeWithRetries(ctx, msg)
	if err != nil {
		return l.handleDecodeFailure(ctx, msg, err)
	}

	start := time.Now()
	events, seq := l.Book.Apply(cmd)
	if l.Metrics != nil {
		l.Metrics.ApplyDuration.WithLabelValues(l.Symbol.Name()).Observe(time.Since(start).Seconds())
	}
	l.observe(events)

	outbound := make([]bus.Message, 0, len(events))
	key := orderKey(cmd)
	for _, evt := range events {
		env, err := journal.NewEnvelope(seq, l.Symbol.Name(), evt)
		if err != nil {
			return fmt.Errorf("ingest: marshal envelope: %w", err)
		}
		payload, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("ingest: marshal envelope: %w", err)
		}
		outbound = append(outbound, bus.Message{Topic: l.OutputTopic, Key: key, Value: payload})
	}

	if len(outbound) > 0 {
		if err := l.Producer.WriteMessages(ctx, outbound...); err != nil {
			return fmt.Errorf("ingest: publish: %w", err)
		}
	}
	return l.Consumer.CommitMessages(ctx, msg)
}

// decodeWithRetries attempts to decode msg up to DecodeRetries times
// against this same fetched value, sleeping on the backoff schedule
// between attempts. Nothing re-fetches msg.Offset from the consumer:
// Kafka and the fake consumer both always advance past a fetched
// offset, so retries have to happen here, against the bytes already in
// hand, not across separate FetchMessage calls.
func (l *Loop) decodeWithRetries(ctx context.Context, msg bus.Message) (book.Command, error) {
	var lastErr error
	for attempt := 0; attempt < l.DecodeRetries; attempt++ {
		cmd, err := Decode(msg.Value, l.Symbol.Scale)
		if err == nil {
			return cmd, nil
		}
		lastErr = err
		if l.Metrics != nil {
			l.Metrics.DecodeErrors.WithLabelValues(l.Symbol.Name()).Inc()
		}
		log.Warn().Err(err).Str("symbol", l.Symbol.Name()).Int64("offset", msg.Offset).
			Int("attempt", attempt+1).Msg("decode failed")
		if attempt < l.DecodeRetries-1 {
			if !sleepOrDone(ctx, l.Backoff.next(attempt)) {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (l *Loop) handleDecodeFailure(ctx context.Context, msg bus.Message, decodeErr error) error {
	log.Error().Err(decodeErr).Str("symbol", l.Symbol.Name()).Int64("offset", msg.Offset).
		Int("attempts", l.DecodeRetries).Msg("decode retries exhausted, dead-lettering")

	if l.DeadLetter != nil {
		if err := l.DeadLetter.Push(ctx, l.Symbol.Name(), msg.Value); err != nil {
			log.Error().Err(err).Str("symbol", l.Symbol.Name()).Msg("dead-letter push failed")
		}
	}
	// Retries exhausted: skip past the poison message rather than stall
	// the partition forever.
	return l.Consumer.CommitMessages(ctx, msg)
}

func (l *Loop) observe(events []journal.Event) {
	if l.Metrics == nil {
		return
	}
	for _, evt := range events {
		switch e := evt.(type) {
		case journal.OrderRejected:
			l.Metrics.OrdersRejected.WithLabelValues(string(e.Reason)).Inc()
		case journal.CancelRejected:
			l.Metrics.OrdersRejected.WithLabelValues(string(e.Reason)).Inc()
		case journal.Trade:
			l.Metrics.Trades.WithLabelValues(l.Symbol.Name()).Inc()
		}
	}
}

// orderKey extracts the message key (the order id, big-endian) so
// downstream consumers can partition on it and preserve per-order
// ordering.
func orderKey(cmd book.Command) []byte {
	var id uint64
	switch c := cmd.(type) {
	case book.NewOrderCommand:
		id = c.Order.ID
	case book.CancelOrderCommand:
		id = c.ID
	default:
		return nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// Topics returns the input/output topic and consumer group names for a
// symbol.
func Topics(sym catalog.Symbol) (input, output, group string) {
	base, quote := sym.Base, sym.Quote
	return base + "_" + quote + "_SpotNewOrder",
		base + "_" + quote + "_SpotMatchResult",
		base + "_" + quote + "_group"
}
