package bus

import (
	"context"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// sessionTimeout mirrors original_source's consumer config
// (session.timeout.ms=6000): short enough that a crashed process's
// partitions rebalance away quickly.
const sessionTimeout = 6 * time.Second

// KafkaConsumer wraps a *kafka.Reader configured for manual offset commit,
// mirroring original_source's enable.auto.offset.store=false consumer
// config: nothing is acknowledged as processed until the caller has
// published the resulting journal envelopes.
type KafkaConsumer struct {
	reader *kafka.Reader
}

// NewKafkaConsumer builds a reader for topic, joining group as a consumer
// group member so partitions rebalance across however many processes are
// assigned the same symbol. Exactly one process per pair at a time is
// still required at the application level; the group only distributes
// partitions of the symbol's own topic.
func NewKafkaConsumer(brokers []string, topic, group string) *KafkaConsumer {
	return &KafkaConsumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        group,
		StartOffset:    kafka.FirstOffset,
		SessionTimeout: sessionTimeout,
		// CommitInterval left at zero: commits happen only via explicit
		// CommitMessages calls, never on an auto-store timer (mirrors
		// original_source's enable.auto.offset.store=false).
		CommitInterval: 0,
	})}
}

func (c *KafkaConsumer) FetchMessage(ctx context.Context) (Message, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset, Key: m.Key, Value: m.Value}, nil
}

func (c *KafkaConsumer) CommitMessages(ctx context.Context, msgs ...Message) error {
	kmsgs := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		kmsgs[i] = kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset, Key: m.Key, Value: m.Value}
	}
	return c.reader.CommitMessages(ctx, kmsgs...)
}

func (c *KafkaConsumer) Close() error { return c.reader.Close() }

// KafkaProducer wraps a *kafka.Writer for the journal output topic.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // key = order id, so one order's envelopes stay ordered on one partition
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *KafkaProducer) WriteMessages(ctx context.Context, msgs ...Message) error {
	kmsgs := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		kmsgs[i] = kafka.Message{Topic: m.Topic, Key: m.Key, Value: m.Value}
	}
	return p.writer.WriteMessages(ctx, kmsgs...)
}

func (p *KafkaProducer) Close() error { return p.writer.Close() }
