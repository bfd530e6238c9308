// Package journal defines the tagged union of outcomes an order book
// produces from apply, and their wire envelope for the output topic.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"matchex/internal/pricing"
)

// Kind identifies the concrete event carried by an Envelope.
type Kind string

const (
	KindOrderAccepted  Kind = "OrderAccepted"
	KindOrderRested    Kind = "OrderRested"
	KindOrderFilled    Kind = "OrderFilled"
	KindOrderCanceled  Kind = "OrderCanceled"
	KindOrderRejected  Kind = "OrderRejected"
	KindCancelRejected Kind = "CancelRejected"
	KindTrade          Kind = "Trade"
)

// RejectReason enumerates why an order or cancel was not applied.
type RejectReason string

const (
	ReasonInvalidInput   RejectReason = "InvalidInput"
	ReasonDuplicateID    RejectReason = "DuplicateId"
	ReasonNotFound       RejectReason = "NotFound"
	ReasonMarketUnfilled RejectReason = "MarketUnfilled"
)

// Event is implemented by every concrete journal event. Kind is used to tag
// the JSON envelope so a downstream consumer can dispatch on it without
// reflection.
type Event interface {
	Kind() Kind
}

type OrderAccepted struct {
	ID uint64 `json:"id"`
}

func (OrderAccepted) Kind() Kind { return KindOrderAccepted }

type OrderRested struct {
	ID       uint64          `json:"id"`
	Side     string          `json:"side"`
	Price    pricing.Decimal `json:"price"`
	Quantity pricing.Decimal `json:"quantity"`
}

func (OrderRested) Kind() Kind { return KindOrderRested }

type OrderFilled struct {
	ID uint64 `json:"id"`
}

func (OrderFilled) Kind() Kind { return KindOrderFilled }

type OrderCanceled struct {
	ID        uint64          `json:"id"`
	Remaining pricing.Decimal `json:"remaining"`
	Reason    RejectReason    `json:"reason,omitempty"`
}

func (OrderCanceled) Kind() Kind { return KindOrderCanceled }

type OrderRejected struct {
	ID     uint64       `json:"id"`
	Reason RejectReason `json:"reason"`
}

func (OrderRejected) Kind() Kind { return KindOrderRejected }

type CancelRejected struct {
	ID     uint64       `json:"id"`
	Reason RejectReason `json:"reason"`
}

func (CancelRejected) Kind() Kind { return KindCancelRejected }

type Trade struct {
	BuyOrderID  uint64          `json:"buy_order_id"`
	SellOrderID uint64          `json:"sell_order_id"`
	Price       pricing.Decimal `json:"price"`
	Quantity    pricing.Decimal `json:"quantity"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (Trade) Kind() Kind { return KindTrade }

// Envelope is the wire wrapper published to the output topic. Seq is the
// per-book monotonically increasing sequence number apply assigned; events
// produced by the same apply call share the same command-assigned prefix,
// with Trade events preceding the terminal disposition event for that
// command.
type Envelope struct {
	Seq     uint64          `json:"seq"`
	Symbol  string          `json:"symbol"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals evt into an Envelope ready for publishing.
func NewEnvelope(seq uint64, symbol string, evt Event) (Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("journal: marshal %s: %w", evt.Kind(), err)
	}
	return Envelope{Seq: seq, Symbol: symbol, Kind: evt.Kind(), Payload: payload}, nil
}

// Unmarshal decodes the envelope's payload into the concrete event type
// indicated by its Kind.
func (e Envelope) Unmarshal() (Event, error) {
	var evt Event
	switch e.Kind {
	case KindOrderAccepted:
		evt = &OrderAccepted{}
	case KindOrderRested:
		evt = &OrderRested{}
	case KindOrderFilled:
		evt = &OrderFilled{}
	case KindOrderCanceled:
		evt = &OrderCanceled{}
	case KindOrderRejected:
		evt = &OrderRejected{}
	case KindCancelRejected:
		evt = &CancelRejected{}
	case KindTrade:
		evt = &Trade{}
	default:
		return nil, fmt.Errorf("journal: unknown event kind %q", e.Kind)
	}
	if err := json.Unmarshal(e.Payload, evt); err != nil {
		return nil, fmt.Errorf("journal: unmarshal %s: %w", e.Kind, err)
	}
	return evt, nil
}
