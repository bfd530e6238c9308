// Package ingest holds the per-symbol consumer loop: decode, apply,
// publish, commit. codec.go follows the MessageType-prefixed binary
// record style (decoded with encoding/binary), generalized to the two
// accepted order command encodings.
package ingest

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"matchex/internal/book"
	"matchex/internal/pricing"
)

// Prefix identifies which encoding follows the first byte of a command
// payload, in place of a MessageType discriminator (Heartbeat/NewOrder/
// CancelOrder) with the two wire forms actually accepted here.
type Prefix byte

const (
	PrefixJSON         Prefix = 0x00
	PrefixLegacyBinary Prefix = 0x01
)

// legacyNewOrderLen is the fixed size of the schema-described binary
// record: id:u64, user_id:u64, price:f64, quantity:f64, timestamp:u64,
// order_type:u8, side:u8.
const legacyNewOrderLen = 8 + 8 + 8 + 8 + 8 + 1 + 1

var (
	ErrEmptyPayload    = errors.New("ingest: empty payload")
	ErrUnknownPrefix   = errors.New("ingest: unknown encoding prefix")
	ErrPayloadTooShort = errors.New("ingest: legacy binary payload too short")
	ErrUnknownJSONType = errors.New("ingest: unknown JSON command type")
)

// jsonCommand mirrors the accepted JSON command object, plus a "type"
// discriminator so CancelOrder can share the JSON encoding (only a
// binary form is defined for NewOrder).
type jsonCommand struct {
	Type      string  `json:"type,omitempty"`
	ID        uint64  `json:"id"`
	UserID    uint64  `json:"user_id"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Timestamp uint64  `json:"timestamp"`
	OrderType string  `json:"order_type"`
	Side      string  `json:"side"`
}

// Decode turns a raw bus message payload into a book.Command, converting
// legacy float64 prices/quantities to fixed decimal at scale and
// rejecting values that don't round-trip exactly.
func Decode(payload []byte, scale pricing.Scale) (book.Command, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	switch Prefix(payload[0]) {
	case PrefixJSON:
		return decodeJSON(payload[1:], scale)
	case PrefixLegacyBinary:
		return decodeLegacyBinary(payload[1:], scale)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownPrefix, payload[0])
	}
}

func decodeJSON(body []byte, scale pricing.Scale) (book.Command, error) {
	var jc jsonCommand
	if err := json.Unmarshal(body, &jc); err != nil {
		return nil, fmt.Errorf("ingest: decode json: %w", err)
	}

	side, err := parseSide(jc.Side)
	if err != nil {
		return nil, err
	}

	switch jc.Type {
	case "", "NewOrder":
		price, err := pricing.FromFloat64(jc.Price, scale)
		if err != nil {
			return nil, fmt.Errorf("ingest: price: %w", err)
		}
		qty, err := pricing.FromFloat64(jc.Quantity, scale)
		if err != nil {
			return nil, fmt.Errorf("ingest: quantity: %w", err)
		}
		kind, err := parseOrderKind(jc.OrderType)
		if err != nil {
			return nil, err
		}
		return book.NewOrderCommand{Order: book.Order{
			ID:       jc.ID,
			UserID:   jc.UserID,
			Side:     side,
			Kind:     kind,
			Price:    price,
			Quantity: qty,
		}}, nil
	case "CancelOrder":
		price, err := pricing.FromFloat64(jc.Price, scale)
		if err != nil {
			return nil, fmt.Errorf("ingest: price: %w", err)
		}
		return book.CancelOrderCommand{ID: jc.ID, Side: side, Price: price}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJSONType, jc.Type)
	}
}

func decodeLegacyBinary(body []byte, scale pricing.Scale) (book.Command, error) {
	if len(body) < legacyNewOrderLen {
		return nil, ErrPayloadTooShort
	}
	id := binary.BigEndian.Uint64(body[0:8])
	userID := binary.BigEndian.Uint64(body[8:16])
	priceBits := binary.BigEndian.Uint64(body[16:24])
	qtyBits := binary.BigEndian.Uint64(body[24:32])
	_ = binary.BigEndian.Uint64(body[32:40]) // timestamp: engine-assigned on accept, not trusted from the wire
	orderType := body[40]
	side := body[41]

	price, err := pricing.FromFloat64(math.Float64frombits(priceBits), scale)
	if err != nil {
		return nil, fmt.Errorf("ingest: price: %w", err)
	}
	qty, err := pricing.FromFloat64(math.Float64frombits(qtyBits), scale)
	if err != nil {
		return nil, fmt.Errorf("ingest: quantity: %w", err)
	}

	var kind book.OrderKind
	switch orderType {
	case 0:
		kind = book.Limit
	case 1:
		kind = book.Market
	default:
		return nil, fmt.Errorf("ingest: unknown order_type byte 0x%02x", orderType)
	}

	var s book.Side
	switch side {
	case 0:
		s = book.Buy
	case 1:
		s = book.Sell
	default:
		return nil, fmt.Errorf("ingest: unknown side byte 0x%02x", side)
	}

	return book.NewOrderCommand{Order: book.Order{
		ID:       id,
		UserID:   userID,
		Side:     s,
		Kind:     kind,
		Price:    price,
		Quantity: qty,
	}}, nil
}

func parseSide(s string) (book.Side, error) {
	switch s {
	case "Buy":
		return book.Buy, nil
	case "Sell":
		return book.Sell, nil
	default:
		return 0, fmt.Errorf("ingest: unknown side %q", s)
	}
}

func parseOrderKind(s string) (book.OrderKind, error) {
	switch s {
	case "Limit":
		return book.Limit, nil
	case "Market":
		return book.Market, nil
	default:
		return 0, fmt.Errorf("ingest: unknown order_type %q", s)
	}
}
