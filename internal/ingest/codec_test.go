package ingest

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchex/internal/book"
)

func TestDecode_JSON_NewOrder(t *testing.T) {
	payload := append([]byte{byte(PrefixJSON)}, []byte(
		`{"id":1,"user_id":9,"price":100.5,"quantity":2,"order_type":"Limit","side":"Buy"}`,
	)...)

	cmd, err := Decode(payload, 2)
	require.NoError(t, err)
	order := cmd.(book.NewOrderCommand).Order
	assert.Equal(t, uint64(1), order.ID)
	assert.Equal(t, book.Buy, order.Side)
	assert.Equal(t, book.Limit, order.Kind)
	assert.True(t, order.Price.Equal(mustDecimal(t, "100.5")))
}

func TestDecode_JSON_CancelOrder(t *testing.T) {
	payload := append([]byte{byte(PrefixJSON)}, []byte(
		`{"type":"CancelOrder","id":1,"price":100,"side":"Sell"}`,
	)...)

	cmd, err := Decode(payload, 2)
	require.NoError(t, err)
	cancel := cmd.(book.CancelOrderCommand)
	assert.Equal(t, uint64(1), cancel.ID)
	assert.Equal(t, book.Sell, cancel.Side)
}

func TestDecode_LegacyBinary_NewOrder(t *testing.T) {
	body := make([]byte, legacyNewOrderLen)
	binary.BigEndian.PutUint64(body[0:8], 42)
	binary.BigEndian.PutUint64(body[8:16], 7)
	binary.BigEndian.PutUint64(body[16:24], math.Float64bits(101.25))
	binary.BigEndian.PutUint64(body[24:32], math.Float64bits(3))
	binary.BigEndian.PutUint64(body[32:40], 1_700_000_000_000)
	body[40] = 0 // Limit
	body[41] = 1 // Sell

	payload := append([]byte{byte(PrefixLegacyBinary)}, body...)
	cmd, err := Decode(payload, 2)
	require.NoError(t, err)
	order := cmd.(book.NewOrderCommand).Order
	assert.Equal(t, uint64(42), order.ID)
	assert.Equal(t, book.Sell, order.Side)
	assert.Equal(t, book.Limit, order.Kind)
	assert.True(t, order.Price.Equal(mustDecimal(t, "101.25")))
}

func TestDecode_RejectsPrecisionLoss(t *testing.T) {
	payload := append([]byte{byte(PrefixJSON)}, []byte(
		`{"id":1,"price":100.123,"quantity":1,"order_type":"Limit","side":"Buy"}`,
	)...)
	_, err := Decode(payload, 2)
	assert.Error(t, err)
}

func TestDecode_RejectsUnknownPrefix(t *testing.T) {
	_, err := Decode([]byte{0x09, 0x01}, 2)
	assert.ErrorIs(t, err, ErrUnknownPrefix)
}

func TestDecode_RejectsEmptyPayload(t *testing.T) {
	_, err := Decode(nil, 2)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
