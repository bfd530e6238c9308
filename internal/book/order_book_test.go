package book

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchex/internal/journal"
)

func newTestBook() *OrderBook {
	b := New("BTC/USDT", 2)
	tick := time.UnixMilli(1_700_000_000_000)
	b.Clock = func() time.Time { return tick }
	return b
}

func d(v string) decimal.Decimal {
	dec, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return dec
}

func newOrder(id uint64, side Side, kind OrderKind, price, qty string) Order {
	return Order{
		ID:       id,
		Side:     side,
		Kind:     kind,
		Price:    d(price),
		Quantity: d(qty),
	}
}

// Scenario 1: simple cross.
func TestScenario_SimpleCross(t *testing.T) {
	b := newTestBook()

	events, _ := b.Apply(NewOrderCommand{Order: newOrder(1, Buy, Limit, "100", "10")})
	assert.Equal(t, []journal.Event{
		journal.OrderAccepted{ID: 1},
		journal.OrderRested{ID: 1, Side: "Buy", Price: d("100"), Quantity: d("10")},
	}, events)

	events, _ = b.Apply(NewOrderCommand{Order: newOrder(2, Sell, Limit, "100", "4")})
	require.Len(t, events, 3)
	assert.Equal(t, journal.OrderAccepted{ID: 2}, events[0])
	trade := events[1].(journal.Trade)
	assert.Equal(t, uint64(1), trade.BuyOrderID)
	assert.Equal(t, uint64(2), trade.SellOrderID)
	assert.True(t, trade.Price.Equal(d("100")))
	assert.True(t, trade.Quantity.Equal(d("4")))
	assert.Equal(t, journal.OrderFilled{ID: 2}, events[2])

	bids, asks := b.Snapshot(10)
	require.Len(t, bids, 1)
	assert.True(t, bids[0].Price.Equal(d("100")))
	assert.True(t, bids[0].Quantity.Equal(d("6")))
	assert.Empty(t, asks)
}

// Scenario 2: partial sweep across levels.
func TestScenario_PartialSweepAcrossLevels(t *testing.T) {
	b := newTestBook()
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(10, Sell, Limit, "101", "5")})
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(11, Sell, Limit, "102", "5")})

	events, _ := b.Apply(NewOrderCommand{Order: newOrder(20, Buy, Limit, "102", "8")})
	var trades []journal.Trade
	for _, e := range events {
		if tr, ok := e.(journal.Trade); ok {
			trades = append(trades, tr)
		}
	}
	require.Len(t, trades, 2)
	assert.True(t, trades[0].Price.Equal(d("101")))
	assert.True(t, trades[0].Quantity.Equal(d("5")))
	assert.True(t, trades[1].Price.Equal(d("102")))
	assert.True(t, trades[1].Quantity.Equal(d("3")))
	assert.Equal(t, journal.OrderFilled{ID: 20}, events[len(events)-1])

	_, asks := b.Snapshot(10)
	require.Len(t, asks, 1)
	assert.True(t, asks[0].Price.Equal(d("102")))
	assert.True(t, asks[0].Quantity.Equal(d("2")))
}

// Scenario 3: market order with insufficient liquidity.
func TestScenario_MarketUnfilled(t *testing.T) {
	b := newTestBook()
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(30, Sell, Limit, "100", "2")})

	events, _ := b.Apply(NewOrderCommand{Order: newOrder(31, Buy, Market, "0", "5")})
	require.Len(t, events, 3)
	trade := events[1].(journal.Trade)
	assert.True(t, trade.Price.Equal(d("100")))
	assert.True(t, trade.Quantity.Equal(d("2")))
	assert.Equal(t, journal.OrderCanceled{ID: 31, Remaining: d("3"), Reason: journal.ReasonMarketUnfilled}, events[2])

	_, asks := b.Snapshot(10)
	assert.Empty(t, asks)
}

// I4 (market orders): an id that already produced a partial fill under
// MarketUnfilled stays permanently consumed, the same as a filled or
// rested id, rather than being freed for reuse by a later order.
func TestApply_MarketUnfilledIDIsNotReusable(t *testing.T) {
	b := newTestBook()
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(30, Sell, Limit, "100", "2")})
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(31, Buy, Market, "0", "5")})

	events, _ := b.Apply(NewOrderCommand{Order: newOrder(31, Sell, Limit, "101", "1")})
	assert.Equal(t, []journal.Event{journal.OrderRejected{ID: 31, Reason: journal.ReasonDuplicateID}}, events)
}

// Scenario 4: limit non-cross then later cross.
func TestScenario_LimitNonCrossThenCross(t *testing.T) {
	b := newTestBook()
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(40, Buy, Limit, "99", "1")})

	events, _ := b.Apply(NewOrderCommand{Order: newOrder(41, Sell, Limit, "100", "1")})
	assert.Equal(t, []journal.Event{
		journal.OrderAccepted{ID: 41},
		journal.OrderRested{ID: 41, Side: "Sell", Price: d("100"), Quantity: d("1")},
	}, events)

	events, _ = b.Apply(NewOrderCommand{Order: newOrder(42, Buy, Market, "0", "1")})
	require.Len(t, events, 3)
	trade := events[1].(journal.Trade)
	assert.Equal(t, uint64(42), trade.BuyOrderID)
	assert.Equal(t, uint64(41), trade.SellOrderID)
	assert.Equal(t, journal.OrderFilled{ID: 42}, events[2])
}

// Scenario 5: time priority.
func TestScenario_TimePriority(t *testing.T) {
	b := newTestBook()
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(50, Buy, Limit, "100", "3")})
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(51, Buy, Limit, "100", "3")})

	events, _ := b.Apply(NewOrderCommand{Order: newOrder(52, Sell, Market, "0", "4")})
	var trades []journal.Trade
	for _, e := range events {
		if tr, ok := e.(journal.Trade); ok {
			trades = append(trades, tr)
		}
	}
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(50), trades[0].BuyOrderID)
	assert.True(t, trades[0].Quantity.Equal(d("3")))
	assert.Equal(t, uint64(51), trades[1].BuyOrderID)
	assert.True(t, trades[1].Quantity.Equal(d("1")))

	bids, _ := b.Snapshot(10)
	require.Len(t, bids, 1)
	assert.True(t, bids[0].Quantity.Equal(d("2")))
}

// Scenario 6: cancel then re-place.
func TestScenario_CancelThenReplace(t *testing.T) {
	b := newTestBook()
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(60, Buy, Limit, "100", "5")})

	events, _ := b.Apply(CancelOrderCommand{ID: 60, Side: Buy, Price: d("100")})
	assert.Equal(t, []journal.Event{journal.OrderCanceled{ID: 60, Remaining: d("5")}}, events)

	events, _ = b.Apply(NewOrderCommand{Order: newOrder(61, Sell, Limit, "100", "5")})
	assert.Equal(t, []journal.Event{
		journal.OrderAccepted{ID: 61},
		journal.OrderRested{ID: 61, Side: "Sell", Price: d("100"), Quantity: d("5")},
	}, events)
}

// P3: idempotence of cancel for unknown ids.
func TestCancel_UnknownIDIsIdempotent(t *testing.T) {
	b := newTestBook()
	for i := 0; i < 2; i++ {
		events, _ := b.Apply(CancelOrderCommand{ID: 999, Side: Buy, Price: d("100")})
		assert.Equal(t, []journal.Event{journal.CancelRejected{ID: 999, Reason: journal.ReasonNotFound}}, events)
	}
	assert.Equal(t, 0, b.Len())
}

// Invalid input: non-positive quantity and non-positive limit price.
func TestApply_RejectsInvalidInput(t *testing.T) {
	b := newTestBook()

	events, _ := b.Apply(NewOrderCommand{Order: newOrder(1, Buy, Limit, "100", "0")})
	assert.Equal(t, []journal.Event{journal.OrderRejected{ID: 1, Reason: journal.ReasonInvalidInput}}, events)

	events, _ = b.Apply(NewOrderCommand{Order: newOrder(2, Buy, Limit, "0", "5")})
	assert.Equal(t, []journal.Event{journal.OrderRejected{ID: 2, Reason: journal.ReasonInvalidInput}}, events)

	assert.Equal(t, 0, b.Len())
}

// I4: a duplicate of a still-resting id is rejected. An id that is already
// gone is covered by TestApply_MarketUnfilledIDIsNotReusable.
func TestApply_RejectsDuplicateID(t *testing.T) {
	b := newTestBook()
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(1, Buy, Limit, "100", "5")})

	events, _ := b.Apply(NewOrderCommand{Order: newOrder(1, Sell, Limit, "101", "1")})
	assert.Equal(t, []journal.Event{journal.OrderRejected{ID: 1, Reason: journal.ReasonDuplicateID}}, events)
}

// Sequence numbers are gapless and per-call.
func TestApply_SequenceIsGaplessPerCall(t *testing.T) {
	b := newTestBook()
	_, seq1 := b.Apply(NewOrderCommand{Order: newOrder(1, Buy, Limit, "100", "5")})
	_, seq2 := b.Apply(NewOrderCommand{Order: newOrder(2, Sell, Limit, "100", "2")})
	assert.Equal(t, uint64(1), seq1)
	assert.Equal(t, uint64(2), seq2)
}

// I3: equal-price limit buy crosses the best ask (open question resolved:
// equal prices cross).
func TestApply_EqualPriceCrosses(t *testing.T) {
	b := newTestBook()
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(1, Sell, Limit, "100", "5")})
	events, _ := b.Apply(NewOrderCommand{Order: newOrder(2, Buy, Limit, "100", "5")})

	var sawTrade bool
	for _, e := range events {
		if _, ok := e.(journal.Trade); ok {
			sawTrade = true
		}
	}
	assert.True(t, sawTrade)
	_, asks := b.Snapshot(10)
	assert.Empty(t, asks)
}

// P2: quantity conservation. Traded + rested/canceled-remaining always
// equals the incoming order's original quantity, across a mix of
// outcomes (partial fill then rest, and partial fill then market
// cancel).
func TestApply_QuantityConservation(t *testing.T) {
	b := newTestBook()
	_, _ = b.Apply(NewOrderCommand{Order: newOrder(1, Sell, Limit, "100", "3")})

	events, _ := b.Apply(NewOrderCommand{Order: newOrder(2, Buy, Limit, "100", "10")})
	traded := d("0")
	restedQty := d("0")
	for _, e := range events {
		switch ev := e.(type) {
		case journal.Trade:
			traded = traded.Add(ev.Quantity)
		case journal.OrderRested:
			restedQty = ev.Quantity
		}
	}
	assert.True(t, traded.Add(restedQty).Equal(d("10")))

	b2 := newTestBook()
	_, _ = b2.Apply(NewOrderCommand{Order: newOrder(10, Sell, Limit, "100", "2")})
	events2, _ := b2.Apply(NewOrderCommand{Order: newOrder(11, Buy, Market, "0", "5")})
	traded2 := d("0")
	canceledRemaining := d("0")
	for _, e := range events2 {
		switch ev := e.(type) {
		case journal.Trade:
			traded2 = traded2.Add(ev.Quantity)
		case journal.OrderCanceled:
			canceledRemaining = ev.Remaining
		}
	}
	assert.True(t, traded2.Add(canceledRemaining).Equal(d("5")))
}
