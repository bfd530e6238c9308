// Package book implements the per-symbol limit order book: two
// price-indexed ladders and the price-time-priority matching algorithm.
// Built on tidwall/btree ladders the way a handleLimit/handleMarket/
// Match split would be, generalized to return journal events instead of
// invoking callbacks, to use fixed-precision decimals instead of
// float64, and to support cancel and per-book sequence numbers.
package book

import (
	"time"

	"github.com/tidwall/btree"

	"matchex/internal/journal"
	"matchex/internal/pricing"
)

type priceLevels = btree.BTreeG[*PriceLevel]

// OrderBook holds the resting liquidity for one trading pair. Apply is the
// book's single mutating operation; it is synchronous and must only ever be
// called from the pair's one ingestion loop.
type OrderBook struct {
	Symbol string
	Scale  pricing.Scale

	// Clock supplies the engine-assigned timestamp for accepted orders and
	// trades. Injected so tests are deterministic.
	Clock func() time.Time

	bids *priceLevels
	asks *priceLevels

	// locations tracks every id currently resting, for Len and
	// cancel-by-coordinates lookups. seen holds every id ever accepted,
	// for duplicate-id rejection.
	locations map[uint64]location
	seen      map[uint64]struct{}

	seq uint64
}

type location struct {
	side  Side
	price pricing.Decimal
}

// New constructs an empty order book for symbol, quoting prices at scale.
func New(symbol string, scale pricing.Scale) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return pricing.LessDesc(pricing.NewKey(a.Price), pricing.NewKey(b.Price))
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return pricing.LessAsc(pricing.NewKey(a.Price), pricing.NewKey(b.Price))
	})
	return &OrderBook{
		Symbol:    symbol,
		Scale:     scale,
		Clock:     time.Now,
		bids:      bids,
		asks:      asks,
		locations: make(map[uint64]location),
		seen:      make(map[uint64]struct{}),
	}
}

// Len returns the number of resting orders across both ladders.
func (b *OrderBook) Len() int {
	return len(b.locations)
}

// LevelView is an aggregated, read-only view of one price level, returned
// by Snapshot.
type LevelView struct {
	Price    pricing.Decimal
	Quantity pricing.Decimal
}

// Snapshot returns the top-depth price levels on each side with aggregated
// quantity. It does not mutate the book, but like all book reads must not
// be called concurrently with Apply (single-writer discipline).
func (b *OrderBook) Snapshot(depth int) (bids, asks []LevelView) {
	// Walk a copy of the ladder, best price first, the same way applyNewOrder
	// walks the live ladder during matching. btree.BTreeG's Copy() is
	// copy-on-write, so the Delete calls below clone only the nodes they
	// touch and leave the live ladder unchanged.
	collect := func(levels *priceLevels) []LevelView {
		cp := levels.Copy()
		out := make([]LevelView, 0, depth)
		for len(out) < depth {
			level, ok := cp.Min()
			if !ok {
				break
			}
			qty := pricing.Zero
			for _, o := range level.Orders {
				qty = qty.Add(o.Quantity)
			}
			out = append(out, LevelView{Price: level.Price, Quantity: qty})
			cp.Delete(level)
		}
		return out
	}
	return collect(b.bids), collect(b.asks)
}

// Apply is the book's single mutating operation. It never returns an error:
// invalid input, duplicate ids and unresolvable cancels become journal
// events rather than propagating out of the book. The returned seq is
// the per-book monotonically increasing, gapless sequence number this
// call was assigned; every event in the returned slice shares it.
func (b *OrderBook) Apply(cmd Command) (events []journal.Event, seq uint64) {
	seq = b.nextSeq()
	switch c := cmd.(type) {
	case NewOrderCommand:
		return b.applyNewOrder(c.Order), seq
	case CancelOrderCommand:
		return b.applyCancel(c), seq
	default:
		return nil, seq
	}
}

func (b *OrderBook) applyNewOrder(incoming Order) []journal.Event {
	if _, dup := b.seen[incoming.ID]; dup {
		return []journal.Event{journal.OrderRejected{ID: incoming.ID, Reason: journal.ReasonDuplicateID}}
	}
	if incoming.Kind == Limit && !incoming.Price.IsPositive() {
		return []journal.Event{journal.OrderRejected{ID: incoming.ID, Reason: journal.ReasonInvalidInput}}
	}
	if !incoming.Quantity.IsPositive() {
		return []journal.Event{journal.OrderRejected{ID: incoming.ID, Reason: journal.ReasonInvalidInput}}
	}

	b.seen[incoming.ID] = struct{}{}
	incoming.Timestamp = b.Clock()
	incoming.TotalQuantity = incoming.Quantity

	events := []journal.Event{journal.OrderAccepted{ID: incoming.ID}}

	var opposite *priceLevels
	if incoming.Side == Buy {
		opposite = b.asks
	} else {
		opposite = b.bids
	}

	// Walk the opposite ladder best-price-first: pull the top level via
	// MinMut, consume it in FIFO order, and delete it once empty before
	// looking at the next level.
	for incoming.Quantity.IsPositive() {
		level, ok := opposite.MinMut()
		if !ok {
			break
		}
		if incoming.Kind == Limit && !crossable(incoming, level.Price) {
			break
		}

		idx := 0
		for idx < len(level.Orders) && incoming.Quantity.IsPositive() {
			maker := level.Orders[idx]
			tradeQty := minDecimal(incoming.Quantity, maker.Quantity)

			buyID, sellID := incoming.ID, maker.ID
			if incoming.Side == Sell {
				buyID, sellID = maker.ID, incoming.ID
			}

			events = append(events, journal.Trade{
				BuyOrderID:  buyID,
				SellOrderID: sellID,
				Price:       level.Price,
				Quantity:    tradeQty,
				Timestamp:   b.Clock(),
			})

			incoming.Quantity = incoming.Quantity.Sub(tradeQty)
			maker.Quantity = maker.Quantity.Sub(tradeQty)

			if maker.Quantity.IsZero() {
				delete(b.locations, maker.ID)
				idx++
			}
		}
		level.Orders = level.Orders[idx:]
		if len(level.Orders) == 0 {
			opposite.Delete(level)
		}
	}

	switch {
	case incoming.Quantity.IsZero():
		events = append(events, journal.OrderFilled{ID: incoming.ID})
	case incoming.Kind == Limit:
		b.rest(incoming)
		events = append(events, journal.OrderRested{
			ID:       incoming.ID,
			Side:     incoming.Side.String(),
			Price:    incoming.Price,
			Quantity: incoming.Quantity,
		})
	default:
		// Market orders never rest, but the id already produced real trade
		// history; it stays in b.seen permanently, same as a filled or
		// rested id, so it can never be reused by a later, unrelated order.
		events = append(events, journal.OrderCanceled{
			ID:        incoming.ID,
			Remaining: incoming.Quantity,
			Reason:    journal.ReasonMarketUnfilled,
		})
	}

	return events
}

// crossable reports whether price level P can still match against incoming
// under its limit price.
func crossable(incoming Order, levelPrice pricing.Decimal) bool {
	if incoming.Side == Buy {
		return !incoming.Price.LessThan(levelPrice)
	}
	return !incoming.Price.GreaterThan(levelPrice)
}

func minDecimal(a, b pricing.Decimal) pricing.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (b *OrderBook) rest(order Order) {
	var levels *priceLevels
	if order.Side == Buy {
		levels = b.bids
	} else {
		levels = b.asks
	}

	b.locations[order.ID] = location{side: order.Side, price: order.Price}

	own := &order
	if level, ok := levels.GetMut(&PriceLevel{Price: order.Price}); ok {
		level.Orders = append(level.Orders, own)
		return
	}
	levels.Set(&PriceLevel{Price: order.Price, Orders: []*Order{own}})
}

func (b *OrderBook) applyCancel(cmd CancelOrderCommand) []journal.Event {
	loc, ok := b.locations[cmd.ID]
	if !ok || loc.side != cmd.Side || !loc.price.Equal(cmd.Price) {
		return []journal.Event{journal.CancelRejected{ID: cmd.ID, Reason: journal.ReasonNotFound}}
	}

	var levels *priceLevels
	if cmd.Side == Buy {
		levels = b.bids
	} else {
		levels = b.asks
	}

	level, ok := levels.GetMut(&PriceLevel{Price: cmd.Price})
	if !ok {
		return []journal.Event{journal.CancelRejected{ID: cmd.ID, Reason: journal.ReasonNotFound}}
	}

	idx := -1
	for i, o := range level.Orders {
		if o.ID == cmd.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return []journal.Event{journal.CancelRejected{ID: cmd.ID, Reason: journal.ReasonNotFound}}
	}

	canceled := level.Orders[idx]
	level.Orders = append(level.Orders[:idx], level.Orders[idx+1:]...)
	if len(level.Orders) == 0 {
		levels.Delete(level)
	}
	delete(b.locations, cmd.ID)

	return []journal.Event{journal.OrderCanceled{ID: cmd.ID, Remaining: canceled.Quantity}}
}

// nextSeq assigns the next per-book monotonically increasing sequence
// number, gapless and restart-local. Unlike original_source's hardcoded
// seq_id = 1 (original_source/src/spot_log.rs), every Apply call gets its
// own number.
func (b *OrderBook) nextSeq() uint64 {
	b.seq++
	return b.seq
}
