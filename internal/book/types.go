package book

import (
	"time"

	"matchex/internal/pricing"
)

// Side is which direction an order trades.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// OrderKind distinguishes resting limit orders from sweep-only market
// orders. Iceberg/stop/IOC/FOK modifiers are out of scope.
type OrderKind int

const (
	Limit OrderKind = iota
	Market
)

func (k OrderKind) String() string {
	if k == Limit {
		return "Limit"
	}
	return "Market"
}

// Order is a request to buy or sell a quantity at a price. Price is ignored
// for Market orders and MUST NOT influence matching decisions.
type Order struct {
	ID            uint64
	UserID        uint64
	Side          Side
	Kind          OrderKind
	Price         pricing.Decimal
	Quantity      pricing.Decimal // remaining, mutated during matching
	TotalQuantity pricing.Decimal // original quantity at entry, immutable
	Timestamp     time.Time       // engine-assigned on accept
}

// Trade is an execution record. Price always equals the resting (maker)
// order's limit price.
type Trade struct {
	BuyOrderID  uint64
	SellOrderID uint64
	Price       pricing.Decimal
	Quantity    pricing.Decimal
	Timestamp   time.Time
}

// PriceLevel is an ordered sequence of resting orders at one exact price,
// kept in FIFO arrival order (time priority).
type PriceLevel struct {
	Price  pricing.Decimal
	Orders []*Order
}

// Command is either a NewOrder or a CancelOrder request.
type Command interface {
	isCommand()
}

// NewOrderCommand submits order for matching/resting.
type NewOrderCommand struct {
	Order Order
}

func (NewOrderCommand) isCommand() {}

// CancelOrderCommand cancels by coordinates: the (side, price) level the
// order is expected to rest at, plus its id. Coordinates that don't locate
// a live order yield CancelRejected and nothing else.
type CancelOrderCommand struct {
	ID    uint64
	Side  Side
	Price pricing.Decimal
}

func (CancelOrderCommand) isCommand() {}
