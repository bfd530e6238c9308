// Package engine pairs one symbol's order book with its ingestion loop.
// A prior design held a Books map[AssetType]OrderBook for every asset a
// single process served; here one process serves whatever symbols the
// catalog assigns it, so Engine narrows to exactly one book and the
// supervisor holds the map of Engines instead.
package engine

import (
	"matchex/internal/book"
	"matchex/internal/catalog"
	"matchex/internal/ingest"
)

// Engine owns one symbol's order book and the ingestion loop that feeds
// it. Constructing an Engine does not start anything; the supervisor
// runs Loop under its own supervised goroutine.
type Engine struct {
	Symbol catalog.Symbol
	Book   *book.OrderBook
	Loop   *ingest.Loop
}

// New pairs sym with the loop already wired to its book.
func New(sym catalog.Symbol, loop *ingest.Loop) *Engine {
	return &Engine{Symbol: sym, Book: loop.Book, Loop: loop}
}
