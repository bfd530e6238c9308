package catalog

import "context"

// FakeStore is an in-memory Store for tests that exercise the supervisor
// without a Postgres instance.
type FakeStore struct {
	Symbols []Symbol
}

func (f *FakeStore) AssignedSymbols(ctx context.Context, servers []string) ([]Symbol, error) {
	return f.Symbols, nil
}
