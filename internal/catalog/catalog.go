// Package catalog resolves which trading pairs this process is
// responsible for, by looking up the host's assigned rows in the
// config_symbol_matching table. Grounded on
// original_source/src/model/config_symbol_matching.rs's
// get_configs_by_servers, translated from sqlx/Postgres to database/sql
// with lib/pq.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"matchex/internal/pricing"
)

// Symbol is one row of the catalog: a trading pair this server instance
// is assigned to run a matching engine for.
type Symbol struct {
	ID     int64
	Base   string
	Quote  string
	IsOpen bool
	Server string
	Scale  pricing.Scale
}

// Name is the canonical "BASE/QUOTE" identifier used as the Kafka topic
// key and in journal envelopes.
func (s Symbol) Name() string { return s.Base + "/" + s.Quote }

// Store is the catalog's read surface. Only Postgres is wired to a
// driver; see DESIGN.md for why mysql_config has no Store implementation.
type Store interface {
	AssignedSymbols(ctx context.Context, servers []string) ([]Symbol, error)
}

// PostgresStore queries config_symbol_matching for rows matching any of
// the host's server addresses, filtering to open symbols.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

const assignedSymbolsQuery = `
SELECT id, base, quote, is_open, server
FROM config_symbol_matching
WHERE is_open AND server = ANY($1)
ORDER BY id
`

// AssignedSymbols returns the open symbols whose server column matches
// any of the given host addresses. Scale defaults to 8 (spot-market
// convention); a future catalog column could make this configurable per
// symbol without changing this query's shape.
func (s *PostgresStore) AssignedSymbols(ctx context.Context, servers []string) ([]Symbol, error) {
	rows, err := s.db.QueryContext(ctx, assignedSymbolsQuery, pq.Array(servers))
	if err != nil {
		return nil, fmt.Errorf("catalog: query assigned symbols: %w", err)
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.ID, &sym.Base, &sym.Quote, &sym.IsOpen, &sym.Server); err != nil {
			return nil, fmt.Errorf("catalog: scan row: %w", err)
		}
		sym.Scale = 8
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: row iteration: %w", err)
	}
	return out, nil
}
