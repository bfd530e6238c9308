// Command matchex runs the matching engine service: it resolves the
// pairs this host is assigned, spins up one ingestion loop per pair,
// and serves health/metrics over HTTP until signaled to stop.
// Wires signal.NotifyContext, the engine set, and the HTTP surface
// together and runs until signaled to stop.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"matchex/internal/catalog"
	"matchex/internal/config"
	"matchex/internal/supervisor"
)

const shutdownGrace = 10 * time.Second

func main() {
	configureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	store, err := openCatalog(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open symbol catalog")
	}

	hostAddrs, err := localAddrs()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to enumerate host interfaces")
	}

	sup, err := supervisor.New(ctx, cfg, store, hostAddrs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start supervisor")
	}

	log.Info().Msg("matchex running")
	if err := sup.Run(ctx, shutdownGrace); err != nil {
		log.Error().Err(err).Msg("supervisor exited with error")
		os.Exit(1)
	}
}

func openCatalog(cfg *config.Config) (catalog.Store, error) {
	if cfg.Postgres != nil {
		return catalog.OpenPostgres(cfg.Postgres.URL)
	}
	// config.Load already rejected the zero-database case; mysql_config is
	// accepted for config-shape parity but has no driver wired (see
	// DESIGN.md), so reaching here is a configuration error.
	return nil, config.ErrNoDatabase
}

// localAddrs enumerates this host's non-loopback interface addresses,
// used to match config_symbol_matching.server assignments. No pack
// library covers host-NIC enumeration better than net.InterfaceAddrs.
func localAddrs() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		out = append(out, ipNet.IP.String())
	}
	return out, nil
}

// configureLogging picks console vs JSON output per MATCHEX_LOG_FORMAT
// and tags every subsequent log line with a per-process instance id, so
// operators can tell one process run's lines from another's (each restart
// mints a new id). There is no
// cross-process correlation id on the wire; this is purely a local
// logging aid.
func configureLogging() {
	if os.Getenv("MATCHEX_LOG_FORMAT") != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("instance_id", uuid.New().String()).Logger()
}
