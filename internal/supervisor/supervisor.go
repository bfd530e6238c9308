// Package supervisor boots one Engine per catalog-assigned symbol,
// supervises their ingestion loops under a shared tomb, and serves
// /healthz and /metrics. Uses the same tomb.WithContext/t.Go/bounded-
// shutdown shape a single supervised TCP accept loop would, generalized
// to N per-symbol ingestion loops running under one shared tomb.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchex/internal/book"
	"matchex/internal/bus"
	"matchex/internal/catalog"
	"matchex/internal/config"
	"matchex/internal/deadletter"
	"matchex/internal/engine"
	"matchex/internal/ingest"
	"matchex/internal/metrics"
)

// ErrNoAssignments is returned when the catalog assigns this host zero
// symbols; cmd/matchex treats this as a fatal configuration/catalog
// error rather than running an idle process.
var ErrNoAssignments = errors.New("supervisor: no symbols assigned to this host")

// Supervisor owns every Engine this process runs plus the HTTP health
// and metrics surface.
type Supervisor struct {
	cfg      *config.Config
	catalog  catalog.Store
	registry *prometheus.Registry
	metrics  *metrics.Registry
	brokers  []string

	engines map[string]*engine.Engine
}

// New resolves this host's assigned symbols from store and constructs
// one Engine per symbol. It returns ErrNoAssignments if the host is
// responsible for nothing.
func New(ctx context.Context, cfg *config.Config, store catalog.Store, hostAddrs []string) (*Supervisor, error) {
	symbols, err := store.AssignedSymbols(ctx, hostAddrs)
	if err != nil {
		return nil, fmt.Errorf("supervisor: resolve assigned symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil, ErrNoAssignments
	}

	reg := prometheus.NewRegistry()
	s := &Supervisor{
		cfg:      cfg,
		catalog:  store,
		registry: reg,
		metrics:  metrics.New(reg),
		brokers:  cfg.Kafka.Brokers,
		engines:  make(map[string]*engine.Engine),
	}

	var dl deadletter.Sink = deadletter.NoopSink{}
	if cfg.Redis.Addr != "" {
		dl = deadletter.NewRedisSink(cfg.Redis.Addr)
	}

	for _, sym := range symbols {
		inTopic, outTopic, group := ingest.Topics(sym)
		b := book.New(sym.Name(), sym.Scale)
		loop := &ingest.Loop{
			Symbol:        sym,
			Book:          b,
			Consumer:      bus.NewKafkaConsumer(s.brokers, inTopic, group),
			Producer:      bus.NewKafkaProducer(s.brokers, outTopic),
			DeadLetter:    dl,
			Metrics:       s.metrics,
			DecodeRetries: cfg.DecodeRetries,
			Backoff: ingest.BackoffPolicy{
				Initial:   time.Duration(cfg.Backoff.InitialMS) * time.Millisecond,
				Max:       time.Duration(cfg.Backoff.MaxMS) * time.Millisecond,
				JitterPct: cfg.Backoff.JitterPct,
			},
			OutputTopic: outTopic,
		}
		s.engines[sym.Name()] = engine.New(sym, loop)
	}

	log.Info().Int("symbols", len(symbols)).Msg("supervisor assigned symbols")
	return s, nil
}

// Run starts every engine's ingestion loop plus the HTTP surface, and
// blocks until ctx is canceled. Shutdown cancels the context every loop
// uses; in-flight apply calls always run to completion, but a publish or
// commit still in flight is aborted at once rather than awaited. grace
// bounds only the HTTP server's shutdown; Run then waits for every loop
// to return. It returns nil when the shutdown came from ctx being
// canceled.
func (s *Supervisor) Run(ctx context.Context, grace time.Duration) error {
	t, ctx := tomb.WithContext(ctx)

	for _, eng := range s.engines {
		loop := eng.Loop
		t.Go(func() error { return loop.Run(t) })
	}

	srv := s.httpServer()
	t.Go(func() error { return s.serveHTTP(t, srv) })

	<-t.Dying()
	log.Info().Msg("supervisor shutting down, awaiting grace period")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// tomb.WithContext kills the tomb with the parent's context.Canceled on
	// a signal; that is an ordinary shutdown, not a failure.
	if err := t.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Supervisor) httpServer() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return &http.Server{Addr: s.cfg.HTTP.Addr, Handler: mux}
}

func (s *Supervisor) serveHTTP(t *tomb.Tomb, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("supervisor: listen %s: %w", srv.Addr, err)
	}
	log.Info().Str("addr", srv.Addr).Msg("http surface listening")
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Engines exposes the running engines, keyed by symbol name, for tests
// and operator tooling.
func (s *Supervisor) Engines() map[string]*engine.Engine { return s.engines }
