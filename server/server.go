// Package server wires the store, the command dispatcher and the connection
// multiplexer into a runnable key-value server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"kvasir/lib/kv"
	"kvasir/lib/kv/engine/hashmap"
	"kvasir/lib/kv/engine/sharded"
	"kvasir/server/common"
	"kvasir/server/handler"
	"kvasir/server/netpoll"
)

// Logger is the logger for this package
var Logger = logger.GetLogger("server")

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Server is the assembled pipeline: multiplexer workers feeding the command
// dispatcher, which executes against the snapshot-backed store.
type Server struct {
	cfg     common.ServerConfig
	store   *kv.Store
	poll    *netpoll.Server
	metrics *serverMetrics
}

// engineFactory maps the configured implementation name to its factory. An
// empty name selects the default hashmap engine.
func engineFactory(name string) (kv.EngineFactory, error) {
	switch kv.Implementation(name) {
	case kv.ImplHashmap, "":
		return hashmap.NewHashmapEngine, nil
	case kv.ImplSharded:
		return sharded.NewShardedEngine, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (must be %q or %q)", name, kv.ImplHashmap, kv.ImplSharded)
	}
}

// NewServer builds the full pipeline for the given configuration: a store
// seeded from the snapshot file, the dispatcher, and the multiplexer with
// all listeners bound. It does not start serving yet, Run does.
func NewServer(cfg common.ServerConfig) (*Server, error) {
	Logger.Infof("creating kv server with config: %s", cfg.String())

	factory, err := engineFactory(cfg.Engine)
	if err != nil {
		return nil, err
	}

	store, err := kv.NewStore(factory, cfg.DataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if cfg.DataFile != "" {
		Logger.Infof("store seeded with %d entries from %s", store.Len(), cfg.DataFile)
	}

	poll, err := netpoll.New(netpoll.Config{
		Addr:           cfg.Addr,
		Workers:        cfg.Workers,
		ReadBufferSize: cfg.ReadBufferSize,
		PollTimeout:    cfg.PollTimeout,
		PinWorkers:     cfg.PinWorkers,
	}, handler.NewHandler(store))
	if err != nil {
		return nil, fmt.Errorf("failed to set up multiplexer: %w", err)
	}

	srv := &Server{cfg: cfg, store: store, poll: poll}
	srv.metrics = newServerMetrics(srv)
	return srv, nil
}

// Addr returns the address the server is bound to, with port 0 resolved.
func (s *Server) Addr() string {
	return s.poll.Addr()
}

// Run starts serving and blocks until ctx is cancelled. While running it
// drives the periodic snapshot saver and the optional observability
// listener. Shutdown order: multiplexer first so no new writes arrive, then
// one final snapshot.
func (s *Server) Run(ctx context.Context) error {
	s.poll.Start()
	Logger.Infof("kv server listening on %s (%d workers, %s engine)",
		s.poll.Addr(), s.cfg.EffectiveWorkers(), s.effectiveEngine())

	if s.cfg.MetricsAddr != "" {
		observability := &http.Server{
			Addr:    s.cfg.MetricsAddr,
			Handler: s.observabilityMux(),
		}
		go func() {
			Logger.Infof("observability listening on %s", s.cfg.MetricsAddr)
			if err := observability.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				Logger.Errorf("observability listener failed: %v", err)
			}
		}()
		defer observability.Close()
	}

	// A nil channel blocks forever, disabling the periodic saver
	var saveTick <-chan time.Time
	if s.cfg.DataFile != "" && s.cfg.SaveInterval > 0 {
		ticker := time.NewTicker(s.cfg.SaveInterval)
		defer ticker.Stop()
		saveTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()

		case <-saveTick:
			// A failed periodic snapshot is logged and retried next tick,
			// it never takes down the serving path
			s.saveSnapshot(false)
		}
	}
}

// shutdown stops the multiplexer and writes the final snapshot.
func (s *Server) shutdown() error {
	Logger.Infof("shutting down")
	s.poll.Stop()

	if s.cfg.DataFile != "" {
		if err := s.saveSnapshot(true); err != nil {
			return fmt.Errorf("final snapshot failed: %w", err)
		}
		Logger.Infof("final snapshot saved to %s (%d keys)", s.cfg.DataFile, s.store.Len())
	}
	return nil
}

// saveSnapshot persists the store and updates the saver instruments. The
// final save on shutdown reports its error, periodic saves only log it.
func (s *Server) saveSnapshot(final bool) error {
	start := time.Now()
	if err := s.store.SaveSnapshot(); err != nil {
		s.metrics.snapshotErrors.Inc()
		if final {
			return err
		}
		Logger.Errorf("periodic snapshot failed: %v", err)
		return err
	}

	s.metrics.snapshotSaves.Inc()
	s.metrics.snapshotTime.UpdateDuration(start)
	if !final {
		Logger.Debugf("periodic snapshot saved in %s (%d keys)", time.Since(start), s.store.Len())
	}
	return nil
}

// effectiveEngine resolves the engine default for logging.
func (s *Server) effectiveEngine() string {
	if s.cfg.Engine == "" {
		return string(kv.ImplHashmap)
	}
	return s.cfg.Engine
}
