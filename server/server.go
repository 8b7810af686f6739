// Package server composes the competition core: the shared store, the
// challenge registry and lifecycle set, and the redemption engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ctfkit/ctfkit/challenge"
	"github.com/ctfkit/ctfkit/logging"
	"github.com/ctfkit/ctfkit/redemption"
	"github.com/ctfkit/ctfkit/store"
)

// Server owns the core subsystems for the lifetime of the process.
type Server struct {
	cfg    Config
	store  *store.Store
	engine *redemption.Engine
	set    *challenge.Set
}

// New opens the store, snapshots settings, and resolves every configured
// challenge through the registry. An unknown challenge kind fails here, at
// initialization, never at request time.
func New(ctx context.Context, cfg Config) (*Server, error) {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	settings, err := st.Settings(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	engine := redemption.NewEngine(st)
	env := &challenge.Env{
		Store:    st,
		Flags:    engine,
		Log:      logging.FromContext(ctx),
		Settings: settings,
	}

	set, err := challenge.NewSet(ctx, challenge.DefaultRegistry(), env)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("resolving challenges: %w", err)
	}

	return &Server{
		cfg:    cfg,
		store:  st,
		engine: engine,
		set:    set,
	}, nil
}

// Store exposes the shared store to the administrative collaborator.
func (s *Server) Store() *store.Store {
	return s.store
}

// Engine exposes the redemption engine to collaborating layers.
func (s *Server) Engine() *redemption.Engine {
	return s.engine
}

// Challenges exposes the challenge set to the request-layer collaborator.
func (s *Server) Challenges() *challenge.Set {
	return s.set
}

// Close releases the shared store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start brings up all challenge instances concurrently, serves metrics if
// configured, and on context cancellation stops every started instance
// before returning.
func (s *Server) Start(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	logger.Info("starting challenges", zap.Int("instances", len(s.set.CIDs())))
	s.set.StartAll(ctx)

	group, ctx := errgroup.WithContext(ctx)

	var metricsServer *http.Server
	if s.cfg.MetricsPort != nil {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", *s.cfg.MetricsPort))
		if err != nil {
			return fmt.Errorf("failed to listen on metrics port: %w", err)
		}
		metricsServer = &http.Server{Handler: promhttp.Handler(), ReadHeaderTimeout: time.Second * 5}
		group.Go(func() error {
			logger.Sugar().Infof("metrics listening on %s", listener.Addr())
			err := metricsServer.Serve(listener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	<-ctx.Done()

	// Shutdown is the only cutoff for in-flight challenge work; stop with
	// an uncancelled context so teardown is not aborted mid-way.
	logger.Info("stopping challenges")
	s.set.StopAll(context.WithoutCancel(ctx))

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Sugar().Errorf("failed to shutdown metrics server: %s", err)
		}
	}

	return group.Wait()
}
