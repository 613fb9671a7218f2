package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/product-catalog/pkg/api"
	"github.com/Sternrassler/product-catalog/pkg/cache"
	"github.com/Sternrassler/product-catalog/pkg/catalog"
	"github.com/Sternrassler/product-catalog/pkg/config"
	"github.com/Sternrassler/product-catalog/pkg/logging"
	"github.com/Sternrassler/product-catalog/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listen := func() (net.Listener, error) {
		return net.Listen("tcp", cfg.Addr())
	}
	if err := run(ctx, cfg, listen, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}

// run wires the store, cache and HTTP server and serves until ctx is
// cancelled. Failing to reach MongoDB is fatal; Redis may be down at start.
// listen is only called once the store is connected.
func run(ctx context.Context, cfg config.Config, listen func() (net.Listener, error), logger zerolog.Logger) error {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Store.ServerSelectionTimeout+time.Second)
	mongoStore, err := store.Connect(connectCtx, cfg.Store, logging.NewLogger("store"))
	cancel()
	if err != nil {
		return fmt.Errorf("connecting to mongodb: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := mongoStore.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
		}
	}()

	redisClient := cache.NewClient(cfg.Cache)
	defer redisClient.Close()

	cacheManager := cache.NewManager(redisClient)
	supervisor := cache.NewSupervisor(cacheManager, cache.SupervisorConfig{
		MaxBackoff: cfg.Cache.MaxBackoff,
	}, logging.NewLogger("cache"))

	svc, err := catalog.New(mongoStore, cacheManager, catalog.Config{
		ListingTTL: cfg.ListingTTL,
	}, logging.NewLogger("catalog"))
	if err != nil {
		return fmt.Errorf("creating catalog: %w", err)
	}

	ln, err := listen()
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}
	defer ln.Close()

	server := api.NewServer(svc, supervisor, api.DefaultConfig(), logging.NewLogger("api"))
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return supervisor.Run(gctx)
	})

	g.Go(func() error {
		logger.Info().
			Str("addr", ln.Addr().String()).
			Str("redis", cfg.Cache.Addr()).
			Dur("listing_ttl", cfg.ListingTTL).
			Msg("Starting product catalog server")
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
