package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/rocketshoes/internal/cart"
	"github.com/ahinestrog/rocketshoes/internal/catalog"
	"github.com/ahinestrog/rocketshoes/internal/config"
	"github.com/ahinestrog/rocketshoes/internal/events"
	"github.com/ahinestrog/rocketshoes/internal/storage"
	"github.com/ahinestrog/rocketshoes/internal/web"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	ephemeral := flag.Bool("ephemeral", false, "keep the cart in memory only")
	flag.Parse()

	// Logger
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	config.LoadDotEnv(*envFile)
	cfg := config.LoadCart()
	if *ephemeral {
		cfg.Ephemeral = true
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("catalog", cfg.CatalogVia).
		Str("db", cfg.DBPath).
		Bool("ephemeral", cfg.Ephemeral).
		Msg("starting cart")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(ctx context.Context, cfg config.Cart) error {
	remote, closeRemote, err := dialCatalog(cfg)
	if err != nil {
		return err
	}
	defer closeRemote()

	products, err := catalog.NewCachedProducts(remote, cfg.ProductCache)
	if err != nil {
		return fmt.Errorf("product cache: %w", err)
	}

	var durable cart.DurableStore
	if cfg.Ephemeral {
		durable = storage.NewMemoryStore()
	} else {
		db, err := storage.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open cart db: %w", err)
		}
		defer db.Close()
		durable = db
	}

	rabbit, err := events.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		// broker opcional
		log.Warn().Err(err).Msg("rabbit unavailable, events disabled")
		rabbit = nil
	}
	defer rabbit.Close()

	flash := &events.Flash{}
	notifier := events.Multi{
		events.LogNotifier{Log: log.With().Str("component", "notice").Logger()},
		flash,
		rabbit,
	}

	store := cart.NewStore(products, durable, notifier, cart.WithPublisher(rabbit))
	if err := store.Initialize(ctx); err != nil {
		log.Error().Err(err).Msg("restore cart failed, starting empty")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           web.NewServer(store, flash, cfg.CatalogTimeout).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		return err
	}

	log.Warn().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func dialCatalog(cfg config.Cart) (cart.CatalogService, func(), error) {
	switch cfg.CatalogVia {
	case config.TransportGRPC:
		cc, err := catalog.DialGRPC(cfg.CatalogTarget)
		if err != nil {
			return nil, nil, fmt.Errorf("dial catalog %s: %w", cfg.CatalogTarget, err)
		}
		return catalog.NewGRPCClient(cc), func() { _ = cc.Close() }, nil
	case config.TransportHTTP:
		return catalog.NewHTTPClient(cfg.CatalogURL, cfg.CatalogTimeout), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown catalog transport %q", cfg.CatalogVia)
	}
}
