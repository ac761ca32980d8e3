package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/ahinestrog/rocketshoes/internal/catalog"
	"github.com/ahinestrog/rocketshoes/internal/config"
)

func openSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func main() {
	// Logger
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	config.LoadDotEnv()
	cfg := config.LoadCatalog()
	zerolog.SetGlobalLevel(cfg.LogLevel)
	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("grpc", cfg.GRPCAddr).
		Str("db", cfg.DBPath).
		Msg("starting catalog service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(ctx context.Context, cfg config.Catalog) error {
	// DB + migración + seed opcional
	db, err := openSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	repo := catalog.NewSQLRepo(db)
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.Init(initCtx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if cfg.SeedOnStart {
		if err := repo.Seed(initCtx); err != nil {
			log.Warn().Err(err).Msg("seed failed")
		} else {
			log.Info().Msg("seeded catalog")
		}
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcSrv := grpc.NewServer()
	catalog.RegisterGRPC(grpcSrv, repo)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           catalog.NewHTTPHandler(repo),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC listening")
		errs <- grpcSrv.Serve(lis)
	}()
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
			return
		}
		errs <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		if err != nil {
			grpcSrv.Stop()
			_ = httpSrv.Close()
			return err
		}
	}

	// Señales para apagado limpio
	log.Warn().Msg("shutting down...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.ShutdownGrace)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()
	return nil
}
