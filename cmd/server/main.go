package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/playperu/digitduel/internal/broker"
	"github.com/playperu/digitduel/internal/config"
	"github.com/playperu/digitduel/internal/database"
	"github.com/playperu/digitduel/internal/game"
	"github.com/playperu/digitduel/internal/handler/health"
	"github.com/playperu/digitduel/internal/history"
	"github.com/playperu/digitduel/internal/migrations"
	"github.com/playperu/digitduel/internal/puzzle"
	"github.com/playperu/digitduel/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	gameCfg, err := cfg.Game()
	if err != nil {
		return fmt.Errorf("loading game config: %w", err)
	}

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	version, err := migrations.Run(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "schema_version", version)

	// --- Engine ---
	gateway := broker.New(logger)
	oracle := puzzle.NewGenerator(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), puzzle.DefaultRules())
	matches := history.NewStore(db)

	engine := game.NewEngine(gameCfg, oracle, gateway, logger, game.WithRecorder(matches))
	hub := game.NewHub(engine, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Engine:  hub,
		Gateway: gateway,
		History: matches,
		Checks: map[string]health.Checker{
			"sqlite": dbChecker{db},
			"engine": health.CheckFunc(func(ctx context.Context) error {
				_, err := hub.Status(ctx)
				return err
			}),
		},
		AdminPasswordHash: cfg.AdminPasswordHash,
		RateLimit:         rate.Limit(cfg.RateLimit),
		RateBurst:         cfg.RateBurst,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting game hub",
			"resolution", gameCfg.Resolution.Name(),
			"enforce_turn", gameCfg.EnforceTurn,
		)
		return hub.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }
