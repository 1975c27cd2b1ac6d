package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/bitsearch/internal/config"
	"github.com/hailam/bitsearch/internal/engine"
	"github.com/hailam/bitsearch/internal/logx"
	"github.com/hailam/bitsearch/internal/storage"
	"github.com/hailam/bitsearch/internal/uci"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal := logx.NewLogger(zerolog.InfoLevel)
		fatal.Fatal().Err(err).Msg("loading config")
	}
	logger := logx.NewLogger(cfg.LogLevel())
	logger.Debug().Interface("config", cfg).Msg("config loaded")

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("could not create CPU profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
		logger.Info().Str("path", profilePath).Msg("CPU profiling enabled")
	}

	var store *storage.Storage
	if cfg.Storage.Enabled {
		dir, err := storage.GetDatabaseDir(cfg.Storage.Dir)
		if err != nil {
			logger.Fatal().Err(err).Msg("resolving database directory")
		}
		store, err = storage.Open(dir, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("path", dir).Msg("opening analysis store")
		}
		defer store.Close()
	}

	eng := engine.NewEngine(cfg.HashMB, engine.Material{}, logger)
	eng.MaxDepth = cfg.Search.MaxDepth

	protocol := uci.New(eng, uci.Options{
		HashMB:     cfg.HashMB,
		OwnBook:    cfg.Book.Enabled,
		BookFile:   cfg.Book.Path,
		Promotions: cfg.PromotionMode(),
		Debug:      cfg.Debug,
		Persist:    store != nil,
	}, store, logger, os.Stdout)
	if err := protocol.RestoreOptions(); err != nil {
		logger.Warn().Err(err).Msg("saved options not applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return protocol.Run(gctx, os.Stdin)
	})
	// Closing stdin on shutdown releases the reader blocked inside Run.
	g.Go(func() error {
		<-gctx.Done()
		logger.Debug().Err(gctx.Err()).Msg("stopping")
		return os.Stdin.Close()
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("protocol loop failed")
	}
	logger.Debug().Msg("shutting down")
}
