package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lurnetreau/newsapi/internal/backfill"
	"lurnetreau/newsapi/internal/config"
	"lurnetreau/newsapi/internal/database"
	"lurnetreau/newsapi/internal/feed"
	"lurnetreau/newsapi/internal/imagegen"
	"lurnetreau/newsapi/internal/process"
	"lurnetreau/newsapi/internal/rewrite"
	"lurnetreau/newsapi/internal/server"
	"lurnetreau/newsapi/internal/storage"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func usage() {
	fmt.Println("Usage: newsapi [command] [options]")
	fmt.Println("Commands: server, ingest, backfill, purge")
	fmt.Println("\nFor command-specific options, use: newsapi [command] -h")
}

func main() {
	// Load .env for local development; absent on deployed instances.
	_ = godotenv.Load()

	cfg := config.DefaultConfig()

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("NEWSAPI_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: NEWSAPI_DB_PATH)")
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("NEWSAPI_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: NEWSAPI_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("NEWSAPI_PORT", config.DefaultServerPort),
		"Port to listen on (env: NEWSAPI_PORT)")

	ingestCmd := flag.NewFlagSet("ingest", flag.ExitOnError)
	ingestCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("NEWSAPI_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: NEWSAPI_DB_PATH)")
	var intervalMinutes int
	ingestCmd.IntVar(&intervalMinutes, "interval", config.GetEnvInt("NEWSAPI_INTERVAL", config.DefaultInterval),
		"Interval in minutes between ingestion passes, 0 for one-shot mode (env: NEWSAPI_INTERVAL)")

	backfillCmd := flag.NewFlagSet("backfill", flag.ExitOnError)
	backfillCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("NEWSAPI_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: NEWSAPI_DB_PATH)")
	var delaySeconds int
	backfillCmd.IntVar(&delaySeconds, "delay", config.GetEnvInt("NEWSAPI_BACKFILL_DELAY", config.DefaultBackfillDelaySeconds),
		"Seconds to wait between image generation calls (env: NEWSAPI_BACKFILL_DELAY)")

	purgeCmd := flag.NewFlagSet("purge", flag.ExitOnError)
	purgeCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("NEWSAPI_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: NEWSAPI_DB_PATH)")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	zerolog.SetGlobalLevel(config.GetEnvLogLevel("NEWSAPI_LOG_LEVEL", cfg.LogLevel))

	switch os.Args[1] {
	case "server":
		serverCmd.Parse(os.Args[2:])
		if err := runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "ingest":
		ingestCmd.Parse(os.Args[2:])
		cfg.Interval = time.Duration(intervalMinutes) * time.Minute
		if err := runIngest(cfg); err != nil {
			log.Error().Err(err).Msg("Ingestion failed")
			os.Exit(1)
		}

	case "backfill":
		backfillCmd.Parse(os.Args[2:])
		cfg.BackfillDelay = time.Duration(delaySeconds) * time.Second
		if err := runBackfill(cfg); err != nil {
			log.Error().Err(err).Msg("Backfill failed")
			os.Exit(1)
		}

	case "purge":
		purgeCmd.Parse(os.Args[2:])
		if err := runPurge(cfg); err != nil {
			log.Error().Err(err).Msg("Purge failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		usage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		usage()
		os.Exit(1)
	}
}

// newPipeline wires the ingestion pipeline against the shared repository.
func newPipeline(cfg *config.Config, repo *storage.Repository) *process.Pipeline {
	return process.NewPipeline(
		feed.NewClient(cfg.FeedBaseURL, cfg.GuardianAPIKey),
		rewrite.NewClient(cfg.TextModelURL, cfg.GeminiAPIKey),
		imagegen.NewClient(cfg.ImageModelURL, cfg.GeminiAPIKey),
		repo,
	)
}

// runServer starts the HTTP API server. The server also hosts the
// generate-and-save trigger, so upstream credentials are required.
func runServer(cfg *config.Config) error {
	if err := cfg.ValidateUpstream(); err != nil {
		return err
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	pipeline := newPipeline(cfg, storage.NewRepository(db))
	return server.RunServer(db, pipeline, cfg.ListenAddr(), log.Logger)
}

// runIngest executes the ingestion pipeline either once or periodically
// based on configuration.
func runIngest(cfg *config.Config) error {
	if err := cfg.ValidateUpstream(); err != nil {
		return err
	}

	if cfg.Interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(cfg.Interval.Minutes())).Msg("Running in periodic mode")
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	pipeline := newPipeline(cfg, storage.NewRepository(db))

	ctx, cancel := signalContext()
	defer cancel()

	if err := runIngestionPass(ctx, pipeline); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Ingestion pass canceled by shutdown signal")
			return nil
		}
		return err
	}

	if cfg.Interval <= 0 {
		log.Info().Msg("One-shot ingestion completed, exiting")
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", cfg.Interval).
		Time("next_run", time.Now().Add(cfg.Interval)).
		Msg("Waiting for next ingestion pass")

	for {
		select {
		case <-ticker.C:
			log.Info().Msg("Starting scheduled ingestion pass")

			if err := runIngestionPass(ctx, pipeline); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info().Msg("Ingestion pass canceled by shutdown signal")
					return nil
				}
				log.Error().Err(err).Msg("Ingestion pass failed")
				// Continue to the next pass rather than exiting
			}

			log.Info().
				Time("next_run", time.Now().Add(cfg.Interval)).
				Msg("Waiting for next ingestion pass")

		case <-ctx.Done():
			log.Info().Msg("Shutting down periodic ingestion")
			return nil
		}
	}
}

// runIngestionPass executes a single ingestion pass with a bounded timeout.
func runIngestionPass(ctx context.Context, pipeline *process.Pipeline) error {
	passCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	startTime := time.Now()
	count, err := pipeline.Run(passCtx)
	log.Info().
		Int("persisted", count).
		Dur("duration", time.Since(startTime)).
		Msg("Ingestion pass finished")
	return err
}

// runBackfill generates images for previously persisted articles that are
// missing one. Only the image model credential is needed.
func runBackfill(cfg *config.Config) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set in the environment")
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repo := storage.NewRepository(db)
	images := imagegen.NewClient(cfg.ImageModelURL, cfg.GeminiAPIKey)
	job := backfill.NewJob(repo, images, cfg.BackfillDelay)

	ctx, cancel := signalContext()
	defer cancel()

	updated, err := job.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Int("updated", updated).Msg("Backfill run complete")
	return nil
}

// runPurge deletes every article from every category collection.
// It prompts for confirmation before doing so.
func runPurge(cfg *config.Config) error {
	fmt.Printf("This will delete ALL articles from %s. Subscribers are kept.\n", cfg.DBPath)
	fmt.Print("Are you sure you want to continue? (yes/no): ")

	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
		log.Info().Msg("Operation canceled by user")
		return nil
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repo := storage.NewRepository(db)
	deleted, err := repo.PurgeAllArticles(context.Background())
	if err != nil {
		return fmt.Errorf("failed to purge articles: %w", err)
	}

	log.Info().Int64("deleted", deleted).Msg("All article collections emptied")
	return nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	return ctx, cancel
}
