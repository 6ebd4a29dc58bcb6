package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/always-cache/swr"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// CLI flags
	configFilenameFlag string
	originFlag         string
	portFlag           int
	storeFlag          string
	dbFilenameFlag     string
	redisFlag          string
	staleFlag          string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides config)")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (default 8080)")
	flag.StringVar(&storeFlag, "store", "", "Cache store: memory, sqlite, leveldb or redis (default sqlite)")
	flag.StringVar(&dbFilenameFlag, "db", "", "Cache DB file (sqlite) or directory (leveldb)")
	flag.StringVar(&redisFlag, "redis", "", "Redis address or redis:// URL")
	flag.StringVar(&staleFlag, "stale", "", "Time until a stored response is revalidated, e.g. 30s")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config, err := loadConfig(configFilenameFlag, Config{
		Origin:      originFlag,
		Port:        portFlag,
		TimeToStale: staleFlag,
		Store: StoreConfig{
			Kind:  storeFlag,
			Path:  dbFilenameFlag,
			Redis: redisFlag,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		log.Fatal().Err(err).Msg("Proxy stopped")
	}
}

// run serves the proxy until ctx is done.
func run(ctx context.Context, config Config) error {
	store, closeStore, err := openStore(config.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("Could not close cache store")
		}
	}()

	client := swr.CreateClient(swr.Config{
		Store:            store,
		Transport:        newOriginClient(ctx, config),
		TimeToStale:      config.timeToStale,
		CacheReadTimeout: config.cacheReadTimeout,
		OriginTimeout:    config.originTimeout,
		KeyPrefix:        config.KeyPrefix,
		CacheStatusName:  "swr-proxy",
		Logger:           &log.Logger,
	})
	defer client.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           newRouter(client, config.originURL),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Msgf("Proxying port %v to %s using %s store", config.Port, config.originURL.String(), config.Store.Kind)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if config.statsEvery > 0 {
		g.Go(func() error {
			logStats(ctx, client, config.statsEvery)
			return nil
		})
	}

	return g.Wait()
}

func logStats(ctx context.Context, client *swr.Client, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := client.Stats()
			log.Info().
				Int64("freshHits", stats.FreshHits).
				Int64("staleHits", stats.StaleHits).
				Int64("misses", stats.Misses).
				Int64("storeWrites", stats.StoreWrites).
				Int64("passthroughs", stats.Passthroughs).
				Int64("revalidations", stats.Revalidations).
				Int64("revalidationFailures", stats.RevalidationFailures).
				Int("revalidationsPending", stats.RevalidationsPending).
				Int64("revalidationsDropped", stats.RevalidationsDropped).
				Msg("Cache stats")
		}
	}
}
