package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/transcript-client/pkg/batch"
	"github.com/Sternrassler/transcript-client/pkg/cache"
	"github.com/Sternrassler/transcript-client/pkg/config"
	"github.com/Sternrassler/transcript-client/pkg/logging"
	"github.com/Sternrassler/transcript-client/pkg/stream"
	"github.com/Sternrassler/transcript-client/pkg/throttle"
	"github.com/Sternrassler/transcript-client/pkg/transcript"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags. Set flags override the environment.
type globalFlags struct {
	hostURL     string
	redisAddr   string
	logLevel    string
	logFormat   string
	metricsAddr string
	noThrottle  bool
}

// app is the state shared by all subcommands once flags are parsed.
type app struct {
	cfg         config.Config
	logger      zerolog.Logger
	metricsAddr string
}

func newRootCmd(lookupEnv config.LookupFunc) *cobra.Command {
	var (
		flags globalFlags
		a     app
	)

	cmd := &cobra.Command{
		Use:   "transcript-fetch",
		Short: "Fetch video transcripts into Markdown files",
		Long:  "transcript-fetch downloads transcripts from a transcript host, paced and retried to stay within its rate limits.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, lookupEnv, flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.hostURL, "host-url", "", "transcript host base URL (env "+config.EnvHostURL+")")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "Redis address enabling the transcript cache (env "+config.EnvRedisAddr+")")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (env "+config.EnvLogLevel+")")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: auto, json, console (env "+config.EnvLogFormat+")")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	pf.BoolVar(&flags.noThrottle, "no-throttle", false, "disable pacing and retries")

	cmd.AddCommand(newGetCmd(&a), newBatchCmd(&a))

	return cmd
}

// setup loads the configuration, applies flag overrides and configures logging.
func (a *app) setup(cmd *cobra.Command, lookupEnv config.LookupFunc, flags globalFlags) error {
	bootstrap := logging.Setup(logging.Config{
		Level:  logging.LevelInfo,
		Format: logging.FormatAuto,
		Output: cmd.ErrOrStderr(),
	})
	cfg := config.LoadFrom(lookupEnv, bootstrap)

	f := cmd.Flags()
	if f.Changed("host-url") {
		cfg.HostURL = flags.hostURL
	}
	if f.Changed("redis-addr") {
		cfg.RedisAddr = flags.redisAddr
	}
	if f.Changed("log-level") {
		cfg.LogLevel = logging.LogLevel(flags.logLevel)
	}
	if f.Changed("log-format") {
		format, err := logging.ParseFormat(flags.logFormat)
		if err != nil {
			return err
		}
		cfg.LogFormat = format
	}
	if flags.noThrottle {
		cfg.Throttle.Enabled = false
	}

	a.cfg = cfg
	a.metricsAddr = flags.metricsAddr
	a.logger = logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})

	a.logger.Debug().
		Str("host_url", cfg.HostURL).
		Bool("throttle", cfg.Throttle.Enabled).
		Dur("min_delay", cfg.Throttle.MinDelay).
		Int("max_retries", cfg.Throttle.MaxRetries).
		Bool("cache", cfg.CacheEnabled()).
		Msg("Configuration loaded")

	return nil
}

// orchestrator wires the host client, optional cache, throttler and writer.
// The returned cleanup releases the cache connection.
func (a *app) orchestrator(ctx context.Context, progress stream.ProgressFunc) (*batch.Orchestrator, func(), error) {
	clientCfg := transcript.DefaultClientConfig(a.cfg.HostURL)
	clientCfg.UserAgent = a.cfg.UserAgent

	client, err := transcript.NewClient(clientCfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create host client: %w", err)
	}

	var fetcher transcript.Fetcher = client
	cleanup := func() {}

	if a.cfg.CacheEnabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr: a.cfg.RedisAddr,
			DB:   a.cfg.RedisDB,
		})
		manager := cache.NewManager(redisClient)

		if err := manager.Ping(ctx); err != nil {
			a.logger.Warn().Err(err).Str("addr", a.cfg.RedisAddr).Msg("Cache unavailable, fetching from host only")
			_ = redisClient.Close()
		} else {
			a.logger.Info().Str("addr", a.cfg.RedisAddr).Msg("Connected to Redis")
			fetcher = cache.NewCachedFetcher(client, manager, a.cfg.CacheTTL, a.logger)
			cleanup = func() { _ = redisClient.Close() }
		}
	}

	writer := stream.NewWriter(a.cfg.Stream, a.logger)
	if progress != nil {
		writer = writer.WithProgress(progress)
	}

	th := throttle.New(a.cfg.Throttle, a.logger)
	return batch.New(th, fetcher, writer, a.logger), cleanup, nil
}
