// Command gotrust-server runs the goTrust engine behind its HTTP and
// websocket API.
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

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/thejerf/abtime"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/httpapi"
	"github.com/MrEthical07/goTrust/internal/logging"
	"github.com/MrEthical07/goTrust/mailer"
	"github.com/MrEthical07/goTrust/realtime"
	"github.com/MrEthical07/goTrust/store"
	"github.com/MrEthical07/goTrust/store/memstore"
	"github.com/MrEthical07/goTrust/store/pgstore"
	"github.com/MrEthical07/goTrust/sweeper"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(context.Background(), "server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *serverConfig, logger *logging.SlogLogger) error {
	st, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	jwtSecret, vaultKey, err := cfg.Keys.decode()
	if err != nil {
		return err
	}
	engineCfg := goTrust.DefaultConfig()
	engineCfg.JWT.PrivateKey = jwtSecret
	engineCfg.Vault.Key = vaultKey
	engineCfg.Audit.Enabled = cfg.Audit.Enabled

	registry := realtime.NewRegistry(logger)
	defer registry.Shutdown()

	builder := goTrust.New().
		WithConfig(engineCfg).
		WithStore(st).
		WithLogger(logger).
		WithNotifier(registry).
		WithAuditSink(goTrust.NewJSONWriterSink(os.Stdout))

	mail, err := newMailer(cfg.Mail, cfg.HTTP.DebugEchoToken, logger)
	if err != nil {
		return err
	}
	builder.WithMailer(mail)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		builder.WithRedis(rdb)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if cfg.Sweeper.Enabled {
		sw := engine.NewSweeper(abtime.NewRealTime(), sweeper.Config{
			Interval:  cfg.Sweeper.Interval,
			Retention: cfg.Sweeper.Retention,
		})
		sw.Start(ctx)
		defer sw.Stop()
	}

	httpCfg := httpapi.DefaultConfig()
	httpCfg.CookieSecure = cfg.HTTP.CookieSecure
	httpCfg.CookieSameSite = cfg.HTTP.CookieSameSite
	httpCfg.CookieDomain = cfg.HTTP.CookieDomain
	httpCfg.AllowOrigins = cfg.HTTP.AllowOrigins
	httpCfg.DebugEchoToken = cfg.HTTP.DebugEchoToken
	httpCfg.AccessCookieMaxAge = engineCfg.JWT.AccessTTL
	httpCfg.RefreshCookieMaxAge = engineCfg.JWT.RefreshTTL

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.New(engine, registry, logger, httpCfg).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", cfg.Addr, "store", cfg.Database.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	registry.Shutdown()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the configured backend. Postgres is pinged with
// exponential backoff until ConnectTimeout, then migrated.
func openStore(ctx context.Context, cfg databaseConfig, logger logging.Logger) (store.Store, func(), error) {
	if cfg.Driver == "memory" {
		logger.Warn(ctx, "using in-memory store; data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	pg, err := pgstore.Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaxOpenConns > 0 {
		pg.DB().SetMaxOpenConns(cfg.MaxOpenConns)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = cfg.ConnectTimeout
	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pg.Ping(pingCtx); err != nil {
			logger.Warn(ctx, "database not ready", "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("failed to connect to postgres after retries: %w", err)
	}

	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}

// newMailer falls back to logging mail when SMTP is not configured. Logged
// links keep their tokens only in debug mode.
func newMailer(cfg mailConfig, debug bool, logger logging.Logger) (*mailer.Service, error) {
	links := mailer.Links{BaseURL: cfg.BaseURL}
	if cfg.SMTPHost == "" {
		if debug {
			logger.Warn(context.Background(), "smtp not configured; emails are logged with their tokens")
		} else {
			logger.Warn(context.Background(), "smtp not configured; emails are logged with tokens redacted and cannot be used")
		}
		return mailer.NewService(mailer.LogSender{Logger: logger, ShowTokens: debug}, links, cfg.Product), nil
	}
	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}, logger)
	if err != nil {
		return nil, err
	}
	return mailer.NewService(sender, links, cfg.Product), nil
}
