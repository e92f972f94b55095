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

	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/auth"
	"github.com/pliu/roomlet/internal/config"
	"github.com/pliu/roomlet/internal/email"
	"github.com/pliu/roomlet/internal/files"
	"github.com/pliu/roomlet/internal/handlers"
	"github.com/pliu/roomlet/internal/logging"
	"github.com/pliu/roomlet/internal/rentals"
	"github.com/pliu/roomlet/internal/session"
	"github.com/pliu/roomlet/internal/store/sqlstore"
	"github.com/pliu/roomlet/internal/ws"
)

var configPath = flag.String("config", "", "path to a YAML config file")

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, "roomlet")
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals

	// Initialize Database
	store, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening %s database: %w", cfg.Database.Driver, err)
	}
	defer store.Close()
	logger.Info("database ready", zap.String("driver", cfg.Database.Driver))

	// Sessions live next to users unless Redis is configured
	var sessions auth.SessionStore = store
	if cfg.Sessions.Backend == "redis" {
		redisStore := session.NewRedisStore(session.NewRedisClient(session.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.Redis.Prefix)
		if err := redisStore.Ping(ctx); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		defer redisStore.Close()
		sessions = redisStore
		logger.Info("redis session store ready", zap.String("addr", cfg.Redis.Addr))
	}

	credentials := auth.NewCredentials(store, logger)
	issuer := auth.NewIssuer(sessions, store, auth.SessionConfig{
		TTL:     cfg.Sessions.TTL,
		Rolling: cfg.Sessions.Rolling,
		Secret:  []byte(cfg.Sessions.TokenSecret),
	}, logger)
	guard := auth.NewGuard(issuer)

	if n, err := issuer.PurgeExpired(ctx); err != nil {
		logger.Warn("purging expired sessions failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("purged expired sessions", zap.Int64("count", n))
	}

	disk, err := files.NewDiskStore(cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("preparing upload dir: %w", err)
	}

	// Initialize WebSocket Hub
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	mailer := email.NewSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, logger)

	rooms := rentals.NewService(store, disk, guard, rentals.Options{
		PublicPath:    cfg.Storage.PublicPath,
		MaxImageBytes: cfg.Storage.MaxImageBytes,
	}, logger, hub, mailer)

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handlers.NewRouter(handlers.Deps{
			Credentials:    credentials,
			Sessions:       issuer,
			Guard:          guard,
			Rooms:          rooms,
			Hub:            hub,
			Logger:         logger,
			UploadDir:      disk.Dir(),
			PublicPath:     cfg.Storage.PublicPath,
			MaxUploadBytes: cfg.Storage.MaxImageBytes,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
