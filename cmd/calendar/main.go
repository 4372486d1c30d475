package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/config"
	httptransport "github.com/example/office-calendar/internal/http"
	"github.com/example/office-calendar/internal/lock"
	"github.com/example/office-calendar/internal/logging"
	"github.com/example/office-calendar/internal/notify"
	"github.com/example/office-calendar/internal/persistence/sqlite"
	"github.com/example/office-calendar/internal/persistence/sqlite/migration"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("calendar API stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newApp(ctx, cfg, migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("calendar API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// app holds the wired HTTP handler and the resources it must release.
type app struct {
	handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
}

func newApp(ctx context.Context, cfg config.Config, dbConfig migration.SQLiteConfig, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, err := sqlite.Open(ctx, dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	locker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closer, ok := locker.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	if closer, ok := publisher.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	idGenerator := uuid.NewString
	now := time.Now

	users := newUserStore(store.Users)
	rooms := newRoomStore(store.Rooms)
	bookings := newBookingStore(store.Bookings)
	events := newEventStore(store.Events)
	sessions := newSessionStore(store.Sessions, logger)
	snapshots := newReservationSnapshots(store.Bookings, store.Events)

	policy := application.NewConflictPolicy(snapshots, locker, cfg.UniformRoomConflicts, logger)

	userService := application.NewUserServiceWithLogger(users, application.HashPassword, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(users, sessions, application.NewTokenSigner(cfg.SessionSecret), application.VerifyPassword, idGenerator, now, cfg.SessionTTL, logger)
	roomService := application.NewRoomServiceWithLogger(rooms, bookings, idGenerator, now, logger).WithMaxCapacity(cfg.MaxRoomCapacity)
	bookingService := application.NewBookingServiceWithLogger(bookings, rooms, policy, publisher, idGenerator, now, logger)
	eventService := application.NewEventServiceWithLogger(events, rooms, policy, publisher, idGenerator, now, logger)

	if cfg.AdminEmail != "" {
		if _, err := userService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("seed administrator: %w", err)
		}
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, userService, cfg.SecureCookies, logger),
		Users:          httptransport.NewUserHandler(userService, logger),
		Rooms:          httptransport.NewRoomHandler(roomService, bookingService, logger),
		Bookings:       httptransport.NewBookingHandler(bookingService, logger),
		Events:         httptransport.NewEventHandler(eventService, logger),
		RequireSession: httptransport.RequireSession(authService, logger),
		Middleware:     []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
	return a, nil
}

// newLocker uses Redis when configured so several API processes share room
// locks, and an in-process mutex otherwise.
func newLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (lock.Locker, error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-process room locks")
		return lock.NewKeyedMutex(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	locker := lock.NewRedisLocker(client, cfg.LockTTL)
	if err := locker.Ping(ctx); err != nil {
		_ = locker.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("using redis room locks", "addr", cfg.RedisAddr)
	return locker, nil
}

func newPublisher(cfg config.Config, logger *slog.Logger) (notify.Publisher, error) {
	if cfg.AMQPURL == "" {
		return notify.NewLogPublisher(logger), nil
	}
	publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	logger.Info("publishing notifications", "exchange", cfg.AMQPExchange)
	return publisher, nil
}
