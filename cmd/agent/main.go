package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/go-redis/redis/v8"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	alerthandler "github.com/aliskhannn/market-alerts/internal/api/handlers/alert"
	notifhandler "github.com/aliskhannn/market-alerts/internal/api/handlers/notification"
	scanhandler "github.com/aliskhannn/market-alerts/internal/api/handlers/scan"
	watchhandler "github.com/aliskhannn/market-alerts/internal/api/handlers/watch"
	"github.com/aliskhannn/market-alerts/internal/api/router"
	"github.com/aliskhannn/market-alerts/internal/api/server"
	"github.com/aliskhannn/market-alerts/internal/config"
	"github.com/aliskhannn/market-alerts/internal/dispatch"
	"github.com/aliskhannn/market-alerts/internal/lock"
	"github.com/aliskhannn/market-alerts/internal/policy"
	"github.com/aliskhannn/market-alerts/internal/pricewatch"
	alertrepo "github.com/aliskhannn/market-alerts/internal/repository/alert"
	notifrepo "github.com/aliskhannn/market-alerts/internal/repository/notification"
	seenrepo "github.com/aliskhannn/market-alerts/internal/repository/seen"
	userrepo "github.com/aliskhannn/market-alerts/internal/repository/user"
	watchrepo "github.com/aliskhannn/market-alerts/internal/repository/watch"
	"github.com/aliskhannn/market-alerts/internal/scan"
	"github.com/aliskhannn/market-alerts/internal/scheduler"
	"github.com/aliskhannn/market-alerts/pkg/email"
	"github.com/aliskhannn/market-alerts/pkg/marketplace"
	"github.com/aliskhannn/market-alerts/pkg/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))

	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	alerts := alertrepo.NewRepository(db)
	users := userrepo.NewRepository(db)
	seen := seenrepo.NewRepository(db)
	notifications := notifrepo.NewRepository(db)
	watches := watchrepo.NewRepository(db)

	emailClient := email.NewClient(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.Username,
		cfg.Email.Password,
		cfg.Email.From,
	)
	telegramClient := telegram.NewClient(cfg.Telegram.Token)
	gateway := marketplace.NewClient(cfg.Marketplace.BaseURL, cfg.Marketplace.APIKey)

	evaluator := policy.NewEvaluator(notifications)
	dispatcher := dispatch.New(notifications, users, evaluator, emailClient, telegramClient)

	scanner := scan.NewRunner(alerts, users, seen, gateway, dispatcher, cfg.Scheduler, cfg.Retry)
	watcher := pricewatch.NewRunner(watches, gateway, dispatcher, cfg.Scheduler.WatchStaleness)

	scanLock := lock.New(rdb, cfg.Lock.Key, cfg.Lock.TTL)
	sched := scheduler.New(scanLock, scanner, watcher, cfg.Scheduler.ScanInterval, cfg.Lock.Timeout)

	go sched.Run(ctx)

	r := router.New(
		alerthandler.NewHandler(alerts, val),
		watchhandler.NewHandler(watches, watcher, val),
		notifhandler.NewHandler(notifications, val),
		scanhandler.NewHandler(sched),
	)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if err := rdb.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close redis client")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}

	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
		}
	}
}
