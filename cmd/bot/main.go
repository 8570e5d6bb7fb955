package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/app"
	"github.com/Spok95/mini-hemis/internal/config"
	"github.com/Spok95/mini-hemis/internal/db"
	inmemdb "github.com/Spok95/mini-hemis/internal/db/inmem"
	"github.com/Spok95/mini-hemis/internal/hemis"
	"github.com/Spok95/mini-hemis/internal/jobs"
	"github.com/Spok95/mini-hemis/internal/logging"
	"github.com/Spok95/mini-hemis/internal/observability"
	"github.com/Spok95/mini-hemis/internal/session"
)

const memoryDSN = "memory://"

func main() {
	// .env необязателен: в проде переменные приходят из окружения
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer lg.Closer()
	log := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		log.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		observability.CaptureErr(err)
		log.Error("stopped with error", zap.Error(err))
		flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, ping, closeStore, err := openStore(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer closeStore()

	client := hemis.New(hemis.Config{
		BaseURL: cfg.Hemis.BaseURL,
		Origin:  cfg.Hemis.Origin,
		Timeout: cfg.Hemis.Timeout,
		Throttle: hemis.ThrottleConfig{
			Auth: cfg.Hemis.MinIntervalAuth,
			Data: cfg.Hemis.MinIntervalData,
		},
	}, log)
	sessions := session.NewManager(client, store, log)
	svc := academic.NewService(client, store, sessions, cfg.Location, log)

	httpCfg := app.HTTPConfig{Addr: cfg.HTTPAddr, BotSecret: cfg.BotAPISecret, CORSOrigins: cfg.CORSOrigins}
	app.StartHTTP(ctx, httpCfg, app.NewRouter(httpCfg, svc, ping, log), log)

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = cfg.Env != "prod"
	log.Info("bot started", zap.String("username", bot.Self.UserName))

	hour, minute, err := config.ParseClock(cfg.Notify.DailyAt)
	if err != nil {
		return err
	}
	runner := jobs.New(ctx, log)
	notifier := app.NewScheduleNotifier(bot, svc, cfg.Notify.Parallelism, log)
	runner.DailyAt(hour, minute, cfg.Location, "daily_schedule", notifier.Job)
	if ka := app.NewKeepAlive(cfg.KeepAlive.URL, ping, log); ka.Enabled() && cfg.KeepAlive.Interval > 0 {
		runner.Every(cfg.KeepAlive.Interval, "keepalive", ka.Job)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()

	app.NewDispatcher(bot, svc, log).Run(ctx, updates)
	log.Info("shutting down")
	return nil
}

// openStore — Postgres по DATABASE_URL или память для локального запуска.
func openStore(ctx context.Context, dsn string, log *zap.Logger) (academic.IdentityStore, func(context.Context) error, func(), error) {
	if dsn == memoryDSN {
		log.Warn("using in-memory identity store, data is lost on restart")
		return inmemdb.New(), nil, func() {}, nil
	}
	database, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(database.DB); err != nil {
		_ = database.Close()
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}
	ping := func(ctx context.Context) error { return db.Ping(ctx, database) }
	return db.NewIdentityStore(database), ping, func() { _ = database.Close() }, nil
}
