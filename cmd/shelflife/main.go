package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dukerupert/shelflife/internal/config"
	"github.com/dukerupert/shelflife/internal/database"
	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/listener"
	"github.com/dukerupert/shelflife/internal/logging"
	"github.com/dukerupert/shelflife/internal/notify"
	"github.com/dukerupert/shelflife/internal/objectstore"
	"github.com/dukerupert/shelflife/internal/push"
	"github.com/dukerupert/shelflife/internal/record"
	"github.com/dukerupert/shelflife/internal/repository"
	"github.com/dukerupert/shelflife/internal/server"
	"github.com/dukerupert/shelflife/internal/store"
	"github.com/dukerupert/shelflife/internal/store/traced"
	"github.com/dukerupert/shelflife/internal/telemetry"
	ws "github.com/dukerupert/shelflife/internal/websocket"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate VAPID keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("SHELFLIFE_VAPID_PUBLIC_KEY=%s\nSHELFLIFE_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    "shelflife",
		ServiceVersion: version,
		UseStdout:      cfg.TraceStdout,
	})
	if err != nil {
		slog.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	db, dialect, err := openDatabase(cfg)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	records, err := openRecordStore(cfg, db, dialect)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}

	bus := event.NewBus(logger.With("component", "bus"))
	items := repository.NewItems(records, bus, logger)
	lists := repository.NewLists(records, bus, logger)
	photos := repository.NewPhotos(records, bus, logger)

	hub := ws.NewHub(logger)
	pushStore := store.NewPushStore(db, dialect)

	// Background goroutines each own one bus subscription.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	var wg sync.WaitGroup
	background := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(bgCtx)
		}()
	}

	subscribe := func(run func(context.Context, *event.Subscription)) {
		startSubscriber(bgCtx, &wg, bus, run)
	}

	subscribe(func(ctx context.Context, sub *event.Subscription) {
		event.Log(ctx, sub, logger.With("component", "events"))
	})
	subscribe(hub.Run)
	subscribe(listener.NewListTouch(lists, logger).Run)
	subscribe(listener.NewCascade(items, photos, logger).Run)
	subscribe(listener.NewRemoteRefresh(items, lists, photos, logger).Run)

	if cfg.PushEnabled() {
		svc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
		subscribe(push.NewNotifier(svc, pushStore, cfg.Zone, logger).Run)
	} else {
		slog.Info("push disabled: VAPID keys not configured")
	}

	srv := server.New(server.Deps{
		Items:          items,
		Lists:          lists,
		Photos:         photos,
		Hub:            hub,
		Router:         notify.NewRouter(bus, logger),
		PushStore:      pushStore,
		Zone:           cfg.Zone,
		VAPIDPublicKey: cfg.VAPIDPublicKey,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)
	background(func(ctx context.Context) { srv.RateLimiter().Run(ctx, 10*time.Minute) })

	// Warm the list cache.
	lists.FetchAll(bgCtx)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("shelflife starting", "addr", httpServer.Addr, "store", cfg.Backend, "zone", cfg.Zone, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	bgCancel()
	wg.Wait()
	if err := shutdownTracing(ctx); err != nil {
		slog.Error("tracing shutdown error", "error", err)
	}
}

// openDatabase opens the SQL database. With the s3 backend it still holds
// push subscriptions, so a local SQLite file is used.
// startSubscriber takes the bus subscription before the goroutine starts so
// no event published during startup is missed.
func startSubscriber(ctx context.Context, wg *sync.WaitGroup, bus *event.Bus, run func(context.Context, *event.Subscription)) {
	sub := bus.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		run(ctx, sub)
	}()
}

func openDatabase(cfg config.Config) (*sql.DB, database.Dialect, error) {
	if cfg.Backend == config.BackendPostgres {
		db, err := database.OpenPostgres(cfg.DatabaseURL)
		return db, database.Postgres, err
	}
	db, err := database.Open(cfg.DBPath)
	return db, database.SQLite, err
}

func openRecordStore(cfg config.Config, db *sql.DB, dialect database.Dialect) (record.Store, error) {
	var next record.Store
	switch cfg.Backend {
	case config.BackendS3:
		s, err := objectstore.New(cfg.S3, cfg.Zone)
		if err != nil {
			return nil, err
		}
		next = s
	default:
		next = store.NewRecordStore(db, dialect, cfg.Zone)
	}
	return traced.Wrap(next, string(cfg.Backend)), nil
}
