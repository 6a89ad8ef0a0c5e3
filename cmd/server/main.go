package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/config"
	"github.com/mamadbah2/harvest/internal/dispatch"
	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/queue"
	"github.com/mamadbah2/harvest/internal/repository/mongodb"
	"github.com/mamadbah2/harvest/internal/repository/sheets"
	"github.com/mamadbah2/harvest/internal/scheduler"
	"github.com/mamadbah2/harvest/internal/server/handlers"
	"github.com/mamadbah2/harvest/internal/server/router"
	"github.com/mamadbah2/harvest/internal/service/alerts"
	"github.com/mamadbah2/harvest/internal/service/export"
	"github.com/mamadbah2/harvest/internal/service/harvest"
	"github.com/mamadbah2/harvest/internal/service/live"
	"github.com/mamadbah2/harvest/internal/service/logistics"
	"github.com/mamadbah2/harvest/internal/service/mutation"
	"github.com/mamadbah2/harvest/internal/service/silobag"
	"github.com/mamadbah2/harvest/internal/store"
	"github.com/mamadbah2/harvest/internal/store/memstore"
	whatsappclient "github.com/mamadbah2/harvest/pkg/clients/whatsapp"
	"github.com/mamadbah2/harvest/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote, err := openStore(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init document store", zap.Error(err))
	}
	defer func() {
		if err := remote.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close document store", zap.Error(err))
		}
	}()

	queueStorage, err := queue.OpenBadger(queue.BadgerConfig{Path: cfg.Queue.Path, InMemory: cfg.Queue.InMemory}, baseLogger.Named("queue.badger"))
	if err != nil {
		baseLogger.Fatal("failed to open offline queue", zap.Error(err))
	}
	defer func() {
		if err := queueStorage.Close(); err != nil {
			baseLogger.Error("failed to close offline queue", zap.Error(err))
		}
	}()

	dispatcher := dispatch.New(remote, baseLogger.Named("dispatch"))
	offlineQueue := queue.New(queueStorage, dispatcher, baseLogger.Named("queue"))

	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		offlineQueue.Subscribe(alerts.NewSyncNotifier(whatsClient, cfg.WhatsApp.OperatorID, baseLogger.Named("svc.alerts")))
		baseLogger.Info("whatsapp sync alerts enabled")
	} else {
		baseLogger.Warn("whatsapp credentials missing, sync alerts disabled")
	}

	cache := live.NewCache(remote, remote, baseLogger.Named("live"),
		live.WithPendingSource(func(ctx context.Context) ([]live.PendingOp, error) {
			return dispatcher.Pending(ctx, offlineQueue)
		}))
	if err := cache.Restore(ctx); err != nil {
		baseLogger.Error("failed to restore queued operations into the live view", zap.Error(err))
	}
	offlineQueue.Subscribe(cache)
	cache.Run(ctx, models.CollectionSessions, models.CollectionRegisters, models.CollectionSilobags)

	monitor := scheduler.NewMonitor(remote, offlineQueue, baseLogger.Named("sync.monitor"))
	go monitor.Watch(ctx)
	pipeline := mutation.NewPipeline(remote, offlineQueue, baseLogger.Named("mutation"),
		mutation.WithLink(monitor),
		mutation.WithLocalView(cache),
		mutation.WithNudge(monitor.Nudge),
		mutation.WithCommitTimeout(cfg.Store.CommitTimeout))

	orgID := cfg.Server.OrganizationID
	harvestSvc := harvest.NewService(pipeline, orgID, baseLogger.Named("svc.harvest"))
	silobagSvc := silobag.NewService(pipeline, orgID, baseLogger.Named("svc.silobag"))
	logisticsSvc := logistics.NewService(pipeline, orgID, baseLogger.Named("svc.logistics"))

	var exporter scheduler.Exporter
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		exporter = export.NewService(remote, sheetsRepo, orgID, baseLogger.Named("svc.export"))
		offlineQueue.Subscribe(export.NewSyncLog(sheetsRepo, orgID, baseLogger.Named("svc.synclog")))
	} else {
		baseLogger.Warn("google sheets credentials missing, export disabled")
	}

	sched, err := scheduler.NewScheduler(*cfg, monitor, exporter, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	engine := router.New(router.Handlers{
		Harvest:       handlers.NewHarvestHandler(harvestSvc, cache, baseLogger.Named("handlers.harvest")),
		Silobags:      handlers.NewSilobagHandler(silobagSvc, cache, baseLogger.Named("handlers.silobag")),
		Logistics:     handlers.NewLogisticsHandler(logisticsSvc, baseLogger.Named("handlers.logistics")),
		Sync:          handlers.NewSyncHandler(offlineQueue, baseLogger.Named("handlers.sync")),
		Subscriptions: handlers.NewSubscriptionHandler(remote, orgID, baseLogger.Named("handlers.subscriptions")),
	}, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     engine,
		ReadTimeout: 15 * time.Second,
		// no write timeout: subscription streams stay open
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		baseLogger.Warn("using in-memory document store, data is lost on restart")
		return memstore.New(baseLogger.Named("store.memory")), nil
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return mongodb.NewMongoDBRepository(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName, baseLogger.Named("repo.mongodb"))
	}
}
