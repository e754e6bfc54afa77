package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway/discord"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

func main() {
	issueToken := flag.String("issue-admin-token", "", "print an admin API token for the named operator and exit")
	flag.Parse()

	cfg, err := config.Load()
	if *issueToken != "" && errors.Is(err, config.ErrMissingToken) {
		err = nil
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *issueToken != "" {
		if err := printAdminToken(cfg, *issueToken); err != nil {
			log.Fatalf("failed to issue token: %v", err)
		}
		return
	}

	logger, err := observability.NewLogger(cfg.Logger, observability.ServiceFields(cfg.App)...)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open ticket store", zap.Error(err))
	}
	defer store.Close()

	registry, err := repository.NewTicketRegistry(ctx, store)
	if err != nil {
		logger.Fatal("failed to load tickets", zap.Error(err))
	}
	logger.Info("tickets loaded", zap.Int("tickets", len(registry.List())), zap.Int("counter", registry.Counter()))

	metrics := observability.NewMetrics(registry.OpenCount)
	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(logger, cfg.Notification)
	notifyWorker := worker.StartNotificationWorker(ctx, dispatcher, notifications, logger)

	// Audit history lives next to the documents and needs the postgres backend.
	var history *service.HistoryService
	var historyWorker *worker.NotificationWorker
	if pg, ok := store.(*persistence.PostgresStore); ok && pg.Pool() != nil {
		history = service.NewHistoryService(repository.NewTicketHistoryRepository(pg.Pool()), logger)
		historyWorker = worker.StartNotificationWorker(ctx, dispatcher, history, logger.Named("history"))
	}

	client, err := discord.New(cfg.Discord.Token, logger)
	if err != nil {
		logger.Fatal("failed to create discord client", zap.Error(err))
	}

	tickets := service.NewTicketService(service.TicketDependencies{
		Tickets:          registry,
		Gateway:          client,
		Extractor:        transcript.NewExtractor(client, cfg.Transcript.PageSize),
		Staff:            auth.NewStaffPolicy(cfg.Discord.StaffRoleID),
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		Logger:           logger,
		TicketCategoryID: cfg.Discord.TicketCategoryID,
		LogsChannelID:    cfg.Discord.LogsChannelID,
		TranscriptDir:    cfg.Transcript.Dir,
	})
	menu := service.NewMenuService(client, cfg.Discord.MenuChannelID, cfg.Discord.BannerURL, logger)

	client.OnInteraction(tickets.Handle)
	client.OnReady(func(ctx context.Context, botUserID string) {
		if err := menu.Publish(ctx, botUserID); err != nil {
			logger.Error("failed to publish ticket menu", zap.Error(err))
		}
	})

	if err := client.Open(); err != nil {
		logger.Fatal("failed to connect to discord", zap.Error(err))
	}

	var adminServer interface{ Shutdown() error }
	if cfg.App.HTTPEnabled {
		routes := httptransport.RouteConfig{
			Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, client),
			Tickets: handlers.NewTicketsHandler(registry),
			Metrics: metrics.Handler(),
		}
		if history != nil {
			routes.History = handlers.NewHistoryHandler(history)
		}
		if cfg.Admin.JWTSecret != "" {
			routes.AuthMiddleware = auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Admin.JWTSecret, 0))
		}
		app := httptransport.NewApp(cfg.App.Name, logger, routes)
		adminServer = app
		go func() {
			if err := app.Listen(cfg.App.Addr()); err != nil {
				logger.Error("admin http server stopped", zap.Error(err))
			}
		}()
		logger.Info("admin http listening", zap.String("addr", cfg.App.Addr()))
	}

	waitForShutdown(logger)

	if adminServer != nil {
		_ = adminServer.Shutdown()
	}
	if err := client.Close(); err != nil {
		logger.Warn("discord close", zap.Error(err))
	}
	notifyWorker.Stop()
	if historyWorker != nil {
		historyWorker.Stop()
	}
}

func printAdminToken(cfg *config.Config, operator string) error {
	if cfg.Admin.JWTSecret == "" {
		return errors.New("ADMIN_JWT_SECRET is not set")
	}
	token, expiresAt, err := auth.NewTokenManager(cfg.Admin.JWTSecret, 0).GenerateToken(operator, auth.ScopeTicketsRead)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
