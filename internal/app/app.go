package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"BirbFetcher/internal/config"
	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/eligibility"
	"BirbFetcher/internal/infrastructure/blobstore"
	"BirbFetcher/internal/infrastructure/httpapi"
	"BirbFetcher/internal/infrastructure/httpclient"
	"BirbFetcher/internal/infrastructure/media"
	"BirbFetcher/internal/infrastructure/reddit"
	"BirbFetcher/internal/infrastructure/scheduler"
	"BirbFetcher/internal/infrastructure/storage"
	"BirbFetcher/internal/infrastructure/telegram"
	"BirbFetcher/internal/logging"
	"BirbFetcher/internal/ports"
	"BirbFetcher/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	dialect    storage.Dialect
	repository *storage.ItemRepository
}

// New opens the metadata store. It does not migrate; Run and Migrate do.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, dialect, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		dialect:    dialect,
		repository: storage.NewItemRepository(db, dialect),
	}, nil
}

// Close releases the database handle.
func (a *Application) Close() error {
	return a.db.Close()
}

// Repository exposes the item store for operator commands.
func (a *Application) Repository() *storage.ItemRepository {
	return a.repository
}

// Migrate brings the schema up to date.
func (a *Application) Migrate(ctx context.Context) (storage.Result, error) {
	migrator := storage.NewMigrator(a.db, a.dialect, a.logger.With("component", "migrator"))
	result, err := migrator.Migrate(ctx)
	if err != nil {
		return result, fmt.Errorf("migrate schema: %w", err)
	}
	a.logger.Info("schema ready", "from", result.From, "to", result.To, "applied", result.Applied)
	return result, nil
}

// SchemaVersion reads the persisted schema version.
func (a *Application) SchemaVersion(ctx context.Context) (int, error) {
	return storage.NewMigrator(a.db, a.dialect, a.logger).Version(ctx)
}

// Override moves an item to state regardless of its current state.
func (a *Application) Override(ctx context.Context, id int64, state domain.State) error {
	if err := a.repository.Transition(ctx, id, state); err != nil {
		return err
	}
	a.logger.Info("moderator override", "id", id, "state", state)
	return nil
}

// Run migrates the schema and then drives the ingestion loop, the moderation
// loop and the HTTP surface until ctx is cancelled. A failed migration stops
// everything before any loop starts.
func (a *Application) Run(ctx context.Context) error {
	if _, err := a.Migrate(ctx); err != nil {
		return err
	}

	blobs, err := blobstore.Open(a.cfg.Storage.BlobDir)
	if err != nil {
		return err
	}
	a.logger.Info("blob store ready", "dir", blobs.Root())

	httpClient := httpclient.New(httpclient.Options{
		Timeout:    a.cfg.Feed.Timeout,
		MaxRetries: a.cfg.Feed.MaxRetries,
		Logger:     a.logger,
	})
	feed := reddit.NewClient(httpClient, reddit.Options{
		BaseURL:   a.cfg.Feed.BaseURL,
		UserAgent: a.cfg.Feed.UserAgent,
		Limit:     a.cfg.Feed.ListingLimit,
	}, a.logger.With("component", "feed"))
	policy := eligibility.Policy{
		HostPrefix: a.cfg.Eligibility.HostPrefix,
		Extensions: a.cfg.Eligibility.Extensions,
	}
	fetcher := media.NewFetcher(httpClient, a.cfg.Feed.UserAgent, a.cfg.Content.MaxBytes, policy, a.logger.With("component", "media"))

	var notifier ports.Notifier
	if a.cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(a.cfg.Notifications.Telegram.BotToken, a.cfg.Notifications.Telegram.ChatID)
		a.logger.Info("telegram announcements enabled")
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Feed:       feed,
		Fetcher:    fetcher,
		Store:      blobs,
		Repository: a.repository,
		Notifier:   notifier,
		Policy:     policy,
		Channels:   a.cfg.Channels,
		Orders:     listingOrders(a.cfg.Feed.Orders),
		Logger:     a.logger.With("component", "pipeline"),
	})
	moderator := usecase.NewModerator(usecase.ModeratorDeps{
		Repository: a.repository,
		Feed:       feed,
		Rules: usecase.Rules{
			MinScore: a.cfg.Moderation.MinScore,
			MinAge:   a.cfg.Moderation.MinAge(),
			Policy:   policy,
		},
		FastInterval: a.cfg.Moderation.FastInterval,
		Cooldown:     a.cfg.Moderation.Cooldown,
		Logger:       a.logger.With("component", "moderator"),
	})
	loops := usecase.NewScheduler(
		scheduler.NewLoop("birbfetcher", a.logger.With("component", "scheduler")),
		pipeline,
		moderator,
		a.cfg.Ingestion.Interval,
	)

	a.logger.Info("starting loops",
		"channels", a.cfg.Channels,
		"ingest_interval", a.cfg.Ingestion.Interval,
		"moderation_cooldown", a.cfg.Moderation.Cooldown)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loops.Run(ctx)
	})
	if a.cfg.HTTP.Enabled {
		server := httpapi.NewServer(a.cfg.HTTP.Listen, a.repository, blobs, a.logger.With("component", "http"))
		g.Go(func() error {
			return server.Run(ctx)
		})
	}
	return g.Wait()
}

func listingOrders(values []string) []domain.ListingOrder {
	orders := make([]domain.ListingOrder, 0, len(values))
	for _, value := range values {
		if order, ok := domain.ParseListingOrder(value); ok {
			orders = append(orders, order)
		}
	}
	return orders
}
