package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"broker-copilot/internal/agent"
	"broker-copilot/internal/catalogue"
	"broker-copilot/internal/classify"
	"broker-copilot/internal/quotes"
	"broker-copilot/internal/scoring"
	"broker-copilot/internal/services/health"
	"broker-copilot/internal/session"
	"broker-copilot/internal/shared/config"
	"broker-copilot/internal/shared/metrics"
	"broker-copilot/internal/shared/server"
	"broker-copilot/internal/shared/server/middleware"
	"broker-copilot/internal/shared/storage/db"
	"broker-copilot/internal/shared/storage/object"
	localstore "broker-copilot/internal/shared/storage/object/local"
	s3store "broker-copilot/internal/shared/storage/object/s3"
	"broker-copilot/internal/shared/telemetry"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Store          object.Store
	Catalogue      *catalogue.Catalogue
	LocalAgent     *agent.Local
	Agent          agent.Service
	Sessions       *session.Store
	QuoteRepo      quotes.Repo
	QuoteService   *quotes.Service
	SessionHandler *session.Handler
	QuoteHandler   *quotes.Handler
	AgentHandler   *agent.Handler
	Health         *health.Service
}

// Build prepares dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cat, err := buildCatalogue(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Store:     store,
		Catalogue: cat,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		Catalogue:      app.Catalogue,
		SessionHandler: app.SessionHandler,
		QuoteHandler:   app.QuoteHandler,
		AgentHandler:   app.AgentHandler,
		Health:         app.Health,
		RateLimiter:    middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// Close releases the database handle when one was opened.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.db_memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_memory", map[string]any{"reason": "database unavailable", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildCatalogue(cfg config.Config) (*catalogue.Catalogue, error) {
	if cfg.CatalogueFile == "" {
		return catalogue.Default(), nil
	}
	cat, err := catalogue.LoadFile(cfg.CatalogueFile)
	if err != nil {
		return nil, err
	}
	telemetry.Info("bootstrap.catalogue_loaded", map[string]any{"path": cfg.CatalogueFile, "products": cat.Len()})
	return cat, nil
}

func buildServices(app *App) error {
	cfg := app.Config
	thresholds := scoring.Thresholds{High: cfg.HighThreshold, Mid: cfg.MidThreshold}
	if thresholds.High <= thresholds.Mid {
		thresholds = scoring.DefaultThresholds
	}

	var classifierOpts []classify.Option
	if cfg.DedupeFollowups {
		classifierOpts = append(classifierOpts, classify.WithDedupe())
	}
	engine := scoring.NewEngine(thresholds)
	engine.OnFault = func(f scoring.Fault) {
		metrics.IncScoringFault(f.ProductKey)
		telemetry.Error("scoring.fault", map[string]any{"product": f.ProductKey, "error": f})
	}
	local := &agent.Local{
		Catalogue:  app.Catalogue,
		Classifier: classify.Default(classifierOpts...),
		Engine:     engine,
	}

	var svc agent.Service = local
	if cfg.AgentMode == config.AgentModeRemote {
		client, err := agent.NewClient(cfg.AgentBaseURL, cfg.AgentTimeout)
		if err != nil {
			return err
		}
		svc = client
	}
	svc = agent.Instrument(svc, cfg.AgentMode)

	sessions := session.NewStore(cfg.SessionCapacity, cfg.SessionTTL, session.Deps{
		Agent:             svc,
		ClarifiersEnabled: cfg.ClarifiersEnabled,
		Thresholds:        thresholds,
	})

	var repo quotes.Repo
	if app.DB != nil {
		repo = &quotes.PGRepo{DB: app.DB}
	} else {
		repo = quotes.NewMemoryRepo()
	}
	quoteSvc := &quotes.Service{Repo: repo, Store: app.Store}

	app.LocalAgent = local
	app.Agent = svc
	app.Sessions = sessions
	app.QuoteRepo = repo
	app.QuoteService = quoteSvc
	app.SessionHandler = session.NewHandler(sessions)
	app.QuoteHandler = quotes.NewHandler(quoteSvc, app.SessionHandler)
	app.AgentHandler = agent.NewHandler(local)

	app.Health = &health.Service{
		AgentMode: cfg.AgentMode,
		Products:  app.Catalogue.Len,
		Sessions:  sessions.Len,
	}
	if app.DB != nil {
		app.Health.DB = app.DB
	}

	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
