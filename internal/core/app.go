package core

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/config"
	"github.com/astrbot-devs/console-go/internal/conflict"
	"github.com/astrbot-devs/console-go/internal/db"
	"github.com/astrbot-devs/console-go/internal/dialog"
	"github.com/astrbot-devs/console-go/internal/extension"
	"github.com/astrbot-devs/console-go/internal/installer"
	"github.com/astrbot-devs/console-go/internal/jobs"
	"github.com/astrbot-devs/console-go/internal/market"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/astrbot-devs/console-go/internal/notify"
	"github.com/astrbot-devs/console-go/internal/page"
	"github.com/astrbot-devs/console-go/internal/sources"
	"github.com/astrbot-devs/console-go/internal/store"
)

// App holds the core components of the application that are shared between
// the server and the background jobs.
type App struct {
	config *config.Config
	db     *sql.DB

	hub       *notify.Hub
	toaster   *notify.Toaster
	dialog    *dialog.Controller
	client    *botapi.Client
	settings  *store.Store
	conflicts *conflict.Prompter
	registry  *extension.Registry
	market    *market.Store
	installer *installer.Orchestrator
	sources   *sources.Registry
	page      *page.Orchestrator
	jobMgr    *jobs.JobManager
}

// New sets up and returns a new App instance. It loads configuration,
// initializes the database connection, runs migrations and wires the
// dashboard components together.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig is New with an externally supplied configuration; tests use
// it to point the app at temp databases and fake backends.
func NewWithConfig(cfg *config.Config) (*App, error) {
	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app := &App{config: cfg, db: database}

	app.hub = notify.NewHub()
	go app.hub.Run()

	app.toaster = notify.NewToaster(app.hub)
	app.dialog = dialog.New(app.hub)
	app.settings = store.New(database)
	app.client = botapi.New(cfg.Backend.BaseURL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)

	app.conflicts = conflict.New(app.client, func() {
		app.hub.Publish("navigate", map[string]string{"path": "/commands"})
	})

	app.registry = extension.New(app.client, app.settings, app.dialog, app.toaster, func(ctx context.Context) {
		app.conflicts.CheckAndPrompt(ctx)
	})

	app.market = market.New(app.client, app.toaster, func() []models.InstalledPlugin {
		return app.registry.Plugins()
	})

	app.installer = installer.New(app.client, app.settings, app.dialog, app.toaster, func(ctx context.Context, result *models.InstallResult, openReadme bool) {
		app.page.AfterInstall(ctx, result, openReadme)
	})

	app.sources = sources.New(app.client, app.settings, app.toaster, func(ctx context.Context, sourceURL string) {
		app.page.OnSourceChange(ctx, sourceURL)
	})

	app.page = page.New(app.registry, app.market, app.installer, app.sources, app.conflicts, app.dialog, app.toaster, app.hub)

	app.jobMgr = jobs.NewManager(app)
	jobs.RegisterJobs(app.jobMgr)

	log.Println("Core application setup complete.")
	return app, nil
}

// Close gracefully closes the application's resources, like the DB
// connection.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *App) Config() *config.Config             { return a.config }
func (a *App) DB() *sql.DB                        { return a.db }
func (a *App) Hub() *notify.Hub                   { return a.hub }
func (a *App) Toaster() *notify.Toaster           { return a.toaster }
func (a *App) Dialog() *dialog.Controller         { return a.dialog }
func (a *App) Client() *botapi.Client             { return a.client }
func (a *App) Settings() *store.Store             { return a.settings }
func (a *App) Conflicts() *conflict.Prompter      { return a.conflicts }
func (a *App) Registry() *extension.Registry      { return a.registry }
func (a *App) Market() *market.Store              { return a.market }
func (a *App) Installer() *installer.Orchestrator { return a.installer }
func (a *App) Sources() *sources.Registry         { return a.sources }
func (a *App) Page() *page.Orchestrator           { return a.page }
func (a *App) JobManager() *jobs.JobManager       { return a.jobMgr }
