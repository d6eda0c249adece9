package bootstrap

import (
	"context"
	"sync"

	"prodigy/internal/adapters/ai"
	chclient "prodigy/internal/adapters/clickhouse"
	"prodigy/internal/adapters/config"
	"prodigy/internal/adapters/kafka"
	pgclient "prodigy/internal/adapters/postgres"
	redisclient "prodigy/internal/adapters/redis"
	"prodigy/internal/agents"
	"prodigy/internal/agents/workflows"
	"prodigy/internal/api"
	"prodigy/internal/api/health"
	"prodigy/internal/api/runs"
	usageapi "prodigy/internal/api/usage"
	"prodigy/internal/events"
	chrepo "prodigy/internal/repository/clickhouse"
	filerepo "prodigy/internal/repository/file"
	pgrepo "prodigy/internal/repository/postgres"
	redisrepo "prodigy/internal/repository/redis"
	counselsvc "prodigy/internal/services/counsel"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
	"prodigy/pkg/templates"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (all optional, nil when not configured)
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client
	Kafka *kafka.Producer

	Repos       *Repositories
	Agents      *Agents
	Services    *Services
	Application *Application

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups the run stores and the usage sink
type Repositories struct {
	Runs     *pgrepo.RunRepository
	RunCache *redisrepo.RunCache
	Reports  *filerepo.ReportStore
	Usage    *chrepo.UsageRepository
}

// Agents groups the model plumbing and the pipeline
type Agents struct {
	Providers   *ai.ProviderRegistry
	Models      *ai.ModelSelector
	Guard       *agents.CostGuard
	Caller      *agents.Caller
	Researcher  *agents.Researcher
	Publisher   events.Publisher
	Coordinator *workflows.Coordinator
}

// Services groups application services
type Services struct {
	Counsel *counselsvc.Service
}

// Application groups the HTTP surface
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
	RunsHandler   *runs.Handler
	UsageHandler  *usageapi.Handler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Agents:      &Agents{},
		Services:    &Services{},
		Application: &Application{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitCore()
	c.MustInitApplication()
}

// MustInitCore initializes everything a one-shot evaluation needs.
// Callers may adjust c.Config between MustInitConfig and MustInitCore.
func (c *Container) MustInitCore() {
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitAgents()
	c.MustInitServices()
}

// Start starts background components and the HTTP server
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Repos.Usage != nil {
		c.Repos.Usage.Start(c.Context)
	}

	if c.Application.HTTPServer == nil {
		return errors.Wrap(errors.ErrInternal, "HTTP server is not initialized")
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Repos.Usage,
		c.Kafka,
		c.PG,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}

// TemplateRegistry returns the global template registry
func (c *Container) TemplateRegistry() *templates.Registry {
	return templates.Get()
}
