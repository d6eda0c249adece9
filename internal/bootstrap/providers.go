package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"prodigy/internal/adapters/ai"
	chclient "prodigy/internal/adapters/clickhouse"
	"prodigy/internal/adapters/config"
	errnoop "prodigy/internal/adapters/errors/noop"
	"prodigy/internal/adapters/errors/sentry"
	"prodigy/internal/adapters/kafka"
	pgclient "prodigy/internal/adapters/postgres"
	redisclient "prodigy/internal/adapters/redis"
	"prodigy/internal/agents"
	"prodigy/internal/agents/workflows"
	"prodigy/internal/api"
	"prodigy/internal/api/health"
	"prodigy/internal/api/runs"
	usageapi "prodigy/internal/api/usage"
	"prodigy/internal/domain/usage"
	"prodigy/internal/events"
	"prodigy/internal/metrics"
	chrepo "prodigy/internal/repository/clickhouse"
	filerepo "prodigy/internal/repository/file"
	pgrepo "prodigy/internal/repository/postgres"
	redisrepo "prodigy/internal/repository/redis"
	counselsvc "prodigy/internal/services/counsel"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
	"prodigy/pkg/schemas"
	"prodigy/pkg/templates"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the configured data stores. Every store is
// optional: a run can complete with nothing but an OpenAI key.
func (c *Container) MustInitInfrastructure() {
	var err error

	if c.Config.Postgres.Enabled() {
		c.Log.Info("Connecting to PostgreSQL...")
		c.PG, err = pgclient.NewClient(c.Config.Postgres)
		if err != nil {
			c.Log.Fatalf("failed to connect postgres: %v", err)
		}
		c.Log.Info("✓ PostgreSQL connected")
	}

	if c.Config.ClickHouse.Enabled() {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	}

	if c.Config.Redis.Enabled() {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(c.Config.Redis)
		if err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("✓ Redis connected")
	}
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories initializes run stores and the usage sink
func (c *Container) MustInitRepositories() {
	if c.PG != nil {
		c.Repos.Runs = pgrepo.NewRunRepository(c.PG.DB())
	}
	if c.Redis != nil {
		c.Repos.RunCache = redisrepo.NewRunCache(c.Redis, c.Config.Redis.RunTTL)
	}
	if c.Config.Reports.Save {
		c.Repos.Reports = filerepo.NewReportStore(c.Config.Reports.Dir)
	}
	if c.CH != nil {
		c.Repos.Usage = chrepo.NewUsageRepository(c.CH.Conn())
	}

	c.Log.Infow("✓ Repositories initialized",
		"postgres", c.Repos.Runs != nil,
		"redis", c.Repos.RunCache != nil,
		"reports_dir", c.Config.Reports.Save,
		"usage", c.Repos.Usage != nil,
	)
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes Kafka and the model providers
func (c *Container) MustInitAdapters() {
	c.Kafka = provideKafkaProducer(c.Config, c.Log)
	c.Agents.Publisher = providePublisher(c.Config, c.Kafka)

	var rdb *redis.Client
	if c.Redis != nil {
		rdb = c.Redis.Client()
	}
	registry, err := ai.BuildRegistry(c.Config.AI, rdb)
	if err != nil {
		c.Log.Fatalf("failed to build AI provider registry: %v", err)
	}
	c.Agents.Providers = registry
	c.Agents.Models = provideModelSelector(c.Config, registry)

	c.Log.Infow("✓ AI providers initialized",
		"model", c.Config.AI.Model,
		"research", registry.Has(ai.ProviderNameXAI),
	)
}

// ========================================
// Phase 5: Agents
// ========================================

// MustInitAgents builds the caller and the coordinator
func (c *Container) MustInitAgents() {
	c.Agents.Guard = provideCostGuard(c.Config, c.Redis)

	validator, err := schemas.NewValidator()
	if err != nil {
		c.Log.Fatalf("failed to load schemas: %v", err)
	}

	callerCfg := agents.CallerConfig{
		Models:    c.Agents.Models,
		Validator: validator,
		Guard:     c.Agents.Guard,
		Retry:     provideRetryConfig(c.Config.AI),
	}
	// Assigned only when set: a typed nil would make the interface non-nil
	if c.Repos.Usage != nil {
		callerCfg.Usage = usage.Recorder(c.Repos.Usage)
	}
	c.Agents.Caller = agents.NewCaller(callerCfg)

	tmpl := templates.Get()
	if c.Agents.Providers.Has(ai.ProviderNameXAI) {
		c.Agents.Researcher = agents.NewResearcher(c.Agents.Caller, tmpl)
	}

	c.Agents.Coordinator, err = workflows.New(workflows.Config{
		Caller:     c.Agents.Caller,
		Templates:  tmpl,
		Researcher: c.Agents.Researcher,
		Publisher:  c.Agents.Publisher,
		MaxQueries: c.Config.Counsel.MaxQueriesPerTurn,
		RunTimeout: c.Config.Counsel.RunTimeout,
	})
	if err != nil {
		c.Log.Fatalf("failed to create coordinator: %v", err)
	}

	c.Log.Info("✓ Counsel pipeline initialized")
}

// ========================================
// Phase 6: Services
// ========================================

// MustInitServices wires the counsel service over the configured stores.
// Order matters for reads: cache first, then the database, then report files.
func (c *Container) MustInitServices() {
	var stores []counselsvc.Store
	if c.Repos.RunCache != nil {
		stores = append(stores, counselsvc.Store{Name: "redis", Repo: c.Repos.RunCache})
	}
	if c.Repos.Runs != nil {
		stores = append(stores, counselsvc.Store{Name: "postgres", Repo: c.Repos.Runs})
	}
	if c.Repos.Reports != nil {
		stores = append(stores, counselsvc.Store{Name: "file", Repo: c.Repos.Reports})
	}

	c.Services.Counsel = counselsvc.NewService(c.Agents.Coordinator, stores...)
	c.Log.Infow("✓ Services initialized", "stores", len(stores))
}

// ========================================
// Phase 7: Application Layer
// ========================================

// MustInitApplication builds the HTTP surface
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = health.New(c.Config.App.Name, c.Config.App.Version, provideHealthChecks(c))
	c.Application.RunsHandler = runs.NewHandler(c.Services.Counsel)
	routes := []api.Routes{c.Application.RunsHandler}
	if c.Repos.Usage != nil {
		c.Application.UsageHandler = usageapi.NewHandler(c.Repos.Usage, provideBudget(c.Agents.Guard))
		routes = append(routes, c.Application.UsageHandler)
	}

	if c.PG != nil {
		metrics.RegisterRunsCollector(metrics.NewRunsCollector(c.Log, c.PG.DB()))
	}

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:         c.Config.HTTP.Port,
		ServiceName:  c.Config.App.Name,
		Version:      c.Config.App.Version,
		WriteTimeout: c.Config.HTTP.WriteTimeout,
	}, c.Application.HealthHandler, c.Log, routes...)
}

// ========================================
// Providers
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	if !cfg.Kafka.Enabled() {
		log.Info("Kafka brokers not configured, stage events disabled")
		return nil
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	log.Infow("✓ Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	return producer
}

func providePublisher(cfg *config.Config, producer *kafka.Producer) events.Publisher {
	if producer == nil {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(producer, events.Topics{
		Stages: cfg.Kafka.StageTopic,
		Runs:   cfg.Kafka.RunTopic,
	})
}

// provideModelSelector routes every agent to the OpenAI model, except the
// researcher which goes to xAI when that provider is registered.
func provideModelSelector(cfg *config.Config, registry *ai.ProviderRegistry) *ai.ModelSelector {
	var overrides []ai.AgentModelConfig
	if registry.Has(ai.ProviderNameXAI) {
		overrides = append(overrides, ai.AgentModelConfig{
			Agent:    agents.ResearchAgent,
			Provider: ai.ProviderNameXAI,
			Model:    cfg.AI.XAIModel,
		})
	}
	return ai.NewModelSelector(registry, ai.ProviderNameOpenAI, cfg.AI.Model, overrides...)
}

func provideRetryConfig(cfg config.AIConfig) agents.RetryConfig {
	retry := agents.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	retry.InitialDelay = cfg.RetryDelay
	retry.MaxDelay = cfg.RetryMaxDelay
	return retry
}

func provideCostGuard(cfg *config.Config, rdb *redisclient.Client) *agents.CostGuard {
	maxRun := decimal.NewFromFloat(cfg.Counsel.MaxRunCostUSD)
	maxDaily := decimal.NewFromFloat(cfg.Counsel.MaxDailyCostUSD)
	if !maxRun.IsPositive() && !maxDaily.IsPositive() {
		return nil
	}
	if rdb == nil {
		return agents.NewCostGuard(maxRun, maxDaily, nil)
	}
	return agents.NewCostGuard(maxRun, maxDaily, agents.NewRedisCostCache(rdb))
}

// provideBudget avoids handing a typed nil guard to the usage API
func provideBudget(guard *agents.CostGuard) usageapi.Budget {
	if guard == nil {
		return nil
	}
	return guard
}

func provideHealthChecks(c *Container) map[string]health.Checker {
	checks := make(map[string]health.Checker, 3)
	if c.PG != nil {
		checks["postgres"] = c.PG
	}
	if c.CH != nil {
		checks["clickhouse"] = c.CH
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	return checks
}
