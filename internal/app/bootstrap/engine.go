package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/webchat-support-agent/internal/api/router"
	appconfig "github.com/wolfman30/webchat-support-agent/internal/config"
	"github.com/wolfman30/webchat-support-agent/internal/conversation"
	"github.com/wolfman30/webchat-support-agent/internal/knowledge"
	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/internal/notify"
	"github.com/wolfman30/webchat-support-agent/internal/observability/metrics"
	"github.com/wolfman30/webchat-support-agent/internal/webchat"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// EngineDeps are the already-built collaborators BuildEngine assembles.
type EngineDeps struct {
	Client    conversation.LLMClient
	Knowledge string
	Store     conversation.SessionStore
	Sink      notify.Sink
	Metrics   *metrics.ConversationMetrics
}

// BuildEngine selects the router and lead policy strategies from config.
func BuildEngine(cfg *appconfig.Config, deps EngineDeps, logger *logging.Logger) (*conversation.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("bootstrap: llm client is required")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("bootstrap: lead sink is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var classifier conversation.Classifier
	switch cfg.RouterStrategy {
	case appconfig.RouterLLM:
		classifier = conversation.NewLLMClassifier(deps.Client, logger)
	case appconfig.RouterKeyword, "":
		classifier = conversation.NewKeywordClassifier()
	default:
		return nil, fmt.Errorf("bootstrap: unknown router strategy %q", cfg.RouterStrategy)
	}

	var policy conversation.LeadPolicy
	switch cfg.LeadFlowPolicy {
	case appconfig.LeadPolicySequential:
		policy = conversation.NewSequentialPolicy()
	case appconfig.LeadPolicyGuided, "":
		policy = conversation.NewGuidedPolicy(deps.Client, logger)
	default:
		return nil, fmt.Errorf("bootstrap: unknown lead flow policy %q", cfg.LeadFlowPolicy)
	}

	if strings.TrimSpace(deps.Knowledge) == "" {
		logger.Warn("knowledge text is empty; QA answers will rely on the fallback reply")
	}

	logger.Info("conversation engine configured",
		"router", cfg.RouterStrategy,
		"lead_policy", cfg.LeadFlowPolicy,
		"knowledge_bytes", len(deps.Knowledge),
	)

	return conversation.NewEngine(conversation.EngineConfig{
		Router:   conversation.NewRouter(classifier, logger),
		QA:       conversation.NewQAHandler(deps.Client, deps.Knowledge),
		LeadFlow: conversation.NewLeadFlow(policy, deps.Sink, logger),
		OffTopic: conversation.OffTopicHandler{},
		Store:    deps.Store,
		Metrics:  deps.Metrics,
		Logger:   logger,
	}), nil
}

// App is the fully wired chat agent shared by the API server, the Lambda and the CLI.
type App struct {
	Engine     *conversation.Engine
	Handler    http.Handler
	Leads      leads.Repository
	Registry   *prometheus.Registry
	cleanups   []func()
	redis      *redis.Client
	postgresDB *pgxpool.Pool
}

// Close releases every connection the app opened, in reverse order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

// BuildApp wires configuration into a ready-to-serve App.
func BuildApp(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}

	app := &App{Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewConversationMetrics(app.Registry)

	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	client, closeLLM, err := BuildLLMClient(ctx, cfg, awsCfg, m, logger)
	if err != nil {
		return fail(err)
	}
	app.cleanups = append(app.cleanups, closeLLM)

	var s3Client knowledge.S3API
	if strings.HasPrefix(cfg.KnowledgeSource, "s3://") {
		s3Client = s3.NewFromConfig(awsCfg)
	}
	kb, err := knowledge.Load(ctx, cfg.KnowledgeSource, s3Client)
	if err != nil {
		logger.Warn("failed to load knowledge; continuing without it", "source", cfg.KnowledgeSource, "error", err)
	}

	if cfg.SessionBackend == appconfig.SessionBackendRedis {
		app.redis = BuildRedisClient(ctx, cfg, logger, true)
		if app.redis != nil {
			app.cleanups = append(app.cleanups, func() { _ = app.redis.Close() })
		}
	}
	store, err := BuildSessionStore(cfg, awsCfg, app.redis, logger)
	if err != nil {
		return fail(err)
	}

	repo, pool, err := BuildLeadsRepository(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		app.postgresDB = pool
		app.cleanups = append(app.cleanups, pool.Close)
	}
	app.Leads = repo

	sink, closeSink, err := BuildSink(ctx, cfg, awsCfg, repo, m, logger)
	if err != nil {
		return fail(err)
	}
	app.cleanups = append(app.cleanups, closeSink)

	engine, err := BuildEngine(cfg, EngineDeps{
		Client:    client,
		Knowledge: kb,
		Store:     store,
		Sink:      sink,
		Metrics:   m,
	}, logger)
	if err != nil {
		return fail(err)
	}
	app.Engine = engine

	app.Handler = router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        conversation.NewHandler(engine, logger),
		WebchatHandler:     webchat.NewHandler(engine, nil, logger),
		LeadsHandler:       leads.NewHandler(repo, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatRateLimit:      cfg.ChatRateLimit,
		ChatRateBurst:      cfg.ChatRateBurst,
		ReadinessChecks:    app.readinessChecks(),
	})
	return app, nil
}

func (a *App) readinessChecks() map[string]router.ReadinessCheck {
	checks := map[string]router.ReadinessCheck{}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	if a.postgresDB != nil {
		checks["postgres"] = a.postgresDB.Ping
	}
	return checks
}
