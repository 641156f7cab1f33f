package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"loanflow/configs"
	"loanflow/internal/audit"
	auditkafka "loanflow/internal/audit/kafka"
	auditmemory "loanflow/internal/audit/store/memory"
	auditpostgres "loanflow/internal/audit/store/postgres"
	"loanflow/internal/bureau"
	"loanflow/internal/bureau/cache"
	"loanflow/internal/pipeline"
	"loanflow/internal/pipeline/handler"
	"loanflow/internal/pipeline/metrics"
	"loanflow/internal/platform/config"
	"loanflow/internal/platform/httpserver"
	"loanflow/internal/platform/logger"
	"loanflow/internal/platform/postgres"
	"loanflow/internal/platform/redis"
	"loanflow/internal/rules"
	"loanflow/internal/rules/store"
	httptransport "loanflow/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the pipeline and rules packages.
func main() {
	cfg := config.FromEnv()
	level, levelErr := logger.ParseLevel(cfg.LogLevel)
	log := logger.New(level)
	if levelErr != nil {
		log.Warn("invalid log level", "error", levelErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("loanflow exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	health := map[string]httptransport.HealthCheck{}

	source, closeSource, err := ruleSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	engine, err := rules.NewEngine(ctx, source, rules.WithLogger(log))
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	log.Info("rules loaded", "source", cfg.RulesSource, "version", engine.Ruleset().Version)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	idb, cb := bureaus(cfg, log)
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var reports cache.Store
	if redisClient != nil {
		defer redisClient.Close()
		reports = cache.NewRedisStore(redisClient, cfg.Redis.ReportTTL)
		health["redis"] = redisClient.Health
	} else {
		reports = cache.NewMemoryStore(cfg.Redis.ReportTTL)
	}
	cb = cache.NewCachedCreditBureau(cb, reports, cache.WithLogger(log))

	sinks, reader, closeAudit, err := auditSinks(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeAudit()
	worker := audit.NewWorker(sinks,
		audit.WithLogger(log),
		audit.WithCounters(m.AuditFailures, m.AuditDropped),
		audit.WithBuffer(cfg.AuditBuffer),
	)
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()
	defer func() {
		worker.Close()
		stopWorker()
		<-workerDone
	}()

	onboarding := pipeline.NewOnboarding(engine, idb, cb, pipeline.OnboardingConfig{
		Policy:                loanPolicy(cfg.Loan),
		SecondaryVerification: cfg.Loan.SecondaryIDEnabled,
	},
		pipeline.WithLogger(log),
		pipeline.WithAuditSink(worker),
		pipeline.WithMetrics(m),
		pipeline.WithStageTimeout(cfg.Loan.StageTimeout),
	)

	h := handler.New(onboarding, engine, log, m,
		handler.WithDetailedErrors(cfg.IsDevelopment()),
		handler.WithAuditReader(reader),
	)
	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Gatherer:       registry,
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeout,
		HealthChecks:   health,
		RateLimit:      cfg.RateLimit,
	}, h)

	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)
	log.Info("starting loanflow", "addr", cfg.Addr, "env", cfg.Env)
	return httpserver.Run(ctx, srv, cfg.ShutdownTimeout, log)
}

func ruleSource(ctx context.Context, cfg config.Server) (rules.Source, func(), error) {
	switch cfg.RulesSource {
	case "file":
		if cfg.RulesPath == "" {
			return nil, nil, errors.New("RULES_SOURCE=file requires RULES_PATH")
		}
		return store.NewFileSource(cfg.RulesPath), func() {}, nil
	case "postgres":
		db, err := postgres.OpenDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("open rule store: %w", err)
		}
		return store.NewPostgresSource(db, cfg.RulesName), func() { _ = db.Close() }, nil
	case "embedded", "":
		return store.StaticSource(configs.DefaultRules), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown RULES_SOURCE %q", cfg.RulesSource)
	}
}

// bureaus returns HTTP clients when URLs are configured and the in-process
// simulator otherwise.
func bureaus(cfg config.Server, log *slog.Logger) (bureau.IdentityBureau, bureau.CreditBureau) {
	var (
		idb bureau.IdentityBureau
		cb  bureau.CreditBureau
		sim *bureau.Simulator
	)
	if cfg.Bureau.IdentityURL != "" {
		idb = bureau.NewClient(bureau.ClientConfig{
			ProviderID: "identity",
			BaseURL:    cfg.Bureau.IdentityURL,
			APIKey:     cfg.Bureau.APIKey,
			Timeout:    cfg.Bureau.Timeout,
			MaxRetries: cfg.Bureau.MaxRetries,
		}, bureau.WithClientLogger(log))
	} else {
		sim = bureau.NewSimulator()
		idb = sim
	}
	if cfg.Bureau.CreditURL != "" {
		cb = bureau.NewClient(bureau.ClientConfig{
			ProviderID: "cibil",
			BaseURL:    cfg.Bureau.CreditURL,
			APIKey:     cfg.Bureau.APIKey,
			Timeout:    cfg.Bureau.Timeout,
			MaxRetries: cfg.Bureau.MaxRetries,
		}, bureau.WithClientLogger(log))
	} else {
		if sim == nil {
			sim = bureau.NewSimulator()
		}
		cb = sim
	}
	if sim != nil {
		log.Warn("using simulated bureau", "identity", cfg.Bureau.IdentityURL == "", "credit", cfg.Bureau.CreditURL == "")
	}
	return idb, cb
}

// auditSinks assembles the sink fan-out. Postgres and Kafka join when
// configured; without Postgres the trail is kept in memory.
func auditSinks(ctx context.Context, cfg config.Server, log *slog.Logger, health map[string]httptransport.HealthCheck) (audit.Sink, handler.AuditReader, func(), error) {
	var (
		sinks   audit.Fanout
		reader  handler.AuditReader
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	switch {
	case err == nil:
		closers = append(closers, pool.Close)
		pgStore := auditpostgres.New(pool)
		sinks = append(sinks, pgStore)
		reader = pgStore
		health["postgres"] = pool.Ping
	case errors.Is(err, postgres.ErrNotConfigured):
		mem := auditmemory.New()
		sinks = append(sinks, mem)
		reader = mem
	default:
		return nil, nil, nil, fmt.Errorf("connect audit store: %w", err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, auditkafka.WithLogger(log))
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("connect kafka: %w", err)
		}
		closers = append(closers, pub.Close)
		if err := pub.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			log.Warn("audit topic bootstrap failed", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		sinks = append(sinks, pub)
		health["kafka"] = pub.Health
	}
	return sinks, reader, closeAll, nil
}

func loanPolicy(cfg config.LoanConfig) pipeline.LoanPolicy {
	policy := pipeline.DefaultLoanPolicy()
	if cfg.IncomeMultiplier > 0 {
		policy.IncomeMultiplier = float64(cfg.IncomeMultiplier)
	}
	if cfg.ProcessingFeePct >= 0 {
		policy.ProcessingFeePct = cfg.ProcessingFeePct
	}
	if cfg.DefaultAnnualRate > 0 {
		policy.DefaultAnnualRate = cfg.DefaultAnnualRate
	}
	return policy
}
