package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/soyeahso/kairos/internal/agent"
	"github.com/soyeahso/kairos/internal/config"
	"github.com/soyeahso/kairos/internal/history"
	"github.com/soyeahso/kairos/internal/llm"
	"github.com/soyeahso/kairos/internal/logging"
	"github.com/soyeahso/kairos/internal/search"
	"github.com/soyeahso/kairos/internal/store"
	"github.com/soyeahso/kairos/internal/tools"
)

// app holds every collaborator built from configuration. Commands construct
// one, use the parts they need and Close it.
type app struct {
	cfg     config.Config
	log     *logging.Logger
	metrics *prometheus.Registry

	db          *store.DB                    // nil with the memory store
	sqlite      *store.SQLiteCheckpointStore // nil with the memory store
	checkpoints agent.CheckpointStore

	model    llm.Client
	tools    *tools.Registry
	pipeline *search.Pipeline // nil when search is disabled
	graph    *agent.Graph
}

// appOptions selects the optional parts of an app.
type appOptions struct {
	// withModel builds the model client, tools and graph. Thread browsing
	// commands leave it off so they work without provider credentials.
	withModel bool
}

func newApp(ctx context.Context, cfg config.Config, log *logging.Logger, opts appOptions) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: prometheus.NewRegistry(),
	}
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.openCheckpoints(); err != nil {
		return nil, err
	}
	if !opts.withModel {
		return a, nil
	}

	if err := a.buildModel(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildTools(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildGraph(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openCheckpoints() error {
	switch a.cfg.Checkpoint.Store {
	case "memory":
		a.checkpoints = agent.NewMemoryCheckpointStore()
		a.log.Debug().Msg("using in-memory checkpoint store")
	default:
		if err := paths.EnsureDirs(); err != nil {
			return fmt.Errorf("creating data directories: %w", err)
		}
		dbPath := paths.DatabasePath(a.cfg.Checkpoint)
		db, err := store.Open(dbPath, a.log)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		a.db = db
		a.sqlite = store.NewSQLiteCheckpointStore(db)
		a.checkpoints = a.sqlite
		a.log.Debug().Str("path", dbPath).Msg("using SQLite checkpoint store")
	}
	return nil
}

func (a *app) buildModel() error {
	registry, err := llm.NewRegistryFromConfig(a.cfg.Model, a.log)
	if err != nil {
		return err
	}
	a.log.Info().Strs("providers", registry.List()).Msg("model providers available")
	a.model = agent.NewFailoverClient(registry, a.log)
	return nil
}

func (a *app) buildTools(ctx context.Context) error {
	tc := a.cfg.Tools
	a.tools = tools.NewRegistry()

	if tc.Weather.Enabled {
		a.tools.Register(tools.NewWeatherTool(tc.Weather.APIKey, tc.Weather.Units))
	}
	if tc.Gmail.Enabled {
		svc, err := tools.NewGmailService(ctx,
			paths.CredentialPath(tc.Gmail.CredentialsFile),
			paths.CredentialPath(tc.Gmail.TokenFile))
		if err != nil {
			return fmt.Errorf("gmail tools: %w", err)
		}
		for _, t := range tools.GmailTools(svc) {
			a.tools.Register(t)
		}
	}
	if tc.IMAP.Enabled {
		a.tools.Register(tools.NewMailboxTool(tc.IMAP.Server, tc.IMAP.Username, tc.IMAP.Password, tc.IMAP.Mailbox))
	}
	if tc.Python.Enabled {
		a.tools.Register(tools.NewPythonTool(tc.Python.Interpreter, time.Duration(tc.Python.TimeoutSeconds)*time.Second))
	}
	if a.cfg.Search.Enabled {
		a.pipeline = a.newPipeline()
		a.tools.Register(search.NewTool(a.pipeline))
	}

	a.log.Info().Strs("tools", a.tools.Names()).Msg("tools registered")
	return nil
}

func (a *app) newPipeline() *search.Pipeline {
	sc := a.cfg.Search
	backend := search.NewSerperBackend(search.SerperConfig{
		APIKey:    sc.APIKey,
		Endpoint:  sc.Endpoint,
		GL:        sc.GL,
		HL:        sc.HL,
		RateLimit: sc.RateLimit,
	})
	return search.NewPipeline(a.model, backend, search.PipelineConfig{
		Model:       a.cfg.Model.Model,
		MaxTokens:   a.cfg.Model.MaxTokens,
		Temperature: a.cfg.Model.Temperature,
	}, a.log)
}

func (a *app) buildGraph() error {
	ac := a.cfg.Agent

	tk, err := history.NewTokenizer(ac.Encoding)
	if err != nil {
		a.log.Warn().Err(err).Str("encoding", ac.Encoding).Msg("tokenizer unavailable, using estimate")
	}
	counter := history.NewCounter(tk)
	counter.PerMessageOverhead = ac.PerMessageOverhead

	invoker := tools.NewInvoker(a.tools, tools.InvokerConfig{
		Concurrency: a.cfg.Tools.Concurrency,
		Timeout:     time.Duration(a.cfg.Tools.TimeoutSeconds) * time.Second,
	}, tools.NewMetrics(a.metrics), a.log)

	a.graph, err = agent.NewGraph(agent.GraphConfig{
		SystemInstruction: ac.SystemInstruction,
		MaxIterations:     ac.MaxIterations,
		Model:             a.cfg.Model.Model,
		MaxTokens:         a.cfg.Model.MaxTokens,
		Temperature:       a.cfg.Model.Temperature,
	}, agent.Deps{
		Model:       a.model,
		Tools:       a.tools,
		Invoker:     invoker,
		Trimmer:     history.NewTrimmer(counter, ac.ContextBudget),
		Checkpoints: a.checkpoints,
		Metrics:     agent.NewMetrics(a.metrics),
		Log:         a.log,
	})
	return err
}

// healthCheck pings the database when there is one.
func (a *app) healthCheck(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Ping(ctx)
}

// requireSQLite fails for commands that only work against the durable store.
func (a *app) requireSQLite() error {
	if a.sqlite == nil {
		return fmt.Errorf("this command needs checkpoint.store=sqlite (current: %s)", a.cfg.Checkpoint.Store)
	}
	return nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing database")
		}
	}
}
