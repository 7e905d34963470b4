package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/inspirehep/inspire-matcher/config"
	"github.com/inspirehep/inspire-matcher/internal/repositories/matchresult"
	"github.com/inspirehep/inspire-matcher/pkg/cache"
	"github.com/inspirehep/inspire-matcher/pkg/database"
	"github.com/inspirehep/inspire-matcher/pkg/logging"
	"github.com/inspirehep/inspire-matcher/pkg/matcher"
	"github.com/inspirehep/inspire-matcher/pkg/routes/health"
	"github.com/inspirehep/inspire-matcher/pkg/search"
	"github.com/inspirehep/inspire-matcher/pkg/similarity"
	"github.com/inspirehep/inspire-matcher/pkg/startup"
	"github.com/inspirehep/inspire-matcher/pkg/tracing"
	"github.com/inspirehep/inspire-matcher/pkg/validators"
)

const startupAttempts = 5

// app holds the wired service. Backends connect in start.
type app struct {
	cfg      *config.Config
	logger   ectologger.Logger
	sync     func()
	configs  *config.MatcherStore
	registry *validators.Registry
	backend  *search.Elasticsearch
	searcher search.Searcher
	cache    *cache.Cache
	db       *sqlx.DB
	results  *matchresult.Repository
	engine   *matcher.Engine
	startup  *startup.Startup
}

func newApp(cfg *config.Config) (*app, error) {
	logger, sync, err := logging.NewLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, err
	}

	configs, err := config.LoadMatcherStore(cfg.MatcherConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading matcher configs: %w", err)
	}

	backend, err := search.NewElasticsearch(logger, search.ElasticsearchConfig{
		Addresses: cfg.SearchAddresses,
		Username:  cfg.SearchUsername,
		Password:  cfg.SearchPassword,
	})
	if err != nil {
		return nil, err
	}

	var searcher search.Searcher = backend
	searcher = search.WithTimeout(searcher, time.Duration(cfg.SearchTimeoutSeconds)*time.Second)
	if cfg.SearchRequestsPerSec > 0 {
		searcher = search.RateLimited(searcher, rate.NewLimiter(rate.Limit(cfg.SearchRequestsPerSec), cfg.SearchBurst))
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		sync:     sync,
		configs:  configs,
		registry: validators.NewRegistry(logger, authorsTitlesOptions(cfg)),
		backend:  backend,
		searcher: searcher,
		startup:  startup.NewStartup(logger, startupAttempts),
	}
	a.addDependencies()

	return a, nil
}

func authorsTitlesOptions(cfg *config.Config) validators.AuthorsTitlesOptions {
	opts := validators.DefaultAuthorsTitlesOptions()
	opts.MaxAuthors = cfg.AuthorsTitlesMaxAuthors
	opts.TitleThreshold = cfg.AuthorsTitlesTitleThreshold
	opts.MathThreshold = cfg.AuthorsTitlesMathThreshold
	opts.LastNameThreshold = cfg.AuthorsTitlesLastNameThreshold
	opts.AuthorsWeight = cfg.AuthorsTitlesAuthorsWeight
	opts.TitlesWeight = cfg.AuthorsTitlesTitlesWeight
	if cfg.AuthorsTitlesMetric != "" {
		opts.Metric = similarity.AuthorsMetric(cfg.AuthorsTitlesMetric)
	}
	return opts
}

func (a *app) addDependencies() {
	cfg := a.cfg

	if cfg.TracingEnabled {
		var shutdown func(context.Context) error
		a.startup.AddDependency(startup.Func{
			Name: "tracing",
			StartFn: func(ctx context.Context) error {
				otlp := tracing.DefaultOTLPConfig()
				otlp.Endpoint = cfg.TracingEndpoint
				otlp.Protocol = cfg.TracingProtocol
				otlp.Insecure = cfg.TracingInsecure

				var err error
				shutdown, err = tracing.Setup(ctx, cfg.AppName, otlp)
				return err
			},
			StopFn: func(ctx context.Context) error {
				if shutdown == nil {
					return nil
				}
				return shutdown(ctx)
			},
		})
	}

	a.startup.AddDependency(startup.Func{
		Name:    "search",
		StartFn: a.backend.Ping,
	})

	if cfg.RedisEnabled {
		a.startup.AddDependency(startup.Func{
			Name: "cache",
			StartFn: func(ctx context.Context) error {
				c, err := cache.NewCache(ctx, cache.Config{
					Addr:     cfg.RedisAddr,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
					Prefix:   cfg.RedisPrefix,
					TTL:      cfg.CacheTTL,
				}, a.logger)
				if err != nil {
					return err
				}
				a.cache = c
				return nil
			},
			StopFn: func(context.Context) error {
				return a.cache.Close()
			},
		})
	}

	if cfg.DatabaseEnabled {
		a.startup.AddDependency(startup.Func{
			Name:    "database",
			StartFn: a.startDatabase,
			StopFn: func(context.Context) error {
				return a.db.Close()
			},
		})
	}
}

func (a *app) startDatabase(ctx context.Context) error {
	cfg := a.cfg
	db, err := database.Connect(ctx, database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}

	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(max(cfg.DatabaseMigrationVersion, 0)),
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.MigratePostgres(db, cfg.DatabaseName); err != nil {
		_ = db.Close()
		return err
	}

	a.db = db
	a.results = matchresult.NewRepository(db, a.logger)
	return nil
}

// start connects the backends and builds the engine
func (a *app) start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return err
	}

	opts := []matcher.Option{}
	if a.cache != nil {
		opts = append(opts, matcher.WithCache(a.cache))
	}
	a.engine = matcher.NewEngine(a.logger, a.searcher, a.registry, opts...)
	return nil
}

func (a *app) stop(ctx context.Context) {
	if err := a.startup.Stop(ctx); err != nil {
		a.logger.WithError(err).Error("Failed to stop dependencies")
	}
	a.sync()
}

// healthChecker reports on every connected backend
func (a *app) healthChecker(version string) *health.Checker {
	checker := health.NewChecker(version)
	checker.AddCheck("search", a.backend)
	if a.cache != nil {
		checker.AddCheck("cache", a.cache)
	}
	if a.results != nil {
		checker.AddCheck("database", a.results)
	}
	return checker
}
