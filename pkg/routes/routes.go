package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/inspirehep/inspire-matcher/pkg/middleware"
	"github.com/inspirehep/inspire-matcher/pkg/routes/compile"
	"github.com/inspirehep/inspire-matcher/pkg/routes/configs"
	"github.com/inspirehep/inspire-matcher/pkg/routes/health"
	"github.com/inspirehep/inspire-matcher/pkg/routes/match"
	"github.com/inspirehep/inspire-matcher/pkg/routes/results"
)

// Dependencies holds what the API needs. Results is nil when persistence is disabled.
type Dependencies struct {
	ServiceName  string
	Logger       ectologger.Logger
	Compiler     compile.Compiler
	Engine       match.Engine
	Configs      configs.Store
	Results      ResultRepository
	Health       *health.Checker
	AllowOrigins []string
	AllowMethods []string
}

// ResultRepository stores and lists match results
type ResultRepository interface {
	match.ResultStore
	results.Repository
}

// NewServer builds the echo server with every route registered
func NewServer(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(deps.Logger)

	e.Use(echomw.Recover())
	if len(deps.AllowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: deps.AllowOrigins,
			AllowMethods: deps.AllowMethods,
		}))
	}
	e.Use(otelecho.Middleware(deps.ServiceName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(deps.Logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if deps.Health != nil {
		deps.Health.RegisterRoutes(e)
	}

	v1 := e.Group("/api/v1")
	compile.NewHandler(deps.Compiler).Register(v1)
	configs.NewHandler(deps.Configs).Register(v1)

	var store match.ResultStore
	if deps.Results != nil {
		store = deps.Results
		results.NewHandler(deps.Results).Register(v1)
	}
	match.NewHandler(deps.Logger, deps.Engine, deps.Configs, store).Register(v1)

	return e
}
