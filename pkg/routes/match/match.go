package match

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/inspirehep/inspire-matcher/config"
	reqctx "github.com/inspirehep/inspire-matcher/pkg/context"
	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/utils"
)

const defaultConfigName = "default"

type Engine interface {
	Match(ctx context.Context, record models.Record, cfg *models.MatcherConfig) (*models.MatchRun, error)
}

type ConfigStore interface {
	Get(name string) (*models.MatcherConfig, bool)
}

type ResultStore interface {
	SaveRun(ctx context.Context, run *models.MatchRun) ([]models.MatchResult, error)
}

// Request matches Record against a named config, or against an inline MatcherConfig when given
type Request struct {
	Config        string                `json:"config,omitempty"`
	MatcherConfig *models.MatcherConfig `json:"matcher_config,omitempty"`
	Record        models.Record         `json:"record" validate:"required"`
}

type Response struct {
	*models.MatchRun
	Results []models.MatchResult `json:"results,omitempty"`
}

type Handler struct {
	engine  Engine
	configs ConfigStore
	results ResultStore
	logger  ectologger.Logger
}

// NewHandler creates the match handler. results may be nil when persistence is disabled.
func NewHandler(logger ectologger.Logger, engine Engine, configs ConfigStore, results ResultStore) *Handler {
	return &Handler{
		engine:  engine,
		configs: configs,
		results: results,
		logger:  logger,
	}
}

// Register registers match routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/match", h.Match)
}

// Match runs the matching algorithm. ?persist=true stores the accepted hits.
func (h *Handler) Match(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindAndValidate[Request](c)
	if err != nil {
		return err
	}

	persist := false
	if raw := c.QueryParam("persist"); raw != "" {
		persist, err = strconv.ParseBool(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid persist value %q", raw))
		}
	}
	if persist && h.results == nil {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "match result persistence is disabled")
	}

	cfg, err := h.resolveConfig(ctx, req)
	if err != nil {
		return err
	}
	ctx = reqctx.SetConfigName(ctx, cfg.Name)

	run, err := h.engine.Match(ctx, req.Record, cfg)
	if err != nil {
		if errors.Is(err, config.ErrMalformedConfig) {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	resp := Response{MatchRun: run}
	if persist {
		resp.Results, err = h.results.SaveRun(reqctx.SetRunID(ctx, run.RunID), run)
		if err != nil {
			return err
		}
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":  run.RunID,
		"matches": len(run.Matches),
		"cached":  run.Cached,
	}).Debug("Matched record")

	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) resolveConfig(ctx context.Context, req Request) (*models.MatcherConfig, error) {
	if req.MatcherConfig != nil {
		if req.MatcherConfig.Name == "" {
			req.MatcherConfig.Name = "inline"
		}
		return req.MatcherConfig, nil
	}

	name := req.Config
	if name == "" {
		name = reqctx.GetConfigName(ctx)
	}
	if name == "" {
		name = defaultConfigName
	}

	cfg, ok := h.configs.Get(name)
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("matcher config %s not found", name)).AddMetaValue("name", name)
	}
	return cfg, nil
}
