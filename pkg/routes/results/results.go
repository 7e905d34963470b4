package results

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/inspirehep/inspire-matcher/pkg/models"
)

type Repository interface {
	ListByRun(ctx context.Context, runID string) ([]models.MatchResult, error)
	ListByFingerprint(ctx context.Context, configName, fingerprint string, limit int) ([]models.MatchResult, error)
}

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Register registers stored match result routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/runs/:id", h.GetRun)
	g.GET("/results", h.ListResults)
}

// GetRun returns the stored results of one match run
func (h *Handler) GetRun(c echo.Context) error {
	results, err := h.repo.ListByRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// ListResults lists stored results by config and record fingerprint
func (h *Handler) ListResults(c echo.Context) error {
	configName := c.QueryParam("config")
	fingerprint := c.QueryParam("fingerprint")
	if configName == "" || fingerprint == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "config and fingerprint query parameters are required")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a number")
		}
		limit = parsed
	}

	results, err := h.repo.ListByFingerprint(c.Request().Context(), configName, fingerprint, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}
