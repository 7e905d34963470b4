package configs

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/inspirehep/inspire-matcher/pkg/models"
)

// Store is the set of named matcher configs
type Store interface {
	Get(name string) (*models.MatcherConfig, bool)
	Names() []string
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Register registers matcher config routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/configs", h.ListConfigs)
	g.GET("/configs/:name", h.GetConfig)
}

func (h *Handler) ListConfigs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"configs": h.store.Names()})
}

func (h *Handler) GetConfig(c echo.Context) error {
	name := c.Param("name")
	cfg, ok := h.store.Get(name)
	if !ok {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("matcher config %s not found", name)).AddMetaValue("name", name)
	}
	return c.JSON(http.StatusOK, cfg)
}
