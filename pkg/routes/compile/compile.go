package compile

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/query"
	"github.com/inspirehep/inspire-matcher/pkg/utils"
)

// Compiler turns a query spec and a record into a search body
type Compiler interface {
	Compile(ctx context.Context, spec models.QuerySpec, record models.Record, opts query.Options) (models.QueryBody, error)
}

type Request struct {
	Query        models.QuerySpec `json:"query"`
	Record       models.Record    `json:"record" validate:"required"`
	Collections  []string         `json:"collections,omitempty" validate:"omitempty,dive,required"`
	MatchDeleted bool             `json:"match_deleted,omitempty"`
}

// Response holds the compiled body. Body is null when the record has nothing to match on.
type Response struct {
	Body models.QueryBody `json:"body"`
}

type Handler struct {
	compiler Compiler
}

func NewHandler(compiler Compiler) *Handler {
	return &Handler{compiler: compiler}
}

// Register registers compile routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/compile", h.Compile)
}

// Compile compiles a single query against the posted record
func (h *Handler) Compile(c echo.Context) error {
	req, err := utils.BindAndValidate[Request](c)
	if err != nil {
		return err
	}

	body, err := h.compiler.Compile(c.Request().Context(), req.Query, req.Record, query.Options{
		Collections:  req.Collections,
		MatchDeleted: req.MatchDeleted,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, Response{Body: body})
}
