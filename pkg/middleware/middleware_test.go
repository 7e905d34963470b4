package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspirehep/inspire-matcher/pkg/context"
	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/query"
)

func newEcho(handler echo.HandlerFunc) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = Error(logger)
	e.Use(Context())
	e.Use(Logger(logger))
	e.GET("/test", handler)
	return e
}

func do(e *echo.Echo, header map[string]string) (*httptest.ResponseRecorder, ErrorResponse) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestContext(t *testing.T) {
	t.Run("should keep the caller's request id", func(t *testing.T) {
		var requestID, configName string
		e := newEcho(func(c echo.Context) error {
			requestID = context.GetRequestID(c.Request().Context())
			configName = context.GetConfigName(c.Request().Context())
			return c.NoContent(http.StatusNoContent)
		})

		rec, _ := do(e, map[string]string{echo.HeaderXRequestID: "abc", HeaderMatcherConfig: "default"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "abc", requestID)
		assert.Equal(t, "default", configName)
		assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("should generate a request id", func(t *testing.T) {
		e := newEcho(func(c echo.Context) error {
			return c.NoContent(http.StatusNoContent)
		})

		rec, _ := do(e, nil)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestError(t *testing.T) {
	t.Run("should render http errors with meta", func(t *testing.T) {
		e := newEcho(func(c echo.Context) error {
			return httperror.NewHTTPError(http.StatusNotFound, "config missing not found").AddMetaValue("name", "missing")
		})

		rec, body := do(e, map[string]string{echo.HeaderXRequestID: "req-1"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "req-1", body.RequestID)
		assert.Equal(t, "missing", body.Meta["name"])
	})

	t.Run("should map compile errors to bad request", func(t *testing.T) {
		e := newEcho(func(c echo.Context) error {
			compiler := query.NewCompiler(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
			_, err := compiler.Compile(c.Request().Context(), models.QuerySpec{Type: models.QueryTypeExact}, models.Record{}, query.Options{})
			return err
		})

		rec, body := do(e, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "exact", body.Meta["type"])
	})

	t.Run("should hide unexpected errors", func(t *testing.T) {
		e := newEcho(func(c echo.Context) error {
			return errors.New("connection refused")
		})

		rec, body := do(e, nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal Server Error", body.Message)
	})

	t.Run("should keep echo errors", func(t *testing.T) {
		e := newEcho(func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported")
		})

		rec, body := do(e, nil)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, "unsupported", body.Message)
	})
}
