package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inspirehep/inspire-matcher/pkg/context"
)

// HeaderMatcherConfig selects the matcher config for a request
const HeaderMatcherConfig = "X-Matcher-Config"

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			if name := req.Header.Get(HeaderMatcherConfig); name != "" {
				ctx = context.SetConfigName(ctx, name)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
