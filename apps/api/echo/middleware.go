package echoapi

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/horarios/core"
)

const requestIDHeader = echo.HeaderXRequestID

// requestIDMiddleware keeps the caller's X-Request-ID or generates one.
func requestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ctx.Request().Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			ctx.Response().Header().Set(requestIDHeader, id)
			return next(ctx)
		}
	}
}

func requestLoggerMiddleware(logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			req, res := ctx.Request(), ctx.Response()
			logger.Info("request", map[string]interface{}{
				"request_id": res.Header().Get(requestIDHeader),
				"method":     req.Method,
				"uri":        req.RequestURI,
				"status":     res.Status,
				"latency":    time.Since(start).String(),
			})
			return nil
		}
	}
}

// timeoutMiddleware bounds the request context so store calls give up in time.
func timeoutMiddleware(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			c, cancel := context.WithTimeout(ctx.Request().Context(), timeout)
			defer cancel()
			ctx.SetRequest(ctx.Request().WithContext(c))
			return next(ctx)
		}
	}
}
