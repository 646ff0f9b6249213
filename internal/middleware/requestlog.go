package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/logging"
)

// Tracing starts a server span per request, continuing any trace the caller
// propagated in the request headers.
func Tracing(serviceName string) echo.MiddlewareFunc {
	tracer := otel.Tracer(serviceName)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := tracer.Start(ctx, req.Method+" "+c.Path(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", c.Path()),
				))
			defer span.End()

			c.SetRequest(req.WithContext(ctx))
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			span.SetAttributes(attribute.Int("http.response.status_code", c.Response().Status))
			return nil
		}
	}
}

// RequestLog writes one structured line per request. Server errors are
// logged at error level, client errors at warn.
func RequestLog(logger *zap.Logger) echo.MiddlewareFunc {
	logger = logger.Named("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			if uid, _, ok := Identity(c); ok {
				fields = append(fields, zap.String("user_id", uid))
			}

			ctx := c.Request().Context()
			switch {
			case status >= 500:
				logging.Error(ctx, logger, "request", fields...)
			case status >= 400:
				logging.Warn(ctx, logger, "request", fields...)
			default:
				logging.Info(ctx, logger, "request", fields...)
			}
			return nil
		}
	}
}
