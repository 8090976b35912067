package middleware

import (
	"fmt"

	"crabber/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// TracingMiddleware starts a server span per request and exposes its trace id
// in the X-Trace-ID response header.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		headers := propagation.MapCarrier{}
		c.Request().Header.VisitAll(func(k, v []byte) {
			headers[string(k)] = string(v)
		})
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), headers)

		span, ctx := observability.NewServerSpan(ctx, fmt.Sprintf("%s %s", c.Method(), c.Route().Path),
			attribute.String("http.method", c.Method()),
			attribute.String("http.path", c.Path()),
			attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
		)
		defer span.End()

		traceID := span.TraceID()
		c.Locals("traceID", traceID)
		if requestID, ok := c.Locals("requestid").(string); ok {
			span.AddAttributes(attribute.String("request.id", requestID))
		}
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		// Before Next the route is this middleware's; now it is the handler's.
		span.SetName(fmt.Sprintf("%s %s", c.Method(), c.Route().Path))
		status := c.Response().StatusCode()
		span.AddAttributes(attribute.Int("http.status_code", status))
		if err != nil {
			span.SetError(err)
		} else if status >= fiber.StatusInternalServerError {
			span.SetError(fmt.Errorf("status %d", status))
		}
		if uid, ok := c.Locals("userID").(uint); ok {
			span.AddAttributes(attribute.Int64("crab.id", int64(uid)))
		}
		return err
	}
}
