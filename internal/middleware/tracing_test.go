package middleware

import (
	"net/http/httptest"
	"testing"

	"crabber/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := observability.Tracer
	observability.Tracer = provider.Tracer("test")
	t.Cleanup(func() { observability.Tracer = previous })

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/molts/:id", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		assert.Equal(t, c.GetRespHeader("X-Trace-ID"), c.Locals("traceID"))
		return c.SendStatus(fiber.StatusInternalServerError)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/molts/3", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, span.SpanContext().TraceID().String(), resp.Header.Get("X-Trace-ID"))
	assert.Equal(t, "GET /molts/:id", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.Int64("crab.id", 7))
	assert.Contains(t, span.Attributes(), attribute.Int("http.status_code", 500))
}
