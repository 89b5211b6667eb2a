package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/api/apitest"
	"github.com/fjod/go_cart/storefront/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// restoreGlobals puts back the process-wide provider and propagator.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestSetup_NoopWithoutEndpoint(t *testing.T) {
	restoreGlobals(t)
	before := otel.GetTextMapPropagator()

	shutdown, err := telemetry.Setup(context.Background(), "", "storefront")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTextMapPropagator())
}

func TestSetup_BackendCallsCarryTraceContext(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()

	var exports atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			exports.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	shutdown, err := telemetry.Setup(ctx, collector.URL, "storefront-test")
	require.NoError(t, err)

	srv := apitest.NewServer(t)
	client := api.NewClient(srv.URL, "1", 5*time.Second)
	_, err = client.Categories(ctx)
	require.NoError(t, err)

	assert.Regexp(t, `^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`, srv.LastHeader("Traceparent"))

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, shutdown(shutdownCtx))
	assert.GreaterOrEqual(t, exports.Load(), int32(1))
}
