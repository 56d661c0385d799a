package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupExportsSpansOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	shutdown, err := Setup(ctx, Config{ServiceName: "crowdfund-test", Tracing: true, Writer: &buf})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "unit-span")
	span.End()

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), "unit-span")
	assert.Contains(t, buf.String(), "crowdfund-test")
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "x"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
