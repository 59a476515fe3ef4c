package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-devtools/beacon/internal/redaction"
)

func TestHealthFlushSanitizesPayloads(t *testing.T) {
	r := NewHealthReporter(nil)
	r.Record("connection_established", map[string]any{
		"token": "abc",
		"host":  "localhost",
		"port":  9222,
	})

	events := r.Flush()
	require.Len(t, events, 1)

	payload := events[0].Payload
	assert.Equal(t, redaction.Placeholder, payload["token"])
	assert.Equal(t, "localhost", payload["host"], "non-sensitive fields untouched")
	assert.Equal(t, 9222, payload["port"])
}

func TestHealthFlushDrains(t *testing.T) {
	r := NewHealthReporter(nil)
	r.Record("buffer_pressure", map[string]any{"console_used": 480})
	r.Record("buffer_pressure", map[string]any{"console_used": 500})
	assert.Equal(t, 2, r.Pending())

	events := r.Flush()
	assert.Len(t, events, 2)
	assert.Zero(t, r.Pending())
	assert.Empty(t, r.Flush())
}

func TestHealthEventWithoutPayload(t *testing.T) {
	r := NewHealthReporter(nil)
	r.Record("browser_disconnected", nil)

	events := r.Flush()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Payload)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestSetupWithoutEndpointStillServesMetrics(t *testing.T) {
	tel, err := Setup(context.Background(), Config{ServiceName: "beacon-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	_, err = tel.Collect(context.Background())
	assert.NoError(t, err)
}
