package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/urn"
)

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, false, false)
	log.Debug("hidden")
	log.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNewLogger_VerboseJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, true, true)
	log.Debug("deep", "key", "val")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "deep", entry["msg"])
	assert.Equal(t, "val", entry["key"])
}

func TestMetrics_ResourceStateGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	u := urn.URN("urn:capstan:prod::webapp::aws:s3:Bucket::assets")
	m.Observe(events.ResourceStatus(u, "pending", ""))
	m.Observe(events.ResourceStatus(u, "awaiting-provider", ""))
	m.Observe(events.ResourceStatus(u, "completed", ""))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ResourcesByState.WithLabelValues("pending")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ResourcesByState.WithLabelValues("awaiting-provider")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResourcesByState.WithLabelValues("completed")))
}

func TestMetrics_EventCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Observe(events.Diagnostic(events.SeverityInfo, "a"))
	m.Observe(events.Diagnostic(events.SeverityInfo, "b"))
	m.Observe(events.Cancel("stop"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("diagnostic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("cancel")))
}

func TestMetrics_SessionStateExclusive(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Observe(events.SessionStatus("running", ""))
	m.Observe(events.SessionStatus("completed", ""))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionState.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionState.WithLabelValues("running")))
}

func TestMetrics_Watch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	mux := events.NewMultiplexer()
	sub := mux.Subscribe()
	m.Watch(sub)

	require.NoError(t, mux.Publish(events.Diagnostic(events.SeverityInfo, "hello")))
	mux.Close()
	require.NoError(t, mux.Drain(context.Background()))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.EventsPublished.WithLabelValues("diagnostic")) == 1.0
	}, time.Second, 5*time.Millisecond)
}
