package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.JobFinished("done")
	m.JobFinished("done")
	m.JobFinished("failed")
	m.Issue("empty_data")
	m.Issue("")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IssuesTotal.WithLabelValues("other")))
}

func TestMetrics_BatchFinished(t *testing.T) {
	m := New()
	at := time.Unix(1700000000, 0)

	m.BatchFinished(1, at)
	assert.Zero(t, testutil.ToFloat64(m.LastBatchSuccess))

	m.BatchFinished(0, at)
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastBatchSuccess))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.JobFinished("done")
	m.PhaseFinished("collecting", 2*time.Second)

	path := filepath.Join(t.TempDir(), "sitrep.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `sitrep_jobs_total{outcome="done"} 1`)
	assert.Contains(t, string(data), `sitrep_phase_duration_seconds_count{phase="collecting"} 1`)
}
