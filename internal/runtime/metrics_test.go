package runtime

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebase/framework"
)

func TestMetricsEmit(t *testing.T) {
	m := NewMetrics()
	m.Emit(framework.Event{
		Type:      framework.EventRunFinish,
		Timestamp: time.Unix(1700000000, 0),
		Metadata:  map[string]any{"lines": int64(150), "duration_ms": int64(2500)},
	})
	m.Emit(framework.Event{Type: framework.EventRunRejected})
	m.Emit(framework.Event{
		Type:     framework.EventProjectFinish,
		Project:  "api",
		Metadata: map[string]any{"lines": int64(100), "files": int64(4), "errors": 1},
	})
	m.Emit(framework.Event{Type: framework.EventFileError, Project: "api"})
	m.Emit(framework.Event{Type: framework.EventFileError, Project: "api"})

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejected))
	require.Equal(t, 150.0, testutil.ToFloat64(m.totalLines))
	require.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRun))
	require.Equal(t, 100.0, testutil.ToFloat64(m.projectLines.WithLabelValues("api")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.projectFiles.WithLabelValues("api")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.fileErrors.WithLabelValues("api")))

	m.Forget("api")
	require.Equal(t, 0, testutil.CollectAndCount(m.projectLines))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.Emit(framework.Event{Type: framework.EventRunRejected})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "codebase_inspector_rejected_total 1")
	require.Contains(t, string(body), "go_goroutines")
}
