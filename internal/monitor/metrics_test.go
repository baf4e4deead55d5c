package monitor

import (
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMetrics(t *testing.T) {

	assert := assert.New(t)

	m := NewSessionMetrics()
	instrument := m.Instrument()

	instrument.RecordTime("connect", 3*time.Millisecond, nil)
	assert.Equal(1.0, testutil.ToFloat64(m.Connected))

	instrument.RecordBytes("send", 9)
	instrument.RecordBytes("send", 4)
	instrument.RecordBytes("receive", 12)
	assert.Equal(13.0, testutil.ToFloat64(m.Bytes.WithLabelValues("send")))
	assert.Equal(12.0, testutil.ToFloat64(m.Bytes.WithLabelValues("receive")))

	refused := &scpi.IoError{Op: "connect", Kind: scpi.ConnectionRefused, Err: syscall.ECONNREFUSED}
	instrument.RecordTime("connect", time.Millisecond, refused)
	assert.Equal(0.0, testutil.ToFloat64(m.Connected))
	assert.Equal(1.0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("connect", scpi.ConnectionRefused.String())))

	assert.Equal(2, testutil.CollectAndCount(m.OperationDuration))
}

func TestSessionMetricsHandler(t *testing.T) {

	m := NewSessionMetrics()
	m.Instrument().RecordTime("send", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `scpi_session_operation_duration_seconds_count{op="send",result="ok"} 1`)
	assert.Contains(t, body, "scpi_session_connected 0")
}
