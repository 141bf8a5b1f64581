package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airexport/internal/etl"
)

func TestCollector_RecordsResults(t *testing.T) {
	c := NewCollector(nil)

	c.TableFetched("Students", 120)
	c.TableFetched("Students", 5)
	c.ExportFinished(&etl.ExportResult{
		Kind: "enrollments", Status: etl.StatusSuccess, RowsWritten: 40,
		DanglingRefs: 2, Duration: 3 * time.Second, UploadError: "upload k: AccessDenied",
	})
	c.ExportFinished(&etl.ExportResult{Kind: "enrollments", Status: etl.StatusError, RowsWritten: 0})

	assert.Equal(t, 125.0, testutil.ToFloat64(c.rowsFetched.WithLabelValues("Students")))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.rowsExported.WithLabelValues("enrollments")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dangling.WithLabelValues("enrollments")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("enrollments", etl.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("enrollments", etl.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.uploadFailures.WithLabelValues("enrollments")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runDuration))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(nil)
	c.TableFetched("Partners", 3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `airexport_rows_fetched_total{table="Partners"} 3`)
}
