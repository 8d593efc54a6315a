package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues("incremental", "Committed"))
	RecordRun("incremental", "Committed", 120*time.Millisecond)
	after := testutil.ToFloat64(runsTotal.WithLabelValues("incremental", "Committed"))
	assert.Equal(t, before+1, after)
}

func TestAddFilesIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(filesTotal.WithLabelValues("renamed"))
	AddFiles("renamed", 0)
	AddFiles("renamed", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(filesTotal.WithLabelValues("renamed")))
}

func TestRecordQueryStatus(t *testing.T) {
	okBefore := testutil.ToFloat64(queriesTotal.WithLabelValues("find", "ok"))
	errBefore := testutil.ToFloat64(queriesTotal.WithLabelValues("find", "error"))
	RecordQuery("find", nil)
	RecordQuery("find", errors.New("boom"))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(queriesTotal.WithLabelValues("find", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(queriesTotal.WithLabelValues("find", "error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	AddEdges("ambiguous", 2)
	ObservePhase("resolve", 10*time.Millisecond)
	RecordWarning("ParseFailure")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `codegraph_resolve_edges_total{confidence="ambiguous"}`))
	assert.True(t, strings.Contains(text, "codegraph_pipeline_phase_duration_seconds"))
	assert.True(t, strings.Contains(text, `codegraph_pipeline_warnings_total{kind="ParseFailure"}`))
}
