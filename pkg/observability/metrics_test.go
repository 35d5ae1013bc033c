package observability_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()

	ctx := t.Context()
	hooks.OnStepFinish(ctx, &domain.StepEvent{Kind: domain.KindCommand, Outcome: domain.OutcomeRan, Duration: 20 * time.Millisecond})
	hooks.OnStepFinish(ctx, &domain.StepEvent{Kind: domain.KindCommand, Outcome: domain.OutcomeFresh})
	hooks.OnStepFinish(ctx, &domain.StepEvent{Kind: domain.KindCommand, Outcome: domain.OutcomeFresh})
	hooks.OnStepFinish(ctx, &domain.StepEvent{Kind: domain.KindAssertion, Outcome: domain.OutcomeEvaluated})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("command", "ran")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Steps.WithLabelValues("command", "fresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("assertion", "evaluated")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))

	m.RecordRun(nil)
	m.RecordRun(errors.New("boom"))
	expected := `
# HELP kiln_runs_total Total number of executor runs, by result
# TYPE kiln_runs_total counter
kiln_runs_total{result="failure"} 1
kiln_runs_total{result="success"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.Runs, strings.NewReader(expected)))
}

func TestMetrics_Exports(t *testing.T) {
	m := observability.NewMetrics()
	m.RecordRun(nil)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	path := filepath.Join(t.TempDir(), "kiln.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `kiln_runs_total{result="success"} 1`)
}
