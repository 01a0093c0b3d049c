package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opst/prodplan/pkg/metrics"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, m *metrics.Metrics) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	ret := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		ret[mf.GetName()] = mf
	}
	return ret
}

func labelsOf(m *dto.Metric) map[string]string {
	ret := map[string]string{}
	for _, l := range m.GetLabel() {
		ret[l.GetName()] = l.GetValue()
	}
	return ret
}

func TestMetrics(t *testing.T) {
	testee := metrics.New()
	testee.Evaluated("WAITING_INPUT", "WAITING_INPUT")
	testee.Evaluated("WAITING_INPUT", "READY")
	testee.Evaluated("INITIAL", "READY")
	testee.Failed("readiness")
	testee.Failed("readiness")
	testee.Cycle("planning", 2*time.Second)
	testee.Planned("PLANNED")

	mfs := gather(t, testee)

	t.Run("evaluations are counted", func(t *testing.T) {
		mf := mfs["prodplan_jobsteps_evaluated_total"]
		if mf == nil {
			t.Fatal("not found")
		}
		if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 3 {
			t.Errorf("value: %f", v)
		}
	})

	t.Run("only changes are counted as transitions", func(t *testing.T) {
		mf := mfs["prodplan_jobstep_transitions_total"]
		if mf == nil {
			t.Fatal("not found")
		}
		if len(mf.GetMetric()) != 2 {
			t.Fatalf("series: %+v", mf.GetMetric())
		}
		for _, m := range mf.GetMetric() {
			labels := labelsOf(m)
			if labels["to"] != "READY" || m.GetCounter().GetValue() != 1 {
				t.Errorf("unexpected series: %v = %f", labels, m.GetCounter().GetValue())
			}
		}
	})

	t.Run("errors are counted per loop", func(t *testing.T) {
		mf := mfs["prodplan_loop_errors_total"]
		if mf == nil {
			t.Fatal("not found")
		}
		m := mf.GetMetric()[0]
		if labelsOf(m)["loop"] != "readiness" || m.GetCounter().GetValue() != 2 {
			t.Errorf("unexpected series: %v = %f", labelsOf(m), m.GetCounter().GetValue())
		}
	})

	t.Run("cycles are observed", func(t *testing.T) {
		mf := mfs["prodplan_loop_cycle_duration_seconds"]
		if mf == nil {
			t.Fatal("not found")
		}
		h := mf.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 1 || h.GetSampleSum() != 2 {
			t.Errorf("unexpected histogram: count = %d, sum = %f", h.GetSampleCount(), h.GetSampleSum())
		}
	})

	t.Run("handler exposes metrics", func(t *testing.T) {
		server := httptest.NewServer(testee.Handler())
		defer server.Close()

		resp, err := http.Get(server.URL)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(body), `prodplan_orders_planned_total{result="PLANNED"} 1`) {
			t.Errorf("unexpected body:\n%s", body)
		}
	})
}

func TestMetrics_Nil(t *testing.T) {
	var testee *metrics.Metrics
	testee.Evaluated("INITIAL", "READY")
	testee.Failed("readiness")
	testee.Cycle("readiness", time.Second)
	testee.Planned("PLANNED")

	rec := httptest.NewRecorder()
	testee.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: %d", rec.Code)
	}
}
