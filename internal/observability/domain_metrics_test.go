package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var titanicLabels = Labels{Connection: "titanic", Dataset: "mjboothaus/titanic-databooth"}

func TestObserveDatasetLoadCountsTablesOnlyOnSuccess(t *testing.T) {
	okBefore := metricValue(t, datasetLoadsTotal.WithLabelValues(titanicLabels.values("ok")...))
	failedBefore := metricValue(t, datasetLoadsTotal.WithLabelValues(titanicLabels.values("failed")...))
	tablesBefore := metricValue(t, tablesLoadedTotal.WithLabelValues(titanicLabels.values()...))

	ObserveDatasetLoad(titanicLabels, 2, 1782, time.Second, nil)
	ObserveDatasetLoad(titanicLabels, 5, 10, time.Second, errors.New("boom"))

	if got := metricValue(t, datasetLoadsTotal.WithLabelValues(titanicLabels.values("ok")...)) - okBefore; got != 1 {
		t.Fatalf("ok loads delta = %v", got)
	}
	if got := metricValue(t, datasetLoadsTotal.WithLabelValues(titanicLabels.values("failed")...)) - failedBefore; got != 1 {
		t.Fatalf("failed loads delta = %v", got)
	}
	if got := metricValue(t, tablesLoadedTotal.WithLabelValues(titanicLabels.values()...)) - tablesBefore; got != 2 {
		t.Fatalf("tables delta = %v", got)
	}
}

func TestQueryOutcomeCounters(t *testing.T) {
	executed := metricValue(t, queriesTotal.WithLabelValues(titanicLabels.values("executed")...))
	cached := metricValue(t, queriesTotal.WithLabelValues(titanicLabels.values("cached")...))
	failed := metricValue(t, queriesTotal.WithLabelValues(titanicLabels.values("failed")...))

	ObserveQueryExecuted(titanicLabels, 3*time.Millisecond)
	IncrementQueryCached(titanicLabels)
	IncrementQueryCached(titanicLabels)
	IncrementQueryFailed(titanicLabels)

	if got := metricValue(t, queriesTotal.WithLabelValues(titanicLabels.values("executed")...)) - executed; got != 1 {
		t.Fatalf("executed delta = %v", got)
	}
	if got := metricValue(t, queriesTotal.WithLabelValues(titanicLabels.values("cached")...)) - cached; got != 2 {
		t.Fatalf("cached delta = %v", got)
	}
	if got := metricValue(t, queriesTotal.WithLabelValues(titanicLabels.values("failed")...)) - failed; got != 1 {
		t.Fatalf("failed delta = %v", got)
	}
}

func TestQueryCountersAreScopedPerConnection(t *testing.T) {
	other := Labels{Connection: "wine", Dataset: "owner/wine-quality"}
	before := metricValue(t, queriesTotal.WithLabelValues(other.values("cached")...))

	IncrementQueryCached(titanicLabels)

	if got := metricValue(t, queriesTotal.WithLabelValues(other.values("cached")...)) - before; got != 0 {
		t.Fatalf("other connection delta = %v", got)
	}
}

func TestSetUnhealthyTablesClampsNegative(t *testing.T) {
	gauge := unhealthyTables.WithLabelValues(titanicLabels.values()...)
	SetUnhealthyTables(titanicLabels, -3)
	if got := metricValue(t, gauge); got != 0 {
		t.Fatalf("unhealthy tables = %v", got)
	}
	SetUnhealthyTables(titanicLabels, 2)
	if got := metricValue(t, gauge); got != 2 {
		t.Fatalf("unhealthy tables = %v", got)
	}
}

func TestIncrementAuthFailure(t *testing.T) {
	before := metricValue(t, authFailuresTotal.WithLabelValues("invalid_key"))
	IncrementAuthFailure("invalid_key")
	if got := metricValue(t, authFailuresTotal.WithLabelValues("invalid_key")) - before; got != 1 {
		t.Fatalf("auth failures delta = %v", got)
	}
}

func metricValue(t *testing.T, metric prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := metric.Write(&out); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}
