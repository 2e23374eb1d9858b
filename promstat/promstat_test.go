package promstat

import (
	"strings"
	"testing"
	"time"

	"github.com/pilosa/dsk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ dsk.Statter = &Collector{}

func TestCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewWithRegistry(registry, "dsk")

	c.Count("mincard.features_removed", 2, 1)
	c.Count("mincard.features_removed", 3, 1)
	c.Gauge("load.rate", 4.5, 1)
	c.Gauge("load.rate", 1.5, 1)
	c.Timing("mincard.build_time", 250*time.Millisecond, 1)
	c.Histogram("sizes", 3, 1)

	if v := testutil.ToFloat64(c.counters["mincard.features_removed"]); v != 5 {
		t.Errorf("expected counter 5, got %f", v)
	}
	if v := testutil.ToFloat64(c.gauges["load.rate"]); v != 1.5 {
		t.Errorf("expected gauge 1.5, got %f", v)
	}
	if n := testutil.CollectAndCount(registry); n != 4 {
		t.Errorf("expected 4 metrics, got %d", n)
	}

	exp := `
# HELP dsk_mincard_features_removed_total Total of mincard.features_removed
# TYPE dsk_mincard_features_removed_total counter
dsk_mincard_features_removed_total 5
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(exp), "dsk_mincard_features_removed_total"); err != nil {
		t.Errorf("unexpected exposition: %v", err)
	}
}

func TestCollectorWithFilter(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewWithRegistry(registry, "dsk")
	d := dsk.NewMutableDataset(dsk.NewDataSourceProvenance("prom", "memory"))
	for _, name := range []string{"a", "a", "b"} {
		ex, err := dsk.NewExample(dsk.Label("x"), 1, dsk.Feature{Name: name, Value: 1})
		if err != nil {
			t.Fatalf("building example: %v", err)
		}
		if err := d.Add(ex); err != nil {
			t.Fatalf("adding example: %v", err)
		}
	}
	if _, err := dsk.NewMinimumCardinalityDataset(d, 2, dsk.OptStatter(c)); err != nil {
		t.Fatalf("filtering: %v", err)
	}
	if v := testutil.ToFloat64(c.counters["mincard.examples_removed"]); v != 1 {
		t.Errorf("expected 1 example removed, got %f", v)
	}
	if v := testutil.ToFloat64(c.counters["mincard.examples_kept"]); v != 2 {
		t.Errorf("expected 2 examples kept, got %f", v)
	}
}
