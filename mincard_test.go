package dsk_test

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/pilosa/dsk"
	"github.com/pilosa/dsk/mock"
	"github.com/pilosa/dsk/test"
)

func scenarioA(t *testing.T) *dsk.MutableDataset {
	return mustDataset(t,
		mustExample(t, "x", f("a", 1), f("b", 1)),
		mustExample(t, "y", f("a", 1), f("c", 1)),
		mustExample(t, "x", f("b", 1)),
	)
}

func featureNames(fm dsk.FeatureMap) []string {
	ret := make([]string, 0)
	for _, info := range fm.Infos() {
		ret = append(ret, info.Name())
	}
	return ret
}

func TestMinimumCardinalityScenarioA(t *testing.T) {
	src := scenarioA(t)
	d, err := dsk.NewMinimumCardinalityDataset(src, 2)
	test.ErrNil(t, err, "NewMinimumCardinalityDataset")

	test.MustBe(t, d.Len(), 3, "examples kept")
	test.MustBe(t, d.NumExamplesRemoved(), 0, "examples removed")
	test.MustBe(t, d.Removed(), []string{"c"}, "removed features")
	test.MustBe(t, d.MinCardinality(), 2)
	if !d.IsRemoved("c") || d.IsRemoved("a") {
		t.Fatalf("IsRemoved disagrees with Removed: %v", d.Removed())
	}

	if diff := cmp.Diff([]dsk.Feature{f("a", 1)}, d.Example(1).Features()); diff != "" {
		t.Fatalf("rebuilt example differs (-want +got):\n%s", diff)
	}
	for i := 0; i < 3; i++ {
		test.MustBe(t, d.Example(i).Output(), dsk.Label([]string{"x", "y", "x"}[i]), "output of "+strconv.Itoa(i))
		test.MustBe(t, d.Example(i).Weight(), 1.0, "weight of "+strconv.Itoa(i))
	}
	// a and b are counted exactly twice, so they stay in examples but not in
	// the feature map.
	test.MustBe(t, d.FeatureMap().Size(), 0, "feature map size")

	if d.Wrapped() != dsk.Dataset(src) {
		t.Fatalf("Wrapped isn't the source dataset")
	}
	if d.OutputIndex() != src.OutputIndex() {
		t.Fatalf("output index was not passed through")
	}
}

func TestMinimumCardinalityScenarioB(t *testing.T) {
	src := mustDataset(t,
		mustExample(t, "x", f("a", 1), f("b", 1)),
		mustExample(t, "y", f("a", 1), f("c", 1)),
		mustExample(t, "x", f("b", 1)),
		mustExample(t, "z", f("d", 7)),
		mustExample(t, "z", f("e", 8)),
	)
	stats := &mock.RecordingStatter{}
	logger := &mock.RecordingLogger{}
	d, err := dsk.NewMinimumCardinalityDataset(src, 2, dsk.OptStatter(stats), dsk.OptLogger(logger))
	test.ErrNil(t, err, "NewMinimumCardinalityDataset")

	test.MustBe(t, d.Len(), 3, "examples kept")
	test.MustBe(t, d.NumExamplesRemoved(), 2, "examples removed")
	test.MustBe(t, d.Removed(), []string{"c", "d", "e"}, "removed features")
	for i := 0; i < d.Len(); i++ {
		if _, ok := d.Example(i).Lookup("d"); ok {
			t.Fatalf("example %d kept a removed feature: %v", i, d.Example(i))
		}
	}

	test.MustBe(t, stats.Counts["mincard.features_removed"], int64(3), "features_removed stat")
	test.MustBe(t, stats.Counts["mincard.examples_removed"], int64(2), "examples_removed stat")
	test.MustBe(t, stats.Counts["mincard.examples_kept"], int64(3), "examples_kept stat")
	if _, ok := stats.Timings["mincard.build_time"]; !ok {
		t.Fatalf("build_time not recorded: %v", stats.Timings)
	}
	test.MustBe(t, len(logger.Debugs), 3, "debug lines")
	test.MustBe(t, len(logger.Prints), 1, "summary lines")
}

func TestMinimumCardinalityBoundary(t *testing.T) {
	src := scenarioA(t)
	d, err := dsk.NewMinimumCardinalityDataset(src, 1)
	test.ErrNil(t, err, "NewMinimumCardinalityDataset")

	// c is counted once: kept in examples (1 < 1 is false) but left out of the
	// feature map (1 > 1 is false).
	if _, ok := d.Example(1).Lookup("c"); !ok {
		t.Fatalf("boundary feature dropped from example: %v", d.Example(1))
	}
	if d.FeatureMap().Get("c") != nil {
		t.Fatalf("boundary feature in feature map")
	}
	if d.IsRemoved("c") {
		t.Fatalf("boundary feature reported removed")
	}
	test.MustBe(t, featureNames(d.FeatureMap()), []string{"a", "b"}, "feature map")

	idx := d.FeatureIndex()
	for i, name := range []string{"a", "b"} {
		id, ok := idx.ID(name)
		if !ok || id != i {
			t.Fatalf("expected id %d for %s, got %d, %v", i, name, id, ok)
		}
		got, ok := idx.Name(i)
		if !ok || got != name {
			t.Fatalf("expected name %s for %d, got %s, %v", name, i, got, ok)
		}
	}
	if _, ok := idx.Name(2); ok {
		t.Fatalf("ids aren't contiguous")
	}
}

func TestMinimumCardinalityScenarioC(t *testing.T) {
	tests := []struct {
		min       int
		wantInMap []string
	}{
		{min: 0, wantInMap: []string{"a"}},
		{min: -1, wantInMap: []string{"a", "z"}},
		{min: -100, wantInMap: []string{"a", "z"}},
	}
	for _, tst := range tests {
		t.Run(strconv.Itoa(tst.min), func(t *testing.T) {
			// z is in the statistics with a count of 0.
			src := newStaticDataset(map[string]int{"a": 3, "z": 0},
				mustExample(t, "x", f("a", 1), f("z", 2)),
				mustExample(t, "y", f("a", 3)),
			)
			d, err := dsk.NewMinimumCardinalityDataset(src, tst.min)
			test.ErrNil(t, err, "NewMinimumCardinalityDataset")
			test.MustBe(t, d.Len(), 2, "examples kept")
			test.MustBe(t, d.NumExamplesRemoved(), 0, "examples removed")
			test.MustBe(t, len(d.Removed()), 0, "removed features")
			for i := 0; i < d.Len(); i++ {
				if diff := cmp.Diff(src.examples[i].Features(), d.Example(i).Features()); diff != "" {
					t.Fatalf("example %d changed (-want +got):\n%s", i, diff)
				}
			}
			got := featureNames(d.FeatureMap())
			sort.Strings(got)
			test.MustBe(t, got, tst.wantInMap, "feature map")
		})
	}
}

func TestMinimumCardinalityVocabularyDrift(t *testing.T) {
	src := newStaticDataset(map[string]int{"a": 5},
		mustExample(t, "x", f("a", 1), f("q", 1)),
		mustExample(t, "y", f("q", 2)),
	)
	d, err := dsk.NewMinimumCardinalityDataset(src, 1)
	test.ErrNil(t, err, "NewMinimumCardinalityDataset")
	test.MustBe(t, d.Removed(), []string{"q"}, "removed")
	test.MustBe(t, d.NumExamplesRemoved(), 1, "examples removed")
	test.MustBe(t, d.Example(0).Features(), []dsk.Feature{f("a", 1)}, "kept example")
}

func TestMinimumCardinalityIdempotent(t *testing.T) {
	src := mustDataset(t,
		mustExample(t, "x", f("a", 1), f("c", 1)),
		mustExample(t, "x", f("a", 1), f("b", 1)),
		mustExample(t, "y", f("a", 1), f("c", 1)),
		mustExample(t, "y", f("c", 1)),
		mustExample(t, "y", f("c", 1)),
	)
	once, err := dsk.NewMinimumCardinalityDataset(src, 2)
	test.ErrNil(t, err, "first filter")
	test.MustBe(t, once.Removed(), []string{"b"}, "first removed")

	twice, err := dsk.NewMinimumCardinalityDataset(once, 2)
	test.ErrNil(t, err, "second filter")
	test.MustBe(t, len(twice.Removed()), 0, "second removed")
	test.MustBe(t, twice.NumExamplesRemoved(), 0, "second examples removed")
	test.MustBe(t, twice.Len(), once.Len(), "examples")
	test.MustBe(t, featureNames(twice.FeatureMap()), featureNames(once.FeatureMap()), "feature maps")
}

func TestMinimumCardinalityProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		examples := make([]*dsk.Example, 0)
		for i := 0; i < 50; i++ {
			features := make([]dsk.Feature, 0)
			for j := 0; j < 12; j++ {
				if r.Intn(4) == 0 {
					features = append(features, f("f"+strconv.Itoa(j), r.Float64()))
				}
			}
			examples = append(examples, mustExample(t, strconv.Itoa(r.Intn(3)), features...))
		}
		src := mustDataset(t, examples...)
		for min := -1; min < 16; min++ {
			d, err := dsk.NewMinimumCardinalityDataset(src, min)
			if err != nil {
				t.Fatalf("round %d min %d: %v", round, min, err)
			}
			if d.NumExamplesRemoved()+d.Len() != src.Len() {
				t.Fatalf("round %d min %d: %d removed + %d kept != %d", round, min, d.NumExamplesRemoved(), d.Len(), src.Len())
			}

			want := make(map[string]struct{})
			for _, ex := range examples {
				for _, feat := range ex.Features() {
					if info := src.FeatureMap().Get(feat.Name); info == nil || info.Count() < min {
						want[feat.Name] = struct{}{}
					}
				}
			}
			wantNames := make([]string, 0, len(want))
			for name := range want {
				wantNames = append(wantNames, name)
			}
			sort.Strings(wantNames)
			if diff := cmp.Diff(wantNames, d.Removed()); diff != "" {
				t.Fatalf("round %d min %d: removed set (-want +got):\n%s", round, min, diff)
			}

			for i := 0; i < d.FeatureIndex().Size(); i++ {
				name, ok := d.FeatureIndex().Name(i)
				if !ok {
					t.Fatalf("round %d min %d: no feature with id %d", round, min, i)
				}
				if d.FeatureMap().Get(name).Count() <= min {
					t.Fatalf("round %d min %d: %s in feature map with count %d", round, min, name, d.FeatureMap().Get(name).Count())
				}
			}
		}
	}
}

func TestMinimumCardinalityOwnsStatistics(t *testing.T) {
	src := scenarioA(t)
	d, err := dsk.NewMinimumCardinalityDataset(src, 1)
	test.ErrNil(t, err, "NewMinimumCardinalityDataset")

	err = src.Add(mustExample(t, "x", f("a", 10)))
	test.ErrNil(t, err, "adding to source")
	test.MustBe(t, src.FeatureMap().Get("a").Count(), 3, "source count")
	test.MustBe(t, d.FeatureMap().Get("a").Count(), 2, "filtered count after source changed")

	d.FeatureMap().Get("a").(*dsk.RealInfo).Observe(5)
	test.MustBe(t, d.FeatureMap().Get("a").Count(), 2, "filtered count after modifying a copy")
	test.MustBe(t, d.Len(), 3, "filtered examples after source changed")
}

func TestSweep(t *testing.T) {
	src := mustDataset(t,
		mustExample(t, "x", f("a", 1), f("b", 1)),
		mustExample(t, "y", f("a", 1), f("c", 1)),
		mustExample(t, "x", f("b", 1)),
		mustExample(t, "z", f("d", 7)),
	)
	thresholds := []int{0, 1, 2, 3}
	ds, err := dsk.Sweep(context.Background(), src, thresholds)
	test.ErrNil(t, err, "Sweep")
	test.MustBe(t, len(ds), len(thresholds), "results")
	for i, min := range thresholds {
		want, err := dsk.NewMinimumCardinalityDataset(src, min)
		test.ErrNil(t, err, "NewMinimumCardinalityDataset")
		test.MustBe(t, ds[i].MinCardinality(), min, "threshold order")
		test.MustBe(t, ds[i].Removed(), want.Removed(), "removed at "+strconv.Itoa(min))
		test.MustBe(t, ds[i].Len(), want.Len(), "kept at "+strconv.Itoa(min))
		if !ds[i].CardinalityProvenance().Equal(want.Provenance()) {
			t.Fatalf("provenance at %d differs", min)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dsk.Sweep(ctx, src, thresholds); errors.Cause(err) != context.Canceled {
		t.Fatalf("expected context.Canceled from cancelled sweep, got %v", err)
	}
}
