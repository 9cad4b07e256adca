package stats

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	g := Summarize("rules", 3, []float64{1, 2, 3, 4})
	if g.Population != "rules" || g.Generation != 3 || g.Size != 4 {
		t.Fatalf("unexpected header: %+v", g)
	}
	if g.Min != 1 || g.Max != 4 {
		t.Fatalf("unexpected bounds: %+v", g)
	}
	if math.Abs(g.Mean-2.5) > 1e-12 {
		t.Fatalf("unexpected mean: %f", g.Mean)
	}
	if math.Abs(g.Std-math.Sqrt(1.25)) > 1e-12 {
		t.Fatalf("unexpected std: %f", g.Std)
	}
}

func TestSummarizeSingleValue(t *testing.T) {
	g := Summarize("mf", 0, []float64{0.3})
	if g.Std != 0 || g.Mean != 0.3 {
		t.Fatalf("unexpected single value stats: %+v", g)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	g := Summarize("mf", 0, nil)
	if g.Size != 0 || g.Max != 0 {
		t.Fatalf("unexpected empty stats: %+v", g)
	}
}

func TestBestByGeneration(t *testing.T) {
	history := []Generation{
		{Population: "a", Max: 0.1},
		{Population: "b", Max: 0.5},
		{Population: "a", Max: 0.2},
	}
	got := BestByGeneration(history, "a")
	if len(got) != 2 || got[0] != 0.1 || got[1] != 0.2 {
		t.Fatalf("unexpected series: %v", got)
	}
}
