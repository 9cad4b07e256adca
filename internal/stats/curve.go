package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type CurvePoint struct {
	Generation int     `json:"generation"`
	Runs       int     `json:"runs"`
	Mean       float64 `json:"mean"`
	Max        float64 `json:"max"`
	Std        float64 `json:"std"`
}

// AverageCurve aligns several best-fitness series on generation and
// averages them. Series that stopped early drop out of later points.
func AverageCurve(series [][]float64) []CurvePoint {
	longest := 0
	for _, s := range series {
		longest = max(longest, len(s))
	}
	points := make([]CurvePoint, 0, longest)
	values := make([]float64, 0, len(series))
	for gen := 0; gen < longest; gen++ {
		values = values[:0]
		for _, s := range series {
			if gen < len(s) {
				values = append(values, s[gen])
			}
		}
		p := CurvePoint{Generation: gen, Runs: len(values), Max: floats.Max(values)}
		p.Mean, p.Std = stat.PopMeanStdDev(values, nil)
		points = append(points, p)
	}
	return points
}

// FinalBest returns the last value of every non-empty series.
func FinalBest(series [][]float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, s := range series {
		if len(s) == 0 {
			continue
		}
		out = append(out, s[len(s)-1])
	}
	return out
}
