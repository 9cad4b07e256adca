package fuzzy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlendPerfectClassifier(t *testing.T) {
	m := Metrics{Sensitivity: 1, Specificity: 1, Accuracy: 1, PPV: 1, RMSE: 0}
	w := Weights{Sensitivity: 1, Specificity: 1, Accuracy: 1, PPV: 1, RMSE: 1}
	assert.InDelta(t, 1.0, Blend(m, w), 1e-12)
}

func TestBlendErrorTransform(t *testing.T) {
	assert.InDelta(t, 0.5, Blend(Metrics{MSE: 1}, Weights{MSE: 1}), 1e-12)
	assert.InDelta(t, 0.25, Blend(Metrics{RAE: 2}, Weights{RAE: 1}), 1e-12)
}

func TestBlendClampsToMinimum(t *testing.T) {
	assert.Equal(t, MinFitness, Blend(Metrics{}, Weights{Accuracy: 1}))
	assert.Equal(t, MinFitness, Blend(Metrics{Accuracy: 1}, Weights{}))
	assert.Equal(t, MinFitness, Blend(Metrics{Accuracy: 0.0001}, Weights{Accuracy: 1}))
}

func TestAccumulatorConfusion(t *testing.T) {
	acc := newOutputAccumulator(true, 0.5, 1)
	acc.add(0.9, 1) // tp
	acc.add(0.1, 1) // fn
	acc.add(0.6, 0) // fp
	acc.add(0.2, 0) // tn
	acc.add(-0.3, 0)
	m := acc.metrics()
	assert.InDelta(t, 0.5, m.Sensitivity, 1e-12)
	assert.InDelta(t, 1.0/3.0, m.Specificity, 1e-12)
	assert.InDelta(t, 0.4, m.Accuracy, 1e-12)
	assert.InDelta(t, 1.0/3.0, m.PPV, 1e-12)
	assert.Equal(t, 0.0, m.MDM)
}

func TestAccumulatorDegenerateBuckets(t *testing.T) {
	acc := newOutputAccumulator(true, 0.5, 1)
	acc.add(0.1, 0)
	m := acc.metrics()
	assert.Equal(t, 0.0, m.Sensitivity)
	assert.Equal(t, 0.0, m.PPV)
	assert.Equal(t, 1.0, m.Specificity)
	assert.Equal(t, 0.0, m.RRSE)
}

func TestAccumulatorRegressionErrors(t *testing.T) {
	acc := newOutputAccumulator(false, 0, 0)
	acc.add(3, 2)
	acc.add(1, 2)
	m := acc.metrics()
	assert.InDelta(t, 1.0, m.MSE, 1e-12)
	assert.InDelta(t, 1.0, m.RMSE, 1e-12)
	assert.InDelta(t, 0.5, m.RRSE, 1e-12)
	assert.InDelta(t, 0.5, m.RAE, 1e-12)
	assert.Equal(t, 0.0, m.Accuracy)
}

func TestAccumulatorSkipsMissingExpected(t *testing.T) {
	acc := newOutputAccumulator(true, 0.5, 1)
	acc.add(0.9, 1)
	acc.add(0.2, math.NaN())
	acc.add(0.1, 0)
	m := acc.metrics()
	assert.False(t, math.IsNaN(m.RMSE))
	assert.InDelta(t, math.Sqrt((0.01+0.01)/2), m.RMSE, 1e-12)
	assert.InDelta(t, 1.0, m.Accuracy, 1e-12)
	assert.InDelta(t, 1.0, m.Specificity, 1e-12)
}

func TestDistanceCurve(t *testing.T) {
	assert.Equal(t, 0.0, distanceCurve(-1))
	assert.Equal(t, 1.0, distanceCurve(2))
	assert.InDelta(t, 0.75, distanceCurve(0.5), 1e-12)
	assert.True(t, distanceCurve(0.2) > 0.2)
}

func TestOverlearnFlagsRareWinners(t *testing.T) {
	rare := &Rule{Antecedents: []Pair{{}}}
	common := &Rule{Antecedents: []Pair{{}}}
	rules := []*Rule{rare, common}

	var u ruleUsage
	u.reset(len(rules))
	for i := 0; i < 100; i++ {
		rare.fire, common.fire = 0, 0.5
		if i == 0 {
			rare.fire = 0.9
		}
		u.observe(rules)
	}
	got := u.overlearn(rules)
	// rare rule: fire rate 0.01 -> rare degree 0.9, always wins -> 0.9.
	// common rule: fire rate 1 -> 0.
	assert.InDelta(t, 1-0.9/2, got, 1e-9)
	assert.False(t, math.IsNaN(got))
}

func TestOverlearnWithoutRules(t *testing.T) {
	var u ruleUsage
	u.reset(0)
	u.observe(nil)
	assert.Equal(t, 1.0, u.overlearn(nil))
}
