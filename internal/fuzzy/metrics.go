package fuzzy

import "math"

// MinFitness is the floor applied to every blended fitness.
const MinFitness = 0.001

// overlearnRate is the fire rate below which a rule counts as rare.
const overlearnRate = 0.1

// Metrics are dataset-level scores, averaged over output variables where
// they are per output.
type Metrics struct {
	Sensitivity float64 `json:"sensitivity"`
	Specificity float64 `json:"specificity"`
	Accuracy    float64 `json:"accuracy"`
	PPV         float64 `json:"ppv"`
	RMSE        float64 `json:"rmse"`
	RRSE        float64 `json:"rrse"`
	RAE         float64 `json:"rae"`
	MSE         float64 `json:"mse"`
	ADM         float64 `json:"adm"`
	MDM         float64 `json:"mdm"`
	Size        float64 `json:"size"`
	Overlearn   float64 `json:"overlearn"`
}

// Weights scale each metric in the fitness blend.
type Weights struct {
	Sensitivity float64 `ini:"sensitivity" json:"sensitivity"`
	Specificity float64 `ini:"specificity" json:"specificity"`
	Accuracy    float64 `ini:"accuracy" json:"accuracy"`
	PPV         float64 `ini:"ppv" json:"ppv"`
	RMSE        float64 `ini:"rmse" json:"rmse"`
	RRSE        float64 `ini:"rrse" json:"rrse"`
	RAE         float64 `ini:"rae" json:"rae"`
	MSE         float64 `ini:"mse" json:"mse"`
	ADM         float64 `ini:"adm" json:"adm"`
	MDM         float64 `ini:"mdm" json:"mdm"`
	Size        float64 `ini:"size" json:"size"`
	Overlearn   float64 `ini:"overlearn" json:"overlearn"`
}

func (w Weights) total() float64 {
	return w.Sensitivity + w.Specificity + w.Accuracy + w.PPV + w.RMSE + w.RRSE +
		w.RAE + w.MSE + w.ADM + w.MDM + w.Size + w.Overlearn
}

// Blend combines metrics into one fitness. Error metrics contribute
// 2^-error so lower error scores higher. The result is never below
// MinFitness.
func Blend(m Metrics, w Weights) float64 {
	total := w.total()
	if total <= 0 {
		return MinFitness
	}
	sum := w.Sensitivity*m.Sensitivity +
		w.Specificity*m.Specificity +
		w.Accuracy*m.Accuracy +
		w.PPV*m.PPV +
		w.RMSE*math.Exp2(-m.RMSE) +
		w.RRSE*math.Exp2(-m.RRSE) +
		w.RAE*math.Exp2(-m.RAE) +
		w.MSE*math.Exp2(-m.MSE) +
		w.ADM*m.ADM +
		w.MDM*m.MDM +
		w.Size*m.Size +
		w.Overlearn*m.Overlearn
	fitness := sum / total
	if fitness <= 0 || math.IsNaN(fitness) {
		return MinFitness
	}
	if fitness < MinFitness {
		return MinFitness
	}
	return fitness
}

// distanceCurve smooths a normalized distance in [0,1] so that samples far
// from the threshold saturate towards 1.
func distanceCurve(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return 1 - (1-x)*(1-x)
}

// outputAccumulator gathers per-sample results for one output variable.
type outputAccumulator struct {
	thresholded bool
	threshold   float64
	span        float64

	tp, tn, fp, fn int
	n              int
	sqErr          float64
	relSqErr       float64
	absRelErr      float64
	distSum        float64
	distMin        float64
}

func newOutputAccumulator(thresholded bool, threshold, span float64) *outputAccumulator {
	return &outputAccumulator{thresholded: thresholded, threshold: threshold, span: span, distMin: math.Inf(1)}
}

// add records one sample. Samples with a missing expected value are skipped.
func (a *outputAccumulator) add(predicted, expected float64) {
	if math.IsNaN(expected) {
		return
	}
	a.n++
	err := predicted - expected
	a.sqErr += err * err
	if expected != 0 {
		rel := err / expected
		a.relSqErr += rel * rel
		a.absRelErr += math.Abs(rel)
	}

	if !a.thresholded {
		return
	}
	class := Threshold(predicted, a.threshold)
	want := Threshold(expected, a.threshold)
	correct := class == want
	switch {
	case want == 1 && class == 1:
		a.tp++
	case want == 1:
		a.fn++
	case class == 1 || !correct:
		a.fp++
	default:
		a.tn++
	}

	d := 0.0
	if correct && a.span > 0 {
		d = distanceCurve(math.Abs(predicted-a.threshold) / a.span)
	}
	a.distSum += d
	if d < a.distMin {
		a.distMin = d
	}
}

func (a *outputAccumulator) metrics() Metrics {
	var m Metrics
	if a.n == 0 {
		return m
	}
	n := float64(a.n)
	m.MSE = a.sqErr / n
	m.RMSE = math.Sqrt(m.MSE)
	m.RRSE = math.Sqrt(a.relSqErr / n)
	m.RAE = a.absRelErr / n
	if !a.thresholded {
		return m
	}
	m.Sensitivity = ratio(a.tp, a.tp+a.fn)
	m.Specificity = ratio(a.tn, a.tn+a.fp)
	m.Accuracy = ratio(a.tp+a.tn, a.n)
	m.PPV = ratio(a.tp, a.tp+a.fp)
	m.ADM = a.distSum / n
	m.MDM = a.distMin
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func averageMetrics(per []Metrics) Metrics {
	var m Metrics
	if len(per) == 0 {
		return m
	}
	for _, p := range per {
		m.Sensitivity += p.Sensitivity
		m.Specificity += p.Specificity
		m.Accuracy += p.Accuracy
		m.PPV += p.PPV
		m.RMSE += p.RMSE
		m.RRSE += p.RRSE
		m.RAE += p.RAE
		m.MSE += p.MSE
		m.ADM += p.ADM
		m.MDM += p.MDM
	}
	n := float64(len(per))
	m.Sensitivity /= n
	m.Specificity /= n
	m.Accuracy /= n
	m.PPV /= n
	m.RMSE /= n
	m.RRSE /= n
	m.RAE /= n
	m.MSE /= n
	m.ADM /= n
	m.MDM /= n
	return m
}

// ruleUsage counts, per rule, how often it fires and how often it is the
// single strongest rule of a sample.
type ruleUsage struct {
	fired []int
	won   []int
	n     int
}

func (u *ruleUsage) reset(rules int) {
	u.fired = resize(u.fired, rules)
	u.won = resize(u.won, rules)
	u.n = 0
}

func (u *ruleUsage) observe(rules []*Rule) {
	u.n++
	winner, best, tie := -1, 0.0, false
	for i, r := range rules {
		f := r.FireLevel()
		if f <= 0 {
			continue
		}
		u.fired[i]++
		switch {
		case f > best:
			winner, best, tie = i, f, false
		case f == best:
			tie = true
		}
	}
	if winner >= 0 && !tie {
		u.won[winner]++
	}
}

// overlearn grades the rule base in [0,1], 1 meaning no rule looks like it
// memorizes a handful of samples. A rule is overlearned to the degree that
// it fires rarely AND wins whenever it fires.
func (u *ruleUsage) overlearn(rules []*Rule) float64 {
	if u.n == 0 {
		return 1
	}
	total, active := 0.0, 0
	for i, r := range rules {
		if len(r.Antecedents) == 0 {
			continue
		}
		active++
		fireRate := float64(u.fired[i]) / float64(u.n)
		rare := 1 - fireRate/overlearnRate
		if rare < 0 {
			rare = 0
		}
		winShare := 0.0
		if u.fired[i] > 0 {
			winShare = float64(u.won[i]) / float64(u.fired[i])
		}
		total += And(rare, winShare)
	}
	if active == 0 {
		return 1
	}
	return 1 - total/float64(active)
}

func resize(s []int, n int) []int {
	if cap(s) < n {
		return make([]int, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = 0
	}
	return s
}
