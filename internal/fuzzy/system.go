package fuzzy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"coevofuzzy/internal/genotype"
	"coevofuzzy/internal/model"
)

// ErrInterrupted is returned when an evaluation observes a stop request.
var ErrInterrupted = errors.New("evaluation interrupted")

const defaultThreshold = 0.5

// Data is a table of named numeric columns. Missing cells are NaN.
type Data interface {
	Name() string
	Columns() []string
	Rows() [][]float64
}

type Config struct {
	Params  Params
	Weights Weights
	// OutVars is the number of trailing columns predicted by the system.
	OutVars            int
	ThresholdActivated bool
	// Thresholds holds one classification threshold per output; missing
	// entries default to the last given one, or 0.5.
	Thresholds []float64
}

type Result struct {
	Fitness float64
	Metrics Metrics
}

// System decodes genome pairs over a persistent variable/set skeleton and
// scores them against a dataset. A System is not safe for concurrent use;
// each evolving population owns its own.
type System struct {
	params      Params
	weights     Weights
	outCount    int
	thresholded bool
	thresholds  []float64

	data     Data
	inVars   []*Variable
	outVars  []*Variable
	inputs   [][]float64
	expected [][]float64

	rules    []*Rule
	defaults []int
	usage    ruleUsage

	interrupted func() bool
}

func NewSystem(cfg Config) (*System, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("fuzzy system params: %w", err)
	}
	if cfg.OutVars <= 0 {
		return nil, fmt.Errorf("fuzzy system needs at least one output variable")
	}
	thresholds := make([]float64, cfg.OutVars)
	for o := range thresholds {
		switch {
		case o < len(cfg.Thresholds):
			thresholds[o] = cfg.Thresholds[o]
		case len(cfg.Thresholds) > 0:
			thresholds[o] = cfg.Thresholds[len(cfg.Thresholds)-1]
		default:
			thresholds[o] = defaultThreshold
		}
	}
	return &System{
		params:      cfg.Params,
		weights:     cfg.Weights,
		outCount:    cfg.OutVars,
		thresholded: cfg.ThresholdActivated,
		thresholds:  thresholds,
		defaults:    make([]int, cfg.OutVars),
	}, nil
}

// SetInterrupt installs a check polled between samples.
func (s *System) SetInterrupt(fn func() bool) {
	s.interrupted = fn
}

// LoadData sizes the variables from the dataset columns, detects each
// variable's value range and extracts the expected outputs.
func (s *System) LoadData(d Data) error {
	columns := d.Columns()
	if len(columns) <= s.outCount {
		return fmt.Errorf("dataset %s: %d columns cannot hold %d outputs and at least one input", d.Name(), len(columns), s.outCount)
	}
	rows := d.Rows()
	if len(rows) == 0 {
		return fmt.Errorf("dataset %s has no rows", d.Name())
	}
	inCount := len(columns) - s.outCount

	s.inVars = make([]*Variable, inCount)
	for i := range s.inVars {
		s.inVars[i] = NewVariable(columns[i], true, s.params.InSets)
	}
	s.outVars = make([]*Variable, s.outCount)
	for o := range s.outVars {
		s.outVars[o] = NewVariable(columns[inCount+o], false, s.params.OutSets)
	}

	s.inputs = make([][]float64, len(rows))
	s.expected = make([][]float64, len(rows))
	for r, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("dataset %s row %d: got %d values want %d", d.Name(), r, len(row), len(columns))
		}
		s.inputs[r] = row[:inCount]
		s.expected[r] = row[inCount:]
	}

	for c, v := range append(append([]*Variable{}, s.inVars...), s.outVars...) {
		lo, hi := columnRange(rows, c)
		v.SetRange(lo, hi)
		v.SpreadSets()
	}
	s.data = d
	s.rules = s.rules[:0]
	return nil
}

func columnRange(rows [][]float64, c int) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		v := row[c]
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

// SetRanges replaces the detected value ranges with the ones of a described
// system, so a stored genome pair decodes to the same set positions on any
// dataset. Variables are matched by position and must carry the same names.
func (s *System) SetRanges(vars []model.VariableDescription) error {
	if s.data == nil {
		return fmt.Errorf("fuzzy system has no dataset loaded")
	}
	all := append(append([]*Variable{}, s.inVars...), s.outVars...)
	if len(vars) != len(all) {
		return fmt.Errorf("set ranges: %d described variables, system has %d: %w", len(vars), len(all), ErrStructuralMismatch)
	}
	for i, v := range all {
		d := vars[i]
		if d.Name != v.Name || d.Input != v.Input {
			return fmt.Errorf("set ranges: variable %d is %s, described as %s: %w", i, v.Name, d.Name, ErrStructuralMismatch)
		}
	}
	for i, v := range all {
		v.SetRange(vars[i].Min, vars[i].Max)
		v.SpreadSets()
	}
	return nil
}

func (s *System) InputVariables() []*Variable  { return s.inVars }
func (s *System) OutputVariables() []*Variable { return s.outVars }
func (s *System) Rules() []*Rule               { return s.rules }
func (s *System) Defaults() []int              { return append([]int(nil), s.defaults...) }

func (s *System) MembershipGenomeLength() int {
	return genotype.CodedLength(s.params.MembershipWidths(len(s.inVars), len(s.outVars)))
}

func (s *System) RuleGenomeLength() int {
	return genotype.CodedLength(s.params.RuleWidths(s.outCount))
}

// Reset tears down the rule array and every set accumulator.
func (s *System) Reset() {
	s.rules = s.rules[:0]
	for _, v := range s.inVars {
		v.resetSets()
	}
	for _, v := range s.outVars {
		v.resetSets()
	}
}

// Load decodes a genome pair onto the system. Either genome may be nil: a
// nil membership genome spreads sets evenly, a nil rule genome leaves only
// the default rules.
func (s *System) Load(membership, rules *genotype.Genotype) error {
	if s.data == nil {
		return fmt.Errorf("fuzzy system has no dataset loaded")
	}
	var mf MembershipGenome
	if membership != nil {
		codes, err := s.decodeMembership(membership)
		if err != nil {
			return err
		}
		mf = codes
	}
	var rg RuleGenome
	if rules != nil {
		codes, err := s.decodeRules(rules)
		if err != nil {
			return err
		}
		rg = codes
	}
	s.Reset()
	s.applyMembership(mf)
	s.buildRules(rg)
	return nil
}

// Evaluate decodes the genome pair and scores it on the loaded dataset.
func (s *System) Evaluate(ctx context.Context, membership, rules *genotype.Genotype) (Result, error) {
	if err := s.Load(membership, rules); err != nil {
		return Result{}, err
	}
	return s.score(ctx, nil)
}

// Predict decodes the genome pair and returns the crisp outputs per sample.
func (s *System) Predict(ctx context.Context, membership, rules *genotype.Genotype) ([][]float64, Result, error) {
	if err := s.Load(membership, rules); err != nil {
		return nil, Result{}, err
	}
	out := make([][]float64, 0, len(s.inputs))
	res, err := s.score(ctx, func(predicted []float64) {
		out = append(out, append([]float64(nil), predicted...))
	})
	return out, res, err
}

func (s *System) score(ctx context.Context, sink func([]float64)) (Result, error) {
	acc := make([]*outputAccumulator, len(s.outVars))
	for o, v := range s.outVars {
		acc[o] = newOutputAccumulator(s.thresholded, s.thresholds[o], v.Max-v.Min)
	}
	s.usage.reset(len(s.rules))
	predicted := make([]float64, len(s.outVars))

	for i, row := range s.inputs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if s.interrupted != nil && s.interrupted() {
			return Result{}, ErrInterrupted
		}
		s.evaluateSample(row, predicted)
		s.usage.observe(s.rules)
		for o := range s.outVars {
			acc[o].add(predicted[o], s.expected[i][o])
		}
		if sink != nil {
			sink(predicted)
		}
	}

	per := make([]Metrics, len(acc))
	for o, a := range acc {
		per[o] = a.metrics()
	}
	m := averageMetrics(per)
	m.Size = s.sizeScore()
	m.Overlearn = s.usage.overlearn(s.rules)
	return Result{Fitness: Blend(m, s.weights), Metrics: m}, nil
}

// evaluateSample runs the rule pipeline for one row and writes the
// defuzzified value of every output into predicted.
func (s *System) evaluateSample(row []float64, predicted []float64) {
	for i, v := range s.inVars {
		if v.Used {
			v.SetValue(row[i])
		}
	}
	for _, v := range s.outVars {
		v.resetSets()
	}

	maxFire := make([]float64, len(s.outVars))
	for _, r := range s.rules {
		level := r.Evaluate(s.inVars)
		r.Apply(s.outVars)
		for o := range s.outVars {
			if r.concludes(o) && level > maxFire[o] {
				maxFire[o] = level
			}
		}
	}
	for o, v := range s.outVars {
		v.Sets[s.defaults[o]].aggregate(1 - maxFire[o])
		predicted[o] = defuzzify(v)
	}
}

// defuzzify is the firing-weighted average of singleton set positions.
func defuzzify(v *Variable) float64 {
	num, den := 0.0, 0.0
	for _, set := range v.Sets {
		num += set.eval * set.Position
		den += set.eval
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func (s *System) sizeScore() float64 {
	total := 0
	for _, r := range s.rules {
		total += len(r.Antecedents)
	}
	if total == 0 {
		return 0
	}
	return 1 / float64(total)
}

// Describe captures the currently loaded system in its persisted shape.
func (s *System) Describe() model.SystemDescription {
	desc := model.SystemDescription{
		Weights:        WeightsMap(s.weights),
		DefaultIndices: s.Defaults(),
	}
	if s.data != nil {
		desc.Dataset = s.data.Name()
	}
	for _, v := range append(append([]*Variable{}, s.inVars...), s.outVars...) {
		vd := model.VariableDescription{Name: v.Name, Input: v.Input, Used: v.Used, Min: v.Min, Max: v.Max}
		for _, set := range v.Sets {
			vd.Sets = append(vd.Sets, model.SetPosition{Set: set.Name, Position: set.Position})
		}
		desc.Variables = append(desc.Variables, vd)
	}
	for _, r := range s.rules {
		rd := model.RuleDescription{}
		for _, p := range r.Antecedents {
			v := s.inVars[p.Var]
			rd.Antecedents = append(rd.Antecedents, model.Clause{Variable: v.Name, Set: v.Sets[p.Set].Name})
		}
		for _, p := range r.Consequents {
			v := s.outVars[p.Var]
			rd.Consequents = append(rd.Consequents, model.Clause{Variable: v.Name, Set: v.Sets[p.Set].Name})
		}
		desc.Rules = append(desc.Rules, rd)
	}
	for o, v := range s.outVars {
		desc.Defaults = append(desc.Defaults, model.Clause{Variable: v.Name, Set: v.Sets[s.defaults[o]].Name})
	}
	return desc
}

func WeightsMap(w Weights) map[string]float64 {
	return map[string]float64{
		"sensitivity": w.Sensitivity,
		"specificity": w.Specificity,
		"accuracy":    w.Accuracy,
		"ppv":         w.PPV,
		"rmse":        w.RMSE,
		"rrse":        w.RRSE,
		"rae":         w.RAE,
		"mse":         w.MSE,
		"adm":         w.ADM,
		"mdm":         w.MDM,
		"size":        w.Size,
		"overlearn":   w.Overlearn,
	}
}

// WeightsFromMap is the inverse of WeightsMap; unknown keys are ignored.
func WeightsFromMap(m map[string]float64) Weights {
	return Weights{
		Sensitivity: m["sensitivity"],
		Specificity: m["specificity"],
		Accuracy:    m["accuracy"],
		PPV:         m["ppv"],
		RMSE:        m["rmse"],
		RRSE:        m["rrse"],
		RAE:         m["rae"],
		MSE:         m["mse"],
		ADM:         m["adm"],
		MDM:         m["mdm"],
		Size:        m["size"],
		Overlearn:   m["overlearn"],
	}
}

func MetricsMap(m Metrics) map[string]float64 {
	return map[string]float64{
		"sensitivity": m.Sensitivity,
		"specificity": m.Specificity,
		"accuracy":    m.Accuracy,
		"ppv":         m.PPV,
		"rmse":        m.RMSE,
		"rrse":        m.RRSE,
		"rae":         m.RAE,
		"mse":         m.MSE,
		"adm":         m.ADM,
		"mdm":         m.MDM,
		"size":        m.Size,
		"overlearn":   m.Overlearn,
	}
}
