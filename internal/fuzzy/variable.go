package fuzzy

import (
	"fmt"
	"math"
	"sort"

	"coevofuzzy/internal/genotype"
)

// Set is a fuzzy set positioned on its variable's universe of discourse.
type Set struct {
	Name     string
	Position float64

	eval float64
}

func (s *Set) reset() { s.eval = 0 }

// aggregate max-combines a firing level into the set.
func (s *Set) aggregate(level float64) {
	if level > s.eval {
		s.eval = level
	}
}

// Variable is a named input or output with an ordered list of sets. Sets
// persist across evaluations; only their positions and accumulators change.
type Variable struct {
	Name  string
	Sets  []*Set
	Input bool
	Used  bool
	Min   float64
	Max   float64

	value   float64
	missing bool
	// order lists set indices sorted by position; rebuilt when positions change.
	order []int
}

func NewVariable(name string, input bool, setCount int) *Variable {
	v := &Variable{Name: name, Input: input, Sets: make([]*Set, setCount)}
	for i := range v.Sets {
		v.Sets[i] = &Set{Name: fmt.Sprintf("MF%d", i+1)}
	}
	v.sortSets()
	return v
}

// SetRange records the detected value range of the variable.
func (v *Variable) SetRange(min, max float64) {
	v.Min, v.Max = min, max
}

func (v *Variable) SetValue(x float64) {
	if math.IsNaN(x) {
		v.SetMissing()
		return
	}
	v.value = x
	v.missing = false
}

func (v *Variable) SetMissing() {
	v.value = 0
	v.missing = true
}

func (v *Variable) Missing() bool  { return v.missing }
func (v *Variable) Value() float64 { return v.value }

// Quantize maps a position code of the given width onto [Min, Max].
func (v *Variable) Quantize(code, width int) float64 {
	maxCode := genotype.MaxCode(width)
	if maxCode <= 0 {
		return v.Min
	}
	return v.Min + float64(code)*(v.Max-v.Min)/float64(maxCode)
}

// SpreadSets places the sets evenly over the range.
func (v *Variable) SpreadSets() {
	n := len(v.Sets)
	for i, s := range v.Sets {
		if n == 1 {
			s.Position = v.Min
			continue
		}
		s.Position = v.Min + float64(i)*(v.Max-v.Min)/float64(n-1)
	}
	v.sortSets()
}

func (v *Variable) SetPositions(positions []float64) error {
	if len(positions) != len(v.Sets) {
		return fmt.Errorf("variable %s: %d positions for %d sets", v.Name, len(positions), len(v.Sets))
	}
	v.setPositions(positions)
	return nil
}

// setPositions assumes one position per set.
func (v *Variable) setPositions(positions []float64) {
	for i, p := range positions {
		v.Sets[i].Position = p
	}
	v.sortSets()
}

// Membership evaluates set idx against the current value. Sets ordered by
// position form a triangular partition: each set peaks at its position and
// reaches zero at its neighbours, the outermost sets are shoulders. A
// missing value yields DontCare.
func (v *Variable) Membership(idx int) float64 {
	if v.missing {
		return DontCare
	}
	x := v.value
	rank := v.rank(idx)
	pos := v.Sets[idx].Position
	if x == pos {
		return 1
	}
	if x < pos {
		if rank == 0 {
			return 1
		}
		left := v.Sets[v.order[rank-1]].Position
		if x <= left || pos == left {
			return 0
		}
		return (x - left) / (pos - left)
	}
	if rank == len(v.order)-1 {
		return 1
	}
	right := v.Sets[v.order[rank+1]].Position
	if x >= right || pos == right {
		return 0
	}
	return (right - x) / (right - pos)
}

func (v *Variable) resetSets() {
	for _, s := range v.Sets {
		s.reset()
	}
}

func (v *Variable) sortSets() {
	if len(v.order) != len(v.Sets) {
		v.order = make([]int, len(v.Sets))
	}
	for i := range v.order {
		v.order[i] = i
	}
	sort.SliceStable(v.order, func(a, b int) bool {
		return v.Sets[v.order[a]].Position < v.Sets[v.order[b]].Position
	})
}

func (v *Variable) rank(idx int) int {
	for r, i := range v.order {
		if i == idx {
			return r
		}
	}
	return 0
}
