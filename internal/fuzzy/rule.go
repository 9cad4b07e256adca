package fuzzy

// Pair references set Set of variable Var.
type Pair struct {
	Var int
	Set int
}

// Rule holds the antecedent and consequent pairs that survived validation.
type Rule struct {
	Antecedents []Pair
	Consequents []Pair

	fire float64
}

// NewRule keeps only pairs whose variable and set exist and whose variable
// has not already been used on the same side of the rule. Dropped pairs are
// not an error: genomes are allowed to carry noise.
func NewRule(antecedents, consequents []Pair, inVars, outVars []*Variable) *Rule {
	return &Rule{
		Antecedents: validPairs(antecedents, inVars),
		Consequents: validPairs(consequents, outVars),
	}
}

func validPairs(pairs []Pair, vars []*Variable) []Pair {
	out := make([]Pair, 0, len(pairs))
	seen := make(map[int]struct{}, len(pairs))
	for _, p := range pairs {
		if p.Var < 0 || p.Var >= len(vars) {
			continue
		}
		if p.Set < 0 || p.Set >= len(vars[p.Var].Sets) {
			continue
		}
		if _, dup := seen[p.Var]; dup {
			continue
		}
		seen[p.Var] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Evaluate computes the firing level against the current input values. A
// rule with no antecedents, or whose antecedents are all DontCare, does not
// fire.
func (r *Rule) Evaluate(inVars []*Variable) float64 {
	level := DontCare
	for i, p := range r.Antecedents {
		m := inVars[p.Var].Membership(p.Set)
		if i == 0 {
			level = m
			continue
		}
		level = And(level, m)
	}
	if level == DontCare {
		level = 0
	}
	r.fire = level
	return level
}

func (r *Rule) FireLevel() float64 { return r.fire }

// Apply max-aggregates the firing level into every consequent set.
func (r *Rule) Apply(outVars []*Variable) {
	for _, p := range r.Consequents {
		outVars[p.Var].Sets[p.Set].aggregate(r.fire)
	}
}

func (r *Rule) concludes(outVar int) bool {
	for _, p := range r.Consequents {
		if p.Var == outVar {
			return true
		}
	}
	return false
}
