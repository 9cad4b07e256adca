package fuzzy

import (
	"fmt"

	"coevofuzzy/internal/genotype"
)

// MembershipGenome holds one position code per (variable, set).
type MembershipGenome []int

// RuleGenome holds the raw (variable, set) codes of every rule followed by
// the default set codes.
type RuleGenome []int

func (s *System) decodeMembership(g *genotype.Genotype) (MembershipGenome, error) {
	codes, err := genotype.DecodeCodes(g, s.params.MembershipWidths(len(s.inVars), len(s.outVars)))
	if err != nil {
		return nil, fmt.Errorf("membership genome: %w: %w", ErrStructuralMismatch, err)
	}
	return codes, nil
}

func (s *System) decodeRules(g *genotype.Genotype) (RuleGenome, error) {
	codes, err := genotype.DecodeCodes(g, s.params.RuleWidths(len(s.outVars)))
	if err != nil {
		return nil, fmt.Errorf("rule genome: %w: %w", ErrStructuralMismatch, err)
	}
	return codes, nil
}

// applyMembership lays set positions over the persistent variables. A nil
// genome spreads every variable's sets evenly.
func (s *System) applyMembership(codes MembershipGenome) {
	if codes == nil {
		for _, v := range s.inVars {
			v.SpreadSets()
		}
		for _, v := range s.outVars {
			v.SpreadSets()
		}
		return
	}
	i := 0
	for _, v := range s.inVars {
		positions := make([]float64, len(v.Sets))
		for k := range positions {
			positions[k] = v.Quantize(codes[i], s.params.InSetsPosCodeSize)
			i++
		}
		v.setPositions(positions)
	}
	for _, v := range s.outVars {
		positions := make([]float64, len(v.Sets))
		for k := range positions {
			positions[k] = v.Quantize(codes[i], s.params.OutSetsPosCodeSize)
			i++
		}
		v.setPositions(positions)
	}
}

// buildRules rebuilds the rule array and default table. A nil genome yields
// no rules and the first set of every output as default.
func (s *System) buildRules(codes RuleGenome) {
	s.rules = s.rules[:0]
	for o := range s.defaults {
		s.defaults[o] = 0
	}
	if codes == nil {
		s.markUsed()
		return
	}

	i := 0
	for r := 0; r < s.params.Rules; r++ {
		antecedents := make([]Pair, s.params.VarsPerRule)
		for a := range antecedents {
			antecedents[a] = Pair{Var: codes[i], Set: codes[i+1]}
			i += 2
		}
		consequents := make([]Pair, len(s.outVars))
		for c := range consequents {
			consequents[c] = Pair{Var: codes[i], Set: codes[i+1]}
			i += 2
		}
		s.rules = append(s.rules, NewRule(antecedents, consequents, s.inVars, s.outVars))
	}
	for o := range s.defaults {
		s.defaults[o] = codes[i] % s.params.OutSets
		i++
	}
	s.markUsed()
}

func (s *System) markUsed() {
	for _, v := range s.inVars {
		v.Used = false
	}
	for _, r := range s.rules {
		for _, p := range r.Antecedents {
			s.inVars[p.Var].Used = true
		}
	}
	for _, v := range s.outVars {
		v.Used = true
	}
}
