package fuzzy

import (
	"errors"
	"fmt"
)

var ErrStructuralMismatch = errors.New("genome does not match system coding sizes")

// Params are the structural coding sizes shared by every genome of a run.
type Params struct {
	Rules       int `ini:"rules"`
	VarsPerRule int `ini:"vars_per_rule"`
	InSets      int `ini:"in_sets"`
	OutSets     int `ini:"out_sets"`

	InVarsCodeSize     int `ini:"in_vars_code_size"`
	InSetsCodeSize     int `ini:"in_sets_code_size"`
	OutVarsCodeSize    int `ini:"out_vars_code_size"`
	OutSetsCodeSize    int `ini:"out_sets_code_size"`
	InSetsPosCodeSize  int `ini:"in_sets_pos_code_size"`
	OutSetsPosCodeSize int `ini:"out_sets_pos_code_size"`
}

func (p Params) Validate() error {
	switch {
	case p.Rules < 0:
		return fmt.Errorf("rules must be >= 0")
	case p.VarsPerRule <= 0:
		return fmt.Errorf("vars per rule must be > 0")
	case p.InSets <= 0 || p.OutSets <= 0:
		return fmt.Errorf("set counts must be > 0")
	case p.InVarsCodeSize < 0 || p.InSetsCodeSize < 0 || p.OutVarsCodeSize < 0 || p.OutSetsCodeSize < 0:
		return fmt.Errorf("code sizes must be >= 0")
	case p.InSetsPosCodeSize <= 0 || p.OutSetsPosCodeSize <= 0:
		return fmt.Errorf("position code sizes must be > 0")
	case p.InVarsCodeSize > 30 || p.InSetsCodeSize > 30 || p.OutVarsCodeSize > 30 || p.OutSetsCodeSize > 30 ||
		p.InSetsPosCodeSize > 30 || p.OutSetsPosCodeSize > 30:
		return fmt.Errorf("code sizes must be <= 30 bits")
	}
	return nil
}

// MembershipWidths lays out one position code per (variable, set), inputs
// first.
func (p Params) MembershipWidths(inVars, outVars int) []int {
	widths := make([]int, 0, inVars*p.InSets+outVars*p.OutSets)
	for i := 0; i < inVars*p.InSets; i++ {
		widths = append(widths, p.InSetsPosCodeSize)
	}
	for i := 0; i < outVars*p.OutSets; i++ {
		widths = append(widths, p.OutSetsPosCodeSize)
	}
	return widths
}

// RuleWidths lays out, per rule, VarsPerRule antecedent (var, set) pairs and
// one consequent (var, set) pair per output, followed by one default set
// code per output.
func (p Params) RuleWidths(outVars int) []int {
	perRule := 2*p.VarsPerRule + 2*outVars
	widths := make([]int, 0, p.Rules*perRule+outVars)
	for r := 0; r < p.Rules; r++ {
		for a := 0; a < p.VarsPerRule; a++ {
			widths = append(widths, p.InVarsCodeSize, p.InSetsCodeSize)
		}
		for c := 0; c < outVars; c++ {
			widths = append(widths, p.OutVarsCodeSize, p.OutSetsCodeSize)
		}
	}
	for o := 0; o < outVars; o++ {
		widths = append(widths, p.OutSetsCodeSize)
	}
	return widths
}
