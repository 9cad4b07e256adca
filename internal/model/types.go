package model

import (
	"fmt"
	"strings"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Clause names a fuzzy set of a variable, as used in rules.
type Clause struct {
	Variable string `json:"variable"`
	Set      string `json:"set"`
}

func (c Clause) String() string {
	return fmt.Sprintf("%s is %s", c.Variable, c.Set)
}

type SetPosition struct {
	Set      string  `json:"set"`
	Position float64 `json:"position"`
}

type VariableDescription struct {
	Name  string `json:"name"`
	Input bool   `json:"input"`
	Used  bool   `json:"used"`
	// Min and Max are the value range detected on the training dataset.
	Min  float64       `json:"min"`
	Max  float64       `json:"max"`
	Sets []SetPosition `json:"sets"`
}

type RuleDescription struct {
	Antecedents []Clause `json:"antecedents"`
	Consequents []Clause `json:"consequents"`
}

// SystemDescription is the persisted shape of a decoded fuzzy system.
type SystemDescription struct {
	VersionedRecord
	RunID            string                `json:"run_id,omitempty"`
	Dataset          string                `json:"dataset"`
	Fitness          float64               `json:"fitness"`
	Weights          map[string]float64    `json:"weights"`
	Metrics          map[string]float64    `json:"metrics,omitempty"`
	Variables        []VariableDescription `json:"variables"`
	Rules            []RuleDescription     `json:"rules"`
	Defaults         []Clause              `json:"defaults"`
	DefaultIndices   []int                 `json:"default_indices"`
	MembershipGenome string                `json:"membership_genome,omitempty"`
	RuleGenome       string                `json:"rule_genome,omitempty"`
}

// String renders the rule base in a readable IF/THEN form.
func (d SystemDescription) String() string {
	var b strings.Builder
	for i, r := range d.Rules {
		fmt.Fprintf(&b, "rule %d: IF %s THEN %s\n", i+1, joinClauses(r.Antecedents, " AND ", "(always)"), joinClauses(r.Consequents, ", ", "(nothing)"))
	}
	for _, c := range d.Defaults {
		fmt.Fprintf(&b, "ELSE %s\n", c)
	}
	return b.String()
}

func joinClauses(clauses []Clause, sep, empty string) string {
	if len(clauses) == 0 {
		return empty
	}
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, sep)
}

// GenerationStats summarizes one population's fitness after a generation.
type GenerationStats struct {
	Population string  `json:"population"`
	Generation int     `json:"generation"`
	Size       int     `json:"size"`
	Min        float64 `json:"min_fitness"`
	Max        float64 `json:"max_fitness"`
	Mean       float64 `json:"mean_fitness"`
	Std        float64 `json:"std_fitness"`
}

type RunRecord struct {
	VersionedRecord
	ID           string  `json:"id"`
	Dataset      string  `json:"dataset"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Seed         int64   `json:"seed"`
	Coevolution  bool    `json:"coevolution"`
	Generations  int     `json:"generations"`
	BestFitness  float64 `json:"best_fitness"`
	Stopped      bool    `json:"stopped"`
}
