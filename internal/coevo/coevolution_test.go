package coevo

import (
	"context"
	"math/rand"
	"testing"

	"coevofuzzy/internal/evo"
	"coevofuzzy/internal/fuzzy"
	"coevofuzzy/internal/genotype"

	"github.com/stretchr/testify/require"
)

type cooperatorFixture struct {
	sys        *fuzzy.System
	rules      *evo.Population
	membership *evo.Population
	worse      *genotype.Genotype
	better     *genotype.Genotype
	worseFit   float64
	betterFit  float64
}

// newCooperatorFixture draws one rule genome and two membership genomes that
// score differently with it.
func newCooperatorFixture(t *testing.T) cooperatorFixture {
	t.Helper()
	sys, err := newSystem(RunConfig{Data: stepData(), System: testSystemConfig()})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(17))
	rules, err := evo.NewPopulation("rules", 1, sys.RuleGenomeLength())
	require.NoError(t, err)
	rules.Randomize(rng)
	membership, err := evo.NewPopulation("membership", 2, sys.MembershipGenomeLength())
	require.NoError(t, err)

	ruleGenome := rules.Entities()[0].Genotype
	f := cooperatorFixture{sys: sys, rules: rules, membership: membership}
	for i := 0; i < 200 && f.better == nil; i++ {
		a := genotype.New(sys.MembershipGenomeLength())
		a.Randomize(rng)
		b := genotype.New(sys.MembershipGenomeLength())
		b.Randomize(rng)
		ra, err := sys.Evaluate(context.Background(), a, ruleGenome)
		require.NoError(t, err)
		rb, err := sys.Evaluate(context.Background(), b, ruleGenome)
		require.NoError(t, err)
		switch {
		case ra.Fitness < rb.Fitness:
			f.worse, f.worseFit, f.better, f.betterFit = a, ra.Fitness, b, rb.Fitness
		case rb.Fitness < ra.Fitness:
			f.worse, f.worseFit, f.better, f.betterFit = b, rb.Fitness, a, ra.Fitness
		}
	}
	require.NotNil(t, f.better, "no membership genomes with different fitness found")
	return f
}

func (f cooperatorFixture) coevolution(t *testing.T, coevolution bool) (*CoEvolution, *RunContext) {
	t.Helper()
	rc := NewRunContext(nil)
	c, err := New(Config{
		Role:            RulesRole,
		Population:      f.rules,
		Partner:         f.membership,
		System:          f.sys,
		Run:             rc,
		Coevolution:     coevolution,
		Generations:     1,
		CooperatorCount: 1,
		Seed:            1,
	})
	require.NoError(t, err)
	return c, rc
}

func TestEvaluateKeepsBestCooperatorFitness(t *testing.T) {
	f := newCooperatorFixture(t)
	orders := map[string][]*genotype.Genotype{
		"better last":  {f.worse, f.better},
		"better first": {f.better, f.worse},
		"repeated":     {f.better, f.worse, f.better},
	}
	for name, partners := range orders {
		t.Run(name, func(t *testing.T) {
			reps := make([]*genotype.PopEntity, len(partners))
			for i, g := range partners {
				reps[i] = &genotype.PopEntity{Genotype: g}
			}
			f.membership.SetRepresentatives(reps, 0)

			c, rc := f.coevolution(t, true)
			cont, err := c.Evaluate(context.Background(), f.rules, 0)
			require.NoError(t, err)
			require.True(t, cont)

			e := f.rules.Entities()[0]
			require.InDelta(t, f.betterFit, e.Fitness, 1e-12)

			best := rc.Best()
			require.True(t, best.Found)
			require.InDelta(t, f.betterFit, best.Fitness, 1e-12)
			require.Equal(t, f.better.String(), best.Membership.String())
			require.Equal(t, e.Genotype.String(), best.Rules.String())
			require.Equal(t, "rules", best.Population)
			require.Equal(t, f.better.String(), best.Description.MembershipGenome)
		})
	}
}

func TestEvaluateLearningModeIgnoresPartners(t *testing.T) {
	f := newCooperatorFixture(t)
	f.membership.SetRepresentatives([]*genotype.PopEntity{{Genotype: f.better}}, 0)

	ruleGenome := f.rules.Entities()[0].Genotype
	alone, err := f.sys.Evaluate(context.Background(), nil, ruleGenome)
	require.NoError(t, err)

	c, rc := f.coevolution(t, false)
	_, err = c.Evaluate(context.Background(), f.rules, 0)
	require.NoError(t, err)

	require.InDelta(t, alone.Fitness, f.rules.Entities()[0].Fitness, 1e-12)
	require.Nil(t, rc.Best().Membership)
}
