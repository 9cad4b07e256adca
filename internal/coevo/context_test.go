package coevo

import (
	"sync"
	"testing"

	"coevofuzzy/internal/genotype"
	"coevofuzzy/internal/model"

	"github.com/stretchr/testify/require"
)

func TestRunContextOfferKeepsBest(t *testing.T) {
	rc := NewRunContext(nil)
	require.True(t, rc.Improves(0))
	require.False(t, rc.Best().Found)

	described := 0
	describe := func() model.SystemDescription {
		described++
		return model.SystemDescription{Dataset: "d"}
	}

	require.True(t, rc.Offer(Best{Fitness: 0.5, Population: "membership"}, describe))
	require.False(t, rc.Offer(Best{Fitness: 0.4, Population: "rules"}, describe))
	require.Equal(t, 1, described)
	require.False(t, rc.Improves(0.3))

	// Equal fitness replaces the stored result.
	require.True(t, rc.Offer(Best{Fitness: 0.5, Population: "rules"}, describe))
	best := rc.Best()
	require.True(t, best.Found)
	require.Equal(t, "rules", best.Population)
	require.Equal(t, "d", best.Description.Dataset)
	require.Equal(t, 2, described)
}

func TestRunContextBestIsACopy(t *testing.T) {
	rc := NewRunContext(nil)
	mf, err := genotype.Parse("101")
	require.NoError(t, err)
	rc.Offer(Best{Fitness: 1, Membership: mf}, nil)

	require.NoError(t, mf.Flip(0))
	got := rc.Best()
	require.Equal(t, "101", got.Membership.String())
	require.Nil(t, got.Rules)

	require.NoError(t, got.Membership.Flip(1))
	require.Equal(t, "101", rc.Best().Membership.String())
}

func TestRunContextConcurrentOffers(t *testing.T) {
	rc := NewRunContext(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(f float64) {
			defer wg.Done()
			rc.Offer(Best{Fitness: f}, nil)
		}(float64(i) / 50)
	}
	wg.Wait()
	require.InDelta(t, 49.0/50.0, rc.Best().Fitness, 1e-12)
}

func TestRunContextStopFlagIsShared(t *testing.T) {
	rc := NewRunContext(nil)
	flag := rc.StopFlag()
	require.False(t, rc.Stopped())
	rc.RequestStop()
	require.True(t, flag.Load())
	require.True(t, rc.Stopped())
}
