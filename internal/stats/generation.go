package stats

import (
	"coevofuzzy/internal/model"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Generation is the per-generation statistics record of one population.
type Generation = model.GenerationStats

// Summarize computes min/max/mean and the population standard deviation.
func Summarize(population string, generation int, fitness []float64) Generation {
	out := Generation{Population: population, Generation: generation, Size: len(fitness)}
	if len(fitness) == 0 {
		return out
	}
	out.Min = floats.Min(fitness)
	out.Max = floats.Max(fitness)
	out.Mean, out.Std = stat.PopMeanStdDev(fitness, nil)
	return out
}

// BestByGeneration extracts the max fitness series for one population.
func BestByGeneration(history []Generation, population string) []float64 {
	out := make([]float64, 0, len(history))
	for _, g := range history {
		if g.Population == population {
			out = append(out, g.Max)
		}
	}
	return out
}
