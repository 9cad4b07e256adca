package main

import (
	"fmt"
	"io"
	"sort"

	"coevofuzzy/internal/fuzzy"
	"coevofuzzy/internal/model"
	"coevofuzzy/internal/stats"

	"github.com/jedib0t/go-pretty/v6/table"
)

func writeStatsTable(w io.Writer, title string, history []model.GenerationStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Population", "Generation", "Size", "Min", "Max", "Mean", "Std"})
	for _, s := range history {
		t.AppendRow(table.Row{
			s.Population,
			s.Generation,
			s.Size,
			fmt.Sprintf("%.6f", s.Min),
			fmt.Sprintf("%.6f", s.Max),
			fmt.Sprintf("%.6f", s.Mean),
			fmt.Sprintf("%.6f", s.Std),
		})
	}
	t.Render()
}

func writeRunsTable(w io.Writer, runs []model.RunRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Runs")
	t.AppendHeader(table.Row{"Run ID", "Created (UTC)", "Dataset", "Seed", "Coevolution", "Generations", "Best Fitness", "Stopped"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.CreatedAtUTC,
			r.Dataset,
			r.Seed,
			r.Coevolution,
			r.Generations,
			fmt.Sprintf("%.6f", r.BestFitness),
			r.Stopped,
		})
	}
	t.Render()
}

// writeSystemReport prints the variables, the rule base and the metrics of
// a stored system.
func writeSystemReport(w io.Writer, system model.SystemDescription) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Best System (dataset %s, fitness %.6f)", system.Dataset, system.Fitness))
	t.AppendHeader(table.Row{"Variable", "Kind", "Used", "Sets"})
	for _, v := range system.Variables {
		kind := "output"
		if v.Input {
			kind = "input"
		}
		sets := ""
		for i, s := range v.Sets {
			if i > 0 {
				sets += " "
			}
			sets += fmt.Sprintf("%s=%.4g", s.Set, s.Position)
		}
		t.AppendRow(table.Row{v.Name, kind, v.Used, sets})
	}
	t.Render()

	fmt.Fprint(w, system.String())

	if len(system.Metrics) > 0 {
		writeMetricMap(w, system.Metrics, system.Weights)
	}
}

func writeMetricsTable(w io.Writer, m fuzzy.Metrics) {
	writeMetricMap(w, fuzzy.MetricsMap(m), nil)
}

func writeMetricMap(w io.Writer, metrics, weights map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Metrics")
	header := table.Row{"Metric", "Value"}
	if weights != nil {
		header = append(header, "Weight")
	}
	t.AppendHeader(header)
	for _, name := range names {
		row := table.Row{name, fmt.Sprintf("%.6f", metrics[name])}
		if weights != nil {
			row = append(row, fmt.Sprintf("%.3f", weights[name]))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func writeCurveTable(w io.Writer, curve []stats.CurvePoint) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Best Fitness by Generation")
	t.AppendHeader(table.Row{"Generation", "Runs", "Mean", "Std", "Max"})
	for _, p := range curve {
		t.AppendRow(table.Row{
			p.Generation,
			p.Runs,
			fmt.Sprintf("%.6f", p.Mean),
			fmt.Sprintf("%.6f", p.Std),
			fmt.Sprintf("%.6f", p.Max),
		})
	}
	t.Render()
}
