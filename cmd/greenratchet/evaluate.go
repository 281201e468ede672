package main

import (
	"fmt"
	"os"

	"github.com/Deepak-Sangle/greenratchet/internal/kpi"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"github.com/spf13/cobra"
)

type evaluateFlags struct {
	org       string
	kpisFile  string
	kind      string
	target    float64
	direction string
	start     string
	end       string
	output    string
	emit      bool
}

func newEvaluateCmd(c *cli) *cobra.Command {
	var f evaluateFlags
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate KPIs for an organization",
		Long: `Evaluate one KPI (--kind and --target) or every KPI in a definitions file
(--kpis) for an organization. Definitions without their own start and end use
the --start/--end window.`,
		Example: `  greenratchet evaluate --org org-demo --kind RENEWABLE_ENERGY_PERCENTAGE --target 60 \
    --start 2025-01-01 --end 2025-03-31
  greenratchet evaluate --org org-demo --kpis kpis.yaml --output json --emit`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runEvaluate(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.org, "org", "", "organization ID")
	cmd.Flags().StringVar(&f.kpisFile, "kpis", "", "YAML file of KPI definitions")
	cmd.Flags().StringVar(&f.kind, "kind", "", "KPI type for a single ad-hoc evaluation")
	cmd.Flags().Float64Var(&f.target, "target", 0, "target value for --kind")
	cmd.Flags().StringVar(&f.direction, "direction", "", "LOWER_IS_BETTER or HIGHER_IS_BETTER (default depends on --kind)")
	cmd.Flags().StringVar(&f.start, "start", "", "window start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&f.end, "end", "", "window end, inclusive (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "table", "output format (table, json)")
	cmd.Flags().BoolVar(&f.emit, "emit", false, "append results to the results history")
	_ = cmd.MarkFlagRequired("org")
	cmd.MarkFlagsMutuallyExclusive("kpis", "kind")
	cmd.MarkFlagsOneRequired("kpis", "kind")
	return cmd
}

func (f evaluateFlags) definitions() ([]kpi.Definition, error) {
	if f.kpisFile != "" {
		file, err := os.Open(f.kpisFile)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		defs, err := kpi.LoadDefinitions(file)
		if err != nil {
			return nil, err
		}
		if len(defs) == 0 {
			return nil, fmt.Errorf("%s defines no KPIs", f.kpisFile)
		}
		return defs, nil
	}

	kind, err := kpi.ParseKind(f.kind)
	if err != nil {
		return nil, err
	}
	def := kpi.Definition{ID: kind.String(), Kind: kind, Target: f.target, Direction: kpi.Direction(f.direction)}
	return []kpi.Definition{def}, nil
}

// row is one evaluated definition, successful or not.
type row struct {
	def    kpi.Definition
	result kpi.Result
	err    error
}

func (c *cli) runEvaluate(cmd *cobra.Command, f evaluateFlags) error {
	if f.output != "table" && f.output != "json" {
		return fmt.Errorf("unsupported output format %q", f.output)
	}
	defs, err := f.definitions()
	if err != nil {
		return err
	}
	fallback, err := parseWindow(f.start, f.end)
	if err != nil {
		return err
	}

	rows := make([]row, len(defs))
	byWindow := make(map[usage.Window][]int)
	var windows []usage.Window
	for i := range defs {
		def, err := defs[i].Normalized()
		if err != nil {
			rows[i] = row{def: defs[i], err: err}
			continue
		}
		rows[i].def = def
		w, ok := def.ObservationWindow()
		if !ok {
			if fallback == nil {
				rows[i].err = fmt.Errorf("KPI %q has no window: pass --start and --end", def.ID)
				continue
			}
			w = *fallback
		}
		if _, seen := byWindow[w]; !seen {
			windows = append(windows, w)
		}
		byWindow[w] = append(byWindow[w], i)
	}

	ctx := cmd.Context()
	e, err := c.openEngine(ctx, engineOptions{snapshotGrid: true, persist: f.emit})
	if err != nil {
		return err
	}
	defer logClose(c.logger, e)

	for _, w := range windows {
		idx := byWindow[w]
		batch := make([]kpi.Definition, len(idx))
		for j, i := range idx {
			batch[j] = rows[i].def
		}
		results, errs := e.evaluator.EvaluateAll(ctx, f.org, batch, w)
		for j, i := range idx {
			rows[i].result, rows[i].err = results[j], errs[j]
		}
	}

	if err := render(c.out, f.output, f.org, rows); err != nil {
		return err
	}
	for _, r := range rows {
		if r.err != nil {
			return fmt.Errorf("one or more KPIs could not be evaluated")
		}
	}
	return nil
}
