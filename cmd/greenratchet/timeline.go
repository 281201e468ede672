package main

import (
	"fmt"

	"github.com/Deepak-Sangle/greenratchet/internal/kpi"
	"github.com/spf13/cobra"
)

func newTimelineCmd(c *cli) *cobra.Command {
	var (
		org, metric, start, end, output string
		months                          int
	)
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show a cumulative monthly timeline with a linear projection",
		Example: `  greenratchet timeline --org org-demo --metric emissions --start 2025-01-01 --end 2025-06-30 --months 6`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := kpi.ParseTimelineMetric(metric)
			if err != nil {
				return err
			}
			w, err := parseWindow(start, end)
			if err != nil {
				return err
			}
			if w == nil {
				return fmt.Errorf("--start and --end are required")
			}
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported output format %q", output)
			}
			if !cmd.Flags().Changed("months") {
				months = c.cfg.Engine.ProjectionMonths
			}

			ctx := cmd.Context()
			e, err := c.openEngine(ctx, engineOptions{snapshotGrid: true})
			if err != nil {
				return err
			}
			defer logClose(c.logger, e)

			tl, err := e.evaluator.Timeline(ctx, org, m, *w, months)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(c.out, tl)
			}
			renderTimeline(c, tl)
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization ID")
	cmd.Flags().StringVar(&metric, "metric", "emissions", "metric (emissions, energy, water)")
	cmd.Flags().StringVar(&start, "start", "", "window start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "window end, inclusive (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().IntVar(&months, "months", 0, "months to project past the window (default from engine.projection_months)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func renderTimeline(c *cli, tl kpi.Timeline) {
	fmt.Fprintf(c.out, "Organization: %s\nMetric: %s (%s, cumulative)\n\n", tl.OrganizationID, tl.Metric, tl.Unit)
	table := newTable(c.out, []string{"Month", "Cumulative", "Projected"})
	for _, p := range tl.Points {
		projected := ""
		if p.IsProjected {
			projected = "yes"
		}
		table.Append([]string{tl.MonthOf(p).Format("2006-01"), formatValue(p.Value), projected})
	}
	table.Render()
	switch {
	case tl.InsufficientData:
		fmt.Fprintln(c.out, "\nNot enough non-zero months to project a trend.")
	case tl.Fit != nil:
		fmt.Fprintf(c.out, "\nTrend: %s %s/month (intercept %s, %d points)\n",
			formatValue(tl.Fit.Slope), tl.Unit, formatValue(tl.Fit.Intercept), tl.Fit.Points)
	}
}
