package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/Deepak-Sangle/greenratchet/internal/kpi"
	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
)

type jsonError struct {
	KPIID   string `json:"kpi_id"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type jsonReport struct {
	OrganizationID string       `json:"organization_id"`
	Results        []kpi.Result `json:"results"`
	Errors         []jsonError  `json:"errors,omitempty"`
}

func render(w io.Writer, format, orgID string, rows []row) error {
	if format == "json" {
		report := jsonReport{OrganizationID: orgID, Results: []kpi.Result{}}
		for _, r := range rows {
			if r.err != nil {
				report.Errors = append(report.Errors, jsonError{KPIID: r.def.ID, Reason: kpi.Reason(r.err), Message: r.err.Error()})
				continue
			}
			report.Results = append(report.Results, r.result)
		}
		return writeJSON(w, report)
	}

	fmt.Fprintf(w, "Organization: %s\n\n", orgID)
	table := newTable(w, []string{"KPI", "Type", "Actual", "Target", "Unit", "Direction", "Status", "Notes"})
	for _, r := range rows {
		if r.err != nil {
			table.Append([]string{r.def.ID, r.def.Kind.String(), "-", formatValue(r.def.Target), r.def.Unit(),
				string(r.def.Direction), "ERROR", kpi.Reason(r.err)})
			continue
		}
		res := r.result
		table.Append([]string{res.KPIID, res.Kind.String(), formatValue(res.ActualValue), formatValue(res.TargetValue),
			res.Unit, string(res.Direction), string(res.Status), notes(res.Quality)})
	}
	table.Render()

	for _, r := range rows {
		if r.err != nil {
			fmt.Fprintf(w, "\n%s: %v\n", r.def.ID, r.err)
			continue
		}
		fmt.Fprintf(w, "\n%s: %s\n", r.result.KPIID, r.result.Details.Formula)
		for _, step := range r.result.Details.Steps {
			fmt.Fprintf(w, "  - %s\n", step)
		}
	}
	return nil
}

func notes(q kpi.DataQuality) string {
	switch {
	case q.NoData:
		return "no data"
	case q.Estimated:
		return "estimated"
	case len(q.MissingGridMetrics) > 0:
		return strconv.Itoa(len(q.MissingGridMetrics)) + " regions defaulted"
	}
	return ""
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
