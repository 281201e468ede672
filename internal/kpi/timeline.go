package kpi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/aggregate"
	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/trend"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
)

// TimelineMetric selects the measure of a cumulative timeline.
type TimelineMetric string

const (
	TimelineEmissions TimelineMetric = "emissions"
	TimelineEnergy    TimelineMetric = "energy"
	TimelineWater     TimelineMetric = "water"
)

// ParseTimelineMetric accepts emissions, energy or water.
func ParseTimelineMetric(s string) (TimelineMetric, error) {
	switch m := TimelineMetric(strings.ToLower(strings.TrimSpace(s))); m {
	case TimelineEmissions, TimelineEnergy, TimelineWater:
		return m, nil
	}
	return "", fmt.Errorf("unknown timeline metric %q", s)
}

// Unit returns the unit of the metric.
func (m TimelineMetric) Unit() string {
	switch m {
	case TimelineEmissions:
		return "tCO2e"
	case TimelineEnergy:
		return "kWh"
	case TimelineWater:
		return "L"
	}
	return ""
}

// Timeline is a cumulative monthly series with optional projection.
type Timeline struct {
	OrganizationID string         `json:"organization_id"`
	Metric         TimelineMetric `json:"metric"`
	Unit           string         `json:"unit"`
	Window         usage.Window   `json:"window"`
	Monthly        []float64      `json:"monthly"`
	trend.Projection
}

// MonthOf returns the first day of the calendar month of a point.
func (tl Timeline) MonthOf(p trend.Point) time.Time {
	s := tl.Window.Start.UTC()
	return time.Date(s.Year(), s.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, p.MonthIndex, 0)
}

// Timeline builds the cumulative monthly series of metric over window starting
// at the window's first month, projected months forward. Fewer than three
// months with data returns history only with InsufficientData set.
func (e *Evaluator) Timeline(ctx context.Context, orgID string, metric TimelineMetric, window usage.Window, months int) (Timeline, error) {
	start := time.Now()
	log := e.logger.With().
		Str("trace_id", TraceID(ctx)).
		Str("organization_id", orgID).
		Str("operation", "Timeline").
		Str("metric", string(metric)).
		Logger()

	if !window.Valid() {
		return Timeline{}, newError(ErrInvalidWindow, "window %s starts after it ends", window)
	}
	if _, err := ParseTimelineMetric(string(metric)); err != nil {
		return Timeline{}, wrapError(ErrUnsupportedKPI, err, "timeline")
	}
	if months < 0 {
		months = 0
	}

	conns, err := e.activeConnections(ctx, orgID)
	if err != nil {
		log.Error().Err(err).Str("reason", Reason(err)).Msg("timeline failed")
		return Timeline{}, err
	}
	in, err := e.gather(ctx, orgID, conns, window, false)
	if err != nil {
		log.Error().Err(err).Str("reason", Reason(err)).Msg("timeline failed")
		return Timeline{}, err
	}

	value := usage.Emissions
	switch metric {
	case TimelineEnergy:
		value = usage.Energy
	case TimelineWater:
		value, err = e.waterExtractor(ctx, in)
		if err != nil {
			err = wrapError(ErrDataSource, err, "resolve WUE")
			log.Error().Err(err).Msg("timeline failed")
			return Timeline{}, err
		}
	}

	monthly := usage.MonthlyTotals(in.records, window, value)
	tl := Timeline{
		OrganizationID: orgID,
		Metric:         metric,
		Unit:           metric.Unit(),
		Window:         window,
		Monthly:        monthly,
		Projection:     trend.Project(monthly, months),
	}

	ev := log.Info()
	if tl.Fit != nil {
		ev = ev.Float64("slope", tl.Fit.Slope).Float64("intercept", tl.Fit.Intercept)
	}
	ev.Int("months", len(monthly)).
		Int("projected", len(tl.Projected())).
		Bool("insufficient_data", tl.InsufficientData).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("timeline built")
	return tl, nil
}

// waterExtractor resolves the WUE of every region in the window once and
// returns a per-record liters extractor.
func (e *Evaluator) waterExtractor(ctx context.Context, in *inputs) (func(usage.Record) (float64, bool), error) {
	refs, err := e.agg.Resolve(ctx, in.groups, aggregate.GridSelector(e.grid, grid.FamilyWUE, in.window.End))
	if err != nil {
		return nil, err
	}
	wue := make(map[grid.Key]float64, len(in.groups))
	for i, g := range in.groups {
		wue[g.Key] = e.opts.DefaultWUE
		if refs[i].Found {
			wue[g.Key] = refs[i].Value
		}
	}
	return func(r usage.Record) (float64, bool) {
		if r.EnergyKWh == nil {
			return 0, false
		}
		return *r.EnergyKWh * wue[grid.Key{Region: r.Region, Provider: r.Provider}], true
	}, nil
}
