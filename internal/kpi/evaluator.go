package kpi

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/aggregate"
	"github.com/Deepak-Sangle/greenratchet/internal/bucket"
	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/org"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheTTL is the expiry of cached computations.
const DefaultCacheTTL = 5 * time.Minute

// Options configures an Evaluator. Zero fields take defaults.
type Options struct {
	Concurrency int
	TopRegions  int
	DefaultWUE  float64

	// CarbonIntensity and WaterStress override the tier thresholds when set.
	// A pointer to a zero Thresholds is a valid configuration.
	CarbonIntensity *bucket.Thresholds
	WaterStress     *bucket.Thresholds

	Cache    Cache
	CacheTTL time.Duration
	Sink     ResultSink
	Recorder Recorder

	// Clock stamps EvaluatedAt. Defaults to time.Now.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = aggregate.DefaultConcurrency
	}
	if o.TopRegions <= 0 {
		o.TopRegions = carbon.TopRegionsLimit
	}
	if o.DefaultWUE <= 0 {
		o.DefaultWUE = carbon.DefaultWUE
	}
	if o.CarbonIntensity == nil {
		th := bucket.CarbonIntensityThresholds()
		o.CarbonIntensity = &th
	}
	if o.WaterStress == nil {
		th := bucket.WaterStressThresholds()
		o.WaterStress = &th
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Evaluator maps KPI definitions to results. It holds no mutable state and is
// safe for concurrent use.
type Evaluator struct {
	usage  usage.Store
	grid   grid.Store
	orgs   org.Directory
	agg    *aggregate.Aggregator
	opts   Options
	logger zerolog.Logger // logger is immutable (copy-on-write)
}

// NewEvaluator creates an Evaluator reading from the given stores.
func NewEvaluator(usageStore usage.Store, gridStore grid.Store, dir org.Directory, logger zerolog.Logger, opts Options) *Evaluator {
	opts = opts.withDefaults()
	return &Evaluator{
		usage:  usageStore,
		grid:   gridStore,
		orgs:   dir,
		agg:    aggregate.NewAggregator(opts.Concurrency),
		opts:   opts,
		logger: logger,
	}
}

// Stage is a step of the evaluation pipeline.
type Stage int

const (
	StageInitialized Stage = iota
	StageInputsGathered
	StageComputed
	StageStatusDetermined
	StageTraceAssembled
	StageFinalized
)

func (s Stage) String() string {
	switch s {
	case StageInitialized:
		return "initialized"
	case StageInputsGathered:
		return "inputs_gathered"
	case StageComputed:
		return "computed"
	case StageStatusDetermined:
		return "status_determined"
	case StageTraceAssembled:
		return "trace_assembled"
	case StageFinalized:
		return "finalized"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// inputs is everything a calculator reads.
type inputs struct {
	window      usage.Window
	connections []string
	records     []usage.Record
	groups      []aggregate.Group
	org         org.Organization
}

// evaluation carries one pass through the pipeline. Nothing is written
// anywhere until StageFinalized.
type evaluation struct {
	stage    Stage
	orgID    string
	def      Definition
	window   usage.Window
	in       *inputs
	computed Computed
	cached   bool
	status   Status
	details  CalculationDetails
	logger   zerolog.Logger
}

func (ev *evaluation) advance(to Stage) {
	ev.stage = to
	ev.logger.Debug().Str("stage", to.String()).Msg("evaluation stage")
}

type traceIDKey struct{}

// WithTraceID returns a context carrying id for log correlation.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceID returns the trace ID carried by ctx, or a new UUID.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// Evaluate runs def for the organization over window. Either a complete
// Result is returned or an *Error; no partial result is ever emitted.
func (e *Evaluator) Evaluate(ctx context.Context, orgID string, def Definition, window usage.Window) (Result, error) {
	start := time.Now()
	traceID := TraceID(ctx)
	if def.Direction == "" {
		def.Direction = DefaultDirection(def.Kind)
	}

	ev := &evaluation{
		orgID:  orgID,
		def:    def,
		window: window,
		logger: e.logger.With().
			Str("trace_id", traceID).
			Str("organization_id", orgID).
			Str("kpi_kind", def.Kind.String()).
			Logger(),
	}

	res, err := e.run(ctx, ev)
	if err != nil {
		e.opts.Recorder.ObserveError(def.Kind.String(), Reason(err))
		ev.logger.Error().
			Err(err).
			Str("operation", "Evaluate").
			Str("stage", ev.stage.String()).
			Str("reason", Reason(err)).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("kpi evaluation failed")
		return Result{}, err
	}

	e.opts.Recorder.ObserveEvaluation(def.Kind.String(), string(res.Status), time.Since(start))
	ev.logger.Info().
		Str("operation", "Evaluate").
		Str("kpi_id", def.ID).
		Str("status", string(res.Status)).
		Float64("actual_value", res.ActualValue).
		Float64("target_value", res.TargetValue).
		Bool("no_data", res.Quality.NoData).
		Bool("cached", ev.cached).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("kpi evaluated")
	return res, nil
}

func (e *Evaluator) run(ctx context.Context, ev *evaluation) (Result, error) {
	ev.advance(StageInitialized)
	if !ev.window.Valid() {
		return Result{}, newError(ErrInvalidWindow, "window %s starts after it ends", ev.window).
			WithContext("window", ev.window.String())
	}
	def, err := ev.def.Normalized()
	if err != nil {
		var kerr *Error
		if errors.As(err, &kerr) {
			return Result{}, kerr
		}
		return Result{}, wrapError(ErrUnsupportedKPI, err, "invalid KPI definition %q", ev.def.ID)
	}
	ev.def = def
	calc, ok := calculatorFor(ev.def.Kind)
	if !ok {
		return Result{}, newError(ErrUnsupportedKPI, "no calculator for %s", ev.def.Kind)
	}

	// Connections are resolved on every pass so a cached computation is never
	// served to an organization that has lost its active connections.
	conns, err := e.activeConnections(ctx, ev.orgID)
	if err != nil {
		return Result{}, err
	}

	key := e.cacheKey(ev, conns)
	if c, hit := e.cacheGet(ctx, ev, key); hit {
		ev.computed = c
		ev.cached = true
		ev.advance(StageComputed)
	} else {
		in, err := e.gather(ctx, ev.orgID, conns, ev.window, ev.def.Kind == KindGHGIntensity)
		if err != nil {
			return Result{}, err
		}
		ev.in = in
		ev.advance(StageInputsGathered)

		c, err := calc(e, ctx, ev.def, in)
		if err != nil {
			var kerr *Error
			if errors.As(err, &kerr) {
				return Result{}, kerr
			}
			return Result{}, wrapError(ErrDataSource, err, "compute %s", ev.def.Kind)
		}
		c.DataSource.Window = in.window
		c.DataSource.Connections = in.connections
		c.DataSource.UsageRecords = len(in.records)
		c.DataSource.Regions = len(in.groups)
		ev.computed = c
		ev.advance(StageComputed)
		e.cacheSet(ctx, ev, key, c)
	}

	ev.status = DetermineStatus(ev.def.Direction, ev.computed.Value, ev.def.Target)
	ev.advance(StageStatusDetermined)

	ev.details = assembleTrace(ev.def, ev.computed, ev.status)
	ev.advance(StageTraceAssembled)

	res := Result{
		ID:             uuid.New().String(),
		OrganizationID: ev.orgID,
		KPIID:          ev.def.ID,
		Kind:           ev.def.Kind,
		Unit:           ev.def.Unit(),
		Direction:      ev.def.Direction,
		ActualValue:    ev.computed.Value,
		TargetValue:    ev.def.Target,
		Status:         ev.status,
		Details:        ev.details,
		DataSource:     ev.computed.DataSource,
		Quality:        ev.computed.Quality,
		EvaluatedAt:    e.opts.Clock().UTC(),
	}
	if e.opts.Sink != nil {
		if err := e.opts.Sink.Emit(ctx, res); err != nil {
			return Result{}, wrapError(ErrDataSource, err, "emit result for KPI %q", ev.def.ID)
		}
	}
	ev.advance(StageFinalized)
	return res, nil
}

// assembleTrace appends the status comparison to a copy of the computed trace
// so cached details are never mutated.
func assembleTrace(def Definition, c Computed, status Status) CalculationDetails {
	d := c.Details
	d.Inputs = append(slices.Clone(d.Inputs), Input{Name: "target_value", Value: def.Target, Unit: def.Unit()})
	d.Steps = slices.Clone(d.Steps)
	if c.Quality.NoData {
		d.Steps = append(d.Steps, "No usable data in window: value is a defined 0, not a measurement")
	}
	if len(c.Quality.MissingGridMetrics) > 0 {
		d.Steps = append(d.Steps, fmt.Sprintf("Default reference values used for: %v", c.Quality.MissingGridMetrics))
	}
	d.Steps = append(d.Steps, fmt.Sprintf("Status (%s): %s %s %s → %s",
		def.Direction, num(c.Value), comparator(def.Direction), num(def.Target), status))
	return d
}

// activeConnections returns the sorted IDs of the organization's active
// connections, or ErrNoActiveConnections when there are none.
func (e *Evaluator) activeConnections(ctx context.Context, orgID string) ([]string, error) {
	conns, err := e.orgs.Connections(ctx, orgID)
	if err != nil {
		if errors.Is(err, org.ErrNotFound) {
			return nil, newError(ErrNoActiveConnections, "organization %q not found", orgID)
		}
		return nil, wrapError(ErrDataSource, err, "list connections for %q", orgID)
	}
	ids := org.ActiveConnectionIDs(conns)
	if len(ids) == 0 {
		return nil, newError(ErrNoActiveConnections, "organization %q has no active cloud connection", orgID).
			WithContext("organization_id", orgID)
	}
	slices.Sort(ids)
	return ids, nil
}

// gather queries usage over the given connections and the organization
// profile concurrently.
func (e *Evaluator) gather(ctx context.Context, orgID string, conns []string, w usage.Window, needOrg bool) (*inputs, error) {
	in := &inputs{window: w, connections: conns}

	var records []usage.Record
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		rs, err := e.usage.QueryUsage(egCtx, in.connections, w, usage.Filters{})
		if err != nil {
			return wrapError(ErrDataSource, err, "query usage for %q", orgID)
		}
		records = rs
		return nil
	})
	if needOrg {
		eg.Go(func() error {
			o, err := e.orgs.Organization(egCtx, orgID)
			if err != nil {
				return wrapError(ErrDataSource, err, "load organization %q", orgID)
			}
			in.org = o
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	in.records = make([]usage.Record, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			e.logger.Warn().Err(err).Str("organization_id", orgID).Msg("skipping invalid usage record")
			continue
		}
		if !w.Contains(r) {
			continue
		}
		in.records = append(in.records, r)
	}
	in.groups = aggregate.GroupByRegion(in.records)
	return in, nil
}

func (e *Evaluator) cacheKey(ev *evaluation, conns []string) string {
	key := CacheKey(ev.orgID, ev.def, ev.window) + "|" + strings.Join(conns, ",")
	switch ev.def.Kind {
	case KindLowCarbonRegionShare:
		key += fmt.Sprintf("|%v-%v", e.opts.CarbonIntensity.Low, e.opts.CarbonIntensity.High)
	case KindWaterStressedRegionShare:
		key += fmt.Sprintf("|%v-%v|wue=%v", e.opts.WaterStress.Low, e.opts.WaterStress.High, e.opts.DefaultWUE)
	case KindWaterWithdrawal:
		key += fmt.Sprintf("|wue=%v", e.opts.DefaultWUE)
	}
	return key
}

func (e *Evaluator) cacheGet(ctx context.Context, ev *evaluation, key string) (Computed, bool) {
	if e.opts.Cache == nil {
		return Computed{}, false
	}
	raw, ok, err := e.opts.Cache.Get(ctx, key)
	if err != nil {
		ev.logger.Warn().Err(err).Str("cache_key", key).Msg("cache lookup failed")
	}
	var c Computed
	if ok && err == nil {
		if derr := json.Unmarshal(raw, &c); derr != nil {
			ev.logger.Warn().Err(derr).Str("cache_key", key).Msg("discarding undecodable cache entry")
			ok = false
		}
	}
	hit := ok && err == nil
	e.opts.Recorder.ObserveCacheLookup(hit)
	return c, hit
}

func (e *Evaluator) cacheSet(ctx context.Context, ev *evaluation, key string, c Computed) {
	if e.opts.Cache == nil {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		ev.logger.Warn().Err(err).Msg("encode cache entry")
		return
	}
	if err := e.opts.Cache.Set(ctx, key, raw, e.opts.CacheTTL); err != nil {
		ev.logger.Warn().Err(err).Str("cache_key", key).Msg("cache store failed")
	}
}

// EvaluateAll evaluates every definition in parallel. results[i] and errs[i]
// correspond to defs[i]; a failed definition does not affect the others.
func (e *Evaluator) EvaluateAll(ctx context.Context, orgID string, defs []Definition, window usage.Window) ([]Result, []error) {
	results := make([]Result, len(defs))
	errs := make([]error, len(defs))

	var eg errgroup.Group
	eg.SetLimit(e.opts.Concurrency)
	for i := range defs {
		eg.Go(func() error {
			results[i], errs[i] = e.Evaluate(ctx, orgID, defs[i], window)
			return nil
		})
	}
	_ = eg.Wait()
	return results, errs
}
