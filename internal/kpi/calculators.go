package kpi

import (
	"context"
	"fmt"
	"strings"

	"github.com/Deepak-Sangle/greenratchet/internal/aggregate"
	"github.com/Deepak-Sangle/greenratchet/internal/bucket"
	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
)

type calculator func(e *Evaluator, ctx context.Context, def Definition, in *inputs) (Computed, error)

// calculatorFor is the dispatch table from KPI kind to formula.
func calculatorFor(k Kind) (calculator, bool) {
	switch k {
	case KindCO2Emissions:
		return (*Evaluator).computeEmissions, true
	case KindEnergyConsumption:
		return (*Evaluator).computeEnergy, true
	case KindWaterWithdrawal:
		return (*Evaluator).computeWater, true
	case KindAIComputeHours:
		return (*Evaluator).computeAIHours, true
	case KindGHGIntensity:
		return (*Evaluator).computeGHGIntensity, true
	case KindElectricityMix:
		return (*Evaluator).computeElectricityMix, true
	case KindRenewableShare:
		return (*Evaluator).computeRenewableShare, true
	case KindCarbonFreeShare:
		return (*Evaluator).computeCarbonFreeShare, true
	case KindLowCarbonRegionShare:
		return (*Evaluator).computeLowCarbonRegions, true
	case KindWaterStressedRegionShare:
		return (*Evaluator).computeWaterStressedRegions, true
	}
	return nil, false
}

func sumRecords(records []usage.Record, value func(usage.Record) (float64, bool)) (float64, int) {
	var total float64
	var n int
	for _, r := range records {
		if v, ok := value(r); ok {
			total += v
			n++
		}
	}
	return total, n
}

func groupKeys(groups []aggregate.Group) []grid.Key {
	keys := make([]grid.Key, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	return keys
}

func groupBreakdown(groups []aggregate.Group, value func(aggregate.Group) (float64, bool)) map[string]float64 {
	labels := aggregate.Labels(groupKeys(groups))
	out := make(map[string]float64, len(groups))
	for i, g := range groups {
		if v, ok := value(g); ok {
			out[labels[i]] = v
		}
	}
	return out
}

func missingKeys(keys []grid.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (e *Evaluator) computeEmissions(_ context.Context, _ Definition, in *inputs) (Computed, error) {
	t := newTrace("total_co2e = Σ co2e_metric_tons of usage records in window")
	total, n := sumRecords(in.records, usage.Emissions)

	t.input("records_with_emissions", float64(n), "")
	t.step("Summed co2e of %d of %d usage records across %d regions", n, len(in.records), len(in.groups))
	t.breakdown("co2e_tons_by_region", groupBreakdown(in.groups, func(g aggregate.Group) (float64, bool) {
		return g.CO2eTons, g.HasEmissions
	}))
	t.input("total_co2e_tons", total, "tCO2e")
	t.step("Total emissions: %s tCO2e", num(total))

	return Computed{Value: total, Details: t.details(), Quality: DataQuality{NoData: n == 0}}, nil
}

func (e *Evaluator) computeEnergy(_ context.Context, _ Definition, in *inputs) (Computed, error) {
	t := newTrace("total_energy = Σ energy_kwh of usage records in window")
	total, n := sumRecords(in.records, usage.Energy)

	t.input("records_with_energy", float64(n), "")
	t.step("Summed energy of %d of %d usage records across %d regions", n, len(in.records), len(in.groups))
	t.breakdown("energy_kwh_by_region", groupBreakdown(in.groups, func(g aggregate.Group) (float64, bool) {
		return g.EnergyKWh, g.HasEnergy
	}))
	t.input("total_energy_kwh", total, "kWh")
	t.step("Total energy: %s kWh", num(total))

	return Computed{Value: total, Details: t.details(), Quality: DataQuality{NoData: n == 0}}, nil
}

// waterVolumes returns the WUE of every group and its water volume in liters
// (energy × WUE). Groups without an energy basis have no volume.
func (e *Evaluator) waterVolumes(ctx context.Context, in *inputs) (aggregate.Result, []float64, error) {
	sel := aggregate.GridSelector(e.grid, grid.FamilyWUE, in.window.End)
	res, err := e.agg.Weighted(ctx, in.groups, sel, aggregate.Options{Fallback: e.opts.DefaultWUE, TopN: e.opts.TopRegions})
	if err != nil {
		return aggregate.Result{}, nil, err
	}
	liters := make([]float64, len(res.Regions))
	if res.Basis == aggregate.BasisEnergy {
		for i, rv := range res.Regions {
			liters[i] = rv.Weight * rv.Value
		}
	}
	return res, liters, nil
}

func (e *Evaluator) computeWater(ctx context.Context, _ Definition, in *inputs) (Computed, error) {
	res, liters, err := e.waterVolumes(ctx, in)
	if err != nil {
		return Computed{}, err
	}

	t := newTrace("water_liters = Σ energy_kwh(region) × wue(region)")
	t.input("default_wue", e.opts.DefaultWUE, "L/kWh")

	var energy, total float64
	hasEnergy := res.Basis == aggregate.BasisEnergy
	labels := aggregate.Labels(groupKeys(in.groups))
	byRegion := make(map[string]float64, len(res.Regions))
	for i, rv := range res.Regions {
		if !hasEnergy {
			break
		}
		energy += rv.Weight
		total += liters[i]
		byRegion[labels[i]] = liters[i]
		note := ""
		if rv.Missing {
			note = " (no WUE reading, default used)"
		}
		t.step("%s: %s kWh × %s L/kWh = %s L%s", rv.Key, num(rv.Weight), num(rv.Value), num(liters[i]), note)
	}

	t.input("total_energy_kwh", energy, "kWh")
	t.input("total_water_liters", total, "L")
	t.step("Total water withdrawal: %s L", num(total))
	t.breakdown("water_liters_by_region", byRegion)
	t.breakdown("wue_by_region", res.Breakdown())

	q := DataQuality{NoData: !hasEnergy || energy == 0, Estimated: res.Estimated()}
	if hasEnergy {
		q.MissingGridMetrics = missingKeys(res.Missing())
	}
	return Computed{
		Value:      total,
		Details:    t.details(),
		Quality:    q,
		DataSource: DataSource{GridFamily: string(grid.FamilyWUE), WeightBasis: string(aggregate.BasisEnergy)},
	}, nil
}

func (e *Evaluator) computeAIHours(_ context.Context, _ Definition, in *inputs) (Computed, error) {
	t := newTrace("ai_hours = Σ usage_hours of compute records whose instance family is an AI accelerator family")

	var aiHours, computeHours float64
	var aiRecords, computeRecords int
	byAccelerator := make(map[string]float64)
	for _, r := range in.records {
		if r.ServiceType == nil || strings.TrimSpace(*r.ServiceType) == "" {
			continue
		}
		h := r.Hours()
		computeHours += h
		computeRecords++
		if fam, ok := carbon.AcceleratorFor(r.ServiceType); ok {
			aiHours += h
			aiRecords++
			byAccelerator[fam.Accelerator] += h
		}
	}

	var share float64
	if computeHours > 0 {
		share = aiHours / computeHours * 100
	}

	t.input("compute_records", float64(computeRecords), "")
	t.input("ai_records", float64(aiRecords), "")
	t.input("total_compute_hours", computeHours, "h")
	t.input("ai_compute_hours", aiHours, "h")
	t.input("ai_share_percent", share, "%")
	t.step("Classified %d compute records by instance family; %d use AI accelerators", computeRecords, aiRecords)
	for _, name := range sortedKeys(byAccelerator) {
		t.step("%s: %s h", name, num(byAccelerator[name]))
	}
	t.step("AI compute hours: %s h of %s h (%s%%)", num(aiHours), num(computeHours), num(share))
	t.breakdown("ai_hours_by_accelerator", byAccelerator)

	return Computed{Value: aiHours, Details: t.details(), Quality: DataQuality{NoData: computeRecords == 0}}, nil
}

func (e *Evaluator) computeGHGIntensity(_ context.Context, def Definition, in *inputs) (Computed, error) {
	basis := def.basis()
	t := newTrace("ghg_intensity = total_co2e / employee_count, total_co2e / (annual_revenue / 1,000,000)")
	total, n := sumRecords(in.records, usage.Emissions)
	t.input("total_co2e_tons", total, "tCO2e")
	t.step("Summed co2e of %d usage records: %s tCO2e", n, num(total))

	var perEmployee, perRevenue float64
	hasEmployees := in.org.EmployeeCount != nil && *in.org.EmployeeCount > 0
	hasRevenue := in.org.AnnualRevenue != nil && *in.org.AnnualRevenue > 0

	if hasEmployees {
		employees := float64(*in.org.EmployeeCount)
		perEmployee = total / employees
		t.input("employee_count", employees, "")
		t.step("Per employee: %s / %s = %s tCO2e", num(total), num(employees), num(perEmployee))
	} else {
		t.input("employee_count", 0, "")
		t.step("Employee count not reported, per-employee intensity unavailable")
	}
	if hasRevenue {
		millions := *in.org.AnnualRevenue / carbon.RevenueDivisor
		perRevenue = total / millions
		t.input("annual_revenue", *in.org.AnnualRevenue, "$")
		t.step("Per $M revenue: %s / (%s / 1,000,000) = %s tCO2e", num(total), num(*in.org.AnnualRevenue), num(perRevenue))
	} else {
		t.input("annual_revenue", 0, "$")
		t.step("Annual revenue not reported, per-revenue intensity unavailable")
	}
	t.input("tco2e_per_employee", perEmployee, "tCO2e/employee")
	t.input("tco2e_per_million_revenue", perRevenue, "tCO2e/$M")

	value, ok := perEmployee, hasEmployees
	if basis == PerMillionRevenue {
		value, ok = perRevenue, hasRevenue
	}
	t.step("Reported basis %s: %s", basis, num(value))

	return Computed{Value: value, Details: t.details(), Quality: DataQuality{NoData: n == 0 || !ok}}, nil
}

func (e *Evaluator) computeRenewableShare(ctx context.Context, _ Definition, in *inputs) (Computed, error) {
	return e.weightedShare(ctx, in, grid.FamilyRenewableShare, "renewable")
}

func (e *Evaluator) computeCarbonFreeShare(ctx context.Context, _ Definition, in *inputs) (Computed, error) {
	return e.weightedShare(ctx, in, grid.FamilyCarbonFreeShare, "carbon_free")
}

// weightedShare evaluates a percentage grid family with the regional weighted
// aggregator. Regions without a reading count as 0%.
func (e *Evaluator) weightedShare(ctx context.Context, in *inputs, family grid.Family, name string) (Computed, error) {
	sel := aggregate.GridSelector(e.grid, family, in.window.End)
	res, err := e.agg.Weighted(ctx, in.groups, sel, aggregate.Options{Fallback: 0, TopN: e.opts.TopRegions})
	if err != nil {
		return Computed{}, err
	}

	t := newTrace(fmt.Sprintf("weighted_%s_percent = Σ(weight × %s_percent(region)) / Σ(weight)", name, name))
	t.step("Latest %s reading at or before %s per region; weights are %s", family, in.window.End.UTC().Format("2006-01-02"), res.Basis)
	t.weightedSteps(res, "%")

	var numerator float64
	for _, rv := range res.Regions {
		numerator += rv.Weight * rv.Value
	}
	t.input("weighted_sum", numerator, "")
	t.input("total_weight", res.TotalWeight, string(res.Basis))
	if res.NoData {
		t.step("Total weight is 0, no usage to weight")
	} else {
		t.step("%s / %s = %s%%", num(numerator), num(res.TotalWeight), num(res.Value))
	}
	t.input("weighted_"+name+"_percent", res.Value, "%")
	t.breakdown(name+"_percent_by_region", res.Breakdown())
	t.top(res.Top)

	return Computed{
		Value:      res.Value,
		Details:    t.details(),
		Quality:    DataQuality{NoData: res.NoData, Estimated: res.Estimated(), MissingGridMetrics: missingKeys(res.Missing())},
		DataSource: DataSource{GridFamily: string(family), WeightBasis: string(res.Basis)},
	}, nil
}

func (e *Evaluator) computeElectricityMix(ctx context.Context, def Definition, in *inputs) (Computed, error) {
	res, err := e.agg.WeightedMix(ctx, in.groups, e.grid, in.window.End)
	if err != nil {
		return Computed{}, err
	}
	sources := def.mixSources()
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}

	t := newTrace("mix(source) = Σ(weight × share(region, source)) / Σ(weight), normalized to 100; value = Σ mix over " +
		strings.Join(names, "+"))
	t.input("total_weight", res.TotalWeight, string(res.Basis))
	for _, label := range sortedKeys(res.Regions) {
		t.step("%s: mix normalized to 100%%", label)
		t.breakdown("electricity_mix:"+label, mixBreakdown(res.Regions[label]))
	}

	value := res.Mix.Share(sources)
	if res.NoData {
		value = 0
		t.step("Total weight is 0, no usage to weight")
	} else {
		for _, src := range grid.Sources {
			t.step("%s: %s%%", src, num(res.Mix[src]))
		}
		t.step("Selected sources %s: %s%%", strings.Join(names, "+"), num(value))
	}
	t.input("selected_sources_percent", value, "%")
	t.breakdown("electricity_mix", mixBreakdown(res.Mix))

	return Computed{
		Value:      value,
		Details:    t.details(),
		Quality:    DataQuality{NoData: res.NoData, MissingGridMetrics: missingKeys(res.Missing)},
		DataSource: DataSource{GridFamily: string(grid.FamilyElectricityMix), WeightBasis: string(res.Basis)},
	}, nil
}

func mixBreakdown(m grid.Mix) map[string]float64 {
	out := make(map[string]float64, len(m))
	for src, v := range m {
		out[string(src)] = v
	}
	return out
}

func (e *Evaluator) computeLowCarbonRegions(ctx context.Context, _ Definition, in *inputs) (Computed, error) {
	weights := make([]float64, len(in.groups))
	for i, g := range in.groups {
		weights[i] = g.CO2eTons
	}
	th := *e.opts.CarbonIntensity
	formula := fmt.Sprintf("low_carbon_percent = Σ co2e(region with intensity < %s) / Σ co2e × 100", num(th.Low))
	return e.bucketed(ctx, in, weights, "tCO2e", grid.FamilyCarbonIntensity, th, bucket.TierLow, formula)
}

func (e *Evaluator) computeWaterStressedRegions(ctx context.Context, _ Definition, in *inputs) (Computed, error) {
	_, liters, err := e.waterVolumes(ctx, in)
	if err != nil {
		return Computed{}, err
	}
	th := *e.opts.WaterStress
	formula := fmt.Sprintf("water_stressed_percent = Σ water(region with stress > %s) / Σ water × 100", num(th.High))
	return e.bucketed(ctx, in, liters, "L", grid.FamilyWaterStress, th, bucket.TierHigh, formula)
}

// bucketed classifies each group by the reference family, weights it, and
// reports the share of the selected tier. Regions without a reading are
// classified high.
func (e *Evaluator) bucketed(ctx context.Context, in *inputs, weights []float64, unit string, family grid.Family,
	th bucket.Thresholds, tier bucket.Tier, formula string,
) (Computed, error) {
	refs, err := e.agg.Resolve(ctx, in.groups, aggregate.GridSelector(e.grid, family, in.window.End))
	if err != nil {
		return Computed{}, err
	}

	t := newTrace(formula)
	t.input("low_threshold", th.Low, "")
	t.input("high_threshold", th.High, "")

	labels := aggregate.Labels(groupKeys(in.groups))
	items := make([]bucket.Item, len(in.groups))
	var q DataQuality
	var missing []grid.Key
	for i, g := range in.groups {
		items[i] = bucket.Item{Label: labels[i], Weight: weights[i], Value: refs[i].Value, Found: refs[i].Found}
		if !refs[i].Found {
			missing = append(missing, g.Key)
		}
		if refs[i].Estimated {
			q.Estimated = true
		}
	}
	b := bucket.Bucket(items, th)

	for i, it := range items {
		if it.Found {
			t.step("%s: %s %s, %s %s → %s", labels[i], num(it.Weight), unit, family, num(it.Value), b.Regions[it.Label])
		} else {
			t.step("%s: %s %s, no %s reading → %s", labels[i], num(it.Weight), unit, family, b.Regions[it.Label])
		}
	}

	percents := make(map[string]float64, len(bucket.Tiers))
	tierWeights := make(map[string]float64, len(bucket.Tiers))
	for _, tr := range bucket.Tiers {
		s := b.Shares[tr]
		percents[string(tr)] = s.Percent
		tierWeights[string(tr)] = s.Weight
		t.input(string(tr)+"_weight", s.Weight, unit)
	}
	t.input("total_weight", b.TotalWeight, unit)
	value := b.Percent(tier)
	if b.Empty() {
		t.step("Total weight is 0, every tier is 0%%")
	} else {
		t.step("%s tier: %s / %s = %s%%", tier, num(b.Shares[tier].Weight), num(b.TotalWeight), num(value))
	}
	t.input(string(tier)+"_percent", value, "%")
	t.breakdown("tier_percent", percents)
	t.breakdown("tier_weight", tierWeights)

	d := t.details()
	d.RegionTiers = make(map[string]string, len(b.Regions))
	for label, tr := range b.Regions {
		d.RegionTiers[label] = string(tr)
	}

	q.NoData = b.Empty()
	q.MissingGridMetrics = missingKeys(missing)
	return Computed{
		Value:      value,
		Details:    d,
		Quality:    q,
		DataSource: DataSource{GridFamily: string(family), WeightBasis: unit},
	}, nil
}
