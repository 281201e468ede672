package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

func rec(region string, provider usage.Provider, energy, co2e *float64) usage.Record {
	return usage.Record{Region: region, Provider: provider, EnergyKWh: energy, CO2eTons: co2e}
}

func key(region string) grid.Key {
	return grid.Key{Region: region, Provider: usage.ProviderAWS}
}

func scalar(region string, family grid.Family, v float64) grid.Metric {
	return grid.Metric{Region: region, Provider: usage.ProviderAWS, Family: family, Timestamp: at.AddDate(0, -1, 0), Value: v}
}

func TestGroupByRegion(t *testing.T) {
	groups := GroupByRegion([]usage.Record{
		rec("us-west-2", usage.ProviderAWS, f64(10), f64(1)),
		rec("us-east-1", usage.ProviderAWS, f64(5), nil),
		rec("us-west-2", usage.ProviderAWS, nil, f64(2)),
		rec("us-east-1", usage.ProviderGCP, nil, nil),
	})

	require.Len(t, groups, 3)
	assert.Equal(t, grid.Key{Region: "us-east-1", Provider: usage.ProviderAWS}, groups[0].Key)
	assert.Equal(t, grid.Key{Region: "us-east-1", Provider: usage.ProviderGCP}, groups[1].Key)
	assert.False(t, groups[1].HasEnergy)

	west := groups[2]
	assert.Equal(t, 10.0, west.EnergyKWh)
	assert.Equal(t, 3.0, west.CO2eTons, "records without energy still contribute emissions")
	assert.Equal(t, 2, west.Records)
}

func TestWeights_FallsBackToEmissions(t *testing.T) {
	w, basis := Weights([]Group{{EnergyKWh: 0, CO2eTons: 2}, {CO2eTons: 6}})
	assert.Equal(t, BasisEmissions, basis)
	assert.Equal(t, []float64{2, 6}, w)

	w, basis = Weights([]Group{{EnergyKWh: 100, CO2eTons: 2}, {CO2eTons: 6}})
	assert.Equal(t, BasisEnergy, basis)
	assert.Equal(t, []float64{100, 0}, w)
}

// Two regions, A=100kWh at 80% renewable and B=300kWh at 20% renewable,
// weighted renewable share is (100×80+300×20)/400 = 35.
func TestWeighted_RenewableScenario(t *testing.T) {
	store := grid.NewIndex(
		scalar("region-a", grid.FamilyRenewableShare, 80),
		scalar("region-b", grid.FamilyRenewableShare, 20),
	)
	groups := GroupByRegion([]usage.Record{
		rec("region-a", usage.ProviderAWS, f64(100), nil),
		rec("region-b", usage.ProviderAWS, f64(300), nil),
	})

	res, err := NewAggregator(2).Weighted(context.Background(), groups,
		GridSelector(store, grid.FamilyRenewableShare, at), Options{})
	require.NoError(t, err)

	assert.InDelta(t, 35.0, res.Value, 1e-9)
	assert.Equal(t, 400.0, res.TotalWeight)
	assert.Equal(t, BasisEnergy, res.Basis)
	assert.False(t, res.NoData)
	assert.Equal(t, map[string]float64{"region-a": 80, "region-b": 20}, res.Breakdown())
	assert.Empty(t, res.Missing())
}

func TestWeighted_IdenticalValuesYieldThatValue(t *testing.T) {
	distributions := [][]float64{
		{1, 1, 1},
		{1, 1000, 0.001},
		{7.5, 0, 3},
		{123456, 0.5, 42},
	}

	for _, weights := range distributions {
		var records []usage.Record
		var metrics []grid.Metric
		for i, w := range weights {
			region := string(rune('a'+i)) + "-region"
			records = append(records, rec(region, usage.ProviderAWS, f64(w), nil))
			metrics = append(metrics, scalar(region, grid.FamilyCarbonFreeShare, 63.7))
		}
		res, err := NewAggregator(0).Weighted(context.Background(), GroupByRegion(records),
			GridSelector(grid.NewIndex(metrics...), grid.FamilyCarbonFreeShare, at), Options{})
		require.NoError(t, err)
		assert.InDelta(t, 63.7, res.Value, 1e-9, "weights %v", weights)
	}
}

func TestWeighted_NoData(t *testing.T) {
	res, err := NewAggregator(1).Weighted(context.Background(), nil,
		GridSelector(grid.NewIndex(), grid.FamilyRenewableShare, at), Options{})
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Equal(t, 0.0, res.Value)

	groups := GroupByRegion([]usage.Record{rec("us-east-1", usage.ProviderAWS, nil, nil)})
	res, err = NewAggregator(1).Weighted(context.Background(), groups,
		GridSelector(grid.NewIndex(), grid.FamilyRenewableShare, at), Options{})
	require.NoError(t, err)
	assert.True(t, res.NoData, "null weights count as no data")
	assert.Empty(t, res.Top)
}

func TestWeighted_MissingReferenceUsesFallback(t *testing.T) {
	store := grid.NewIndex(scalar("us-east-1", grid.FamilyRenewableShare, 50))
	groups := GroupByRegion([]usage.Record{
		rec("us-east-1", usage.ProviderAWS, f64(100), nil),
		rec("eu-west-1", usage.ProviderAWS, f64(100), nil),
	})

	res, err := NewAggregator(1).Weighted(context.Background(), groups,
		GridSelector(store, grid.FamilyRenewableShare, at), Options{Fallback: 0})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, res.Value, 1e-9)
	assert.Equal(t, []grid.Key{key("eu-west-1")}, res.Missing())
}

func TestWeighted_SelectorError(t *testing.T) {
	groups := GroupByRegion([]usage.Record{rec("us-east-1", usage.ProviderAWS, f64(1), nil)})
	boom := errors.New("boom")
	_, err := NewAggregator(1).Weighted(context.Background(), groups,
		func(context.Context, grid.Key) (Reference, error) { return Reference{}, boom }, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestTopRegions_OrderingAndLimit(t *testing.T) {
	regions := []RegionValue{
		{Key: key("c"), Weight: 1, Value: 50},
		{Key: key("a"), Weight: 1, Value: 50},
		{Key: key("b"), Weight: 1, Value: 90},
		{Key: key("d"), Weight: 1, Value: 10},
		{Key: key("e"), Weight: 1, Value: 20},
		{Key: key("f"), Weight: 1, Value: 30},
		{Key: key("g"), Weight: 0, Value: 99},
	}

	top := TopRegions(regions, 0)
	require.Len(t, top, 5)
	got := make([]string, 0, len(top))
	for _, rv := range top {
		got = append(got, rv.Key.Region)
	}
	assert.Equal(t, []string{"b", "a", "c", "f", "e"}, got)

	assert.Len(t, TopRegions(regions, 2), 2)
}

func TestWeightedMix(t *testing.T) {
	store := grid.NewIndex(
		grid.Metric{Region: "a", Provider: usage.ProviderAWS, Family: grid.FamilyElectricityMix, Timestamp: at,
			Mix: grid.Mix{grid.SourceWind: 0.5, grid.SourceCoal: 0.5}},
		grid.Metric{Region: "b", Provider: usage.ProviderAWS, Family: grid.FamilyElectricityMix, Timestamp: at,
			Mix: grid.Mix{grid.SourceHydro: 900, grid.SourceGas: 100}},
	)
	groups := GroupByRegion([]usage.Record{
		rec("a", usage.ProviderAWS, f64(100), nil),
		rec("b", usage.ProviderAWS, f64(100), nil),
		rec("c", usage.ProviderAWS, f64(200), nil),
	})

	res, err := NewAggregator(4).WeightedMix(context.Background(), groups, store, at)
	require.NoError(t, err)
	assert.False(t, res.NoData)
	assert.InDelta(t, 12.5, res.Mix[grid.SourceWind], 1e-9)
	assert.InDelta(t, 12.5, res.Mix[grid.SourceCoal], 1e-9)
	assert.InDelta(t, 22.5, res.Mix[grid.SourceHydro], 1e-9)
	assert.InDelta(t, 2.5, res.Mix[grid.SourceGas], 1e-9)
	assert.InDelta(t, 50.0, res.Mix[grid.SourceUnknown], 1e-9)
	assert.InDelta(t, 100.0, res.Mix.Total(), 1e-9)
	assert.Equal(t, []grid.Key{key("c")}, res.Missing)
	assert.Len(t, res.Regions, 3)
}

func TestWeightedMix_NoData(t *testing.T) {
	res, err := NewAggregator(1).WeightedMix(context.Background(), nil, grid.NewIndex(), at)
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Equal(t, 0.0, res.Mix.Total())
}

func BenchmarkWeighted(b *testing.B) {
	var records []usage.Record
	var metrics []grid.Metric
	for i := 0; i < 200; i++ {
		region := "region-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		records = append(records, rec(region, usage.ProviderAWS, f64(float64(i+1)), nil))
		metrics = append(metrics, scalar(region, grid.FamilyRenewableShare, float64(i%100)))
	}
	groups := GroupByRegion(records)
	sel := GridSelector(grid.NewIndex(metrics...), grid.FamilyRenewableShare, at)
	agg := NewAggregator(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := agg.Weighted(context.Background(), groups, sel, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func TestLabels(t *testing.T) {
	keys := []grid.Key{
		{Region: "us-east-1", Provider: usage.ProviderAWS},
		{Region: "global", Provider: usage.ProviderAWS},
		{Region: "global", Provider: usage.ProviderGCP},
	}
	assert.Equal(t, []string{"us-east-1", "AWS/global", "GCP/global"}, Labels(keys))
}
