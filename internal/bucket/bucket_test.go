package bucket

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_CarbonIntensity(t *testing.T) {
	th := CarbonIntensityThresholds()
	tests := []struct {
		value float64
		want  Tier
	}{
		{0, TierLow},
		{149.99, TierLow},
		{150, TierMedium},
		{400, TierMedium},
		{400.01, TierHigh},
		{900, TierHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.value), "value %v", tt.value)
		assert.Equal(t, tt.want, Classify(tt.value, 150, 400), "value %v", tt.value)
	}
}

func TestClassify_WaterStressLowIsInclusive(t *testing.T) {
	th := WaterStressThresholds()
	assert.Equal(t, TierLow, th.Classify(1))
	assert.Equal(t, TierMedium, th.Classify(1.01))
	assert.Equal(t, TierMedium, th.Classify(3))
	assert.Equal(t, TierHigh, th.Classify(3.5))
}

func TestThresholds_Validate(t *testing.T) {
	require.NoError(t, CarbonIntensityThresholds().Validate())
	assert.Error(t, Thresholds{Low: 5, High: 1}.Validate())
}

func TestBucket_Proportions(t *testing.T) {
	b := Bucket([]Item{
		{Label: "eu-north-1", Weight: 10, Value: 8.8, Found: true},
		{Label: "us-east-1", Weight: 30, Value: 379, Found: true},
		{Label: "ap-south-1", Weight: 60, Value: 708, Found: true},
	}, CarbonIntensityThresholds())

	assert.InDelta(t, 10.0, b.Percent(TierLow), 1e-9)
	assert.InDelta(t, 30.0, b.Percent(TierMedium), 1e-9)
	assert.InDelta(t, 60.0, b.Percent(TierHigh), 1e-9)
	assert.Equal(t, 100.0, b.TotalWeight)
	assert.Equal(t, TierHigh, b.Regions["ap-south-1"])
	assert.Empty(t, b.Fallbacks)
}

func TestBucket_MissingReferenceIsHighRisk(t *testing.T) {
	b := Bucket([]Item{
		{Label: "eu-north-1", Weight: 50, Value: 8.8, Found: true},
		{Label: "mystery-1", Weight: 50},
	}, CarbonIntensityThresholds())

	assert.InDelta(t, 50.0, b.Percent(TierLow), 1e-9)
	assert.InDelta(t, 50.0, b.Percent(TierHigh), 1e-9)
	assert.Equal(t, []string{"mystery-1"}, b.Fallbacks)
}

func TestBucket_EmptyIsAllZero(t *testing.T) {
	for _, items := range [][]Item{nil, {{Label: "a", Weight: 0, Value: 1, Found: true}}} {
		b := Bucket(items, CarbonIntensityThresholds())
		assert.True(t, b.Empty())
		for _, tier := range Tiers {
			assert.Equal(t, 0.0, b.Percent(tier))
		}
	}
}

func TestBucket_PercentagesSumTo100(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		n := 1 + rng.Intn(20)
		items := make([]Item, n)
		for i := range items {
			items[i] = Item{
				Label:  string(rune('a'+i)) + "-region",
				Weight: rng.Float64() * 1e6,
				Value:  rng.Float64() * 800,
				Found:  rng.Intn(5) > 0,
			}
		}
		b := Bucket(items, CarbonIntensityThresholds())
		require.False(t, b.Empty())

		var sum float64
		for _, tier := range Tiers {
			sum += b.Percent(tier)
		}
		assert.InDelta(t, 100.0, sum, 1e-6, "run %d", run)
	}
}
