package carbon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRegionalCarbonIntensity_AllWithinValidRange validates that reference
// intensities are physically plausible gCO2eq/kWh values.
func TestRegionalCarbonIntensity_AllWithinValidRange(t *testing.T) {
	for provider, regions := range RegionalCarbonIntensity {
		assert.Contains(t, []string{"AWS", "GCP", "AZURE"}, provider)
		for region, v := range regions {
			t.Run(provider+"/"+region, func(t *testing.T) {
				assert.Greater(t, v, 0.0)
				assert.Less(t, v, 2000.0, "intensity for %s looks like the wrong unit", region)
			})
		}
	}
}

func TestReferenceCarbonIntensity(t *testing.T) {
	v, ok := ReferenceCarbonIntensity("AWS", "eu-north-1")
	assert.True(t, ok)
	assert.Less(t, v, LowCarbonIntensityThreshold)

	v, ok = ReferenceCarbonIntensity("AWS", "ap-south-1")
	assert.True(t, ok)
	assert.Greater(t, v, HighCarbonIntensityThreshold)

	_, ok = ReferenceCarbonIntensity("AWS", "mars-north-1")
	assert.False(t, ok)

	// Region codes are only meaningful within their provider.
	_, ok = ReferenceCarbonIntensity("AWS", "us-central1")
	assert.False(t, ok)
	_, ok = ReferenceCarbonIntensity("GCP", "us-central1")
	assert.True(t, ok)
}

func TestReferenceIntensities(t *testing.T) {
	gcp := ReferenceIntensities("GCP")
	assert.Contains(t, gcp, "us-central1")
	assert.NotContains(t, gcp, "us-east-1")

	gcp["us-central1"] = 0
	v, _ := ReferenceCarbonIntensity("GCP", "us-central1")
	assert.Equal(t, 394.0, v)

	assert.Empty(t, ReferenceIntensities("mars"))
}

func TestThresholdOrdering(t *testing.T) {
	assert.Less(t, LowCarbonIntensityThreshold, HighCarbonIntensityThreshold)
	assert.Less(t, LowWaterStressThreshold, HighWaterStressThreshold)
	assert.Greater(t, DefaultWUE, 0.0)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "35", FormatFloat(35))
	assert.Equal(t, "35.50", FormatFloat(35.5))
	assert.Equal(t, "0.33", FormatFloat(1.0/3.0))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.234))
	assert.Equal(t, 1.24, Round2(1.235))
	assert.Equal(t, 70.0, Round2(70.0000000001))
}
