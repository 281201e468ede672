package carbon

// RegionalCarbonIntensity maps provider names (as in usage.Provider) and their
// region codes to reference grid carbon intensity in gCO2eq/kWh. It is only
// consulted when the grid metric store has no reading for a region; readings
// built from it are flagged as estimated.
//
// Source: Cloud Carbon Footprint methodology
// Data vintage: 2024
// Reference: https://www.cloudcarbonfootprint.org/docs/methodology
var RegionalCarbonIntensity = map[string]map[string]float64{
	"AWS": {
		"us-east-1":      379.0, // Virginia (SERC)
		"us-east-2":      411.0, // Ohio (RFC)
		"us-west-1":      322.0, // N. California (WECC)
		"us-west-2":      322.0, // Oregon (WECC)
		"ca-central-1":   120.0, // Canada
		"eu-west-1":      278.6, // Ireland
		"eu-north-1":     8.8,   // Sweden
		"ap-southeast-1": 408.0, // Singapore
		"ap-southeast-2": 790.0, // Sydney
		"ap-northeast-1": 506.0, // Tokyo
		"ap-south-1":     708.0, // Mumbai
		"sa-east-1":      61.7,  // São Paulo
	},
	"GCP": {
		"us-central1":     394.0, // Iowa
		"europe-west1":    196.0, // Belgium
		"europe-north1":   112.0, // Finland
		"asia-southeast1": 419.0, // Singapore
	},
	"AZURE": {
		"eastus":        379.0, // Virginia
		"westeurope":    328.0, // Netherlands
		"northeurope":   278.6, // Ireland
		"swedencentral": 8.8,   // Sweden
	},
}

// ReferenceCarbonIntensity returns the reference carbon intensity for a
// provider's region in gCO2eq/kWh and whether the region is known. Unknown
// regions return (0, false); callers decide on the conservative fallback.
func ReferenceCarbonIntensity(provider, region string) (float64, bool) {
	v, ok := RegionalCarbonIntensity[provider][region]
	return v, ok
}

// ReferenceIntensities returns a copy of the reference table for one provider.
func ReferenceIntensities(provider string) map[string]float64 {
	out := make(map[string]float64, len(RegionalCarbonIntensity[provider]))
	for region, v := range RegionalCarbonIntensity[provider] {
		out[region] = v
	}
	return out
}
