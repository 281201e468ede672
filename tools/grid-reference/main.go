// Package main generates a seed dataset of reference carbon intensity
// readings from the Cloud Carbon Footprint (CCF) grid emission factors.
//
// The output is a fixtures YAML document with one CARBON_INTENSITY reading
// per region, loadable with `greenratchet seed --file`.
//
// Usage:
//
//	go run ./tools/grid-reference [--offline] [--at 2025-01-01] [--output grid.yaml]
//
// Flags:
//
//	--offline   Skip the download and use the built-in reference table
//	            (always the case for providers other than AWS)
//	--at        Timestamp of the generated readings (default: 1 January this year)
//	--provider  Provider of the generated readings (default: AWS)
//	--output    Output file (default: stdout)
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
	"github.com/Deepak-Sangle/greenratchet/internal/fixtures"
	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const (
	ccfGridFactorsURL = "https://raw.githubusercontent.com/cloud-carbon-footprint/cloud-carbon-coefficients/main/data/grid-emissions-factors-aws.json"

	// CCF publishes metric tons CO2e per kWh; readings are gCO2eq/kWh.
	gramsPerTon = 1_000_000.0

	// Valid range for an intensity in gCO2eq/kWh.
	minValidIntensity = 0.0
	maxValidIntensity = 2000.0
)

// ccfGridFactor is one row of the CCF grid emission factors JSON.
type ccfGridFactor struct {
	Region       string  `json:"region"`
	MtCO2ePerKwh float64 `json:"mtCO2ePerKwh"`
}

func main() {
	offline := flag.Bool("offline", false, "Use the built-in reference table instead of downloading")
	at := flag.String("at", fmt.Sprintf("%d-01-01", time.Now().Year()), "Timestamp of the generated readings (YYYY-MM-DD)")
	provider := flag.String("provider", "AWS", "Provider of the generated readings")
	output := flag.String("output", "", "Output file (default: stdout)")
	flag.Parse()

	ts, err := time.Parse("2006-01-02", *at)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --at: %v\n", err)
		os.Exit(1)
	}
	p, err := usage.ParseProvider(*provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --provider: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	intensities, estimated, err := intensitiesFor(client, ccfGridFactorsURL, p, *offline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := validate(intensities); err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(1)
	}

	ds := dataset(intensities, p, ts, estimated)
	if *output == "" {
		err = write(os.Stdout, ds)
	} else {
		err = writeFile(*output, ds)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d carbon intensity readings\n", len(intensities))
}

// intensitiesFor picks the readings for one provider. CCF only publishes the
// AWS factors file, so other providers always use the built-in table. The
// second result reports whether the readings are estimates.
func intensitiesFor(client *http.Client, url string, p usage.Provider, offline bool) (map[string]float64, bool, error) {
	builtin := carbon.ReferenceIntensities(string(p))
	if !offline && p == usage.ProviderAWS {
		fmt.Fprintf(os.Stderr, "Fetching grid emission factors from %s\n", url)
		fetched, err := fetchIntensities(client, url)
		if err == nil {
			return fetched, false, nil
		}
		fmt.Fprintf(os.Stderr, "Fetch failed (%v), using the built-in reference table\n", err)
	}
	if len(builtin) == 0 {
		return nil, false, fmt.Errorf("no built-in reference regions for provider %s", p)
	}
	return builtin, true, nil
}

// fetchIntensities downloads CCF factors and converts them to gCO2eq/kWh.
func fetchIntensities(client *http.Client, url string) (map[string]float64, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grid factors: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var rows []ccfGridFactor
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		if r.Region == "" {
			continue
		}
		out[r.Region] = r.MtCO2ePerKwh * gramsPerTon
	}
	if len(out) == 0 {
		return nil, errors.New("no regions in response")
	}
	return out, nil
}

func validate(intensities map[string]float64) error {
	var problems []string
	for region, v := range intensities {
		if v < minValidIntensity || v > maxValidIntensity {
			problems = append(problems, fmt.Sprintf("%s: %.2f gCO2eq/kWh is outside [%.0f, %.0f]",
				region, v, minValidIntensity, maxValidIntensity))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// dataset builds one reading per region, sorted by region.
func dataset(intensities map[string]float64, p usage.Provider, ts time.Time, estimated bool) fixtures.Dataset {
	regions := make([]string, 0, len(intensities))
	for r := range intensities {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	ds := fixtures.Dataset{Grid: make([]fixtures.GridMetric, 0, len(regions))}
	for _, r := range regions {
		ds.Grid = append(ds.Grid, fixtures.GridMetric{
			Region:      r,
			Provider:    string(p),
			Family:      string(grid.FamilyCarbonIntensity),
			Timestamp:   ts,
			Value:       carbon.Round2(intensities[r]),
			IsEstimated: estimated,
		})
	}
	return ds
}

func writeFile(path string, ds fixtures.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, ds); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func write(w io.Writer, ds fixtures.Dataset) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ds); err != nil {
		return err
	}
	return enc.Close()
}
