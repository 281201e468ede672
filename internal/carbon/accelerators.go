package carbon

import (
	_ "embed"
	"encoding/csv"
	"io"
	"strings"
	"sync"
)

// CSV column indices for the accelerator family allow-list.
const (
	colFamily      = 0 // family
	colProvider    = 1 // provider
	colAccelerator = 2 // accelerator
)

//go:embed data/accelerator_families.csv
var acceleratorFamiliesCSV string

// AcceleratorFamily describes an instance family backed by GPU or ML accelerators.
type AcceleratorFamily struct {
	// Family is the lower-case instance family prefix (e.g., "p4d").
	Family string

	// Provider is the cloud provider the family belongs to (AWS, GCP, AZURE).
	Provider string

	// Accelerator is the accelerator model name (e.g., "A100").
	Accelerator string
}

// managedServicePrefixes are instance class prefixes used by managed services
// in front of the underlying EC2 family.
var managedServicePrefixes = []string{"ml.", "db.", "cache."}

var (
	acceleratorFamilies     map[string]AcceleratorFamily
	acceleratorFamiliesOnce sync.Once
)

// parseAcceleratorFamilies initializes the package-level allow-list by parsing
// the embedded CSV. Malformed rows are skipped.
func parseAcceleratorFamilies() {
	acceleratorFamilies = make(map[string]AcceleratorFamily)

	reader := csv.NewReader(strings.NewReader(acceleratorFamiliesCSV))

	// Skip header row
	_, err := reader.Read()
	if err != nil {
		logger.Error().Err(err).Msg("failed to read accelerator families CSV header")
		return
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn().Err(err).Msg("skipping malformed accelerator families CSV row")
			continue
		}

		if len(record) <= colAccelerator {
			continue
		}

		family := strings.ToLower(strings.TrimSpace(record[colFamily]))
		if family == "" {
			continue
		}

		acceleratorFamilies[family] = AcceleratorFamily{
			Family:      family,
			Provider:    strings.ToUpper(strings.TrimSpace(record[colProvider])),
			Accelerator: strings.TrimSpace(record[colAccelerator]),
		}
	}
}

// InstanceFamily extracts the instance family prefix from a service type
// identifier. The family is the token before the first "." ("p4d.24xlarge"),
// or before the first "-" when there is no dot ("a2-highgpu-1g"). Managed
// service prefixes ("ml.p3.2xlarge", "db.r5.large") are skipped. Azure sizes
// ("Standard_NC6s_v3") reduce to their series prefix ("standard_nc").
func InstanceFamily(serviceType string) string {
	s := strings.ToLower(strings.TrimSpace(serviceType))
	if s == "" {
		return ""
	}
	for _, prefix := range managedServicePrefixes {
		if rest, ok := strings.CutPrefix(s, prefix); ok && strings.Contains(rest, ".") {
			s = rest
			break
		}
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	if strings.HasPrefix(s, "standard_") {
		series := strings.TrimPrefix(s, "standard_")
		end := 0
		for end < len(series) && series[end] >= 'a' && series[end] <= 'z' {
			end++
		}
		if end > 2 {
			end = 2
		}
		return "standard_" + series[:end]
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		return s[:i]
	}
	return s
}

// AcceleratorFor returns the accelerator family entry for a service type.
// Returns (empty, false) for nil, empty or unrecognised identifiers.
func AcceleratorFor(serviceType *string) (AcceleratorFamily, bool) {
	if serviceType == nil {
		return AcceleratorFamily{}, false
	}
	family := InstanceFamily(*serviceType)
	if family == "" {
		return AcceleratorFamily{}, false
	}
	acceleratorFamiliesOnce.Do(parseAcceleratorFamilies)
	entry, ok := acceleratorFamilies[family]
	return entry, ok
}

// IsAIWorkload reports whether a compute usage record's service type belongs
// to a GPU or ML accelerator family. Nil or unrecognised identifiers are never
// counted as AI.
func IsAIWorkload(serviceType *string) bool {
	_, ok := AcceleratorFor(serviceType)
	return ok
}

// AcceleratorFamilyCount reports the number of loaded accelerator families.
func AcceleratorFamilyCount() int {
	acceleratorFamiliesOnce.Do(parseAcceleratorFamilies)
	return len(acceleratorFamilies)
}
