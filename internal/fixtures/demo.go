package fixtures

import (
	"bytes"
	_ "embed"
)

//go:embed demo.yaml
var demoYAML []byte

// Demo returns the bundled demo dataset.
func Demo() (*Dataset, error) {
	return Decode(bytes.NewReader(demoYAML))
}
