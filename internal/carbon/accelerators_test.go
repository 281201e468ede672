package carbon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestIsAIWorkload(t *testing.T) {
	tests := []struct {
		name        string
		serviceType *string
		want        bool
	}{
		{"nil service type", nil, false},
		{"empty service type", strPtr(""), false},
		{"p4d.24xlarge is A100", strPtr("p4d.24xlarge"), true},
		{"t3.micro is general purpose", strPtr("t3.micro"), false},
		{"g5.xlarge is A10G", strPtr("g5.xlarge"), true},
		{"inf2.24xlarge is Inferentia2", strPtr("inf2.24xlarge"), true},
		{"trn1.32xlarge is Trainium", strPtr("trn1.32xlarge"), true},
		{"upper case is normalised", strPtr("P5.48XLARGE"), true},
		{"sagemaker ml prefix", strPtr("ml.p3.2xlarge"), true},
		{"rds db prefix", strPtr("db.r5.large"), false},
		{"gcp a2 machine type", strPtr("a2-highgpu-1g"), true},
		{"gcp e2 machine type", strPtr("e2-medium"), false},
		{"azure NC series", strPtr("Standard_NC6s_v3"), true},
		{"azure D series", strPtr("Standard_D2s_v3"), false},
		{"unknown identifier", strPtr("unknown-type"), false},
		{"family must match exactly", strPtr("p4.large"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAIWorkload(tt.serviceType))
		})
	}
}

func TestInstanceFamily(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"p4d.24xlarge", "p4d"},
		{"  m5.large ", "m5"},
		{"a2-highgpu-1g", "a2"},
		{"ml.g5.xlarge", "g5"},
		{"Standard_ND96asr_v4", "standard_nd"},
		{"lambda", "lambda"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, InstanceFamily(tt.in))
		})
	}
}

func TestAcceleratorFor(t *testing.T) {
	entry, ok := AcceleratorFor(strPtr("p4d.24xlarge"))
	require.True(t, ok)
	assert.Equal(t, "A100", entry.Accelerator)
	assert.Equal(t, "AWS", entry.Provider)

	_, ok = AcceleratorFor(strPtr("c5.xlarge"))
	assert.False(t, ok)
}

func TestAcceleratorFamilyCount(t *testing.T) {
	// The allow-list should at least cover the major GPU and accelerator families
	assert.GreaterOrEqual(t, AcceleratorFamilyCount(), 20)
}
