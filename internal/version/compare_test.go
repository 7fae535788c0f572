package version

import (
	"testing"

	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConfigCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		binary        string
		config        string
		expectError   bool
		errorContains string
	}{
		{name: "exact match", binary: "1.2.0", config: "1.2.0"},
		{name: "binary patch higher", binary: "1.2.1", config: "1.2.0"},
		{name: "config patch higher", binary: "1.2.0", config: "1.2.5"},
		{name: "binary minor higher", binary: "1.3.0", config: "1.2.0"},
		{name: "v prefix", binary: "v1.2.0", config: "v1.2.0"},
		{name: "no config version", binary: "1.2.0", config: ""},
		{name: "development binary", binary: "main", config: "9.9.9"},
		{
			name:          "config minor higher",
			binary:        "1.1.0",
			config:        "1.2.0",
			expectError:   true,
			errorContains: "config requires 1.2.x",
		},
		{
			name:          "major differs",
			binary:        "2.0.0",
			config:        "1.2.0",
			expectError:   true,
			errorContains: "major version mismatch",
		},
		{
			name:          "garbage config version",
			binary:        "1.0.0",
			config:        "one",
			expectError:   true,
			errorContains: "invalid config version",
		},
		{
			name:          "garbage binary version",
			binary:        "dev-build",
			config:        "1.0.0",
			expectError:   true,
			errorContains: "invalid binary version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConfigCompatibility(tt.binary, tt.config)

			if !tt.expectError {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.Equal(t, errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
		})
	}
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
