package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv("IMPORT_WORKERS", "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Very low multiplier still yields a worker",
			multiplier: 0.1,
			limit:      0,
			minExpect:  1,
			maxExpect:  max(1, int(float64(availableCPU)*0.1)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, expected within [%d, %d]",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int
	}{
		{name: "Valid override", envValue: "8", limit: 0, expected: 8},
		{name: "Override capped by limit", envValue: "20", limit: 10, expected: 10},
		{name: "Override below limit", envValue: "5", limit: 10, expected: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("IMPORT_WORKERS", tt.envValue)
			if got := Count(1.0, tt.limit); got != tt.expected {
				t.Errorf("Count with IMPORT_WORKERS=%s = %d, want %d", tt.envValue, got, tt.expected)
			}
		})
	}

	t.Run("Invalid override falls back to calculation", func(t *testing.T) {
		t.Setenv("IMPORT_WORKERS", "invalid")
		got := Count(1.0, 0)
		if got < 1 {
			t.Errorf("Count with invalid override = %d, want >= 1", got)
		}
	})
}

func TestHelpers(t *testing.T) {
	t.Setenv("IMPORT_WORKERS", "")

	if got := ForCPU(0); got < 1 {
		t.Errorf("ForCPU = %d, want >= 1", got)
	}
	if cpu, io := ForCPU(0), ForIO(0); io < cpu {
		t.Errorf("ForIO (%d) should be >= ForCPU (%d)", io, cpu)
	}
	if got := ForMixed(2); got > 2 {
		t.Errorf("ForMixed(2) = %d, want <= 2", got)
	}
}
