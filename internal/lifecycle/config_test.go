package lifecycle

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "poll interval too small",
			mutate:  func(c *Config) { c.PollInterval = 50 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "upload deadline below poll interval",
			mutate:  func(c *Config) { c.UploadDeadline = time.Second },
			wantErr: true,
		},
		{
			name:    "analysis deadline not past upload deadline",
			mutate:  func(c *Config) { c.AnalysisDeadline = c.UploadDeadline },
			wantErr: true,
		},
		{
			name:    "negative settle delay",
			mutate:  func(c *Config) { c.SettleDelay = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative cleanup delay",
			mutate:  func(c *Config) { c.CleanupDelay = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero settle and cleanup delays are valid",
			mutate:  func(c *Config) { c.SettleDelay = 0; c.CleanupDelay = 0 },
			wantErr: false,
		},
		{
			name:    "min threshold out of range",
			mutate:  func(c *Config) { c.QualityMinThreshold = 101 },
			wantErr: true,
		},
		{
			name:    "warn threshold below min threshold",
			mutate:  func(c *Config) { c.QualityWarnThreshold = 5 },
			wantErr: true,
		},
		{
			name:    "warn threshold above 100",
			mutate:  func(c *Config) { c.QualityWarnThreshold = 120 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
