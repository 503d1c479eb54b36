package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/seenimoa/moodpulse/internal/config"
	"github.com/seenimoa/moodpulse/pkg/utils"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, exitOK},
		{"entity failures", fmt.Errorf("%w: 1 of 3", errEntitiesFailed), exitRunFailures},
		{"missing key", (&config.Config{}).RequireAPIKey(), exitConfig},
		{"wrapped config error", fmt.Errorf("failed to load config: %w", &config.ConfigError{Field: "file", Err: errors.New("bad yaml")}), exitConfig},
		{"other", errors.New("disk full"), exitRunFailures},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestBuildOrchestratorRequiresKeyFirst(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "")
	cfg := &config.Config{}
	cfg.Pipeline.EntitiesFile = "/nonexistent/entities.yaml"

	_, _, err := buildOrchestrator(t.Context(), cfg)
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) || !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("err = %v, want missing key ConfigError", err)
	}
}

func TestScheduleHoursDefault(t *testing.T) {
	if got := scheduleHours(&config.Config{}); len(got) != len(utils.DefaultScheduleHours) {
		t.Errorf("scheduleHours = %v", got)
	}
	cfg := &config.Config{}
	cfg.Pipeline.ScheduleHours = []int{6, 18}
	if got := scheduleHours(cfg); len(got) != 2 {
		t.Errorf("scheduleHours = %v", got)
	}
}
