package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/services"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "SIM_TICK_DURATION", "SIM_SEED", "SIM_START", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.SimTickDuration != 30*time.Minute || cfg.SimSeed != 1 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("expected no database by default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SIM_SEED", "42")
	t.Setenv("SIM_TICK_DURATION", "15m")
	t.Setenv("SIM_START", "2026-03-01T00:00:00Z")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.SimSeed != 42 || cfg.SimTickDuration != 15*time.Minute || !cfg.TracingEnabled {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.SimStart.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", cfg.SimStart)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SIM_TICK_DURATION", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad duration")
	}

	t.Setenv("SIM_TICK_DURATION", "-1m")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative tick duration")
	}
}

func TestPolicyFileBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	body := `
default_travel_time: 6h
delay_ticks:
  medium: 5
medium_loss_fraction: 0.5
convoy:
  base: 0.2
  per_shipment: 0.05
  per_escort:
    heavy: 0.3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	pf, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	p, err := pf.Build(10 * time.Minute)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if p.TickDuration != 10*time.Minute || p.DefaultTravelTime != 6*time.Hour {
		t.Fatalf("durations = %v / %v", p.TickDuration, p.DefaultTravelTime)
	}
	if p.DelayTicks[domain.SeverityMedium] != 5 {
		t.Fatalf("delay ticks = %v", p.DelayTicks)
	}
	if got := p.MediumLossFraction(domain.CargoItem{}); got != 0.5 {
		t.Fatalf("loss fraction = %v", got)
	}
	got := p.RiskReduction(services.ConvoyComposition{Shipments: 2, Escorts: map[domain.EscortType]int{domain.EscortHeavy: 1}})
	if got < 0.5999 || got > 0.6001 {
		t.Fatalf("reduction = %v, want 0.6", got)
	}
}

func TestPolicyFileRejectsUnknownSeverity(t *testing.T) {
	pf := PolicyFile{DelayTicks: map[string]int{"SEVERE": 2}}
	if _, err := pf.Build(time.Minute); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadPolicyMissingFileUsesDefaults(t *testing.T) {
	pf, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := pf.Build(30 * time.Minute)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.DefaultTravelTime != 4*time.Hour {
		t.Fatalf("default travel = %v", p.DefaultTravelTime)
	}
}
