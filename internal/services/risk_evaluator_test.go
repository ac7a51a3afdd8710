package services

import (
	"context"
	"math"
	"testing"

	"shipment-risk-service/internal/domain"
)

func TestSeededSourceIsReproducible(t *testing.T) {
	src := NewSeededSource(42)

	a := src.Stream("s-1", 2, 0)
	b := src.Stream("s-1", 2, 0)
	for i := 0; i < 5; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
	}

	c := src.Stream("s-1", 2, 1)
	d := src.Stream("s-1", 2, 0)
	if c.Float64() == d.Float64() {
		t.Fatalf("expected a different stream for a different draw counter")
	}
}

func TestEffectiveProbability(t *testing.T) {
	tests := []struct {
		p, mod, red float64
		want        float64
	}{
		{0.5, 1, 0, 0.5},
		{0.5, 2, 0, 1},
		{0.5, 1, 0.5, 0.25},
		{1, 0, 0, 0},
		{0.4, 1.5, 0.9, 0.06},
	}
	for _, tt := range tests {
		got := EffectiveProbability(tt.p, tt.mod, tt.red)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EffectiveProbability(%v, %v, %v) = %v, want %v", tt.p, tt.mod, tt.red, got, tt.want)
		}
	}
}

func TestEvaluateLegCertainRiskAlwaysTriggers(t *testing.T) {
	ev := NewRiskEvaluator(nil)
	route := testRoute("r", domain.RouteRisk{Type: domain.RiskAmbush, Probability: 1, Severity: domain.SeverityHigh})
	src := NewSeededSource(7)

	for draw := 0; draw < 50; draw++ {
		roll := ev.EvaluateLeg(context.Background(), route, 0, testVehicle(), 0, src.Stream("s", 0, draw))
		if !roll.Triggered || roll.Risk.Type != domain.RiskAmbush {
			t.Fatalf("draw %d: expected ambush, got %+v", draw, roll)
		}
	}
}

func TestEvaluateLegZeroModifierNeverTriggers(t *testing.T) {
	ev := NewRiskEvaluator(nil)
	route := testRoute("r", domain.RouteRisk{Type: domain.RiskTheft, Probability: 1, Severity: domain.SeverityLow})
	v := testVehicle()
	v.RiskModifier = -2

	roll := ev.EvaluateLeg(context.Background(), route, 0, v, 0, fixedRNG{f: 0})
	if roll.Triggered {
		t.Fatalf("expected no trigger with a negative modifier, got %+v", roll)
	}
}

func TestEvaluateLegFirstTriggeredRiskWins(t *testing.T) {
	ev := NewRiskEvaluator(nil)
	route := testRoute("r",
		domain.RouteRisk{Type: domain.RiskWeather, Probability: 1, Severity: domain.SeverityLow},
		domain.RouteRisk{Type: domain.RiskAmbush, Probability: 1, Severity: domain.SeverityCritical},
	)

	roll := ev.EvaluateLeg(context.Background(), route, 0, testVehicle(), 0, fixedRNG{f: 0.5})
	if roll.Risk.Type != domain.RiskWeather {
		t.Fatalf("expected the first declared risk, got %s", roll.Risk.Type)
	}
}

func TestEvaluateLegRespectsLegFilter(t *testing.T) {
	ev := NewRiskEvaluator(nil)
	route := testRoute("r", domain.RouteRisk{Type: domain.RiskBreakdown, Probability: 1, Severity: domain.SeverityLow, Legs: []int{2}})

	if roll := ev.EvaluateLeg(context.Background(), route, 0, testVehicle(), 0, fixedRNG{}); roll.Triggered {
		t.Fatalf("risk restricted to leg 2 fired on leg 0")
	}
	if roll := ev.EvaluateLeg(context.Background(), route, 2, testVehicle(), 0, fixedRNG{}); !roll.Triggered {
		t.Fatalf("risk restricted to leg 2 did not fire on leg 2")
	}
}

func TestEvaluateLegAppliesConvoyReduction(t *testing.T) {
	ev := NewRiskEvaluator(nil)
	route := testRoute("r", domain.RouteRisk{Type: domain.RiskAmbush, Probability: 1, Severity: domain.SeverityHigh})

	// 0.95 is above 1 × (1 − 0.9).
	roll := ev.EvaluateLeg(context.Background(), route, 0, testVehicle(), 5, fixedRNG{f: 0.95})
	if roll.Triggered {
		t.Fatalf("expected reduction capped at 0.9 to suppress the draw, got %+v", roll)
	}
	if roll := ev.EvaluateLeg(context.Background(), route, 0, testVehicle(), 5, fixedRNG{f: 0.05}); !roll.Triggered {
		t.Fatalf("expected trigger below the reduced probability")
	}
}
