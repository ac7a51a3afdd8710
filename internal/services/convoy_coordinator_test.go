package services

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"shipment-risk-service/internal/domain"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestConvoyReductionOnlyWhileActive(t *testing.T) {
	c := NewConvoyCoordinator(nil)
	c.Create("cv", "leader", testStart)

	if _, err := c.Join("cv", "s1", "alice", nil, testStart); err != nil {
		t.Fatalf("join: %v", err)
	}
	cv, err := c.Join("cv", "s2", "bob", nil, testStart)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !approx(cv.RiskReduction, 0.3) {
		t.Fatalf("reduction = %v, want 0.3", cv.RiskReduction)
	}
	if len(cv.Members) != 3 || cv.Members[0] != "leader" {
		t.Fatalf("members = %v, want leader first then owners", cv.Members)
	}
	if got := c.CurrentRiskReduction("s1"); got != 0 {
		t.Fatalf("forming convoy reduction = %v, want 0", got)
	}

	if _, err := c.Launch("cv", testStart); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if got := c.CurrentRiskReduction("s1"); !approx(got, 0.3) {
		t.Fatalf("active convoy reduction = %v, want 0.3", got)
	}

	if _, err := c.Leave("cv", "s1", testStart); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := c.CurrentRiskReduction("s1"); got != 0 {
		t.Fatalf("reduction after leaving = %v, want 0", got)
	}
	if got := c.CurrentRiskReduction("s2"); !approx(got, 0.2) {
		t.Fatalf("remaining member reduction = %v, want 0.2", got)
	}
}

func TestConvoyReductionIsCapped(t *testing.T) {
	c := NewConvoyCoordinator(nil)
	c.Create("cv", "leader", testStart)
	for i := 0; i < 12; i++ {
		if _, err := c.Join("cv", fmt.Sprintf("s%d", i), "alice", []domain.EscortType{domain.EscortHeavy}, testStart); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	cv, _ := c.Launch("cv", testStart)
	if cv.RiskReduction != MaxRiskReduction {
		t.Fatalf("reduction = %v, want %v", cv.RiskReduction, MaxRiskReduction)
	}
}

func TestConvoyEscortsRaiseReduction(t *testing.T) {
	c := NewConvoyCoordinator(nil)
	c.Create("cv", "leader", testStart)
	if _, err := c.Join("cv", "s1", "alice", nil, testStart); err != nil {
		t.Fatalf("join: %v", err)
	}

	cv, ok := c.AddEscort("s1", domain.EscortArmed, testStart)
	if !ok {
		t.Fatalf("expected escort to be recorded on the convoy")
	}
	if !approx(cv.RiskReduction, 0.3) {
		t.Fatalf("reduction = %v, want 0.3", cv.RiskReduction)
	}
	if _, ok := c.AddEscort("nobody", domain.EscortArmed, testStart); ok {
		t.Fatalf("expected no convoy for unknown shipment")
	}
}

func TestConvoyMembershipErrors(t *testing.T) {
	c := NewConvoyCoordinator(nil)
	c.Create("a", "leader", testStart)
	c.Create("b", "leader", testStart)

	if _, err := c.Join("a", "s1", "alice", nil, testStart); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := c.Join("a", "s1", "alice", nil, testStart); err != nil {
		t.Fatalf("rejoining the same convoy should be a no-op, got %v", err)
	}
	if _, err := c.Join("b", "s1", "alice", nil, testStart); !errors.Is(err, domain.ErrAlreadyInConvoy) {
		t.Fatalf("expected ErrAlreadyInConvoy, got %v", err)
	}
	if _, err := c.Leave("b", "s1", testStart); !errors.Is(err, domain.ErrNotConvoyMember) {
		t.Fatalf("expected ErrNotConvoyMember, got %v", err)
	}
	if _, err := c.Join("missing", "s2", "bob", nil, testStart); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cv, released, err := c.Disband("a", testStart)
	if err != nil {
		t.Fatalf("disband: %v", err)
	}
	if cv.Status != domain.ConvoyDisbanded || len(released) != 1 || released[0] != "s1" {
		t.Fatalf("disband = %+v released %v", cv, released)
	}
	if _, ok := c.ConvoyOf("s1"); ok {
		t.Fatalf("released shipment still mapped to a convoy")
	}
	if _, err := c.Join("a", "s2", "bob", nil, testStart); !errors.Is(err, domain.ErrConvoyClosed) {
		t.Fatalf("expected ErrConvoyClosed, got %v", err)
	}
	if _, err := c.Launch("a", testStart); !errors.Is(err, domain.ErrConvoyClosed) {
		t.Fatalf("expected ErrConvoyClosed on launch, got %v", err)
	}
}

func TestConvoyRestore(t *testing.T) {
	c := NewConvoyCoordinator(nil)
	c.Restore([]domain.Convoy{{
		ID:       "cv",
		LeaderID: "leader",
		Status:   domain.ConvoyActive,
		Shipments: []domain.ConvoyShipment{
			{ShipmentID: "s1", CharacterID: "alice"},
		},
	}})

	if id, ok := c.ConvoyOf("s1"); !ok || id != "cv" {
		t.Fatalf("ConvoyOf = %q, %v", id, ok)
	}
	if got := c.CurrentRiskReduction("s1"); !approx(got, 0.2) {
		t.Fatalf("reduction = %v, want 0.2", got)
	}
}
