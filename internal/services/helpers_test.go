package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"shipment-risk-service/internal/adapters/catalog"
	"shipment-risk-service/internal/adapters/repositories"
	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/simclock"

	"github.com/shopspring/decimal"
)

var testStart = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

// fixedRNG returns the same draw every time.
type fixedRNG struct {
	f float64
	n int
}

func (r fixedRNG) Float64() float64 { return r.f }
func (r fixedRNG) IntN(n int) int   { return r.n % n }

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%04d", prefix, n)
	}
}

func testVehicle() domain.VehicleType {
	return domain.VehicleType{
		ID:              "truck",
		Name:            "Truck",
		SpeedMultiplier: 1,
		CapacityWeight:  1000,
		CapacityVolume:  1000,
		RiskModifier:    1,
		CostMultiplier:  1,
	}
}

// testRoute takes 2h with waypoints at 33% and 66%, i.e. four 30 minute ticks
// of travel.
func testRoute(id string, risks ...domain.RouteRisk) domain.Route {
	return domain.Route{
		ID:                 id,
		Name:               id,
		Origin:             "Port",
		Destination:        "Market",
		DistanceKm:         120,
		EstimatedTimeHours: 2,
		CostMultiplier:     1,
		Waypoints: []domain.Waypoint{
			{Sequence: 1, Name: "Bridge", PositionPct: 33},
			{Sequence: 2, Name: "Pass", PositionPct: 66},
		},
		Risks:        risks,
		VehicleTypes: []string{"truck"},
	}
}

func testPlans() []domain.InsurancePlan {
	return []domain.InsurancePlan{
		{
			Tier:               domain.PlanStandard,
			CoveragePercentage: decimal.NewFromInt(80),
			MaxCoverage:        decimal.NewFromInt(10000),
			CostPercentage:     decimal.NewFromInt(5),
		},
		{
			Tier:               domain.PlanBasic,
			CoveragePercentage: decimal.NewFromInt(50),
			MaxCoverage:        decimal.NewFromInt(300),
			CostPercentage:     decimal.NewFromInt(2),
		},
	}
}

func testCargo() []domain.CargoItem {
	return []domain.CargoItem{
		{ItemID: "grain", Quantity: 10, Weight: 5, Volume: 2, Value: decimal.NewFromInt(100)},
		{ItemID: "glass", Quantity: 4, Weight: 1, Volume: 1, Value: decimal.NewFromInt(50), Fragile: true},
	}
}

type testEngine struct {
	*Engine
	store  *repositories.MemoryStore
	ledger *repositories.MemoryLedger
	clock  *simclock.SimClock
}

func newTestEngine(t *testing.T, seed uint64, routes ...domain.Route) testEngine {
	t.Helper()

	if len(routes) == 0 {
		routes = []domain.Route{testRoute("safe")}
	}
	cat := catalog.NewMemoryCatalog(catalog.Seed{
		Routes:         routes,
		VehicleTypes:   []domain.VehicleType{testVehicle()},
		InsurancePlans: testPlans(),
	})
	store := repositories.NewMemoryStore()
	ledger := repositories.NewMemoryLedger()
	clock := simclock.New(testStart, 30*time.Minute)

	e, err := NewEngine(EngineConfig{
		Catalog:   cat,
		Shipments: store,
		Convoys:   store,
		Ledger:    ledger,
		Clock:     clock,
		RNG:       NewSeededSource(seed),
		Workers:   4,
		NewID:     sequentialIDs("id"),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return testEngine{Engine: e, store: store, ledger: ledger, clock: clock}
}
