package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"shipment-risk-service/internal/adapters/catalog"
	"shipment-risk-service/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type countingCatalog struct {
	*catalog.MemoryCatalog
	routeCalls atomic.Int32
	planCalls  atomic.Int32
}

func (c *countingCatalog) GetRoute(ctx context.Context, id string) (domain.Route, error) {
	c.routeCalls.Add(1)
	return c.MemoryCatalog.GetRoute(ctx, id)
}

func (c *countingCatalog) GetInsurancePlan(ctx context.Context, tier domain.PlanTier) (domain.InsurancePlan, error) {
	c.planCalls.Add(1)
	return c.MemoryCatalog.GetInsurancePlan(ctx, tier)
}

func newCachedCatalog(t *testing.T) (*RedisCatalogCache, *countingCatalog, *miniredis.Miniredis) {
	t.Helper()

	backing := &countingCatalog{MemoryCatalog: catalog.NewMemoryCatalog(catalog.Seed{
		Routes: []domain.Route{{
			ID:           "coast",
			Origin:       "Harbor",
			Destination:  "Fort",
			Waypoints:    []domain.Waypoint{{Sequence: 1, Name: "Lighthouse", PositionPct: 40}},
			Risks:        []domain.RouteRisk{{Type: domain.RiskWeather, Probability: 0.2, Severity: domain.SeverityLow}},
			VehicleTypes: []string{"wagon"},
		}},
		VehicleTypes: []domain.VehicleType{{ID: "wagon", SpeedMultiplier: 1}},
		InsurancePlans: []domain.InsurancePlan{{
			Tier:               domain.PlanPremium,
			CoveragePercentage: decimal.NewFromInt(100),
			MaxCoverage:        decimal.NewFromInt(5000),
			CostPercentage:     decimal.NewFromInt(8),
		}},
	})}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisCatalogCache(backing, rdb, time.Minute, nil), backing, mr
}

func TestRedisCatalogCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	c, backing, mr := newCachedCatalog(t)

	first, err := c.GetRoute(ctx, "coast")
	if err != nil {
		t.Fatalf("GetRoute: %v", err)
	}
	second, err := c.GetRoute(ctx, "coast")
	if err != nil {
		t.Fatalf("GetRoute (cached): %v", err)
	}

	if n := backing.routeCalls.Load(); n != 1 {
		t.Fatalf("backing catalog called %d times, want 1", n)
	}
	if !mr.Exists("catalog:route:coast") {
		t.Fatalf("route was not written to redis")
	}
	if second.Origin != first.Origin || len(second.Risks) != 1 || second.Waypoints[0].PositionPct != 40 {
		t.Fatalf("cached route = %+v", second)
	}
	if ttl := mr.TTL("catalog:route:coast"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	plan, err := c.GetInsurancePlan(ctx, domain.PlanPremium)
	if err != nil {
		t.Fatalf("GetInsurancePlan: %v", err)
	}
	if _, err := c.GetInsurancePlan(ctx, domain.PlanPremium); err != nil {
		t.Fatalf("GetInsurancePlan (cached): %v", err)
	}
	if backing.planCalls.Load() != 1 || !plan.MaxCoverage.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("plan calls = %d, plan = %+v", backing.planCalls.Load(), plan)
	}
}

func TestRedisCatalogCacheNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	c, backing, mr := newCachedCatalog(t)

	for i := 0; i < 2; i++ {
		if _, err := c.GetRoute(ctx, "mountain"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetRoute(mountain) err = %v, want ErrNotFound", err)
		}
	}
	if n := backing.routeCalls.Load(); n != 2 {
		t.Fatalf("backing catalog called %d times, want 2", n)
	}
	if mr.Exists("catalog:route:mountain") {
		t.Fatalf("missing route must not be cached")
	}
}

func TestRedisCatalogCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c, backing, mr := newCachedCatalog(t)

	if _, err := c.GetRoute(ctx, "coast"); err != nil {
		t.Fatalf("GetRoute: %v", err)
	}
	if err := mr.Set("unrelated", "x"); err != nil {
		t.Fatalf("seed unrelated key: %v", err)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if mr.Exists("catalog:route:coast") {
		t.Fatalf("route still cached after invalidate")
	}
	if !mr.Exists("unrelated") {
		t.Fatalf("invalidate removed a non-catalog key")
	}

	if _, err := c.GetRoute(ctx, "coast"); err != nil {
		t.Fatalf("GetRoute after invalidate: %v", err)
	}
	if n := backing.routeCalls.Load(); n != 2 {
		t.Fatalf("backing catalog called %d times, want 2", n)
	}
}

func TestRedisCatalogCacheFallsBackWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	c, backing, mr := newCachedCatalog(t)
	mr.Close()

	r, err := c.GetRoute(ctx, "coast")
	if err != nil {
		t.Fatalf("GetRoute with redis down: %v", err)
	}
	if r.ID != "coast" || backing.routeCalls.Load() != 1 {
		t.Fatalf("route = %+v, calls = %d", r, backing.routeCalls.Load())
	}
}

func TestRedisCatalogCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, backing, mr := newCachedCatalog(t)

	if err := mr.Set("catalog:route:coast", "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}
	r, err := c.GetRoute(ctx, "coast")
	if err != nil {
		t.Fatalf("GetRoute: %v", err)
	}
	if r.Destination != "Fort" || backing.routeCalls.Load() != 1 {
		t.Fatalf("route = %+v, calls = %d", r, backing.routeCalls.Load())
	}
}

func TestRedisCatalogCacheListsThroughBacking(t *testing.T) {
	c, _, _ := newCachedCatalog(t)

	plans, err := c.ListInsurancePlans(context.Background())
	if err != nil {
		t.Fatalf("ListInsurancePlans: %v", err)
	}
	if len(plans) != 1 || plans[0].Tier != domain.PlanPremium {
		t.Fatalf("plans = %+v", plans)
	}
}

// unorderedCatalog serves routes exactly as an operator might have typed them.
type unorderedCatalog struct {
	*catalog.MemoryCatalog
}

func (unorderedCatalog) GetRoute(_ context.Context, id string) (domain.Route, error) {
	return domain.Route{
		ID:          id,
		Origin:      "Harbor",
		Destination: "Fort",
		Waypoints: []domain.Waypoint{
			{Sequence: 2, Name: "Ford"},
			{Sequence: 1, Name: "Mill"},
		},
	}, nil
}

func TestRedisCatalogCacheMissAndHitReturnSameRoute(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewRedisCatalogCache(unorderedCatalog{catalog.NewMemoryCatalog(catalog.Seed{})}, rdb, time.Minute, nil)

	miss, err := c.GetRoute(ctx, "river")
	if err != nil {
		t.Fatalf("GetRoute (miss): %v", err)
	}
	hit, err := c.GetRoute(ctx, "river")
	if err != nil {
		t.Fatalf("GetRoute (hit): %v", err)
	}

	want := []domain.Waypoint{
		{Sequence: 1, Name: "Mill", PositionPct: 100.0 / 3},
		{Sequence: 2, Name: "Ford", PositionPct: 200.0 / 3},
	}
	for _, tc := range []struct {
		name  string
		route domain.Route
	}{
		{"miss", miss},
		{"hit", hit},
	} {
		if len(tc.route.Waypoints) != len(want) {
			t.Fatalf("%s waypoints = %+v", tc.name, tc.route.Waypoints)
		}
		for i, wp := range tc.route.Waypoints {
			if wp != want[i] {
				t.Fatalf("%s waypoint %d = %+v, want %+v", tc.name, i, wp, want[i])
			}
		}
	}
}
