package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shipment-risk-service/internal/adapters/catalog"
	"shipment-risk-service/internal/adapters/repositories"
	"shipment-risk-service/internal/api/dto"
	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/obs"
	"shipment-risk-service/internal/platform/simclock"
	"shipment-risk-service/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat := catalog.NewMemoryCatalog(catalog.Seed{
		Routes: []domain.Route{{
			ID:                 "coast",
			Origin:             "Harbor",
			Destination:        "Fort",
			EstimatedTimeHours: 1,
			CostMultiplier:     1,
			Waypoints:          []domain.Waypoint{{Sequence: 1, Name: "Lighthouse", PositionPct: 50}},
			VehicleTypes:       []string{"wagon"},
		}},
		VehicleTypes: []domain.VehicleType{{
			ID: "wagon", SpeedMultiplier: 1, CapacityWeight: 100, CapacityVolume: 100, RiskModifier: 1, CostMultiplier: 1,
		}},
		InsurancePlans: []domain.InsurancePlan{{
			Tier:               domain.PlanBasic,
			CoveragePercentage: decimal.NewFromInt(50),
			MaxCoverage:        decimal.NewFromInt(500),
			CostPercentage:     decimal.NewFromInt(3),
		}},
	})
	store := repositories.NewMemoryStore()

	reg := prometheus.NewRegistry()
	metrics, err := obs.NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	engine, err := services.NewEngine(services.EngineConfig{
		Catalog:   cat,
		Shipments: store,
		Convoys:   store,
		Ledger:    repositories.NewMemoryLedger(),
		Clock:     simclock.New(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 30*time.Minute),
		RNG:       services.NewSeededSource(1),
		Metrics:   metrics,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	srv := httptest.NewServer(NewRouter(Deps{Engine: engine, Catalog: cat, Metrics: metrics.Handler()}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, out any) int {
	t.Helper()

	var r *bytes.Reader
	if body == "" {
		r = bytes.NewReader(nil)
	} else {
		r = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	if out != nil && res.StatusCode < 300 {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return res.StatusCode
}

const createBody = `{
	"character_id": "alice",
	"route_id": "coast",
	"vehicle_type_id": "wagon",
	"insurance_plan": "basic",
	"cargo": [{"item_id": "salt", "quantity": 4, "weight": 2, "volume": 1, "value": "25.50"}]
}`

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	if code := do(t, srv, http.MethodGet, "/health", "", nil); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/health", "", nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", code)
	}
}

func TestShipmentLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var created dto.ShipmentResponse
	if code := do(t, srv, http.MethodPost, "/shipments", createBody, &created); code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	if created.Status != domain.StatusPending || created.Insurance == nil || created.LegCount != 2 {
		t.Fatalf("created = %+v", created)
	}
	// 4 × 25.50 × 3% = 3.06, rounded to 3
	if !created.Insurance.Cost.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("insurance cost = %s", created.Insurance.Cost)
	}

	var tick dto.TickAllResponse
	for i := 0; i < 3; i++ {
		if code := do(t, srv, http.MethodPost, "/ticks", "", &tick); code != http.StatusOK {
			t.Fatalf("tick all = %d", code)
		}
	}
	if tick.Tick != 3 || tick.Finished != 1 {
		t.Fatalf("tick summary = %+v", tick)
	}

	var got dto.ShipmentResponse
	if code := do(t, srv, http.MethodGet, "/shipments/"+created.ID, "", &got); code != http.StatusOK {
		t.Fatalf("get = %d", code)
	}
	if got.Status != domain.StatusDelivered || got.CurrentLocation != "Fort" {
		t.Fatalf("shipment = %+v", got)
	}

	var list dto.ListShipmentsResponse
	if code := do(t, srv, http.MethodGet, "/shipments?character_id=alice&status=delivered", "", &list); code != http.StatusOK {
		t.Fatalf("list = %d", code)
	}
	if len(list.Shipments) != 1 {
		t.Fatalf("listed %d shipments", len(list.Shipments))
	}

	if code := do(t, srv, http.MethodPost, "/shipments/"+created.ID+"/cancel", "", nil); code != http.StatusConflict {
		t.Fatalf("cancel delivered = %d, want 409", code)
	}
}

func TestShipmentErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/shipments", `{"character_id":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/shipments", `{"nope": 1}`, http.StatusBadRequest},
		{"unknown route", http.MethodPost, "/shipments", strings.Replace(createBody, `"coast"`, `"mountain"`, 1), http.StatusNotFound},
		{"overweight", http.MethodPost, "/shipments", strings.Replace(createBody, `"quantity": 4`, `"quantity": 400`, 1), http.StatusBadRequest},
		{"bad plan", http.MethodPost, "/shipments", strings.Replace(createBody, `"basic"`, `"gold"`, 1), http.StatusBadRequest},
		{"missing shipment", http.MethodGet, "/shipments/missing", "", http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/shipments?status=flying", "", http.StatusBadRequest},
		{"bad escort", http.MethodPost, "/shipments/missing/escort", `{"type":"tank","payment":"1"}`, http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/shipments", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := do(t, srv, tt.method, tt.path, tt.body, nil); code != tt.want {
				t.Fatalf("%s %s = %d, want %d", tt.method, tt.path, code, tt.want)
			}
		})
	}
}

func TestConvoyEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var s1, s2 dto.ShipmentResponse
	do(t, srv, http.MethodPost, "/shipments", createBody, &s1)
	do(t, srv, http.MethodPost, "/shipments", createBody, &s2)

	var cv dto.ConvoyResponse
	body := `{"leader_id":"alice","shipment_ids":["` + s1.ID + `"]}`
	if code := do(t, srv, http.MethodPost, "/convoys", body, &cv); code != http.StatusCreated {
		t.Fatalf("create convoy = %d", code)
	}
	if cv.Status != domain.ConvoyForming || len(cv.ShipmentIDs) != 1 {
		t.Fatalf("convoy = %+v", cv)
	}

	join := `{"shipment_id":"` + s2.ID + `"}`
	if code := do(t, srv, http.MethodPost, "/convoys/"+cv.ID+"/join", join, &cv); code != http.StatusOK {
		t.Fatalf("join = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/convoys/"+cv.ID+"/launch", "", &cv); code != http.StatusOK {
		t.Fatalf("launch = %d", code)
	}
	if cv.Status != domain.ConvoyActive || cv.RiskReduction < 0.2999 || cv.RiskReduction > 0.3001 {
		t.Fatalf("launched convoy = %+v", cv)
	}

	var got dto.ShipmentResponse
	do(t, srv, http.MethodGet, "/shipments/"+s2.ID, "", &got)
	if got.ConvoyID != cv.ID || got.RiskReduction < 0.2999 {
		t.Fatalf("shipment convoy view = %q / %v", got.ConvoyID, got.RiskReduction)
	}

	if code := do(t, srv, http.MethodPost, "/convoys/"+cv.ID+"/leave", join, &cv); code != http.StatusOK {
		t.Fatalf("leave = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/convoys/"+cv.ID+"/leave", join, nil); code != http.StatusConflict {
		t.Fatalf("second leave = %d, want 409", code)
	}
	if code := do(t, srv, http.MethodPost, "/convoys/"+cv.ID+"/disband", "", nil); code != http.StatusOK {
		t.Fatalf("disband = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/convoys/"+cv.ID+"/join", join, nil); code != http.StatusConflict {
		t.Fatalf("join disbanded = %d, want 409", code)
	}
	if code := do(t, srv, http.MethodGet, "/convoys/nope", "", nil); code != http.StatusNotFound {
		t.Fatalf("get missing convoy = %d", code)
	}
}

func TestEscortAndCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var s dto.ShipmentResponse
	do(t, srv, http.MethodPost, "/shipments", createBody, &s)

	var esc domain.EscortRequest
	if code := do(t, srv, http.MethodPost, "/shipments/"+s.ID+"/escort", `{"type":"armed","payment":"40"}`, &esc); code != http.StatusCreated {
		t.Fatalf("escort = %d", code)
	}
	if esc.Type != domain.EscortArmed || !esc.Payment.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("escort = %+v", esc)
	}

	var routes dto.ListRoutesResponse
	if code := do(t, srv, http.MethodGet, "/catalog/routes", "", &routes); code != http.StatusOK || len(routes.Routes) != 1 {
		t.Fatalf("routes = %d %+v", code, routes)
	}
	var plans dto.ListInsurancePlansResponse
	if code := do(t, srv, http.MethodGet, "/catalog/insurance-plans", "", &plans); code != http.StatusOK || len(plans.InsurancePlans) != 1 {
		t.Fatalf("plans = %d %+v", code, plans)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/shipments", createBody, nil)

	res, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer res.Body.Close()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(res.Body)
	if !strings.Contains(buf.String(), "shipments_created_total") {
		t.Fatalf("metrics output missing shipment counter")
	}
}
