package config

import (
	"fmt"
	"os"
	"time"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/services"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the YAML shape of configs/policy.yaml.
type PolicyFile struct {
	DefaultTravelTime  string         `yaml:"default_travel_time"`
	DelayTicks         map[string]int `yaml:"delay_ticks"`
	MediumLossFraction float64        `yaml:"medium_loss_fraction"`
	Convoy             struct {
		Base        float64            `yaml:"base"`
		PerShipment float64            `yaml:"per_shipment"`
		PerEscort   map[string]float64 `yaml:"per_escort"`
	} `yaml:"convoy"`
}

// LoadPolicy reads a policy file. A missing file yields the defaults.
func LoadPolicy(path string) (PolicyFile, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return PolicyFile{}, nil
	}
	if err != nil {
		return PolicyFile{}, fmt.Errorf("load policy: read %q: %w", path, err)
	}

	var pf PolicyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return PolicyFile{}, fmt.Errorf("load policy: parse %q: %w", path, err)
	}
	return pf, nil
}

// Build turns the file into an engine policy. Unset fields keep the defaults.
func (pf PolicyFile) Build(tick time.Duration) (services.Policy, error) {
	p := services.DefaultPolicy()
	p.TickDuration = tick

	if pf.DefaultTravelTime != "" {
		d, err := time.ParseDuration(pf.DefaultTravelTime)
		if err != nil || d <= 0 {
			return services.Policy{}, fmt.Errorf("policy: default_travel_time %q: %w", pf.DefaultTravelTime, domain.ErrInvalidArgument)
		}
		p.DefaultTravelTime = d
	}

	if len(pf.DelayTicks) > 0 {
		p.DelayTicks = make(map[domain.Severity]int, len(pf.DelayTicks))
		for k, n := range pf.DelayTicks {
			sev, err := domain.ParseSeverity(k)
			if err != nil {
				return services.Policy{}, fmt.Errorf("policy: delay_ticks: %w", err)
			}
			if n < 1 {
				return services.Policy{}, fmt.Errorf("policy: delay_ticks[%s] = %d: %w", sev, n, domain.ErrInvalidArgument)
			}
			p.DelayTicks[sev] = n
		}
	}

	if pf.MediumLossFraction != 0 {
		if pf.MediumLossFraction < 0 || pf.MediumLossFraction > 1 {
			return services.Policy{}, fmt.Errorf("policy: medium_loss_fraction %v outside [0,1]: %w", pf.MediumLossFraction, domain.ErrInvalidArgument)
		}
		p.MediumLossFraction = services.FixedLossFraction(pf.MediumLossFraction)
	}

	if pf.Convoy.Base != 0 || pf.Convoy.PerShipment != 0 || len(pf.Convoy.PerEscort) > 0 {
		perEscort := make(map[domain.EscortType]float64, len(pf.Convoy.PerEscort))
		for k, v := range pf.Convoy.PerEscort {
			et, err := domain.ParseEscortType(k)
			if err != nil {
				return services.Policy{}, fmt.Errorf("policy: convoy.per_escort: %w", err)
			}
			perEscort[et] = v
		}
		p.RiskReduction = services.LinearRiskReduction(pf.Convoy.Base, pf.Convoy.PerShipment, perEscort)
	}

	return p, nil
}
