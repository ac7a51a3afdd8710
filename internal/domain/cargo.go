package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// One line of cargo. Weight, Volume and Value are per unit; Quantity is what
// remains on the shipment.
type CargoItem struct {
	ItemID   string          `json:"item_id"`
	Quantity int             `json:"quantity"`
	Weight   float64         `json:"weight"`
	Volume   float64         `json:"volume"`
	Value    decimal.Decimal `json:"value"`
	Fragile  bool            `json:"fragile"`
}

// Validate checks a single cargo line.
func (c CargoItem) Validate() error {
	if strings.TrimSpace(c.ItemID) == "" {
		return fmt.Errorf("cargo: item id must not be empty: %w", ErrInvalidCargo)
	}
	if c.Quantity < 0 || c.Weight < 0 || c.Volume < 0 || c.Value.IsNegative() {
		return fmt.Errorf("cargo %q: quantity, weight, volume and value must not be negative: %w", c.ItemID, ErrInvalidCargo)
	}
	return nil
}

func TotalWeight(items []CargoItem) float64 {
	total := 0.0
	for _, c := range items {
		total += c.Weight * float64(c.Quantity)
	}
	return total
}

func TotalVolume(items []CargoItem) float64 {
	total := 0.0
	for _, c := range items {
		total += c.Volume * float64(c.Quantity)
	}
	return total
}

// TotalValue sums quantity × unit value.
func TotalValue(items []CargoItem) decimal.Decimal {
	total := decimal.Zero
	for _, c := range items {
		total = total.Add(c.Value.Mul(decimal.NewFromInt(int64(c.Quantity))))
	}
	return total
}

// CheckCapacity fails with ErrInvalidCargo when the cargo does not fit the vehicle.
func CheckCapacity(items []CargoItem, v VehicleType) error {
	seen := make(map[string]struct{}, len(items))
	for _, c := range items {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := seen[c.ItemID]; dup {
			return fmt.Errorf("cargo %q: duplicate item id: %w", c.ItemID, ErrInvalidCargo)
		}
		seen[c.ItemID] = struct{}{}
	}
	if w := TotalWeight(items); w > v.CapacityWeight {
		return fmt.Errorf("cargo weight %.2f exceeds %q capacity %.2f: %w", w, v.ID, v.CapacityWeight, ErrInvalidCargo)
	}
	if vol := TotalVolume(items); vol > v.CapacityVolume {
		return fmt.Errorf("cargo volume %.2f exceeds %q capacity %.2f: %w", vol, v.ID, v.CapacityVolume, ErrInvalidCargo)
	}
	return nil
}
