package simulator

import (
	"math"
	"sync"
	"time"
)

// Battery models a simple storage battery with charge/discharge limits.
// Power follows the consumption convention: positive charges, negative
// discharges.
type Battery struct {
	CapacityKWh     float64 // total capacity
	ChargeRateKW    float64 // maximum charging power
	DischargeRateKW float64 // maximum discharging power

	mu  sync.Mutex
	soc float64 // state of charge [0,1]
}

// NewBattery creates a battery at the given state of charge.
func NewBattery(capacityKWh, chargeKW, dischargeKW, soc float64) *Battery {
	return &Battery{
		CapacityKWh:     capacityKWh,
		ChargeRateKW:    chargeKW,
		DischargeRateKW: dischargeKW,
		soc:             soc,
	}
}

// ApplyPower updates the SoC according to the requested power and duration
// and returns the actual power applied after enforcing limits.
func (b *Battery) ApplyPower(powerKW float64, dt time.Duration) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	hours := dt.Hours()
	if hours <= 0 {
		return 0
	}

	actual := powerKW
	if powerKW > 0 { // charge
		if powerKW > b.ChargeRateKW {
			actual = b.ChargeRateKW
		}
		avail := (1 - b.soc) * b.CapacityKWh
		needed := actual * hours
		if needed > avail {
			needed = avail
			actual = needed / hours
		}
		b.soc += needed / b.CapacityKWh
	} else if powerKW < 0 { // discharge
		p := math.Abs(powerKW)
		if p > b.DischargeRateKW {
			p = b.DischargeRateKW
		}
		stored := b.soc * b.CapacityKWh
		needed := p * hours
		if needed > stored {
			needed = stored
			p = needed / hours
		}
		b.soc -= needed / b.CapacityKWh
		actual = -p
	}

	if b.soc < 0 {
		b.soc = 0
	}
	if b.soc > 1 {
		b.soc = 1
	}
	return actual
}

// SoC returns the current state of charge.
func (b *Battery) SoC() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.soc
}
