package gcode

import (
	"fmt"
	"math"
)

// Fixed machine values. All lengths are inches.
const (
	// DefaultSpoilboardX and DefaultSpoilboardY locate the spoilboard
	// reference in the machine frame. They are a calibration of the physical
	// machine, not derived from any bit.
	DefaultSpoilboardX = 0.7234
	DefaultSpoilboardY = 1.0276

	// DefaultClearance is added above the workpiece surface before a
	// height-based Z move.
	DefaultClearance = 2.0

	// DefaultReferenceX and DefaultReferenceY are the workpiece-frame point
	// visited before setting the Z machine coordinate.
	DefaultReferenceX = 3.0
	DefaultReferenceY = 3.0
)

// MachineProfile carries the machine-specific constants used while resolving
// and rendering.
type MachineProfile struct {
	SpoilboardX float64
	SpoilboardY float64
	Clearance   float64
	ReferenceX  float64
	ReferenceY  float64
}

// DefaultProfile returns the calibration of the reference machine.
func DefaultProfile() MachineProfile {
	return MachineProfile{
		SpoilboardX: DefaultSpoilboardX,
		SpoilboardY: DefaultSpoilboardY,
		Clearance:   DefaultClearance,
		ReferenceX:  DefaultReferenceX,
		ReferenceY:  DefaultReferenceY,
	}
}

// Validate rejects non-finite values and a negative clearance.
func (p MachineProfile) Validate() error {
	fields := map[string]float64{
		"spoilboard_x": p.SpoilboardX,
		"spoilboard_y": p.SpoilboardY,
		"clearance":    p.Clearance,
		"reference_x":  p.ReferenceX,
		"reference_y":  p.ReferenceY,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("machine.%s must be a finite number", name)
		}
	}
	if p.Clearance < 0 {
		return fmt.Errorf("machine.clearance must not be negative, got %v", p.Clearance)
	}
	return nil
}
