package gcode

import (
	"context"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/store"
)

// ResolvedCoordinates is a bit's stored offset after request-time
// adjustment. It lives only for one generation call.
type ResolvedCoordinates struct {
	BitID uuid.UUID
	Name  string
	X     float64
	Y     float64
	Z     float64
}

// Resolver turns a bit identifier and request flags into machine coordinates.
type Resolver struct {
	store   store.BitCoordinateLookup
	profile MachineProfile
}

// NewResolver returns a Resolver reading from s.
func NewResolver(s store.BitCoordinateLookup, profile MachineProfile) *Resolver {
	return &Resolver{store: s, profile: profile}
}

// WorkpieceZeroZ lowers z by the plywood thickness when compute is set.
func WorkpieceZeroZ(z, thickness float64, compute bool) float64 {
	if compute {
		return z - thickness
	}
	return z
}

// WorkpieceHeightZ raises z by the thickness plus clearance when compute is set.
func WorkpieceHeightZ(z, thickness, clearance float64, compute bool) float64 {
	if compute {
		return z + thickness + clearance
	}
	return z
}

// Resolve returns the stored x and y of bitID and its z, lowered by thickness
// when computeWorkpieceZero is set. Errors wrap store.ErrBitNotFound or
// store.ErrStoreUnavailable.
func (r *Resolver) Resolve(ctx context.Context, bitID uuid.UUID, thickness float64, computeWorkpieceZero bool) (ResolvedCoordinates, error) {
	c, err := r.store.GetCoordinate(ctx, bitID)
	if err != nil {
		return ResolvedCoordinates{}, err
	}
	return ResolvedCoordinates{
		BitID: c.BitID,
		Name:  c.Name,
		X:     c.X,
		Y:     c.Y,
		Z:     WorkpieceZeroZ(c.Z, thickness, computeWorkpieceZero),
	}, nil
}

// ResolveHeight returns the stored x and y of bitID and its z, raised by
// thickness plus the profile clearance when computeWorkpieceHeight is set.
// The adjustment starts from the stored z; the workpiece-zero adjustment of
// Resolve is never applied here.
func (r *Resolver) ResolveHeight(ctx context.Context, bitID uuid.UUID, thickness float64, computeWorkpieceHeight bool) (ResolvedCoordinates, error) {
	c, err := r.store.GetCoordinate(ctx, bitID)
	if err != nil {
		return ResolvedCoordinates{}, err
	}
	return ResolvedCoordinates{
		BitID: c.BitID,
		Name:  c.Name,
		X:     c.X,
		Y:     c.Y,
		Z:     WorkpieceHeightZ(c.Z, thickness, r.profile.Clearance, computeWorkpieceHeight),
	}, nil
}
