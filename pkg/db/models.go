package db

import "github.com/google/uuid"

// RouterBit is a catalog entry for a physical router bit.
type RouterBit struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Diameter    float64   `json:"diameter"` // inches
	Description string    `json:"description"`
}

// BitCoordinate is the machine-space offset recorded for a bit. Name is a
// denormalized copy of the bit's display name.
type BitCoordinate struct {
	BitID uuid.UUID `json:"bit_id"`
	Name  string    `json:"name"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Z     float64   `json:"z"`
}

// DefaultBits returns the bits installed on first run.
func DefaultBits() []RouterBit {
	return []RouterBit{
		{uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"), `Straight Bit 1/4"`, "Straight", 0.25, "General purpose straight cutting bit"},
		{uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), "V-Groove 60°", "V-Groove", 0.5, "For V-carving and chamfering"},
		{uuid.MustParse("550e8400-e29b-41d4-a716-446655440001"), `Ball Nose 1/8"`, "Ball Nose", 0.125, "For 3D carving and surfacing"},
		{uuid.MustParse("7f2c4a1b-8d5e-4c3f-9f6a-1d2b3e4f5a6b"), `Downcut Spiral 3/8"`, "Downcut Spiral", 0.375, "Downcut spiral for clean top surface and reduced tearout"},
		{uuid.MustParse("9e8d7c6b-5a4f-3e2d-1c0b-9a8b7c6d5e4f"), `Compression 3/8"`, "Compression", 0.375, "Compression spiral for clean cuts on both top and bottom surfaces"},
	}
}

// DefaultCoordinates returns the calibrated offsets matching DefaultBits.
func DefaultCoordinates() []BitCoordinate {
	return []BitCoordinate{
		{uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"), `Straight Bit 1/4"`, 3.8186, 3.5563, 5.555},
		{uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), "V-Groove 60°", 2.6744, 2.9678, -7.3963},
		{uuid.MustParse("550e8400-e29b-41d4-a716-446655440001"), `Ball Nose 1/8"`, 4.0186, 3.7563, -4.2291},
		{uuid.MustParse("7f2c4a1b-8d5e-4c3f-9f6a-1d2b3e4f5a6b"), `Downcut Spiral 3/8"`, 3.8186, 3.5563, -4.0291},
		{uuid.MustParse("9e8d7c6b-5a4f-3e2d-1c0b-9a8b7c6d5e4f"), `Compression 3/8"`, 2.6744, 2.9678, -6.5069},
	}
}
