package gcode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoordinatePrecision is the number of decimal places coordinates are
// rounded to in generated programs, matching the precision of calibrated
// offsets.
const CoordinatePrecision = 4

const (
	header     = "G20 ; Set machine to inch mode\nG90 ; Set to absolute positioning\n\n"
	endProgram = "M30 ; End of program\n"
)

// Renderer produces complete G-code programs from resolved coordinates.
type Renderer struct {
	profile MachineProfile
}

// NewRenderer returns a Renderer using the constants in profile.
func NewRenderer(profile MachineProfile) *Renderer {
	return &Renderer{profile: profile}
}

// FormatCoord renders v rounded to CoordinatePrecision decimals without
// trailing zeros: 4.805, -1.2791, 3. Negative zero renders as 0.
func FormatCoord(v float64) string {
	scale := math.Pow10(CoordinatePrecision)
	r := math.Round(v*scale) / scale
	if r == 0 {
		r = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Render returns the program for op. For a valid op the output depends only
// on its arguments. An invalid op panics; generate.Generator.Render is the
// entry point that validates the operation first.
func (r *Renderer) Render(op Operation, c ResolvedCoordinates) string {
	var b strings.Builder
	switch op {
	case MoveToWorkpieceZero:
		x, y, z := FormatCoord(c.X), FormatCoord(c.Y), FormatCoord(c.Z)
		b.WriteString("( Move to specified X, Y, and Z coordinates in machine coordinates )\n\n")
		b.WriteString(header)
		fmt.Fprintf(&b, "( Move to X%s, Y%s, Z%s in machine coordinates )\n", x, y, z)
		fmt.Fprintf(&b, "G53 G0 X%s Y%s ; Rapid move to new X and Y in machine coordinates\n", x, y)
		fmt.Fprintf(&b, "G53 G0 Z%s ; Rapid move to new Z in machine coordinates\n\n", z)

	case MoveToSpoilboardZero:
		b.WriteString("( Move to spoilboard zero position )\n\n")
		b.WriteString(header)
		b.WriteString("( Move to machine coordinates )\n")
		fmt.Fprintf(&b, "G53 G0 X%s Y%s ; Rapid move to machine coordinates\n\n",
			FormatCoord(r.profile.SpoilboardX), FormatCoord(r.profile.SpoilboardY))

	case SetZMachineCoordinate:
		x, y, z := FormatCoord(r.profile.ReferenceX), FormatCoord(r.profile.ReferenceY), FormatCoord(c.Z)
		b.WriteString("( Move to workpiece position and then Z machine coordinate )\n\n")
		b.WriteString(header)
		fmt.Fprintf(&b, "( Move to workpiece X=%s, Y=%s )\n", x, y)
		fmt.Fprintf(&b, "G0 X%s Y%s ; Rapid move to workpiece position\n\n", x, y)
		fmt.Fprintf(&b, "( Move to Z%s in machine coordinates )\n", z)
		fmt.Fprintf(&b, "G53 G0 Z%s ; Rapid move to new Z in machine coordinates\n\n", z)

	default:
		panic(fmt.Sprintf("gcode: render called with invalid operation %d", int(op)))
	}
	b.WriteString(endProgram)
	return b.String()
}
