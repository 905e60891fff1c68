// Package gcode resolves per-bit machine coordinates and renders them into
// the fixed G-code programs the router is driven with.
package gcode

import (
	"fmt"
	"strings"
)

// Operation enumerates the programs that can be generated.
type Operation int

const (
	MoveToWorkpieceZero   Operation = iota + 1 // rapid to the bit's workpiece zero
	MoveToSpoilboardZero                       // rapid to the fixed spoilboard reference
	SetZMachineCoordinate                      // rapid to the reference point, then to Z
)

// Operations lists every supported operation in display order.
var Operations = []Operation{MoveToWorkpieceZero, MoveToSpoilboardZero, SetZMachineCoordinate}

func (op Operation) String() string {
	switch op {
	case MoveToWorkpieceZero:
		return "workpiece-zero"
	case MoveToSpoilboardZero:
		return "spoilboard-zero"
	case SetZMachineCoordinate:
		return "set-z"
	default:
		return "unknown"
	}
}

// Filename is the fixed output file for the operation. Any previous file of
// the same name is overwritten.
func (op Operation) Filename() string {
	switch op {
	case MoveToWorkpieceZero:
		return "SET_ZERO_LOCATION.TAP"
	case MoveToSpoilboardZero:
		return "MOVE_TO_SPOILBOARD_ZERO.TAP"
	case SetZMachineCoordinate:
		return "SET_Z_MACHINE_COORDINATE.TAP"
	default:
		return ""
	}
}

// Valid reports whether op is one of the defined operations.
func (op Operation) Valid() bool {
	return op >= MoveToWorkpieceZero && op <= SetZMachineCoordinate
}

// ParseOperation accepts the String form, case-insensitively, plus the
// snake_case command names used by the desktop client
// (move_to_workpiece_zero, move_to_spoilboard_zero, set_z_machine_coordinate).
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "workpiece-zero", "move_to_workpiece_zero":
		return MoveToWorkpieceZero, nil
	case "spoilboard-zero", "move_to_spoilboard_zero":
		return MoveToSpoilboardZero, nil
	case "set-z", "set_z_machine_coordinate":
		return SetZMachineCoordinate, nil
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}
