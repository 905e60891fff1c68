package generate

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/gcode"
)

// Request is a generation request as received from a caller. It is
// validated into a ValidRequest before anything else looks at it.
type Request struct {
	Operation string `json:"operation,omitempty"`
	BitID     string `json:"bit_id,omitempty"`
	// RouterBit carries the bit when the caller sends the whole catalog
	// entry instead of bit_id. Only its id is used.
	RouterBit *struct {
		ID string `json:"id"`
	} `json:"router_bit,omitempty"`
	PlywoodThickness       float64 `json:"plywood_thickness"`
	ComputeWorkpieceZero   bool    `json:"calculate_workpiece_zero"`
	ComputeWorkpieceHeight bool    `json:"calculate_workpiece_height"`
}

// ValidRequest is a checked Request.
type ValidRequest struct {
	Operation              gcode.Operation
	BitID                  uuid.UUID
	Thickness              float64 // inches, >= 0
	ComputeWorkpieceZero   bool
	ComputeWorkpieceHeight bool
}

// ParseRequest decodes a JSON payload. Unknown fields are ignored.
func ParseRequest(data []byte) (Request, error) {
	var r Request
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&r); err != nil {
		return Request{}, malformed("decode request: %v", err)
	}
	return r, nil
}

// Validate checks r and converts it. Failures are KindRequestMalformed.
func (r Request) Validate() (ValidRequest, error) {
	op, err := gcode.ParseOperation(r.Operation)
	if err != nil {
		return ValidRequest{}, malformed("%v", err)
	}

	raw := strings.TrimSpace(r.BitID)
	if raw == "" && r.RouterBit != nil {
		raw = strings.TrimSpace(r.RouterBit.ID)
	}
	if raw == "" {
		return ValidRequest{}, malformed("bit_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return ValidRequest{}, &Error{Kind: KindRequestMalformed, BitID: raw, Err: err}
	}

	t := r.PlywoodThickness
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return ValidRequest{}, malformed("plywood_thickness must be a non-negative number, got %v", t)
	}

	return ValidRequest{
		Operation:              op,
		BitID:                  id,
		Thickness:              t,
		ComputeWorkpieceZero:   r.ComputeWorkpieceZero,
		ComputeWorkpieceHeight: r.ComputeWorkpieceHeight,
	}, nil
}
