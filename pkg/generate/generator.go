// Package generate turns generation requests into G-code files: it validates
// the request, resolves the bit's coordinates, renders the program and hands
// it to the output sink.
package generate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/japaniel/cncbits/pkg/gcode"
	"github.com/japaniel/cncbits/pkg/sink"
	"github.com/japaniel/cncbits/pkg/store"
)

// Result describes a program that was written.
type Result struct {
	Operation gcode.Operation
	Filename  string
	Path      string
	Program   string
	Resolved  gcode.ResolvedCoordinates
}

// Generator runs generation requests. Each call is independent; a Generator
// holds no per-request state and may be shared.
type Generator struct {
	resolver *gcode.Resolver
	renderer *gcode.Renderer
	sink     sink.Sink

	// Logger receives one line per program written or request failed. nil means no logging.
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *Metrics
}

// NewGenerator wires a Generator over a coordinate lookup and an output sink.
func NewGenerator(lookup store.BitCoordinateLookup, out sink.Sink, profile gcode.MachineProfile) *Generator {
	return &Generator{
		resolver: gcode.NewResolver(lookup, profile),
		renderer: gcode.NewRenderer(profile),
		sink:     out,
	}
}

// MoveToWorkpieceZero writes SET_ZERO_LOCATION.TAP for req, ignoring req.Operation.
func (g *Generator) MoveToWorkpieceZero(ctx context.Context, req Request) (Result, error) {
	req.Operation = gcode.MoveToWorkpieceZero.String()
	return g.GenerateRequest(ctx, req)
}

// MoveToSpoilboardZero writes MOVE_TO_SPOILBOARD_ZERO.TAP for req, ignoring req.Operation.
func (g *Generator) MoveToSpoilboardZero(ctx context.Context, req Request) (Result, error) {
	req.Operation = gcode.MoveToSpoilboardZero.String()
	return g.GenerateRequest(ctx, req)
}

// SetZMachineCoordinate writes SET_Z_MACHINE_COORDINATE.TAP for req, ignoring req.Operation.
func (g *Generator) SetZMachineCoordinate(ctx context.Context, req Request) (Result, error) {
	req.Operation = gcode.SetZMachineCoordinate.String()
	return g.GenerateRequest(ctx, req)
}

// GenerateRequest validates req and runs Generate.
func (g *Generator) GenerateRequest(ctx context.Context, req Request) (Result, error) {
	vr, err := req.Validate()
	if err != nil {
		g.Metrics.observe(operationLabel(req.Operation), time.Now(), err)
		g.logger().Warn("rejected generate request", "operation", req.Operation, "error", err)
		return Result{}, err
	}
	return g.Generate(ctx, vr)
}

// Generate renders the program for req and writes it to the sink. Nothing
// is written when the lookup fails.
func (g *Generator) Generate(ctx context.Context, req ValidRequest) (res Result, err error) {
	started := time.Now()
	defer func() {
		g.Metrics.observe(req.Operation.String(), started, err)
		if err != nil {
			g.logger().Warn("generate failed", "operation", req.Operation.String(), "bit_id", req.BitID.String(), "error", err)
		}
	}()

	res, err = g.Render(ctx, req)
	if err != nil {
		return Result{}, err
	}

	path, err := g.sink.Write(res.Filename, res.Program)
	if err != nil {
		return Result{}, &Error{Kind: KindWriteFailed, BitID: req.BitID.String(), Err: err}
	}
	res.Path = path

	g.logger().Info("generated G-code",
		"operation", req.Operation.String(),
		"bit_id", req.BitID.String(),
		"bit", res.Resolved.Name,
		"file", path)
	return res, nil
}

// Render resolves and renders req without writing anything.
func (g *Generator) Render(ctx context.Context, req ValidRequest) (Result, error) {
	if !req.Operation.Valid() {
		return Result{}, malformed("unknown operation %d", int(req.Operation))
	}

	var (
		resolved gcode.ResolvedCoordinates
		err      error
	)
	switch req.Operation {
	case gcode.SetZMachineCoordinate:
		resolved, err = g.resolver.ResolveHeight(ctx, req.BitID, req.Thickness, req.ComputeWorkpieceHeight)
	default:
		resolved, err = g.resolver.Resolve(ctx, req.BitID, req.Thickness, req.ComputeWorkpieceZero)
	}
	if err != nil {
		return Result{}, lookupError(req, err)
	}

	return Result{
		Operation: req.Operation,
		Filename:  req.Operation.Filename(),
		Program:   g.renderer.Render(req.Operation, resolved),
		Resolved:  resolved,
	}, nil
}

// operationLabel bounds the metric label to the known operation names; any
// other caller-supplied string becomes "unknown".
func operationLabel(raw string) string {
	op, err := gcode.ParseOperation(raw)
	if err != nil {
		return gcode.Operation(0).String()
	}
	return op.String()
}

func lookupError(req ValidRequest, err error) *Error {
	kind := KindStoreUnavailable
	if errors.Is(err, store.ErrBitNotFound) {
		kind = KindBitNotFound
	}
	return &Error{Kind: kind, BitID: req.BitID.String(), Err: err}
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.Logger
}
