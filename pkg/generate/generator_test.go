package generate

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/db"
	"github.com/japaniel/cncbits/pkg/gcode"
	"github.com/japaniel/cncbits/pkg/paths"
	"github.com/japaniel/cncbits/pkg/sink"
	"github.com/japaniel/cncbits/pkg/store"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	straightBit = "550e8400-e29b-41d4-a716-446655440000"
	downcutBit  = "7f2c4a1b-8d5e-4c3f-9f6a-1d2b3e4f5a6b"
)

type fixture struct {
	gen    *Generator
	store  *store.SQLiteStore
	outDir string
	reg    *prometheus.Registry
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	s, err := store.NewSQLiteStoreFromDB(conn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.Seed(context.Background())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "Downloads")
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	g := NewGenerator(s, sink.NewFileSink(paths.Static{Data: t.TempDir(), Output: out}), gcode.DefaultProfile())
	g.Metrics = m
	g.Logger = slog.New(slog.NewTextHandler(logs, nil))
	return &fixture{gen: g, store: s, outDir: out, reg: reg, logs: logs}
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.outDir, name))
	require.NoError(t, err)
	return string(data)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestScenarioMoveToWorkpieceZero(t *testing.T) {
	f := newFixture(t)
	res, err := f.gen.MoveToWorkpieceZero(context.Background(), Request{
		BitID:                straightBit,
		PlywoodThickness:     0.75,
		ComputeWorkpieceZero: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "SET_ZERO_LOCATION.TAP", res.Filename)
	assert.Equal(t, filepath.Join(f.outDir, "SET_ZERO_LOCATION.TAP"), res.Path)
	assert.InDelta(t, 4.805, res.Resolved.Z, 1e-12)

	program := f.read(t, "SET_ZERO_LOCATION.TAP")
	assert.Equal(t, res.Program, program)
	assert.Contains(t, program, "G53 G0 X3.8186 Y3.5563 ; Rapid move to new X and Y in machine coordinates\n")
	assert.Contains(t, program, "G53 G0 Z4.805 ; Rapid move to new Z in machine coordinates\n")

	assert.Equal(t, 1.0, counterValue(t, f.reg, "cncbits_programs_generated_total", map[string]string{"operation": "workpiece-zero"}))
	assert.Contains(t, f.logs.String(), "generated G-code")
}

func TestScenarioSpoilboardZeroUsesFixedPoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coords, err := f.store.ListCoordinates(ctx)
	require.NoError(t, err)

	for _, c := range coords {
		_, err := f.gen.MoveToSpoilboardZero(ctx, Request{BitID: c.BitID.String(), PlywoodThickness: 0.75, ComputeWorkpieceZero: true})
		require.NoError(t, err)
		program := f.read(t, "MOVE_TO_SPOILBOARD_ZERO.TAP")
		assert.Contains(t, program, "G53 G0 X0.7234 Y1.0276")
		assert.NotContains(t, program, gcode.FormatCoord(c.X))
	}
}

func TestScenarioSetZMachineCoordinate(t *testing.T) {
	f := newFixture(t)
	res, err := f.gen.SetZMachineCoordinate(context.Background(), Request{
		BitID:                  downcutBit,
		PlywoodThickness:       0.75,
		ComputeWorkpieceHeight: true,
	})
	require.NoError(t, err)
	assert.InDelta(t, -1.2791, res.Resolved.Z, 1e-12)
	program := f.read(t, "SET_Z_MACHINE_COORDINATE.TAP")
	assert.Contains(t, program, "G0 X3 Y3 ; Rapid move to workpiece position\n")
	assert.Contains(t, program, "G53 G0 Z-1.2791 ; Rapid move to new Z in machine coordinates\n")
}

func TestSetZIgnoresWorkpieceZeroFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := Request{BitID: downcutBit, PlywoodThickness: 0.75, ComputeWorkpieceHeight: true}

	a, err := f.gen.SetZMachineCoordinate(ctx, base)
	require.NoError(t, err)
	base.ComputeWorkpieceZero = true
	b, err := f.gen.SetZMachineCoordinate(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, a.Program, b.Program)

	// and the workpiece-zero program ignores the height flag
	z1, err := f.gen.MoveToWorkpieceZero(ctx, Request{BitID: downcutBit, PlywoodThickness: 0.75, ComputeWorkpieceZero: true})
	require.NoError(t, err)
	z2, err := f.gen.MoveToWorkpieceZero(ctx, Request{BitID: downcutBit, PlywoodThickness: 0.75, ComputeWorkpieceZero: true, ComputeWorkpieceHeight: true})
	require.NoError(t, err)
	assert.Equal(t, z1.Program, z2.Program)
}

func TestScenarioUnknownBitWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unknown := uuid.NewString()

	for _, op := range gcode.Operations {
		_, err := f.gen.GenerateRequest(ctx, Request{Operation: op.String(), BitID: unknown, PlywoodThickness: 0.75})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBitNotFound)
		assert.ErrorIs(t, err, store.ErrBitNotFound)
		assert.True(t, strings.HasPrefix(err.Error(), "lookup: "), err.Error())
	}

	entries, err := os.ReadDir(f.outDir)
	if !errors.Is(err, os.ErrNotExist) {
		require.NoError(t, err)
	}
	assert.Empty(t, entries)
	assert.Equal(t, 1.0, counterValue(t, f.reg, "cncbits_generate_errors_total", map[string]string{"operation": "set-z", "phase": "lookup"}))
}

func TestUpdateThenResolveRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.MustParse(straightBit)
	require.NoError(t, f.store.PutCoordinate(ctx, id, 1.2345, 2.3456, -3.4567))

	res, err := f.gen.MoveToWorkpieceZero(ctx, Request{BitID: straightBit, PlywoodThickness: 0.75})
	require.NoError(t, err)
	assert.Equal(t, gcode.ResolvedCoordinates{BitID: id, Name: `Straight Bit 1/4"`, X: 1.2345, Y: 2.3456, Z: -3.4567}, res.Resolved)
	assert.Contains(t, res.Program, "G53 G0 X1.2345 Y2.3456 ;")
}

func TestGenerateIsDeterministic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{Operation: "workpiece-zero", BitID: straightBit, PlywoodThickness: 0.5, ComputeWorkpieceZero: true}
	first, err := f.gen.GenerateRequest(ctx, req)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := f.gen.GenerateRequest(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.Program, again.Program)
	}
}

type failingSink struct{}

func (failingSink) Write(string, string) (string, error) { return "", errors.New("disk full") }

func TestWriteFailure(t *testing.T) {
	f := newFixture(t)
	g := NewGenerator(f.store, failingSink{}, gcode.DefaultProfile())
	_, err := g.MoveToSpoilboardZero(context.Background(), Request{BitID: straightBit})
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, KindWriteFailed, KindOf(err))
	assert.Equal(t, "write: disk full", err.Error())
}

type brokenLookup struct{}

func (brokenLookup) GetCoordinate(context.Context, uuid.UUID) (db.BitCoordinate, error) {
	return db.BitCoordinate{}, store.ErrStoreUnavailable
}

func TestStoreFailure(t *testing.T) {
	g := NewGenerator(brokenLookup{}, failingSink{}, gcode.DefaultProfile())
	_, err := g.MoveToWorkpieceZero(context.Background(), Request{BitID: straightBit})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.True(t, strings.HasPrefix(err.Error(), "store: "), err.Error())
}

func TestMalformedRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := map[string]Request{
		"missing operation": {BitID: straightBit},
		"unknown operation": {Operation: "engrave", BitID: straightBit},
		"missing bit":       {Operation: "set-z"},
		"bad bit":           {Operation: "set-z", BitID: "not-a-uuid"},
		"negative":          {Operation: "set-z", BitID: straightBit, PlywoodThickness: -0.1},
	}
	for name, req := range cases {
		_, err := f.gen.GenerateRequest(ctx, req)
		assert.ErrorIs(t, err, ErrRequestMalformed, name)
		assert.True(t, strings.HasPrefix(err.Error(), "parse: "), "%s: %v", name, err)
	}
}

func TestRejectedOperationsShareOneMetricLabel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, op := range []string{"junk1", "junk2", "../etc"} {
		_, err := f.gen.GenerateRequest(ctx, Request{Operation: op, BitID: straightBit})
		require.ErrorIs(t, err, ErrRequestMalformed)
	}
	// a known operation rejected for another field keeps its own label
	_, err := f.gen.GenerateRequest(ctx, Request{Operation: "move_to_workpiece_zero"})
	require.ErrorIs(t, err, ErrRequestMalformed)

	assert.Equal(t, 3.0, counterValue(t, f.reg, "cncbits_generate_errors_total", map[string]string{"operation": "unknown", "phase": "parse"}))
	assert.Equal(t, 1.0, counterValue(t, f.reg, "cncbits_generate_errors_total", map[string]string{"operation": "workpiece-zero", "phase": "parse"}))

	families, err := f.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "operation" {
					assert.Contains(t, []string{"unknown", "workpiece-zero", "spoilboard-zero", "set-z"}, lp.GetValue())
				}
			}
		}
	}
}
