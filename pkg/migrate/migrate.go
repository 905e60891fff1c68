// Package migrate copies the bit catalog and coordinates from one store
// backend into another.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/db"
	"github.com/japaniel/cncbits/pkg/store"
)

// Source is the read side of a migration.
type Source interface {
	ListBits(ctx context.Context) ([]db.RouterBit, error)
	ListCoordinates(ctx context.Context) ([]db.BitCoordinate, error)
}

// Destination receives the migrated rows in one Import call.
type Destination interface {
	Import(ctx context.Context, bits []db.RouterBit, coords []db.BitCoordinate) error
}

var (
	_ Source      = store.Store(nil)
	_ Destination = store.Store(nil)
)

// Summary reports what a migration copied.
type Summary struct {
	Bits        int
	Coordinates int
	// Skipped lists coordinates whose bit is absent from the source catalog
	// and not one of the built-in defaults.
	Skipped []uuid.UUID
}

// Migrator moves rows from a Source to a Destination.
type Migrator struct {
	from Source
	to   Destination

	// Logger receives one warning per skipped coordinate. nil means no logging.
	Logger *slog.Logger
}

// NewMigrator creates a migrator between two stores.
func NewMigrator(from Source, to Destination) *Migrator {
	return &Migrator{from: from, to: to}
}

// Run reads everything from the source and imports it into the destination.
// Existing destination rows with the same ids are overwritten; others are
// kept. A coordinate without a catalog entry borrows the default bit of the
// same id when there is one and is skipped otherwise.
func (m *Migrator) Run(ctx context.Context) (Summary, error) {
	bits, err := m.from.ListBits(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read bits: %w", err)
	}
	coords, err := m.from.ListCoordinates(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read coordinates: %w", err)
	}

	known := make(map[uuid.UUID]bool, len(bits))
	for _, b := range bits {
		known[b.ID] = true
	}
	defaults := make(map[uuid.UUID]db.RouterBit)
	for _, b := range db.DefaultBits() {
		defaults[b.ID] = b
	}

	var (
		summary Summary
		keep    = make([]db.BitCoordinate, 0, len(coords))
	)
	for _, c := range coords {
		if !known[c.BitID] {
			b, ok := defaults[c.BitID]
			if !ok {
				summary.Skipped = append(summary.Skipped, c.BitID)
				if m.Logger != nil {
					m.Logger.Warn("skipping coordinate without router bit", "bit_id", c.BitID.String(), "name", c.Name)
				}
				continue
			}
			bits = append(bits, b)
			known[b.ID] = true
		}
		keep = append(keep, c)
	}

	// Stable order keeps repeated migrations byte-identical for the CSV backend.
	sort.Slice(bits, func(i, j int) bool { return bits[i].ID.String() < bits[j].ID.String() })
	sort.Slice(keep, func(i, j int) bool { return keep[i].BitID.String() < keep[j].BitID.String() })

	if err := m.to.Import(ctx, bits, keep); err != nil {
		return Summary{}, fmt.Errorf("import: %w", err)
	}
	summary.Bits = len(bits)
	summary.Coordinates = len(keep)
	return summary, nil
}
