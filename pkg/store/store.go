// Package store persists the bit catalog and the per-bit machine coordinates.
// Two backends implement Store: a SQLite database and a pair of CSV files.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/db"
	"github.com/japaniel/cncbits/pkg/paths"
)

var (
	// ErrBitNotFound means no coordinate record exists for the identifier.
	ErrBitNotFound = errors.New("bit not found")
	// ErrStoreUnavailable means the backing store could not be opened, read or written.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidBit wraps validation failures on bit creation.
	ErrInvalidBit = errors.New("invalid router bit")
	// ErrInvalidCoordinate wraps rejected coordinate values such as NaN.
	ErrInvalidCoordinate = errors.New("invalid bit coordinate")
	// ErrDuplicateBit is returned when creating a bit whose id is already taken.
	ErrDuplicateBit = db.ErrDuplicateBit
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendCSV    = "csv"
)

// BitCoordinateLookup is the read side the coordinate resolver needs.
type BitCoordinateLookup interface {
	GetCoordinate(ctx context.Context, bitID uuid.UUID) (db.BitCoordinate, error)
}

// BitCoordinateStore reads and updates coordinate records.
type BitCoordinateStore interface {
	BitCoordinateLookup
	// PutCoordinate overwrites x, y and z for an existing bit.
	PutCoordinate(ctx context.Context, bitID uuid.UUID, x, y, z float64) error
	ListCoordinates(ctx context.Context) ([]db.BitCoordinate, error)
}

// BitCatalog creates and lists router bits.
type BitCatalog interface {
	// CreateBit stores b together with a zeroed coordinate record. A nil ID is
	// replaced by a freshly generated one; the stored bit is returned.
	CreateBit(ctx context.Context, b db.RouterBit) (db.RouterBit, error)
	ListBits(ctx context.Context) ([]db.RouterBit, error)
}

// Store is the full persistence contract shared by both backends.
type Store interface {
	BitCoordinateStore
	BitCatalog
	// Seed installs the default bits on first run and reports whether it did.
	Seed(ctx context.Context) (bool, error)
	// Import upserts bits and coordinates, e.g. when moving between backends.
	Import(ctx context.Context, bits []db.RouterBit, coords []db.BitCoordinate) error
	Close() error
}

// Options configures Open.
type Options struct {
	Backend  string
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Open creates the backend named in opts inside the provider's data directory.
func Open(p paths.Provider, opts Options) (Store, error) {
	dir, err := paths.EnsureDir(p.DataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	var s Store
	switch strings.ToLower(opts.Backend) {
	case "", BackendSQLite:
		s, err = NewSQLiteStore(dir)
	case BackendCSV:
		cs := NewCSVStore(dir)
		cs.Logger = opts.Logger
		s = cs
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if opts.CacheTTL > 0 {
		s = NewCachedStore(s, opts.CacheTTL)
	}
	return s, nil
}

// newBitID fills in a v4 identifier when b has none.
func newBitID(b db.RouterBit) db.RouterBit {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return b
}

// checkCoordinates applies db.ValidateCoordinate to every record.
func checkCoordinates(coords ...db.BitCoordinate) error {
	for _, c := range coords {
		if err := db.ValidateCoordinate(c.X, c.Y, c.Z); err != nil {
			return fmt.Errorf("%w: bit %s: %w", ErrInvalidCoordinate, c.BitID, err)
		}
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func notFound(bitID uuid.UUID) error {
	return fmt.Errorf("no coordinates for bit %s: %w", bitID, ErrBitNotFound)
}
