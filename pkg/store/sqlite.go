package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/db"
)

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "router_bits.db"

// SQLiteStore keeps bits and coordinates in a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database in dir and runs migrations.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	conn, err := db.Open(filepath.Join(dir, DatabaseFile))
	if err != nil {
		return nil, unavailable("open database", err)
	}
	s, err := NewSQLiteStoreFromDB(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB wraps an open connection, running migrations on it.
func NewSQLiteStoreFromDB(conn *sql.DB) (*SQLiteStore, error) {
	if err := db.InitDB(conn); err != nil {
		return nil, unavailable("migrate database", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) GetCoordinate(ctx context.Context, bitID uuid.UUID) (db.BitCoordinate, error) {
	c, err := db.GetBitCoordinate(ctx, s.conn, bitID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.BitCoordinate{}, notFound(bitID)
	}
	if err != nil {
		return db.BitCoordinate{}, unavailable("read coordinate", err)
	}
	return c, nil
}

func (s *SQLiteStore) PutCoordinate(ctx context.Context, bitID uuid.UUID, x, y, z float64) error {
	if err := checkCoordinates(db.BitCoordinate{BitID: bitID, X: x, Y: y, Z: z}); err != nil {
		return err
	}
	err := db.UpdateBitCoordinate(ctx, s.conn, bitID, x, y, z)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(bitID)
	}
	if err != nil {
		return unavailable("write coordinate", err)
	}
	return nil
}

func (s *SQLiteStore) ListCoordinates(ctx context.Context) ([]db.BitCoordinate, error) {
	out, err := db.GetBitCoordinates(ctx, s.conn)
	if err != nil {
		return nil, unavailable("list coordinates", err)
	}
	return out, nil
}

func (s *SQLiteStore) CreateBit(ctx context.Context, b db.RouterBit) (db.RouterBit, error) {
	b = newBitID(b)
	if err := db.ValidateRouterBit(b); err != nil {
		return db.RouterBit{}, fmt.Errorf("%w: %w", ErrInvalidBit, err)
	}
	err := db.WithTx(ctx, s.conn,
		func(ctx context.Context, tx *sql.Tx) error { return db.InsertRouterBit(ctx, tx, b) },
		func(ctx context.Context, tx *sql.Tx) error {
			return db.UpsertBitCoordinate(ctx, tx, db.BitCoordinate{BitID: b.ID, Name: b.Name})
		},
	)
	if errors.Is(err, db.ErrDuplicateBit) {
		return db.RouterBit{}, err
	}
	if err != nil {
		return db.RouterBit{}, unavailable("create bit", err)
	}
	return b, nil
}

func (s *SQLiteStore) ListBits(ctx context.Context) ([]db.RouterBit, error) {
	out, err := db.GetRouterBits(ctx, s.conn)
	if err != nil {
		return nil, unavailable("list bits", err)
	}
	return out, nil
}

func (s *SQLiteStore) Seed(ctx context.Context) (bool, error) {
	seeded, err := db.SeedDefaults(ctx, s.conn)
	if err != nil {
		return false, unavailable("seed database", err)
	}
	return seeded, nil
}

func (s *SQLiteStore) Import(ctx context.Context, bits []db.RouterBit, coords []db.BitCoordinate) error {
	if err := checkCoordinates(coords...); err != nil {
		return err
	}
	fns := make([]db.WriteFunc, 0, len(bits)+len(coords))
	for _, b := range bits {
		b := b
		fns = append(fns, func(ctx context.Context, tx *sql.Tx) error { return db.UpsertRouterBit(ctx, tx, b) })
	}
	for _, c := range coords {
		c := c
		fns = append(fns, func(ctx context.Context, tx *sql.Tx) error { return db.UpsertBitCoordinate(ctx, tx, c) })
	}
	if err := db.WithTx(ctx, s.conn, fns...); err != nil {
		return unavailable("import", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
