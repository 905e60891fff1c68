package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// ErrDuplicateBit is returned when a bit id is inserted twice.
var ErrDuplicateBit = errors.New("router bit already exists")

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// ValidateRouterBit checks the fields a caller must supply when creating a bit.
func ValidateRouterBit(b RouterBit) error {
	if b.ID == uuid.Nil {
		return fmt.Errorf("id must be set")
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("name must be non-empty")
	}
	if strings.TrimSpace(b.Type) == "" {
		return fmt.Errorf("type must be non-empty")
	}
	if !(b.Diameter > 0) {
		return fmt.Errorf("diameter must be positive, got %v", b.Diameter)
	}
	return nil
}

// ValidateCoordinate rejects NaN and infinite offsets, which would otherwise
// be rendered verbatim into machine programs.
func ValidateCoordinate(x, y, z float64) error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"x", x}, {"y", y}, {"z", z}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", f.name, f.v)
		}
	}
	return nil
}

// InsertRouterBit inserts a new bit. A second insert of the same id fails with ErrDuplicateBit.
func InsertRouterBit(ctx context.Context, db DBExecutor, b RouterBit) error {
	if err := ValidateRouterBit(b); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO router_bits (id, name, type, diameter, description) VALUES (?, ?, ?, ?, ?)`,
		b.ID.String(), strings.TrimSpace(b.Name), strings.TrimSpace(b.Type), b.Diameter, b.Description,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("insert bit %s: %w", b.ID, ErrDuplicateBit)
		}
		return fmt.Errorf("insert bit %s: %w", b.ID, err)
	}
	return nil
}

// UpsertRouterBit inserts a bit or overwrites the stored fields of an existing one.
func UpsertRouterBit(ctx context.Context, db DBExecutor, b RouterBit) error {
	if err := ValidateRouterBit(b); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO router_bits (id, name, type, diameter, description)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   type = excluded.type,
		   diameter = excluded.diameter,
		   description = excluded.description`,
		b.ID.String(), b.Name, b.Type, b.Diameter, b.Description,
	)
	if err != nil {
		return fmt.Errorf("upsert bit %s: %w", b.ID, err)
	}
	return nil
}

// GetRouterBits returns every bit in the catalog ordered by name.
func GetRouterBits(ctx context.Context, db DBExecutor) ([]RouterBit, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, type, diameter, description FROM router_bits ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RouterBit
	for rows.Next() {
		var b RouterBit
		var id string
		var desc sql.NullString
		if err := rows.Scan(&id, &b.Name, &b.Type, &b.Diameter, &desc); err != nil {
			return nil, err
		}
		if b.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("router_bits row has malformed id %q: %w", id, err)
		}
		if desc.Valid {
			b.Description = desc.String
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBitCoordinate returns the coordinate record for bitID.
// A missing record is reported as sql.ErrNoRows.
func GetBitCoordinate(ctx context.Context, db DBExecutor, bitID uuid.UUID) (BitCoordinate, error) {
	c := BitCoordinate{BitID: bitID}
	err := db.QueryRowContext(ctx,
		`SELECT name, x, y, z FROM bit_coordinates WHERE bit_id = ?`, bitID.String(),
	).Scan(&c.Name, &c.X, &c.Y, &c.Z)
	if err != nil {
		return BitCoordinate{}, err
	}
	return c, nil
}

// GetBitCoordinates returns all coordinate records ordered by name.
func GetBitCoordinates(ctx context.Context, db DBExecutor) ([]BitCoordinate, error) {
	rows, err := db.QueryContext(ctx, `SELECT bit_id, name, x, y, z FROM bit_coordinates ORDER BY name, bit_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BitCoordinate
	for rows.Next() {
		var c BitCoordinate
		var id string
		if err := rows.Scan(&id, &c.Name, &c.X, &c.Y, &c.Z); err != nil {
			return nil, err
		}
		if c.BitID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bit_coordinates row has malformed bit_id %q: %w", id, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertBitCoordinate inserts or replaces the coordinate record for c.BitID.
// The bit itself must already exist.
func UpsertBitCoordinate(ctx context.Context, db DBExecutor, c BitCoordinate) error {
	if err := ValidateCoordinate(c.X, c.Y, c.Z); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO bit_coordinates (bit_id, name, x, y, z)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(bit_id) DO UPDATE SET
		   name = excluded.name,
		   x = excluded.x,
		   y = excluded.y,
		   z = excluded.z`,
		c.BitID.String(), c.Name, c.X, c.Y, c.Z,
	)
	if err != nil {
		return fmt.Errorf("upsert coordinate %s: %w", c.BitID, err)
	}
	return nil
}

// UpdateBitCoordinate overwrites x, y and z of an existing coordinate record.
// sql.ErrNoRows is returned when bitID has no record.
func UpdateBitCoordinate(ctx context.Context, db DBExecutor, bitID uuid.UUID, x, y, z float64) error {
	if err := ValidateCoordinate(x, y, z); err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE bit_coordinates SET x = ?, y = ?, z = ? WHERE bit_id = ?`,
		x, y, z, bitID.String(),
	)
	if err != nil {
		return fmt.Errorf("update coordinate %s: %w", bitID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
