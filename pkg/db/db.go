package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations.sql
var migrationsSQL string

// Open opens the SQLite database at path. Use ":memory:" for a throwaway store;
// callers doing so should keep a single connection open.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// SeedDefaults inserts the default bits and their coordinates when the
// router_bits table is empty. It reports whether anything was inserted.
func SeedDefaults(ctx context.Context, db *sql.DB) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM router_bits`).Scan(&count); err != nil {
		return false, fmt.Errorf("count router bits: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	err := WithTx(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		for _, b := range DefaultBits() {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO router_bits (id, name, type, diameter, description) VALUES (?, ?, ?, ?, ?)`,
				b.ID.String(), b.Name, b.Type, b.Diameter, b.Description,
			); err != nil {
				return fmt.Errorf("seed bit %s: %w", b.ID, err)
			}
		}
		for _, c := range DefaultCoordinates() {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO bit_coordinates (bit_id, name, x, y, z) VALUES (?, ?, ?, ?, ?)`,
				c.BitID.String(), c.Name, c.X, c.Y, c.Z,
			); err != nil {
				return fmt.Errorf("seed coordinate %s: %w", c.BitID, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
