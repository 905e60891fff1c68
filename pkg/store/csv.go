package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/db"
)

// File names used by CSVStore inside its directory.
const (
	CoordinatesFile = "bit_coordinates.csv"
	BitsFile        = "router_bits.csv"
)

var (
	coordinateHeader = []string{"bit_id", "name", "x", "y", "z"}
	bitHeader        = []string{"id", "name", "type", "diameter", "description"}
)

// CSVStore keeps bits and coordinates in two comma-separated files with a
// header row. Every mutation rewrites the affected file through a temp file
// and rename.
type CSVStore struct {
	dir string
	mu  sync.RWMutex
	// writeFile replaces a whole CSV file.
	writeFile func(path string, header []string, records [][]string) error

	// Logger receives informational messages. nil means no logging.
	Logger *slog.Logger
}

// NewCSVStore returns a store rooted at dir. Nothing is read or created until first use.
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir, writeFile: writeCSV}
}

func (s *CSVStore) coordinatesPath() string { return filepath.Join(s.dir, CoordinatesFile) }
func (s *CSVStore) bitsPath() string        { return filepath.Join(s.dir, BitsFile) }

func (s *CSVStore) GetCoordinate(ctx context.Context, bitID uuid.UUID) (db.BitCoordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coords, err := s.readCoordinates()
	if err != nil {
		return db.BitCoordinate{}, err
	}
	for _, c := range coords {
		if c.BitID == bitID {
			return c, nil
		}
	}
	return db.BitCoordinate{}, notFound(bitID)
}

func (s *CSVStore) PutCoordinate(ctx context.Context, bitID uuid.UUID, x, y, z float64) error {
	if err := checkCoordinates(db.BitCoordinate{BitID: bitID, X: x, Y: y, Z: z}); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coords, err := s.readCoordinates()
	if err != nil {
		return err
	}
	found := false
	for i := range coords {
		if coords[i].BitID == bitID {
			coords[i].X, coords[i].Y, coords[i].Z = x, y, z
			found = true
			break
		}
	}
	if !found {
		return notFound(bitID)
	}
	return s.writeCoordinates(coords)
}

func (s *CSVStore) ListCoordinates(ctx context.Context) ([]db.BitCoordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readCoordinates()
}

func (s *CSVStore) CreateBit(ctx context.Context, b db.RouterBit) (db.RouterBit, error) {
	b = newBitID(b)
	if err := db.ValidateRouterBit(b); err != nil {
		return db.RouterBit{}, fmt.Errorf("%w: %w", ErrInvalidBit, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	bits, err := s.readBits()
	if err != nil {
		return db.RouterBit{}, err
	}
	for _, existing := range bits {
		if existing.ID == b.ID {
			return db.RouterBit{}, fmt.Errorf("create bit %s: %w", b.ID, ErrDuplicateBit)
		}
	}
	coords, err := s.readCoordinatesOrEmpty()
	if err != nil {
		return db.RouterBit{}, err
	}

	if err := s.writeBits(append(bits[:len(bits):len(bits)], b)); err != nil {
		return db.RouterBit{}, err
	}
	if err := s.writeCoordinates(append(coords, db.BitCoordinate{BitID: b.ID, Name: b.Name})); err != nil {
		// put the catalog back so no bit is left without a coordinate record
		if rerr := s.writeBits(bits); rerr != nil && s.Logger != nil {
			s.Logger.Error("failed to restore router bits file", "path", s.bitsPath(), "error", rerr)
		}
		return db.RouterBit{}, err
	}
	return b, nil
}

func (s *CSVStore) ListBits(ctx context.Context) ([]db.RouterBit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readBits()
}

// Seed writes the default files unless the coordinate file already exists,
// in which case it is a logged no-op.
func (s *CSVStore) Seed(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.coordinatesPath()); err == nil {
		if s.Logger != nil {
			s.Logger.Info("bit coordinates file already exists", "path", s.coordinatesPath())
		}
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, unavailable("stat coordinates file", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return false, unavailable("create data directory", err)
	}
	if _, err := os.Stat(s.bitsPath()); os.IsNotExist(err) {
		if err := s.writeBits(db.DefaultBits()); err != nil {
			return false, err
		}
	}
	if err := s.writeCoordinates(db.DefaultCoordinates()); err != nil {
		return false, err
	}
	if s.Logger != nil {
		s.Logger.Info("created bit coordinates file", "path", s.coordinatesPath())
	}
	return true, nil
}

func (s *CSVStore) Import(ctx context.Context, bits []db.RouterBit, coords []db.BitCoordinate) error {
	if err := checkCoordinates(coords...); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existingBits, err := s.readBits()
	if err != nil {
		return err
	}
	existingCoords, err := s.readCoordinatesOrEmpty()
	if err != nil {
		return err
	}

	bitIdx := make(map[uuid.UUID]int, len(existingBits))
	for i, b := range existingBits {
		bitIdx[b.ID] = i
	}
	for _, b := range bits {
		if i, ok := bitIdx[b.ID]; ok {
			existingBits[i] = b
			continue
		}
		bitIdx[b.ID] = len(existingBits)
		existingBits = append(existingBits, b)
	}

	coordIdx := make(map[uuid.UUID]int, len(existingCoords))
	for i, c := range existingCoords {
		coordIdx[c.BitID] = i
	}
	for _, c := range coords {
		if i, ok := coordIdx[c.BitID]; ok {
			existingCoords[i] = c
			continue
		}
		coordIdx[c.BitID] = len(existingCoords)
		existingCoords = append(existingCoords, c)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return unavailable("create data directory", err)
	}
	if err := s.writeBits(existingBits); err != nil {
		return err
	}
	return s.writeCoordinates(existingCoords)
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) readCoordinates() ([]db.BitCoordinate, error) {
	records, err := readCSV(s.coordinatesPath(), coordinateHeader)
	if err != nil {
		return nil, unavailable("read coordinates file", err)
	}
	out := make([]db.BitCoordinate, 0, len(records))
	for i, rec := range records {
		c, err := parseCoordinate(rec)
		if err != nil {
			return nil, unavailable("read coordinates file", fmt.Errorf("record %d: %w", i+1, err))
		}
		out = append(out, c)
	}
	return out, nil
}

// readCoordinatesOrEmpty treats a missing coordinate file as an empty one.
func (s *CSVStore) readCoordinatesOrEmpty() ([]db.BitCoordinate, error) {
	if _, err := os.Stat(s.coordinatesPath()); os.IsNotExist(err) {
		return nil, nil
	}
	return s.readCoordinates()
}

// readBits returns the catalog; a missing bits file is an empty catalog.
func (s *CSVStore) readBits() ([]db.RouterBit, error) {
	if _, err := os.Stat(s.bitsPath()); os.IsNotExist(err) {
		return nil, nil
	}
	records, err := readCSV(s.bitsPath(), bitHeader)
	if err != nil {
		return nil, unavailable("read bits file", err)
	}
	out := make([]db.RouterBit, 0, len(records))
	for i, rec := range records {
		b, err := parseBit(rec)
		if err != nil {
			return nil, unavailable("read bits file", fmt.Errorf("record %d: %w", i+1, err))
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *CSVStore) writeCoordinates(coords []db.BitCoordinate) error {
	records := make([][]string, 0, len(coords))
	for _, c := range coords {
		records = append(records, []string{c.BitID.String(), c.Name, formatFloat(c.X), formatFloat(c.Y), formatFloat(c.Z)})
	}
	if err := s.writeFile(s.coordinatesPath(), coordinateHeader, records); err != nil {
		return unavailable("write coordinates file", err)
	}
	return nil
}

func (s *CSVStore) writeBits(bits []db.RouterBit) error {
	records := make([][]string, 0, len(bits))
	for _, b := range bits {
		records = append(records, []string{b.ID.String(), b.Name, b.Type, formatFloat(b.Diameter), b.Description})
	}
	if err := s.writeFile(s.bitsPath(), bitHeader, records); err != nil {
		return unavailable("write bits file", err)
	}
	return nil
}

func parseCoordinate(rec []string) (db.BitCoordinate, error) {
	id, err := uuid.Parse(rec[0])
	if err != nil {
		return db.BitCoordinate{}, fmt.Errorf("bit_id %q: %w", rec[0], err)
	}
	var xyz [3]float64
	for i := range xyz {
		if xyz[i], err = strconv.ParseFloat(rec[2+i], 64); err != nil {
			return db.BitCoordinate{}, fmt.Errorf("%s %q: %w", coordinateHeader[2+i], rec[2+i], err)
		}
	}
	return db.BitCoordinate{BitID: id, Name: rec[1], X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func parseBit(rec []string) (db.RouterBit, error) {
	id, err := uuid.Parse(rec[0])
	if err != nil {
		return db.RouterBit{}, fmt.Errorf("id %q: %w", rec[0], err)
	}
	diameter, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return db.RouterBit{}, fmt.Errorf("diameter %q: %w", rec[3], err)
	}
	return db.RouterBit{ID: id, Name: rec[1], Type: rec[2], Diameter: diameter, Description: rec[4]}, nil
}

// formatFloat keeps every significant digit so values survive a round trip.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// readCSV returns the data records of path after checking its header row.
func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	got, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: missing header row", filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		if got[i] != header[i] {
			return nil, fmt.Errorf("%s: unexpected header %v", filepath.Base(path), got)
		}
	}
	return r.ReadAll()
}

func writeCSV(path string, header []string, records [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
