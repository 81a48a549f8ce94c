package dataset

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/adalundhe/subspace/core/storage"
	_ "modernc.org/sqlite"
)

// ErrCorruptVector indicates a stored vector blob of invalid length.
var ErrCorruptVector = errors.New("corrupt vector blob")

// Store keeps labeled sample vectors in SQLite so training sets can be built
// up across runs. It stores raw samples only, never fitted models.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens or creates the sample database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := storage.EnsureDir(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL,
		dim INTEGER NOT NULL,
		vector BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_samples_label ON samples(label);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts one sample and returns its row id.
func (s *Store) Add(ctx context.Context, label string, vector []float64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (label, dim, vector) VALUES (?, ?, ?)`,
		label, len(vector), encodeVector(vector))
	if err != nil {
		return 0, fmt.Errorf("insert sample: %w", err)
	}
	return res.LastInsertId()
}

// AddSet inserts every sample of set in one transaction.
func (s *Store) AddSet(ctx context.Context, set TrainingSet) error {
	return s.writeSet(ctx, set, false)
}

// ReplaceSet deletes every stored sample and inserts set in one
// transaction. On failure the previous samples remain.
func (s *Store) ReplaceSet(ctx context.Context, set TrainingSet) error {
	return s.writeSet(ctx, set, true)
}

func (s *Store) writeSet(ctx context.Context, set TrainingSet, replace bool) error {
	if err := set.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM samples`); err != nil {
			return fmt.Errorf("clear samples: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (label, dim, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range set.Vectors {
		if _, err := stmt.ExecContext(ctx, set.Labels[i], len(v), encodeVector(v)); err != nil {
			return fmt.Errorf("insert sample %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Load returns every stored sample in insertion order.
func (s *Store) Load(ctx context.Context) (TrainingSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, dim, vector FROM samples ORDER BY id`)
	if err != nil {
		return TrainingSet{}, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var set TrainingSet
	for rows.Next() {
		var (
			label string
			dim   int
			blob  []byte
		)
		if err := rows.Scan(&label, &dim, &blob); err != nil {
			return TrainingSet{}, fmt.Errorf("scan sample: %w", err)
		}
		vec, err := decodeVector(blob, dim)
		if err != nil {
			return TrainingSet{}, err
		}
		set.Vectors = append(set.Vectors, vec)
		set.Labels = append(set.Labels, label)
	}
	if err := rows.Err(); err != nil {
		return TrainingSet{}, err
	}
	if err := set.Validate(); err != nil {
		return TrainingSet{}, err
	}
	return set, nil
}

// LabelCount is the number of stored samples for one label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Labels returns per-label sample counts ordered by label.
func (s *Store) Labels(ctx context.Context) ([]LabelCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM samples GROUP BY label ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var counts []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		counts = append(counts, lc)
	}
	return counts, rows.Err()
}

// Count returns the number of stored samples.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// Clear deletes every stored sample.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM samples`); err != nil {
		return fmt.Errorf("clear samples: %w", err)
	}
	return nil
}

// encodeVector packs v as little-endian IEEE-754 float64 values.
func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, val := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(val))
	}
	return buf
}

func decodeVector(blob []byte, dim int) ([]float64, error) {
	if len(blob) != 8*dim {
		return nil, fmt.Errorf("%w: %d bytes for dimension %d", ErrCorruptVector, len(blob), dim)
	}
	v := make([]float64, dim)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return v, nil
}
