// Package calibdb persists calibration passes in sqlite. A pass is one
// run over the data; each pass stores the flattened profile bins of every
// correction step, keyed by detector configuration and step name, so a
// later pass can attach them.
package calibdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/flowvec/internal/detector"
	"github.com/banshee-data/flowvec/internal/profile"
)

// Store wraps the sqlite database holding calibration passes.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the calibration database at path and
// migrates its schema to the latest version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying connection for tooling.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Pass identifies one calibration run over the data.
type Pass struct {
	PassID      string
	Label       string
	CreatedAtNs int64
}

// CreatePass registers a new calibration pass and returns it.
func (s *Store) CreatePass(label string) (*Pass, error) {
	p := &Pass{
		PassID:      uuid.New().String(),
		Label:       label,
		CreatedAtNs: time.Now().UnixNano(),
	}
	_, err := s.db.Exec(
		"INSERT INTO passes (pass_id, label, created_at_ns) VALUES (?, ?, ?)",
		p.PassID, p.Label, p.CreatedAtNs,
	)
	if err != nil {
		return nil, fmt.Errorf("calibdb: create pass: %w", err)
	}
	return p, nil
}

// LatestPass returns the most recently created pass, or nil when the
// store holds none.
func (s *Store) LatestPass() (*Pass, error) {
	row := s.db.QueryRow(
		"SELECT pass_id, label, created_at_ns FROM passes ORDER BY created_at_ns DESC, rowid DESC LIMIT 1")
	var p Pass
	if err := row.Scan(&p.PassID, &p.Label, &p.CreatedAtNs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("calibdb: latest pass: %w", err)
	}
	return &p, nil
}

// Passes lists all passes, newest first.
func (s *Store) Passes() ([]Pass, error) {
	rows, err := s.db.Query(
		"SELECT pass_id, label, created_at_ns FROM passes ORDER BY created_at_ns DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passes []Pass
	for rows.Next() {
		var p Pass
		if err := rows.Scan(&p.PassID, &p.Label, &p.CreatedAtNs); err != nil {
			return nil, err
		}
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

// SaveStep stores the calibration records of one step, replacing any
// previous records of the same pass, configuration and step.
func (s *Store) SaveStep(passID, config, step string, records []profile.BinRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"DELETE FROM calibration_bins WHERE pass_id = ? AND config = ? AND step = ?",
		passID, config, step,
	)
	if err != nil {
		return fmt.Errorf("calibdb: save step %s/%s: %w", config, step, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO calibration_bins (
			pass_id, config, step, kind, bin_key, channel, harmonic, axis, n, sum, sum_sq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(
			passID, config, step,
			string(r.Kind), r.BinKey, r.Channel, r.Harmonic, r.Axis,
			r.N, r.Sum, r.SumSq,
		)
		if err != nil {
			return fmt.Errorf("calibdb: save step %s/%s: %w", config, step, err)
		}
	}

	return tx.Commit()
}

// LoadStep returns the stored records of one step, nil when the pass
// holds none for it.
func (s *Store) LoadStep(passID, config, step string) ([]profile.BinRecord, error) {
	rows, err := s.db.Query(`
		SELECT kind, bin_key, channel, harmonic, axis, n, sum, sum_sq
		FROM calibration_bins
		WHERE pass_id = ? AND config = ? AND step = ?
		ORDER BY bin_key, channel, harmonic, axis`,
		passID, config, step,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []profile.BinRecord
	for rows.Next() {
		var r profile.BinRecord
		var kind string
		if err := rows.Scan(&kind, &r.BinKey, &r.Channel, &r.Harmonic, &r.Axis, &r.N, &r.Sum, &r.SumSq); err != nil {
			return nil, err
		}
		r.Kind = profile.Kind(kind)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Loader binds a pass into a load function for attaching calibration to
// detector configurations.
func (s *Store) Loader(passID string) detector.LoadFunc {
	return func(config, step string) ([]profile.BinRecord, error) {
		return s.LoadStep(passID, config, step)
	}
}

// Saver binds a pass into a save function for persisting a manager's
// calibration snapshots.
func (s *Store) Saver(passID string) func(config, step string, records []profile.BinRecord) error {
	return func(config, step string, records []profile.BinRecord) error {
		return s.SaveStep(passID, config, step, records)
	}
}
