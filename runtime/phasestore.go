// Phase-variable store (spec.md §6 item 4): persistent scalars captured
// during a `BEGIN`-like phase block, keyed by (name, phase id), surviving
// across repeated compile_and_run invocations within one process.
//
// Grounded on pkg/pdo/sqlite_driver.go's database/sql-over-modernc.org/sqlite
// connection pattern, repurposed from "a PDO driver" into the
// interpreter's own persistence collaborator, since this core has no SQL
// surface of its own to expose (spec.md §6 names exactly one external
// persistence collaborator).
package runtime

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/wudi/harp/values"
)

// PhaseStore backs spec.md §6 item 4. Values are marshaled through
// scalar coercion only (numeric/string) — arrays, hashes, and code
// refs are not phase-persisted.
type PhaseStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewPhaseStore opens a private in-memory database shared across
// connections within this process via SQLite's shared-cache mode, so
// multiple PhaseStore instances backing the same run observe the same
// rows (the file::memory:?cache=shared DSN, same idiom the teacher's
// SQLiteConn.Connect uses for on-disk DSNs).
func NewPhaseStore() (*PhaseStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("phase store: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS phase_vars (
		name TEXT NOT NULL,
		phase_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		str_val TEXT,
		num_val REAL,
		PRIMARY KEY (name, phase_id)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("phase store: migrate: %w", err)
	}
	return &PhaseStore{db: db}, nil
}

func (ps *PhaseStore) Close() error { return ps.db.Close() }

// Put persists v under (name, phaseID), scalar-coerced.
func (ps *PhaseStore) Put(name, phaseID string, v *values.Value) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if v.Kind == values.KindInt || v.Kind == values.KindFloat {
		_, err := ps.db.Exec(`INSERT INTO phase_vars(name, phase_id, kind, num_val) VALUES (?, ?, 'num', ?)
			ON CONFLICT(name, phase_id) DO UPDATE SET kind='num', num_val=excluded.num_val, str_val=NULL`,
			name, phaseID, v.ToFloat())
		return err
	}
	_, err := ps.db.Exec(`INSERT INTO phase_vars(name, phase_id, kind, str_val) VALUES (?, ?, 'str', ?)
		ON CONFLICT(name, phase_id) DO UPDATE SET kind='str', str_val=excluded.str_val, num_val=NULL`,
		name, phaseID, v.ToString())
	return err
}

// Get retrieves the scalar persisted under (name, phaseID), or undef
// (ok=false) if nothing was ever stored there.
func (ps *PhaseStore) Get(name, phaseID string) (*values.Value, bool, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	row := ps.db.QueryRow(`SELECT kind, str_val, num_val FROM phase_vars WHERE name = ? AND phase_id = ?`, name, phaseID)
	var kind string
	var strVal sql.NullString
	var numVal sql.NullFloat64
	if err := row.Scan(&kind, &strVal, &numVal); err != nil {
		if err == sql.ErrNoRows {
			return values.Undef(), false, nil
		}
		return nil, false, fmt.Errorf("phase store: get: %w", err)
	}
	if kind == "num" {
		return values.NewFloat(numVal.Float64), true, nil
	}
	return values.NewString(strVal.String), true, nil
}
