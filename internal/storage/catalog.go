package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/climatools/biascorrect/internal/corrector"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	name       TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	method     TEXT NOT NULL,
	variable   TEXT NOT NULL,
	scenario   INTEGER NOT NULL,
	unit_type  TEXT NOT NULL,
	unit       INTEGER NOT NULL,
	params     BLOB,
	created_at TIMESTAMP NOT NULL
);`

// Catalog records persisted artifacts in a SQLite database. Each process
// gets a fresh run ID; recording the same artifact name again replaces the
// earlier row, matching the overwrite semantics of the file store.
type Catalog struct {
	db    *sql.DB
	runID string
}

// OpenCatalog opens or creates the catalog database.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &Catalog{db: db, runID: uuid.NewString()}, nil
}

// RunID returns the identifier shared by all records of this process.
func (c *Catalog) RunID() string { return c.runID }

// Record stores one artifact row. params is serialized with msgpack so the
// exact method configuration of a run can be recovered later.
func (c *Catalog) Record(a corrector.Artifact, params interface{}) error {
	blob, err := msgpack.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	_, err = c.db.Exec(`
		INSERT INTO artifacts (name, run_id, method, variable, scenario, unit_type, unit, params, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			run_id = excluded.run_id,
			method = excluded.method,
			variable = excluded.variable,
			scenario = excluded.scenario,
			unit_type = excluded.unit_type,
			unit = excluded.unit,
			params = excluded.params,
			created_at = excluded.created_at`,
		a.Name, c.runID, a.Method, a.Variable, a.Scenario, a.UnitType, a.Unit, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record artifact %s: %w", a.Name, err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error { return c.db.Close() }

// CatalogedStore pairs a file store with a catalog so every saved artifact
// is also recorded.
type CatalogedStore struct {
	Files   corrector.Store
	Catalog *Catalog
	// Params is recorded verbatim with every artifact.
	Params interface{}
}

// Save writes the artifact and records it.
func (s *CatalogedStore) Save(a corrector.Artifact) error {
	if err := s.Files.Save(a); err != nil {
		return err
	}
	return s.Catalog.Record(a, s.Params)
}
