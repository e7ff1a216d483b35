package toggle

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewDB opens (creating if needed) the toggle database at path and applies
// pending migrations. The parent directory is created with 0700.
func NewDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create toggle db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open toggle db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate toggle db: %w", err)
	}
	return db, nil
}

// runMigrations applies the embedded *.up.sql files in lexical order,
// tracking progress in PRAGMA user_version so reopening an up-to-date
// database is a no-op.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for i, name := range names {
		if i < version {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bump user_version after %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
	}
	return nil
}

// sqliteRepository implements Repository over the module_toggles table.
type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open toggle database.
func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{db: db}
}

var _ Repository = (*sqliteRepository)(nil)

func (r *sqliteRepository) LoadAll() (map[string]bool, error) {
	rows, err := r.db.Query(`SELECT module_id, enabled FROM module_toggles`)
	if err != nil {
		return nil, fmt.Errorf("query module_toggles: %w", err)
	}
	defer rows.Close()

	state := make(map[string]bool)
	for rows.Next() {
		var id string
		var enabled bool
		if err := rows.Scan(&id, &enabled); err != nil {
			return nil, fmt.Errorf("scan module_toggles row: %w", err)
		}
		state[id] = enabled
	}
	return state, rows.Err()
}

func (r *sqliteRepository) Save(moduleID string, enabled bool) error {
	_, err := r.db.Exec(
		`INSERT INTO module_toggles (module_id, enabled, updated_at)
		 VALUES (?, ?, strftime('%s','now'))
		 ON CONFLICT(module_id) DO UPDATE SET
		   enabled = excluded.enabled,
		   updated_at = excluded.updated_at`,
		moduleID, enabled,
	)
	if err != nil {
		return fmt.Errorf("upsert module_toggles: %w", err)
	}
	return nil
}

func (r *sqliteRepository) Close() error {
	return r.db.Close()
}
