// Package migrate applies the embedded schema scripts to a tripline store.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var scripts embed.FS

// A step is one embedded script, named NNN_description.sql. Steps run in
// ascending numeric order.
type step struct {
	version int
	name    string
	ddl     string
}

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations(
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL
);`

func readSteps() ([]step, error) {
	paths, err := fs.Glob(scripts, "sql/*.sql")
	if err != nil {
		return nil, err
	}
	steps := make([]step, 0, len(paths))
	for _, path := range paths {
		name := strings.TrimPrefix(path, "sql/")
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration script %s: missing version prefix", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration script %s: bad version prefix: %w", name, err)
		}
		body, err := fs.ReadFile(scripts, path)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{version: version, name: name, ddl: string(body)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()
	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Migrate brings the store up to the latest embedded schema. Every pending
// step runs inside a single transaction and leaves one row in
// schema_migrations, so a rerun is a no-op.
func Migrate(db *sql.DB) error {
	steps, err := readSteps()
	if err != nil {
		return err
	}
	if _, err := db.Exec(ledgerDDL); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, s := range steps {
		if applied[s.version] {
			continue
		}
		if _, err := tx.Exec(s.ddl); err != nil {
			return fmt.Errorf("apply %s: %w", s.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version,name,applied_at) VALUES (?,?,?)`,
			s.version, s.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("record %s: %w", s.name, err)
		}
	}
	return tx.Commit()
}

// Version reports the highest applied schema version, zero for a store that
// has never been migrated.
func Version(db *sql.DB) (int, error) {
	if _, err := db.Exec(ledgerDDL); err != nil {
		return 0, err
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}
