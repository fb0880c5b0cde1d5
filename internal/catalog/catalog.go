// Package catalog is the build ledger: one row per build run and one row
// per source file a build ingested, recording how many points each source
// contributed versus dropped and which cold-chunk ids the build touched.
// It is purely a record of what happened; it has no influence on
// insertion itself.
package catalog

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/entwine-go/entwine/pkg/log"
)

// Catalog wraps a sqlite-backed ledger database, grounded on the
// teacher's DBConnection/JobRepository split: a bare *sqlx.DB plus a
// prepared-statement cache squirrel queries run against.
type Catalog struct {
	db        *sqlx.DB
	stmtCache *sq.StmtCache
}

// Open opens (creating if absent) the ledger database at path and brings
// its schema up to date.
func Open(path string) (*Catalog, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %q: %w", path, err)
	}
	// sqlite does not benefit from concurrent writers; one connection
	// avoids lock-wait churn, same reasoning as the chunk sqlite store.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Warnf("catalog: pragma %q failed: %v", p, err)
		}
	}

	if err := migrateDB(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db, stmtCache: sq.NewStmtCache(db.DB)}, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}
