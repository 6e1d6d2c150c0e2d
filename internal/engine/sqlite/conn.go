// Package sqlite is the default engine.Conn/engine.Stmt implementation,
// backed by database/sql and modernc.org/sqlite (a pure-Go, cgo-free
// SQLite engine). It plays the same role for this gateway that
// internal/hub/db.Open plays for the teacher: one configured *sql.DB,
// WAL journal mode, a single serialized connection.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/zcourts/dqlite/internal/engine"
	"github.com/zcourts/dqlite/internal/gwproto"
)

// Options configures Open. It mirrors the spec's Options fields that
// bear on the SQL connection: VFS name and page size. Open applies
// PageSize only; VFS is accepted but not applied, so databases are
// always opened with the driver's default VFS. The replication plugin
// name is not carried here and is not read by package gateway either.
type Options struct {
	VFS      string
	PageSize int
}

// Conn is the sqlite-backed engine.Conn.
type Conn struct {
	db *sql.DB
	sc *sql.Conn
}

// Open opens a SQLite database at path ("name" in the spec's OPEN
// request) and configures it the way the teacher's db.Open does:
// WAL mode, a busy timeout, foreign keys on, and exactly one
// connection — SQLite only supports one writer, and the gateway core
// is single-threaded per connection anyway (spec §5).
func Open(ctx context.Context, path string, opts Options) (*Conn, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	sc, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	if opts.PageSize > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA page_size=%d", opts.PageSize))
	}
	for _, p := range pragmas {
		if _, err := sc.ExecContext(ctx, p); err != nil {
			_ = sc.Close()
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	return &Conn{db: db, sc: sc}, nil
}

// Prepare compiles the first statement in sqlText and returns the
// residual tail, mirroring the spec's requirement that PREPARE and
// EXEC_SQL/QUERY_SQL support multi-statement text one statement at a
// time.
func (c *Conn) Prepare(ctx context.Context, sqlText string) (engine.Stmt, string, error) {
	first, tail := splitFirstStatement(sqlText)
	if first == "" {
		return nil, "", nil
	}

	var dstmt driver.Stmt
	err := c.sc.Raw(func(dc any) error {
		var e error
		if pc, ok := dc.(driver.ConnPrepareContext); ok {
			dstmt, e = pc.PrepareContext(ctx, first)
		} else {
			dstmt, e = dc.(driver.Conn).Prepare(first)
		}
		return e
	})
	if err != nil {
		return nil, "", engine.NewError(gwproto.ErrCodeError, err.Error())
	}

	return newStmt(dstmt), tail, nil
}

// Close releases the held connection and the database handle.
func (c *Conn) Close() error {
	scErr := c.sc.Close()
	dbErr := c.db.Close()
	if scErr != nil {
		return scErr
	}
	return dbErr
}

// Raw returns the underlying *sql.DB, for use as a cluster.Handle and
// by the WAL checkpoint inspector.
func (c *Conn) Raw() any {
	return c.db
}
