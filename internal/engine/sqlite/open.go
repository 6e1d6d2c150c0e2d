package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/zcourts/dqlite/internal/engine"
	"github.com/zcourts/dqlite/internal/engine/walcheck"
	"github.com/zcourts/dqlite/internal/gateway"
)

// OpenEngine builds a gateway.OpenFunc backed by this package's Conn,
// rooted at dataDir. name is the OPEN request's database name (spec
// §4.3); an empty name opens the node's single default database,
// mirroring a dqlite node that was only ever asked to serve one.
func OpenEngine(dataDir string) gateway.OpenFunc {
	return func(ctx context.Context, name string, _ uint64, opts gateway.Options) (engine.Conn, walcheck.Inspector, error) {
		path := filepath.Join(dataDir, "gateway.db")
		if name != "" {
			path = filepath.Join(dataDir, name)
		}

		conn, err := Open(ctx, path, Options{VFS: opts.VFS, PageSize: opts.PageSize})
		if err != nil {
			return nil, nil, fmt.Errorf("open engine: %w", err)
		}

		db, ok := conn.Raw().(*sql.DB)
		if !ok {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("open engine: unexpected raw handle type")
		}

		return conn, walcheck.New(db), nil
	}
}
