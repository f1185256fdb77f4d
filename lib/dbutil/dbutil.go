package dbutil

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// IsRemote reports whether dsn points at a libsql server instead of a local file.
func IsRemote(dsn string) bool {
	return strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "https://") ||
		strings.HasPrefix(dsn, "http://") ||
		strings.HasPrefix(dsn, "wss://") ||
		strings.HasPrefix(dsn, "ws://")
}

// OpenDB opens a local sqlite file (creating its directory) or, for libsql:// and http(s)
// urls, a remote libsql database. authToken is only used for remote databases.
func OpenDB(dsn, authToken string) (*sql.DB, error) {
	if dsn == "" {
		return nil, wrapOpenDB(fmt.Errorf("a path was not specified"))
	}

	if IsRemote(dsn) {
		if authToken != "" {
			u, err := url.Parse(dsn)
			if err != nil {
				return nil, wrapOpenDB(err)
			}
			q := u.Query()
			q.Set("authToken", authToken)
			u.RawQuery = q.Encode()
			dsn = u.String()
		}
		db, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
		return db, nil
	}

	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0777); err != nil {
			return nil, wrapOpenDB(err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, wrapOpenDB(err)
	}
	return db, nil
}

// OpenAndMigrate opens the database and applies an idempotent schema to it.
func OpenAndMigrate(dsn, authToken, schema string) (*sql.DB, error) {
	db, err := OpenDB(dsn, authToken)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
