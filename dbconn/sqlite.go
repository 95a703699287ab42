package dbconn

import (
	"fmt"
	"net/url"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDriver is the database/sql driver name registered by go-sqlite3.
const SQLiteDriver = "sqlite3"

// NewSQLite returns a Helper for the SQLite database stored in path.
// The file is created on first open if it does not exist.
func NewSQLite(path string, opts ...Option) (*Helper, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path must not be empty", ErrInvalidArgument)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("dbconn: resolve %q: %w", path, err)
	}
	return New(SQLiteDriver, sqliteDSN(abs), opts...)
}

// sqliteDSN builds a file: URI with foreign keys on and a 5s busy timeout.
// The path is percent-escaped so '#', '?' and '%' stay part of the file name.
func sqliteDSN(abs string) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: q.Encode()}
	return u.String()
}
