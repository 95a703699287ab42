package sqlnp

import (
	"context"
	"database/sql"
	"errors"
)

// Dialect identifies the positional placeholder syntax emitted by ParseDialect.
type Dialect int

// P is a convenient alias for map[string]any to use with SetMap().
type P = map[string]any

// Preparer abstracts *sql.DB / *sql.Conn / *sql.Tx PrepareContext.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

const (
	Postgres Dialect = iota
	MySQL
	SQLite
	SQLServer
)

var (
	ErrInvalidArgument = errors.New("sqlnp: invalid argument")
	ErrNotFound        = errors.New("sqlnp: parameter not registered")
	ErrIndexOutOfRange = errors.New("sqlnp: positional index out of range")
	ErrMoreThanOneRow  = errors.New("sqlnp: more than one row")
)

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case SQLServer:
		return "sqlserver"
	default:
		return "unknown"
	}
}

// ParseDialectName maps a dialect name (as returned by String) back to a Dialect.
func ParseDialectName(name string) (Dialect, bool) {
	for _, d := range []Dialect{Postgres, MySQL, SQLite, SQLServer} {
		if d.String() == name {
			return d, true
		}
	}
	return 0, false
}
