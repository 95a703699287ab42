package main

import (
	"github.com/gandaldf/sqlnp"
	"github.com/gandaldf/sqlnp/dbconn"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
)

// driverDialects maps each registered driver to the placeholder syntax it expects.
var driverDialects = map[string]sqlnp.Dialect{
	dbconn.SQLiteDriver: sqlnp.SQLite,
	"pgx":               sqlnp.Postgres,
	"mysql":             sqlnp.MySQL,
	"sqlserver":         sqlnp.SQLServer,
}

// resolveDialect picks the explicit dialect if set, else the driver's, else '?'.
func resolveDialect(cfg Config) sqlnp.Dialect {
	if d, ok := sqlnp.ParseDialectName(cfg.Dialect); ok {
		return d
	}
	if d, ok := driverDialects[cfg.Driver]; ok {
		return d
	}
	return sqlnp.SQLite
}

// openHelper returns the connection helper for cfg.
func openHelper(cfg Config, opts ...dbconn.Option) (*dbconn.Helper, error) {
	if cfg.Driver == dbconn.SQLiteDriver {
		return dbconn.NewSQLite(cfg.DSN, opts...)
	}
	return dbconn.New(cfg.Driver, cfg.DSN, opts...)
}
