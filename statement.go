package sqlnp

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// NamedStmt is a prepared statement bound by parameter name.
// The name → positions table is fixed at construction. Like *sql.Stmt
// argument binding, a NamedStmt is NOT safe for concurrent use: serialize
// access if it is shared between goroutines.
type NamedStmt struct {
	stmt    PositionalStmt
	sql     string
	indexes map[string][]int
}

// Prepare parses q and prepares the rewritten statement on p.
// Errors returned by p are passed through unchanged.
func Prepare(ctx context.Context, p Preparer, q string) (*NamedStmt, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: preparer must not be nil", ErrInvalidArgument)
	}
	r := Parse(q)
	return PrepareParsed(ctx, p, &r)
}

// PrepareParsed prepares a statement from a previous Parse result, so one
// parse can back statements on many connections.
func PrepareParsed(ctx context.Context, p Preparer, r *ParseResult) (*NamedStmt, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: preparer must not be nil", ErrInvalidArgument)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: parse result must not be nil", ErrInvalidArgument)
	}
	stmt, err := p.PrepareContext(ctx, r.sql)
	if err != nil {
		return nil, err
	}
	return newNamedStmt(NewPositional(stmt, r.n), r), nil
}

// NewNamedStmt wraps an already prepared positional statement whose
// placeholders were produced by r.
func NewNamedStmt(ps PositionalStmt, r *ParseResult) (*NamedStmt, error) {
	if ps == nil {
		return nil, fmt.Errorf("%w: positional statement must not be nil", ErrInvalidArgument)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: parse result must not be nil", ErrInvalidArgument)
	}
	return newNamedStmt(ps, r), nil
}

func newNamedStmt(ps PositionalStmt, r *ParseResult) *NamedStmt {
	return &NamedStmt{
		stmt:    ps,
		sql:     r.sql,
		indexes: r.Mapping(),
	}
}

// SQL returns the positional statement text that was prepared.
func (s *NamedStmt) SQL() string {
	return s.sql
}

// Positional returns the statement used internally.
func (s *NamedStmt) Positional() PositionalStmt {
	return s.stmt
}

// Indexes returns a copy of the positions registered for name.
// It fails with ErrInvalidArgument for an empty name and ErrNotFound for a
// name that did not occur in the statement.
func (s *NamedStmt) Indexes(name string) ([]int, error) {
	return lookupIndexes(s.indexes, name)
}

// Set binds v to every position of name. Binding stops at the first failing
// position; positions already bound are left as they are.
func (s *NamedStmt) Set(name string, v any) error {
	idx, err := s.Indexes(name)
	if err != nil {
		return err
	}
	for _, i := range idx {
		if err := s.stmt.Bind(i, v); err != nil {
			return err
		}
	}
	return nil
}

// SetBool binds a boolean.
func (s *NamedStmt) SetBool(name string, v bool) error { return s.Set(name, v) }

// SetByte binds a single byte as an integer.
func (s *NamedStmt) SetByte(name string, v byte) error { return s.Set(name, int64(v)) }

// SetInt16 binds a 16-bit integer.
func (s *NamedStmt) SetInt16(name string, v int16) error { return s.Set(name, int64(v)) }

// SetInt binds an int.
func (s *NamedStmt) SetInt(name string, v int) error { return s.Set(name, int64(v)) }

// SetInt32 binds a 32-bit integer.
func (s *NamedStmt) SetInt32(name string, v int32) error { return s.Set(name, int64(v)) }

// SetInt64 binds a 64-bit integer.
func (s *NamedStmt) SetInt64(name string, v int64) error { return s.Set(name, v) }

// SetFloat32 binds a 32-bit float.
func (s *NamedStmt) SetFloat32(name string, v float32) error { return s.Set(name, float64(v)) }

// SetFloat64 binds a 64-bit float.
func (s *NamedStmt) SetFloat64(name string, v float64) error { return s.Set(name, v) }

// SetString binds a string.
func (s *NamedStmt) SetString(name string, v string) error { return s.Set(name, v) }

// SetBytes binds a byte slice. A nil slice is sent as NULL.
func (s *NamedStmt) SetBytes(name string, v []byte) error {
	if v == nil {
		return s.Set(name, nil)
	}
	return s.Set(name, v)
}

// SetTime binds a time.Time.
func (s *NamedStmt) SetTime(name string, v time.Time) error { return s.Set(name, v) }

// SetNull binds SQL NULL.
func (s *NamedStmt) SetNull(name string) error { return s.Set(name, nil) }

// SetMap binds every entry of m, in sorted key order so that a failure is
// reproducible. It stops at the first unknown name or failing bind.
func (s *NamedStmt) SetMap(m P) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := s.Set(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteQuery runs the statement as a query.
func (s *NamedStmt) ExecuteQuery(ctx context.Context) (*sql.Rows, error) {
	return s.stmt.QueryContext(ctx)
}

// Exec runs the statement and returns the driver result.
func (s *NamedStmt) Exec(ctx context.Context) (sql.Result, error) {
	return s.stmt.ExecContext(ctx)
}

// ExecuteUpdate runs the statement and returns the number of affected rows.
func (s *NamedStmt) ExecuteUpdate(ctx context.Context) (int64, error) {
	res, err := s.stmt.ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ScanOne runs the query, scanning exactly one row into dest.
// It returns sql.ErrNoRows if no rows are returned and ErrMoreThanOneRow if
// there is more than one.
func (s *NamedStmt) ScanOne(ctx context.Context, dest any) error {
	rows, err := s.stmt.QueryContext(ctx)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := scanOne(rows, dest); err != nil {
		return err
	}
	if rows.Next() {
		return ErrMoreThanOneRow
	}
	return rows.Err()
}

// ScanAll runs the query, scanning all rows into the slice pointed to by dest.
func (s *NamedStmt) ScanAll(ctx context.Context, dest any) error {
	rows, err := s.stmt.QueryContext(ctx)
	if err != nil {
		return err
	}
	defer rows.Close()
	return scanAll(rows, dest)
}

// Close releases the positional statement.
func (s *NamedStmt) Close() error {
	return s.stmt.Close()
}
