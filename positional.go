package sqlnp

import (
	"context"
	"database/sql"
	"fmt"
)

// PositionalStmt is a prepared statement addressed by 1-based positions.
// NamedStmt translates every named bind into one Bind call per position.
type PositionalStmt interface {
	Bind(index int, value any) error
	QueryContext(ctx context.Context) (*sql.Rows, error)
	ExecContext(ctx context.Context) (sql.Result, error)
	Close() error
}

// Positional adapts a *sql.Stmt to PositionalStmt. database/sql takes all
// arguments at execution time, so bound values are kept in an argument
// vector sized to the statement's placeholder count.
// It is NOT safe for concurrent use.
type Positional struct {
	stmt *sql.Stmt
	args []any
}

// NewPositional wraps stmt, which must have exactly n positional placeholders.
// Unbound positions are sent as NULL.
func NewPositional(stmt *sql.Stmt, n int) *Positional {
	if n < 0 {
		n = 0
	}
	return &Positional{stmt: stmt, args: make([]any, n)}
}

// Bind stores value at the given 1-based position.
func (p *Positional) Bind(index int, value any) error {
	if index < 1 || index > len(p.args) {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrIndexOutOfRange, index, len(p.args))
	}
	p.args[index-1] = value
	return nil
}

// Args returns a copy of the currently bound argument vector.
func (p *Positional) Args() []any {
	return append([]any(nil), p.args...)
}

// ClearBindings resets every position to NULL.
func (p *Positional) ClearBindings() {
	for i := range p.args {
		p.args[i] = nil
	}
}

// QueryContext runs the statement with the bound arguments.
func (p *Positional) QueryContext(ctx context.Context) (*sql.Rows, error) {
	return p.stmt.QueryContext(ctx, p.args...)
}

// ExecContext runs the statement with the bound arguments.
func (p *Positional) ExecContext(ctx context.Context) (sql.Result, error) {
	return p.stmt.ExecContext(ctx, p.args...)
}

// Close releases the underlying *sql.Stmt.
func (p *Positional) Close() error {
	return p.stmt.Close()
}
