package sqlnp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// namesHint is the initial capacity of the name table.
const namesHint = 8

// ParseResult is the immutable outcome of Parse: the rewritten SQL text and,
// for every distinct name, the ordered 1-based positions it occupies.
// A ParseResult can be shared across goroutines and reused to prepare the
// same statement on many connections.
type ParseResult struct {
	sql     string
	indexes map[string][]int
	order   []string // names by first occurrence
	n       int      // total placeholders emitted
}

// Parse rewrites every :name token in q into a '?' placeholder.
// It never fails: text that is not a parameter is copied through unchanged.
func Parse(q string) ParseResult {
	return ParseDialect(SQLite, q)
}

// ParseDialect is like Parse but emits the positional token of the given
// dialect ($n for Postgres, @pn for SQL Server, ? otherwise).
func ParseDialect(dialect Dialect, q string) ParseResult {
	// Rough estimate for number of placeholders (not exact, but helps sizing).
	est := strings.Count(q, ":")

	var buf strings.Builder
	extraPer := 0
	switch dialect {
	case Postgres, SQLServer:
		extraPer = 3
	}
	buf.Grow(len(q) + est*extraPer)

	indexes := make(map[string][]int, namesHint)
	var order []string
	n := 0

	for i := 0; i < len(q); {
		c := q[i]
		if c != ':' {
			buf.WriteByte(c)
			i++
			continue
		}

		// :name
		j := i + 1
		r, size := utf8.DecodeRuneInString(q[j:])
		if size == 0 || !isIdentStart(r) {
			buf.WriteByte(c)
			i++
			continue
		}
		k := j + size
		for k < len(q) {
			r, size = utf8.DecodeRuneInString(q[k:])
			if !isIdentPart(r) {
				break
			}
			k += size
		}
		name := q[j:k]

		n++
		if _, seen := indexes[name]; !seen {
			order = append(order, name)
		}
		indexes[name] = append(indexes[name], n)
		writePlaceholder(&buf, dialect, n)
		i = k
	}

	return ParseResult{
		sql:     buf.String(),
		indexes: indexes,
		order:   order,
		n:       n,
	}
}

// SQL returns the rewritten statement, ready for a positional driver.
func (r ParseResult) SQL() string {
	return r.sql
}

// NumParams returns the number of positional placeholders in SQL().
func (r ParseResult) NumParams() int {
	return r.n
}

// Names returns the registered parameter names in order of first appearance.
func (r ParseResult) Names() []string {
	return append([]string(nil), r.order...)
}

// Mapping returns a deep copy of the name → positions table.
func (r ParseResult) Mapping() map[string][]int {
	out := make(map[string][]int, len(r.indexes))
	for name, idx := range r.indexes {
		out[name] = append([]int(nil), idx...)
	}
	return out
}

// Indexes returns the positions bound to name, in source order.
// The returned slice is a copy and may be modified freely.
func (r ParseResult) Indexes(name string) ([]int, error) {
	return lookupIndexes(r.indexes, name)
}

// Prepare creates a NamedStmt from this already parsed statement without
// scanning the SQL again.
func (r ParseResult) Prepare(ctx context.Context, p Preparer) (*NamedStmt, error) {
	return PrepareParsed(ctx, p, &r)
}

// lookupIndexes validates name and returns a copy of its positions.
func lookupIndexes(indexes map[string][]int, name string) ([]int, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: parameter name must not be empty", ErrInvalidArgument)
	}
	idx, ok := indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return append([]int(nil), idx...), nil
}

// writePlaceholder emits a dialect-specific placeholder token for argument idx.
func writePlaceholder(b *strings.Builder, d Dialect, idx int) {
	switch d {
	case Postgres:
		b.WriteByte('$')
		var tmp [20]byte
		b.Write(strconv.AppendInt(tmp[:0], int64(idx), 10))
	case SQLServer:
		b.WriteString("@p")
		var tmp [20]byte
		b.Write(strconv.AppendInt(tmp[:0], int64(idx), 10))
	default: // MySQL, SQLite
		b.WriteByte('?')
	}
}

// isIdentStart reports whether r may open a parameter name.
// utf8.RuneError is neither a letter nor '_', so invalid bytes never start one.
func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// isIdentPart reports whether r may continue a parameter name.
func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
