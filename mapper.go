package sqlnp

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

var (
	scannerIface = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType     = reflect.TypeOf(time.Time{})
	fieldCache   sync.Map // reflect.Type → map[string]fieldInfo
)

// errFieldAmbiguous is returned when two promoted fields map to the same column.
var errFieldAmbiguous = errors.New("sqlnp: ambiguous field name")

// fieldInfo describes a leaf field reachable from a struct: its index path,
// or ambiguous if two fields at the same depth claim the same column.
type fieldInfo struct {
	index     []int
	ambiguous bool
}

// scanOne scans the current row into dest, a pointer to a struct, a
// sql.Scanner or a single-column primitive.
func scanOne(rows *sql.Rows, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: dest must be a non-nil pointer", ErrInvalidArgument)
	}
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	return scanInto(rows, cols, rv.Elem())
}

// scanAll appends every remaining row to the slice pointed to by dest.
// Elements may be structs, pointers to structs, or single-column values.
func scanAll(rows *sql.Rows, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%w: dest must be a non-nil pointer to a slice", ErrInvalidArgument)
	}
	rv = rv.Elem()
	rv.Set(rv.Slice(0, 0))

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	elemT := rv.Type().Elem()
	isPtr := elemT.Kind() == reflect.Pointer
	if isPtr {
		elemT = elemT.Elem()
	}

	for rows.Next() {
		item := reflect.New(elemT)
		if err := scanInto(rows, cols, item.Elem()); err != nil {
			return err
		}
		if isPtr {
			rv.Set(reflect.Append(rv, item))
		} else {
			rv.Set(reflect.Append(rv, item.Elem()))
		}
	}
	return rows.Err()
}

// scanInto scans one row into dst. Struct destinations are matched by
// column name; columns without a matching field are discarded.
func scanInto(rows *sql.Rows, cols []string, dst reflect.Value) error {
	if !isStructDest(dst.Type()) {
		if len(cols) != 1 {
			return fmt.Errorf("sqlnp: scan into %s requires 1 column, got %d", dst.Type(), len(cols))
		}
		return rows.Scan(dst.Addr().Interface())
	}

	fields := fieldIndexMap(dst.Type())
	targets := make([]any, len(cols))
	for i, col := range cols {
		fi, ok := fields[col]
		if !ok {
			targets[i] = new(any)
			continue
		}
		if fi.ambiguous {
			return fmt.Errorf("%w: %q", errFieldAmbiguous, col)
		}
		targets[i] = fieldByIndexAlloc(dst, fi.index).Addr().Interface()
	}
	return rows.Scan(targets...)
}

// isStructDest reports whether t should be mapped field by field.
func isStructDest(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t == timeType {
		return false
	}
	return !reflect.PointerTo(t).Implements(scannerIface)
}

// fieldIndexMap returns column name → fieldInfo for struct type t, honoring
// `db:"name"` tags and `db:"-"`, and flattening embedded structs.
// Shallower fields win over deeper ones, like Go's own field promotion.
func fieldIndexMap(t reflect.Type) map[string]fieldInfo {
	if m, ok := fieldCache.Load(t); ok {
		return m.(map[string]fieldInfo)
	}

	m := make(map[string]fieldInfo, t.NumField())
	depth := make(map[string]int, t.NumField())

	visited := map[reflect.Type]bool{}

	var walk func(rt reflect.Type, path []int)
	walk = func(rt reflect.Type, path []int) {
		if visited[rt] {
			return
		}
		visited[rt] = true
		defer delete(visited, rt)

		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			tag := f.Tag.Get("db")
			if tag == "-" || !f.IsExported() {
				continue
			}
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			idx := append(append([]int(nil), path...), i)

			if f.Anonymous && tag == "" && ft.Kind() == reflect.Struct && isStructDest(ft) {
				walk(ft, idx)
				continue
			}

			name := f.Name
			if n, _, _ := strings.Cut(tag, ","); n != "" {
				name = n
			}
			d, seen := depth[name]
			switch {
			case !seen || len(idx) < d:
				m[name] = fieldInfo{index: idx}
				depth[name] = len(idx)
			case len(idx) == d:
				m[name] = fieldInfo{ambiguous: true}
			}
		}
	}
	walk(t, nil)

	fieldCache.Store(t, m)
	return m
}

// fieldByIndexAlloc walks a struct by index path, allocating nil embedded
// pointers on the way. The leaf is returned as-is.
func fieldByIndexAlloc(v reflect.Value, path []int) reflect.Value {
	for i, idx := range path {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(idx)
	}
	return v
}
