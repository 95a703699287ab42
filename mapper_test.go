package sqlnp

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

// prepareQuery prepares q on a sqlmock database expecting one query with args
// that returns rows.
func prepareQuery(t *testing.T, q string, rows *sqlmock.Rows, args ...any) (*NamedStmt, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock := newMockDB(t)
	eq := mock.ExpectPrepare(Parse(q).SQL()).ExpectQuery()
	if len(args) > 0 {
		eq = eq.WithArgs(toDriverArgs(args)...)
	}
	eq.WillReturnRows(rows)

	s, err := Prepare(context.Background(), db, q)
	assertNoError(t, err)
	return s, mock, func() { db.Close() }
}

func toDriverArgs(args []any) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

type Upper string

func (u *Upper) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		*u = Upper(strings.ToUpper(string(v)))
	case string:
		*u = Upper(strings.ToUpper(v))
	default:
		return fmt.Errorf("unsupported: %T", src)
	}
	return nil
}

// --------------------------------
// ScanOne
// --------------------------------

// TestMapper_ScanOne_Primitive reads one value into a basic Go type.
func TestMapper_ScanOne_Primitive(t *testing.T) {
	s, mock, done := prepareQuery(t, "SELECT v FROM t WHERE id = :id",
		sqlmock.NewRows([]string{"v"}).AddRow(42), 7)
	defer done()

	assertNoError(t, s.SetInt("id", 7))
	var v int
	assertNoError(t, s.ScanOne(context.Background(), &v))
	if v != 42 {
		t.Fatalf("got=%d, want 42", v)
	}
	assertExpectations(t, mock)
}

// TestMapper_ScanOne_NoRows returns sql.ErrNoRows for an empty result.
func TestMapper_ScanOne_NoRows(t *testing.T) {
	s, _, done := prepareQuery(t, "SELECT v FROM t", sqlmock.NewRows([]string{"v"}))
	defer done()

	var v int
	if err := s.ScanOne(context.Background(), &v); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

// TestMapper_ScanOne_MoreThanOneRow rejects a second row.
func TestMapper_ScanOne_MoreThanOneRow(t *testing.T) {
	s, _, done := prepareQuery(t, "SELECT v FROM t", sqlmock.NewRows([]string{"v"}).AddRow(1).AddRow(2))
	defer done()

	var v int
	if err := s.ScanOne(context.Background(), &v); !errors.Is(err, ErrMoreThanOneRow) {
		t.Fatalf("expected ErrMoreThanOneRow, got %v", err)
	}
}

// TestMapper_ScanOne_Struct maps columns by db tag and field name, ignores
// unknown columns and handles NULL into pointer fields.
func TestMapper_ScanOne_Struct(t *testing.T) {
	type Audit struct {
		CreatedAt time.Time `db:"created_at"`
	}
	type User struct {
		*Audit
		ID     int     `db:"id"`
		Name   string  // no tag
		Nick   *string `db:"nick"`
		Secret string  `db:"-"`
		Shout  Upper   `db:"shout"`
		hidden int
	}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "Name", "nick", "Secret", "shout", "created_at", "extra"}).
		AddRow(5, "ann", nil, "x", "hey", ts, "ignored")

	s, _, done := prepareQuery(t, "SELECT * FROM users WHERE id = :id", rows, 5)
	defer done()
	assertNoError(t, s.SetInt("id", 5))

	var u User
	assertNoError(t, s.ScanOne(context.Background(), &u))
	if u.ID != 5 || u.Name != "ann" || u.Nick != nil || u.Secret != "" || u.Shout != "HEY" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.Audit == nil || !u.CreatedAt.Equal(ts) {
		t.Fatalf("embedded pointer not populated: %+v", u.Audit)
	}
}

// TestMapper_ScanOne_Scanner scans into a sql.Scanner with a single column.
func TestMapper_ScanOne_Scanner(t *testing.T) {
	s, _, done := prepareQuery(t, "SELECT u FROM t", sqlmock.NewRows([]string{"u"}).AddRow("ciao"))
	defer done()

	var u Upper
	assertNoError(t, s.ScanOne(context.Background(), &u))
	if u != "CIAO" {
		t.Fatalf("got=%q, want CIAO", u)
	}
}

// TestMapper_ScanOne_Errors covers destination and shape mismatches.
func TestMapper_ScanOne_Errors(t *testing.T) {
	s, _, done := prepareQuery(t, "SELECT a, b FROM t", sqlmock.NewRows([]string{"a", "b"}).AddRow(1, 2))
	defer done()

	var v int
	err := s.ScanOne(context.Background(), &v)
	if err == nil || !strings.Contains(err.Error(), "requires 1 column") {
		t.Fatalf("expected column count error, got %v", err)
	}

	s2, _, done2 := prepareQuery(t, "SELECT a FROM t", sqlmock.NewRows([]string{"a"}).AddRow(1))
	defer done2()
	if err := s2.ScanOne(context.Background(), v); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for non-pointer dest, got %v", err)
	}
}

// TestMapper_ScanOne_Ambiguous rejects two embedded fields claiming one column.
func TestMapper_ScanOne_Ambiguous(t *testing.T) {
	type A struct {
		X int `db:"x"`
	}
	type B struct {
		X int `db:"x"`
	}
	type AB struct {
		A
		B
	}
	s, _, done := prepareQuery(t, "SELECT x FROM t", sqlmock.NewRows([]string{"x"}).AddRow(1))
	defer done()

	var dst AB
	if err := s.ScanOne(context.Background(), &dst); !errors.Is(err, errFieldAmbiguous) {
		t.Fatalf("expected errFieldAmbiguous, got %v", err)
	}
}

// --------------------------------
// ScanAll
// --------------------------------

// TestMapper_ScanAll_Structs fills a slice of structs and a slice of pointers.
func TestMapper_ScanAll_Structs(t *testing.T) {
	type Row struct {
		ID   int    `db:"id"`
		Name string `db:"name"`
	}
	newRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a").AddRow(2, "b")
	}

	s, _, done := prepareQuery(t, "SELECT id, name FROM t WHERE k = :k", newRows(), "x")
	defer done()
	assertNoError(t, s.SetString("k", "x"))

	out := []Row{{ID: 99}}
	assertNoError(t, s.ScanAll(context.Background(), &out))
	if len(out) != 2 || out[0] != (Row{1, "a"}) || out[1] != (Row{2, "b"}) {
		t.Fatalf("unexpected rows: %+v", out)
	}

	s2, _, done2 := prepareQuery(t, "SELECT id, name FROM t", newRows())
	defer done2()
	var ptrs []*Row
	assertNoError(t, s2.ScanAll(context.Background(), &ptrs))
	if len(ptrs) != 2 || *ptrs[1] != (Row{2, "b"}) {
		t.Fatalf("unexpected rows: %+v", ptrs)
	}
}

// TestMapper_ScanAll_Primitives fills a slice of single-column values.
func TestMapper_ScanAll_Primitives(t *testing.T) {
	s, _, done := prepareQuery(t, "SELECT v FROM t", sqlmock.NewRows([]string{"v"}).AddRow(1).AddRow(2).AddRow(3))
	defer done()

	var vs []int64
	assertNoError(t, s.ScanAll(context.Background(), &vs))
	if len(vs) != 3 || vs[0] != 1 || vs[2] != 3 {
		t.Fatalf("unexpected values: %v", vs)
	}
}

// TestMapper_ScanAll_BadDest rejects a non-slice destination.
func TestMapper_ScanAll_BadDest(t *testing.T) {
	s, _, done := prepareQuery(t, "SELECT v FROM t", sqlmock.NewRows([]string{"v"}).AddRow(1))
	defer done()

	var v int
	if err := s.ScanAll(context.Background(), &v); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

// TestMapper_FieldIndexMap_Shallowest ensures an outer field shadows an embedded one.
func TestMapper_FieldIndexMap_Shallowest(t *testing.T) {
	type Inner struct {
		ID int `db:"id"`
	}
	type Outer struct {
		Inner
		ID int `db:"id"`
	}
	m := fieldIndexMap(reflect.TypeOf(Outer{}))
	fi, ok := m["id"]
	if !ok || fi.ambiguous || len(fi.index) != 1 || fi.index[0] != 1 {
		t.Fatalf("fieldIndexMap[id] = %+v, %v", fi, ok)
	}
}
