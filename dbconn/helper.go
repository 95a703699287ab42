// Package dbconn provides a lazily opened, cached *sql.DB with idempotent
// close, plus a file-backed SQLite constructor.
package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidArgument   = errors.New("dbconn: invalid argument")
	ErrDriverUnavailable = errors.New("dbconn: driver not available")
)

// availability holds the driver names already seen registered.
var availability sync.Map // string → struct{}

// Helper opens a database handle on first demand and hands out the same
// handle until Close. Only the creation path takes the lock; once the handle
// exists, DB is a single atomic load. A Helper is safe for concurrent use.
type Helper struct {
	driverName string
	dsn        string
	log        zerolog.Logger
	maxOpen    int

	mu sync.Mutex
	db atomic.Pointer[sql.DB]
}

// Option configures a Helper.
type Option func(*Helper)

// WithLogger sets the logger used for open/close events.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Helper) { h.log = l }
}

// WithMaxOpenConns caps the pool of the opened handle. Values <= 0 keep the
// database/sql default.
func WithMaxOpenConns(n int) Option {
	return func(h *Helper) { h.maxOpen = n }
}

// New returns a Helper for any registered database/sql driver. Nothing is
// opened until DB is called.
func New(driverName, dsn string, opts ...Option) (*Helper, error) {
	if driverName == "" {
		return nil, fmt.Errorf("%w: driver name must not be empty", ErrInvalidArgument)
	}
	if !Available(driverName) {
		return nil, fmt.Errorf("%w: %q", ErrDriverUnavailable, driverName)
	}
	h := &Helper{
		driverName: driverName,
		dsn:        dsn,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Available reports whether a database/sql driver with the given name is
// registered. Only positive answers are remembered, so a driver registered
// later is still found.
func Available(driverName string) bool {
	if _, ok := availability.Load(driverName); ok {
		return true
	}
	if !slices.Contains(sql.Drivers(), driverName) {
		return false
	}
	availability.Store(driverName, struct{}{})
	return true
}

// DriverName returns the database/sql driver name.
func (h *Helper) DriverName() string {
	return h.driverName
}

// DB returns the cached handle, opening and pinging it on first use.
// A failed open is not cached: the next call tries again.
func (h *Helper) DB(ctx context.Context) (*sql.DB, error) {
	if db := h.db.Load(); db != nil {
		return db, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if db := h.db.Load(); db != nil {
		return db, nil
	}

	db, err := sql.Open(h.driverName, h.dsn)
	if err != nil {
		return nil, fmt.Errorf("dbconn: open %s: %w", h.driverName, err)
	}
	if h.maxOpen > 0 {
		db.SetMaxOpenConns(h.maxOpen)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dbconn: ping %s: %w", h.driverName, err)
	}

	h.db.Store(db)
	h.log.Debug().Str("driver", h.driverName).Msg("database opened")
	return db, nil
}

// Close closes the cached handle, if any. It is safe to call repeatedly; a
// later DB call opens a fresh handle.
func (h *Helper) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	db := h.db.Swap(nil)
	if db == nil {
		return nil
	}
	err := db.Close()
	if err != nil {
		h.log.Warn().Err(err).Str("driver", h.driverName).Msg("database close failed")
		return err
	}
	h.log.Debug().Str("driver", h.driverName).Msg("database closed")
	return nil
}
