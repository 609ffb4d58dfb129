package exec

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrCommandClosed is returned when a disposed command is executed.
var ErrCommandClosed = errors.New("exec: command is closed")

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DBConn adapts *sql.DB to Conn.
type DBConn struct {
	db      *sql.DB
	binder  Binder
	tx      *sql.Tx
	timeout *time.Duration

	mu     sync.Mutex
	opened bool
	last   string
}

// NewDBConn wraps db. A nil binder binds parameters by name.
func NewDBConn(db *sql.DB, binder Binder) *DBConn {
	if binder == nil {
		binder = NamedBinder{}
	}
	return &DBConn{db: db, binder: binder}
}

// DB returns the underlying handle.
func (c *DBConn) DB() *sql.DB { return c.db }

// WithTx returns a connection whose commands are enlisted in tx.
func (c *DBConn) WithTx(tx *sql.Tx) *DBConn {
	return &DBConn{db: c.db, binder: c.binder, tx: tx, timeout: c.timeout, opened: true}
}

// BeginTx starts a transaction and returns a connection bound to it.
func (c *DBConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*DBConn, *sql.Tx, error) {
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin transaction")
	}
	return c.WithTx(tx), tx, nil
}

// SetCommandTimeout overrides the filter's default timeout for this connection.
func (c *DBConn) SetCommandTimeout(d time.Duration) { c.timeout = &d }

func (c *DBConn) CommandTimeout() (time.Duration, bool) {
	if c.timeout == nil {
		return 0, false
	}
	return *c.timeout, true
}

func (c *DBConn) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return nil
	}
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "open connection")
	}
	c.opened = true
	return nil
}

func (c *DBConn) Transaction() Tx {
	if c.tx == nil {
		return nil
	}
	return c.tx
}

func (c *DBConn) LastCommandText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *DBConn) SetLastCommandText(text string) {
	c.mu.Lock()
	c.last = text
	c.mu.Unlock()
}

func (c *DBConn) CreateCommand() Command {
	return &sqlCommand{binder: c.binder, eq: c.db}
}

type sqlCommand struct {
	binder  Binder
	eq      execQuerier
	text    string
	typ     CommandType
	params  []*Param
	timeout time.Duration
	readers []*sqlReader
	closed  bool
}

func (c *sqlCommand) Text() string               { return c.text }
func (c *sqlCommand) SetText(text string)        { c.text = text }
func (c *sqlCommand) Type() CommandType          { return c.typ }
func (c *sqlCommand) SetType(t CommandType)      { c.typ = t }
func (c *sqlCommand) Params() []*Param           { return c.params }
func (c *sqlCommand) AddParam(p *Param)          { c.params = append(c.params, p) }
func (c *sqlCommand) ClearParams()               { c.params = nil }
func (c *sqlCommand) SetTimeout(d time.Duration) { c.timeout = d }

func (c *sqlCommand) SetTransaction(tx Tx) {
	if eq, ok := tx.(execQuerier); ok {
		c.eq = eq
	}
}

func (c *sqlCommand) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}

func (c *sqlCommand) ExecNonQuery(ctx context.Context) (int64, error) {
	if c.closed {
		return 0, ErrCommandClosed
	}
	ctx, cancel := c.context(ctx)
	defer cancel()
	text, args := c.binder.Rebind(c.text, c.params)
	res, err := c.eq.ExecContext(ctx, text, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *sqlCommand) ExecReader(ctx context.Context) (Reader, error) {
	if c.closed {
		return nil, ErrCommandClosed
	}
	ctx, cancel := c.context(ctx)
	text, args := c.binder.Rebind(c.text, c.params)
	rows, err := c.eq.QueryContext(ctx, text, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	r := &sqlReader{rows: rows, cancel: cancel}
	c.readers = append(c.readers, r)
	return r, nil
}

func (c *sqlCommand) ExecScalar(ctx context.Context) (any, error) {
	r, err := c.ExecReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, r.Err()
	}
	vals, err := r.Values()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals[0], nil
}

// Close releases any reader still open.
func (c *sqlCommand) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var first error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.readers = nil
	return first
}

type sqlReader struct {
	rows   *sql.Rows
	cancel context.CancelFunc
	closed bool
}

func (r *sqlReader) Next() bool                 { return r.rows.Next() }
func (r *sqlReader) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlReader) Err() error                 { return r.rows.Err() }

func (r *sqlReader) Values() ([]any, error) {
	cols, err := r.rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

func (r *sqlReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rows.Close()
	r.cancel()
	return err
}
