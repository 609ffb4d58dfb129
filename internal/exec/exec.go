// Package exec runs generated statements against a connection with a fixed
// command lifecycle: create, execute, run hooks, record the text, dispose.
package exec

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// CommandType tells the driver how to interpret the command text.
type CommandType int

const (
	Text CommandType = iota
	StoredProcedure
)

func (t CommandType) String() string {
	if t == StoredProcedure {
		return "StoredProcedure"
	}
	return "Text"
}

// Param is a bound command parameter. Name carries the dialect prefix.
type Param struct {
	Name  string
	Value any
	Size  int
}

// Tx is an ambient transaction a command can be enlisted in. *sql.Tx satisfies it.
type Tx interface {
	Commit() error
	Rollback() error
}

// Conn is the connection-like handle the filter drives.
type Conn interface {
	CreateCommand() Command
	Open(ctx context.Context) error
	// Transaction returns the ambient transaction or nil.
	Transaction() Tx
	// CommandTimeout returns the connection level override, if any.
	CommandTimeout() (time.Duration, bool)
	LastCommandText() string
	SetLastCommandText(text string)
}

// Command is one executable statement.
type Command interface {
	Text() string
	SetText(text string)
	Type() CommandType
	SetType(t CommandType)
	Params() []*Param
	AddParam(p *Param)
	ClearParams()
	SetTransaction(tx Tx)
	SetTimeout(d time.Duration)

	ExecReader(ctx context.Context) (Reader, error)
	ExecNonQuery(ctx context.Context) (int64, error)
	// ExecScalar returns the first column of the first row, or nil when no row is returned.
	ExecScalar(ctx context.Context) (any, error)
	Close() error
}

// Reader iterates the rows of a result set.
type Reader interface {
	Next() bool
	Columns() ([]string, error)
	// Values returns the raw values of the current row.
	Values() ([]any, error)
	Err() error
	Close() error
}

// Binder turns command text with named markers and its parameters into the
// text and argument list a driver accepts.
type Binder interface {
	Rebind(text string, params []*Param) (string, []any)
}

// NamedBinder passes the text through and binds every parameter with sql.Named.
type NamedBinder struct{}

func (NamedBinder) Rebind(text string, params []*Param) (string, []any) {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = sql.Named(strings.TrimLeft(p.Name, "@:$?"), p.Value)
	}
	return text, args
}
