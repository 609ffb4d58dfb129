package exec

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"
)

// Options is the execution context of a Filter.
type Options struct {
	// CommandTimeout applies when the connection has no override. Zero leaves
	// the driver default.
	CommandTimeout time.Duration
	// ExceptionHook observes every failed operation before the error is returned.
	ExceptionHook func(cmd Command, err error)
	// AfterExecHook observes every disposed command.
	AfterExecHook func(cmd Command)
	// Logger defaults to zap.L().
	Logger *zap.Logger
}

// DefaultOptions is used by filters created without options.
var DefaultOptions = Options{}

// Filter wraps command creation, execution and disposal.
type Filter struct {
	opts Options
}

// NewFilter returns a filter; nil opts selects DefaultOptions.
func NewFilter(opts *Options) *Filter {
	if opts == nil {
		return &Filter{opts: DefaultOptions}
	}
	return &Filter{opts: *opts}
}

func (f *Filter) logger() *zap.Logger {
	if f.opts.Logger != nil {
		return f.opts.Logger
	}
	return zap.L()
}

// CreateCommand creates a command enlisted in the connection's transaction
// with the effective timeout, and clears the connection's last command text.
func (f *Filter) CreateCommand(conn Conn) Command {
	cmd := conn.CreateCommand()
	if tx := conn.Transaction(); tx != nil {
		cmd.SetTransaction(tx)
	}
	if d, ok := conn.CommandTimeout(); ok {
		cmd.SetTimeout(d)
	} else if f.opts.CommandTimeout > 0 {
		cmd.SetTimeout(f.opts.CommandTimeout)
	}
	conn.SetLastCommandText("")
	return cmd
}

// DisposeCommand runs the after-exec hook, records the command text on the
// connection and closes the command.
func (f *Filter) DisposeCommand(cmd Command, conn Conn) {
	if cmd == nil {
		return
	}
	if f.opts.AfterExecHook != nil {
		f.opts.AfterExecHook(cmd)
	}
	conn.SetLastCommandText(cmd.Text())
	if err := cmd.Close(); err != nil {
		f.logger().Warn("close command", zap.String("sql", cmd.Text()), zap.Error(err))
	}
}

func (f *Filter) fail(cmd Command, err error) error {
	f.logger().Warn("command failed", zap.String("sql", cmd.Text()), zap.Error(err))
	if f.opts.ExceptionHook != nil {
		f.opts.ExceptionHook(cmd, err)
	}
	return err
}

func (f *Filter) trace(cmd Command) {
	if ce := f.logger().Check(zap.DebugLevel, "exec"); ce != nil {
		names := make([]string, len(cmd.Params()))
		for i, p := range cmd.Params() {
			names[i] = p.Name
		}
		ce.Write(zap.String("sql", cmd.Text()), zap.Strings("params", names))
	}
}

// Exec runs fn against a fresh command and disposes it on every path.
func (f *Filter) Exec(ctx context.Context, conn Conn, fn func(context.Context, Command) error) error {
	_, err := Run(ctx, f, conn, func(ctx context.Context, cmd Command) (struct{}, error) {
		return struct{}{}, fn(ctx, cmd)
	})
	return err
}

// ExecCommand runs fn and hands the command to the caller, who owns it. Only
// the command text is recorded; no hooks run.
func (f *Filter) ExecCommand(ctx context.Context, conn Conn, fn func(context.Context, Command) error) (Command, error) {
	if err := conn.Open(ctx); err != nil {
		return nil, err
	}
	cmd := f.CreateCommand(conn)
	err := fn(ctx, cmd)
	conn.SetLastCommandText(cmd.Text())
	return cmd, err
}

// ExecAsync is Exec on its own goroutine.
func (f *Filter) ExecAsync(ctx context.Context, conn Conn, fn func(context.Context, Command) error) *Future[struct{}] {
	return RunAsync(ctx, f, conn, func(ctx context.Context, cmd Command) (struct{}, error) {
		return struct{}{}, fn(ctx, cmd)
	})
}

// ExecCommandAsync is ExecCommand on its own goroutine; nothing is recorded.
func (f *Filter) ExecCommandAsync(ctx context.Context, conn Conn, fn func(context.Context, Command) error) *Future[Command] {
	return Go(func() (Command, error) {
		if err := conn.Open(ctx); err != nil {
			return nil, err
		}
		cmd := f.CreateCommand(conn)
		return cmd, fn(ctx, cmd)
	})
}

// Run runs fn against a fresh command and disposes it on every path. A
// failure is passed to the exception hook before it is returned.
func Run[T any](ctx context.Context, f *Filter, conn Conn, fn func(context.Context, Command) (T, error)) (val T, err error) {
	if err := conn.Open(ctx); err != nil {
		return val, err
	}
	cmd := f.CreateCommand(conn)
	defer f.DisposeCommand(cmd, conn)
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				f.fail(cmd, e)
			}
			panic(r)
		}
	}()

	val, err = fn(ctx, cmd)
	if err != nil {
		return val, f.fail(cmd, err)
	}
	f.trace(cmd)
	return val, nil
}

// RunAsync is Run on its own goroutine. A joined error holding a single error
// is unwrapped before the hook sees it.
func RunAsync[T any](ctx context.Context, f *Filter, conn Conn, fn func(context.Context, Command) (T, error)) *Future[T] {
	return Go(func() (val T, err error) {
		if err := conn.Open(ctx); err != nil {
			return val, unwrapSingle(err)
		}
		cmd := f.CreateCommand(conn)
		defer f.DisposeCommand(cmd, conn)
		defer func() {
			if r := recover(); r != nil {
				if e, ok := r.(error); ok {
					f.fail(cmd, e)
				}
				panic(r)
			}
		}()

		val, err = fn(ctx, cmd)
		if err != nil {
			return val, f.fail(cmd, unwrapSingle(err))
		}
		f.trace(cmd)
		return val, nil
	})
}

// Lazy returns a sequence produced by fn against a fresh command. The
// command is created when iteration starts and disposed when the sequence is
// exhausted or the loop exits early; each new range creates a new command.
func Lazy[T any](ctx context.Context, f *Filter, conn Conn, fn func(context.Context, Command) (iter.Seq2[T, error], error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if err := conn.Open(ctx); err != nil {
			var zero T
			yield(zero, err)
			return
		}
		cmd := f.CreateCommand(conn)
		defer f.DisposeCommand(cmd, conn)

		seq, err := fn(ctx, cmd)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for v, err := range seq {
			if !yield(v, err) {
				return
			}
		}
		f.trace(cmd)
	}
}
