package exec

import (
	"iter"
	"strconv"

	"github.com/pkg/errors"
)

// ErrConsumed is yielded when a single-pass sequence is ranged over twice.
var ErrConsumed = errors.New("exec: result set already consumed")

// Rows iterates the raw values of each row and closes r at the end. The
// sequence can be ranged over once.
func Rows(r Reader) iter.Seq2[[]any, error] {
	used := false
	return func(yield func([]any, error) bool) {
		if used {
			yield(nil, ErrConsumed)
			return
		}
		used = true
		defer r.Close()
		for r.Next() {
			vals, err := r.Values()
			if !yield(vals, err) || err != nil {
				return
			}
		}
		if err := r.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// ScalarInt64 converts a scalar returned by a driver to int64.
func ScalarInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, errors.New("exec: scalar is NULL")
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return parseInt(string(n))
	case string:
		return parseInt(n)
	default:
		return 0, errors.Errorf("exec: cannot convert scalar %T to int64", v)
	}
}

func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "exec: parse scalar %q", s)
	}
	return int64(f), nil
}
