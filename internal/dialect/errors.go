package dialect

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration reports a provider set up incorrectly, such as a
	// missing converter or a converter without a column definition.
	ErrConfiguration = errors.New("dialect: configuration error")

	// ErrUnsupported reports an operation the engine was never configured
	// for. It is distinct from an absent object, which probes report as false.
	ErrUnsupported = fmt.Errorf("dialect: %w", stderrors.ErrUnsupported)

	// ErrStatement reports a statement that cannot be built.
	ErrStatement = errors.New("dialect: invalid statement")

	ErrNoUpdateFields   = fmt.Errorf("%w: no valid update properties provided", ErrStatement)
	ErrNoDeleteCriteria = fmt.Errorf("%w: DELETE's must have at least 1 criteria", ErrStatement)

	// ErrFieldNotFound reports a parameter bound to a field the model lacks.
	ErrFieldNotFound = errors.New("dialect: field definition not found")
)

func unsupported(p *Provider, op string) error {
	return errors.Wrapf(ErrUnsupported, "%s is not implemented on the %s provider", op, p.Name())
}
