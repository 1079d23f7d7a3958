package usecase

import (
	"errors"
	"fmt"
)

// ErrInvariant marks a violated safety invariant: negative fill sizes,
// parameter sets outside their clamps, attribution vectors that do not sum
// to one. Callers freeze the affected symbol until an operator acknowledges.
var ErrInvariant = errors.New("invariant violation")

// invariantErr wraps a cause so errors.Is(err, ErrInvariant) holds.
func invariantErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
