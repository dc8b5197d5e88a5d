package puzzle

import (
	"errors"
	"fmt"
	"slices"

	"github.com/playperu/digitduel/internal/digitduel"
)

var (
	ErrDigitMismatch    = errors.New("expression must use every digit exactly once")
	ErrOperatorDisabled = errors.New("operator not allowed")
	ErrWrongTarget      = errors.New("expression does not reach the target")
)

// Verify checks expr against p. A nil error means the answer is correct.
func Verify(p digitduel.Problem, expr string) error {
	e, err := Parse(expr)
	if err != nil {
		return err
	}

	got := slices.Clone(e.Digits)
	want := slices.Clone(p.Digits)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return ErrDigitMismatch
	}

	for _, op := range e.Operators {
		if !slices.Contains(p.Operators, op) || slices.Contains(p.Disabled, op) {
			return fmt.Errorf("%w: %s", ErrOperatorDisabled, op)
		}
	}

	v, ok := e.Integer()
	if !ok || v != p.Target {
		return ErrWrongTarget
	}
	return nil
}
