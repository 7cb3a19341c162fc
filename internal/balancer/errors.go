package balancer

import (
	"fmt"
)

// ErrNonConvergence is returned when the balancer still stages moves after the
// maximum number of passes.
type ErrNonConvergence struct {
	Passes int
	error
}

func NewErrNonConvergence(passes int) *ErrNonConvergence {
	return &ErrNonConvergence{
		Passes: passes,
		error:  fmt.Errorf("inventory did not converge after %d passes", passes),
	}
}
