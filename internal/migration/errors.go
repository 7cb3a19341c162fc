package migration

import (
	"fmt"

	"github.com/kubev2v/memory-balancer/internal/inventory"
)

// ErrRelocation is the failure of a single vm relocation. It never aborts the batch.
type ErrRelocation struct {
	Move *inventory.Move
	error
}

func NewErrRelocation(move *inventory.Move, err error) *ErrRelocation {
	return &ErrRelocation{
		Move:  move,
		error: fmt.Errorf("failed to relocate vm %s to host %s: %w", move.VM.Name, move.Target, err),
	}
}

func (e *ErrRelocation) Unwrap() error {
	return e.error
}
