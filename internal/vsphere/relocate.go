package vsphere

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/types"
)

// Relocate moves the running vm to the target host and waits for the task to finish.
// Storage and resource pool are left unchanged.
func (c *Client) Relocate(ctx context.Context, vm types.ManagedObjectReference, target types.ManagedObjectReference) error {
	host := target
	spec := types.VirtualMachineRelocateSpec{
		Host: &host,
	}

	task, err := object.NewVirtualMachine(c.vim, vm).Relocate(ctx, spec, types.VirtualMachineMovePriorityDefaultPriority)
	if err != nil {
		return errors.Wrapf(err, "failed to start relocation of %s", vm.Value)
	}

	if err := task.Wait(ctx); err != nil {
		return errors.Wrapf(err, "relocation of %s to %s failed", vm.Value, target.Value)
	}
	return nil
}
