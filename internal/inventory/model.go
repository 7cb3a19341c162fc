package inventory

import (
	"github.com/vmware/govmomi/vim25/types"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Host is a hypervisor node. MemoryUsedMB is the projected usage while a balancing
// pass is running and the reported usage right after a snapshot.
type Host struct {
	Ref           types.ManagedObjectReference
	Name          string
	MemoryTotalMB int64
	MemoryUsedMB  int64
}

func (h *Host) String() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Ref.Value
}

type VirtualMachine struct {
	Name              string
	Ref               types.ManagedObjectReference
	MemoryAllocatedMB int64
	Host              types.ManagedObjectReference
	PowerState        types.VirtualMachinePowerState
	// Staged is set once the vm has been selected for relocation in the current pass.
	Staged bool
}

func (vm *VirtualMachine) PoweredOn() bool {
	return vm.PowerState == types.VirtualMachinePowerStatePoweredOn
}

type Cluster struct {
	Ref   types.ManagedObjectReference
	Name  string
	Hosts sets.Set[types.ManagedObjectReference]
}
