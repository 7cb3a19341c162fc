package inventory

import "github.com/vmware/govmomi/vim25/types"

// Records is the raw property feed returned by the inventory collaborator.
// Optional properties are pointers so that a missing property can be told apart
// from a zero value.
type Records struct {
	VMs      []VMRecord
	Hosts    []HostRecord
	Clusters []ClusterRecord
}

type VMRecord struct {
	Ref        types.ManagedObjectReference
	Name       *string
	MemoryMB   *int32
	Host       *types.ManagedObjectReference
	PowerState *types.VirtualMachinePowerState
}

type HostRecord struct {
	Ref             *types.ManagedObjectReference
	Name            string
	MemorySizeBytes *int64
	MemoryUsageMB   *int32
}

type ClusterRecord struct {
	Ref   types.ManagedObjectReference
	Name  *string
	Hosts []types.ManagedObjectReference
}
