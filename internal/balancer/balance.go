package balancer

import (
	"github.com/kubev2v/memory-balancer/internal/inventory"
	"go.uber.org/zap"
)

// Balance runs one balancing pass over the snapshot.
//
// Every ordered pair of co-cluster hosts (x, y) is visited in host enumeration order.
// When x is more utilized than y by more than tolerance percentage points, the first
// powered on, unstaged vm of x whose memory is smaller than the used memory difference
// between x and y is staged to y. At most one vm is staged per pair. VMs with no
// memory allocated are never staged: moving them leaves both hosts unchanged.
//
// Staging updates the snapshot in place: the vm is reassigned to y and the used memory
// of both hosts is projected, so later pairs of the same pass see the projected state.
func Balance(snap *inventory.Snapshot, tolerance float64) *inventory.StagingSet {
	staging := inventory.NewStagingSet()

	for _, pair := range snap.ComparablePairs() {
		x, y := pair.Source, pair.Target
		if !inventory.Exceeds(x, y, tolerance) {
			continue
		}

		vm := selectCandidate(snap, x, y)
		if vm == nil {
			continue
		}

		if _, ok := staging.Stage(vm, x, y); ok {
			zap.S().Named("balancer").Infof("Staging %s to migrate from %s to %s", vm.Name, x, y)
		}
	}

	return staging
}

// selectCandidate returns the first vm of x that can move to y without inverting the
// imbalance between them. VMs without memory are never selected since moving them
// cannot change utilization.
func selectCandidate(snap *inventory.Snapshot, x, y *inventory.Host) *inventory.VirtualMachine {
	delta := inventory.MemoryDelta(x, y)
	for _, vm := range snap.VMsOn(x.Ref) {
		if !vm.PoweredOn() || vm.Staged {
			continue
		}
		if vm.MemoryAllocatedMB <= 0 {
			continue
		}
		if vm.MemoryAllocatedMB < delta {
			return vm
		}
	}
	return nil
}
