package inventory

import (
	"github.com/vmware/govmomi/vim25/types"
	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	kindVM      = "VirtualMachine"
	kindHost    = "HostSystem"
	kindCluster = "ClusterComputeResource"

	bytesPerMB = 1024 * 1024
)

// Snapshot is the state of the inventory at the time it was fetched.
// Every balancing pass owns its snapshot: entities are never shared between passes.
type Snapshot struct {
	Hosts    []*Host
	VMs      []*VirtualMachine
	Clusters []*Cluster

	hostsByRef     map[types.ManagedObjectReference]*Host
	clustersByHost map[types.ManagedObjectReference]sets.Set[string]
}

// HostPair is an ordered pair of distinct hosts sharing at least one cluster.
type HostPair struct {
	Source *Host
	Target *Host
}

// NewSnapshot builds the entities from the raw records. Records missing a
// required property are skipped and reported; only powered on vms are kept.
func NewSnapshot(records Records) (*Snapshot, []error) {
	s := &Snapshot{
		hostsByRef:     make(map[types.ManagedObjectReference]*Host, len(records.Hosts)),
		clustersByHost: make(map[types.ManagedObjectReference]sets.Set[string]),
	}
	var skipped []error

	for _, r := range records.Hosts {
		host, err := newHost(r)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		if _, found := s.hostsByRef[host.Ref]; found {
			skipped = append(skipped, NewErrDuplicateRecord(kindHost, host.Ref.Value))
			continue
		}
		s.hostsByRef[host.Ref] = host
		s.Hosts = append(s.Hosts, host)
	}

	names := sets.New[string]()
	for _, r := range records.VMs {
		vm, err := newVirtualMachine(r)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		if !vm.PoweredOn() {
			continue
		}
		if names.Has(vm.Name) {
			skipped = append(skipped, NewErrDuplicateRecord(kindVM, vm.Name))
			continue
		}
		names.Insert(vm.Name)
		s.VMs = append(s.VMs, vm)
	}

	for _, r := range records.Clusters {
		if r.Name == nil {
			skipped = append(skipped, NewErrIncompleteRecord(kindCluster, r.Ref.Value, "name"))
			continue
		}
		cluster := &Cluster{
			Ref:   r.Ref,
			Name:  *r.Name,
			Hosts: sets.New(r.Hosts...),
		}
		for _, ref := range r.Hosts {
			if _, found := s.clustersByHost[ref]; !found {
				s.clustersByHost[ref] = sets.New[string]()
			}
			s.clustersByHost[ref].Insert(r.Ref.Value)
		}
		s.Clusters = append(s.Clusters, cluster)
	}

	return s, skipped
}

func newHost(r HostRecord) (*Host, error) {
	if r.Ref == nil {
		return nil, NewErrIncompleteRecord(kindHost, r.Name, "config.host")
	}
	if r.MemorySizeBytes == nil {
		return nil, NewErrIncompleteRecord(kindHost, r.Ref.Value, "hardware.memorySize")
	}
	if r.MemoryUsageMB == nil {
		return nil, NewErrIncompleteRecord(kindHost, r.Ref.Value, "summary.quickStats.overallMemoryUsage")
	}
	return &Host{
		Ref:           *r.Ref,
		Name:          r.Name,
		MemoryTotalMB: *r.MemorySizeBytes / bytesPerMB,
		MemoryUsedMB:  int64(*r.MemoryUsageMB),
	}, nil
}

func newVirtualMachine(r VMRecord) (*VirtualMachine, error) {
	if r.Name == nil || *r.Name == "" {
		return nil, NewErrIncompleteRecord(kindVM, r.Ref.Value, "name")
	}
	if r.MemoryMB == nil {
		return nil, NewErrIncompleteRecord(kindVM, *r.Name, "config.hardware.memoryMB")
	}
	if r.Host == nil {
		return nil, NewErrIncompleteRecord(kindVM, *r.Name, "runtime.host")
	}
	if r.PowerState == nil {
		return nil, NewErrIncompleteRecord(kindVM, *r.Name, "runtime.powerState")
	}
	return &VirtualMachine{
		Name:              *r.Name,
		Ref:               r.Ref,
		MemoryAllocatedMB: int64(*r.MemoryMB),
		Host:              *r.Host,
		PowerState:        *r.PowerState,
	}, nil
}

func (s *Snapshot) Host(ref types.ManagedObjectReference) (*Host, bool) {
	h, ok := s.hostsByRef[ref]
	return h, ok
}

// VMsOn returns the vms currently assigned to the host, in enumeration order.
func (s *Snapshot) VMsOn(ref types.ManagedObjectReference) []*VirtualMachine {
	var vms []*VirtualMachine
	for _, vm := range s.VMs {
		if vm.Host == ref {
			vms = append(vms, vm)
		}
	}
	return vms
}

// SharesCluster reports whether both hosts are members of a common cluster.
func (s *Snapshot) SharesCluster(x, y types.ManagedObjectReference) bool {
	cx, ok := s.clustersByHost[x]
	if !ok {
		return false
	}
	cy, ok := s.clustersByHost[y]
	if !ok {
		return false
	}
	return cx.HasAny(cy.UnsortedList()...)
}

// ComparablePairs lists every ordered pair of distinct co-cluster hosts, following
// the host enumeration order. Hosts without capacity are left out.
func (s *Snapshot) ComparablePairs() []HostPair {
	var pairs []HostPair
	for _, x := range s.Hosts {
		if _, ok := x.UtilizationPercent(); !ok {
			continue
		}
		for _, y := range s.Hosts {
			if x.Ref == y.Ref {
				continue
			}
			if _, ok := y.UtilizationPercent(); !ok {
				continue
			}
			if !s.SharesCluster(x.Ref, y.Ref) {
				continue
			}
			pairs = append(pairs, HostPair{Source: x, Target: y})
		}
	}
	return pairs
}
