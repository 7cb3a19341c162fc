package vsphere

import (
	"context"

	"github.com/kubev2v/memory-balancer/internal/inventory"
	"github.com/pkg/errors"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

const (
	virtualMachineKind = "VirtualMachine"
	hostSystemKind     = "HostSystem"
	clusterKind        = "ClusterComputeResource"
)

var (
	vmProperties      = []string{"name", "config.hardware.memoryMB", "runtime.host", "runtime.powerState"}
	hostProperties    = []string{"name", "hardware.memorySize", "summary.quickStats.overallMemoryUsage", "runtime.connectionState"}
	clusterProperties = []string{"name", "host"}
)

// FetchInventory reads vms, hosts and clusters from a container view rooted at the
// root folder. Any failure is returned as inventory.ErrInventoryFetch.
func (c *Client) FetchInventory(ctx context.Context) (inventory.Records, error) {
	m := view.NewManager(c.vim)
	v, err := m.CreateContainerView(ctx, c.vim.ServiceContent.RootFolder, []string{virtualMachineKind, hostSystemKind, clusterKind}, true)
	if err != nil {
		return inventory.Records{}, inventory.NewErrInventoryFetch(errors.Wrap(err, "failed to create container view"))
	}
	defer func() {
		if err := v.Destroy(ctx); err != nil {
			zap.S().Named("vsphere").Warnf("failed to destroy container view: %v", err)
		}
	}()

	var vms []mo.VirtualMachine
	if err := v.Retrieve(ctx, []string{virtualMachineKind}, vmProperties, &vms); err != nil {
		return inventory.Records{}, inventory.NewErrInventoryFetch(errors.Wrap(err, "failed to retrieve virtual machines"))
	}

	var hosts []mo.HostSystem
	if err := v.Retrieve(ctx, []string{hostSystemKind}, hostProperties, &hosts); err != nil {
		return inventory.Records{}, inventory.NewErrInventoryFetch(errors.Wrap(err, "failed to retrieve hosts"))
	}

	var clusters []mo.ClusterComputeResource
	if err := v.Retrieve(ctx, []string{clusterKind}, clusterProperties, &clusters); err != nil {
		return inventory.Records{}, inventory.NewErrInventoryFetch(errors.Wrap(err, "failed to retrieve clusters"))
	}

	zap.S().Named("vsphere").Debugf("retrieved %d vms, %d hosts, %d clusters", len(vms), len(hosts), len(clusters))

	records := inventory.Records{
		VMs:      make([]inventory.VMRecord, 0, len(vms)),
		Hosts:    make([]inventory.HostRecord, 0, len(hosts)),
		Clusters: make([]inventory.ClusterRecord, 0, len(clusters)),
	}
	for _, vm := range vms {
		records.VMs = append(records.VMs, toVMRecord(vm))
	}
	for _, h := range hosts {
		records.Hosts = append(records.Hosts, toHostRecord(h))
	}
	for _, cl := range clusters {
		records.Clusters = append(records.Clusters, toClusterRecord(cl))
	}

	return records, nil
}

func toVMRecord(vm mo.VirtualMachine) inventory.VMRecord {
	r := inventory.VMRecord{
		Ref:  vm.Reference(),
		Host: vm.Runtime.Host,
	}
	if vm.Name != "" {
		name := vm.Name
		r.Name = &name
	}
	if vm.Config != nil {
		memory := vm.Config.Hardware.MemoryMB
		r.MemoryMB = &memory
	}
	if vm.Runtime.PowerState != "" {
		state := vm.Runtime.PowerState
		r.PowerState = &state
	}
	return r
}

// toHostRecord leaves the memory usage unset unless the host is connected: quick
// stats of a disconnected or not responding host are zero, not measured.
func toHostRecord(h mo.HostSystem) inventory.HostRecord {
	ref := h.Reference()
	r := inventory.HostRecord{
		Ref:  &ref,
		Name: h.Name,
	}
	if h.Runtime.ConnectionState == types.HostSystemConnectionStateConnected {
		usage := h.Summary.QuickStats.OverallMemoryUsage
		r.MemoryUsageMB = &usage
	}
	if h.Hardware != nil {
		size := h.Hardware.MemorySize
		r.MemorySizeBytes = &size
	}
	return r
}

func toClusterRecord(cl mo.ClusterComputeResource) inventory.ClusterRecord {
	r := inventory.ClusterRecord{
		Ref:   cl.Reference(),
		Hosts: append([]types.ManagedObjectReference(nil), cl.Host...),
	}
	if cl.Name != "" {
		name := cl.Name
		r.Name = &name
	}
	return r
}
