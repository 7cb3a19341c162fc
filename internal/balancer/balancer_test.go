package balancer_test

import (
	"context"
	"errors"
	"time"

	"github.com/kubev2v/memory-balancer/internal/balancer"
	"github.com/kubev2v/memory-balancer/internal/inventory"
	"github.com/kubev2v/memory-balancer/internal/migration"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// recordingExecutor counts the plans handed over by the balancer.
type recordingExecutor struct {
	executor *migration.Executor
	plans    []int
}

func (r *recordingExecutor) Execute(ctx context.Context, staging *inventory.StagingSet) *migration.Report {
	r.plans = append(r.plans, staging.Len())
	return r.executor.Execute(ctx, staging)
}

var _ = Describe("Balancer", func() {
	var (
		vcenter  *fakeVCenter
		executor *recordingExecutor
	)

	newBalancer := func(maxPasses int) *balancer.Balancer {
		executor = &recordingExecutor{executor: migration.NewExecutor(vcenter, time.Second)}
		return balancer.New(vcenter, executor, 10, maxPasses)
	}

	Context("convergence", func() {
		It("moves the vm once and stops when no vm can correct the remaining gap", func() {
			vcenter = newFakeVCenter().
				withHost("host-a", 100, 60).
				withHost("host-b", 100, 0).
				withVM("vm-1", 40, "host-a").
				withCluster("cluster-a", "host-a", "host-b")

			result, err := newBalancer(10).Run(context.TODO())

			Expect(err).To(BeNil())
			Expect(vcenter.relocations).To(Equal([]string{"vm-1->host-b"}))
			Expect(vcenter.hostOf("vm-1")).To(Equal("host-b"))
			Expect(result.Passes).To(Equal(2))
			Expect(result.Staged).To(Equal(1))
			Expect(result.Migrated).To(Equal(1))
			Expect(result.Failed).To(Equal(0))
			Expect(executor.plans).To(Equal([]int{1}))

			snap := vcenter.snapshot()
			Expect(hostByID(snap, "host-a").MemoryUsedMB).To(Equal(int64(60)))
			Expect(hostByID(snap, "host-b").MemoryUsedMB).To(Equal(int64(40)))
		})

		It("stops after exactly one pass on a balanced inventory", func() {
			vcenter = newFakeVCenter().
				withHost("host-a", 100, 40).
				withHost("host-b", 100, 45).
				withVM("vm-1", 10, "host-a").
				withCluster("cluster-a", "host-a", "host-b")

			result, err := newBalancer(10).Run(context.TODO())

			Expect(err).To(BeNil())
			Expect(result.Passes).To(Equal(1))
			Expect(executor.plans).To(BeEmpty())
			Expect(vcenter.fetches).To(Equal(1))
		})

		It("refreshes the inventory after every executed plan", func() {
			vcenter = newFakeVCenter().
				withHost("host-a", 100, 0).
				withHost("host-b", 100, 0).
				withVM("vm-1", 20, "host-a").
				withVM("vm-2", 20, "host-a").
				withVM("vm-3", 20, "host-a").
				withVM("vm-4", 20, "host-a").
				withCluster("cluster-a", "host-a", "host-b")

			result, err := newBalancer(10).Run(context.TODO())

			Expect(err).To(BeNil())
			// 80/0 -> 60/20 -> 40/40
			Expect(vcenter.relocations).To(Equal([]string{"vm-1->host-b", "vm-2->host-b"}))
			Expect(result.Passes).To(Equal(3))
			Expect(vcenter.fetches).To(Equal(3))
		})
	})

	Context("failures", func() {
		It("aborts when the inventory cannot be fetched", func() {
			vcenter = newFakeVCenter().
				withHost("host-a", 100, 60).
				withHost("host-b", 100, 0).
				withVM("vm-1", 40, "host-a").
				withCluster("cluster-a", "host-a", "host-b")
			vcenter.fetchErr = errors.New("connection refused")

			_, err := newBalancer(10).Run(context.TODO())

			var fetchErr *inventory.ErrInventoryFetch
			Expect(errors.As(err, &fetchErr)).To(BeTrue())
			Expect(executor.plans).To(BeEmpty())
			Expect(vcenter.relocations).To(BeEmpty())
		})

		It("aborts when the refresh after a migration fails", func() {
			vcenter = newFakeVCenter().
				withHost("host-a", 100, 60).
				withHost("host-b", 100, 0).
				withVM("vm-1", 40, "host-a").
				withCluster("cluster-a", "host-a", "host-b")
			vcenter.fetchErr = errors.New("session expired")
			vcenter.failAfter = 1

			result, err := newBalancer(10).Run(context.TODO())

			var fetchErr *inventory.ErrInventoryFetch
			Expect(errors.As(err, &fetchErr)).To(BeTrue())
			Expect(result.Migrated).To(Equal(1))
		})

		It("keeps going when a relocation fails and reports non convergence", func() {
			vcenter = newFakeVCenter().
				withHost("host-a", 100, 0).
				withHost("host-b", 100, 0).
				withVM("vm-1", 30, "host-a").
				withVM("vm-2", 30, "host-a").
				withCluster("cluster-a", "host-a", "host-b")
			vcenter.relocateErrs["vm-1"] = errors.New("incompatible cpu")

			result, err := newBalancer(3).Run(context.TODO())

			var nonConvergence *balancer.ErrNonConvergence
			Expect(errors.As(err, &nonConvergence)).To(BeTrue())
			Expect(nonConvergence.Passes).To(Equal(3))
			Expect(result.Passes).To(Equal(3))
			Expect(result.Failed).To(Equal(3))
			Expect(result.Migrated).To(Equal(0))
			Expect(vcenter.hostOf("vm-1")).To(Equal("host-a"))
		})

		It("reports non convergence without refreshing after the last pass", func() {
			vcenter = newFakeVCenter().
				withHost("host-a", 100, 60).
				withHost("host-b", 100, 0).
				withVM("vm-1", 40, "host-a").
				withCluster("cluster-a", "host-a", "host-b")
			vcenter.fetchErr = errors.New("session expired")
			vcenter.failAfter = 1

			result, err := newBalancer(1).Run(context.TODO())

			var nonConvergence *balancer.ErrNonConvergence
			Expect(errors.As(err, &nonConvergence)).To(BeTrue())
			Expect(vcenter.fetches).To(Equal(1))
			Expect(result.Passes).To(Equal(1))
			Expect(result.Migrated).To(Equal(1))
		})

		It("stops when the context is cancelled", func() {
			vcenter = newFakeVCenter().
				withHost("host-a", 100, 60).
				withHost("host-b", 100, 0).
				withVM("vm-1", 40, "host-a").
				withCluster("cluster-a", "host-a", "host-b")

			ctx, cancel := context.WithCancel(context.TODO())
			cancel()

			_, err := newBalancer(10).Run(ctx)

			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(vcenter.relocations).To(BeEmpty())
		})
	})

	Context("plan", func() {
		It("computes one pass without migrating", func() {
			vcenter = newFakeVCenter().
				withHost("host-a", 100, 60).
				withHost("host-b", 100, 0).
				withVM("vm-1", 40, "host-a").
				withCluster("cluster-a", "host-a", "host-b")

			staging, err := newBalancer(10).Plan(context.TODO())

			Expect(err).To(BeNil())
			Expect(staging.Summary()).To(HaveLen(1))
			Expect(staging.Summary()[0].VM).To(Equal("vm-1"))
			Expect(staging.Summary()[0].Target).To(Equal("host-b"))
			Expect(vcenter.relocations).To(BeEmpty())
			Expect(executor.plans).To(BeEmpty())
		})
	})
})
