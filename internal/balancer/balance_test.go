package balancer_test

import (
	"github.com/kubev2v/memory-balancer/internal/balancer"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Balance", func() {
	const tolerance = 10.0

	Context("hosts of the same cluster", func() {
		It("stages exactly one move from the more utilized host", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 75).
				withHost("host-y", 100, 70).
				withVM("vm-1", 10, "host-x").
				withVM("vm-2", 5, "host-x").
				withCluster("cluster-a", "host-x", "host-y").
				snapshot()

			staging := balancer.Balance(snap, tolerance)

			Expect(staging.Len()).To(Equal(1))
			move := staging.Moves()[0]
			Expect(move.VM.Name).To(Equal("vm-1"))
			Expect(move.Source.Ref).To(Equal(hostRef("host-x")))
			Expect(move.Target.Ref).To(Equal(hostRef("host-y")))
			Expect(move.VM.Staged).To(BeTrue())
			Expect(move.VM.Host).To(Equal(hostRef("host-y")))
		})

		It("conserves memory usage across the pair", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 60).
				withHost("host-y", 100, 70).
				withVM("vm-1", 30, "host-x").
				withCluster("cluster-a", "host-x", "host-y").
				snapshot()
			x := hostByID(snap, "host-x")
			y := hostByID(snap, "host-y")
			Expect(x.MemoryUsedMB).To(Equal(int64(90)))
			Expect(y.MemoryUsedMB).To(Equal(int64(70)))

			// 30 MB does not fit under the 20 MB difference
			Expect(balancer.Balance(snap, tolerance).Empty()).To(BeTrue())

			snap = newFakeVCenter().
				withHost("host-x", 100, 75).
				withHost("host-y", 100, 70).
				withVM("vm-1", 15, "host-x").
				withCluster("cluster-a", "host-x", "host-y").
				snapshot()
			x = hostByID(snap, "host-x")
			y = hostByID(snap, "host-y")
			before := x.MemoryUsedMB + y.MemoryUsedMB

			staging := balancer.Balance(snap, tolerance)

			Expect(staging.Len()).To(Equal(1))
			Expect(x.MemoryUsedMB).To(Equal(int64(75)))
			Expect(y.MemoryUsedMB).To(Equal(int64(85)))
			Expect(x.MemoryUsedMB + y.MemoryUsedMB).To(Equal(before))
		})

		It("does not move a vm that would invert the imbalance", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 20).
				withHost("host-y", 100, 40).
				withVM("vm-1", 40, "host-x").
				withCluster("cluster-a", "host-x", "host-y").
				snapshot()

			Expect(balancer.Balance(snap, tolerance).Empty()).To(BeTrue())
			Expect(hostByID(snap, "host-x").MemoryUsedMB).To(Equal(int64(60)))
		})

		It("requires the gap to be strictly greater than the tolerance", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 50).
				withHost("host-y", 100, 40).
				withVM("vm-1", 5, "host-x").
				withCluster("cluster-a", "host-x", "host-y").
				snapshot()

			// 55% vs 40%: gap of 15 points
			Expect(balancer.Balance(snap, 15).Empty()).To(BeTrue())
			Expect(balancer.Balance(snap, 14.9).Len()).To(Equal(1))
		})

		It("never stages the same vm twice in a pass", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 60).
				withHost("host-y", 100, 50).
				withHost("host-z", 100, 0).
				withVM("vm-1", 30, "host-x").
				withCluster("cluster-a", "host-x", "host-y", "host-z").
				snapshot()

			staging := balancer.Balance(snap, tolerance)

			Expect(staging.Len()).To(Equal(1))
			Expect(staging.Moves()[0].Target.Ref).To(Equal(hostRef("host-y")))
			Expect(vmByName(snap, "vm-1").Host).To(Equal(hostRef("host-y")))
		})

		It("applies the projected usage to the pairs evaluated later in the pass", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 20).
				withHost("host-y", 100, 0).
				withHost("host-z", 100, 0).
				withVM("vm-1", 30, "host-x").
				withVM("vm-2", 30, "host-x").
				withCluster("cluster-a", "host-x", "host-y", "host-z").
				snapshot()

			staging := balancer.Balance(snap, tolerance)

			Expect(staging.Summary()).To(HaveLen(2))
			Expect(staging.Summary()[0].VM).To(Equal("vm-1"))
			Expect(staging.Summary()[0].Target).To(Equal("host-y"))
			Expect(staging.Summary()[1].VM).To(Equal("vm-2"))
			Expect(staging.Summary()[1].Target).To(Equal("host-z"))
			Expect(hostByID(snap, "host-x").MemoryUsedMB).To(Equal(int64(20)))
			Expect(hostByID(snap, "host-y").MemoryUsedMB).To(Equal(int64(30)))
			Expect(hostByID(snap, "host-z").MemoryUsedMB).To(Equal(int64(30)))
		})

		It("picks vms in enumeration order", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 0).
				withHost("host-y", 100, 30).
				withVM("vm-big", 60, "host-x").
				withVM("vm-small", 10, "host-x").
				withVM("vm-medium", 20, "host-x").
				withCluster("cluster-a", "host-x", "host-y").
				snapshot()

			staging := balancer.Balance(snap, tolerance)

			Expect(staging.Len()).To(Equal(1))
			Expect(staging.Moves()[0].VM.Name).To(Equal("vm-small"))
		})

		It("ignores powered off vms and vms without memory", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 80).
				withHost("host-y", 100, 0).
				withPoweredOffVM("vm-off", 10, "host-x").
				withVM("vm-empty", 0, "host-x").
				withCluster("cluster-a", "host-x", "host-y").
				snapshot()

			Expect(balancer.Balance(snap, tolerance).Empty()).To(BeTrue())
		})
	})

	Context("cluster scoping", func() {
		It("never moves vms between hosts of different clusters", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 60).
				withHost("host-y", 100, 0).
				withVM("vm-1", 10, "host-x").
				withVM("vm-2", 20, "host-x").
				withCluster("cluster-a", "host-x").
				withCluster("cluster-b", "host-y").
				snapshot()

			Expect(balancer.Balance(snap, tolerance).Empty()).To(BeTrue())
		})

		It("compares each pair against its own clusters", func() {
			snap := newFakeVCenter().
				withHost("host-x", 100, 60).
				withHost("host-y", 100, 0).
				withHost("host-z", 100, 0).
				withVM("vm-1", 10, "host-x").
				withCluster("cluster-a", "host-x", "host-y").
				withCluster("cluster-b", "host-z").
				snapshot()

			staging := balancer.Balance(snap, tolerance)

			Expect(staging.Len()).To(Equal(1))
			Expect(staging.Moves()[0].Target.Ref).To(Equal(hostRef("host-y")))
		})

		It("never uses hosts without capacity as donor or receiver", func() {
			snap := newFakeVCenter().
				withHost("host-broken", 0, 50).
				withHost("host-x", 100, 80).
				withHost("host-y", 100, 0).
				withVM("vm-1", 10, "host-broken").
				withCluster("cluster-a", "host-broken", "host-x", "host-y").
				snapshot()

			staging := balancer.Balance(snap, tolerance)

			for _, m := range staging.Moves() {
				Expect(m.Source.Ref).NotTo(Equal(hostRef("host-broken")))
				Expect(m.Target.Ref).NotTo(Equal(hostRef("host-broken")))
			}
			Expect(vmByName(snap, "vm-1").Staged).To(BeFalse())
		})
	})

	It("stages nothing on a balanced inventory", func() {
		snap := newFakeVCenter().
			withHost("host-x", 100, 45).
			withHost("host-y", 100, 40).
			withHost("host-z", 100, 50).
			withVM("vm-1", 5, "host-x").
			withCluster("cluster-a", "host-x", "host-y", "host-z").
			snapshot()

		Expect(balancer.Balance(snap, tolerance).Empty()).To(BeTrue())
	})
})
