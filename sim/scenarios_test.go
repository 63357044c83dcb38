package sim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/routeforge/corenet/proto/adaptive"
	"github.com/routeforge/corenet/proto/ospf"
	"github.com/routeforge/corenet/proto/rip"
	"github.com/routeforge/corenet/rtcore"
	"github.com/routeforge/corenet/sim"
)

// ringTopology builds an n-node cycle 1..n, each edge the given cost.
func ringTopology(n int, cost float64) rtcore.SimTopology {
	nodes := make([]rtcore.RouterId, n)
	for i := range nodes {
		nodes[i] = rtcore.RouterId(i + 1)
	}
	edges := make([]rtcore.TopologyEdge, n)
	for i := 0; i < n; i++ {
		edges[i] = rtcore.TopologyEdge{A: nodes[i], B: nodes[(i+1)%n], Cost: cost}
	}
	return rtcore.SimTopology{Nodes: nodes, Edges: edges}
}

var _ = Describe("ring of 8, OSPF, no loss", func() {
	It("converges with every node holding a route to every other node", func() {
		cfg := rtcore.SimConfig{
			Seed:              1,
			Protocol:          ospf.ProtocolTag,
			Topology:          ringTopology(8, 1),
			MaxTicks:          60,
			Network:           rtcore.NetworkParams{BaseDelay: 1},
			ConvergenceWindow: 3,
		}
		nodes := make(map[rtcore.RouterId]rtcore.Engine, 8)
		for _, id := range cfg.Topology.Nodes {
			nodes[id] = ospf.New(id, 1, 2, 20)
		}
		te, err := sim.NewTickEngine(cfg, nodes, nil)
		Expect(err).NotTo(HaveOccurred())
		result, err := te.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(result.ConvergedTick).NotTo(BeNil())
		for _, id := range cfg.Topology.Nodes {
			Expect(result.RouteTables[id]).To(HaveLen(8), "node %v should hold its self route plus routes to the other 7 ring nodes", id)
		}
	})
})

var _ = Describe("ring of 6, RIP, split-horizon + poison reverse", func() {
	It("converges and never advertises a non-infinite metric back toward its source", func() {
		cfg := rtcore.SimConfig{
			Seed:              2,
			Protocol:          rip.ProtocolTag,
			Topology:          ringTopology(6, 1),
			MaxTicks:          60,
			Network:           rtcore.NetworkParams{BaseDelay: 1},
			ConvergenceWindow: 3,
		}
		nodes := make(map[rtcore.RouterId]rtcore.Engine, 6)
		for _, id := range cfg.Topology.Nodes {
			nodes[id] = rip.New(id, rip.Params{
				UpdateInterval: 1, NeighborTimeout: 30, InfinityMetric: 64,
				SplitHorizon: true, PoisonReverse: true, TriggeredMinGap: 1,
			})
		}
		te, err := sim.NewTickEngine(cfg, nodes, nil)
		Expect(err).NotTo(HaveOccurred())
		result, err := te.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(result.ConvergedTick).NotTo(BeNil())
		for _, id := range cfg.Topology.Nodes {
			Expect(result.RouteTables[id]).To(HaveLen(6))
		}
	})
})

var _ = Describe("link flap on a ring of 6, OSPF", func() {
	It("changes the route hash at the removal and re-addition ticks, deterministically across runs", func() {
		build := func() *sim.TickEngine {
			cfg := rtcore.SimConfig{
				Seed:     3,
				Protocol: ospf.ProtocolTag,
				Topology: ringTopology(6, 1),
				MaxTicks: 40,
				Network:  rtcore.NetworkParams{BaseDelay: 1},
				Failures: []rtcore.ExternalEvent{
					{Tick: 10, Action: rtcore.ActionRemoveLink, U: 1, V: 2},
					{Tick: 20, Action: rtcore.ActionAddLink, U: 1, V: 2, Metric: 1.0},
				},
				ConvergenceWindow: 3,
			}
			nodes := make(map[rtcore.RouterId]rtcore.Engine, 6)
			for _, id := range cfg.Topology.Nodes {
				nodes[id] = ospf.New(id, 1, 2, 20)
			}
			te, err := sim.NewTickEngine(cfg, nodes, nil)
			Expect(err).NotTo(HaveOccurred())
			return te
		}

		r1, err := build().Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(r1.EventsApplied).To(Equal(2))
		Expect(r1.RouteHashes[10]).NotTo(Equal(r1.RouteHashes[9]), "hash should change the tick the link is removed")
		Expect(r1.RouteHashes[20]).NotTo(Equal(r1.RouteHashes[19]), "hash should change the tick the link is re-added")
		Expect(len(r1.ReconvergedTicks)).To(BeNumerically(">=", 2))

		r2, err := build().Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(r2.RouteHashes).To(Equal(r1.RouteHashes))
	})
})

var _ = Describe("lossy network convergence on a ring of 6, OSPF", func() {
	It("still converges with some messages dropped", func() {
		cfg := rtcore.SimConfig{
			Seed:              4,
			Protocol:          ospf.ProtocolTag,
			Topology:          ringTopology(6, 1),
			MaxTicks:          150,
			Network:           rtcore.NetworkParams{BaseDelay: 1, LossProb: 0.2},
			ConvergenceWindow: 5,
		}
		nodes := make(map[rtcore.RouterId]rtcore.Engine, 6)
		for _, id := range cfg.Topology.Nodes {
			nodes[id] = ospf.New(id, 1, 2, 20)
		}
		te, err := sim.NewTickEngine(cfg, nodes, nil)
		Expect(err).NotTo(HaveOccurred())
		result, err := te.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(result.ConvergedTick).NotTo(BeNil())
		Expect(result.DroppedMessages).To(BeNumerically(">", 0))
	})
})

var _ = Describe("adaptive DDR under queue pressure", func() {
	It("shifts next_hop away from the path reporting higher queue pressure, deterministically", func() {
		// Diamond: 1 has two equal-cost paths to 4, via 2 and via 3.
		topo := rtcore.SimTopology{
			Nodes: []rtcore.RouterId{1, 2, 3, 4},
			Edges: []rtcore.TopologyEdge{
				{A: 1, B: 2, Cost: 1}, {A: 2, B: 4, Cost: 1},
				{A: 1, B: 3, Cost: 1}, {A: 3, B: 4, Cost: 1},
			},
		}
		cfg := rtcore.SimConfig{
			Seed:              5,
			Protocol:          "ddr",
			Topology:          topo,
			MaxTicks:          10,
			Network:           rtcore.NetworkParams{BaseDelay: 1},
			ConvergenceWindow: 3,
		}
		params := func(initial map[rtcore.RouterId]float64) adaptive.Params {
			return adaptive.Params{
				Variant: adaptive.VariantDDR, KPaths: 4, PressureThreshold: 0,
				QueueLevelScaleMs: 100, HelloInterval: 1, LSAInterval: 2, LSAMaxAge: 20,
				InitialQueueLevels: initial,
			}
		}
		// Each node's InitialQueueLevels reports what it advertises about
		// *its own* side of the link back to a neighbor (the QUEUE_SAMPLE
		// payload carries the sender's pressure, not the receiver's), so
		// the pressure asymmetry node 1 should react to is configured on
		// nodes 2 and 3, not on node 1 itself.
		nodes := map[rtcore.RouterId]rtcore.Engine{
			1: adaptive.New("ddr", 1, params(nil)),
			2: adaptive.New("ddr", 2, params(map[rtcore.RouterId]float64{1: 5})),
			3: adaptive.New("ddr", 3, params(map[rtcore.RouterId]float64{1: 0})),
			4: adaptive.New("ddr", 4, params(nil)),
		}
		te, err := sim.NewTickEngine(cfg, nodes, nil)
		Expect(err).NotTo(HaveOccurred())
		result, err := te.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RouteTables[1][4]).To(Equal([]rtcore.RouterId{3}), "DDR should prefer the less-pressured next hop 3 over the pressured next hop 2")
	})
})
