package adaptive_test

import (
	"testing"

	"github.com/routeforge/corenet/proto/adaptive"
	"github.com/routeforge/corenet/rtcore"
)

func links(up ...rtcore.RouterId) map[rtcore.RouterId]rtcore.RouterLink {
	out := make(map[rtcore.RouterId]rtcore.RouterLink)
	for _, id := range up {
		out[id] = rtcore.RouterLink{Neighbor: id, Cost: 1, IsUp: true}
	}
	return out
}

func snapshot(edges map[rtcore.RouterId]map[rtcore.RouterId]float64) *rtcore.TopologySnapshot {
	return &rtcore.TopologySnapshot{Edges: edges}
}

func ringTopo() *rtcore.TopologySnapshot {
	return snapshot(map[rtcore.RouterId]map[rtcore.RouterId]float64{
		1: {2: 1, 3: 1},
		2: {1: 1, 4: 1},
		3: {1: 1, 4: 1},
		4: {2: 1, 3: 1},
	})
}

func TestDDRPicksLowerQueuePressureNeighborDeterministically(t *testing.T) {
	e := adaptive.New("ddr", 1, adaptive.Params{
		Variant:           adaptive.VariantDDR,
		KPaths:            2,
		QueueLevelScaleMs: 10,
		InitialQueueLevels: map[rtcore.RouterId]float64{
			2: 5, // heavily congested
			3: 0,
		},
	})
	ctx := rtcore.ProtocolContext{RouterID: 1, Now: 0, Links: links(2, 3), Topology: ringTopo()}
	out := e.Start(ctx)

	for _, r := range out.Routes {
		if r.Destination == 4 {
			if r.NextHop != 3 {
				t.Fatalf("expected DDR to avoid congested neighbor 2, got next hop %d", r.NextHop)
			}
		}
	}
}

func TestDeadlineRejectsAllCandidatesLeavesDestinationUnrouted(t *testing.T) {
	e := adaptive.New("ddr", 1, adaptive.Params{
		Variant:           adaptive.VariantDDR,
		KPaths:            2,
		QueueLevelScaleMs: 1000,
		DeadlineMs:        1,
		InitialQueueLevels: map[rtcore.RouterId]float64{
			2: 5,
			3: 5,
		},
	})
	ctx := rtcore.ProtocolContext{RouterID: 1, Now: 0, Links: links(2, 3), Topology: ringTopo()}
	out := e.Start(ctx)
	for _, r := range out.Routes {
		if r.Destination == 4 {
			t.Fatalf("expected destination 4 to be unreachable within deadline, got route %+v", r)
		}
	}
}

func TestPressureThresholdFallsBackWhenNoAlternative(t *testing.T) {
	e := adaptive.New("ddr", 1, adaptive.Params{
		Variant:           adaptive.VariantDDR,
		KPaths:            2,
		PressureThreshold: 1,
		InitialQueueLevels: map[rtcore.RouterId]float64{
			2: 5,
			3: 5,
		},
	})
	ctx := rtcore.ProtocolContext{RouterID: 1, Now: 0, Links: links(2, 3), Topology: ringTopo()}
	out := e.Start(ctx)
	var sawFour bool
	for _, r := range out.Routes {
		if r.Destination == 4 {
			sawFour = true
		}
	}
	if !sawFour {
		t.Fatal("expected a route to 4 even though every neighbor is over threshold (no alternative remains)")
	}
}

func TestOctopusWeightedSampleIsReproducibleForSameSeed(t *testing.T) {
	params := adaptive.Params{Variant: adaptive.VariantOctopus, KPaths: 2, Seed: 42}
	e1 := adaptive.New("octopus", 1, params)
	e2 := adaptive.New("octopus", 1, params)
	ctx := rtcore.ProtocolContext{RouterID: 1, Now: 0, Links: links(2, 3), Topology: ringTopo()}

	out1 := e1.Start(ctx)
	out2 := e2.Start(ctx)
	if len(out1.Routes) != len(out2.Routes) {
		t.Fatalf("expected same route count, got %d vs %d", len(out1.Routes), len(out2.Routes))
	}
	for i := range out1.Routes {
		if out1.Routes[i].NextHop != out2.Routes[i].NextHop {
			t.Fatalf("expected identical next hop draws for identical seeds, got %d vs %d", out1.Routes[i].NextHop, out2.Routes[i].NextHop)
		}
	}
}
