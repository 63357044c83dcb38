package rtcore_test

import (
	"testing"

	"github.com/routeforge/corenet/rtcore"
)

func TestConvergenceHashIgnoresInsertionOrder(t *testing.T) {
	a := []rtcore.Route{
		{Destination: 2, NextHop: 2, Metric: 1, ProtocolTag: "ospf"},
		{Destination: 3, NextHop: 2, Metric: 2, ProtocolTag: "ospf"},
	}
	b := []rtcore.Route{a[1], a[0]}
	if rtcore.ConvergenceHash(a) != rtcore.ConvergenceHash(b) {
		t.Fatal("hash must not depend on slice order")
	}
}

func TestConvergenceHashIgnoresNextHopListOrder(t *testing.T) {
	a := rtcore.Route{Destination: 2, NextHops: []rtcore.RouterId{3, 4}, Metric: 1, ProtocolTag: "ecmp"}
	b := rtcore.Route{Destination: 2, NextHops: []rtcore.RouterId{4, 3}, Metric: 1, ProtocolTag: "ecmp"}
	if rtcore.ConvergenceHash([]rtcore.Route{a}) != rtcore.ConvergenceHash([]rtcore.Route{b}) {
		t.Fatal("hash must not depend on next-hop list order")
	}
}

func TestConvergenceHashDiffersOnRealChange(t *testing.T) {
	a := []rtcore.Route{{Destination: 2, NextHop: 2, Metric: 1, ProtocolTag: "ospf"}}
	b := []rtcore.Route{{Destination: 2, NextHop: 2, Metric: 2, ProtocolTag: "ospf"}}
	if rtcore.ConvergenceHash(a) == rtcore.ConvergenceHash(b) {
		t.Fatal("expected different hash for different metric")
	}
}

func TestConvergenceTrackerFiresOnceStabilityWindowReached(t *testing.T) {
	tracker := rtcore.NewConvergenceTracker(3)
	h1 := rtcore.ConvergenceHash([]rtcore.Route{{Destination: 2, NextHop: 2, Metric: 1, ProtocolTag: "ospf"}})
	h2 := rtcore.ConvergenceHash([]rtcore.Route{{Destination: 2, NextHop: 2, Metric: 2, ProtocolTag: "ospf"}})

	if tracker.Observe(0, h2) {
		t.Fatal("should not converge on first observation")
	}
	if tracker.Observe(1, h1) {
		t.Fatal("hash changed, streak resets")
	}
	if tracker.Observe(2, h1) {
		t.Fatal("only 2 consecutive so far")
	}
	if !tracker.Observe(3, h1) {
		t.Fatal("expected convergence on the 3rd consecutive equal hash")
	}
	tick, ok := tracker.ConvergedTick()
	if !ok || tick != 1 {
		t.Fatalf("expected converged_tick=1, got %d (ok=%v)", tick, ok)
	}
	if tracker.Observe(4, h1) {
		t.Fatal("must only fire once")
	}
}

func TestConvergenceTrackerReset(t *testing.T) {
	tracker := rtcore.NewConvergenceTracker(2)
	h := rtcore.ConvergenceHash(nil)
	tracker.Observe(0, h)
	tracker.Observe(1, h)
	if _, ok := tracker.ConvergedTick(); !ok {
		t.Fatal("expected convergence before reset")
	}
	tracker.Reset()
	if _, ok := tracker.ConvergedTick(); ok {
		t.Fatal("expected converged marker cleared after Reset")
	}
	if tracker.Observe(10, h) {
		t.Fatal("single observation after reset should not immediately converge")
	}
	if !tracker.Observe(11, h) {
		t.Fatal("expected re-convergence after reset streak rebuilds")
	}
}
