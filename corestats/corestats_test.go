package corestats_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/routeforge/corenet/corestats"
)

func TestSnapshotStartsAtZeroWithUnconvergedTick(t *testing.T) {
	reg := corestats.NewRegistry(1, "ospf", prometheus.NewRegistry())
	snap := reg.Snapshot()
	if snap.ConvergedTick != -1 {
		t.Fatalf("expected ConvergedTick -1 before any convergence, got %d", snap.ConvergedTick)
	}
	if snap.Delivered != 0 || snap.Dropped != 0 {
		t.Fatal("expected all counters to start at zero")
	}
}

func TestCountersAccumulate(t *testing.T) {
	reg := corestats.NewRegistry(2, "rip", prometheus.NewRegistry())
	reg.AddDelivered(5)
	reg.AddDropped(2)
	reg.IncRibChange()
	reg.IncRibChange()
	reg.IncFibInstall()
	reg.AddRouteFlaps(3)
	reg.SetConvergedTick(17)

	snap := reg.Snapshot()
	if snap.Delivered != 5 || snap.Dropped != 2 {
		t.Fatalf("unexpected delivered/dropped: %+v", snap)
	}
	if snap.RibChanges != 2 {
		t.Fatalf("expected 2 rib changes, got %d", snap.RibChanges)
	}
	if snap.FibInstalls != 1 {
		t.Fatalf("expected 1 fib install, got %d", snap.FibInstalls)
	}
	if snap.RouteFlaps != 3 {
		t.Fatalf("expected 3 route flaps, got %d", snap.RouteFlaps)
	}
	if snap.ConvergedTick != 17 {
		t.Fatalf("expected converged tick 17, got %d", snap.ConvergedTick)
	}
}

func TestTwoRegistriesOnSameRegistererDoNotCollide(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := corestats.NewRegistry(1, "ospf", reg)
	b := corestats.NewRegistry(2, "ospf", reg)
	a.AddDelivered(1)
	b.AddDelivered(9)
	if a.Snapshot().Delivered != 1 || b.Snapshot().Delivered != 9 {
		t.Fatal("expected independent counters per router id despite shared Prometheus registerer")
	}
}
