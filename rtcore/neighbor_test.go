package rtcore_test

import (
	"testing"

	"github.com/routeforge/corenet/rtcore"
)

func TestNeighborTableLivenessTransitions(t *testing.T) {
	nt := rtcore.NewNeighborTable(1, []rtcore.NeighborSpec{
		{RouterID: 2, Address: "10.0.0.2", Port: 9000, Cost: 1},
	}, 2.0)

	if up := nt.Snapshot()[2].IsUp; up {
		t.Fatal("neighbor should start down before any packet")
	}

	nt.MarkSeen(2, 10.0)
	changed := nt.RefreshLiveness(10.0)
	if len(changed) != 1 || changed[0] != 2 {
		t.Fatalf("expected liveness transition for 2, got %v", changed)
	}
	if !nt.Snapshot()[2].IsUp {
		t.Fatal("expected neighbor up after being seen")
	}

	changed = nt.RefreshLiveness(13.1) // now - last_seen (3.1) > dead_interval (2.0)
	if len(changed) != 1 || changed[0] != 2 {
		t.Fatalf("expected liveness transition back to down, got %v", changed)
	}
	if nt.Snapshot()[2].IsUp {
		t.Fatal("expected neighbor down after dead_interval elapsed")
	}
}

func TestNeighborTableIgnoresUnconfiguredSource(t *testing.T) {
	nt := rtcore.NewNeighborTable(1, []rtcore.NeighborSpec{{RouterID: 2, Address: "a", Port: 1, Cost: 1}}, 2.0)
	if nt.IsConfigured(99) {
		t.Fatal("99 was never configured")
	}
	nt.MarkSeen(99, 0) // no-op, 99 isn't tracked
	if nt.IsConfigured(99) {
		t.Fatal("MarkSeen must not implicitly configure an unknown neighbor")
	}
}
