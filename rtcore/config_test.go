package rtcore_test

import (
	"testing"

	"github.com/routeforge/corenet/cerr"
	"github.com/routeforge/corenet/rtcore"
)

func validDaemonConfig() rtcore.DaemonConfig {
	return rtcore.DaemonConfig{
		RouterID:     1,
		ProtocolTag:  "ospf",
		BindAddress:  "0.0.0.0",
		BindPort:     9000,
		TickInterval: 1,
		DeadInterval: 3,
		Neighbors: []rtcore.NeighborSpec{
			{RouterID: 2, Address: "10.0.0.2", Port: 9000, Cost: 1},
		},
	}
}

func TestDaemonConfigValidateAcceptsWellFormedConfig(t *testing.T) {
	c := validDaemonConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestDaemonConfigValidateRejectsNegativeCost(t *testing.T) {
	c := validDaemonConfig()
	c.Neighbors[0].Cost = -1
	err := c.Validate()
	if err == nil || !cerr.IsErrConfig(err) {
		t.Fatalf("expected ErrConfig for negative cost, got %v", err)
	}
}

func TestDaemonConfigValidateRejectsSelfNeighbor(t *testing.T) {
	c := validDaemonConfig()
	c.Neighbors[0].RouterID = c.RouterID
	if err := c.Validate(); err == nil {
		t.Fatal("expected error when neighbor list references self")
	}
}

func TestDaemonConfigValidateRejectsNonPositiveTimers(t *testing.T) {
	c := validDaemonConfig()
	c.TickInterval = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for non-positive tick_interval")
	}
}

func validSimConfig() rtcore.SimConfig {
	return rtcore.SimConfig{
		Seed:     1,
		Protocol: "ospf",
		Topology: rtcore.SimTopology{
			Nodes: []rtcore.RouterId{1, 2},
			Edges: []rtcore.TopologyEdge{{A: 1, B: 2, Cost: 1}},
		},
		MaxTicks:          10,
		ConvergenceWindow: 3,
	}
}

func TestSimConfigValidateAcceptsWellFormedConfig(t *testing.T) {
	c := validSimConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestSimConfigValidateRejectsNegativeEdgeCost(t *testing.T) {
	c := validSimConfig()
	c.Topology.Edges[0].Cost = -5
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative edge cost")
	}
}

func TestSimConfigValidateRejectsEdgeToUnknownNode(t *testing.T) {
	c := validSimConfig()
	c.Topology.Edges = append(c.Topology.Edges, rtcore.TopologyEdge{A: 1, B: 99, Cost: 1})
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for edge referencing unknown node")
	}
}

func TestSimConfigValidateRejectsOutOfRangeLossProb(t *testing.T) {
	c := validSimConfig()
	c.Network.LossProb = 1.5
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for loss_prob out of [0,1]")
	}
}
