package sim_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/routeforge/corenet/proto/ospf"
	"github.com/routeforge/corenet/rtcore"
	"github.com/routeforge/corenet/sim"
)

func triangleConfig(seed uint64) rtcore.SimConfig {
	return rtcore.SimConfig{
		Seed:     seed,
		Protocol: ospf.ProtocolTag,
		Topology: rtcore.SimTopology{
			Nodes: []rtcore.RouterId{1, 2, 3},
			Edges: []rtcore.TopologyEdge{
				{A: 1, B: 2, Cost: 1},
				{A: 2, B: 3, Cost: 1},
				{A: 1, B: 3, Cost: 1},
			},
		},
		MaxTicks:          20,
		Network:           rtcore.NetworkParams{BaseDelay: 1, Jitter: 0, LossProb: 0},
		ConvergenceWindow: 3,
	}
}

func triangleEngines() map[rtcore.RouterId]rtcore.Engine {
	return map[rtcore.RouterId]rtcore.Engine{
		1: ospf.New(1, 1, 3, 20),
		2: ospf.New(2, 1, 3, 20),
		3: ospf.New(3, 1, 3, 20),
	}
}

func TestTickEngineConvergesOnStableTriangle(t *testing.T) {
	te, err := sim.NewTickEngine(triangleConfig(1), triangleEngines(), nil)
	if err != nil {
		t.Fatalf("NewTickEngine: %v", err)
	}
	result, err := te.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ConvergedTick == nil {
		t.Fatal("expected convergence within 20 ticks on a stable triangle")
	}
	for _, node := range []rtcore.RouterId{1, 2, 3} {
		table, ok := result.RouteTables[node]
		if !ok {
			t.Fatalf("missing route table for node %d", node)
		}
		if len(table) != 3 {
			t.Fatalf("node %d: expected the self route plus routes to the other 2 nodes, got %d", node, len(table))
		}
	}
}

func TestTickEngineIsDeterministicAcrossRunsWithSameSeed(t *testing.T) {
	te1, err := sim.NewTickEngine(triangleConfig(42), triangleEngines(), nil)
	if err != nil {
		t.Fatalf("NewTickEngine: %v", err)
	}
	r1, err := te1.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	te2, err := sim.NewTickEngine(triangleConfig(42), triangleEngines(), nil)
	if err != nil {
		t.Fatalf("NewTickEngine: %v", err)
	}
	r2, err := te2.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(r1.RouteHashes) != len(r2.RouteHashes) {
		t.Fatalf("route hash trace length mismatch: %d vs %d", len(r1.RouteHashes), len(r2.RouteHashes))
	}
	for i := range r1.RouteHashes {
		if r1.RouteHashes[i] != r2.RouteHashes[i] {
			t.Fatalf("tick %d: hash diverged between runs with identical seed", i)
		}
	}
	if r1.DeliveredMessages != r2.DeliveredMessages || r1.DroppedMessages != r2.DroppedMessages {
		t.Fatal("expected identical delivered/dropped counters across identical-seed runs")
	}
}

func TestTickEngineReconvergesAfterLinkRemoval(t *testing.T) {
	cfg := triangleConfig(7)
	cfg.MaxTicks = 40
	cfg.Failures = []rtcore.ExternalEvent{
		{Tick: 15, Action: rtcore.ActionRemoveLink, U: 1, V: 3},
	}
	te, err := sim.NewTickEngine(cfg, triangleEngines(), nil)
	if err != nil {
		t.Fatalf("NewTickEngine: %v", err)
	}
	result, err := te.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.EventsApplied != 1 {
		t.Fatalf("expected exactly 1 event applied, got %d", result.EventsApplied)
	}
	if result.ConvergedTick == nil {
		t.Fatal("expected an initial convergence before the failure")
	}
	if len(result.ReconvergedTicks) == 0 {
		t.Fatal("expected reconvergence after the link removal")
	}
	table1 := result.RouteTables[1]
	if hops := table1[3]; len(hops) != 1 || hops[0] != 2 {
		t.Fatalf("node 1: expected route to 3 via 2 after link removal, got %v", hops)
	}
}

func TestTickEngineEventLogEmitsOneTickLinePerTick(t *testing.T) {
	te, err := sim.NewTickEngine(triangleConfig(1), triangleEngines(), nil)
	if err != nil {
		t.Fatalf("NewTickEngine: %v", err)
	}
	var buf bytes.Buffer
	te.SetEventLog(&buf)
	if _, err := te.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var ev map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("invalid JSONL line %q: %v", scanner.Text(), err)
		}
		if ev["event"] != "tick" {
			t.Fatalf("expected event %q, got %v", "tick", ev["event"])
		}
		lines++
	}
	if lines != 20 {
		t.Fatalf("expected 20 tick lines, got %d", lines)
	}
}

func TestTickEngineRejectsInvalidConfig(t *testing.T) {
	cfg := triangleConfig(1)
	cfg.MaxTicks = 0
	if _, err := sim.NewTickEngine(cfg, triangleEngines(), nil); err == nil {
		t.Fatal("expected validation error for zero max_ticks")
	}
}
