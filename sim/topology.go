// Package sim implements the deterministic tick-driven simulator face:
// the mutable topology, the lossy/delayed network model, and the tick
// engine's run loop (spec.md §4.6-4.7).
package sim

import (
	"sort"

	"github.com/routeforge/corenet/rtcore"
)

type RouterId = rtcore.RouterId

type link struct {
	cost float64
	isUp bool
}

// Topology is the shared, mutable adjacency the tick engine evolves as
// ExternalEvents are applied. It is not safe for concurrent use; the tick
// engine is single-threaded (spec.md §5).
type Topology struct {
	nodes []RouterId
	adj   map[RouterId]map[RouterId]*link
}

func NewTopology(nodes []RouterId, edges []rtcore.TopologyEdge) *Topology {
	t := &Topology{
		nodes: append([]RouterId(nil), nodes...),
		adj:   make(map[RouterId]map[RouterId]*link, len(nodes)),
	}
	for _, n := range nodes {
		t.adj[n] = make(map[RouterId]*link)
	}
	for _, e := range edges {
		l := &link{cost: e.Cost, isUp: true}
		t.adj[e.A][e.B] = l
		t.adj[e.B][e.A] = &link{cost: e.Cost, isUp: true}
	}
	return t
}

// ApplyEvent mutates the topology per spec.md §4.6 step 2a and returns the
// two endpoints whose on_link_change callback must fire (empty if the
// event referenced nodes outside the topology).
func (t *Topology) ApplyEvent(ev rtcore.ExternalEvent) []RouterId {
	if _, ok := t.adj[ev.U]; !ok {
		return nil
	}
	if _, ok := t.adj[ev.V]; !ok {
		return nil
	}

	switch ev.Action {
	case rtcore.ActionRemoveLink:
		if l, ok := t.adj[ev.U][ev.V]; ok {
			l.isUp = false
		}
		if l, ok := t.adj[ev.V][ev.U]; ok {
			l.isUp = false
		}
	case rtcore.ActionAddLink:
		t.setLink(ev.U, ev.V, ev.Metric, true)
		t.setLink(ev.V, ev.U, ev.Metric, true)
	case rtcore.ActionUpdateMetric:
		if l, ok := t.adj[ev.U][ev.V]; ok {
			l.cost = ev.Metric
		}
		if l, ok := t.adj[ev.V][ev.U]; ok {
			l.cost = ev.Metric
		}
	default:
		return nil
	}
	return []RouterId{ev.U, ev.V}
}

func (t *Topology) setLink(from, to RouterId, cost float64, up bool) {
	t.adj[from][to] = &link{cost: cost, isUp: up}
}

// LinksFor builds the RouterLink snapshot handed to a node's protocol
// engine this invocation.
func (t *Topology) LinksFor(node RouterId) map[RouterId]rtcore.RouterLink {
	out := make(map[RouterId]rtcore.RouterLink, len(t.adj[node]))
	for nb, l := range t.adj[node] {
		out[nb] = rtcore.RouterLink{Neighbor: nb, Cost: l.cost, IsUp: l.isUp}
	}
	return out
}

// Snapshot builds the centralized TopologySnapshot the tick engine can
// hand to ECMP/TopK/Adaptive engines, since the simulator has global
// knowledge unlike the daemon face (spec.md §9 open question).
func (t *Topology) Snapshot() *rtcore.TopologySnapshot {
	edges := make(map[RouterId]map[RouterId]float64, len(t.adj))
	for node, row := range t.adj {
		m := make(map[RouterId]float64, len(row))
		for nb, l := range row {
			if l.isUp {
				m[nb] = l.cost
			}
		}
		edges[node] = m
	}
	return &rtcore.TopologySnapshot{Edges: edges}
}

// Nodes returns every node id in ascending order.
func (t *Topology) Nodes() []RouterId {
	out := append([]RouterId(nil), t.nodes...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
