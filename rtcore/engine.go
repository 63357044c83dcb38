package rtcore

// TopologySnapshot is the full-topology view some protocols consume
// directly instead of assembling it from flooded state (spec.md §9's open
// question on ECMP centralization): the tick engine has global knowledge
// and can hand this over every recompute; the daemon face has no such
// oracle, so those same engines fall back to synthesizing an equivalent
// graph from their own LinkStateDB (see proto/ecmp).
type TopologySnapshot struct {
	// Edges is a symmetric adjacency: Edges[a][b] == Edges[b][a] == cost.
	Edges map[RouterId]map[RouterId]float64
}

// ProtocolContext is a by-value snapshot handed to an engine for one
// invocation; it never points back at the runtime (spec.md §9), which
// keeps engines testable in isolation.
type ProtocolContext struct {
	RouterID RouterId
	Now      float64
	Links    map[RouterId]RouterLink
	Topology *TopologySnapshot // nil unless the caller has one to offer
}

// Outbound is one queued send: a destination neighbor and the message to
// deliver to it.
type Outbound struct {
	Neighbor RouterId
	Message  ControlMessage
}

// ProtocolOutputs is what an engine invocation returns. RoutesChanged
// distinguishes "no route change" (false) from "replace all of this
// protocol's routes, possibly with an empty set" (true, Routes may be
// nil/empty) — the Option<Vec<Route>> of spec.md §4.1 without relying on
// nil-slice ambiguity.
type ProtocolOutputs struct {
	Outbound      []Outbound
	Routes        []Route
	RoutesChanged bool
}

// Engine is the capability set every protocol implements: start, on_tick,
// on_message, on_link_change. An engine must be pure with respect to its
// own state — no hidden I/O, no real clock reads, no unseeded randomness —
// so that byte-identical context histories produce byte-identical
// Outbound sequences.
type Engine interface {
	ProtocolTag() string
	Start(ctx ProtocolContext) ProtocolOutputs
	OnTick(ctx ProtocolContext) ProtocolOutputs
	OnMessage(ctx ProtocolContext, msg ControlMessage) ProtocolOutputs
	OnLinkChange(ctx ProtocolContext, neighbor RouterId, isUp bool) ProtocolOutputs
}
