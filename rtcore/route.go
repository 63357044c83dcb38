package rtcore

import (
	"sort"
	"sync"
)

const SelfProtocolTag = "self"

// Route is one RIB entry. NextHops carries the full equal/top-k set for
// ECMP-shaped protocols; single-path protocols leave it nil and rely on
// NextHop alone. Equality is structural.
type Route struct {
	Destination RouterId
	NextHop     RouterId
	NextHops    []RouterId // nil for single-path protocols
	Metric      float64
	ProtocolTag string
}

func (r Route) nextHopSet() []RouterId {
	if len(r.NextHops) > 0 {
		cp := make([]RouterId, len(r.NextHops))
		copy(cp, r.NextHops)
		sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
		return cp
	}
	return []RouterId{r.NextHop}
}

// Equal compares two routes structurally, treating a single-path NextHop
// and an equivalent one-element NextHops list as equal.
func (r Route) Equal(other Route) bool {
	if r.Destination != other.Destination || r.Metric != other.Metric || r.ProtocolTag != other.ProtocolTag {
		return false
	}
	a, b := r.nextHopSet(), other.nextHopSet()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RouteTable is the RIB: the best route per destination across all
// protocols. In this deployment shape exactly one protocol runs per node
// (spec.md §4.9), so ReplaceProtocolRoutes is the only mutator and no
// cross-protocol tie-break is required. The self-route is never
// overwritten.
type RouteTable struct {
	mu     sync.Mutex
	self   RouterId
	routes map[RouterId]Route
}

func NewRouteTable(self RouterId) *RouteTable {
	rt := &RouteTable{self: self, routes: make(map[RouterId]Route)}
	rt.routes[self] = Route{Destination: self, NextHop: self, Metric: 0, ProtocolTag: SelfProtocolTag}
	return rt
}

// ReplaceProtocolRoutes atomically removes all prior routes owned by tag
// and installs newRoutes, skipping any entry for the self destination.
// Returns true if the resulting table differs from before.
func (rt *RouteTable) ReplaceProtocolRoutes(tag string, newRoutes []Route) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	before := rt.snapshotLocked()

	for dst, r := range rt.routes {
		if r.ProtocolTag == tag {
			delete(rt.routes, dst)
		}
	}
	for _, r := range newRoutes {
		if r.Destination == rt.self {
			continue
		}
		r.ProtocolTag = tag
		rt.routes[r.Destination] = r
	}

	return !sameRouteSet(before, rt.snapshotLocked())
}

func (rt *RouteTable) snapshotLocked() []Route {
	out := make([]Route, 0, len(rt.routes))
	for _, r := range rt.routes {
		out = append(out, r)
	}
	sortRoutes(out)
	return out
}

// All returns every RIB entry sorted by destination, for hashing, FIB
// sync, and status snapshots.
func (rt *RouteTable) All() []Route {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.snapshotLocked()
}

// Get returns the current route to dst, if any.
func (rt *RouteTable) Get(dst RouterId) (Route, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	r, ok := rt.routes[dst]
	return r, ok
}

func sortRoutes(routes []Route) {
	sort.Slice(routes, func(i, j int) bool { return routes[i].Destination < routes[j].Destination })
}

func sameRouteSet(a, b []Route) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
