package rtcore

import "sort"

// ForwardingEntry is one FIB entry: a pure mirror of a RIB Route
// constrained to installable entries (a route is installable if it has a
// real next hop, i.e. is not the implicit self-route).
type ForwardingEntry struct {
	Destination RouterId
	NextHop     RouterId
	NextHops    []RouterId
	Metric      float64
	ProtocolTag string
}

func installable(r Route) bool {
	return r.ProtocolTag != SelfProtocolTag
}

func toForwardingEntry(r Route) ForwardingEntry {
	return ForwardingEntry{
		Destination: r.Destination,
		NextHop:     r.NextHop,
		NextHops:    append([]RouterId(nil), r.NextHops...),
		Metric:      r.Metric,
		ProtocolTag: r.ProtocolTag,
	}
}

func (e ForwardingEntry) equalIgnoringOrder(o ForwardingEntry) bool {
	if e.Destination != o.Destination || e.Metric != o.Metric || e.ProtocolTag != o.ProtocolTag {
		return false
	}
	a, b := sortedHops(e), sortedHops(o)
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

func sortedHops(e ForwardingEntry) []RouterId {
	if len(e.NextHops) > 0 {
		cp := append([]RouterId(nil), e.NextHops...)
		sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
		return cp
	}
	return []RouterId{e.NextHop}
}

// ForwardingTable is the FIB: sync_from_routes drives installer calls via
// the delta it computes and remembers.
type ForwardingTable struct {
	current map[RouterId]ForwardingEntry
	added   []ForwardingEntry
	removed []ForwardingEntry
}

func NewForwardingTable() *ForwardingTable {
	return &ForwardingTable{current: make(map[RouterId]ForwardingEntry)}
}

// SyncFromRoutes recomputes the desired installable set from routes and
// swaps it in if it differs from the current one, returning true iff it
// changed. After a call that returns true, Added()/Removed() describe the
// delta the caller should hand to an Installer.
func (f *ForwardingTable) SyncFromRoutes(routes []Route) bool {
	desired := make(map[RouterId]ForwardingEntry)
	for _, r := range routes {
		if !installable(r) {
			continue
		}
		desired[r.Destination] = toForwardingEntry(r)
	}

	if sameForwardingSet(f.current, desired) {
		f.added, f.removed = nil, nil
		return false
	}

	var added, removed []ForwardingEntry
	for dst, e := range desired {
		if old, ok := f.current[dst]; !ok || !old.equalIgnoringOrder(e) {
			added = append(added, e)
		}
	}
	for dst, e := range f.current {
		if _, ok := desired[dst]; !ok {
			removed = append(removed, e)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i].Destination < added[j].Destination })
	sort.Slice(removed, func(i, j int) bool { return removed[i].Destination < removed[j].Destination })

	f.current = desired
	f.added, f.removed = added, removed
	return true
}

// Added returns the entries added or changed by the most recent
// SyncFromRoutes call that returned true.
func (f *ForwardingTable) Added() []ForwardingEntry { return f.added }

// Removed returns the entries removed by the most recent SyncFromRoutes
// call that returned true.
func (f *ForwardingTable) Removed() []ForwardingEntry { return f.removed }

// All returns the current installed set, sorted by destination.
func (f *ForwardingTable) All() []ForwardingEntry {
	out := make([]ForwardingEntry, 0, len(f.current))
	for _, e := range f.current {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Destination < out[j].Destination })
	return out
}

func sameForwardingSet(a, b map[RouterId]ForwardingEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for dst, e := range a {
		o, ok := b[dst]
		if !ok || !e.equalIgnoringOrder(o) {
			return false
		}
	}
	return true
}

// Installer applies a FIB delta to a forwarding plane (kernel or
// simulated). apply must be synchronous from the caller's point of view
// so the RIB and the forwarding plane never observably diverge (spec.md
// §5).
type Installer interface {
	Apply(added, removed []ForwardingEntry) error
}

// NullInstaller is the simulator / dry-run variant: a no-op.
type NullInstaller struct{}

func (NullInstaller) Apply(added, removed []ForwardingEntry) error { return nil }
