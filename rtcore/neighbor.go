package rtcore

import "sort"

// RouterLink is the per-neighbor view passed into a protocol on each
// invocation. The protocol never synthesizes these; the runtime (daemon or
// tick engine) owns liveness and hands over an immutable snapshot.
type RouterLink struct {
	Neighbor RouterId
	Cost     float64
	Address  string
	Port     int
	IsUp     bool
}

type neighborEntry struct {
	address        string
	port           int
	configuredCost float64
	lastSeen       float64
	isUp           bool
}

// NeighborTable is owned by the runtime. is_up is recomputed from
// last_seen vs. deadInterval each time RefreshLiveness runs; it is never
// set directly from packet arrival beyond bumping last_seen.
type NeighborTable struct {
	self         RouterId
	deadInterval float64
	entries      map[RouterId]*neighborEntry
}

type NeighborSpec struct {
	RouterID RouterId
	Address  string
	Port     int
	Cost     float64
}

func NewNeighborTable(self RouterId, configured []NeighborSpec, deadInterval float64) *NeighborTable {
	nt := &NeighborTable{
		self:         self,
		deadInterval: deadInterval,
		entries:      make(map[RouterId]*neighborEntry, len(configured)),
	}
	for _, c := range configured {
		nt.entries[c.RouterID] = &neighborEntry{
			address:        c.Address,
			port:           c.Port,
			configuredCost: c.Cost,
			lastSeen:       -deadInterval - 1, // down until first packet or explicit up
		}
	}
	return nt
}

// MarkSeen records a valid inbound packet from id. It does not flip is_up
// immediately; RefreshLiveness is the single place is_up transitions, so
// liveness changes are always observed through the same code path (and the
// same log line) regardless of what triggered them.
func (nt *NeighborTable) MarkSeen(id RouterId, now float64) {
	if e, ok := nt.entries[id]; ok {
		e.lastSeen = now
	}
}

// RefreshLiveness recomputes is_up for every configured neighbor and
// returns the ids whose liveness changed this call, in ascending order.
func (nt *NeighborTable) RefreshLiveness(now float64) []RouterId {
	var changed []RouterId
	ids := nt.sortedIDs()
	for _, id := range ids {
		e := nt.entries[id]
		up := now-e.lastSeen <= nt.deadInterval
		if up != e.isUp {
			e.isUp = up
			changed = append(changed, id)
		}
	}
	return changed
}

// MarkUpForTest forces a neighbor live without waiting on RefreshLiveness;
// used by bootstrap (spec.md's protocol Start often wants to address
// configured neighbors before any packet has ever arrived).
func (nt *NeighborTable) MarkUpForTest(id RouterId, now float64) {
	if e, ok := nt.entries[id]; ok {
		e.lastSeen = now
		e.isUp = true
	}
}

func (nt *NeighborTable) sortedIDs() []RouterId {
	ids := make([]RouterId, 0, len(nt.entries))
	for id := range nt.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns an immutable-for-this-call view of every configured
// neighbor, for use as a ProtocolContext.Links argument.
func (nt *NeighborTable) Snapshot() map[RouterId]RouterLink {
	out := make(map[RouterId]RouterLink, len(nt.entries))
	for id, e := range nt.entries {
		out[id] = RouterLink{
			Neighbor: id,
			Cost:     e.configuredCost,
			Address:  e.address,
			Port:     e.port,
			IsUp:     e.isUp,
		}
	}
	return out
}

// Configured returns every configured neighbor id in ascending order.
func (nt *NeighborTable) Configured() []RouterId { return nt.sortedIDs() }

// IsConfigured reports whether id is a configured neighbor (used by the
// daemon to drop packets from unconfigured sources per spec.md §4.8).
func (nt *NeighborTable) IsConfigured(id RouterId) bool {
	_, ok := nt.entries[id]
	return ok
}

// AddressOf returns the configured address/port for id.
func (nt *NeighborTable) AddressOf(id RouterId) (string, int, bool) {
	e, ok := nt.entries[id]
	if !ok {
		return "", 0, false
	}
	return e.address, e.port, true
}
