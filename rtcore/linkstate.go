package rtcore

import "sort"

type lsdbEntry struct {
	sequence  uint64
	links     []LinkEntry
	learnedAt float64
}

// LinkStateDB is owned by link-state protocols (OSPF-like, and the
// daemon-face ECMP/TopK/Adaptive engines when they synthesize their own
// topology view instead of consuming a centralized snapshot). Stored
// sequence per origin is monotonically non-decreasing: updates with
// seq <= stored are dropped silently (cerr.ErrStaleSequence, expected).
type LinkStateDB struct {
	maxAge  float64
	entries map[RouterId]*lsdbEntry
}

func NewLinkStateDB(maxAge float64) *LinkStateDB {
	return &LinkStateDB{maxAge: maxAge, entries: make(map[RouterId]*lsdbEntry)}
}

// Accept records origin's advertisement if seq is strictly newer than what
// is stored. Returns true if it replaced the entry.
func (db *LinkStateDB) Accept(origin RouterId, seq uint64, links []LinkEntry, now float64) bool {
	existing, ok := db.entries[origin]
	if ok && seq <= existing.sequence {
		return false
	}
	cp := make([]LinkEntry, len(links))
	copy(cp, links)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Neighbor < cp[j].Neighbor })
	db.entries[origin] = &lsdbEntry{sequence: seq, links: cp, learnedAt: now}
	return true
}

// SequenceOf returns the stored sequence for origin, if any.
func (db *LinkStateDB) SequenceOf(origin RouterId) (uint64, bool) {
	e, ok := db.entries[origin]
	if !ok {
		return 0, false
	}
	return e.sequence, true
}

// AgeOut drops entries with now - learned_at > maxAge, returning the
// dropped origins in ascending order (empty means no change).
func (db *LinkStateDB) AgeOut(now float64) []RouterId {
	var dropped []RouterId
	for origin, e := range db.entries {
		if now-e.learnedAt > db.maxAge {
			dropped = append(dropped, origin)
			delete(db.entries, origin)
		}
	}
	sort.Slice(dropped, func(i, j int) bool { return dropped[i] < dropped[j] })
	return dropped
}

// Graph builds a symmetric adjacency view from every stored LSA: for each
// (origin -> neighbor, cost) record, graph[origin][neighbor] = cost. SPF
// (§4.2) additionally folds in the local node's own current links in case
// its self-LSA has not yet round-tripped through the flood.
func (db *LinkStateDB) Graph() map[RouterId]map[RouterId]float64 {
	g := make(map[RouterId]map[RouterId]float64, len(db.entries))
	for origin, e := range db.entries {
		if _, ok := g[origin]; !ok {
			g[origin] = make(map[RouterId]float64)
		}
		for _, l := range e.links {
			g[origin][l.Neighbor] = l.Cost
		}
	}
	return g
}

// Origins returns every origin currently stored, ascending.
func (db *LinkStateDB) Origins() []RouterId {
	out := make([]RouterId, 0, len(db.entries))
	for o := range db.entries {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
