package rtcore

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// ConvergenceHash canonicalizes a route set — sort by destination, sort
// each entry's next-hop list, emit a compact textual representation — and
// hashes it with a fixed 256-bit cryptographic digest, so the same
// logical route set always yields the same hash regardless of insertion
// order. This is the one place this repo reaches for a crypto hash; see
// DESIGN.md for why that stays on stdlib crypto/sha256 rather than a pack
// dependency.
func ConvergenceHash(routes []Route) [32]byte {
	cp := make([]Route, len(routes))
	copy(cp, routes)
	sortRoutes(cp)

	var b strings.Builder
	for _, r := range cp {
		hops := r.nextHopSet()
		hopStrs := make([]string, len(hops))
		for i, h := range hops {
			hopStrs[i] = h.String()
		}
		fmt.Fprintf(&b, "%d>%s=%s@%.6f;", r.Destination, r.ProtocolTag, strings.Join(hopStrs, ","), r.Metric)
	}
	return sha256.Sum256([]byte(b.String()))
}

// PerNodeHash is ConvergenceHash applied across every node's route table in
// a simulated run, keyed by node id and canonicalized the same way (used
// for the simulator's global route_hashes; the daemon hashes only its own
// local table).
func PerNodeHash(tables map[RouterId][]Route) [32]byte {
	ids := make([]RouterId, 0, len(tables))
	for id := range tables {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	for _, id := range ids {
		h := ConvergenceHash(tables[id])
		fmt.Fprintf(&b, "%d:%x|", id, h)
	}
	return sha256.Sum256([]byte(b.String()))
}

// ConvergenceTracker observes (tick, hash) pairs and records the first
// tick where the hash has been stable for at least stableWindow
// consecutive observations.
type ConvergenceTracker struct {
	stableWindow  int
	lastHash      [32]byte
	haveLastHash  bool
	sameCount     int
	convergedTick int
	hasConverged  bool
}

func NewConvergenceTracker(stableWindow int) *ConvergenceTracker {
	return &ConvergenceTracker{stableWindow: stableWindow}
}

// Observe records a new (tick, hash) pair. It returns true exactly once:
// on the tick where the stability window is first satisfied.
func (t *ConvergenceTracker) Observe(tick int, hash [32]byte) bool {
	if !t.haveLastHash || hash != t.lastHash {
		t.lastHash = hash
		t.haveLastHash = true
		t.sameCount = 1
	} else {
		t.sameCount++
	}
	if !t.hasConverged && t.sameCount >= t.stableWindow {
		t.hasConverged = true
		t.convergedTick = tick - t.stableWindow + 1
		return true
	}
	return false
}

// ConvergedTick returns the first tick convergence was observed, if any.
func (t *ConvergenceTracker) ConvergedTick() (int, bool) {
	return t.convergedTick, t.hasConverged
}

// Reset clears the streak and the converged marker, supplementing
// spec.md §4.9: the tick engine calls this whenever an ExternalEvent
// mutates the topology, so a pre-event streak can never count toward
// post-event convergence.
func (t *ConvergenceTracker) Reset() {
	t.haveLastHash = false
	t.sameCount = 0
	t.hasConverged = false
	t.convergedTick = 0
}
