package sim

import (
	"encoding/hex"
	"sort"

	"github.com/routeforge/corenet/rtcore"
)

// RunResult is the simulator's sole output (spec.md §6): everything
// needed to judge determinism and convergence across two runs of the same
// config+seed+events.
type RunResult struct {
	RunID    string `json:"run_id"`
	Seed     uint64 `json:"seed"`
	Protocol string `json:"protocol"`
	MaxTicks int    `json:"max_ticks"`

	ConvergedTick    *int  `json:"converged_tick"`
	ReconvergedTicks []int `json:"reconverged_ticks,omitempty"`

	RouteHashes []string `json:"route_hashes"` // hex-encoded canonical_hash, one per tick

	// RouteTables is the final route table per node, dst -> sorted next hops.
	RouteTables map[RouterId]map[RouterId][]RouterId `json:"route_tables"`

	DeliveredMessages int `json:"delivered_messages"`
	DroppedMessages   int `json:"dropped_messages"`
	EventsApplied     int `json:"events_applied"`
	RouteFlaps        int `json:"route_flaps"`
}

// TickEvent is one line of the per-tick JSONL event log (spec.md §6).
type TickEvent struct {
	Event  string      `json:"event"`
	Tick   int         `json:"tick"`
	Hash   string      `json:"hash,omitempty"`
	Action string      `json:"action,omitempty"`
	U      RouterId    `json:"u,omitempty"`
	V      RouterId    `json:"v,omitempty"`
	Metric float64     `json:"metric,omitempty"`
}

func hashHex(h [32]byte) string { return hex.EncodeToString(h[:]) }

func routeTableView(routes []rtcore.Route) map[RouterId][]RouterId {
	out := make(map[RouterId][]RouterId, len(routes))
	for _, r := range routes {
		hops := r.NextHops
		if len(hops) == 0 {
			hops = []RouterId{r.NextHop}
		}
		cp := append([]RouterId(nil), hops...)
		sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
		out[r.Destination] = cp
	}
	return out
}
