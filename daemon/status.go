package daemon

import (
	"github.com/routeforge/corenet/corestats"
	"github.com/routeforge/corenet/rtcore"
)

// NeighborStatus is one configured neighbor's liveness as of the last
// RefreshLiveness call.
type NeighborStatus struct {
	RouterID rtcore.RouterId `json:"router_id"`
	IsUp     bool            `json:"is_up"`
}

// StatusSnapshot is the on-demand JSON payload spec.md §6 calls out for
// external scrapers: current neighbor liveness, the full RIB, and the
// running counters.
type StatusSnapshot struct {
	RouterID  rtcore.RouterId    `json:"router_id"`
	Protocol  string             `json:"protocol"`
	Neighbors []NeighborStatus   `json:"neighbors"`
	Routes    []rtcore.Route     `json:"routes"`
	Stats     corestats.Snapshot `json:"stats,omitempty"`
}

// Status builds a point-in-time StatusSnapshot. Safe to call from the same
// goroutine running Run only; spec.md's daemon face has no cross-goroutine
// state, so a concurrent status endpoint would need its own synchronization
// layer, out of this module's scope.
func (rt *Runtime) Status() StatusSnapshot {
	links := rt.neighbors.Snapshot()
	ids := rt.neighbors.Configured()
	neighbors := make([]NeighborStatus, 0, len(ids))
	for _, id := range ids {
		neighbors = append(neighbors, NeighborStatus{RouterID: id, IsUp: links[id].IsUp})
	}

	snap := StatusSnapshot{
		RouterID:  rt.cfg.RouterID,
		Protocol:  rt.cfg.ProtocolTag,
		Neighbors: neighbors,
		Routes:    rt.rib.All(),
	}
	if rt.stats != nil {
		snap.Stats = rt.stats.Snapshot()
	}
	return snap
}
