package sim

import (
	"sort"

	"github.com/routeforge/corenet/rtcore"
	"github.com/routeforge/corenet/rtcore/codec"
	"github.com/routeforge/corenet/xrand"
)

// NetworkModel transports messages between simulated nodes with
// configurable delay, jitter, and loss, all driven by one engine-local
// seeded generator (spec.md §4.7).
type NetworkModel struct {
	baseDelay int
	jitter    int
	lossProb  float64
	rng       *xrand.Rng

	inflight map[int][]rtcore.Delivery

	delivered int
	dropped   int
}

func NewNetworkModel(p rtcore.NetworkParams, seed uint64) *NetworkModel {
	return &NetworkModel{
		baseDelay: p.BaseDelay,
		jitter:    p.Jitter,
		lossProb:  p.LossProb,
		rng:       xrand.New(seed),
		inflight:  make(map[int][]rtcore.Delivery),
	}
}

// Send schedules msg for delivery to dst, drawing loss and jitter from the
// model's seeded RNG.
func (nm *NetworkModel) Send(dst RouterId, msg rtcore.ControlMessage, nowTick int) {
	if nm.lossProb > 0 && nm.rng.Float64() < nm.lossProb {
		nm.dropped++
		return
	}
	extra := 0
	if nm.jitter > 0 {
		extra = nm.rng.UniformInt(nm.jitter + 1)
	}
	at := nowTick + nm.baseDelay + extra
	nm.inflight[at] = append(nm.inflight[at], rtcore.Delivery{Dst: dst, Msg: msg})
}

// Deliver removes and returns every delivery scheduled for tick, sorted by
// sort_key for deterministic per-node consumption order.
func (nm *NetworkModel) Deliver(tick int) []rtcore.Delivery {
	batch := nm.inflight[tick]
	delete(nm.inflight, tick)
	sort.Slice(batch, func(i, j int) bool {
		return codec.SortKeyString(batch[i].Msg, batch[i].Dst) < codec.SortKeyString(batch[j].Msg, batch[j].Dst)
	})
	nm.delivered += len(batch)
	return batch
}

// Counters returns the running delivered/dropped message totals.
func (nm *NetworkModel) Counters() (delivered, dropped int) {
	return nm.delivered, nm.dropped
}
