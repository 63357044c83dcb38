// Package rip implements the RIP-like distance-vector protocol: periodic
// and triggered updates, split-horizon with optional poison reverse.
package rip

import (
	"sort"

	"github.com/routeforge/corenet/rtcore"
)

const ProtocolTag = "rip"

type RouterId = rtcore.RouterId

type Params struct {
	UpdateInterval  float64 `yaml:"update_interval"`
	NeighborTimeout float64 `yaml:"neighbor_timeout"`
	InfinityMetric  float64 `yaml:"infinity_metric"`
	SplitHorizon    bool    `yaml:"split_horizon"`
	PoisonReverse   bool    `yaml:"poison_reverse"`
	TriggeredMinGap float64 `yaml:"triggered_min_gap"`
}

type neighborVector struct {
	lastSeen float64
	vector   map[RouterId]float64
}

type Engine struct {
	self   RouterId
	params Params

	msgSeq           uint64
	lastUpdateAt     float64
	lastTriggeredAt  float64
	owned            map[RouterId]rtcore.Route
	neighborVectors  map[RouterId]*neighborVector
}

func New(self RouterId, p Params) *Engine {
	return &Engine{
		self:            self,
		params:          p,
		owned:           make(map[RouterId]rtcore.Route),
		neighborVectors: make(map[RouterId]*neighborVector),
		lastUpdateAt:    -p.UpdateInterval - 1,
		lastTriggeredAt: -p.TriggeredMinGap - 1,
	}
}

func (e *Engine) ProtocolTag() string { return ProtocolTag }

func (e *Engine) Start(ctx rtcore.ProtocolContext) rtcore.ProtocolOutputs {
	return e.step(ctx, true)
}

func (e *Engine) OnTick(ctx rtcore.ProtocolContext) rtcore.ProtocolOutputs {
	return e.step(ctx, false)
}

func (e *Engine) OnLinkChange(ctx rtcore.ProtocolContext, _ RouterId, _ bool) rtcore.ProtocolOutputs {
	return e.step(ctx, false)
}

// step implements start/on_tick (spec.md §4.3): expire stale neighbor
// vectors, recompute the best route per destination, and emit updates
// periodically or immediately on a triggered change.
func (e *Engine) step(ctx rtcore.ProtocolContext, force bool) rtcore.ProtocolOutputs {
	e.expireVectors(ctx)

	newOwned := e.recompute(ctx)
	changed := !sameOwned(e.owned, newOwned)
	e.owned = newOwned

	var out rtcore.ProtocolOutputs
	if changed {
		out.Routes = ownedList(e.owned)
		out.RoutesChanged = true
	}

	dueForPeriodic := ctx.Now-e.lastUpdateAt >= e.params.UpdateInterval
	triggeredOK := changed && ctx.Now-e.lastTriggeredAt >= e.params.TriggeredMinGap

	if force || dueForPeriodic || triggeredOK {
		e.lastUpdateAt = ctx.Now
		if triggeredOK {
			e.lastTriggeredAt = ctx.Now
		}
		for _, nb := range e.sortedUpNeighbors(ctx.Links) {
			out.Outbound = append(out.Outbound, e.updateFor(nb, ctx.Now))
		}
	}

	return out
}

func (e *Engine) expireVectors(ctx rtcore.ProtocolContext) {
	for nb, v := range e.neighborVectors {
		link, hasLink := ctx.Links[nb]
		down := !hasLink || !link.IsUp
		stale := ctx.Now-v.lastSeen > e.params.NeighborTimeout
		if down || stale {
			delete(e.neighborVectors, nb)
		}
	}
}

// recompute derives the best (metric, next_hop) per destination from
// direct neighbor costs plus every neighbor's advertised vector, with a
// lexicographically-smallest (metric, next_hop) tie-break.
func (e *Engine) recompute(ctx rtcore.ProtocolContext) map[RouterId]rtcore.Route {
	type candidate struct {
		metric  float64
		nextHop RouterId
	}
	best := make(map[RouterId]candidate)

	consider := func(dst RouterId, metric float64, nextHop RouterId) {
		if dst == e.self {
			return
		}
		if metric >= e.params.InfinityMetric {
			return
		}
		cur, ok := best[dst]
		if !ok || metric < cur.metric || (metric == cur.metric && nextHop < cur.nextHop) {
			best[dst] = candidate{metric: metric, nextHop: nextHop}
		}
	}

	for _, nb := range e.sortedUpNeighbors(ctx.Links) {
		cost := ctx.Links[nb].Cost
		consider(nb, cost, nb)
		if v, ok := e.neighborVectors[nb]; ok {
			dests := make([]RouterId, 0, len(v.vector))
			for d := range v.vector {
				dests = append(dests, d)
			}
			sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })
			for _, d := range dests {
				m := v.vector[d]
				total := cost + m
				if total > e.params.InfinityMetric {
					total = e.params.InfinityMetric
				}
				consider(d, total, nb)
			}
		}
	}

	out := make(map[RouterId]rtcore.Route, len(best))
	for dst, c := range best {
		out[dst] = rtcore.Route{Destination: dst, NextHop: c.nextHop, Metric: c.metric, ProtocolTag: ProtocolTag}
	}
	return out
}

// updateFor builds the RIP_UPDATE sent to neighbor n: self always
// included at metric 0, split-horizon/poison-reverse applied to routes
// learned via n, everything else advertised as-is (capped at infinity).
func (e *Engine) updateFor(n RouterId, now float64) rtcore.Outbound {
	var entries []rtcore.RipEntry
	entries = append(entries, rtcore.RipEntry{Destination: e.self, Metric: 0})

	dests := make([]RouterId, 0, len(e.owned))
	for d := range e.owned {
		dests = append(dests, d)
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })

	for _, d := range dests {
		r := e.owned[d]
		if r.NextHop == n {
			switch {
			case e.params.SplitHorizon && e.params.PoisonReverse:
				entries = append(entries, rtcore.RipEntry{Destination: d, Metric: e.params.InfinityMetric})
			case e.params.SplitHorizon && !e.params.PoisonReverse:
				// omit entirely
			default:
				entries = append(entries, rtcore.RipEntry{Destination: d, Metric: capInf(r.Metric, e.params.InfinityMetric)})
			}
			continue
		}
		entries = append(entries, rtcore.RipEntry{Destination: d, Metric: capInf(r.Metric, e.params.InfinityMetric)})
	}

	payload := rtcore.RipUpdatePayload{Entries: entries}
	payload.SortEntries()

	e.msgSeq++
	return rtcore.Outbound{Neighbor: n, Message: rtcore.ControlMessage{
		Protocol: ProtocolTag, Kind: rtcore.KindRipUpdate, Src: e.self, Sequence: e.msgSeq, Timestamp: now,
		Payload: payload,
	}}
}

func (e *Engine) OnMessage(ctx rtcore.ProtocolContext, msg rtcore.ControlMessage) rtcore.ProtocolOutputs {
	if msg.Kind != rtcore.KindRipUpdate {
		return rtcore.ProtocolOutputs{}
	}
	p, ok := msg.Payload.(rtcore.RipUpdatePayload)
	if !ok {
		return rtcore.ProtocolOutputs{}
	}

	vector := make(map[RouterId]float64, len(p.Entries))
	for _, ent := range p.Entries {
		vector[ent.Destination] = ent.Metric
	}
	e.neighborVectors[msg.Src] = &neighborVector{lastSeen: ctx.Now, vector: vector}

	newOwned := e.recompute(ctx)
	changed := !sameOwned(e.owned, newOwned)
	e.owned = newOwned

	var out rtcore.ProtocolOutputs
	if changed {
		out.Routes = ownedList(e.owned)
		out.RoutesChanged = true
		if ctx.Now-e.lastTriggeredAt >= e.params.TriggeredMinGap {
			e.lastUpdateAt = ctx.Now
			e.lastTriggeredAt = ctx.Now
			for _, nb := range e.sortedUpNeighbors(ctx.Links) {
				out.Outbound = append(out.Outbound, e.updateFor(nb, ctx.Now))
			}
		}
	}
	return out
}

func (e *Engine) sortedUpNeighbors(links map[RouterId]rtcore.RouterLink) []RouterId {
	out := make([]RouterId, 0, len(links))
	for id, l := range links {
		if l.IsUp {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func capInf(m, infinity float64) float64 {
	if m > infinity {
		return infinity
	}
	return m
}

func ownedList(owned map[RouterId]rtcore.Route) []rtcore.Route {
	out := make([]rtcore.Route, 0, len(owned))
	for _, r := range owned {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Destination < out[j].Destination })
	return out
}

func sameOwned(a, b map[RouterId]rtcore.Route) bool {
	if len(a) != len(b) {
		return false
	}
	for dst, ra := range a {
		rb, ok := b[dst]
		if !ok || !ra.Equal(rb) {
			return false
		}
	}
	return true
}
