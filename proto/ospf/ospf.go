// Package ospf implements the OSPF-like link-state protocol: hello +
// LSA flooding + periodic SPF (Dijkstra) to derive best routes.
package ospf

import (
	"container/heap"
	"sort"

	"github.com/routeforge/corenet/rtcore"
)

const ProtocolTag = "ospf"

type Engine struct {
	self RouterId

	helloInterval float64
	lsaInterval   float64
	lsaMaxAge     float64

	msgSeq uint64
	lsaSeq uint64

	lastHelloAt float64
	lastLSAAt   float64
	started     bool

	// jitter and spfDelay are optional tuning knobs, off (zero) by
	// default; see SetTuning.
	jitter       float64
	spfDelay     float64
	pendingSPFAt *float64

	lastLocalLinks map[RouterId]float64
	db             *rtcore.LinkStateDB
}

type RouterId = rtcore.RouterId

// New builds an OSPF-like engine. lsaMaxAge should comfortably exceed
// lsaInterval (nothing checks or enforces this) so a
// live origin's LSA does not age out between refreshes.
func New(self RouterId, helloInterval, lsaInterval, lsaMaxAge float64) *Engine {
	return &Engine{
		self:          self,
		helloInterval: helloInterval,
		lsaInterval:   lsaInterval,
		lsaMaxAge:     lsaMaxAge,
		db:            rtcore.NewLinkStateDB(lsaMaxAge),
	}
}

// SetTuning enables the two debounce knobs: jitter adds a fixed extra gap
// to the self-LSA re-origination interval, and spfDelay coalesces a burst
// of LSDB changes within the window into a single SPF recompute instead of
// one per change. Both default to zero (off), which reproduces immediate
// recompute and no extra gap.
func (e *Engine) SetTuning(jitter, spfDelay float64) {
	e.jitter = jitter
	e.spfDelay = spfDelay
}

func (e *Engine) ProtocolTag() string { return ProtocolTag }

func (e *Engine) Start(ctx rtcore.ProtocolContext) rtcore.ProtocolOutputs {
	e.started = true
	return e.step(ctx, true)
}

func (e *Engine) OnTick(ctx rtcore.ProtocolContext) rtcore.ProtocolOutputs {
	return e.step(ctx, false)
}

func (e *Engine) OnLinkChange(ctx rtcore.ProtocolContext, _ RouterId, _ bool) rtcore.ProtocolOutputs {
	return e.step(ctx, false)
}

// step is the shared body of Start/OnTick/OnLinkChange (spec.md §4.2
// start/on_tick): emit HELLOs if due, originate a self-LSA if local links
// changed / the refresh interval elapsed / force is set, age out the LSDB,
// and recompute routes if anything changed.
func (e *Engine) step(ctx rtcore.ProtocolContext, force bool) rtcore.ProtocolOutputs {
	var out rtcore.ProtocolOutputs

	if ctx.Now-e.lastHelloAt >= e.helloInterval {
		e.lastHelloAt = ctx.Now
		for _, nb := range sortedUpNeighbors(ctx.Links) {
			out.Outbound = append(out.Outbound, e.hello(nb, ctx.Now))
		}
	}

	localLinks := make(map[RouterId]float64)
	for id, l := range ctx.Links {
		if l.IsUp {
			localLinks[id] = l.Cost
		}
	}

	originate := force || !sameLinks(e.lastLocalLinks, localLinks) || ctx.Now-e.lastLSAAt >= e.lsaInterval+e.jitter
	lsdbChanged := false
	if originate {
		e.lsaSeq++
		e.lastLSAAt = ctx.Now
		e.lastLocalLinks = localLinks
		links := toLinkEntries(localLinks)
		if e.db.Accept(e.self, e.lsaSeq, links, ctx.Now) {
			lsdbChanged = true
		}
		payload := rtcore.LSAPayload{Origin: e.self, Sequence: e.lsaSeq, Links: links}
		payload.SortLinks()
		for _, nb := range sortedUpNeighbors(ctx.Links) {
			out.Outbound = append(out.Outbound, e.lsa(nb, ctx.Now, payload))
		}
	}

	if aged := e.db.AgeOut(ctx.Now); len(aged) > 0 {
		lsdbChanged = true
	}

	if lsdbChanged {
		e.scheduleOrComputeRoutes(ctx, &out)
	}
	e.checkPendingSPF(ctx, &out)

	return out
}

// scheduleOrComputeRoutes is the SPF half of the spfDelay debounce, shared
// by step and onLSA: with spfDelay 0 it recomputes immediately (the
// original per-change behavior), otherwise it opens a coalescing window if
// one is not already pending and leaves the recompute to checkPendingSPF.
func (e *Engine) scheduleOrComputeRoutes(ctx rtcore.ProtocolContext, out *rtcore.ProtocolOutputs) {
	if e.spfDelay <= 0 {
		out.Routes = e.computeRoutes(ctx)
		out.RoutesChanged = true
		return
	}
	if e.pendingSPFAt == nil {
		due := ctx.Now + e.spfDelay
		e.pendingSPFAt = &due
	}
}

// checkPendingSPF fires a debounced recompute once its window has elapsed;
// called on every step so a pending recompute isn't stuck waiting on the
// next LSDB change to arrive.
func (e *Engine) checkPendingSPF(ctx rtcore.ProtocolContext, out *rtcore.ProtocolOutputs) {
	if e.pendingSPFAt != nil && ctx.Now >= *e.pendingSPFAt {
		out.Routes = e.computeRoutes(ctx)
		out.RoutesChanged = true
		e.pendingSPFAt = nil
	}
}

func (e *Engine) OnMessage(ctx rtcore.ProtocolContext, msg rtcore.ControlMessage) rtcore.ProtocolOutputs {
	switch msg.Kind {
	case rtcore.KindHello:
		// Liveness is the runtime's concern on any valid inbound packet;
		// the protocol itself has nothing further to do.
		return rtcore.ProtocolOutputs{}
	case rtcore.KindOspfLSA:
		return e.onLSA(ctx, msg)
	default:
		return rtcore.ProtocolOutputs{}
	}
}

func (e *Engine) onLSA(ctx rtcore.ProtocolContext, msg rtcore.ControlMessage) rtcore.ProtocolOutputs {
	p, ok := msg.Payload.(rtcore.LSAPayload)
	if !ok {
		return rtcore.ProtocolOutputs{}
	}
	if !e.db.Accept(p.Origin, p.Sequence, p.Links, ctx.Now) {
		return rtcore.ProtocolOutputs{} // stale sequence: silent, expected
	}

	var out rtcore.ProtocolOutputs
	for _, nb := range sortedUpNeighbors(ctx.Links) {
		if nb == msg.Src {
			continue // never flood back to the sender
		}
		out.Outbound = append(out.Outbound, e.lsa(nb, ctx.Now, p))
	}
	e.scheduleOrComputeRoutes(ctx, &out)
	e.checkPendingSPF(ctx, &out)
	return out
}

func (e *Engine) hello(to RouterId, now float64) rtcore.Outbound {
	e.msgSeq++
	return rtcore.Outbound{Neighbor: to, Message: rtcore.ControlMessage{
		Protocol: ProtocolTag, Kind: rtcore.KindHello, Src: e.self, Sequence: e.msgSeq, Timestamp: now,
		Payload: rtcore.HelloPayload{RouterID: e.self},
	}}
}

func (e *Engine) lsa(to RouterId, now float64, p rtcore.LSAPayload) rtcore.Outbound {
	e.msgSeq++
	return rtcore.Outbound{Neighbor: to, Message: rtcore.ControlMessage{
		Protocol: ProtocolTag, Kind: rtcore.KindOspfLSA, Src: e.self, Sequence: e.msgSeq, Timestamp: now,
		Payload: p,
	}}
}

// computeRoutes runs Dijkstra from e.self over the LSDB graph, folding in
// the local node's own current links so routes are usable even before the
// self-LSA has round-tripped through the flood.
func (e *Engine) computeRoutes(ctx rtcore.ProtocolContext) []rtcore.Route {
	graph := e.db.Graph()
	if _, ok := graph[e.self]; !ok {
		graph[e.self] = make(map[RouterId]float64)
	}
	for id, l := range ctx.Links {
		if l.IsUp {
			graph[e.self][id] = l.Cost
		}
	}
	// Keep the adjacency symmetric: an origin's LSA may not have been
	// flooded back to us yet, but we know our own side of the link.
	for nb, cost := range graph[e.self] {
		if _, ok := graph[nb]; !ok {
			graph[nb] = make(map[RouterId]float64)
		}
		if _, ok := graph[nb][e.self]; !ok {
			graph[nb][e.self] = cost
		}
	}

	dist, firstHop := dijkstra(graph, e.self)

	var routes []rtcore.Route
	for dst, d := range dist {
		if dst == e.self {
			continue
		}
		routes = append(routes, rtcore.Route{
			Destination: dst,
			NextHop:     firstHop[dst],
			Metric:      d,
			ProtocolTag: ProtocolTag,
		})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Destination < routes[j].Destination })
	return routes
}

type pqItem struct {
	node RouterId
	dist float64
}
type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node < pq[j].node
}
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)         { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// dijkstra returns, for every reachable node, its shortest distance from
// src and its first hop (the neighbor of src adjacent to the shortest
// path). Ties on total cost are broken by preferring the smaller first-hop
// id, per spec.md §4.2.
func dijkstra(graph map[RouterId]map[RouterId]float64, src RouterId) (map[RouterId]float64, map[RouterId]RouterId) {
	dist := map[RouterId]float64{src: 0}
	firstHop := map[RouterId]RouterId{src: src}
	visited := map[RouterId]bool{}

	pq := &priorityQueue{{node: src, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		neighbors := make([]RouterId, 0, len(graph[cur.node]))
		for nb := range graph[cur.node] {
			neighbors = append(neighbors, nb)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		for _, nb := range neighbors {
			cost := graph[cur.node][nb]
			nd := cur.dist + cost
			hop := firstHop[cur.node]
			if cur.node == src {
				hop = nb
			}
			existing, known := dist[nb]
			better := !known || nd < existing
			tie := known && nd == existing && hop < firstHop[nb]
			if better || tie {
				dist[nb] = nd
				firstHop[nb] = hop
				heap.Push(pq, pqItem{node: nb, dist: nd})
			}
		}
	}
	return dist, firstHop
}

func sameLinks(a, b map[RouterId]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for id, cost := range a {
		if bc, ok := b[id]; !ok || bc != cost {
			return false
		}
	}
	return true
}

func toLinkEntries(links map[RouterId]float64) []rtcore.LinkEntry {
	out := make([]rtcore.LinkEntry, 0, len(links))
	for id, cost := range links {
		out = append(out, rtcore.LinkEntry{Neighbor: id, Cost: cost})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Neighbor < out[j].Neighbor })
	return out
}

func sortedUpNeighbors(links map[RouterId]rtcore.RouterLink) []RouterId {
	out := make([]RouterId, 0, len(links))
	for id, l := range links {
		if l.IsUp {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
