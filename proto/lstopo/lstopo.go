// Package lstopo is the shared link-state flooding mixin used by the
// ECMP/TopK/adaptive protocols to synthesize a topology graph on the
// daemon face, where no centralized TopologySnapshot is available. It
// reuses the same HELLO/LSA flooding shape as proto/ospf.
package lstopo

import (
	"sort"

	"github.com/routeforge/corenet/rtcore"
)

type RouterId = rtcore.RouterId

// Flooder originates and floods this node's own links as an LSA and
// maintains an LSDB of everyone else's, so callers can build a full graph
// without a centralized oracle.
type Flooder struct {
	protocolTag string
	self        RouterId

	helloInterval float64
	lsaInterval   float64

	msgSeq uint64
	lsaSeq uint64

	lastHelloAt    float64
	lastLSAAt      float64
	lastLocalLinks map[RouterId]float64

	db *rtcore.LinkStateDB
}

func NewFlooder(protocolTag string, self RouterId, helloInterval, lsaInterval, lsaMaxAge float64) *Flooder {
	return &Flooder{
		protocolTag:   protocolTag,
		self:          self,
		helloInterval: helloInterval,
		lsaInterval:   lsaInterval,
		db:            rtcore.NewLinkStateDB(lsaMaxAge),
	}
}

// Step emits HELLOs/LSAs as due and ages the LSDB. Returns the outbound
// messages and whether the LSDB changed (self-origination or age-out).
func (f *Flooder) Step(ctx rtcore.ProtocolContext, force bool) ([]rtcore.Outbound, bool) {
	var out []rtcore.Outbound

	if ctx.Now-f.lastHelloAt >= f.helloInterval {
		f.lastHelloAt = ctx.Now
		for _, nb := range sortedUpNeighbors(ctx.Links) {
			out = append(out, f.hello(nb, ctx.Now))
		}
	}

	localLinks := make(map[RouterId]float64)
	for id, l := range ctx.Links {
		if l.IsUp {
			localLinks[id] = l.Cost
		}
	}

	originate := force || !sameLinks(f.lastLocalLinks, localLinks) || ctx.Now-f.lastLSAAt >= f.lsaInterval
	changed := false
	if originate {
		f.lsaSeq++
		f.lastLSAAt = ctx.Now
		f.lastLocalLinks = localLinks
		links := toLinkEntries(localLinks)
		if f.db.Accept(f.self, f.lsaSeq, links, ctx.Now) {
			changed = true
		}
		payload := rtcore.LSAPayload{Origin: f.self, Sequence: f.lsaSeq, Links: links}
		payload.SortLinks()
		for _, nb := range sortedUpNeighbors(ctx.Links) {
			out = append(out, f.lsa(nb, ctx.Now, payload))
		}
	}

	if aged := f.db.AgeOut(ctx.Now); len(aged) > 0 {
		changed = true
	}

	return out, changed
}

// OnLSA accepts and floods an inbound LSA, returning the re-flood set and
// whether the LSDB actually changed.
func (f *Flooder) OnLSA(ctx rtcore.ProtocolContext, msg rtcore.ControlMessage) ([]rtcore.Outbound, bool) {
	p, ok := msg.Payload.(rtcore.LSAPayload)
	if !ok {
		return nil, false
	}
	if !f.db.Accept(p.Origin, p.Sequence, p.Links, ctx.Now) {
		return nil, false
	}
	var out []rtcore.Outbound
	for _, nb := range sortedUpNeighbors(ctx.Links) {
		if nb == msg.Src {
			continue
		}
		out = append(out, f.lsa(nb, ctx.Now, p))
	}
	return out, true
}

// Graph returns the best available topology view: the centralized
// snapshot if the caller supplied one, otherwise the LSDB synthesized from
// flooding, folded together with this node's own current links.
func (f *Flooder) Graph(ctx rtcore.ProtocolContext) map[RouterId]map[RouterId]float64 {
	if ctx.Topology != nil {
		return cloneGraph(ctx.Topology.Edges)
	}

	graph := f.db.Graph()
	if _, ok := graph[f.self]; !ok {
		graph[f.self] = make(map[RouterId]float64)
	}
	for id, l := range ctx.Links {
		if l.IsUp {
			graph[f.self][id] = l.Cost
		}
	}
	for nb, cost := range graph[f.self] {
		if _, ok := graph[nb]; !ok {
			graph[nb] = make(map[RouterId]float64)
		}
		if _, ok := graph[nb][f.self]; !ok {
			graph[nb][f.self] = cost
		}
	}
	return graph
}

func cloneGraph(edges map[RouterId]map[RouterId]float64) map[RouterId]map[RouterId]float64 {
	out := make(map[RouterId]map[RouterId]float64, len(edges))
	for a, row := range edges {
		cp := make(map[RouterId]float64, len(row))
		for b, c := range row {
			cp[b] = c
		}
		out[a] = cp
	}
	return out
}

func (f *Flooder) hello(to RouterId, now float64) rtcore.Outbound {
	f.msgSeq++
	return rtcore.Outbound{Neighbor: to, Message: rtcore.ControlMessage{
		Protocol: f.protocolTag, Kind: rtcore.KindHello, Src: f.self, Sequence: f.msgSeq, Timestamp: now,
		Payload: rtcore.HelloPayload{RouterID: f.self},
	}}
}

func (f *Flooder) lsa(to RouterId, now float64, p rtcore.LSAPayload) rtcore.Outbound {
	f.msgSeq++
	return rtcore.Outbound{Neighbor: to, Message: rtcore.ControlMessage{
		Protocol: f.protocolTag, Kind: rtcore.KindOspfLSA, Src: f.self, Sequence: f.msgSeq, Timestamp: now,
		Payload: p,
	}}
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

// Dijkstra computes the shortest distance from src to every node reachable
// from it. It returns distances only; no first hop is computed or
// tie-broken here.
func Dijkstra(graph map[RouterId]map[RouterId]float64, src RouterId) map[RouterId]float64 {
	dist := map[RouterId]float64{src: 0}
	visited := map[RouterId]bool{}

	for {
		var cur RouterId
		found := false
		best := 0.0
		for node, d := range dist {
			if visited[node] {
				continue
			}
			if !found || d < best || (d == best && node < cur) {
				cur, best, found = node, d, true
			}
		}
		if !found {
			break
		}
		visited[cur] = true

		neighbors := make([]RouterId, 0, len(graph[cur]))
		for nb := range graph[cur] {
			neighbors = append(neighbors, nb)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
		for _, nb := range neighbors {
			nd := best + graph[cur][nb]
			if existing, ok := dist[nb]; !ok || nd < existing {
				dist[nb] = nd
			}
		}
	}
	return dist
}
