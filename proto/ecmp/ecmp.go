// Package ecmp implements the ECMP and TopK next-hop planners (spec.md
// §4.4): both select up to k_paths next hops per destination from a full
// topology view, ECMP keeping every tied-shortest neighbor and TopK
// holding a sticky selection with occasional seeded exploration.
package ecmp

import (
	"sort"

	"github.com/routeforge/corenet/proto/lstopo"
	"github.com/routeforge/corenet/rtcore"
	"github.com/routeforge/corenet/xrand"
)

type RouterId = rtcore.RouterId

type Mode string

const (
	ModeECMP Mode = "ecmp"
	ModeTopK Mode = "topk"
)

type Params struct {
	Mode Mode `yaml:"mode"`

	KPaths int `yaml:"k_paths"`

	// TopK only.
	SelectionHoldTime  float64 `yaml:"selection_hold_time"`
	ExploreProbability float64 `yaml:"explore_probability"`

	HelloInterval float64 `yaml:"hello_interval"`
	LSAInterval   float64 `yaml:"lsa_interval"`
	LSAMaxAge     float64 `yaml:"lsa_max_age"`

	Seed uint64 `yaml:"seed"`
}

type selection struct {
	hops     []RouterId
	chosenAt float64
}

type Engine struct {
	self        RouterId
	params      Params
	protocolTag string

	flooder *lstopo.Flooder
	rng     *xrand.Rng

	selections map[RouterId]*selection
}

func New(protocolTag string, self RouterId, p Params) *Engine {
	return &Engine{
		self:        self,
		params:      p,
		protocolTag: protocolTag,
		flooder:     lstopo.NewFlooder(protocolTag, self, p.HelloInterval, p.LSAInterval, p.LSAMaxAge),
		rng:         xrand.New(p.Seed),
		selections:  make(map[RouterId]*selection),
	}
}

func (e *Engine) ProtocolTag() string { return e.protocolTag }

func (e *Engine) Start(ctx rtcore.ProtocolContext) rtcore.ProtocolOutputs {
	return e.step(ctx, true)
}

func (e *Engine) OnTick(ctx rtcore.ProtocolContext) rtcore.ProtocolOutputs {
	return e.step(ctx, false)
}

func (e *Engine) OnLinkChange(ctx rtcore.ProtocolContext, _ RouterId, _ bool) rtcore.ProtocolOutputs {
	return e.step(ctx, false)
}

func (e *Engine) step(ctx rtcore.ProtocolContext, force bool) rtcore.ProtocolOutputs {
	outbound, changed := e.flooder.Step(ctx, force)
	out := rtcore.ProtocolOutputs{Outbound: outbound}
	if changed || force {
		out.Routes = e.computeRoutes(ctx)
		out.RoutesChanged = true
	}
	return out
}

func (e *Engine) OnMessage(ctx rtcore.ProtocolContext, msg rtcore.ControlMessage) rtcore.ProtocolOutputs {
	if msg.Kind != rtcore.KindOspfLSA {
		return rtcore.ProtocolOutputs{}
	}
	outbound, changed := e.flooder.OnLSA(ctx, msg)
	if !changed {
		return rtcore.ProtocolOutputs{}
	}
	return rtcore.ProtocolOutputs{
		Outbound:      outbound,
		Routes:        e.computeRoutes(ctx),
		RoutesChanged: true,
	}
}

type candidate struct {
	neighbor RouterId
	cost     float64
}

// computeRoutes implements spec.md §4.4: for each destination, rank every
// up local neighbor by link_cost(neighbor) + dist_from_neighbor(dest) and
// keep up to k_paths.
func (e *Engine) computeRoutes(ctx rtcore.ProtocolContext) []rtcore.Route {
	graph := e.flooder.Graph(ctx)

	neighbors := make([]RouterId, 0, len(ctx.Links))
	for id, l := range ctx.Links {
		if l.IsUp {
			neighbors = append(neighbors, id)
		}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

	distFromNeighbor := make(map[RouterId]map[RouterId]float64, len(neighbors))
	for _, nb := range neighbors {
		distFromNeighbor[nb] = lstopo.Dijkstra(graph, nb)
	}

	destinations := make(map[RouterId]bool)
	for node := range graph {
		destinations[node] = true
	}

	dests := make([]RouterId, 0, len(destinations))
	for d := range destinations {
		if d != e.self {
			dests = append(dests, d)
		}
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })

	var routes []rtcore.Route
	for _, dst := range dests {
		var cands []candidate
		for _, nb := range neighbors {
			d, ok := distFromNeighbor[nb][dst]
			if nb == dst {
				d, ok = 0, true
			}
			if !ok {
				continue
			}
			cands = append(cands, candidate{neighbor: nb, cost: ctx.Links[nb].Cost + d})
		}
		if len(cands) == 0 {
			continue
		}
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].cost != cands[j].cost {
				return cands[i].cost < cands[j].cost
			}
			return cands[i].neighbor < cands[j].neighbor
		})

		var hops []RouterId
		var metric float64
		switch e.params.Mode {
		case ModeTopK:
			hops, metric = e.selectTopK(dst, cands, ctx.Now)
		default:
			hops, metric = selectECMP(cands, e.params.KPaths)
		}
		if len(hops) == 0 {
			continue
		}
		routes = append(routes, rtcore.Route{
			Destination: dst,
			NextHop:     hops[0],
			NextHops:    hops,
			Metric:      metric,
			ProtocolTag: e.protocolTag,
		})
	}
	return routes
}

// selectECMP keeps every neighbor tied for the minimum cost, up to kPaths,
// in ascending neighbor-id order (spec.md §4.4).
func selectECMP(cands []candidate, kPaths int) ([]RouterId, float64) {
	best := cands[0].cost
	var hops []RouterId
	for _, c := range cands {
		if c.cost != best {
			break
		}
		hops = append(hops, c.neighbor)
	}
	sort.Slice(hops, func(i, j int) bool { return hops[i] < hops[j] })
	if kPaths > 0 && len(hops) > kPaths {
		hops = hops[:kPaths]
	}
	return hops, best
}

// selectTopK holds a sticky selection per destination until
// selection_hold_time_s has elapsed since it was chosen, then recomputes
// from the ranked candidates; with probability explore_probability it
// swaps the weakest kept hop for a non-selected candidate drawn from the
// engine's seeded RNG.
func (e *Engine) selectTopK(dst RouterId, cands []candidate, now float64) ([]RouterId, float64) {
	kPaths := e.params.KPaths
	if kPaths <= 0 {
		kPaths = 1
	}

	sel, have := e.selections[dst]
	if have && now-sel.chosenAt < e.params.SelectionHoldTime && stillValid(sel.hops, cands) {
		return sel.hops, costOf(cands, sel.hops[0])
	}

	n := kPaths
	if n > len(cands) {
		n = len(cands)
	}
	hops := make([]RouterId, n)
	for i := 0; i < n; i++ {
		hops[i] = cands[i].neighbor
	}

	if e.params.ExploreProbability > 0 && len(cands) > n && e.rng.Bool(e.params.ExploreProbability) {
		idx := n + e.rng.UniformInt(len(cands)-n)
		hops[len(hops)-1] = cands[idx].neighbor
	}

	sort.Slice(hops, func(i, j int) bool { return hops[i] < hops[j] })
	e.selections[dst] = &selection{hops: hops, chosenAt: now}
	return hops, costOf(cands, hops[0])
}

func stillValid(hops []RouterId, cands []candidate) bool {
	present := make(map[RouterId]bool, len(cands))
	for _, c := range cands {
		present[c.neighbor] = true
	}
	for _, h := range hops {
		if !present[h] {
			return false
		}
	}
	return true
}

func costOf(cands []candidate, neighbor RouterId) float64 {
	for _, c := range cands {
		if c.neighbor == neighbor {
			return c.cost
		}
	}
	return 0
}
