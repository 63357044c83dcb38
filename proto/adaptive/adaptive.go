// Package adaptive implements the queue-pressure-aware DDR/DGR/Octopus
// route selection family (spec.md §4.5): one parameterized engine, since
// all three variants share the same candidate generation and differ only
// in how they pick among deadline-eligible survivors.
package adaptive

import (
	"sort"

	"github.com/routeforge/corenet/proto/lstopo"
	"github.com/routeforge/corenet/rtcore"
	"github.com/routeforge/corenet/xrand"
)

type RouterId = rtcore.RouterId

type Variant string

const (
	// VariantDDR picks the single survivor with the lowest projected
	// latency, deterministically.
	VariantDDR Variant = "ddr"
	// VariantDGR samples among survivors with probability proportional
	// to 1/projected_latency, using the engine's seeded RNG.
	VariantDGR Variant = "dgr"
	// VariantOctopus behaves like VariantDGR (spec.md §4.5 describes them
	// identically: "dgr and octopus variants... sample proportionally").
	VariantOctopus Variant = "octopus"
)

type Params struct {
	Variant Variant `yaml:"variant"`

	KPaths int `yaml:"k_paths"`

	PressureThreshold float64 `yaml:"pressure_threshold"`
	QueueLevelScaleMs float64 `yaml:"queue_level_scale_ms"`
	DeadlineMs        float64 `yaml:"deadline_ms"`
	FlowSizeBytes     float64 `yaml:"flow_size_bytes"`
	LinkBandwidthBps  float64 `yaml:"link_bandwidth_bps"`

	// InitialQueueLevels seeds this node's notion of per-neighbor queue
	// pressure before any QUEUE_SAMPLE has been received from them.
	InitialQueueLevels map[RouterId]float64 `yaml:"initial_queue_levels"`

	HelloInterval float64 `yaml:"hello_interval"`
	LSAInterval   float64 `yaml:"lsa_interval"`
	LSAMaxAge     float64 `yaml:"lsa_max_age"`

	Seed uint64 `yaml:"seed"`
}

type Engine struct {
	self        RouterId
	params      Params
	protocolTag string

	flooder *lstopo.Flooder
	rng     *xrand.Rng

	msgSeq             uint64
	queueLevelFromPeer map[RouterId]float64
}

func New(protocolTag string, self RouterId, p Params) *Engine {
	return &Engine{
		self:               self,
		params:             p,
		protocolTag:        protocolTag,
		flooder:            lstopo.NewFlooder(protocolTag, self, p.HelloInterval, p.LSAInterval, p.LSAMaxAge),
		rng:                xrand.New(p.Seed),
		queueLevelFromPeer: make(map[RouterId]float64),
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

	for _, nb := range sortedUpNeighbors(ctx.Links) {
		outbound = append(outbound, e.queueSample(nb, ctx.Now))
	}

	out := rtcore.ProtocolOutputs{Outbound: outbound}
	if changed || force {
		out.Routes = e.computeRoutes(ctx)
		out.RoutesChanged = true
	}
	return out
}

func (e *Engine) OnMessage(ctx rtcore.ProtocolContext, msg rtcore.ControlMessage) rtcore.ProtocolOutputs {
	switch msg.Kind {
	case rtcore.KindQueueSample:
		p, ok := msg.Payload.(rtcore.QueueSamplePayload)
		if !ok {
			return rtcore.ProtocolOutputs{}
		}
		e.queueLevelFromPeer[msg.Src] = p.QueueLevel
		return rtcore.ProtocolOutputs{}
	case rtcore.KindOspfLSA:
		outbound, changed := e.flooder.OnLSA(ctx, msg)
		if !changed {
			return rtcore.ProtocolOutputs{}
		}
		return rtcore.ProtocolOutputs{Outbound: outbound, Routes: e.computeRoutes(ctx), RoutesChanged: true}
	default:
		return rtcore.ProtocolOutputs{}
	}
}

func (e *Engine) queueSample(to RouterId, now float64) rtcore.Outbound {
	e.msgSeq++
	level := e.queueLevelOf(to)
	return rtcore.Outbound{Neighbor: to, Message: rtcore.ControlMessage{
		Protocol: e.protocolTag, Kind: rtcore.KindQueueSample, Src: e.self, Sequence: e.msgSeq, Timestamp: now,
		Payload: rtcore.QueueSamplePayload{Neighbor: e.self, QueueLevel: level},
	}}
}

func (e *Engine) queueLevelOf(neighbor RouterId) float64 {
	if e.params.InitialQueueLevels != nil {
		if v, ok := e.params.InitialQueueLevels[neighbor]; ok {
			return v
		}
	}
	return 0
}

type pathCandidate struct {
	neighbor         RouterId
	basePathLatency  float64
	queueLevel       float64
	projectedLatency float64
}

// computeRoutes implements spec.md §4.5's route choice: rank the top
// k_paths first hops by shortest path (ECMP-style neighbor ranking),
// project their latency under current queue pressure and flow
// serialization, reject anything past the deadline, then let the variant
// pick among survivors.
func (e *Engine) computeRoutes(ctx rtcore.ProtocolContext) []rtcore.Route {
	graph := e.flooder.Graph(ctx)

	neighbors := sortedUpNeighbors(ctx.Links)
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

	serializationMs := 0.0
	if e.params.LinkBandwidthBps > 0 {
		serializationMs = e.params.FlowSizeBytes * 8 / e.params.LinkBandwidthBps * 1000
	}

	var routes []rtcore.Route
	for _, dst := range dests {
		var ranked []pathCandidate
		for _, nb := range neighbors {
			d, ok := distFromNeighbor[nb][dst]
			if nb == dst {
				d, ok = 0, true
			}
			if !ok {
				continue
			}
			base := ctx.Links[nb].Cost + d
			ranked = append(ranked, pathCandidate{neighbor: nb, basePathLatency: base})
		}
		if len(ranked) == 0 {
			continue
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].basePathLatency != ranked[j].basePathLatency {
				return ranked[i].basePathLatency < ranked[j].basePathLatency
			}
			return ranked[i].neighbor < ranked[j].neighbor
		})
		kPaths := e.params.KPaths
		if kPaths <= 0 || kPaths > len(ranked) {
			kPaths = len(ranked)
		}
		ranked = ranked[:kPaths]

		for i := range ranked {
			ql := e.queueLevelOf(ranked[i].neighbor)
			if v, ok := e.queueLevelFromPeer[ranked[i].neighbor]; ok {
				ql = v
			}
			ranked[i].queueLevel = ql
			ranked[i].projectedLatency = ranked[i].basePathLatency + ql*e.params.QueueLevelScaleMs + serializationMs
		}

		survivors := filterDeadline(ranked, e.params.DeadlineMs)
		if len(survivors) == 0 {
			continue
		}
		pressureFiltered := filterPressure(survivors, e.params.PressureThreshold)
		if len(pressureFiltered) > 0 {
			survivors = pressureFiltered
		}

		chosen := e.choose(survivors)
		if chosen == nil {
			continue
		}
		routes = append(routes, rtcore.Route{
			Destination: dst,
			NextHop:     chosen.neighbor,
			Metric:      chosen.projectedLatency,
			ProtocolTag: e.protocolTag,
		})
	}
	return routes
}

func filterDeadline(cands []pathCandidate, deadlineMs float64) []pathCandidate {
	if deadlineMs <= 0 {
		return cands
	}
	var out []pathCandidate
	for _, c := range cands {
		if c.projectedLatency <= deadlineMs {
			out = append(out, c)
		}
	}
	return out
}

// filterPressure drops neighbors at/above pressure_threshold unless doing
// so would leave nothing (spec.md §4.5: "unless no alternative remains").
func filterPressure(cands []pathCandidate, threshold float64) []pathCandidate {
	if threshold <= 0 {
		return cands
	}
	var out []pathCandidate
	for _, c := range cands {
		if c.queueLevel < threshold {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) choose(survivors []pathCandidate) *pathCandidate {
	if len(survivors) == 0 {
		return nil
	}
	if e.params.Variant == VariantDDR {
		best := survivors[0]
		for _, c := range survivors[1:] {
			if c.projectedLatency < best.projectedLatency || (c.projectedLatency == best.projectedLatency && c.neighbor < best.neighbor) {
				best = c
			}
		}
		return &best
	}
	return e.weightedSample(survivors)
}

// weightedSample implements the DGR/Octopus variants: sample proportional
// to 1/projected_latency using the engine-local seeded RNG.
func (e *Engine) weightedSample(survivors []pathCandidate) *pathCandidate {
	sort.Slice(survivors, func(i, j int) bool { return survivors[i].neighbor < survivors[j].neighbor })
	weights := make([]float64, len(survivors))
	total := 0.0
	for i, c := range survivors {
		w := 1.0
		if c.projectedLatency > 0 {
			w = 1.0 / c.projectedLatency
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return &survivors[0]
	}
	r := e.rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return &survivors[i]
		}
	}
	return &survivors[len(survivors)-1]
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
