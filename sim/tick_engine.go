package sim

import (
	"io"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/routeforge/corenet/clog"
	"github.com/routeforge/corenet/rtcore"
)

// TickEngine runs the deterministic discrete-event loop of spec.md §4.6
// over a fleet of already-constructed protocol engines.
type TickEngine struct {
	cfg   rtcore.SimConfig
	nodes map[RouterId]rtcore.Engine
	topo  *Topology
	net   *NetworkModel
	ribs  map[RouterId]*rtcore.RouteTable
	log   *clog.Logger

	events  []rtcore.ExternalEvent
	tracker *rtcore.ConvergenceTracker

	routeFlapPrev map[RouterId]map[RouterId][]RouterId
	routeFlaps    int
	eventsApplied int

	routeHashes    []string
	firstConverged *int
	reconverged    []int

	eventLog io.Writer
}

// SetEventLog directs Run to emit one JSONL TickEvent line per tick and
// per applied topology event (spec.md §6's "per-tick JSONL event log").
// Nil, the default, disables it.
func (te *TickEngine) SetEventLog(w io.Writer) { te.eventLog = w }

func (te *TickEngine) logEvent(ev TickEvent) {
	if te.eventLog == nil {
		return
	}
	b, err := jsoniter.Marshal(ev)
	if err != nil {
		return
	}
	te.eventLog.Write(append(b, '\n'))
}

// NewTickEngine validates cfg and wires a fresh topology, network model,
// and per-node RIB. nodes must contain exactly one engine per node named
// in cfg.Topology.Nodes, keyed by router id.
func NewTickEngine(cfg rtcore.SimConfig, nodes map[RouterId]rtcore.Engine, log *clog.Logger) (*TickEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ribs := make(map[RouterId]*rtcore.RouteTable, len(cfg.Topology.Nodes))
	for _, id := range cfg.Topology.Nodes {
		ribs[id] = rtcore.NewRouteTable(id)
	}
	return &TickEngine{
		cfg:           cfg,
		nodes:         nodes,
		topo:          NewTopology(cfg.Topology.Nodes, cfg.Topology.Edges),
		net:           NewNetworkModel(cfg.Network, cfg.Seed),
		ribs:          ribs,
		log:           log,
		events:        rtcore.SortEvents(cfg.Failures),
		tracker:       rtcore.NewConvergenceTracker(cfg.ConvergenceWindow),
		routeFlapPrev: make(map[RouterId]map[RouterId][]RouterId, len(cfg.Topology.Nodes)),
	}, nil
}

// Run executes the full bootstrap + tick loop and returns the RunResult.
func (te *TickEngine) Run() (*RunResult, error) {
	nodeIDs := te.topo.Nodes()

	for _, id := range nodeIDs {
		out := te.nodes[id].Start(te.ctxFor(id, 0))
		te.applyOutputs(id, out, 0)
	}

	eventIdx := 0
	for tick := 0; tick < te.cfg.MaxTicks; tick++ {
		for eventIdx < len(te.events) && te.events[eventIdx].Tick == tick {
			ev := te.events[eventIdx]
			eventIdx++
			touched := te.topo.ApplyEvent(ev)
			if len(touched) == 0 {
				continue
			}
			te.eventsApplied++
			te.tracker.Reset()
			if te.log != nil {
				te.log.Infof("tick %d: event %s u=%v v=%v metric=%v", tick, ev.Action, ev.U, ev.V, ev.Metric)
			}
			te.logEvent(TickEvent{Event: "event_applied", Tick: tick, Action: string(ev.Action), U: ev.U, V: ev.V, Metric: ev.Metric})
			for _, id := range touched {
				other := ev.V
				if id == ev.V {
					other = ev.U
				}
				isUp := ev.Action != rtcore.ActionRemoveLink
				out := te.nodes[id].OnLinkChange(te.ctxFor(id, float64(tick)), other, isUp)
				te.applyOutputs(id, out, tick)
			}
		}

		inbox := make(map[RouterId][]rtcore.ControlMessage)
		for _, d := range te.net.Deliver(tick) {
			inbox[d.Dst] = append(inbox[d.Dst], d.Msg)
		}

		for _, id := range nodeIDs {
			out := te.nodes[id].OnTick(te.ctxFor(id, float64(tick)))
			te.applyOutputs(id, out, tick)
			for _, msg := range inbox[id] {
				out := te.nodes[id].OnMessage(te.ctxFor(id, float64(tick)), msg)
				te.applyOutputs(id, out, tick)
			}
		}

		tables := make(map[RouterId][]rtcore.Route, len(nodeIDs))
		for _, id := range nodeIDs {
			tables[id] = te.ribs[id].All()
		}
		hash := rtcore.PerNodeHash(tables)
		hashStr := hashHex(hash)
		te.routeHashes = append(te.routeHashes, hashStr)
		te.countFlaps(tables)
		te.logEvent(TickEvent{Event: "tick", Tick: tick, Hash: hashStr})

		if te.tracker.Observe(tick, hash) {
			ct, _ := te.tracker.ConvergedTick()
			if te.firstConverged == nil {
				cp := ct
				te.firstConverged = &cp
			} else {
				te.reconverged = append(te.reconverged, ct)
			}
		}
	}

	delivered, dropped := te.net.Counters()
	finalTables := make(map[RouterId]map[RouterId][]RouterId, len(nodeIDs))
	for _, id := range nodeIDs {
		finalTables[id] = routeTableView(te.ribs[id].All())
	}

	return &RunResult{
		RunID:             uuid.NewString(),
		Seed:              te.cfg.Seed,
		Protocol:          te.cfg.Protocol,
		MaxTicks:          te.cfg.MaxTicks,
		ConvergedTick:     te.firstConverged,
		ReconvergedTicks:  te.reconverged,
		RouteHashes:       te.routeHashes,
		RouteTables:       finalTables,
		DeliveredMessages: delivered,
		DroppedMessages:   dropped,
		EventsApplied:     te.eventsApplied,
		RouteFlaps:        te.routeFlaps,
	}, nil
}

func (te *TickEngine) ctxFor(id RouterId, now float64) rtcore.ProtocolContext {
	return rtcore.ProtocolContext{
		RouterID: id,
		Now:      now,
		Links:    te.topo.LinksFor(id),
		Topology: te.topo.Snapshot(),
	}
}

func (te *TickEngine) applyOutputs(id RouterId, out rtcore.ProtocolOutputs, tick int) {
	for _, ob := range out.Outbound {
		te.net.Send(ob.Neighbor, ob.Message, tick)
	}
	if out.RoutesChanged {
		te.ribs[id].ReplaceProtocolRoutes(te.nodes[id].ProtocolTag(), out.Routes)
	}
}

// countFlaps implements spec.md §4.9's route-flap counter: incremented
// each time a node's per-destination next-hop set changes value.
func (te *TickEngine) countFlaps(tables map[RouterId][]rtcore.Route) {
	for id, routes := range tables {
		view := routeTableView(routes)
		prev := te.routeFlapPrev[id]
		for dst, hops := range view {
			if !sameHopSet(prev[dst], hops) {
				te.routeFlaps++
			}
		}
		for dst := range prev {
			if _, ok := view[dst]; !ok {
				te.routeFlaps++
			}
		}
		te.routeFlapPrev[id] = view
	}
}

func sameHopSet(a, b []RouterId) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
