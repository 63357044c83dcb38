// Package corestats tracks router-runtime counters and exposes them both
// as Prometheus metrics and as a plain JSON-able snapshot for the status
// endpoint, the way aistore's stats.Tracker doubles as StatsD/Prometheus
// source and REST "what=stats" payload.
package corestats

import (
	ratomic "sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/routeforge/corenet/rtcore"
)

// Naming convention (mirrors the "*.n"/"*.ns"/"*.size" suffixes the core
// route engines' sibling stats package uses, translated to Prometheus
// snake_case + _total):
const (
	MessagesDelivered = "corenet_messages_delivered_total"
	MessagesDropped   = "corenet_messages_dropped_total"
	MessagesDuplicate = "corenet_messages_duplicate_total"
	RibChanges        = "corenet_rib_changes_total"
	FibInstalls       = "corenet_fib_installs_total"
	FibRemovals       = "corenet_fib_removals_total"
	RouteFlaps        = "corenet_route_flaps_total"
	ConvergedTickName = "corenet_converged_tick"
)

// Registry holds one router's running counters. Values are kept in
// atomics independent of the Prometheus collectors so a status snapshot
// never has to scrape the registry to answer a REST query.
type Registry struct {
	routerID    rtcore.RouterId
	protocolTag string

	delivered     int64
	dropped       int64
	duplicates    int64
	ribChanges    int64
	fibInstalls   int64
	fibRemovals   int64
	routeFlaps    int64
	convergedTick int64 // -1 until the first convergence is observed

	promDelivered     prometheus.Counter
	promDropped       prometheus.Counter
	promDuplicates    prometheus.Counter
	promRibChanges    prometheus.Counter
	promFibInstalls   prometheus.Counter
	promFibRemovals   prometheus.Counter
	promRouteFlaps    prometheus.Counter
	promConvergedTick prometheus.Gauge
}

// NewRegistry registers one set of labeled collectors against reg. Pass
// prometheus.DefaultRegisterer for process-wide export, or a fresh
// *prometheus.Registry in tests to avoid collisions across router
// instances in the same process.
func NewRegistry(routerID rtcore.RouterId, protocolTag string, reg prometheus.Registerer) *Registry {
	labels := prometheus.Labels{"router_id": routerID.String(), "protocol": protocolTag}
	f := promauto.With(reg)
	return &Registry{
		routerID:      routerID,
		protocolTag:   protocolTag,
		convergedTick: -1,

		promDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: MessagesDelivered, Help: "control messages delivered to this router", ConstLabels: labels,
		}),
		promDropped: f.NewCounter(prometheus.CounterOpts{
			Name: MessagesDropped, Help: "control messages lost by the network model or socket", ConstLabels: labels,
		}),
		promDuplicates: f.NewCounter(prometheus.CounterOpts{
			Name: MessagesDuplicate, Help: "inbound packets recognized as exact retransmits and dropped before decode", ConstLabels: labels,
		}),
		promRibChanges: f.NewCounter(prometheus.CounterOpts{
			Name: RibChanges, Help: "RIB replace-protocol-routes calls that changed the route set", ConstLabels: labels,
		}),
		promFibInstalls: f.NewCounter(prometheus.CounterOpts{
			Name: FibInstalls, Help: "forwarding entries installed into the FIB", ConstLabels: labels,
		}),
		promFibRemovals: f.NewCounter(prometheus.CounterOpts{
			Name: FibRemovals, Help: "forwarding entries removed from the FIB", ConstLabels: labels,
		}),
		promRouteFlaps: f.NewCounter(prometheus.CounterOpts{
			Name: RouteFlaps, Help: "per-destination next-hop set changes", ConstLabels: labels,
		}),
		promConvergedTick: f.NewGauge(prometheus.GaugeOpts{
			Name: ConvergedTickName, Help: "most recent tick at which the route table stabilized, -1 if never", ConstLabels: labels,
		}),
	}
}

func (r *Registry) AddDelivered(n int) {
	ratomic.AddInt64(&r.delivered, int64(n))
	r.promDelivered.Add(float64(n))
}

func (r *Registry) AddDropped(n int) {
	ratomic.AddInt64(&r.dropped, int64(n))
	r.promDropped.Add(float64(n))
}

func (r *Registry) AddDuplicate(n int) {
	ratomic.AddInt64(&r.duplicates, int64(n))
	r.promDuplicates.Add(float64(n))
}

func (r *Registry) IncRibChange() {
	ratomic.AddInt64(&r.ribChanges, 1)
	r.promRibChanges.Inc()
}

func (r *Registry) IncFibInstall() {
	ratomic.AddInt64(&r.fibInstalls, 1)
	r.promFibInstalls.Inc()
}

func (r *Registry) IncFibRemoval() {
	ratomic.AddInt64(&r.fibRemovals, 1)
	r.promFibRemovals.Inc()
}

func (r *Registry) AddRouteFlaps(n int) {
	ratomic.AddInt64(&r.routeFlaps, int64(n))
	r.promRouteFlaps.Add(float64(n))
}

func (r *Registry) SetConvergedTick(tick int) {
	ratomic.StoreInt64(&r.convergedTick, int64(tick))
	r.promConvergedTick.Set(float64(tick))
}

// Snapshot is the REST-facing, point-in-time copy of every counter.
type Snapshot struct {
	RouterID      rtcore.RouterId `json:"router_id"`
	Protocol      string          `json:"protocol"`
	Delivered     int64           `json:"messages_delivered"`
	Dropped       int64           `json:"messages_dropped"`
	Duplicates    int64           `json:"messages_duplicate"`
	RibChanges    int64           `json:"rib_changes"`
	FibInstalls   int64           `json:"fib_installs"`
	FibRemovals   int64           `json:"fib_removals"`
	RouteFlaps    int64           `json:"route_flaps"`
	ConvergedTick int64           `json:"converged_tick"`
}

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		RouterID:      r.routerID,
		Protocol:      r.protocolTag,
		Delivered:     ratomic.LoadInt64(&r.delivered),
		Dropped:       ratomic.LoadInt64(&r.dropped),
		Duplicates:    ratomic.LoadInt64(&r.duplicates),
		RibChanges:    ratomic.LoadInt64(&r.ribChanges),
		FibInstalls:   ratomic.LoadInt64(&r.fibInstalls),
		FibRemovals:   ratomic.LoadInt64(&r.fibRemovals),
		RouteFlaps:    ratomic.LoadInt64(&r.routeFlaps),
		ConvergedTick: ratomic.LoadInt64(&r.convergedTick),
	}
}
