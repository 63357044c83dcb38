// Package daemon implements the router runtime (spec.md §4.8): a single
// thread owning a UDP socket, the NeighborTable, one protocol engine, the
// RIB, the FIB, and the installer. Adapted from the bootstrap shape of
// aistore's ais/earlystart.go (load config, decide role, enter the loop)
// onto a much smaller "bind socket, start engine, loop" sequence.
package daemon

import (
	"net"
	ratomic "sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/routeforge/corenet/cerr"
	"github.com/routeforge/corenet/clog"
	"github.com/routeforge/corenet/corestats"
	"github.com/routeforge/corenet/hk"
	"github.com/routeforge/corenet/rtcore"
	"github.com/routeforge/corenet/rtcore/codec"
)

const readBufSize = 65535

// Runtime drives one protocol engine under wall-clock time and real UDP
// transport. Every field is owned exclusively by the goroutine running
// Run (spec.md §5: "no intra-protocol locking required").
type Runtime struct {
	cfg       rtcore.DaemonConfig
	engine    rtcore.Engine
	neighbors *rtcore.NeighborTable
	rib       *rtcore.RouteTable
	fib       *rtcore.ForwardingTable
	installer rtcore.Installer
	log       *clog.Logger
	stats     *corestats.Registry
	hk        *hk.Registry
	errs      cerr.Errs

	conn *net.UDPConn

	// clock returns the current time in seconds against an arbitrary
	// epoch; tests substitute a fake to drive the loop deterministically
	// instead of sleeping on a real UDP socket.
	clock func() float64

	// seen fingerprints exact-duplicate packets (lossy links retransmit
	// unchanged hellos/LSAs) so they're dropped before decode instead of
	// re-driving the protocol engine. Keyed by a cheap non-cryptographic
	// hash of source address + payload; dedupWindow bounds how long an
	// entry is remembered.
	seen        map[uint64]float64
	dedupWindow float64

	shuttingDown int32
}

// New binds the UDP socket and wires every collaborator. installer may be
// rtcore.NullInstaller{} when cfg.Forwarding.Enabled is false.
func New(cfg rtcore.DaemonConfig, engine rtcore.Engine, installer rtcore.Installer, log *clog.Logger, stats *corestats.Registry) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TickInterval*2 > cfg.DeadInterval {
		log.Warnf("dead_interval (%v) should be at least 2x tick_interval (%v)", cfg.DeadInterval, cfg.TickInterval)
	}

	addr := &net.UDPAddr{IP: net.ParseIP(cfg.BindAddress), Port: cfg.BindPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, cerr.NewErrConfig("bind %s:%d: %v", cfg.BindAddress, cfg.BindPort, err)
	}

	start := time.Now()
	rt := &Runtime{
		cfg:         cfg,
		engine:      engine,
		neighbors:   rtcore.NewNeighborTable(cfg.RouterID, cfg.Neighbors, cfg.DeadInterval),
		rib:         rtcore.NewRouteTable(cfg.RouterID),
		fib:         rtcore.NewForwardingTable(),
		installer:   installer,
		log:         log,
		stats:       stats,
		hk:          hk.NewRegistry(),
		conn:        conn,
		clock:       func() float64 { return time.Since(start).Seconds() },
		seen:        make(map[uint64]float64),
		dedupWindow: cfg.TickInterval * 2,
	}
	rt.hk.Register("flush-log", cfg.TickInterval*10, func(float64) { rt.log.Flush() })
	rt.hk.Register("prune-dedup", cfg.TickInterval*10, rt.pruneSeen)
	return rt, nil
}

// LocalAddr exposes the bound socket address, mainly so tests binding to
// port 0 can discover the ephemeral port the kernel assigned.
func (rt *Runtime) LocalAddr() net.Addr { return rt.conn.LocalAddr() }

// SetClock overrides the runtime's notion of "now," letting tests drive
// ticks and liveness deterministically instead of sleeping on real wall
// time.
func (rt *Runtime) SetClock(clock func() float64) { rt.clock = clock }

// Shutdown requests a cooperative stop; Run exits at the next quiescence
// point (spec.md §4.8 step 5, §5 "Cancellation").
func (rt *Runtime) Shutdown() { ratomic.StoreInt32(&rt.shuttingDown, 1) }

func (rt *Runtime) shouldStop() bool { return ratomic.LoadInt32(&rt.shuttingDown) != 0 }

// Run executes the main loop of spec.md §4.8 until Shutdown is called or
// the socket is closed. It always closes the socket and flushes the log
// before returning.
func (rt *Runtime) Run() error {
	defer rt.conn.Close()
	defer rt.log.Flush()

	now := rt.clock()
	rt.applyOutputs(rt.engine.Start(rt.ctxFor(now)))
	nextTickAt := now + rt.cfg.TickInterval

	buf := make([]byte, readBufSize)
	for !rt.shouldStop() {
		now = rt.clock()
		timeout := nextTickAt - now
		if timeout < 0 {
			timeout = 0
		}
		rt.conn.SetReadDeadline(time.Now().Add(time.Duration(timeout * float64(time.Second))))

		n, from, err := rt.conn.ReadFromUDP(buf)
		now = rt.clock()
		switch {
		case err == nil:
			rt.handlePacket(buf[:n], from, now)
		case isTimeout(err):
			// expected: woke up for the next tick boundary
		default:
			rt.log.Warnf("udp read error: %v", err)
		}

		rt.hk.RunDue(now)

		if now >= nextTickAt {
			rt.onTimer(now)
			nextTickAt += rt.cfg.TickInterval
		}
	}
	return nil
}

func (rt *Runtime) onTimer(now float64) {
	for _, id := range rt.neighbors.RefreshLiveness(now) {
		rt.log.Infof("neighbor %v liveness changed", id)
	}
	rt.applyOutputs(rt.engine.OnTick(rt.ctxFor(now)))
}

func (rt *Runtime) handlePacket(data []byte, from *net.UDPAddr, now float64) {
	fp := fingerprint(from, data)
	if last, ok := rt.seen[fp]; ok && now-last < rt.dedupWindow {
		rt.seen[fp] = now
		if rt.stats != nil {
			rt.stats.AddDuplicate(1)
		}
		return
	}
	rt.seen[fp] = now

	msg, err := codec.DecodeMessage(data)
	if err != nil {
		rt.errs.Add(err)
		rt.log.Warnf("drop from %s: %v", from, err)
		rt.countDrop()
		return
	}
	if msg.Protocol != rt.cfg.ProtocolTag {
		rt.log.Warnf("drop from %s: protocol %q does not match %q", from, msg.Protocol, rt.cfg.ProtocolTag)
		rt.countDrop()
		return
	}
	if !rt.neighbors.IsConfigured(msg.Src) {
		rt.log.Warnf("drop from %s: src %v is not a configured neighbor", from, msg.Src)
		rt.countDrop()
		return
	}

	rt.neighbors.MarkSeen(msg.Src, now)
	if rt.stats != nil {
		rt.stats.AddDelivered(1)
	}
	rt.applyOutputs(rt.engine.OnMessage(rt.ctxFor(now), msg))
}

// applyOutputs sends outbound packets best-effort and reconciles the
// RIB/FIB per spec.md §4.8's "Apply outputs" rules.
func (rt *Runtime) applyOutputs(out rtcore.ProtocolOutputs) {
	for _, ob := range out.Outbound {
		rt.send(ob)
	}
	if !out.RoutesChanged {
		return
	}
	if !rt.rib.ReplaceProtocolRoutes(rt.engine.ProtocolTag(), out.Routes) {
		return
	}
	if rt.stats != nil {
		rt.stats.IncRibChange()
	}
	rt.log.Infof("RIB changed: %d routes", len(out.Routes))

	if !rt.fib.SyncFromRoutes(rt.rib.All()) {
		return
	}
	added, removed := rt.fib.Added(), rt.fib.Removed()
	if err := rt.installer.Apply(added, removed); err != nil {
		rt.log.Errorf("installer apply failed: %v", err)
		return
	}
	if rt.stats != nil {
		for range added {
			rt.stats.IncFibInstall()
		}
		for range removed {
			rt.stats.IncFibRemoval()
		}
	}
	rt.log.Infof("FIB delta: +%d -%d", len(added), len(removed))
}

func (rt *Runtime) send(ob rtcore.Outbound) {
	address, port, ok := rt.neighbors.AddressOf(ob.Neighbor)
	if !ok {
		rt.log.Warnf("no address configured for neighbor %v, dropping outbound", ob.Neighbor)
		rt.countDrop()
		return
	}
	b, err := codec.EncodeMessage(ob.Message)
	if err != nil {
		rt.log.Errorf("encode to %v failed: %v", ob.Neighbor, err)
		rt.countDrop()
		return
	}
	dst := &net.UDPAddr{IP: net.ParseIP(address), Port: port}
	if _, err := rt.conn.WriteToUDP(b, dst); err != nil {
		rt.log.Warnf("send to %v (%s) failed: %v", ob.Neighbor, dst, err)
		rt.countDrop()
	}
}

// pruneSeen evicts fingerprints older than dedupWindow so the map can't
// grow without bound across a long-running daemon.
func (rt *Runtime) pruneSeen(now float64) {
	for fp, last := range rt.seen {
		if now-last >= rt.dedupWindow {
			delete(rt.seen, fp)
		}
	}
}

// fingerprint is a cheap non-cryptographic fingerprint of a packet's
// source and payload, used only for same-tick retransmit detection; it is
// never a substitute for the codec's own validation.
func fingerprint(from *net.UDPAddr, data []byte) uint64 {
	d := xxhash.New()
	d.Write([]byte(from.String()))
	d.Write(data)
	return d.Sum64()
}

func (rt *Runtime) countDrop() {
	if rt.stats != nil {
		rt.stats.AddDropped(1)
	}
}

func (rt *Runtime) ctxFor(now float64) rtcore.ProtocolContext {
	return rtcore.ProtocolContext{
		RouterID: rt.cfg.RouterID,
		Now:      now,
		Links:    rt.neighbors.Snapshot(),
		// Topology stays nil: the daemon has no centralized oracle, so
		// ECMP/TopK/Adaptive engines fall back to their own LSDB-derived
		// graph (see proto/lstopo).
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
