package rtcore

import "github.com/routeforge/corenet/cerr"

// ForwardingPolicy controls whether and how computed routes reach a real
// forwarding plane.
type ForwardingPolicy struct {
	Enabled             bool
	DryRun              bool
	TableID             int
	DestinationPrefixes map[RouterId]string // router id -> CIDR
	NextHopAddresses    map[RouterId]string  // router id -> IP
}

// DaemonConfig is the parsed, already-resolved configuration for one
// router process. The core is agnostic to the on-disk format; a loader
// outside this module's scope is responsible for producing this struct.
type DaemonConfig struct {
	RouterID      RouterId
	ProtocolTag   string
	BindAddress   string
	BindPort      int
	TickInterval  float64
	DeadInterval  float64
	Neighbors     []NeighborSpec
	ProtocolParams map[string]any
	Forwarding    ForwardingPolicy
}

// Validate enforces the fatal-at-startup config errors spec.md §7 lists:
// missing fields, bad timers/costs, a neighbor referencing a nonexistent
// router id is not checkable here (the core has no topology oracle at
// daemon-config time) but negative/zero timers and negative costs are.
func (c *DaemonConfig) Validate() error {
	if c.ProtocolTag == "" {
		return cerr.NewErrConfig("missing protocol tag")
	}
	if c.BindAddress == "" {
		return cerr.NewErrConfig("missing bind address")
	}
	if c.BindPort <= 0 || c.BindPort > 65535 {
		return cerr.NewErrConfig("invalid bind port %d", c.BindPort)
	}
	if c.TickInterval <= 0 {
		return cerr.NewErrConfig("tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.DeadInterval <= 0 {
		return cerr.NewErrConfig("dead_interval must be positive, got %v", c.DeadInterval)
	}
	seen := make(map[RouterId]bool, len(c.Neighbors))
	for _, n := range c.Neighbors {
		if n.RouterID == c.RouterID {
			return cerr.NewErrConfig("neighbor list references self (router %v)", c.RouterID)
		}
		if seen[n.RouterID] {
			return cerr.NewErrConfig("duplicate neighbor entry for router %v", n.RouterID)
		}
		seen[n.RouterID] = true
		if n.Cost < 0 {
			return cerr.NewErrConfig("negative link cost for neighbor %v", n.RouterID)
		}
		if n.Address == "" || n.Port <= 0 {
			return cerr.NewErrConfig("invalid address/port for neighbor %v", n.RouterID)
		}
	}
	if c.Forwarding.Enabled {
		for _, n := range c.Neighbors {
			_ = n // destination-prefix/next-hop completeness is checked lazily by the installer per entry
		}
	}
	return nil
}

// NetworkParams configures the simulator's delay/jitter/loss model.
type NetworkParams struct {
	BaseDelay int     // ticks
	Jitter    int     // ticks, uniform additional delay in [0, Jitter]
	LossProb  float64 // [0, 1]
}

// TopologyEdge is one undirected link in a SimConfig's topology.
type TopologyEdge struct {
	A, B RouterId
	Cost float64
}

// SimTopology is the full node/edge set a simulator run is constructed
// over (translation from names to RouterId happens upstream, out of
// scope).
type SimTopology struct {
	Nodes []RouterId
	Edges []TopologyEdge
}

// SimConfig is the parsed configuration for one simulator run.
type SimConfig struct {
	Seed              uint64
	Protocol          string
	ProtocolParams    map[string]any
	Topology          SimTopology
	MaxTicks          int
	Network           NetworkParams
	Failures          []ExternalEvent
	ConvergenceWindow int
}

// Validate rejects negative link costs at config load time, per spec.md
// §4.2 ("Negative-cost links must be rejected at config load, not the
// protocol's concern at runtime").
func (c *SimConfig) Validate() error {
	if c.MaxTicks <= 0 {
		return cerr.NewErrConfig("max_ticks must be positive, got %d", c.MaxTicks)
	}
	if c.ConvergenceWindow <= 0 {
		return cerr.NewErrConfig("convergence_window must be positive, got %d", c.ConvergenceWindow)
	}
	if c.Network.LossProb < 0 || c.Network.LossProb > 1 {
		return cerr.NewErrConfig("loss_prob must be in [0, 1], got %v", c.Network.LossProb)
	}
	if c.Network.BaseDelay < 0 || c.Network.Jitter < 0 {
		return cerr.NewErrConfig("base_delay and jitter must be non-negative")
	}
	known := make(map[RouterId]bool, len(c.Topology.Nodes))
	for _, n := range c.Topology.Nodes {
		known[n] = true
	}
	for _, e := range c.Topology.Edges {
		if e.Cost < 0 {
			return cerr.NewErrConfig("negative cost on edge (%v, %v)", e.A, e.B)
		}
		if !known[e.A] || !known[e.B] {
			return cerr.NewErrConfig("edge (%v, %v) references an unknown node", e.A, e.B)
		}
	}
	return nil
}
