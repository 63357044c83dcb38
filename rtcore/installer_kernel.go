package rtcore

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/routeforge/corenet/clog"
)

// KernelInstaller reconciles kernel routes in a given routing table via
// netlink, replacing the teacher pack's shelled-out `ip route` invocations
// with direct RTNETLINK calls (see DESIGN.md; grounded on
// other_examples/manifests/nishisan-dev-n-netman and the vishvananda/netlink
// dependency present in cubxxw-gvisor's go.mod).
type KernelInstaller struct {
	TableID             int
	DestinationPrefixes map[RouterId]string // router id -> CIDR, from daemon config
	NextHopAddresses    map[RouterId]string // router id -> IP, from daemon config
	DryRun              bool
	Log                 *clog.Logger
}

// Apply installs added entries with RouteReplace and removes the rest
// with RouteDel, treating ESRCH ("not found") on delete as success per
// spec.md §7.
func (k *KernelInstaller) Apply(added, removed []ForwardingEntry) error {
	for _, e := range added {
		route, err := k.toNetlinkRoute(e)
		if err != nil {
			k.logf("skip %v: %v", e.Destination, err)
			continue
		}
		if k.DryRun {
			k.logf("dry-run: would replace route %s via %s table %d", route.Dst, route.Gw, k.TableID)
			continue
		}
		if err := netlink.RouteReplace(route); err != nil {
			k.logf("route replace failed for %v: %v", e.Destination, err)
		}
	}
	for _, e := range removed {
		route, err := k.toNetlinkRoute(e)
		if err != nil {
			k.logf("skip delete %v: %v", e.Destination, err)
			continue
		}
		if k.DryRun {
			k.logf("dry-run: would delete route %s table %d", route.Dst, k.TableID)
			continue
		}
		if err := netlink.RouteDel(route); err != nil && !isNotFound(err) {
			k.logf("route delete failed for %v: %v", e.Destination, err)
		}
	}
	return nil
}

func (k *KernelInstaller) toNetlinkRoute(e ForwardingEntry) (*netlink.Route, error) {
	prefix, ok := k.DestinationPrefixes[e.Destination]
	if !ok {
		return nil, fmt.Errorf("no destination prefix configured for router %v", e.Destination)
	}
	_, dst, err := net.ParseCIDR(prefix)
	if err != nil {
		return nil, fmt.Errorf("invalid destination prefix %q: %w", prefix, err)
	}
	nextHop := e.NextHop
	if len(e.NextHops) > 0 {
		nextHop = e.NextHops[0] // kernel FIB installs one primary next hop; ECMP multipath is a future extension
	}
	gwStr, ok := k.NextHopAddresses[nextHop]
	if !ok {
		return nil, fmt.Errorf("no next-hop address configured for router %v", nextHop)
	}
	gw := net.ParseIP(gwStr)
	if gw == nil {
		return nil, fmt.Errorf("invalid next-hop address %q", gwStr)
	}
	return &netlink.Route{
		Table: k.TableID,
		Dst:   dst,
		Gw:    gw,
	}, nil
}

func (k *KernelInstaller) logf(format string, args ...any) {
	if k.Log != nil {
		k.Log.Warnf(format, args...)
	}
}

func isNotFound(err error) bool {
	// vishvananda/netlink surfaces a kernel ESRCH as a plain syscall
	// error; route-already-absent is treated as a successful delete.
	return err != nil && (err.Error() == "no such process" || err.Error() == "not found")
}
