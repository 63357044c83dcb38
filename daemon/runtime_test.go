package daemon_test

import (
	"net"
	"testing"
	"time"

	"github.com/routeforge/corenet/clog"
	"github.com/routeforge/corenet/corestats"
	"github.com/routeforge/corenet/daemon"
	"github.com/routeforge/corenet/proto/ospf"
	"github.com/routeforge/corenet/rtcore"
)

func nullLogger() *clog.Logger { return clog.NewStderr("test") }

func baseConfig(id rtcore.RouterId, neighbors ...rtcore.NeighborSpec) rtcore.DaemonConfig {
	return rtcore.DaemonConfig{
		RouterID:     id,
		ProtocolTag:  ospf.ProtocolTag,
		BindAddress:  "127.0.0.1",
		BindPort:     0, // kernel-assigned ephemeral port
		TickInterval: 1,
		DeadInterval: 5,
		Neighbors:    neighbors,
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := baseConfig(1)
	cfg.ProtocolTag = ""
	if _, err := daemon.New(cfg, ospf.New(1, 1, 3, 20), rtcore.NullInstaller{}, nullLogger(), nil); err == nil {
		t.Fatal("expected validation error for missing protocol tag")
	}
}

func TestNewBindsEphemeralPort(t *testing.T) {
	cfg := baseConfig(1)
	rt, err := daemon.New(cfg, ospf.New(1, 1, 3, 20), rtcore.NullInstaller{}, nullLogger(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr, ok := rt.LocalAddr().(*net.UDPAddr)
	if !ok || addr.Port == 0 {
		t.Fatalf("expected a kernel-assigned UDP port, got %v", rt.LocalAddr())
	}
}

func TestStatusReflectsConfiguredNeighborsAndStats(t *testing.T) {
	cfg := baseConfig(1, rtcore.NeighborSpec{RouterID: 2, Address: "127.0.0.1", Port: 9999, Cost: 1})
	reg := corestats.NewRegistry(1, ospf.ProtocolTag, nil)
	rt, err := daemon.New(cfg, ospf.New(1, 1, 3, 20), rtcore.NullInstaller{}, nullLogger(), reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	status := rt.Status()
	if status.RouterID != 1 || status.Protocol != ospf.ProtocolTag {
		t.Fatalf("unexpected status header: %+v", status)
	}
	if len(status.Neighbors) != 1 || status.Neighbors[0].RouterID != 2 || status.Neighbors[0].IsUp {
		t.Fatalf("expected neighbor 2 configured and initially down, got %+v", status.Neighbors)
	}
}

// Two loopback daemons exchange real OSPF HELLO/LSA traffic over UDP and
// must converge on routes to each other within a short wall-clock window.
func TestTwoDaemonsConvergeOverLoopbackUDP(t *testing.T) {
	const portA, portB = 18881, 18882
	cfgA := baseConfig(1, rtcore.NeighborSpec{RouterID: 2, Address: "127.0.0.1", Port: portB, Cost: 1})
	cfgA.BindPort = portA
	cfgB := baseConfig(2, rtcore.NeighborSpec{RouterID: 1, Address: "127.0.0.1", Port: portA, Cost: 1})
	cfgB.BindPort = portB

	rtA, err := daemon.New(cfgA, ospf.New(1, 1, 3, 20), rtcore.NullInstaller{}, nullLogger(), nil)
	if err != nil {
		t.Fatalf("New A: %v", err)
	}
	rtB, err := daemon.New(cfgB, ospf.New(2, 1, 3, 20), rtcore.NullInstaller{}, nullLogger(), nil)
	if err != nil {
		t.Fatalf("New B: %v", err)
	}

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go func() { doneA <- rtA.Run() }()
	go func() { doneB <- rtB.Run() }()

	time.Sleep(500 * time.Millisecond)
	rtA.Shutdown()
	rtB.Shutdown()
	<-doneA
	<-doneB

	statusA := rtA.Status()
	var sawRouteToB bool
	for _, r := range statusA.Routes {
		if r.Destination == 2 {
			sawRouteToB = true
		}
	}
	if !sawRouteToB {
		t.Fatal("expected router 1 to have converged a route to router 2 over UDP")
	}
}
