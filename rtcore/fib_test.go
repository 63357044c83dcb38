package rtcore_test

import (
	"testing"

	"github.com/routeforge/corenet/rtcore"
)

type countingInstaller struct {
	calls int
}

func (c *countingInstaller) Apply(added, removed []rtcore.ForwardingEntry) error {
	c.calls++
	return nil
}

func TestSyncFromRoutesIdempotent(t *testing.T) {
	fib := rtcore.NewForwardingTable()
	routes := []rtcore.Route{
		{Destination: 2, NextHop: 2, Metric: 1, ProtocolTag: "ospf"},
		{Destination: 1, NextHop: 1, Metric: 0, ProtocolTag: rtcore.SelfProtocolTag},
	}
	if changed := fib.SyncFromRoutes(routes); !changed {
		t.Fatal("expected first sync to report a change")
	}
	installer := &countingInstaller{}
	installer.Apply(fib.Added(), fib.Removed())

	if changed := fib.SyncFromRoutes(routes); changed {
		t.Fatal("expected second identical sync to report no change")
	}
	if installer.calls != 1 {
		t.Fatalf("installer should be invoked exactly once, got %d", installer.calls)
	}
}

func TestSyncFromRoutesExcludesSelfRoute(t *testing.T) {
	fib := rtcore.NewForwardingTable()
	fib.SyncFromRoutes([]rtcore.Route{
		{Destination: 1, NextHop: 1, Metric: 0, ProtocolTag: rtcore.SelfProtocolTag},
	})
	if len(fib.All()) != 0 {
		t.Fatalf("self route must not be installable, got %+v", fib.All())
	}
}

func TestSyncFromRoutesComputesAddedAndRemoved(t *testing.T) {
	fib := rtcore.NewForwardingTable()
	fib.SyncFromRoutes([]rtcore.Route{
		{Destination: 2, NextHop: 2, Metric: 1, ProtocolTag: "ospf"},
		{Destination: 3, NextHop: 2, Metric: 2, ProtocolTag: "ospf"},
	})
	fib.SyncFromRoutes([]rtcore.Route{
		{Destination: 2, NextHop: 2, Metric: 1, ProtocolTag: "ospf"},
		{Destination: 4, NextHop: 2, Metric: 3, ProtocolTag: "ospf"},
	})
	added := fib.Added()
	removed := fib.Removed()
	if len(added) != 1 || added[0].Destination != 4 {
		t.Fatalf("expected added=[4], got %+v", added)
	}
	if len(removed) != 1 || removed[0].Destination != 3 {
		t.Fatalf("expected removed=[3], got %+v", removed)
	}
}

func TestNullInstallerIsNoop(t *testing.T) {
	var inst rtcore.NullInstaller
	if err := inst.Apply(nil, nil); err != nil {
		t.Fatalf("NullInstaller.Apply returned error: %v", err)
	}
}
