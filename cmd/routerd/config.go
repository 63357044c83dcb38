package main

import (
	"os"

	"gopkg.in/yaml.v2"

	"github.com/routeforge/corenet/cerr"
	"github.com/routeforge/corenet/rtcore"
)

// fileConfig mirrors spec.md §6's daemon config shape on disk. The core
// itself is agnostic to this format (rtcore.DaemonConfig is what it
// consumes); this type and loadFile exist only at the cmd/routerd edge.
type fileConfig struct {
	RouterID int    `yaml:"router_id"`
	Protocol string `yaml:"protocol"`
	Bind     struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"bind"`
	Timers struct {
		TickIntervalS float64 `yaml:"tick_interval_s"`
		DeadIntervalS float64 `yaml:"dead_interval_s"`
	} `yaml:"timers"`
	Neighbors []struct {
		RouterID int     `yaml:"router_id"`
		Address  string  `yaml:"address"`
		Port     int     `yaml:"port"`
		Cost     float64 `yaml:"cost"`
	} `yaml:"neighbors"`
	ProtocolParams map[string]map[string]any `yaml:"protocol_params"`
	Forwarding     struct {
		Enabled             bool           `yaml:"enabled"`
		DryRun              bool           `yaml:"dry_run"`
		Table               int            `yaml:"table"`
		DestinationPrefixes map[int]string `yaml:"destination_prefixes"`
		NextHopIPs          map[int]string `yaml:"next_hop_ips"`
	} `yaml:"forwarding"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, cerr.NewErrConfig("read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, cerr.NewErrConfig("parse %s: %v", path, err)
	}
	return fc, nil
}

// toDaemonConfig translates the on-disk shape into rtcore.DaemonConfig,
// and separately returns this protocol's own params blob for protoset.
func (fc fileConfig) toDaemonConfig() (rtcore.DaemonConfig, map[string]any) {
	neighbors := make([]rtcore.NeighborSpec, 0, len(fc.Neighbors))
	for _, n := range fc.Neighbors {
		neighbors = append(neighbors, rtcore.NeighborSpec{
			RouterID: rtcore.RouterId(n.RouterID),
			Address:  n.Address,
			Port:     n.Port,
			Cost:     n.Cost,
		})
	}

	destPrefixes := make(map[rtcore.RouterId]string, len(fc.Forwarding.DestinationPrefixes))
	for id, cidr := range fc.Forwarding.DestinationPrefixes {
		destPrefixes[rtcore.RouterId(id)] = cidr
	}
	nextHops := make(map[rtcore.RouterId]string, len(fc.Forwarding.NextHopIPs))
	for id, ip := range fc.Forwarding.NextHopIPs {
		nextHops[rtcore.RouterId(id)] = ip
	}

	cfg := rtcore.DaemonConfig{
		RouterID:       rtcore.RouterId(fc.RouterID),
		ProtocolTag:    fc.Protocol,
		BindAddress:    fc.Bind.Address,
		BindPort:       fc.Bind.Port,
		TickInterval:   fc.Timers.TickIntervalS,
		DeadInterval:   fc.Timers.DeadIntervalS,
		Neighbors:      neighbors,
		ProtocolParams: fc.ProtocolParams[fc.Protocol],
		Forwarding: rtcore.ForwardingPolicy{
			Enabled:             fc.Forwarding.Enabled,
			DryRun:              fc.Forwarding.DryRun,
			TableID:             fc.Forwarding.Table,
			DestinationPrefixes: destPrefixes,
			NextHopAddresses:    nextHops,
		},
	}
	return cfg, fc.ProtocolParams[fc.Protocol]
}
