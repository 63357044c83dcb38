package main

import (
	"os"

	"gopkg.in/yaml.v2"

	"github.com/routeforge/corenet/cerr"
	"github.com/routeforge/corenet/rtcore"
)

// fileConfig mirrors spec.md §6's simulator config shape on disk.
type fileConfig struct {
	Seed           uint64                     `yaml:"seed"`
	Protocol       string                     `yaml:"protocol"`
	ProtocolParams map[string]map[string]any  `yaml:"protocol_params"`
	Topology       struct {
		Nodes []int `yaml:"nodes"`
		Edges []struct {
			A    int     `yaml:"a"`
			B    int     `yaml:"b"`
			Cost float64 `yaml:"cost"`
		} `yaml:"edges"`
	} `yaml:"topology"`
	Engine struct {
		MaxTicks int `yaml:"max_ticks"`
	} `yaml:"engine"`
	Network struct {
		BaseDelay int     `yaml:"base_delay"`
		Jitter    int     `yaml:"jitter"`
		LossProb  float64 `yaml:"loss_prob"`
	} `yaml:"network"`
	Failures []struct {
		Tick   int     `yaml:"tick"`
		Action string  `yaml:"action"`
		U      int     `yaml:"u"`
		V      int     `yaml:"v"`
		Metric float64 `yaml:"metric"`
	} `yaml:"failures"`
	ConvergenceWindow int `yaml:"convergence_window"`
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

func (fc fileConfig) toSimConfig(seed uint64) (rtcore.SimConfig, error) {
	nodes := make([]rtcore.RouterId, 0, len(fc.Topology.Nodes))
	for _, n := range fc.Topology.Nodes {
		nodes = append(nodes, rtcore.RouterId(n))
	}
	edges := make([]rtcore.TopologyEdge, 0, len(fc.Topology.Edges))
	for _, e := range fc.Topology.Edges {
		edges = append(edges, rtcore.TopologyEdge{A: rtcore.RouterId(e.A), B: rtcore.RouterId(e.B), Cost: e.Cost})
	}

	failures := make([]rtcore.ExternalEvent, 0, len(fc.Failures))
	for _, f := range fc.Failures {
		action := rtcore.EventAction(f.Action)
		switch action {
		case rtcore.ActionRemoveLink, rtcore.ActionAddLink, rtcore.ActionUpdateMetric:
		default:
			return rtcore.SimConfig{}, cerr.NewErrConfig("unknown failure action %q at tick %d", f.Action, f.Tick)
		}
		failures = append(failures, rtcore.ExternalEvent{
			Tick: f.Tick, Action: action, U: rtcore.RouterId(f.U), V: rtcore.RouterId(f.V), Metric: f.Metric,
		})
	}

	return rtcore.SimConfig{
		Seed:           seed,
		Protocol:       fc.Protocol,
		ProtocolParams: fc.ProtocolParams[fc.Protocol],
		Topology:       rtcore.SimTopology{Nodes: nodes, Edges: edges},
		MaxTicks:       fc.Engine.MaxTicks,
		Network: rtcore.NetworkParams{
			BaseDelay: fc.Network.BaseDelay,
			Jitter:    fc.Network.Jitter,
			LossProb:  fc.Network.LossProb,
		},
		Failures:          failures,
		ConvergenceWindow: fc.ConvergenceWindow,
	}, nil
}
