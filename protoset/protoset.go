// Package protoset is the single place that knows how to turn a protocol
// tag string plus a loosely-typed params map (as decoded from YAML by a
// cmd/ binary) into a concrete rtcore.Engine. ospf and rip hardcode their
// own ProtocolTag constant; ecmp/topk and ddr/dgr/octopus share one Engine
// type per family and take the tag as a constructor argument instead, so
// this package is also where that asymmetry gets absorbed once rather than
// in every caller.
package protoset

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/routeforge/corenet/cerr"
	"github.com/routeforge/corenet/proto/adaptive"
	"github.com/routeforge/corenet/proto/ecmp"
	"github.com/routeforge/corenet/proto/ospf"
	"github.com/routeforge/corenet/proto/rip"
	"github.com/routeforge/corenet/rtcore"
)

// Known protocol tags, in the order spec.md §4 introduces them.
const (
	TagOSPF    = ospf.ProtocolTag
	TagRIP     = rip.ProtocolTag
	TagECMP    = "ecmp"
	TagTopK    = "topk"
	TagDDR     = "ddr"
	TagDGR     = "dgr"
	TagOctopus = "octopus"
)

// builderFunc constructs one protocol's engine from a decoded params map.
type builderFunc func(self rtcore.RouterId, seed uint64, raw map[string]any) (rtcore.Engine, error)

// registry maps a protocol tag to its builder. Populated once in init
// below; register/Build/Validate all go through this map rather than a
// hardcoded switch, so a new protocol family is added in one place.
var registry = map[string]builderFunc{}

func register(tag string, b builderFunc) { registry[tag] = b }

func init() {
	register(TagOSPF, func(self rtcore.RouterId, _ uint64, raw map[string]any) (rtcore.Engine, error) {
		return buildOSPF(self, raw)
	})
	register(TagRIP, func(self rtcore.RouterId, _ uint64, raw map[string]any) (rtcore.Engine, error) {
		return buildRIP(self, raw)
	})
	for _, tag := range []string{TagECMP, TagTopK} {
		tag := tag
		register(tag, func(self rtcore.RouterId, seed uint64, raw map[string]any) (rtcore.Engine, error) {
			return buildECMP(tag, self, seed, raw)
		})
	}
	for _, tag := range []string{TagDDR, TagDGR, TagOctopus} {
		tag := tag
		register(tag, func(self rtcore.RouterId, seed uint64, raw map[string]any) (rtcore.Engine, error) {
			return buildAdaptive(tag, self, seed, raw)
		})
	}
}

// Build constructs the engine named by tag for router self, decoding raw
// (a DaemonConfig or SimConfig's ProtocolParams, i.e. whatever a YAML
// loader produced) into that protocol's Params struct. seed is used as a
// fallback RNG seed when raw does not set one itself, so a run-level seed
// can drive every node's engine without repeating it in every protocol
// block.
func Build(tag string, self rtcore.RouterId, seed uint64, raw map[string]any) (rtcore.Engine, error) {
	b, ok := registry[tag]
	if !ok {
		return nil, cerr.NewErrConfig("unknown protocol tag %q", tag)
	}
	return b(self, seed, raw)
}

// decode round-trips raw through YAML into dst, so a map[string]any decoded
// generically from a config file lands on the protocol's typed Params
// struct without a reflection-based mapping library in the dependency set.
func decode(raw map[string]any, dst any) error {
	if raw == nil {
		return nil
	}
	b, err := yaml.Marshal(raw)
	if err != nil {
		return cerr.NewErrConfig("re-marshal protocol params: %v", err)
	}
	if err := yaml.Unmarshal(b, dst); err != nil {
		return cerr.NewErrDecode("decode protocol params: %v", err)
	}
	return nil
}

type ospfParams struct {
	HelloInterval float64 `yaml:"hello_interval"`
	LSAInterval   float64 `yaml:"lsa_interval"`
	LSAMaxAge     float64 `yaml:"lsa_max_age"`
	// Jitter and SPFInterval default to 0 (off): a fixed extra gap added
	// to the self-LSA refresh interval, and a debounce window that
	// coalesces a burst of LSDB changes into one SPF recompute.
	Jitter      float64 `yaml:"jitter"`
	SPFInterval float64 `yaml:"spf_interval"`
}

func buildOSPF(self rtcore.RouterId, raw map[string]any) (rtcore.Engine, error) {
	p := ospfParams{HelloInterval: 1, LSAInterval: 5, LSAMaxAge: 30}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.HelloInterval <= 0 || p.LSAInterval <= 0 || p.LSAMaxAge <= 0 {
		return nil, cerr.NewErrConfig("ospf timers must be positive, got %+v", p)
	}
	if p.Jitter < 0 || p.SPFInterval < 0 {
		return nil, cerr.NewErrConfig("ospf jitter/spf_interval must not be negative, got %+v", p)
	}
	eng := ospf.New(self, p.HelloInterval, p.LSAInterval, p.LSAMaxAge)
	eng.SetTuning(p.Jitter, p.SPFInterval)
	return eng, nil
}

func buildRIP(self rtcore.RouterId, raw map[string]any) (rtcore.Engine, error) {
	p := rip.Params{UpdateInterval: 5, NeighborTimeout: 15, InfinityMetric: 16, SplitHorizon: true}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.UpdateInterval <= 0 || p.InfinityMetric <= 0 {
		return nil, cerr.NewErrConfig("rip params invalid: %+v", p)
	}
	return rip.New(self, p), nil
}

func buildECMP(tag string, self rtcore.RouterId, seed uint64, raw map[string]any) (rtcore.Engine, error) {
	p := ecmp.Params{
		Mode:          ecmp.Mode(tag),
		KPaths:        4,
		HelloInterval: 1,
		LSAInterval:   5,
		LSAMaxAge:     30,
		Seed:          seed,
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.KPaths <= 0 {
		return nil, cerr.NewErrConfig("ecmp/topk k_paths must be positive, got %d", p.KPaths)
	}
	return ecmp.New(tag, self, p), nil
}

func buildAdaptive(tag string, self rtcore.RouterId, seed uint64, raw map[string]any) (rtcore.Engine, error) {
	p := adaptive.Params{
		Variant:       adaptive.Variant(tag),
		KPaths:        4,
		HelloInterval: 1,
		LSAInterval:   5,
		LSAMaxAge:     30,
		Seed:          seed,
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.KPaths <= 0 {
		return nil, cerr.NewErrConfig("adaptive k_paths must be positive, got %d", p.KPaths)
	}
	return adaptive.New(tag, self, p), nil
}

// Validate reports whether tag names a protocol this package can build,
// without constructing an engine. Useful for config validation before a
// full Build (which also needs a seed and per-router params).
func Validate(tag string) error {
	if _, ok := registry[tag]; !ok {
		return fmt.Errorf("unknown protocol tag %q", tag)
	}
	return nil
}
