package rtcore

import "sort"

// Kind is the sum-type variant within a protocol's envelope.
type Kind string

const (
	KindHello      Kind = "HELLO"
	KindOspfLSA    Kind = "OSPF_LSA"
	KindRipUpdate  Kind = "RIP_UPDATE"
	KindQueueSample Kind = "QUEUE_SAMPLE" // adaptive DDR/DGR/Octopus pressure piggy-back
)

// ControlMessage is the single envelope used across protocols, simulation
// transport, and wire transport. (protocol, src, sequence) is unique per
// sender lifetime.
type ControlMessage struct {
	Protocol  string  `json:"protocol"`
	Kind      Kind    `json:"kind"`
	Src       RouterId `json:"src"`
	Sequence  uint64  `json:"seq"`
	Timestamp float64 `json:"ts"`
	Payload   Payload `json:"payload"`
}

// Payload is implemented by every protocol-specific message body.
type Payload interface {
	payloadKind() Kind
}

type HelloPayload struct {
	RouterID RouterId `json:"router_id"`
}

func (HelloPayload) payloadKind() Kind { return KindHello }

// LinkEntry is one adjacency in an LSA: neighbor id and the advertised
// cost toward it. LSAPayload.Links must be kept sorted by Neighbor by the
// originating engine so that encoding is byte-identical run over run
// regardless of map iteration order upstream.
type LinkEntry struct {
	Neighbor RouterId `json:"neighbor"`
	Cost     float64  `json:"cost"`
}

type LSAPayload struct {
	Origin   RouterId    `json:"origin"`
	Sequence uint64      `json:"sequence"`
	Links    []LinkEntry `json:"links"`
}

func (LSAPayload) payloadKind() Kind { return KindOspfLSA }

// SortLinks sorts Links by Neighbor id in place, establishing the
// canonical order required for deterministic encoding.
func (p *LSAPayload) SortLinks() {
	sort.Slice(p.Links, func(i, j int) bool { return p.Links[i].Neighbor < p.Links[j].Neighbor })
}

// RipEntry is one advertised (destination, metric) pair in a RIP_UPDATE.
type RipEntry struct {
	Destination RouterId `json:"destination"`
	Metric      float64  `json:"metric"`
}

type RipUpdatePayload struct {
	Entries []RipEntry `json:"entries"`
}

func (RipUpdatePayload) payloadKind() Kind { return KindRipUpdate }

// SortEntries sorts Entries by Destination id in place.
func (p *RipUpdatePayload) SortEntries() {
	sort.Slice(p.Entries, func(i, j int) bool { return p.Entries[i].Destination < p.Entries[j].Destination })
}

// QueueSamplePayload piggy-backs per-link queue pressure for the adaptive
// DDR/DGR/Octopus protocols, either on a HELLO or as its own message.
type QueueSamplePayload struct {
	Neighbor   RouterId `json:"neighbor"`
	QueueLevel float64  `json:"queue_level"`
}

func (QueueSamplePayload) payloadKind() Kind { return KindQueueSample }

// Delivery pairs a message with the neighbor it is addressed to; the
// network model and the tick engine schedule and sort Deliveries, not bare
// messages, since sort_key depends on the destination.
type Delivery struct {
	Dst RouterId
	Msg ControlMessage
}

// SortKey returns the total order spec.md §3 requires to break ties when
// multiple deliveries land on the same tick: (src, dst, kind, canonical
// payload bytes). Callers needing a byte string for sorting should use
// codec.Canonical to build the payload component; this type only defines
// the tuple shape so rtcore stays free of an import cycle on codec.
type SortKey struct {
	Src     RouterId
	Dst     RouterId
	Kind    Kind
	Payload string // canonical encoding of the payload, as text
}
