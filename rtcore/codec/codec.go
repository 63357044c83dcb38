// Package codec implements the canonical encoding spec.md §4.10 requires:
// sorted keys, compact separators, byte-identical output for
// byte-identical logical values regardless of map/struct field insertion
// order. The same bytes are used for simulated in-memory delivery and for
// real UDP wire transport, so a protocol behaves identically on both
// faces.
package codec

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/routeforge/corenet/cerr"
	"github.com/routeforge/corenet/rtcore"
)

// canonicalAPI sorts map keys on every Marshal call, at every nesting
// level — the property spec.md calls "canonical (sorted keys, compact
// form)".
var canonicalAPI = jsoniter.Config{SortMapKeys: true, EscapeHTML: false}.Froze()

// Canonical marshals v to its canonical compact form: marshal once, decode
// into a generic value, marshal again so map/struct key order collapses to
// a sorted, stable order.
func Canonical(v any) ([]byte, error) {
	first, err := canonicalAPI.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := canonicalAPI.Unmarshal(first, &generic); err != nil {
		return nil, err
	}
	return canonicalAPI.Marshal(generic)
}

// wireEnvelope mirrors ControlMessage but carries Payload as a raw
// sub-document so decode can defer interpreting it until Kind is known.
type wireEnvelope struct {
	Protocol  string          `json:"protocol"`
	Kind      rtcore.Kind     `json:"kind"`
	Src       rtcore.RouterId `json:"src"`
	Sequence  uint64          `json:"seq"`
	Timestamp float64         `json:"ts"`
	Payload   jsoniter.RawMessage `json:"payload"`
}

// EncodeMessage produces the canonical wire bytes for m.
func EncodeMessage(m rtcore.ControlMessage) ([]byte, error) {
	if m.Payload == nil {
		return nil, cerr.NewErrDecode("control message has nil payload")
	}
	return Canonical(struct {
		Protocol  string          `json:"protocol"`
		Kind      rtcore.Kind     `json:"kind"`
		Src       rtcore.RouterId `json:"src"`
		Sequence  uint64          `json:"seq"`
		Timestamp float64         `json:"ts"`
		Payload   rtcore.Payload  `json:"payload"`
	}{m.Protocol, m.Kind, m.Src, m.Sequence, m.Timestamp, m.Payload})
}

// DecodeMessage parses b, dispatching the payload sub-document to the
// concrete type named by Kind. Any structural problem is reported as a
// *cerr.ErrDecode so the runtime can log-and-count per spec.md §7.
func DecodeMessage(b []byte) (rtcore.ControlMessage, error) {
	var env wireEnvelope
	if err := canonicalAPI.Unmarshal(b, &env); err != nil {
		return rtcore.ControlMessage{}, cerr.NewErrDecode("malformed envelope: %v", err)
	}
	if env.Protocol == "" {
		return rtcore.ControlMessage{}, cerr.NewErrDecode("missing protocol tag")
	}

	var payload rtcore.Payload
	switch env.Kind {
	case rtcore.KindHello:
		var p rtcore.HelloPayload
		if err := canonicalAPI.Unmarshal(env.Payload, &p); err != nil {
			return rtcore.ControlMessage{}, cerr.NewErrDecode("bad HELLO payload: %v", err)
		}
		payload = p
	case rtcore.KindOspfLSA:
		var p rtcore.LSAPayload
		if err := canonicalAPI.Unmarshal(env.Payload, &p); err != nil {
			return rtcore.ControlMessage{}, cerr.NewErrDecode("bad OSPF_LSA payload: %v", err)
		}
		payload = p
	case rtcore.KindRipUpdate:
		var p rtcore.RipUpdatePayload
		if err := canonicalAPI.Unmarshal(env.Payload, &p); err != nil {
			return rtcore.ControlMessage{}, cerr.NewErrDecode("bad RIP_UPDATE payload: %v", err)
		}
		payload = p
	case rtcore.KindQueueSample:
		var p rtcore.QueueSamplePayload
		if err := canonicalAPI.Unmarshal(env.Payload, &p); err != nil {
			return rtcore.ControlMessage{}, cerr.NewErrDecode("bad QUEUE_SAMPLE payload: %v", err)
		}
		payload = p
	default:
		return rtcore.ControlMessage{}, cerr.NewErrDecode("unknown kind %q", env.Kind)
	}

	return rtcore.ControlMessage{
		Protocol:  env.Protocol,
		Kind:      env.Kind,
		Src:       env.Src,
		Sequence:  env.Sequence,
		Timestamp: env.Timestamp,
		Payload:   payload,
	}, nil
}

// SortKeyString renders a rtcore.SortKey to a single comparable string,
// used by the network model and the tick engine to sort deliveries.
func SortKeyString(m rtcore.ControlMessage, dst rtcore.RouterId) string {
	payload, err := Canonical(m.Payload)
	if err != nil {
		// Unreachable for well-formed payloads produced by this package's
		// own protocol engines; fall back to a stable-but-degenerate key
		// rather than panicking mid-tick.
		payload = []byte(fmt.Sprintf("%v", m.Payload))
	}
	return fmt.Sprintf("%010d|%010d|%s|%s", m.Src, dst, m.Kind, payload)
}
