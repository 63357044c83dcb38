package rtcore

import "sort"

type EventAction string

const (
	ActionRemoveLink   EventAction = "remove_link"
	ActionAddLink      EventAction = "add_link"
	ActionUpdateMetric EventAction = "update_metric"
)

// ExternalEvent is a simulation-only directive that mutates the shared
// topology at a given tick. Events are totally ordered by (tick, insertion
// order); an unknown Action aborts the run (spec.md §7: reproducibility
// requires the event trace to be fully defined).
type ExternalEvent struct {
	Tick   int
	Action EventAction
	U, V   RouterId
	Metric float64 // only meaningful for add_link / update_metric
}

// SortEvents stable-sorts events by Tick, preserving relative order of
// events on the same tick (their original "insertion order").
func SortEvents(events []ExternalEvent) []ExternalEvent {
	cp := make([]ExternalEvent, len(events))
	copy(cp, events)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Tick < cp[j].Tick })
	return cp
}
