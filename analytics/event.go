// Package analytics implements the impression-reporting half of the
// impression reporter (spec §4.C12): a bounded queue that decouples flag
// evaluation from shipping events to an external analytics sink, plus
// the Shipper interface such a sink implements.
package analytics

import "time"

// EventType is always "IMPRESSION" for events produced by flag
// evaluation; the field is carried on Event rather than hardcoded at
// the call site so a future event type does not require a new struct.
const EventType = "IMPRESSION"

// Event is the analytics record enqueued on each non-override,
// non-peek evaluation (spec §4.C12): `{flag, value, distinct_id,
// experiment_id?, experiment_version?, type, time}`. ExperimentID is
// empty when the flag was served from its default, not a bound
// experiment. ExperimentVersion is reserved for parity with the wire
// shape but is never populated: the configuration model carries no
// experiment version (see DESIGN.md).
type Event struct {
	Flag              string
	Value             string
	DistinctID        string
	ExperimentID      string
	ExperimentVersion string
	Type              string
	Time              time.Time
}

// NewEvent builds an Event stamped with now and EventType.
func NewEvent(flag, value, distinctID, experimentID string, now time.Time) Event {
	return Event{
		Flag:         flag,
		Value:        value,
		DistinctID:   distinctID,
		ExperimentID: experimentID,
		Type:         EventType,
		Time:         now,
	}
}
