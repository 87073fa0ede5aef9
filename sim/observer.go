package sim

// EventKind classifies the lifecycle notifications delivered to observers.
type EventKind string

const (
	KindRequestCreated   EventKind = "request_created"
	KindStageAdmitted    EventKind = "stage_admitted"
	KindStageCompleted   EventKind = "stage_completed"
	KindRequestCompleted EventKind = "request_completed"
	KindRequestDropped   EventKind = "request_dropped"
	KindRequestTruncated EventKind = "request_truncated"
	KindEquipmentSampled EventKind = "equipment_sampled"
	KindPlacementUpdated EventKind = "placement_updated"
)

// Payload carries the read-only facts of one lifecycle notification.
// Observers receive values, never live simulation entities, so they cannot
// schedule, cancel, or mutate state.
type Payload struct {
	Time      int64
	RequestID string
	ChainID   string
	StageID   string
	NodeID    string

	// Equipment sampling fields (KindEquipmentSampled).
	EquipmentID string
	Utilization float64
	Occupants   int

	// Reason is set on drops; Latency on request completion.
	Reason  string
	Latency int64
}

// Observer is notified synchronously after the engine applies each event's
// state mutation, before the clock advances further.
type Observer interface {
	OnEvent(kind EventKind, pl Payload)
}

// TimelineObserver records the ordered (kind, time) sequence of every
// notification. Its primary use is determinism regression tests: two runs
// with the same seed must produce identical timelines.
type TimelineObserver struct {
	Entries []TimelineEntry
}

// TimelineEntry is one recorded notification.
type TimelineEntry struct {
	Kind      EventKind
	Time      int64
	RequestID string
	StageID   string
}

func (o *TimelineObserver) OnEvent(kind EventKind, pl Payload) {
	o.Entries = append(o.Entries, TimelineEntry{
		Kind:      kind,
		Time:      pl.Time,
		RequestID: pl.RequestID,
		StageID:   pl.StageID,
	})
}
