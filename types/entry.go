package types

import "time"

// EntryKind classifies a resonance log entry.
type EntryKind string

const (
	// EntryPerception records a completed CaptureResult.
	EntryPerception EntryKind = "perception"
	// EntryDispatch records an outbound collaboration attempt.
	EntryDispatch EntryKind = "dispatch"
	// EntryReply records an inbound reply correlated to a dispatch.
	EntryReply EntryKind = "reply"
	// EntryDialogue records gateway dialogue turns and unmatched replies.
	EntryDialogue EntryKind = "dialogue"
)

// Valid reports whether the entry kind is known.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryPerception, EntryDispatch, EntryReply, EntryDialogue:
		return true
	}
	return false
}

// ResonanceEntry is one immutable record in the append-only log.
// Seq is assigned by the log on append: strictly increasing and gap-free
// within a single store instance, resuming after process restart.
// Channel names the origin: a sensor channel for perception entries, a
// target app for collaboration entries.
type ResonanceEntry struct {
	Seq       uint64    `json:"seq"`
	Kind      EntryKind `json:"kind"`
	Channel   string    `json:"channel,omitempty"`
	Ref       string    `json:"ref,omitempty"` // CollaborationMessage id or artifact id
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
