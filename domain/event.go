package domain

import "time"

// Gender tags an entry/exit event with the counted group. GenderSystem marks
// bookkeeping rows (session boundaries) that are never counted as people.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderSystem Gender = "system"
)

// Kind classifies what an event records at the door.
type Kind string

const (
	KindEntry        Kind = "entry"
	KindExit         Kind = "exit"
	KindSessionStart Kind = "session_start"
	KindSessionEnd   Kind = "session_end"
)

// Event is one immutable row of the append-only occupancy log.
type Event struct {
	ID               string    `json:"id"`
	Gender           Gender    `json:"gender"`
	Kind             Kind      `json:"kind"`
	OccurredAt       time.Time `json:"occurred_at"`
	BusinessDate     string    `json:"business_date"`
	SessionID        string    `json:"session_id,omitempty"`
	CountBeforeReset *int      `json:"count_before_reset,omitempty"`
	ArchiveID        string    `json:"archive_id,omitempty"`
}

// Countable reports whether the event represents an actual person movement,
// as opposed to a system marker or a malformed row.
func (e *Event) Countable() bool {
	if e == nil {
		return false
	}
	if e.Gender != GenderMale && e.Gender != GenderFemale {
		return false
	}
	return e.Kind == KindEntry || e.Kind == KindExit
}

// Delta returns the signed occupancy change of the event: +1 for an entry,
// -1 for an exit, 0 for anything that is not countable.
func (e *Event) Delta() int {
	if !e.Countable() {
		return 0
	}
	if e.Kind == KindEntry {
		return 1
	}
	return -1
}

// ValidGender reports whether g is one of the closed gender values.
func ValidGender(g Gender) bool {
	return g == GenderMale || g == GenderFemale || g == GenderSystem
}

// ValidKind reports whether k is one of the closed kind values.
func ValidKind(k Kind) bool {
	switch k {
	case KindEntry, KindExit, KindSessionStart, KindSessionEnd:
		return true
	}
	return false
}
