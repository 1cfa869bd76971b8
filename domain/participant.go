// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Broadcast is the reserved recipient meaning "everybody in the room".
// It can never be taken by a participant.
const Broadcast = "Todos"

// Participant is the presence record of someone currently in the room.
// Name is unique and case-sensitive.
type Participant struct {
	Name     string
	LastSeen time.Time
}

// IsReservedName reports whether name collides with a system sentinel.
func IsReservedName(name string) bool {
	return name == Broadcast
}

// IsIdle reports whether the participant has not been seen for longer than threshold at now.
func (p Participant) IsIdle(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastSeen) > threshold
}

// SweepReport is the outcome of one eviction pass.
// Failed evictions are reported per participant and never abort the pass.
type SweepReport struct {
	Evicted []string
	Failed  map[string]error
}
