package pipeline

import "github.com/cory-johannsen/atre/internal/encounter"

// EventType names one of the stable observer event kinds from spec.md §6.
type EventType string

const (
	EventRoundStart   EventType = "round_start"
	EventTurnStart    EventType = "turn_start"
	EventIntent       EventType = "intent"
	EventDice         EventType = "dice"
	EventResult       EventType = "result"
	EventRollback     EventType = "rollback"
	EventTurnTimeout  EventType = "turn_timeout"
	EventLag          EventType = "lag"
	EventEncounterEnd EventType = "encounter_end"
	EventFatal        EventType = "fatal"
)

// Event is the observer-facing notification the controller emits. Only the
// fields relevant to Type are populated; the rest carry their zero value.
// A single flat struct is used rather than a tagged union because the
// engine's external boundary is a direct Go channel, not a serialized
// wire format (spec.md §6: "no wire protocols at the core boundary").
type Event struct {
	Type EventType

	Round       int
	CombatantID string

	Intent     encounter.Intent
	SourceTier encounter.SourceTier

	Expression string
	Result     int
	Purpose    string

	TurnRecord encounter.TurnRecord

	Reason string

	DroppedEvents int

	Winner string

	Message string
}
