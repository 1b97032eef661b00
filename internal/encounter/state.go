package encounter

import "fmt"

// Environment carries terrain/hazard data the Rules Engine consults for
// movement cost and area effects; it is an opaque bag like Position, kept
// minimal because grid-exact geometry is explicitly out of scope.
type Environment struct {
	DifficultTerrain map[string]bool // opaque zone id -> is difficult
	Hazards          []string
}

// State is the ATRE's encounter state: initiative order, current round and
// turn pointers, the combatants themselves, environment data, and the
// append-only combat log. Between start_resolution and termination the
// engine is the sole owner of a State value; external code reads it only
// through emitted events or a point-in-time Clone.
type State struct {
	InitiativeOrder []string // combatant ids, in turn order
	Round           int
	TurnIndex       int
	Environment     Environment
	Combatants      map[string]*Combatant
	Log             []TurnRecord
}

// NewState builds an initial State from an initiative-ordered combatant
// list. Round starts at 1, TurnIndex at 0, per the data model's invariant
// that Round >= 1.
func NewState(combatants []*Combatant) *State {
	order := make([]string, len(combatants))
	byID := make(map[string]*Combatant, len(combatants))
	for i, c := range combatants {
		order[i] = c.ID
		byID[c.ID] = c
	}
	return &State{
		InitiativeOrder: order,
		Round:           1,
		TurnIndex:       0,
		Environment:     Environment{DifficultTerrain: make(map[string]bool)},
		Combatants:      byID,
	}
}

// Current returns the combatant whose turn it currently is.
func (s *State) Current() (*Combatant, error) {
	if s.TurnIndex < 0 || s.TurnIndex >= len(s.InitiativeOrder) {
		return nil, fmt.Errorf("encounter: turn index %d out of range [0,%d)", s.TurnIndex, len(s.InitiativeOrder))
	}
	id := s.InitiativeOrder[s.TurnIndex]
	c, ok := s.Combatants[id]
	if !ok {
		return nil, fmt.Errorf("encounter: no combatant for initiative slot %q", id)
	}
	return c, nil
}

// Living returns every combatant that is neither dead nor unconscious.
func (s *State) Living() []*Combatant {
	var out []*Combatant
	for _, id := range s.InitiativeOrder {
		c := s.Combatants[id]
		if c != nil && !c.IsDown() {
			out = append(out, c)
		}
	}
	return out
}

// SideAlive reports whether any combatant of side is not dead; unconscious
// combatants count as alive here. This is not the end-condition check:
// Over treats unconscious and dead combatants alike as down.
func (s *State) SideAlive(side Side) bool {
	for _, c := range s.Combatants {
		if c.Side == side && c.Status != StatusDead {
			return true
		}
	}
	return false
}

// Over reports whether every combatant of one side has reached
// unconscious-or-dead, per the round-loop end condition in spec §4.1.
func (s *State) Over() (over bool, winner string) {
	playersDown, monstersDown := true, true
	anyPlayer, anyMonster := false, false
	for _, c := range s.Combatants {
		switch c.Side {
		case SidePlayer:
			anyPlayer = true
			if !c.IsDown() {
				playersDown = false
			}
		case SideMonster, SideNPC:
			anyMonster = true
			if !c.IsDown() {
				monstersDown = false
			}
		}
	}
	switch {
	case anyPlayer && playersDown && anyMonster && monstersDown:
		return true, "draw"
	case anyPlayer && playersDown:
		return true, "monsters"
	case anyMonster && monstersDown:
		return true, "players"
	default:
		return false, ""
	}
}

// AdvanceTurn moves TurnIndex to the next slot in the initiative order,
// wrapping to a new round (incrementing Round, resetting TurnIndex to 0) when
// the initiative order is exhausted. It does not skip dead or unconscious
// combatants and does not itself check the end condition; the Turn Pipeline
// Controller checks Over after every turn.
func (s *State) AdvanceTurn() {
	s.TurnIndex++
	if s.TurnIndex >= len(s.InitiativeOrder) {
		s.TurnIndex = 0
		s.Round++
	}
}

// Clone returns a deep, independent copy of the entire State, used by the
// Transaction Manager to snapshot before a turn's mechanical execution and
// to restore on rollback. The combat log is NOT deep-copied per entry
// (TurnRecord is immutable once appended) but the slice header is copied so
// that appends to either copy do not alias.
func (s *State) Clone() *State {
	cp := &State{
		Round:       s.Round,
		TurnIndex:   s.TurnIndex,
		Environment: Environment{DifficultTerrain: make(map[string]bool, len(s.Environment.DifficultTerrain))},
	}
	for k, v := range s.Environment.DifficultTerrain {
		cp.Environment.DifficultTerrain[k] = v
	}
	cp.Environment.Hazards = append([]string(nil), s.Environment.Hazards...)

	cp.InitiativeOrder = append([]string(nil), s.InitiativeOrder...)

	cp.Combatants = make(map[string]*Combatant, len(s.Combatants))
	for id, c := range s.Combatants {
		cp.Combatants[id] = c.Clone()
	}

	cp.Log = append([]TurnRecord(nil), s.Log...)
	return cp
}

// Append adds rec to the combat log. TurnRecords are immutable once
// appended; the log itself is append-only for the lifetime of the
// encounter.
func (s *State) Append(rec TurnRecord) {
	s.Log = append(s.Log, rec)
}
