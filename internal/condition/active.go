package condition

import "fmt"

// ActiveCondition tracks one applied condition on an entity.
type ActiveCondition struct {
	Def               *ConditionDef
	Stacks            int
	DurationRemaining int // -1 = permanent or until_save

	// SourceID, SaveDC, and SaveAbility are optional provenance fields
	// carried through to the TurnRecord log; not all conditions have a
	// save attached (e.g. a condition applied by a guaranteed effect).
	SourceID    string
	SaveDC      int
	SaveAbility string
}

// ActiveSet tracks all conditions currently applied to one combatant.
// It is not safe for concurrent use; the caller must serialise access
// (the Transaction Manager takes no lock of its own; it mutates only a
// cloned snapshot of the encounter).
type ActiveSet struct {
	conditions map[string]*ActiveCondition
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{conditions: make(map[string]*ActiveCondition)}
}

// Apply adds or updates a condition on this entity.
// If the condition is already present, stacks are incremented (capped at MaxStacks).
// If MaxStacks == 0 (unstackable), stacks is always stored as 1.
// duration is rounds remaining; use -1 for permanent or until_save.
//
// Precondition: def must not be nil.
// Postcondition: Has(def.ID) is true; stacks are incremented on re-apply (capped at MaxStacks);
// DurationRemaining is updated to max(existing, duration) on re-apply.
func (s *ActiveSet) Apply(def *ConditionDef, stacks, duration int) error {
	if def == nil {
		return fmt.Errorf("Apply: def must not be nil")
	}

	if existing, ok := s.conditions[def.ID]; ok {
		if def.MaxStacks == 0 {
			if duration > existing.DurationRemaining {
				existing.DurationRemaining = duration
			}
			return nil
		}
		newStacks := existing.Stacks + stacks
		if newStacks > def.MaxStacks {
			newStacks = def.MaxStacks
		}
		existing.Stacks = newStacks
		if duration > existing.DurationRemaining {
			existing.DurationRemaining = duration
		}
		return nil
	}

	effectiveStacks := stacks
	if def.MaxStacks == 0 {
		effectiveStacks = 1
	}
	capped := effectiveStacks
	if def.MaxStacks > 0 && capped > def.MaxStacks {
		capped = def.MaxStacks
	}
	s.conditions[def.ID] = &ActiveCondition{
		Def:               def,
		Stacks:            capped,
		DurationRemaining: duration,
	}
	return nil
}

// ApplyWithSource behaves like Apply but also records provenance used by the
// TurnRecord log: the effect or combatant that caused the condition, and
// (for save-triggered conditions) the DC and ability used to resist it.
func (s *ActiveSet) ApplyWithSource(def *ConditionDef, stacks, duration int, sourceID string, saveDC int, saveAbility string) error {
	if err := s.Apply(def, stacks, duration); err != nil {
		return err
	}
	ac := s.conditions[def.ID]
	ac.SourceID = sourceID
	ac.SaveDC = saveDC
	ac.SaveAbility = saveAbility
	return nil
}

// Remove deletes the condition with the given ID from the set.
// If the condition is not present, Remove is a no-op.
//
// Postcondition: Has(id) is false.
func (s *ActiveSet) Remove(id string) {
	delete(s.conditions, id)
}

// Tick decrements the DurationRemaining of all "rounds"-type conditions by 1.
// Conditions that reach 0 are removed. "permanent" and "until_save" conditions
// (DurationRemaining == -1) are not affected.
//
// Postcondition: For every id in the returned slice, Has(id) is false.
// Conditions with DurationType != "rounds" or DurationRemaining == -1 are not affected.
func (s *ActiveSet) Tick() []string {
	var expired []string
	for id, ac := range s.conditions {
		if ac.Def.DurationType != "rounds" || ac.DurationRemaining < 0 {
			continue
		}
		ac.DurationRemaining--
		if ac.DurationRemaining <= 0 {
			expired = append(expired, id)
			delete(s.conditions, id)
		}
	}
	return expired
}

// Has reports whether the condition with id is currently active.
func (s *ActiveSet) Has(id string) bool {
	_, ok := s.conditions[id]
	return ok
}

// Stacks returns the current stack count for condition id, or 0 if not present.
func (s *ActiveSet) Stacks(id string) int {
	if ac, ok := s.conditions[id]; ok {
		return ac.Stacks
	}
	return 0
}

// All returns a slice of pointers to the active conditions.
// The slice itself is a new allocation (mutating the slice does not affect
// the set), but the pointed-to ActiveCondition values are shared: callers
// must not modify them.
func (s *ActiveSet) All() []*ActiveCondition {
	out := make([]*ActiveCondition, 0, len(s.conditions))
	for _, ac := range s.conditions {
		out = append(out, ac)
	}
	return out
}

// Clone returns a deep copy of s, used by the Transaction Manager to take
// an encounter snapshot before a mutation is attempted.
func (s *ActiveSet) Clone() *ActiveSet {
	out := NewActiveSet()
	for id, ac := range s.conditions {
		cp := *ac
		out.conditions[id] = &cp
	}
	return out
}
