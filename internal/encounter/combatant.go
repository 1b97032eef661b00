// Package encounter defines the ATRE's core data model: Combatant, the
// action-economy sub-record, EncounterState, TurnRecord, and Intent. These
// types are mutated only by the Transaction Manager, which owns the
// snapshot/apply/validate/rollback cycle described for the Turn Pipeline
// Controller.
package encounter

import "github.com/cory-johannsen/atre/internal/condition"

// Side identifies which faction a Combatant fights for.
type Side string

const (
	SidePlayer  Side = "player"
	SideMonster Side = "monster"
	SideNPC     Side = "npc"
)

// Status is a combatant's coarse life state.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnconscious Status = "unconscious"
	StatusDead        Status = "dead"
	StatusStable      Status = "stable"
)

// AbilityScores holds the six 5e ability scores.
type AbilityScores struct {
	Strength     int
	Dexterity    int
	Constitution int
	Intelligence int
	Wisdom       int
	Charisma     int
}

// Mod returns the ability modifier: floor((score-10)/2).
func Mod(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	// Go's integer division truncates toward zero; for negative
	// (score-10) we need floor, not truncation.
	d := score - 10
	m := d / 2
	if d%2 != 0 {
		m--
	}
	return m
}

// Position is an opaque per-combatant bag of spatial data. DistanceTo is
// required; Cover and Terrain are optional and read by the Rules Engine's
// cover/difficult-terrain handling.
type Position struct {
	DistanceTo map[string]int // combatant id -> distance in feet
	Cover      string         // "", "half", "three-quarters", "full"
	Terrain    string         // "", "difficult"
}

// Distance returns the recorded distance to otherID, or -1 if unknown.
func (p Position) Distance(otherID string) int {
	if p.DistanceTo == nil {
		return -1
	}
	if d, ok := p.DistanceTo[otherID]; ok {
		return d
	}
	return -1
}

// RechargeEntry tracks one recharge-gated ability.
type RechargeEntry struct {
	AbilityName   string
	RangeLow      int // inclusive lower bound of the recharge die roll, e.g. 5 for "5-6"
	RangeHigh     int // inclusive upper bound, e.g. 6
	Available     bool
	LastUsedRound int
}

// LegendaryPool tracks a combatant's legendary-action budget for the round.
type LegendaryPool struct {
	Max  int
	Used int

	// ResistedThisRound marks that legendary resistance has already
	// converted one failed save this round; it auto-applies on the first
	// failed save of a round, not every failed save while Used < Max
	// (spec §9).
	ResistedThisRound bool
}

// DeathSaves tracks an unconscious player's death-save progress.
type DeathSaves struct {
	Successes int
	Failures  int
}

// DamageType identifies a damage type for resistance/immunity/vulnerability
// lookups.
type DamageType string

// Combatant is the primary entity the engine resolves turns for.
type Combatant struct {
	ID          string
	Name        string
	Side        Side
	Abilities   AbilityScores
	AC          int
	HP          int
	MaxHP       int
	Speed       int
	Initiative  int
	DexTiebreak int
	Status      Status
	Position    Position

	Economy ActionEconomy

	Conditions *condition.ActiveSet

	Resistances     map[DamageType]bool
	Immunities      map[DamageType]bool
	Vulnerabilities map[DamageType]bool

	ConcentrationOn      string   // opaque spell reference; empty if not concentrating
	ConcentrationAffects []string // combatant ids receiving the concentration effect

	DeathSaves DeathSaves

	Recharge map[string]*RechargeEntry // ability name -> recharge state

	Legendary LegendaryPool

	// OwnedAbilities lists every action/trait/spell string this combatant
	// can use, each tagged with its canonical ability tag (see
	// internal/ability). CanonicalAbilities is the same data indexed by
	// tag for O(1) membership checks.
	OwnedAbilities     []string
	CanonicalAbilities map[string]bool

	// Proficient influences which saves/attacks add ProficiencyBonus;
	// kept simple as a set of ability names the combatant is proficient
	// in for saving throws.
	ProficientSaves map[string]bool

	ProficiencyBonus int

	// AbilityProfiles carries the mechanical profile of each ability this
	// combatant can use (attack bonus, damage dice, save DC, and so on),
	// keyed by the untagged ability name. This is content-layer data
	// (loaded once, before the encounter starts) that the Rules Engine
	// consults to execute an Intent; the engine itself never invents
	// mechanical numbers.
	AbilityProfiles map[string]AbilityProfile
}

// AbilityProfile is the mechanical definition of one ability: how it
// attacks or forces a save, and what it does on a hit/failure.
type AbilityProfile struct {
	IsAttack    bool
	IsMelee     bool
	AttackBonus int
	DamageDice  string
	DamageBonus int
	DamageType  DamageType

	IsSave      bool
	SaveAbility string
	SaveDC      int
	HalfOnSave  bool

	IsSelfHeal  bool
	HealDice    string
	HealBonus   int

	ConditionOnHit  string // condition id applied on a successful hit/failed save
	ConditionRounds int
	ActionCost      string // "action" | "bonus_action" | "reaction"

	// AllowsAllyTarget marks an ability that may legally target a
	// combatant on the actor's own side (a heal, a buff, a revivify) — the
	// Oracle Gateway's friendly-fire check (spec §4.2) only rejects a
	// same-side target when the named ability doesn't set this.
	AllowsAllyTarget bool
}

// NewCombatant builds a Combatant with zero-valued nested collections
// initialized, so callers never need to nil-check before first use.
func NewCombatant(id, name string, side Side) *Combatant {
	return &Combatant{
		ID:                 id,
		Name:               name,
		Side:               side,
		Status:             StatusOK,
		Conditions:         condition.NewActiveSet(),
		Resistances:        make(map[DamageType]bool),
		Immunities:         make(map[DamageType]bool),
		Vulnerabilities:    make(map[DamageType]bool),
		Recharge:           make(map[string]*RechargeEntry),
		CanonicalAbilities: make(map[string]bool),
		ProficientSaves:    make(map[string]bool),
		AbilityProfiles:    make(map[string]AbilityProfile),
	}
}

// AbilityMod returns the modifier for the named 5e ability score.
func (c *Combatant) AbilityMod(ability string) int {
	switch ability {
	case "strength", "str":
		return Mod(c.Abilities.Strength)
	case "dexterity", "dex":
		return Mod(c.Abilities.Dexterity)
	case "constitution", "con":
		return Mod(c.Abilities.Constitution)
	case "intelligence", "int":
		return Mod(c.Abilities.Intelligence)
	case "wisdom", "wis":
		return Mod(c.Abilities.Wisdom)
	case "charisma", "cha":
		return Mod(c.Abilities.Charisma)
	}
	return 0
}

// IsDead reports whether this combatant is out of the encounter entirely.
func (c *Combatant) IsDead() bool {
	return c.Status == StatusDead
}

// IsDown reports whether this combatant cannot act: dead or unconscious.
func (c *Combatant) IsDown() bool {
	return c.Status == StatusDead || c.Status == StatusUnconscious
}

// ApplyDamage subtracts amount from HP, floored at 0, and returns the
// actual damage applied (which may be less than amount if HP was already
// low). Status transitions (unconscious/dead) are the Rules Engine's
// responsibility, not this method's — ApplyDamage only moves the number.
func (c *Combatant) ApplyDamage(amount int) int {
	if amount < 0 {
		amount = 0
	}
	before := c.HP
	c.HP -= amount
	if c.HP < 0 {
		c.HP = 0
	}
	return before - c.HP
}

// Heal adds amount to HP, clamped to MaxHP, and returns the actual amount
// restored.
func (c *Combatant) Heal(amount int) int {
	if amount < 0 {
		amount = 0
	}
	before := c.HP
	c.HP += amount
	if c.HP > c.MaxHP {
		c.HP = c.MaxHP
	}
	return c.HP - before
}

// DamageMultiplierKind returns which damage-type adjustment applies to a
// damage roll of the given type against this combatant: "immune",
// "resistant", "vulnerable", or "none" (checked in that order). The caller
// turns the kind into the multiplier: immune=0, resistant=half (floored,
// minimum 1 if dmg>0), vulnerable=double, otherwise 1.
func (c *Combatant) DamageMultiplierKind(t DamageType) string {
	if c.Immunities[t] {
		return "immune"
	}
	if c.Resistances[t] {
		return "resistant"
	}
	if c.Vulnerabilities[t] {
		return "vulnerable"
	}
	return "none"
}

// Clone returns a deep copy of this Combatant, used by the Transaction
// Manager to take an encounter snapshot before mutation.
func (c *Combatant) Clone() *Combatant {
	cp := *c
	cp.Conditions = c.Conditions.Clone()

	cp.Resistances = cloneBoolMap(c.Resistances)
	cp.Immunities = cloneBoolMap(c.Immunities)
	cp.Vulnerabilities = cloneBoolMap(c.Vulnerabilities)
	cp.CanonicalAbilities = cloneStrBoolMap(c.CanonicalAbilities)
	cp.ProficientSaves = cloneStrBoolMap(c.ProficientSaves)

	cp.OwnedAbilities = append([]string(nil), c.OwnedAbilities...)
	cp.ConcentrationAffects = append([]string(nil), c.ConcentrationAffects...)

	cp.Position = Position{
		DistanceTo: make(map[string]int, len(c.Position.DistanceTo)),
		Cover:      c.Position.Cover,
		Terrain:    c.Position.Terrain,
	}
	for k, v := range c.Position.DistanceTo {
		cp.Position.DistanceTo[k] = v
	}

	cp.Recharge = make(map[string]*RechargeEntry, len(c.Recharge))
	for k, v := range c.Recharge {
		re := *v
		cp.Recharge[k] = &re
	}

	cp.AbilityProfiles = make(map[string]AbilityProfile, len(c.AbilityProfiles))
	for k, v := range c.AbilityProfiles {
		cp.AbilityProfiles[k] = v
	}

	return &cp
}

func cloneBoolMap(m map[DamageType]bool) map[DamageType]bool {
	out := make(map[DamageType]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
