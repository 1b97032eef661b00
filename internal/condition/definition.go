// Package condition implements the condition registry and per-combatant
// active-condition bookkeeping used by the Rules Engine: durations, stacks,
// and the mechanical modifiers (attack/AC penalties, action restrictions)
// each condition imposes.
package condition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConditionDef is the static definition of a condition, loaded from YAML.
// The 5e condition set (unconscious, paralyzed, stunned, prone, frightened,
// blinded, restrained, grappled, incapacitated) and the engine's own
// flat_footed/dying/wounded bookkeeping conditions are all expressed the
// same way: data, not code.
type ConditionDef struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	DurationType    string   `yaml:"duration_type"` // "rounds" | "until_save" | "permanent"
	MaxStacks       int      `yaml:"max_stacks"`    // 0 = unstackable
	AttackPenalty   int      `yaml:"attack_penalty"`
	ACPenalty       int      `yaml:"ac_penalty"`
	SpeedPenalty    int      `yaml:"speed_penalty"`
	RestrictActions []string `yaml:"restrict_actions"`
	LuaOnApply      string   `yaml:"lua_on_apply"`
	LuaOnRemove     string   `yaml:"lua_on_remove"`
	LuaOnTick       string   `yaml:"lua_on_tick"`
}

// Registry holds all known ConditionDefs keyed by ID.
type Registry struct {
	defs map[string]*ConditionDef
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*ConditionDef)}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *ConditionDef) {
	r.defs[def.ID] = def
}

// Get returns the ConditionDef for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*ConditionDef, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns a snapshot slice of all registered ConditionDefs.
func (r *Registry) All() []*ConditionDef {
	out := make([]*ConditionDef, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses each as a ConditionDef,
// and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def ConditionDef
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		reg.Register(&def)
	}
	return reg, nil
}

// DefaultRegistry returns the built-in 5e condition set, used when no
// on-disk override directory is configured.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	for _, d := range []*ConditionDef{
		{ID: "unconscious", Name: "Unconscious", DurationType: "until_save", MaxStacks: 0,
			RestrictActions: []string{"action", "bonus_action", "reaction", "movement"}},
		{ID: "paralyzed", Name: "Paralyzed", DurationType: "until_save", MaxStacks: 0,
			RestrictActions: []string{"action", "bonus_action", "reaction", "movement"}},
		{ID: "stunned", Name: "Stunned", DurationType: "rounds", MaxStacks: 1,
			RestrictActions: []string{"action", "bonus_action", "reaction", "movement"}},
		{ID: "prone", Name: "Prone", DurationType: "until_save", MaxStacks: 0},
		{ID: "restrained", Name: "Restrained", DurationType: "rounds", MaxStacks: 1, ACPenalty: -2, SpeedPenalty: 99,
			RestrictActions: []string{"movement"}},
		{ID: "grappled", Name: "Grappled", DurationType: "until_save", MaxStacks: 0, SpeedPenalty: 99,
			RestrictActions: []string{"movement"}},
		{ID: "incapacitated", Name: "Incapacitated", DurationType: "rounds", MaxStacks: 1,
			RestrictActions: []string{"action", "bonus_action", "reaction"}},
		{ID: "blinded", Name: "Blinded", DurationType: "rounds", MaxStacks: 1, AttackPenalty: 0},
		{ID: "frightened", Name: "Frightened", DurationType: "rounds", MaxStacks: 3, AttackPenalty: 0},
		{ID: "flat_footed", Name: "Flat-Footed", DurationType: "rounds", MaxStacks: 1, ACPenalty: 2},
		{ID: "dying", Name: "Dying", DurationType: "until_save", MaxStacks: 4},
		{ID: "wounded", Name: "Wounded", DurationType: "permanent", MaxStacks: 3},
	} {
		reg.Register(d)
	}
	return reg
}
