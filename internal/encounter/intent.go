package encounter

// ActionType enumerates the tactical decisions an Intent may carry.
type ActionType string

const (
	ActionAttack           ActionType = "attack"
	ActionSpell            ActionType = "spell"
	ActionCantrip          ActionType = "cantrip"
	ActionDash             ActionType = "dash"
	ActionDodge            ActionType = "dodge"
	ActionDisengage        ActionType = "disengage"
	ActionHelp             ActionType = "help"
	ActionHide             ActionType = "hide"
	ActionReady            ActionType = "ready"
	ActionUseItem          ActionType = "use_item"
	ActionRechargeAbility  ActionType = "recharge_ability"
	ActionLegendary        ActionType = "legendary"
)

// UniversalBasicActions are always legal regardless of a combatant's
// canonical ability set — they need no ability_name membership check.
var UniversalBasicActions = map[ActionType]bool{
	ActionDash:      true,
	ActionDodge:     true,
	ActionDisengage: true,
	ActionHelp:      true,
	ActionHide:      true,
	ActionReady:     true,
}

// DiceRequest is one die roll the oracle asked the engine to perform on its
// behalf, named by purpose (e.g. "attack_roll", "damage").
type DiceRequest struct {
	Expression string
	Purpose    string
}

// Intent is the structured output the Oracle Gateway extracts from the LLM
// (or that the Fallback Ladder synthesizes). It is immutable once produced;
// the Rules Engine consumes it to drive one turn's mechanical execution.
type Intent struct {
	ActionType  ActionType
	AbilityName string
	Targets     []string
	DiceRequests []DiceRequest
	Narrative   string

	// Optional fields; zero value means "not specified".
	MovementCost   int
	HasMovementCost bool
	SpellSlotLevel int
	HasSpellSlot   bool
	UsesReaction   bool
}

// DefaultDodgeIntent is the minimal-safe-default action emitted by the
// bottom tier of the Fallback Ladder: it always succeeds and is always
// legal regardless of the actor's state.
func DefaultDodgeIntent() Intent {
	return Intent{
		ActionType: ActionDodge,
		Narrative:  "takes a defensive stance, watching for openings",
	}
}
