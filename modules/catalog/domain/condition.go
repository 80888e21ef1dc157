package domain

// Condition is the grading tag of a single card listing.
type Condition string

const (
	ConditionMint             Condition = "mint"
	ConditionNearMint         Condition = "near_mint"
	ConditionLightlyPlayed    Condition = "lightly_played"
	ConditionModeratelyPlayed Condition = "moderately_played"
	ConditionHeavilyPlayed    Condition = "heavily_played"
	ConditionDamaged          Condition = "damaged"
	ConditionSealed           Condition = "sealed"
)

func (c Condition) String() string { return string(c) }

func (c Condition) IsValid() bool {
	switch c {
	case ConditionMint, ConditionNearMint, ConditionLightlyPlayed, ConditionModeratelyPlayed,
		ConditionHeavilyPlayed, ConditionDamaged, ConditionSealed:
		return true
	default:
		return false
	}
}
