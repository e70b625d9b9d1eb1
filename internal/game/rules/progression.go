package rules

import (
	"fmt"

	"github.com/mathcards/grinddeck-server/internal/game/cards"
)

// Feature is an unlockable card category.
type Feature string

const (
	FeatureZero      Feature = "zero"
	FeatureNegative  Feature = "negative"
	FeatureFunctions Feature = "functions"
	FeatureConstants Feature = "constants"
	FeatureVariable  Feature = "variable"
)

// Features lists every feature in the order unlocks are evaluated.
var Features = []Feature{FeatureZero, FeatureNegative, FeatureFunctions, FeatureConstants, FeatureVariable}

// Hand capacities before and after the functions unlock.
const (
	BaseHandSize     = 7
	ExpandedHandSize = 9
)

// Unlock describes when a feature unlocks and which card it grants.
type Unlock struct {
	Feature Feature
	Score   float64
	Kind    cards.Kind
	tier    func(cards.Difficulty) bool
}

// Eligible reports whether the tier gate of u admits difficulty.
func (u Unlock) Eligible(difficulty cards.Difficulty) bool {
	return u.tier(difficulty)
}

var unlocks = map[Feature]Unlock{
	FeatureZero: {
		Feature: FeatureZero, Score: 100, Kind: cards.KindZero,
		tier: func(d cards.Difficulty) bool { return d.Valid() },
	},
	FeatureNegative: {
		Feature: FeatureNegative, Score: 500, Kind: cards.KindNegative,
		tier: func(d cards.Difficulty) bool { return d.AtLeast(cards.DifficultyNegative) },
	},
	FeatureFunctions: {
		Feature: FeatureFunctions, Score: 1000, Kind: cards.KindFunction,
		tier: func(d cards.Difficulty) bool { return d.AtLeast(cards.DifficultyFunctions) },
	},
	FeatureConstants: {
		Feature: FeatureConstants, Score: 10000, Kind: cards.KindConstant,
		tier: func(d cards.Difficulty) bool { return d.AtLeast(cards.DifficultyDecimals) },
	},
	FeatureVariable: {
		Feature: FeatureVariable, Score: 10000, Kind: cards.KindVariable,
		tier: func(d cards.Difficulty) bool { return d == cards.DifficultyAlgebra },
	},
}

// UnlockFor returns the threshold entry for a feature.
func UnlockFor(feature Feature) (Unlock, bool) {
	u, ok := unlocks[feature]
	return u, ok
}

// ParseFeature validates a feature name.
func ParseFeature(s string) (Feature, error) {
	if _, ok := unlocks[Feature(s)]; !ok {
		return "", fmt.Errorf("unknown feature %q", s)
	}
	return Feature(s), nil
}

// CanUnlock reports whether score and difficulty both satisfy the feature's gate.
func CanUnlock(feature Feature, score float64, difficulty cards.Difficulty) bool {
	u, ok := unlocks[feature]
	if !ok {
		return false
	}
	return score >= u.Score && u.Eligible(difficulty)
}

// Progress holds the five unlock flags. Flags only ever go from false to true.
type Progress struct {
	Zero      bool `json:"zero"`
	Negative  bool `json:"negative"`
	Functions bool `json:"functions"`
	Constants bool `json:"constants"`
	Variable  bool `json:"variable"`
}

// Has reports whether a feature is unlocked.
func (p Progress) Has(feature Feature) bool {
	switch feature {
	case FeatureZero:
		return p.Zero
	case FeatureNegative:
		return p.Negative
	case FeatureFunctions:
		return p.Functions
	case FeatureConstants:
		return p.Constants
	case FeatureVariable:
		return p.Variable
	default:
		return false
	}
}

func (p *Progress) set(feature Feature) {
	switch feature {
	case FeatureZero:
		p.Zero = true
	case FeatureNegative:
		p.Negative = true
	case FeatureFunctions:
		p.Functions = true
	case FeatureConstants:
		p.Constants = true
	case FeatureVariable:
		p.Variable = true
	}
}

// HandCapacity is the hand size allowed by the current progress.
func (p Progress) HandCapacity() int {
	if p.Functions {
		return ExpandedHandSize
	}
	return BaseHandSize
}

// UnlockTracker flips progress flags as the score climbs.
type UnlockTracker struct {
	difficulty cards.Difficulty
	progress   Progress
}

// NewUnlockTracker creates a tracker with every flag cleared.
func NewUnlockTracker(difficulty cards.Difficulty) *UnlockTracker {
	return &UnlockTracker{difficulty: difficulty}
}

// Progress returns a copy of the current flags.
func (t *UnlockTracker) Progress() Progress {
	return t.progress
}

// Check returns the features that unlock for the first time at score, in
// evaluation order, and records them.
func (t *UnlockTracker) Check(score float64) []Feature {
	var fired []Feature
	for _, feature := range Features {
		if t.progress.Has(feature) {
			continue
		}
		if CanUnlock(feature, score, t.difficulty) {
			t.progress.set(feature)
			fired = append(fired, feature)
		}
	}
	return fired
}
