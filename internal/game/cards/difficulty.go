package cards

import "fmt"

// Difficulty is the ordered tier gate: basic < decimals < negative < functions < algebra.
type Difficulty string

const (
	DifficultyBasic     Difficulty = "basic"
	DifficultyDecimals  Difficulty = "decimals"
	DifficultyNegative  Difficulty = "negative"
	DifficultyFunctions Difficulty = "functions"
	DifficultyAlgebra   Difficulty = "algebra"
)

// Difficulties lists every tier in ascending order.
var Difficulties = []Difficulty{
	DifficultyBasic,
	DifficultyDecimals,
	DifficultyNegative,
	DifficultyFunctions,
	DifficultyAlgebra,
}

// Rank returns the tier position, or -1 for an unknown tier.
func (d Difficulty) Rank() int {
	for i, known := range Difficulties {
		if known == d {
			return i
		}
	}
	return -1
}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	return d.Rank() >= 0
}

// AtLeast reports whether d is the same tier as min or above it.
func (d Difficulty) AtLeast(min Difficulty) bool {
	return d.Valid() && d.Rank() >= min.Rank()
}

func (d Difficulty) String() string {
	return string(d)
}

// ParseDifficulty validates a tier name.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}
