package dice

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

var formulaPattern = regexp.MustCompile(`^(\d*)[dD](\d+)([+-]\d+)?$`)

// Formula is a parsed dice formula of the form NdS+B: N dice with S sides
// plus a flat bonus. N defaults to 1 when omitted ("d20" is "1d20").
type Formula struct {
	Count    int
	Sides    int
	Modifier int
}

// ParseFormula parses a textual dice formula such as "2d6+3" or "d20".
// Whitespace is ignored and the "d" is case-insensitive.
func ParseFormula(s string) (Formula, error) {
	compact := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	match := formulaPattern.FindStringSubmatch(compact)
	if match == nil {
		return Formula{}, fmt.Errorf("%w: %q", ErrInvalidFormula, s)
	}

	count := 1
	if match[1] != "" {
		parsed, err := strconv.Atoi(match[1])
		if err != nil {
			return Formula{}, fmt.Errorf("%w: %q", ErrInvalidFormula, s)
		}
		count = parsed
	}
	sides, err := strconv.Atoi(match[2])
	if err != nil {
		return Formula{}, fmt.Errorf("%w: %q", ErrInvalidFormula, s)
	}
	modifier := 0
	if match[3] != "" {
		parsed, err := strconv.Atoi(match[3])
		if err != nil {
			return Formula{}, fmt.Errorf("%w: %q", ErrInvalidFormula, s)
		}
		modifier = parsed
	}

	if count <= 0 || sides <= 0 {
		return Formula{}, fmt.Errorf("%w: %q", ErrInvalidDiceSpec, s)
	}

	return Formula{Count: count, Sides: sides, Modifier: modifier}, nil
}

// String renders the formula back to its canonical textual form.
func (f Formula) String() string {
	out := fmt.Sprintf("%dd%d", f.Count, f.Sides)
	if f.Modifier > 0 {
		out += fmt.Sprintf("+%d", f.Modifier)
	} else if f.Modifier < 0 {
		out += strconv.Itoa(f.Modifier)
	}
	return out
}

// Input describes how a roll value is produced: either a formula rolled by
// the server or a manual total reported from physical dice. When Manual is
// set it takes precedence; Formula then only supplies the natural bounds.
type Input struct {
	Formula string
	Manual  *int
}

// Resolution is a fully resolved roll: the individual die results, the
// natural sum (dice only), the formula bonus, and the grand total.
// NaturalMin and NaturalMax are the bounds of the natural sum for the dice
// rolled; they drive critical detection.
type Resolution struct {
	Rolls      []int
	Natural    int
	Modifier   int
	Total      int
	NaturalMin int
	NaturalMax int
	Breakdown  string
}

// defaultFormula is assumed for manual totals with no formula attached.
const defaultFormula = "1d20"

// Resolve produces a Resolution from the given input. Formula inputs are
// rolled deterministically from the seed; manual inputs are taken as the
// natural total, with the formula (or a d20 default) supplying bounds.
func Resolve(input Input, seed int64) (Resolution, error) {
	raw := input.Formula
	if raw == "" {
		raw = defaultFormula
	}
	formula, err := ParseFormula(raw)
	if err != nil {
		if input.Manual == nil {
			return Resolution{}, err
		}
		// A manual total stands on its own even when the attached
		// formula is unreadable.
		formula, _ = ParseFormula(defaultFormula)
	}

	if input.Manual != nil {
		natural := *input.Manual
		return Resolution{
			Natural:    natural,
			Modifier:   formula.Modifier,
			Total:      natural + formula.Modifier,
			NaturalMin: formula.Count,
			NaturalMax: formula.Count * formula.Sides,
			Breakdown:  fmt.Sprintf("manual %d", natural),
		}, nil
	}

	rng := rand.New(rand.NewSource(seed))
	return formula.Roll(rng)
}

// Roll rolls the formula with the provided random source.
func (f Formula) Roll(rng *rand.Rand) (Resolution, error) {
	result, err := RollWithRng(rng, []Spec{{Sides: f.Sides, Count: f.Count}})
	if err != nil {
		return Resolution{}, err
	}

	rolls := result.Rolls[0].Results
	natural := result.Total
	total := natural + f.Modifier

	parts := make([]string, len(rolls))
	for i, v := range rolls {
		parts[i] = strconv.Itoa(v)
	}
	breakdown := fmt.Sprintf("%s: [%s]", f.String(), strings.Join(parts, " "))
	if f.Modifier != 0 {
		breakdown += fmt.Sprintf(" %+d", f.Modifier)
	}
	breakdown += fmt.Sprintf(" = %d", total)

	return Resolution{
		Rolls:      rolls,
		Natural:    natural,
		Modifier:   f.Modifier,
		Total:      total,
		NaturalMin: f.Count,
		NaturalMax: f.Count * f.Sides,
		Breakdown:  breakdown,
	}, nil
}
