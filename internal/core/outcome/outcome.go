// Package outcome evaluates challenge rolls against configured difficulty.
//
// A challenge carries a textual difficulty ("dc:15", "pct:60",
// "descriptor:hard", "opposed", or free-form custom text) and up to four
// outcome descriptions. Evaluation maps a resolved roll to one of four
// categories; critical categories only apply when a matching description is
// configured.
package outcome

import (
	"strconv"
	"strings"
)

// Category classifies the result of a challenge roll.
type Category string

const (
	CriticalSuccess Category = "critical_success"
	Success         Category = "success"
	Failure         Category = "failure"
	CriticalFailure Category = "critical_failure"
)

// Succeeded reports whether the category counts as a success.
func (c Category) Succeeded() bool {
	return c == Success || c == CriticalSuccess
}

// Kind identifies how a difficulty is interpreted.
type Kind int

const (
	KindCustom Kind = iota
	KindDC
	KindPercentage
	KindDescriptor
	KindOpposed
)

// Difficulty describes the bar a roll is measured against.
type Difficulty struct {
	Kind   Kind
	Target int
	Label  string
}

// ParseDifficulty parses the textual difficulty form. It never fails:
// anything that is not a recognized form becomes a Custom difficulty with
// the raw text as its label.
func ParseDifficulty(s string) Difficulty {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "dc:"):
		if target, err := strconv.Atoi(strings.TrimSpace(lower[len("dc:"):])); err == nil {
			return Difficulty{Kind: KindDC, Target: target}
		}
	case strings.HasPrefix(lower, "pct:"):
		if target, err := strconv.Atoi(strings.TrimSpace(lower[len("pct:"):])); err == nil {
			return Difficulty{Kind: KindPercentage, Target: target}
		}
	case strings.HasPrefix(lower, "descriptor:"):
		return Difficulty{Kind: KindDescriptor, Label: strings.TrimSpace(trimmed[len("descriptor:"):])}
	case lower == "opposed":
		return Difficulty{Kind: KindOpposed}
	}

	return Difficulty{Kind: KindCustom, Label: trimmed}
}

// String renders the difficulty back to its textual form.
func (d Difficulty) String() string {
	switch d.Kind {
	case KindDC:
		return "dc:" + strconv.Itoa(d.Target)
	case KindPercentage:
		return "pct:" + strconv.Itoa(d.Target)
	case KindDescriptor:
		return "descriptor:" + d.Label
	case KindOpposed:
		return "opposed"
	default:
		return d.Label
	}
}

// Outcomes holds the configured descriptions for each category. The
// critical descriptions are optional; a roll only resolves to a critical
// category when its description is present.
type Outcomes struct {
	Success         string
	Failure         string
	CriticalSuccess string
	CriticalFailure string
}

// Description returns the configured text for a category, falling back to
// the plain success or failure text when a critical one is absent.
func (o Outcomes) Description(c Category) string {
	switch c {
	case CriticalSuccess:
		if o.CriticalSuccess != "" {
			return o.CriticalSuccess
		}
		return o.Success
	case CriticalFailure:
		if o.CriticalFailure != "" {
			return o.CriticalFailure
		}
		return o.Failure
	case Failure:
		return o.Failure
	default:
		return o.Success
	}
}

// RollInput carries the resolved roll values fed into evaluation. Natural
// is the dice-only sum; Total includes all modifiers. NaturalMin and
// NaturalMax bound the natural sum for the dice rolled.
type RollInput struct {
	Total      int
	Natural    int
	NaturalMin int
	NaturalMax int
}

// descriptorThreshold is the fixed success bar for descriptor difficulties.
const descriptorThreshold = 11

// Evaluate maps a resolved roll to an outcome category.
//
//   - DC: natural maximum resolves to CriticalSuccess and natural minimum to
//     CriticalFailure, each only when the matching description is configured;
//     otherwise Success iff Total >= Target.
//   - Percentage: natural 1 is CriticalSuccess and natural 100 is
//     CriticalFailure under the same configuration rule; otherwise Success
//     iff Natural <= Target.
//   - Descriptor: Success iff Natural >= 11.
//   - Opposed and Custom difficulties resolve in the actor's favor; they
//     carry no machine-checkable target.
func Evaluate(d Difficulty, roll RollInput, texts Outcomes) Category {
	switch d.Kind {
	case KindDC:
		if roll.Natural == roll.NaturalMax && texts.CriticalSuccess != "" {
			return CriticalSuccess
		}
		if roll.Natural == roll.NaturalMin && texts.CriticalFailure != "" {
			return CriticalFailure
		}
		if roll.Total >= d.Target {
			return Success
		}
		return Failure
	case KindPercentage:
		if roll.Natural == 1 && texts.CriticalSuccess != "" {
			return CriticalSuccess
		}
		if roll.Natural == 100 && texts.CriticalFailure != "" {
			return CriticalFailure
		}
		if roll.Natural <= d.Target {
			return Success
		}
		return Failure
	case KindDescriptor:
		if roll.Natural >= descriptorThreshold {
			return Success
		}
		return Failure
	default:
		return Success
	}
}

// DiceSuggestion returns the dice formula a player is expected to roll
// against the given difficulty.
func DiceSuggestion(d Difficulty) string {
	if d.Kind == KindPercentage {
		return "1d100"
	}
	return "1d20"
}
