package domain

import (
	"fmt"
	"strings"
)

// RelationKind classifies how a character relates to a region.
type RelationKind int

const (
	// RelationUnspecified represents an invalid relation value.
	RelationUnspecified RelationKind = iota
	// RelationHome indicates the character lives in the region.
	RelationHome
	// RelationWorks indicates the character works in the region.
	RelationWorks
	// RelationFrequents indicates the character visits the region regularly.
	RelationFrequents
	// RelationAvoids indicates the character stays away from the region.
	RelationAvoids
)

func (k RelationKind) String() string {
	switch k {
	case RelationHome:
		return "home"
	case RelationWorks:
		return "works"
	case RelationFrequents:
		return "frequents"
	case RelationAvoids:
		return "avoids"
	default:
		return "unspecified"
	}
}

// Describe renders the lowercase relation phrase used in prompts.
func (k RelationKind) Describe() string {
	switch k {
	case RelationHome:
		return "lives here"
	case RelationWorks:
		return "works here"
	case RelationFrequents:
		return "frequents this area"
	case RelationAvoids:
		return "avoids this area"
	default:
		return "unknown"
	}
}

// ParseRelationKind parses the textual relation form. Unknown values map
// to RelationUnspecified.
func ParseRelationKind(s string) RelationKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home":
		return RelationHome
	case "works":
		return RelationWorks
	case "frequents":
		return RelationFrequents
	case "avoids":
		return RelationAvoids
	default:
		return RelationUnspecified
	}
}

// RegionTie declares a character's relationship to a region. Shift applies
// to works ties; Frequency and TimeOfDay apply to frequents ties.
type RegionTie struct {
	CharacterID string
	RegionID    string
	Kind        RelationKind
	Shift       string
	Frequency   string
	TimeOfDay   string
}

// Reasoning renders the one-line explanation shown to the director for a
// presence suggestion derived from this tie.
func (t RegionTie) Reasoning() string {
	switch t.Kind {
	case RelationHome:
		return "Lives here"
	case RelationWorks:
		if t.Shift != "" {
			return fmt.Sprintf("Works here (%s shift)", t.Shift)
		}
		return "Works here"
	case RelationFrequents:
		frequency := t.Frequency
		if frequency == "" {
			frequency = "sometimes"
		}
		if t.TimeOfDay != "" {
			return fmt.Sprintf("Frequents this area %s (%s)", frequency, t.TimeOfDay)
		}
		return fmt.Sprintf("Frequents this area (%s)", frequency)
	case RelationAvoids:
		return "Avoids this area"
	default:
		return ""
	}
}
