// Package count assigns aligned reads to features and tallies the results.
package count

import "fmt"

// Kind is the outcome of processing one read or read pair.
type Kind int

const (
	// Assigned means the unit overlapped exactly one feature.
	Assigned Kind = iota
	Unmapped
	// Skip marks secondary or supplementary alignments that were not permitted.
	Skip
	Nonunique
	LowQuality
	NoFeature
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case Assigned:
		return "assigned"
	case Unmapped:
		return "unmapped"
	case Skip:
		return "skip"
	case Nonunique:
		return "nonunique"
	case LowQuality:
		return "low_quality"
	case NoFeature:
		return "no_feature"
	case Ambiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is the outcome for one unit. FeatureID is set only for Assigned.
type Event struct {
	Kind      Kind
	FeatureID string
}

// AssignedTo returns an Assigned event for id.
func AssignedTo(id string) Event {
	return Event{Kind: Assigned, FeatureID: id}
}
