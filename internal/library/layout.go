// Package library infers how a sequencing library was prepared: whether reads
// come in pairs and which strand of the original transcript they report.
package library

import (
	"fmt"
	"strings"

	"github.com/inodb/vibe-count/internal/feature"
)

// Layout is the read layout of a library.
type Layout int

const (
	SingleEnd Layout = iota
	PairedEnd
)

func (l Layout) String() string {
	switch l {
	case SingleEnd:
		return "single-end"
	case PairedEnd:
		return "paired-end"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// StrandSpecification describes how fragment strand relates to transcript strand.
type StrandSpecification int

const (
	// StrandNone is an unstranded library; reads match features on either strand.
	StrandNone StrandSpecification = iota
	// StrandForward means the fragment strand equals the feature strand.
	StrandForward
	// StrandReverse means the fragment strand is opposite the feature strand.
	StrandReverse
)

func (s StrandSpecification) String() string {
	switch s {
	case StrandNone:
		return "none"
	case StrandForward:
		return "forward"
	case StrandReverse:
		return "reverse"
	default:
		return fmt.Sprintf("StrandSpecification(%d)", int(s))
	}
}

// Want returns the feature strand a fragment on the given strand may be
// assigned to. StrandUnknown disables strand filtering.
func (s StrandSpecification) Want(fragment feature.Strand) feature.Strand {
	switch s {
	case StrandForward:
		return fragment
	case StrandReverse:
		return fragment.Opposite()
	default:
		return feature.StrandUnknown
	}
}

// StrandOption is the user's strand choice, which may defer to detection.
type StrandOption int

const (
	StrandOptionAuto StrandOption = iota
	StrandOptionNone
	StrandOptionForward
	StrandOptionReverse
)

// ParseStrandOption parses "auto", "none", "forward" or "reverse".
func ParseStrandOption(s string) (StrandOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return StrandOptionAuto, nil
	case "none", "unstranded":
		return StrandOptionNone, nil
	case "forward", "yes":
		return StrandOptionForward, nil
	case "reverse":
		return StrandOptionReverse, nil
	default:
		return StrandOptionAuto, fmt.Errorf("invalid strand option %q (want auto, none, forward or reverse)", s)
	}
}

func (o StrandOption) String() string {
	switch o {
	case StrandOptionAuto:
		return "auto"
	case StrandOptionNone:
		return "none"
	case StrandOptionForward:
		return "forward"
	case StrandOptionReverse:
		return "reverse"
	default:
		return fmt.Sprintf("StrandOption(%d)", int(o))
	}
}

// Resolve returns the specification to count with. Auto takes the detected
// value; an explicit option always wins.
func (o StrandOption) Resolve(detected StrandSpecification) StrandSpecification {
	switch o {
	case StrandOptionNone:
		return StrandNone
	case StrandOptionForward:
		return StrandForward
	case StrandOptionReverse:
		return StrandReverse
	default:
		return detected
	}
}

// IsExplicit reports whether the option overrides detection.
func (o StrandOption) IsExplicit() bool {
	return o != StrandOptionAuto
}
