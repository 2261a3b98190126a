package interaction

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity is the graded severity stored in the cache, as reported by the
// upstream source.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityUnknown  Severity = "unknown"
)

// CoarseSeverity is the three-level severity exposed to clients and used
// for approval routing.
type CoarseSeverity string

const (
	CoarseNone   CoarseSeverity = "none"
	CoarseMild   CoarseSeverity = "mild"
	CoarseStrong CoarseSeverity = "strong"
)

// Coarse maps a stored severity to the client-facing scale. The source
// sometimes reports interactions it cannot grade; those coarsen to none
// rather than alarming users with an unactionable warning.
func (s Severity) Coarse() CoarseSeverity {
	switch s {
	case SeveritySevere, SeverityModerate:
		return CoarseStrong
	case SeverityMild:
		return CoarseMild
	default:
		return CoarseNone
	}
}

// rank orders stored severities for max-wins aggregation.
func (s Severity) rank() int {
	switch s {
	case SeveritySevere:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMild:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// ParseSourceSeverity coerces the free-text severity the source publishes
// into the graded scale.
func ParseSourceSeverity(raw string) Severity {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(v, "severe"), strings.Contains(v, "contraindicated"):
		return SeveritySevere
	case strings.Contains(v, "moderate"):
		return SeverityModerate
	case strings.Contains(v, "mild"), strings.Contains(v, "minor"):
		return SeverityMild
	default:
		return SeverityUnknown
	}
}

// Interaction is one cached pairwise severity row. FstDrug and SndDrug are
// normalized and lexicographically ordered; the pair is unique.
type Interaction struct {
	ID          uuid.UUID `db:"id" json:"id"`
	FstDrug     string    `db:"fst_drug" json:"fst_drug"`
	SndDrug     string    `db:"snd_drug" json:"snd_drug"`
	Severity    Severity  `db:"severity" json:"severity"`
	Description string    `db:"description" json:"description"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Where a pair's severity was resolved from.
const (
	SourceCache = "cache"
	SourceFresh = "fresh"
)

// PairResult is what clients see for a checked pair.
type PairResult struct {
	Drug1       string         `json:"drug1"`
	Drug2       string         `json:"drug2"`
	Severity    CoarseSeverity `json:"severity"`
	Description string         `json:"description,omitempty"`
	Source      string         `json:"source"`
}

// SourceInteraction is one entry scraped from the upstream interactions
// page for a drug.
type SourceInteraction struct {
	FstDrug     string
	SndDrug     string
	Severity    Severity
	Description string
}
