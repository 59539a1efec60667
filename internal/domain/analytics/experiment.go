package analytics

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"time"
)

// Experiment is one A/B test definition: its variant arms, how much
// traffic enters the test, and which goals count as conversions.
type Experiment struct {
	ID                string
	Name              string
	Description       string
	IsActive          bool
	StartDate         *time.Time
	EndDate           *time.Time
	TrafficAllocation float64
	Variants          map[string]map[string]any
	PrimaryGoal       string
	SecondaryGoals    []string
	TotalParticipants int
	Conversions       map[string]int
}

// VariantNames returns the variant arm names in sorted order. Sorting
// matters: variant selection indexes into this slice, and Go map
// iteration order would otherwise make assignment nondeterministic.
func (t *Experiment) VariantNames() []string {
	names := make([]string, 0, len(t.Variants))
	for name := range t.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AssignVariant deterministically buckets a session into a variant, or
// returns "" when the session falls outside the test. It is a pure
// function of (test id, session id): the same pair always maps to the
// same variant, across calls, processes, and restarts, with no lookup
// of prior state.
func (t *Experiment) AssignVariant(sessionID string) string {
	if !t.IsActive || len(t.Variants) == 0 || t.TrafficAllocation <= 0 {
		return ""
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", t.ID, sessionID)))
	hash := binary.BigEndian.Uint32(sum[:4])

	if float64(hash%100)/100.0 > t.TrafficAllocation {
		return ""
	}

	names := t.VariantNames()
	return names[hash%uint32(len(names))]
}

// MatchesGoal reports whether a goal name counts as a conversion for
// this test, either as the primary goal or one of the secondary goals.
func (t *Experiment) MatchesGoal(goal string) bool {
	if goal == "" {
		return false
	}
	if t.PrimaryGoal == goal {
		return true
	}
	for _, g := range t.SecondaryGoals {
		if g == goal {
			return true
		}
	}
	return false
}

// Participation records one session's membership in one experiment.
// At most one row exists per (test, session), enforced by the store.
type Participation struct {
	ID              string
	TestID          string
	SessionID       string
	UserID          *string
	Variant         string
	AssignedAt      time.Time
	Converted       bool
	ConversionGoal  string
	ConvertedAt     *time.Time
	ConversionValue *float64
}

// MarkConverted flips the participation to converted. The flag is
// monotonic: once set it never reverts, and repeat calls report false
// so callers can count the transition exactly once.
func (p *Participation) MarkConverted(goal string, value *float64, now time.Time) bool {
	if p.Converted {
		return false
	}
	p.Converted = true
	p.ConversionGoal = goal
	t := now
	p.ConvertedAt = &t
	p.ConversionValue = value
	return true
}
