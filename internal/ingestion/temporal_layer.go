package ingestion

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	usDatePattern  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	yearOnlyPattern = regexp.MustCompile(`(?i)\b(?:in|since|from|during)\s+(\d{4})\b`)
)

// temporalResult is the temporal layer's internal findings.
type temporalResult struct {
	decision      *Decision
	conflictingID string
	conflictReason string
}

// TemporalLayer is the cascade's third stage: it extracts calendar dates
// from the new content and each candidate, then flags either an
// overlapping-timeframe conflict or a clear chronological update.
type TemporalLayer struct{}

// NewTemporalLayer constructs a temporal-conflict layer.
func NewTemporalLayer() *TemporalLayer {
	return &TemporalLayer{}
}

// Check looks for temporal conflicts between newContent and candidates.
func (l *TemporalLayer) Check(newContent string, candidates []Candidate) temporalResult {
	newDates := extractDates(newContent)
	if len(newDates) == 0 {
		return temporalResult{}
	}

	for _, candidate := range candidates {
		existingDates := extractDates(candidate.Content)
		if len(existingDates) == 0 {
			continue
		}

		if reason, ok := dateConflict(newDates, existingDates); ok {
			d := DecisionSupersede
			return temporalResult{decision: &d, conflictingID: candidate.MemoryID, conflictReason: reason}
		}
		if reason, ok := temporalUpdate(newDates, existingDates); ok {
			d := DecisionSupersede
			return temporalResult{decision: &d, conflictingID: candidate.MemoryID, conflictReason: reason}
		}
	}

	return temporalResult{}
}

func extractDates(text string) []time.Time {
	var dates []time.Time

	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			dates = append(dates, d)
		}
	}

	if m := usDatePattern.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[3], m[1], m[2]); ok {
			dates = append(dates, d)
		}
	}

	for _, m := range yearOnlyPattern.FindAllStringSubmatch(text, -1) {
		if year, err := strconv.Atoi(m[1]); err == nil {
			dates = append(dates, time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
		}
	}

	return dates
}

func buildDate(yearStr, monthStr, dayStr string) (time.Time, bool) {
	year, err1 := strconv.Atoi(yearStr)
	month, err2 := strconv.Atoi(monthStr)
	day, err3 := strconv.Atoi(dayStr)
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// dateConflict flags two dates within the same calendar year and less
// than ~6 months apart as describing the same, contested timeframe.
func dateConflict(newDates, existingDates []time.Time) (string, bool) {
	for _, n := range newDates {
		for _, e := range existingDates {
			if n.Year() != e.Year() {
				continue
			}
			daysApart := n.Sub(e).Hours() / 24
			if daysApart < 0 {
				daysApart = -daysApart
			}
			if daysApart < 180 {
				return fmt.Sprintf("overlapping timeframe: %s vs %s", n.Format("2006-01-02"), e.Format("2006-01-02")), true
			}
		}
	}
	return "", false
}

// temporalUpdate flags new content whose most recent date is at least a
// year ahead of the candidate's most recent date as a chronological
// update that supersedes it.
func temporalUpdate(newDates, existingDates []time.Time) (string, bool) {
	newest := latest(newDates)
	existingLatest := latest(existingDates)
	if newest.IsZero() || existingLatest.IsZero() {
		return "", false
	}
	if newest.After(existingLatest) && newest.Year()-existingLatest.Year() >= 1 {
		return fmt.Sprintf("more recent information: %s supersedes %s", newest.Format("2006-01-02"), existingLatest.Format("2006-01-02")), true
	}
	return "", false
}

func latest(dates []time.Time) time.Time {
	var max time.Time
	for _, d := range dates {
		if d.After(max) {
			max = d
		}
	}
	return max
}
