package ingestion

import (
	"regexp"
	"strings"
)

// Compiled once at package init, mirroring the negation/temporal-override
// pattern families used to flag explicit contradictions.
var (
	negationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(no longer|not|never|doesn't|don't|won't|isn't|aren't|wasn't|weren't|can't|cannot|couldn't)\b`),
		regexp.MustCompile(`(?i)\b(stopped|quit|ended|left|divorced|moved from|resigned|retired)\b`),
		regexp.MustCompile(`(?i)\b(formerly|previously|used to|was|were)\b.*\b(now|currently|is|are|has become|became)\b`),
	}

	temporalOverridePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(now|currently|as of|since|starting|effective|today)\b`),
		regexp.MustCompile(`(?i)\b(changed|updated|corrected|actually|in fact)\b`),
		regexp.MustCompile(`(?i)\b(no longer|not anymore|stopped)\b`),
	}

	locationPattern = regexp.MustCompile(`(?i)\b(?:lives? in|moved to|relocated to|resides? in)\s+(\w+(?:\s+\w+)?)\b`)
	workPattern      = regexp.MustCompile(`(?i)\b(?:works? (?:at|for)|employed (?:at|by)|joined)\s+(\w+(?:\s+\w+)?)\b`)
	maritalPattern   = regexp.MustCompile(`(?i)\b(?:is|got|became)\s+(?:now\s+)?(married|divorced|single|engaged|widowed)\b`)
)

// keywordResult is the keyword layer's internal findings.
type keywordResult struct {
	decision            *Decision
	contradictedID      string
	contradictionReason string
}

// KeywordLayer is the cascade's second stage (~1ms): it looks for explicit
// negation or temporal-override language in the new content, then tries
// to pin down exactly what changed against each candidate memory.
type KeywordLayer struct{}

// NewKeywordLayer constructs a keyword/negation layer.
func NewKeywordLayer() *KeywordLayer {
	return &KeywordLayer{}
}

// Check looks for contradiction patterns between newContent and candidates.
func (l *KeywordLayer) Check(newContent string, candidates []Candidate) keywordResult {
	newLower := strings.ToLower(newContent)

	hasNegation := anyMatch(negationPatterns, newLower)
	hasTemporalOverride := anyMatch(temporalOverridePatterns, newLower)

	if !hasNegation && !hasTemporalOverride {
		return keywordResult{}
	}

	for _, candidate := range candidates {
		existingLower := strings.ToLower(candidate.Content)
		if reason, ok := findContradiction(newLower, existingLower); ok {
			d := DecisionSupersede
			return keywordResult{
				decision:            &d,
				contradictedID:      candidate.MemoryID,
				contradictionReason: reason,
			}
		}
	}

	// Negation language present but no specific contradiction pinned down;
	// leave the decision to the next layer.
	return keywordResult{}
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func findContradiction(newText, existingText string) (string, bool) {
	if reason, ok := contradictOnPattern(locationPattern, newText, existingText, "Location change"); ok {
		return reason, true
	}
	if reason, ok := contradictOnPattern(workPattern, newText, existingText, "Employment change"); ok {
		return reason, true
	}
	if reason, ok := contradictOnPattern(maritalPattern, newText, existingText, "Marital status change"); ok {
		return reason, true
	}
	return "", false
}

func contradictOnPattern(pattern *regexp.Regexp, newText, existingText, label string) (string, bool) {
	newMatch := pattern.FindStringSubmatch(newText)
	existingMatch := pattern.FindStringSubmatch(existingText)
	if newMatch == nil || existingMatch == nil {
		return "", false
	}

	newValue := strings.ToLower(strings.TrimSpace(newMatch[1]))
	existingValue := strings.ToLower(strings.TrimSpace(existingMatch[1]))
	if newValue == existingValue {
		return "", false
	}
	return label + ": '" + existingValue + "' -> '" + newValue + "'", true
}
