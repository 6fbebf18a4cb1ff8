// Package intentions evaluates registered Intentions against incoming
// conversation messages and scheduled clock events.
package intentions

import (
	"strings"
	"sync"
	"unicode"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomConfig sizes the keyword pre-screening filter.
type BloomConfig struct {
	// FalsePositiveRate is the target false-positive rate (default 0.1%).
	FalsePositiveRate float64
	// ExpectedItems sizes the filter's bit array (default 1000 keywords).
	ExpectedItems uint
}

// DefaultBloomConfig holds the standard bloom-filter sizing defaults.
func DefaultBloomConfig() BloomConfig {
	return BloomConfig{FalsePositiveRate: 0.001, ExpectedItems: 1000}
}

// KeywordBloomFilter pre-screens messages for keyword-mention intentions.
// False positives are acceptable (verified against the actual keyword set
// afterward); false negatives are not, so every registered keyword is always
// added to both the filter and the exact set.
type KeywordBloomFilter struct {
	mu       sync.RWMutex
	filter   *bloom.BloomFilter
	keywords map[string]struct{}
	config   BloomConfig
}

// NewKeywordBloomFilter builds a filter with DefaultBloomConfig.
func NewKeywordBloomFilter() *KeywordBloomFilter {
	return NewKeywordBloomFilterWithConfig(DefaultBloomConfig())
}

// NewKeywordBloomFilterWithConfig builds a filter with a custom config.
func NewKeywordBloomFilterWithConfig(config BloomConfig) *KeywordBloomFilter {
	return &KeywordBloomFilter{
		filter:   bloom.NewWithEstimates(config.ExpectedItems, config.FalsePositiveRate),
		keywords: make(map[string]struct{}),
		config:   config,
	}
}

// Add registers a keyword (case-insensitive).
func (k *KeywordBloomFilter) Add(keyword string) {
	normalized := strings.ToLower(keyword)
	k.mu.Lock()
	defer k.mu.Unlock()
	k.filter.AddString(normalized)
	k.keywords[normalized] = struct{}{}
}

// AddMany registers several keywords.
func (k *KeywordBloomFilter) AddMany(keywords []string) {
	for _, keyword := range keywords {
		k.Add(keyword)
	}
}

// MightContain reports whether keyword may have been registered.
func (k *KeywordBloomFilter) MightContain(keyword string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.filter.TestString(strings.ToLower(keyword))
}

// ScanMessage returns words and multi-word keywords in message that might
// match a registered keyword. The result may include false positives; callers
// must verify with VerifyMatches before treating a match as real.
func (k *KeywordBloomFilter) ScanMessage(message string) []string {
	normalized := strings.ToLower(message)

	k.mu.RLock()
	defer k.mu.RUnlock()

	var potential []string
	for _, word := range strings.Fields(normalized) {
		cleaned := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if cleaned != "" && k.filter.TestString(cleaned) {
			potential = append(potential, cleaned)
		}
	}

	// Multi-word keywords ("machine learning") need a substring scan since
	// ScanMessage only tokenizes on whitespace above.
	for keyword := range k.keywords {
		if strings.Contains(keyword, " ") && strings.Contains(normalized, keyword) {
			potential = append(potential, keyword)
		}
	}

	return potential
}

// VerifyMatches filters potential matches down to ones that actually occur
// in message, resolving bloom-filter false positives.
func (k *KeywordBloomFilter) VerifyMatches(message string, potential []string) []string {
	normalized := strings.ToLower(message)

	k.mu.RLock()
	defer k.mu.RUnlock()

	var verified []string
	for _, keyword := range potential {
		if strings.Contains(normalized, keyword) {
			verified = append(verified, keyword)
		}
	}
	return verified
}

// KeywordCount returns the number of distinct registered keywords.
func (k *KeywordBloomFilter) KeywordCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keywords)
}

// Clear removes every keyword and resets the underlying filter.
func (k *KeywordBloomFilter) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.filter = bloom.NewWithEstimates(k.config.ExpectedItems, k.config.FalsePositiveRate)
	k.keywords = make(map[string]struct{})
}

// Rebuild resizes the filter to fit the current keyword set, useful after
// config changes or heavy growth past the original ExpectedItems estimate.
func (k *KeywordBloomFilter) Rebuild() {
	k.mu.Lock()
	keywords := make([]string, 0, len(k.keywords))
	for keyword := range k.keywords {
		keywords = append(keywords, keyword)
	}
	expected := k.config.ExpectedItems
	if uint(len(keywords)) > expected {
		expected = uint(len(keywords))
	}
	k.filter = bloom.NewWithEstimates(expected, k.config.FalsePositiveRate)
	k.keywords = make(map[string]struct{})
	k.mu.Unlock()

	k.AddMany(keywords)
}
