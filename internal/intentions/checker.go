package intentions

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rookmemory/rook/internal/llm"
	"github.com/rookmemory/rook/pkg/types"
)

// CheckerConfig tunes the two-tier evaluator.
type CheckerConfig struct {
	// SemanticCheckInterval runs the topic (tier-2) check every Nth message.
	// Default 10.
	SemanticCheckInterval uint32
	// TopicSimilarityThreshold is the default minimum cosine similarity for a
	// TopicDiscussed trigger, used when the intention doesn't specify its own.
	// Default 0.75.
	TopicSimilarityThreshold float64
	// MaxIntentionsPerCheck caps how many cached intentions are scanned per
	// message. Default 100.
	MaxIntentionsPerCheck int
}

// DefaultCheckerConfig holds the standard intention-checker defaults.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		SemanticCheckInterval:    10,
		TopicSimilarityThreshold: 0.75,
		MaxIntentionsPerCheck:    100,
	}
}

// Store is the persistence-side contract the checker needs: intentions
// grouped by trigger kind, loaded (and reloaded) via RefreshIntentions.
type Store interface {
	GetByTriggerKind(ctx context.Context, kind types.IntentionTriggerKind) ([]*types.Intention, error)
}

type topicIntention struct {
	intention *types.Intention
	embedding []float32
}

// Checker is the tiered intention evaluator: a fast bloom-filter keyword
// pre-screen runs on every message (tier 1), and an embedding-similarity
// topic check runs every SemanticCheckInterval messages (tier 2).
type Checker struct {
	store    Store
	embedder llm.EmbeddingGenerator
	config   CheckerConfig

	bloom *KeywordBloomFilter

	mu                sync.RWMutex
	keywordIntentions []*types.Intention
	topicIntentions   []topicIntention

	counterMu      sync.Mutex
	messageCounter uint32
}

// NewChecker builds a Checker with the given config. A zero-value config is
// replaced with DefaultCheckerConfig.
func NewChecker(store Store, embedder llm.EmbeddingGenerator, config CheckerConfig) *Checker {
	if config.SemanticCheckInterval == 0 {
		config.SemanticCheckInterval = DefaultCheckerConfig().SemanticCheckInterval
	}
	if config.TopicSimilarityThreshold == 0 {
		config.TopicSimilarityThreshold = DefaultCheckerConfig().TopicSimilarityThreshold
	}
	if config.MaxIntentionsPerCheck == 0 {
		config.MaxIntentionsPerCheck = DefaultCheckerConfig().MaxIntentionsPerCheck
	}
	return &Checker{
		store:    store,
		embedder: embedder,
		config:   config,
		bloom:    NewKeywordBloomFilter(),
	}
}

// RefreshIntentions reloads keyword and topic intentions from the store,
// rebuilding the bloom filter and computing any missing topic embeddings.
func (c *Checker) RefreshIntentions(ctx context.Context) error {
	keywordIntentions, err := c.store.GetByTriggerKind(ctx, types.TriggerKeywordMention)
	if err != nil {
		return err
	}

	c.bloom.Clear()
	for _, intention := range keywordIntentions {
		c.bloom.AddMany(intention.Trigger.Keywords)
	}

	c.mu.Lock()
	c.keywordIntentions = keywordIntentions
	c.mu.Unlock()

	topicIntentions, err := c.store.GetByTriggerKind(ctx, types.TriggerTopicDiscussed)
	if err != nil {
		return err
	}

	withEmbeddings := make([]topicIntention, 0, len(topicIntentions))
	for _, intention := range topicIntentions {
		embedding := intention.Trigger.CachedEmbedding
		if len(embedding) == 0 {
			if c.embedder == nil {
				continue
			}
			embedded, err := c.embedder.Embed(ctx, intention.Trigger.Topic)
			if err != nil {
				continue
			}
			embedding = embedded
		}
		withEmbeddings = append(withEmbeddings, topicIntention{intention: intention, embedding: embedding})
	}

	c.mu.Lock()
	c.topicIntentions = withEmbeddings
	c.mu.Unlock()

	return nil
}

// Check evaluates message against both tiers and returns every intention
// that fired. userID (if non-empty) restricts firing to intentions whose
// scope matches it.
func (c *Checker) Check(ctx context.Context, message string, userID string) ([]types.FiredIntention, error) {
	fired := c.checkKeywords(message, userID)

	c.counterMu.Lock()
	count := c.messageCounter
	c.messageCounter++
	c.counterMu.Unlock()

	if count%c.config.SemanticCheckInterval == 0 {
		topicFired, err := c.checkTopics(ctx, message, userID)
		if err != nil {
			return fired, err
		}
		fired = append(fired, topicFired...)
	}

	return fired, nil
}

func (c *Checker) checkKeywords(message string, userID string) []types.FiredIntention {
	potential := c.bloom.ScanMessage(message)
	if len(potential) == 0 {
		return nil
	}

	c.mu.RLock()
	intentions := c.keywordIntentions
	c.mu.RUnlock()

	var fired []types.FiredIntention
	lowerMessage := strings.ToLower(message)

	for i, intention := range intentions {
		if i >= c.config.MaxIntentionsPerCheck {
			break
		}
		if !scopeAllows(intention.Scope, userID) || !intention.CanFire(time.Now()) {
			continue
		}

		for _, keyword := range intention.Trigger.Keywords {
			normalized := strings.ToLower(keyword)
			var matched bool
			if intention.Trigger.ExactMatch {
				matched = matchesWord(lowerMessage, normalized)
			} else {
				matched = strings.Contains(lowerMessage, normalized)
			}
			if matched {
				reason := TriggerReason{Kind: ReasonKeyword, MatchedKeyword: keyword, Context: extractContext(message, keyword)}
				fired = append(fired, Fire(intention.ID, reason, SuccessResult()))
				break
			}
		}
	}

	return fired
}

func (c *Checker) checkTopics(ctx context.Context, message string, userID string) ([]types.FiredIntention, error) {
	c.mu.RLock()
	intentions := c.topicIntentions
	c.mu.RUnlock()

	if len(intentions) == 0 || c.embedder == nil {
		return nil, nil
	}

	messageEmbedding, err := c.embedder.Embed(ctx, message)
	if err != nil {
		return nil, err
	}

	var fired []types.FiredIntention
	for i, ti := range intentions {
		if i >= c.config.MaxIntentionsPerCheck {
			break
		}
		if !scopeAllows(ti.intention.Scope, userID) || !ti.intention.CanFire(time.Now()) {
			continue
		}

		threshold := ti.intention.Trigger.Threshold
		if threshold == 0 {
			threshold = c.config.TopicSimilarityThreshold
		}

		similarity := cosineSimilarity(messageEmbedding, ti.embedding)
		if similarity >= threshold {
			reason := TriggerReason{Kind: ReasonTopic, Similarity: similarity, Topic: ti.intention.Trigger.Topic}
			fired = append(fired, Fire(ti.intention.ID, reason, SuccessResult()))
		}
	}

	return fired, nil
}

// MessageCount returns the number of messages Check has processed.
func (c *Checker) MessageCount() uint32 {
	c.counterMu.Lock()
	defer c.counterMu.Unlock()
	return c.messageCounter
}

// ResetCounter zeroes the message counter, restarting the semantic-check
// interval cadence.
func (c *Checker) ResetCounter() {
	c.counterMu.Lock()
	c.messageCounter = 0
	c.counterMu.Unlock()
}

func scopeAllows(scope types.Scope, userID string) bool {
	if userID == "" {
		return true
	}
	return scope.Matches(types.Scope{UserID: userID})
}

func matchesWord(lowerMessage, normalizedKeyword string) bool {
	for _, word := range strings.Fields(lowerMessage) {
		cleaned := strings.TrimFunc(word, func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
		})
		if cleaned == normalizedKeyword {
			return true
		}
	}
	return false
}

// extractContext returns up to 30 characters of surrounding text on each
// side of keyword's first occurrence in message, ellipsized at the cut ends.
func extractContext(message, keyword string) string {
	lowerMessage := strings.ToLower(message)
	lowerKeyword := strings.ToLower(keyword)

	pos := strings.Index(lowerMessage, lowerKeyword)
	if pos < 0 {
		if len(message) > 60 {
			return message[:60]
		}
		return message
	}

	start := pos - 30
	if start < 0 {
		start = 0
	}
	end := pos + len(keyword) + 30
	if end > len(message) {
		end = len(message)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(message[start:end])
	if end < len(message) {
		b.WriteString("...")
	}
	return b.String()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
