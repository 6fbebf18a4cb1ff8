package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rookmemory/rook/internal/config"
	"github.com/rookmemory/rook/internal/connections"
	"github.com/rookmemory/rook/internal/events"
	"github.com/rookmemory/rook/internal/ingestion"
	"github.com/rookmemory/rook/internal/llm"
	"github.com/rookmemory/rook/internal/retrieval"
	"github.com/rookmemory/rook/internal/storage"
	"github.com/rookmemory/rook/internal/storage/sqlite"
	"github.com/rookmemory/rook/internal/strength"
	"github.com/rookmemory/rook/pkg/types"
)

// Orchestrator is the Memory Orchestrator: the core coordinator tying
// together storage, the ingestion gate, retrieval, and the FSRS strength
// scheduler. It provides non-blocking Store()/Add() operations (<10ms)
// with async LLM enrichment via a worker pool and job queue, the same
// architecture the memory engine this package started from used for its
// own enrichment pipeline.
type Orchestrator struct {
	// Configuration
	config Config

	// Storage layer
	memoryStore storage.MemoryStore

	// Ingestion gate: duplicate/update/supersede classification before a
	// new memory is committed.
	gate     *ingestion.Gate
	embedder llm.EmbeddingGenerator

	// Retrieval: multi-signal search fusion. Nil until wired by the
	// composition root with concrete vector/text searchers.
	retriever *retrieval.Retriever

	// Strength: FSRS-6 scheduling and signal consolidation.
	scheduler    *strength.Scheduler
	signals      *strength.Processor
	decayManager *DecayManager

	// Enrichment pipeline
	enrichmentQueue chan *EnrichmentJob
	workerWaitGroup sync.WaitGroup
	workerCtx       context.Context
	workerCancel    context.CancelFunc

	// Intelligence layer
	inferenceEngine  *InferenceEngine
	confidenceScorer *ConfidenceScorer

	// Enrichment service
	enrichmentService *EnrichmentService

	// Lifecycle events: created/updated/deleted/accessed notifications for
	// subscribers such as the web UI's websocket handler.
	events *events.Bus

	// State management
	started      bool
	shuttingDown bool
	mu           sync.RWMutex

	// onEnrichmentComplete remains a direct callback (rather than an event)
	// because the worker pool fires it off the hot path far more often
	// than the other lifecycle moments, and callers that only care about
	// enrichment completion shouldn't have to subscribe to the whole bus.
	onEnrichmentComplete func(memoryID string)
}

// NewOrchestrator creates a new Memory Orchestrator with the given
// configuration. The store parameter provides the storage backend for
// memories. The globalConfig parameter provides LLM and system
// configuration. Use DefaultConfig() for sensible defaults.
//
// The retriever is not wired here: call SetRetriever once the composition
// root has constructed concrete vector/text searchers, since those depend
// on the chosen storage backend and are outside this package's concern.
func NewOrchestrator(store storage.MemoryStore, engineConfig Config, globalConfig *config.Config) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("memory store is required")
	}

	if err := engineConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &Orchestrator{
		config:          engineConfig,
		memoryStore:     store,
		enrichmentQueue: make(chan *EnrichmentJob, engineConfig.QueueSize),
		scheduler:       strength.NewScheduler(),
		signals:         strength.NewProcessor(),
		decayManager:    NewDecayManager(),
		events:          events.New(),
		started:         false,
		shuttingDown:    false,
	}

	o.inferenceEngine = NewInferenceEngine(store)
	o.confidenceScorer = NewConfidenceScorer(store)

	// Initialize enrichment service with LLM client via factory
	if globalConfig != nil {
		connCfg := llmConfigFromGlobal(globalConfig)
		llmClient, err := llm.NewTextGenerator(connCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}

		embeddingModel := globalConfig.LLM.OllamaEmbeddingModel
		embeddingClient, embErr := llm.NewEmbeddingGenerator(connCfg, embeddingModel)
		if embErr != nil {
			log.Printf("warning: failed to create embedding client: %v", embErr)
			embeddingClient = nil
		}

		if sqliteStore, ok := store.(*sqlite.MemoryStore); ok {
			embeddingProvider := sqlite.NewEmbeddingProvider(sqliteStore.GetDB())
			o.enrichmentService = NewEnrichmentServiceWithEmbeddings(llmClient, embeddingClient, embeddingProvider)
			log.Printf("Enrichment service initialized with provider=%s model=%s", connCfg.Provider, connCfg.Model)
		} else {
			log.Println("Warning: Enrichment service not initialized (non-SQLite store)")
		}

		o.gate = ingestion.New(llmClient)
		o.embedder = embeddingClient
	} else {
		log.Println("Warning: Enrichment service not initialized (no config provided)")
		o.gate = ingestion.New(nil)
	}

	return o, nil
}

// NewOrchestratorWithEmbeddings creates a new orchestrator with explicit
// LLM and embedding clients, bypassing the config-driven factory. Useful
// for tests and for hosts that manage their own LLM connections.
func NewOrchestratorWithEmbeddings(store storage.MemoryStore, engineConfig Config, llmClient llm.TextGenerator, embeddingClient llm.EmbeddingGenerator, embeddingProvider EmbeddingProvider) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("memory store is required")
	}
	if llmClient == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if err := engineConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &Orchestrator{
		config:          engineConfig,
		memoryStore:     store,
		enrichmentQueue: make(chan *EnrichmentJob, engineConfig.QueueSize),
		scheduler:       strength.NewScheduler(),
		signals:         strength.NewProcessor(),
		decayManager:    NewDecayManager(),
		events:          events.New(),
		gate:            ingestion.New(llmClient),
		embedder:        embeddingClient,
	}

	o.inferenceEngine = NewInferenceEngine(store)
	o.confidenceScorer = NewConfidenceScorer(store)
	o.enrichmentService = NewEnrichmentServiceWithEmbeddings(llmClient, embeddingClient, embeddingProvider)

	return o, nil
}

// SetRetriever wires the multi-signal retriever built by the composition
// root. Search returns an error until this is called.
func (o *Orchestrator) SetRetriever(r *retrieval.Retriever) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retriever = r
}

// Events returns the lifecycle event bus. Subscribers see memory
// created/updated/deleted/accessed notifications.
func (o *Orchestrator) Events() *events.Bus {
	return o.events
}

// QueueEnrichmentForMemory queues a memory for immediate enrichment.
// Returns true if the job was queued, false if the queue is full or engine not started.
func (o *Orchestrator) QueueEnrichmentForMemory(memoryID, content string) bool {
	o.mu.RLock()
	canQueue := o.started && !o.shuttingDown
	o.mu.RUnlock()
	if !canQueue {
		return false
	}
	job := o.createEnrichmentJob(memoryID, content, 0)
	return o.queueEnrichmentJob(job)
}

// QueueEmbeddingForMemory queues a memory for embedding-only processing.
func (o *Orchestrator) QueueEmbeddingForMemory(memoryID, content string) bool {
	o.mu.RLock()
	canQueue := o.started && !o.shuttingDown
	o.mu.RUnlock()
	if !canQueue {
		return false
	}
	job := &EnrichmentJob{
		MemoryID:      memoryID,
		Content:       content,
		EmbeddingOnly: true,
	}
	return o.queueEnrichmentJob(job)
}

// Embed generates a vector embedding for the given text using the embedding model.
func (o *Orchestrator) Embed(ctx context.Context, text string) ([]float64, error) {
	if o.enrichmentService == nil {
		return nil, fmt.Errorf("enrichment service not available")
	}
	return o.enrichmentService.Embed(ctx, text)
}

// Summarize sends a prompt to the LLM and returns the completion text.
func (o *Orchestrator) Summarize(ctx context.Context, prompt string) (string, error) {
	if o.enrichmentService == nil {
		return "", fmt.Errorf("enrichment service not available")
	}
	return o.enrichmentService.llmClient.Complete(ctx, prompt)
}

// SetOnEnrichmentComplete sets a callback to be called when enrichment completes for a memory.
func (o *Orchestrator) SetOnEnrichmentComplete(callback func(memoryID string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEnrichmentComplete = callback
}

// Start starts the orchestrator and its worker pool.
// It also initiates recovery of pending enrichments from previous runs.
// This must be called before using Store()/Add().
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return fmt.Errorf("engine already started")
	}

	log.Println("Starting memory orchestrator...")

	o.workerCtx, o.workerCancel = context.WithCancel(ctx)
	o.startWorkerPool(o.workerCtx)

	go func() {
		if err := o.RecoverPendingEnrichments(ctx); err != nil {
			log.Printf("ERROR: Enrichment recovery failed: %v", err)
		}
	}()

	o.started = true
	log.Println("Memory orchestrator started successfully")

	return nil
}

// gateCandidates fetches a bounded set of recent memories in scope to run
// through the ingestion gate's similarity cascade.
func (o *Orchestrator) gateCandidates(ctx context.Context, scope types.Scope) ([]*types.Memory, error) {
	const maxCandidates = 200
	page, err := o.memoryStore.List(ctx, storage.ListOptions{Limit: maxCandidates})
	if err != nil {
		return nil, err
	}
	out := make([]*types.Memory, 0, len(page.Items))
	for i := range page.Items {
		m := page.Items[i]
		if m.Scope.Matches(scope) {
			out = append(out, &m)
		}
	}
	return out, nil
}

// Add stores content as a new memory after running it through the
// ingestion gate, satisfying internal/extract's MemoryAdder interface so
// the triple-extraction pipeline can feed memories back in without
// internal/extract importing this package directly.
func (o *Orchestrator) Add(ctx context.Context, content string, scope types.Scope, metadata map[string]interface{}) (string, error) {
	mem, err := o.Store(ctx, content, scope, metadata)
	if err != nil {
		return "", err
	}
	return mem.ID, nil
}

// Store stores a new memory with non-blocking enrichment.
//
// If the ingestion gate has an embedding client configured, content is
// first classified against recent memories in scope. A duplicate (skip) or
// an update decision short-circuits Store: the existing memory is returned,
// after an access bump or an in-place content update, and no new row is
// written. A supersede decision creates the new memory and marks the older
// one as superseded by it; anything else proceeds to a normal create.
func (o *Orchestrator) Store(ctx context.Context, content string, scope types.Scope, metadata map[string]interface{}) (*types.Memory, error) {
	o.mu.RLock()
	started := o.started
	embedder := o.embedder
	o.mu.RUnlock()
	if !started {
		return nil, fmt.Errorf("engine not started")
	}

	if content == "" {
		return nil, fmt.Errorf("content is required")
	}

	var supersedesID string
	if embedder != nil {
		decided, err := o.runGate(ctx, content, scope, embedder)
		if err != nil {
			log.Printf("WARNING: ingestion gate evaluation failed, falling back to create: %v", err)
		} else if decided != nil {
			if decided.applied != nil {
				return decided.applied, nil
			}
			supersedesID = decided.supersedesID
		}
	}

	memory := &types.Memory{
		ID:                 GenerateMemoryID("", ""),
		Content:            content,
		Scope:              scope,
		Metadata:           metadata,
		Fsrs:               types.NewFsrsState(),
		DualStrength:       types.NewDualStrengthState(),
		SupersedesID:       supersedesID,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	if err := o.memoryStore.Store(ctx, memory); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	if supersedesID != "" {
		if superseded, err := o.memoryStore.Get(ctx, supersedesID); err == nil {
			superseded.SourceSupersededID = memory.ID
			superseded.UpdatedAt = time.Now()
			if err := o.memoryStore.Update(ctx, superseded); err != nil {
				log.Printf("WARNING: failed to mark %s as superseded by %s: %v", supersedesID, memory.ID, err)
			}
		}
	}

	o.events.Emit(events.NewCreatedEvent(memory.ID, memory.Content, metadata))

	job := o.createScopedEnrichmentJob(memory.ID, content, scope, 0)
	if !o.queueEnrichmentJob(job) {
		if err := o.memoryStore.UpdateStatus(ctx, memory.ID, types.StatusFailed); err != nil {
			log.Printf("ERROR: Failed to mark memory %s as failed: %v", memory.ID, err)
		}
		return memory, fmt.Errorf("enrichment queue full, memory stored but not queued")
	}

	return memory, nil
}

// gateDecision is runGate's outcome: either applied is a memory that
// already satisfies the new content (skip/update, no fresh Store needed),
// or supersedesID names a memory the caller should mark as superseded
// once the new memory is persisted.
type gateDecision struct {
	applied      *types.Memory
	supersedesID string
}

// runGate classifies content against existing memories in scope using the
// ingestion gate's four-layer cascade.
func (o *Orchestrator) runGate(ctx context.Context, content string, scope types.Scope, embedder llm.EmbeddingGenerator) (*gateDecision, error) {
	candidates, err := o.gateCandidates(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	contents := make([]string, len(candidates))
	embeddings := make([][]float32, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
		contents[i] = c.Content
		embeddings[i] = c.Embedding
	}

	result, err := o.gate.EvaluateMemories(ctx, content, ids, contents, embeddings, embedder)
	if err != nil {
		return nil, err
	}

	switch result.Decision {
	case ingestion.DecisionSkip:
		if result.RelatedMemoryID == "" {
			return nil, nil
		}
		existing, err := o.memoryStore.Get(ctx, result.RelatedMemoryID)
		if err != nil {
			return nil, nil
		}
		o.decayManager.ApplyAccess(existing, time.Now())
		if err := o.memoryStore.Update(ctx, existing); err != nil {
			log.Printf("WARNING: failed to bump access on duplicate skip for %s: %v", existing.ID, err)
		}
		return &gateDecision{applied: existing}, nil

	case ingestion.DecisionUpdate:
		if result.RelatedMemoryID == "" {
			return nil, nil
		}
		updated, err := o.Update(ctx, result.RelatedMemoryID, content, nil)
		if err != nil {
			return nil, nil
		}
		return &gateDecision{applied: updated}, nil

	case ingestion.DecisionSupersede:
		return &gateDecision{supersedesID: result.RelatedMemoryID}, nil

	default: // DecisionCreate
		return nil, nil
	}
}

// Get retrieves a memory by ID.
func (o *Orchestrator) Get(ctx context.Context, id string) (*types.Memory, error) {
	return o.memoryStore.Get(ctx, id)
}

// List retrieves memories with pagination and filtering.
func (o *Orchestrator) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	return o.memoryStore.List(ctx, opts)
}

// Update applies an in-place edit to a memory's content and metadata.
func (o *Orchestrator) Update(ctx context.Context, id string, content string, metadata map[string]interface{}) (*types.Memory, error) {
	mem, err := o.memoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldContent := mem.Content
	mem.Content = content
	if metadata != nil {
		mem.Metadata = metadata
	}
	mem.UpdatedAt = time.Now()
	if err := o.memoryStore.Update(ctx, mem); err != nil {
		return nil, err
	}
	o.events.Emit(events.NewUpdatedEvent(mem.ID, oldContent, content, events.UpdateContent, 0))
	return mem, nil
}

// Delete removes a memory (soft delete unless hard is true).
func (o *Orchestrator) Delete(ctx context.Context, id string, hard bool, reason string) error {
	var err error
	if hard {
		err = o.memoryStore.Purge(ctx, id)
	} else {
		err = o.memoryStore.Delete(ctx, id)
	}
	if err != nil {
		return err
	}
	o.events.Emit(events.NewDeletedEvent(id, !hard, reason))
	return nil
}

// Access records a read of mem: bumps FSRS-independent access bookkeeping
// via the decay manager, persists the change, and emits an accessed
// event. This is the "weak signal" path; a graded review goes through
// ProcessSignal instead.
func (o *Orchestrator) Access(ctx context.Context, id string, accessType events.AccessType) (*types.Memory, error) {
	mem, err := o.memoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	o.decayManager.ApplyAccess(mem, time.Now())
	if err := o.memoryStore.Update(ctx, mem); err != nil {
		return nil, err
	}
	o.events.Emit(events.NewAccessedEvent(id, accessType))
	return mem, nil
}

// Search performs multi-signal retrieval, delegating to the retriever
// wired in by the composition root.
func (o *Orchestrator) Search(ctx context.Context, queryText string, queryEmbedding []float32, cfg retrieval.Config) ([]retrieval.Result, error) {
	o.mu.RLock()
	retriever := o.retriever
	started := o.started
	o.mu.RUnlock()

	if !started {
		return nil, fmt.Errorf("engine not started")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever not configured")
	}
	return retriever.Retrieve(ctx, queryText, queryEmbedding, cfg)
}

// ProcessSignal records a single strength signal (used in response, user
// correction, contradiction, ...) to be applied on the next FlushSignals.
func (o *Orchestrator) ProcessSignal(s strength.Signal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signals.Process(s)
}

// FlushSignals applies all pending grade updates and key-mark toggles
// accumulated since the last flush: each graded memory is advanced
// through the FSRS scheduler and its dual-strength state updated, then
// persisted.
func (o *Orchestrator) FlushSignals(ctx context.Context) error {
	o.mu.Lock()
	updates := o.signals.PendingUpdates()
	keyMarks := o.signals.PendingKeyMarks()
	o.signals.Clear()
	o.mu.Unlock()

	now := time.Now()
	for _, u := range updates {
		mem, err := o.memoryStore.Get(ctx, u.MemoryID)
		if err != nil {
			log.Printf("WARNING: FlushSignals: could not load memory %s: %v", u.MemoryID, err)
			continue
		}
		r := o.scheduler.CurrentRetrievability(mem.Fsrs, now)
		mem.Fsrs = o.scheduler.Review(mem.Fsrs, u.Grade, now)
		mem.DualStrength = strength.UpdateDualStrength(mem.DualStrength, u.Grade, r, now.Sub(mem.UpdatedAt))
		mem.UpdatedAt = now
		if err := o.memoryStore.Update(ctx, mem); err != nil {
			log.Printf("WARNING: FlushSignals: could not persist memory %s: %v", u.MemoryID, err)
		}
	}

	for _, id := range keyMarks {
		mem, err := o.memoryStore.Get(ctx, id)
		if err != nil {
			log.Printf("WARNING: FlushSignals: could not load memory %s for key mark: %v", id, err)
			continue
		}
		mem.IsKey = !mem.IsKey
		mem.UpdatedAt = now
		if err := o.memoryStore.Update(ctx, mem); err != nil {
			log.Printf("WARNING: FlushSignals: could not persist key mark for %s: %v", id, err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the orchestrator.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return fmt.Errorf("engine not started")
	}

	log.Println("Shutting down memory orchestrator...")

	o.shuttingDown = true

	if o.workerCancel != nil {
		o.workerCancel()
	}

	if err := o.stopWorkerPool(ctx); err != nil {
		log.Printf("WARNING: Worker pool shutdown had errors: %v", err)
	}

	o.started = false
	o.shuttingDown = false
	log.Println("Memory orchestrator shut down successfully")

	return nil
}

// InferConnections discovers implicit connections between memories.
func (o *Orchestrator) InferConnections(ctx context.Context, memoryID string, opts InferenceOptions) ([]InferenceResult, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.started {
		return nil, fmt.Errorf("engine not started")
	}
	return o.inferenceEngine.InferConnections(ctx, memoryID, opts)
}

// FindPatterns identifies recurring patterns across memories.
func (o *Orchestrator) FindPatterns(ctx context.Context, domain string) ([]Pattern, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.started {
		return nil, fmt.Errorf("engine not started")
	}
	return o.inferenceEngine.FindPatterns(ctx, domain)
}

// BoostMemory records a retrieval access on memoryID, nudging its
// retrieval strength up via the decay manager without waiting for a
// full graded review.
func (o *Orchestrator) BoostMemory(ctx context.Context, memoryID string) error {
	o.mu.RLock()
	started := o.started
	o.mu.RUnlock()
	if !started {
		return fmt.Errorf("engine not started")
	}
	_, err := o.Access(ctx, memoryID, events.AccessUsedInResponse)
	return err
}

// UpdateConfidence recalculates and stores confidence for a memory.
func (o *Orchestrator) UpdateConfidence(ctx context.Context, memoryID string) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.started {
		return fmt.Errorf("engine not started")
	}
	return o.confidenceScorer.UpdateConfidence(ctx, memoryID)
}

// DecayedMemory names a memory whose current FSRS retrievability has
// fallen below the requested threshold, as of the scan time.
type DecayedMemory struct {
	MemoryID       string
	Retrievability float64
}

// ApplyDecay walks every memory in scope and reports those whose current
// retrievability has fallen below threshold. FSRS retrievability is a pure
// function of elapsed time and is computed on read (see DecayManager), so
// this does not mutate stored memories; it surfaces forgetting candidates
// for a caller to act on (archival, re-review prompts, pruning).
func (o *Orchestrator) ApplyDecay(ctx context.Context, scope types.Scope, threshold float64) ([]DecayedMemory, error) {
	o.mu.RLock()
	started := o.started
	o.mu.RUnlock()
	if !started {
		return nil, fmt.Errorf("engine not started")
	}

	now := time.Now()
	var decayed []DecayedMemory

	for page := 1; ; page++ {
		result, err := o.memoryStore.List(ctx, storage.ListOptions{Page: page, Limit: 100})
		if err != nil {
			return decayed, err
		}

		for i := range result.Items {
			mem := result.Items[i]
			if !mem.Scope.Matches(scope) {
				continue
			}
			r := o.decayManager.Retrievability(&mem, now)
			if r < threshold {
				decayed = append(decayed, DecayedMemory{MemoryID: mem.ID, Retrievability: r})
			}
		}

		if !result.HasMore {
			break
		}
	}

	return decayed, nil
}

// GetQueueSize returns the current number of jobs in the enrichment queue.
func (o *Orchestrator) GetQueueSize() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.enrichmentQueue)
}

// llmConfigFromGlobal maps the global application config to a connections.LLMConfig
// that the factory functions can consume.
func llmConfigFromGlobal(cfg *config.Config) connections.LLMConfig {
	switch cfg.LLM.LLMProvider {
	case "openai":
		return connections.LLMConfig{
			Provider: "openai",
			APIKey:   cfg.LLM.OpenAIAPIKey,
			Model:    cfg.LLM.OpenAIModel,
		}
	case "anthropic":
		return connections.LLMConfig{
			Provider: "anthropic",
			APIKey:   cfg.LLM.AnthropicAPIKey,
			Model:    cfg.LLM.AnthropicModel,
		}
	default:
		return connections.LLMConfig{
			Provider: "ollama",
			BaseURL:  cfg.LLM.OllamaURL,
			Model:    cfg.LLM.OllamaModel,
		}
	}
}
