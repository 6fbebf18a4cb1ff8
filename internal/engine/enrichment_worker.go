package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rookmemory/rook/internal/storage"
	"github.com/rookmemory/rook/pkg/types"
)

// enrichmentWorker is a worker goroutine that processes enrichment jobs.
// It runs continuously until the enrichment queue is closed.
func (o *Orchestrator) enrichmentWorker(ctx context.Context, workerID int) {
	defer o.workerWaitGroup.Done()

	log.Printf("Enrichment worker %d started", workerID)

	for job := range o.enrichmentQueue {
		o.processEnrichmentJob(ctx, workerID, job)
	}

	log.Printf("Enrichment worker %d stopped", workerID)
}

// processEnrichmentJob processes a single enrichment job using the extraction pipeline.
// Tracks EntityStatus and RelationshipStatus separately for granular enrichment visibility.
// Handles partial failures gracefully (entities preserved even if relationships fail).
// If job.EmbeddingOnly is true, skips the full LLM extraction and only generates embeddings.
func (o *Orchestrator) processEnrichmentJob(ctx context.Context, workerID int, job *EnrichmentJob) {
	log.Printf("Worker %d processing memory %s (attempt %d, embeddingOnly=%v)", workerID, job.MemoryID, job.Attempt, job.EmbeddingOnly)

	// Use background context for database operations to avoid cancellation during shutdown
	dbCtx := context.Background()

	// Apply exponential backoff for retries to reduce database lock contention
	if job.Attempt > 0 {
		backoffDuration := time.Duration(job.Attempt*job.Attempt) * 100 * time.Millisecond // 100ms, 400ms, 900ms...
		log.Printf("Worker %d: Waiting %v before retry (attempt %d)", workerID, backoffDuration, job.Attempt)
		time.Sleep(backoffDuration)
	}

	// EmbeddingOnly path: just generate embeddings and return.
	if job.EmbeddingOnly {
		if o.enrichmentService != nil {
			if embErr := o.enrichmentService.GenerateEmbeddings(ctx, job.MemoryID, job.Content); embErr != nil {
				log.Printf("Worker %d: WARNING - embedding-only generation failed for %s: %v", workerID, job.MemoryID, embErr)
			} else {
				log.Printf("Worker %d: embedding-only job completed for %s", workerID, job.MemoryID)
			}
		} else {
			log.Printf("Worker %d: embedding-only job skipped (no enrichment service) for %s", workerID, job.MemoryID)
		}
		if o.onEnrichmentComplete != nil {
			o.onEnrichmentComplete(job.MemoryID)
		}
		return
	}

	// Update status to processing
	if err := o.memoryStore.UpdateStatus(dbCtx, job.MemoryID, types.StatusProcessing); err != nil {
		log.Printf("ERROR: Worker %d failed to update status to processing for %s: %v",
			workerID, job.MemoryID, err)
		if !o.requeueEnrichmentJob(ctx, job) {
			o.memoryStore.UpdateStatus(dbCtx, job.MemoryID, types.StatusFailed)
		}
		return
	}

	var entityStatus types.EnrichmentStatus
	var relationshipStatus types.EnrichmentStatus
	var enrichmentError string
	now := time.Now()

	var embeddingStatus types.EnrichmentStatus
	if o.enrichmentService != nil {
		pipelineResult, err := o.enrichmentService.ExtractionPipeline.Extract(ctx, job.MemoryID, job.Content, job.Scope)
		if err != nil {
			log.Printf("ERROR: Worker %d entity extraction failed for %s: %v", workerID, job.MemoryID, err)
			enrichmentError = err.Error()
			if !o.requeueEnrichmentJob(ctx, job) {
				o.memoryStore.UpdateStatus(dbCtx, job.MemoryID, types.StatusFailed)
			}
			return
		}

		entityStatus = pipelineResult.EntityStatus
		relationshipStatus = pipelineResult.RelationshipStatus

		if pipelineResult.RelationshipError != "" {
			enrichmentError = fmt.Sprintf("entity: success, relationship: %s", pipelineResult.RelationshipError)
		}

		log.Printf("Worker %d pipeline results for %s: Entity=%s, Relationship=%s",
			workerID, job.MemoryID, entityStatus, relationshipStatus)

		if err := o.applyClassificationAndSummary(dbCtx, job.MemoryID, pipelineResult); err != nil {
			log.Printf("Worker %d: WARNING - failed to apply classification/summary for %s: %v", workerID, job.MemoryID, err)
		}

		if embErr := o.enrichmentService.GenerateEmbeddings(ctx, job.MemoryID, job.Content); embErr != nil {
			log.Printf("Worker %d: WARNING - embedding generation failed for %s: %v", workerID, job.MemoryID, embErr)
			embeddingStatus = types.EnrichmentFailed
		} else {
			embeddingStatus = types.EnrichmentCompleted
			log.Printf("Worker %d: embedding generated for %s", workerID, job.MemoryID)
		}
	} else {
		log.Printf("Warning: Enrichment service not available, skipping LLM enrichment for %s", job.MemoryID)
		time.Sleep(100 * time.Millisecond)
		entityStatus = types.EnrichmentSkipped
		relationshipStatus = types.EnrichmentSkipped
		embeddingStatus = types.EnrichmentSkipped
	}

	if err := o.memoryStore.UpdateStatus(dbCtx, job.MemoryID, types.StatusEnriched); err != nil {
		log.Printf("ERROR: Worker %d failed to update status to enriched for %s: %v",
			workerID, job.MemoryID, err)
		if !o.requeueEnrichmentJob(ctx, job) {
			o.memoryStore.UpdateStatus(dbCtx, job.MemoryID, types.StatusFailed)
		}
		return
	}

	enrichment := storage.EnrichmentUpdate{
		EntityStatus:       entityStatus,
		RelationshipStatus: relationshipStatus,
		EmbeddingStatus:    embeddingStatus,
		EnrichmentAttempts: job.Attempt + 1,
		EnrichmentError:    enrichmentError,
		EnrichedAt:         &now,
	}

	if err := o.memoryStore.UpdateEnrichment(ctx, job.MemoryID, enrichment); err != nil {
		log.Printf("WARNING: Worker %d failed to update enrichment metadata for %s: %v",
			workerID, job.MemoryID, err)
	}

	log.Printf("Worker %d completed enrichment for memory %s (Entity=%s, Relationship=%s)",
		workerID, job.MemoryID, entityStatus, relationshipStatus)

	if o.onEnrichmentComplete != nil {
		o.onEnrichmentComplete(job.MemoryID)
	}
}

// applyClassificationAndSummary writes Call 3/Call 4 results onto the
// memory's own fields (category, memory type, tags, and a generated
// summary folded into metadata), since those calls describe the memory
// itself rather than the graph.
func (o *Orchestrator) applyClassificationAndSummary(ctx context.Context, memoryID string, result *ExtractPipelineResult) error {
	if result.Classification == nil && result.Summary == nil {
		return nil
	}

	mem, err := o.memoryStore.Get(ctx, memoryID)
	if err != nil {
		return err
	}

	if c := result.Classification; c != nil {
		mem.Category = c.Category
		mem.MemoryType = c.MemoryType
		mem.Tags = c.Tags
	}

	if s := result.Summary; s != nil {
		if mem.Metadata == nil {
			mem.Metadata = make(map[string]interface{})
		}
		mem.Metadata["summary"] = s.Summary
		mem.Metadata["key_points"] = s.KeyPoints
	}

	mem.UpdatedAt = time.Now()
	return o.memoryStore.Update(ctx, mem)
}

// startWorkerPool starts the worker goroutines.
func (o *Orchestrator) startWorkerPool(ctx context.Context) {
	for i := 0; i < o.config.NumWorkers; i++ {
		o.workerWaitGroup.Add(1)
		go o.enrichmentWorker(ctx, i)
	}

	log.Printf("Started %d enrichment workers", o.config.NumWorkers)
}

// stopWorkerPool stops the worker goroutines gracefully.
func (o *Orchestrator) stopWorkerPool(ctx context.Context) error {
	close(o.enrichmentQueue)

	done := make(chan struct{})
	go func() {
		o.workerWaitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All enrichment workers finished gracefully")
		return nil
	case <-time.After(o.config.ShutdownTimeout):
		remaining := o.getQueueLength()
		log.Printf("WARNING: Shutdown timeout reached, %d enrichment jobs may be dropped", remaining)
		return nil
	case <-ctx.Done():
		remaining := o.getQueueLength()
		log.Printf("WARNING: Context cancelled, %d enrichment jobs may be dropped", remaining)
		return ctx.Err()
	}
}
