package engine

import (
	"context"
	"log"
	"time"

	"github.com/rookmemory/rook/pkg/types"
)

// queueEnrichmentJob attempts to queue an enrichment job.
// Returns true if the job was queued successfully, false if the queue is full or closed.
func (o *Orchestrator) queueEnrichmentJob(job *EnrichmentJob) bool {
	// Check if worker context is cancelled (shutdown in progress)
	if o.workerCtx != nil && o.workerCtx.Err() != nil {
		return false
	}

	// Try to queue (non-blocking)
	select {
	case o.enrichmentQueue <- job:
		return true
	default:
		// Queue is full or closed
		log.Printf("WARNING: Enrichment queue full (size=%d), dropping job for memory %s",
			o.config.QueueSize, job.MemoryID)
		return false
	}
}

// createEnrichmentJob creates a new enrichment job from memory data.
func (o *Orchestrator) createEnrichmentJob(memoryID, content string, attempt int) *EnrichmentJob {
	return o.createScopedEnrichmentJob(memoryID, content, types.Scope{}, attempt)
}

// createScopedEnrichmentJob creates a new enrichment job carrying the
// owning memory's scope, so extracted entities land in the graph under
// the right (user, agent, run) axes.
func (o *Orchestrator) createScopedEnrichmentJob(memoryID, content string, scope types.Scope, attempt int) *EnrichmentJob {
	return &EnrichmentJob{
		MemoryID:  memoryID,
		Content:   content,
		Scope:     scope,
		Timestamp: time.Now(),
		Attempt:   attempt,
	}
}

// requeueEnrichmentJob attempts to requeue a failed enrichment job.
// Returns true if the job was requeued, false if max retries exceeded or queue full.
func (o *Orchestrator) requeueEnrichmentJob(ctx context.Context, job *EnrichmentJob) bool {
	// Check if worker context is cancelled (shutdown in progress)
	if o.workerCtx != nil && o.workerCtx.Err() != nil {
		log.Printf("WARNING: Failed to requeue job for memory %s, shutdown in progress", job.MemoryID)
		return false
	}

	// Check if max retries exceeded
	if job.Attempt >= o.config.MaxRetries {
		log.Printf("Max retries (%d) exceeded for memory %s, giving up",
			o.config.MaxRetries, job.MemoryID)
		return false
	}

	// Increment attempt counter
	job.Attempt++

	// Try to requeue (non-blocking to avoid panic on closed channel)
	select {
	case o.enrichmentQueue <- job:
		log.Printf("Requeued enrichment job for memory %s (attempt %d/%d)",
			job.MemoryID, job.Attempt, o.config.MaxRetries)
		return true
	case <-time.After(10 * time.Millisecond):
		// Timeout - queue might be full or closed
		log.Printf("WARNING: Failed to requeue job for memory %s, queue timeout",
			job.MemoryID)
		return false
	}
}

// getQueueLength returns the current number of jobs in the queue.
func (o *Orchestrator) getQueueLength() int {
	return len(o.enrichmentQueue)
}
