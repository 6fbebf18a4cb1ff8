package strength

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rookmemory/rook/pkg/types"
)

// DefaultConsolidationCronSpec ticks the consolidation scanner every 15
// minutes (SPEC_FULL.md §3 "Consolidation scheduler tick (default 15 min)").
const DefaultConsolidationCronSpec = "*/15 * * * *"

// ConsolidationCandidate is the minimal view of a memory the consolidation
// scheduler needs per tick.
type ConsolidationCandidate struct {
	MemoryID    string
	CreatedAt   time.Time
	Phase       types.ConsolidationPhase
	SynapticTag *types.SynapticTag
}

// ConsolidationStore is the storage-side contract the scheduler needs: list
// vulnerable (non-terminal) memories, then persist phase advances.
type ConsolidationStore interface {
	ListVulnerable(ctx context.Context) ([]ConsolidationCandidate, error)
	ApplyPhaseAdvance(ctx context.Context, result ConsolidationResult) error
}

// ConsolidationScheduler runs Tick over every vulnerable memory on a cron
// schedule, driven by github.com/robfig/cron/v3 (SPEC_FULL.md domain-stack
// wiring).
type ConsolidationScheduler struct {
	store ConsolidationStore
	cron  *cron.Cron
	spec  string
}

// NewConsolidationScheduler returns a scheduler backed by store, ticking on
// spec (a standard 5-field cron expression). An empty spec uses
// DefaultConsolidationCronSpec.
func NewConsolidationScheduler(store ConsolidationStore, spec string) *ConsolidationScheduler {
	if spec == "" {
		spec = DefaultConsolidationCronSpec
	}
	return &ConsolidationScheduler{
		store: store,
		cron:  cron.New(),
		spec:  spec,
	}
}

// Start registers the tick job and starts the cron scheduler in the
// background. Call Stop to shut it down.
func (s *ConsolidationScheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("strength: consolidation tick failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, blocking until any in-flight tick completes.
func (s *ConsolidationScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs a single consolidation scan, advancing or evicting every
// vulnerable memory whose age/tag/PRP state permits it, and returns the
// aggregate report.
func (s *ConsolidationScheduler) RunOnce(ctx context.Context) (ConsolidationReport, error) {
	now := time.Now()
	candidates, err := s.store.ListVulnerable(ctx)
	if err != nil {
		return ConsolidationReport{}, err
	}

	results, report := Consolidate(candidates, now)
	for _, result := range results {
		if !result.Advanced && !result.Evict {
			continue
		}
		if err := s.store.ApplyPhaseAdvance(ctx, result); err != nil {
			log.Printf("strength: failed to persist phase advance for %s: %v", result.MemoryID, err)
		}
	}
	return report, nil
}
