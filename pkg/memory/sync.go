package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/conscious-go/pkg/errors"
	"github.com/theapemachine/conscious-go/pkg/logging"
)

// SyncEngine projects memories into the graph store. It never writes to the
// primary store beyond sync bookkeeping, so it can run concurrently with
// saves and searches. Runs are single-flight: an overlapping trigger is
// dropped, not queued, because the next scheduled run picks up whatever it
// would have handled.
// DefaultExtractTimeout bounds a single extractor call inside a sync run.
const DefaultExtractTimeout = 30 * time.Second

type SyncEngine struct {
	repo      *Repository
	graph     GraphStore
	extractor Extractor
	logger    *log.Logger

	// ExtractTimeout caps each extractor call. A hung provider turns into
	// a per-item failure instead of holding the run lock, which would make
	// the single-flight guard skip every future run.
	ExtractTimeout time.Duration

	runLock  sync.Mutex
	statLock sync.Mutex
	lastSync time.Time
	lastRun  SyncReport
}

func NewSyncEngine(repo *Repository, graph GraphStore, extractor Extractor) *SyncEngine {
	if extractor == nil {
		extractor = NoopExtractor{}
	}
	return &SyncEngine{
		repo:           repo,
		graph:          graph,
		extractor:      extractor,
		ExtractTimeout: DefaultExtractTimeout,
		logger:         logging.Named("sync"),
	}
}

// Run executes one reconciliation pass. With full set, every memory is
// re-projected regardless of sync state; otherwise only unsynced ones.
// Per-item failures are isolated and counted; only losing the graph store
// itself aborts the run.
func (e *SyncEngine) Run(ctx context.Context, full bool) (SyncReport, error) {
	if !e.runLock.TryLock() {
		e.logger.Debug("sync already in progress, skipping run")
		return SyncReport{Ran: false, Skipped: 1}, nil
	}
	defer e.runLock.Unlock()

	report := SyncReport{Ran: true, StartedAt: time.Now().UTC()}

	filter := Filter{SyncState: SyncStateUnsynced}
	if full {
		filter = Filter{}
	}

	candidates, err := e.repo.List(ctx, filter)
	if err != nil {
		return report, err
	}

	for _, mem := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := e.syncOne(ctx, mem); err != nil {
			var connErr *errors.StoreConnectivityError
			if errors.As(err, &connErr) {
				// The store is gone, not the item; the whole run is
				// over. The scheduler retries on its next interval.
				return report, err
			}

			report.Errors++
			itemErr := &errors.SyncItemError{
				MemoryID: mem.ID,
				Attempts: mem.SyncRetries + 1,
				Err:      err,
			}
			e.logger.Warn("sync item failed", "error", itemErr)

			if err := e.repo.SetSyncState(ctx, mem.ID, SyncStateFailed, mem.SyncRetries+1); err != nil {
				e.logger.Error("failed to record sync failure", "id", mem.ID, "error", err)
			}
			continue
		}

		if err := e.repo.SetSyncState(ctx, mem.ID, SyncStateSynced, 0); err != nil {
			e.logger.Error("failed to mark memory synced", "id", mem.ID, "error", err)
		}

		report.Processed++
	}

	report.FinishedAt = time.Now().UTC()

	e.statLock.Lock()
	e.lastSync = report.FinishedAt
	e.lastRun = report
	e.statLock.Unlock()

	e.logger.Info("sync run finished",
		"processed", report.Processed, "errors", report.Errors, "full", full)

	return report, nil
}

// syncOne projects a single memory: its node, its tag edges, and the
// entities and relationships the extractor finds in its text. Every write is
// a merge, so replaying an already-synced memory changes nothing.
func (e *SyncEngine) syncOne(ctx context.Context, mem Memory) error {
	timeout := e.ExtractTimeout
	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}

	extractCtx, cancel := context.WithTimeout(ctx, timeout)
	extraction, err := e.extractor.Extract(extractCtx, mem.Text)
	cancel()
	if err != nil {
		return err
	}

	if err := e.graph.UpsertMemoryNode(ctx, mem); err != nil {
		return err
	}

	// Tags are replaced, not merged, so the graph converges on the
	// memory's current tag set even after updates removed some.
	if err := e.graph.ReplaceTags(ctx, mem.ID, mem.Tags); err != nil {
		return err
	}

	byName := make(map[string]Entity, len(extraction.Entities))

	for _, ent := range extraction.Entities {
		if err := e.graph.UpsertEntity(ctx, ent); err != nil {
			return err
		}
		if err := e.graph.UpsertMention(ctx, mem.ID, ent); err != nil {
			return err
		}
		byName[strings.ToLower(ent.Name)] = ent
	}

	// Relationship endpoints resolve to the entities of this extraction,
	// by key, so a name shared across entity types stays unambiguous.
	for _, rel := range extraction.Relationships {
		from, okFrom := byName[strings.ToLower(rel.From)]
		to, okTo := byName[strings.ToLower(rel.To)]
		if !okFrom || !okTo {
			continue
		}
		if err := e.graph.UpsertEntityRelation(ctx, from, to, rel.Type); err != nil {
			return err
		}
	}

	return nil
}

// LastSync returns the completion time of the most recent run, zero if none
// finished yet.
func (e *SyncEngine) LastSync() time.Time {
	e.statLock.Lock()
	defer e.statLock.Unlock()
	return e.lastSync
}

// LastReport returns the most recent completed run's counters.
func (e *SyncEngine) LastReport() SyncReport {
	e.statLock.Lock()
	defer e.statLock.Unlock()
	return e.lastRun
}

// Scheduler drives the sync engine on a fixed interval until its context is
// cancelled, giving shutdown a deterministic point instead of an orphaned
// loop.
type Scheduler struct {
	engine   *SyncEngine
	interval time.Duration
	logger   *log.Logger
}

func NewScheduler(engine *SyncEngine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logging.Named("scheduler"),
	}
}

// Start blocks until ctx is cancelled. Run failures (including graph
// connectivity loss) are logged and retried on the next tick rather than
// crashing the process.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sync scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.engine.Run(ctx, false); err != nil {
				s.logger.Error("sync run failed, will retry next interval", "error", err)
			}
		}
	}
}
