// Package report aggregates per-fix outcomes from every engine stage into a
// single structured batch report. Individual fix failures are data here, not
// errors; only systemic failures surface as engine-level errors.
package report

import (
	"sort"
	"sync"
	"time"

	"github.com/sevigo/patch-warden/internal/core"
)

// Collector accumulates fix outcomes and application records as workers
// produce them. Safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	batchID  string
	fixSetID string
	policy   core.BatchPolicy
	dryRun   bool
	started  time.Time
	outcomes []core.FixOutcome
	records  []core.ApplicationRecord
	rolled   bool
}

// NewCollector starts a report for one batch.
func NewCollector(batchID, fixSetID string, policy core.BatchPolicy, dryRun bool) *Collector {
	return &Collector{
		batchID:  batchID,
		fixSetID: fixSetID,
		policy:   policy,
		dryRun:   dryRun,
		started:  time.Now().UTC(),
	}
}

// Add records fix outcomes.
func (c *Collector) Add(outcomes ...core.FixOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcomes...)
}

// AddRecord records a per-file application record.
func (c *Collector) AddRecord(record core.ApplicationRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, record)
}

// MarkRolledBack flips committed records to rolled_back after an
// all_or_nothing batch unwound, and downgrades their applied fixes.
func (c *Collector) MarkRolledBack(restoredPaths []string) {
	restored := make(map[string]struct{}, len(restoredPaths))
	for _, p := range restoredPaths {
		restored[p] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolled = true
	for i := range c.records {
		if _, ok := restored[c.records[i].Path]; ok {
			c.records[i].Status = core.RecordRolledBack
		}
	}
	for i := range c.outcomes {
		o := &c.outcomes[i]
		if o.Status != core.StatusApplied {
			continue
		}
		if _, ok := restored[o.Path]; ok {
			o.Status = core.StatusRejected
			o.Rejection = core.RejectIoFailure
			o.Detail = "rolled back: another file in the batch failed under all_or_nothing"
		}
	}
}

// Finalize produces the batch report. Outcomes are sorted by path then fix id
// so reports are reproducible regardless of worker scheduling.
func (c *Collector) Finalize() *core.BatchReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcomes := append([]core.FixOutcome(nil), c.outcomes...)
	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].Path != outcomes[j].Path {
			return outcomes[i].Path < outcomes[j].Path
		}
		return outcomes[i].FixID < outcomes[j].FixID
	})

	records := append([]core.ApplicationRecord(nil), c.records...)
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	return &core.BatchReport{
		BatchID:    c.batchID,
		FixSetID:   c.fixSetID,
		Policy:     c.policy,
		DryRun:     c.dryRun,
		StartedAt:  c.started,
		Duration:   time.Since(c.started),
		Outcomes:   outcomes,
		Records:    records,
		RolledBack: c.rolled,
	}
}
