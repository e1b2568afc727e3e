// Package core defines the essential data structures and interfaces that form the
// backbone of the fix engine. These components are deliberately free of behavior
// so that the resolver, validators, applier, and reporter can share one vocabulary
// without depending on each other.
package core

import "time"

// Span is a half-open byte range [Start, End) in a file's original content.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Valid reports whether the span is well formed: non-negative offsets and
// End not before Start.
func (s Span) Valid() bool { return s.Start >= 0 && s.End >= s.Start }

// Overlaps reports whether two spans share at least one byte. Touching spans
// ([0,5) and [5,9)) do not overlap.
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Location pins a span to a file path. Paths are relative to the project root
// the batch operates on.
type Location struct {
	Path string `json:"path"`
	Span Span   `json:"span"`
}

// Severity of an analysis issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityStyle   Severity = "style"
)

// Category classifies an issue or fix.
type Category string

const (
	CategoryStyle       Category = "style"
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryCorrectness Category = "correctness"
)

// Issue is an analysis finding produced by an external analyzer. The engine
// treats issues as read-only input; they exist to correlate fixes with the
// findings that motivated them.
type Issue struct {
	ID       string   `json:"id"`
	RuleID   string   `json:"rule_id"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

// Fix is a proposed text replacement at a specific byte span of a file's
// original content. OriginalText is the content the producer expected at the
// span; a mismatch at application time means the suggestion is stale.
type Fix struct {
	ID              string   `json:"id"`
	IssueID         string   `json:"issue_id"`
	Location        Location `json:"location"`
	OriginalText    string   `json:"original_text"`
	ReplacementText string   `json:"replacement_text"`
	Confidence      float64  `json:"confidence"`
	Category        Category `json:"category"`
}

// FixSet is one batch of proposed fixes, possibly spanning many files. No input
// ordering is required; the engine establishes a safe order internally.
type FixSet struct {
	ID    string `json:"id"`
	Fixes []Fix  `json:"fixes"`
}

// Files returns the distinct target paths of the set, in first-seen order.
func (fs FixSet) Files() []string {
	seen := make(map[string]struct{}, len(fs.Fixes))
	var paths []string
	for _, f := range fs.Fixes {
		if _, ok := seen[f.Location.Path]; ok {
			continue
		}
		seen[f.Location.Path] = struct{}{}
		paths = append(paths, f.Location.Path)
	}
	return paths
}

// FixGroup holds the non-conflicting fixes for a single file, sorted descending
// by span start so earlier replacements never shift the offsets of edits still
// pending.
type FixGroup struct {
	Path  string
	Fixes []Fix
}

// ValidatorKind enumerates the closed, order-sensitive set of checks in the
// validation pipeline.
type ValidatorKind string

const (
	ValidatorSyntax        ValidatorKind = "syntax"
	ValidatorSemantic      ValidatorKind = "semantic"
	ValidatorCompatibility ValidatorKind = "compatibility"
	ValidatorSecurity      ValidatorKind = "security"
)

// OutcomeStatus is the result of one validator for one fix.
type OutcomeStatus string

const (
	OutcomePass    OutcomeStatus = "pass"
	OutcomeFail    OutcomeStatus = "fail"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// ValidationOutcome records the decision of a single validator.
type ValidationOutcome struct {
	Validator ValidatorKind `json:"validator"`
	Status    OutcomeStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
}

// FixStatus is the terminal state of one fix within a batch.
type FixStatus string

const (
	StatusApplied       FixStatus = "applied"
	StatusRejected      FixStatus = "rejected"
	StatusNeedsApproval FixStatus = "needs_approval"
	StatusConflicted    FixStatus = "conflicted"
)

// FixOutcome is the per-fix entry of a batch report.
type FixOutcome struct {
	FixID       string              `json:"fix_id"`
	IssueID     string              `json:"issue_id,omitempty"`
	Path        string              `json:"path"`
	Status      FixStatus           `json:"status"`
	Rejection   RejectionKind       `json:"rejection,omitempty"`
	Detail      string              `json:"detail,omitempty"`
	Validations []ValidationOutcome `json:"validations,omitempty"`
}

// RecordStatus is the terminal state of a per-file transaction.
type RecordStatus string

const (
	RecordCommitted  RecordStatus = "committed"
	RecordRolledBack RecordStatus = "rolled_back"
)

// ApplicationRecord tracks one file's transaction: the hash of the content that
// was replaced, where its backup lives, and which fixes landed. Records persist
// until the caller confirms the batch outcome; backups are never removed
// automatically.
type ApplicationRecord struct {
	Path          string       `json:"path"`
	ContentHash   string       `json:"content_hash"`
	BackupPath    string       `json:"backup_path"`
	AppliedFixIDs []string     `json:"applied_fix_ids"`
	AppliedAt     time.Time    `json:"applied_at"`
	Status        RecordStatus `json:"status"`
}

// BatchPolicy controls how a file failure affects the rest of the batch.
type BatchPolicy string

const (
	// PolicyBestEffort commits every file independently; one file's failure
	// does not block the others.
	PolicyBestEffort BatchPolicy = "best_effort"
	// PolicyAllOrNothing rolls back every committed file, in reverse commit
	// order, if any file in the batch fails.
	PolicyAllOrNothing BatchPolicy = "all_or_nothing"
)

// ValidPolicy reports whether p names a known batch policy.
func ValidPolicy(p BatchPolicy) bool {
	return p == PolicyBestEffort || p == PolicyAllOrNothing
}

// BatchReport aggregates the outcome of one batch. Individual fix failures are
// recorded here, never raised; only systemic failures surface as engine errors.
type BatchReport struct {
	BatchID    string              `json:"batch_id"`
	FixSetID   string              `json:"fix_set_id"`
	Policy     BatchPolicy         `json:"policy"`
	DryRun     bool                `json:"dry_run"`
	StartedAt  time.Time           `json:"started_at"`
	Duration   time.Duration       `json:"duration"`
	Outcomes   []FixOutcome        `json:"outcomes"`
	Records    []ApplicationRecord `json:"records"`
	RolledBack bool                `json:"rolled_back"`
}

// CountByStatus tallies fix outcomes per terminal status.
func (r *BatchReport) CountByStatus() map[FixStatus]int {
	counts := make(map[FixStatus]int, 4)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// OutcomeFor returns the outcome recorded for a fix id, if any.
func (r *BatchReport) OutcomeFor(fixID string) (FixOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.FixID == fixID {
			return o, true
		}
	}
	return FixOutcome{}, false
}
