package core

import (
	"errors"
	"fmt"
	"strings"
)

// RejectionKind names the reason a fix was not applied. Stale and conflict are
// distinct failure kinds and are always reported separately.
type RejectionKind string

const (
	RejectStale              RejectionKind = "stale"
	RejectConflict           RejectionKind = "conflict"
	RejectSyntaxBroken       RejectionKind = "syntax_broken"
	RejectSemanticRisk       RejectionKind = "semantic_risk"
	RejectCompatBroken       RejectionKind = "compatibility_broken"
	RejectSecurityRegression RejectionKind = "security_regression"
	RejectIoFailure          RejectionKind = "io_failure"
)

var (
	// ErrFilesBusy is returned when a batch targets files already claimed by
	// an in-flight batch. The engine refuses to interleave edits.
	ErrFilesBusy = errors.New("target files overlap an in-flight batch")

	// ErrBatchTimeout marks a batch that hit its deadline before every file
	// committed.
	ErrBatchTimeout = errors.New("batch deadline exceeded")
)

// RestoreFailure identifies one file that could not be restored from its
// backup during rollback.
type RestoreFailure struct {
	Path       string
	BackupPath string
	Err        error
}

// RollbackError is the only fatal engine error: the tree may be in a mixed
// state. It enumerates exactly which files could not be restored and must
// never be swallowed; automated action stops and an operator takes over.
type RollbackError struct {
	BatchID  string
	Failures []RestoreFailure
}

func (e *RollbackError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rollback failed for batch %s, tree may be inconsistent:", e.BatchID)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s (backup %s): %v", f.Path, f.BackupPath, f.Err)
	}
	return b.String()
}
