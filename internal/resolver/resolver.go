// Package resolver partitions a fix set into per-file groups of
// non-overlapping edits and rejects the fixes that cannot coexist.
package resolver

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/sevigo/patch-warden/internal/core"
)

// Resolution is the outcome of conflict resolution for one fix set: the
// surviving per-file groups, ordered for application, plus one conflicted
// outcome per rejected fix. Staleness is not decided here; the applier checks
// live file content just before staging.
type Resolution struct {
	Groups    []core.FixGroup
	Conflicts []core.FixOutcome
}

// Resolver detects overlapping edits within a file and orders the survivors
// so that application never invalidates a pending offset.
type Resolver struct {
	logger *slog.Logger
}

// New returns a Resolver.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve groups fixes by file, walks each file's fixes in ascending span
// order, and rejects the loser of every overlapping pair: lower confidence
// loses, and on a tie the lexicographically later issue id loses, so the
// outcome is reproducible for any input order.
func (r *Resolver) Resolve(set core.FixSet) Resolution {
	byFile := make(map[string][]core.Fix)
	for _, fix := range set.Fixes {
		byFile[fix.Location.Path] = append(byFile[fix.Location.Path], fix)
	}

	paths := make([]string, 0, len(byFile))
	for path := range byFile {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var res Resolution
	for _, path := range paths {
		accepted, rejected := r.resolveFile(path, byFile[path])
		if len(accepted) > 0 {
			// Descending start order for the application phase: earlier
			// replacements must not shift offsets of edits still pending.
			sort.SliceStable(accepted, func(i, j int) bool {
				return accepted[i].Location.Span.Start > accepted[j].Location.Span.Start
			})
			res.Groups = append(res.Groups, core.FixGroup{Path: path, Fixes: accepted})
		}
		res.Conflicts = append(res.Conflicts, rejected...)
	}
	return res
}

func (r *Resolver) resolveFile(path string, fixes []core.Fix) ([]core.Fix, []core.FixOutcome) {
	sort.SliceStable(fixes, func(i, j int) bool {
		si, sj := fixes[i].Location.Span, fixes[j].Location.Span
		if si.Start == sj.Start {
			return si.End < sj.End
		}
		return si.Start < sj.Start
	})

	var accepted []core.Fix
	var rejected []core.FixOutcome

	for _, fix := range fixes {
		if len(accepted) == 0 {
			accepted = append(accepted, fix)
			continue
		}
		prev := accepted[len(accepted)-1]
		if fix.Location.Span.Start >= prev.Location.Span.End {
			accepted = append(accepted, fix)
			continue
		}

		winner, loser := pickWinner(prev, fix)
		r.logger.Debug("overlapping fixes",
			"path", path,
			"winner", winner.ID,
			"loser", loser.ID,
		)
		accepted[len(accepted)-1] = winner
		rejected = append(rejected, conflictOutcome(loser, winner))
	}
	return accepted, rejected
}

// pickWinner decides which of two overlapping fixes survives. Confidence wins;
// a tie goes to the fix with the lexicographically earlier issue id.
func pickWinner(a, b core.Fix) (winner, loser core.Fix) {
	if a.Confidence != b.Confidence {
		if a.Confidence > b.Confidence {
			return a, b
		}
		return b, a
	}
	if a.IssueID <= b.IssueID {
		return a, b
	}
	return b, a
}

func conflictOutcome(loser, winner core.Fix) core.FixOutcome {
	return core.FixOutcome{
		FixID:     loser.ID,
		IssueID:   loser.IssueID,
		Path:      loser.Location.Path,
		Status:    core.StatusConflicted,
		Rejection: core.RejectConflict,
		Detail: fmt.Sprintf("span [%d,%d) overlaps fix %s at [%d,%d)",
			loser.Location.Span.Start, loser.Location.Span.End,
			winner.ID,
			winner.Location.Span.Start, winner.Location.Span.End),
	}
}
