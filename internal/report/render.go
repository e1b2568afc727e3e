package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/sevigo/patch-warden/internal/core"
)

var (
	headerColor   = color.New(color.Bold)
	appliedColor  = color.New(color.FgGreen)
	rejectedColor = color.New(color.FgRed)
	pendingColor  = color.New(color.FgYellow)
	mutedColor    = color.New(color.Faint)
)

// Render writes a human-readable summary of the batch report.
func Render(w io.Writer, r *core.BatchReport) {
	headerColor.Fprintf(w, "Batch %s", r.BatchID)
	if r.DryRun {
		pendingColor.Fprint(w, " (dry run)")
	}
	fmt.Fprintf(w, "  policy=%s  duration=%s\n", r.Policy, r.Duration.Round(time.Millisecond))

	counts := r.CountByStatus()
	appliedColor.Fprintf(w, "  applied:        %d\n", counts[core.StatusApplied])
	pendingColor.Fprintf(w, "  needs approval: %d\n", counts[core.StatusNeedsApproval])
	rejectedColor.Fprintf(w, "  rejected:       %d\n", counts[core.StatusRejected])
	rejectedColor.Fprintf(w, "  conflicted:     %d\n", counts[core.StatusConflicted])

	if r.RolledBack {
		rejectedColor.Fprintln(w, "  BATCH ROLLED BACK")
	}

	for _, o := range r.Outcomes {
		switch o.Status {
		case core.StatusApplied:
			appliedColor.Fprintf(w, "  ✓ %s %s\n", o.Path, o.FixID)
		case core.StatusNeedsApproval:
			pendingColor.Fprintf(w, "  ? %s %s (confidence below threshold)\n", o.Path, o.FixID)
		case core.StatusConflicted:
			rejectedColor.Fprintf(w, "  ✗ %s %s conflict: %s\n", o.Path, o.FixID, o.Detail)
		case core.StatusRejected:
			rejectedColor.Fprintf(w, "  ✗ %s %s %s: %s\n", o.Path, o.FixID, o.Rejection, o.Detail)
		}
	}

	if len(r.Records) > 0 {
		fmt.Fprintln(w, "files:")
		for _, rec := range r.Records {
			fmt.Fprintf(w, "  %s  %s  (%d fixes, backup %s)\n",
				rec.Status, rec.Path, len(rec.AppliedFixIDs), rec.BackupPath)
		}
		mutedColor.Fprintln(w, "backups are kept until you run purge")
	}
}
