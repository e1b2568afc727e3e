// Package gate decides which validated fixes are eligible for unattended
// application. It is a pure policy layer: no side effects, deterministic for
// a given threshold.
package gate

import "github.com/sevigo/patch-warden/internal/core"

// Partition splits validator-passing fixes into those confident enough to
// apply automatically and those that need approval. Order is preserved, so
// callers keep the applier's descending-offset ordering for free.
func Partition(fixes []core.Fix, threshold float64) (autoApply, needsApproval []core.Fix) {
	for _, fix := range fixes {
		if fix.Confidence >= threshold {
			autoApply = append(autoApply, fix)
		} else {
			needsApproval = append(needsApproval, fix)
		}
	}
	return autoApply, needsApproval
}
