// Package validate runs candidate fixes through a fixed sequence of checks
// against a hypothetically patched file: syntax, semantic-structural,
// framework compatibility, and security. The set of checks is closed and
// order-sensitive; cheaper checks run first and a failure short-circuits the
// rest.
package validate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/patch-warden/internal/core"
)

const (
	reasonPriorFailure = "prior failure"
	reasonDisabled     = "disabled by configuration"
	reasonUnsupported  = "unsupported language"
)

// Toggles switches individual validators on or off. Syntax and semantic
// checks always run.
type Toggles struct {
	Compatibility bool
	Security      bool
}

// Pipeline validates one candidate fix at a time against the post-edit
// content of its file.
type Pipeline struct {
	rules   *Rules
	toggles Toggles
	logger  *slog.Logger
}

// NewPipeline builds a pipeline with the given rules. A nil rules set falls
// back to the built-in defaults.
func NewPipeline(rules *Rules, toggles Toggles, logger *slog.Logger) (*Pipeline, error) {
	if rules == nil {
		var err error
		rules, err = DefaultRules()
		if err != nil {
			return nil, fmt.Errorf("failed to compile default rules: %w", err)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{rules: rules, toggles: toggles, logger: logger}, nil
}

// Run validates candidate against the file at path whose current content is
// original. accepted holds the already-validated fixes of the same group, in
// descending span order; the candidate is judged on the file as it will look
// with all of them applied. The returned outcomes always cover all four
// validators, in pipeline order.
func (p *Pipeline) Run(ctx context.Context, path string, original []byte, accepted []core.Fix, candidate core.Fix) []core.ValidationOutcome {
	outcomes := make([]core.ValidationOutcome, 0, 4)

	edits := mergeCandidate(accepted, candidate)
	patched, err := core.Splice(original, edits)
	if err != nil {
		// A span outside file bounds fails syntax validation outright; the
		// file on disk is shorter than the suggestion assumed.
		outcomes = append(outcomes, core.ValidationOutcome{
			Validator: core.ValidatorSyntax,
			Status:    core.OutcomeFail,
			Reason:    err.Error(),
		})
		return p.skipRemaining(outcomes, reasonPriorFailure)
	}

	lang := DetectLanguage(path)

	// 1. Syntax: the patched file must not parse worse than the original.
	outcomes = append(outcomes, p.runSyntax(ctx, lang, original, patched))
	if outcomes[len(outcomes)-1].Status == core.OutcomeFail {
		return p.skipRemaining(outcomes, reasonPriorFailure)
	}

	// 2. Semantic-structural, advisory strength.
	outcomes = append(outcomes, p.runSemantic(lang, original, patched, candidate))
	if outcomes[len(outcomes)-1].Status == core.OutcomeFail {
		return p.skipRemaining(outcomes, reasonPriorFailure)
	}

	// 3. Framework compatibility (pluggable).
	outcomes = append(outcomes, p.runCompatibility(original, patched))
	if outcomes[len(outcomes)-1].Status == core.OutcomeFail {
		return p.skipRemaining(outcomes, reasonPriorFailure)
	}

	// 4. Security, most expensive, last.
	outcomes = append(outcomes, p.runSecurity(original, patched))
	return outcomes
}

// Aggregate reduces per-validator outcomes to the fix's terminal status: pass
// only if every configured validator passed or was skipped by configuration.
func Aggregate(outcomes []core.ValidationOutcome) (core.RejectionKind, string, bool) {
	for _, o := range outcomes {
		if o.Status != core.OutcomeFail {
			continue
		}
		switch o.Validator {
		case core.ValidatorSyntax:
			return core.RejectSyntaxBroken, o.Reason, false
		case core.ValidatorSemantic:
			return core.RejectSemanticRisk, o.Reason, false
		case core.ValidatorCompatibility:
			return core.RejectCompatBroken, o.Reason, false
		case core.ValidatorSecurity:
			return core.RejectSecurityRegression, o.Reason, false
		}
	}
	return "", "", true
}

func (p *Pipeline) runSyntax(ctx context.Context, lang Language, original, patched []byte) core.ValidationOutcome {
	if lang == LangUnknown {
		return core.ValidationOutcome{
			Validator: core.ValidatorSyntax,
			Status:    core.OutcomeSkipped,
			Reason:    reasonUnsupported,
		}
	}

	patchedErrs, err := parseErrors(ctx, lang, patched)
	if err != nil {
		return core.ValidationOutcome{
			Validator: core.ValidatorSyntax,
			Status:    core.OutcomeFail,
			Reason:    err.Error(),
		}
	}
	if len(patchedErrs) == 0 {
		return core.ValidationOutcome{Validator: core.ValidatorSyntax, Status: core.OutcomePass}
	}

	// Pre-existing damage is not the fix's fault; only new errors fail.
	originalErrs, err := parseErrors(ctx, lang, original)
	if err == nil && len(patchedErrs) <= len(originalErrs) {
		return core.ValidationOutcome{Validator: core.ValidatorSyntax, Status: core.OutcomePass}
	}

	return core.ValidationOutcome{
		Validator: core.ValidatorSyntax,
		Status:    core.OutcomeFail,
		Reason:    fmt.Sprintf("edit introduces syntax errors: %s", patchedErrs[0]),
	}
}

func (p *Pipeline) runSemantic(lang Language, original, patched []byte, candidate core.Fix) core.ValidationOutcome {
	if err := semanticCheck(lang, original, patched, candidate.ReplacementText); err != nil {
		return core.ValidationOutcome{
			Validator: core.ValidatorSemantic,
			Status:    core.OutcomeFail,
			Reason:    err.Error(),
		}
	}
	return core.ValidationOutcome{Validator: core.ValidatorSemantic, Status: core.OutcomePass}
}

func (p *Pipeline) runCompatibility(original, patched []byte) core.ValidationOutcome {
	if !p.toggles.Compatibility {
		return core.ValidationOutcome{
			Validator: core.ValidatorCompatibility,
			Status:    core.OutcomeSkipped,
			Reason:    reasonDisabled,
		}
	}
	if ok, detail := p.rules.IsCompatible(original, patched); !ok {
		return core.ValidationOutcome{
			Validator: core.ValidatorCompatibility,
			Status:    core.OutcomeFail,
			Reason:    detail,
		}
	}
	return core.ValidationOutcome{Validator: core.ValidatorCompatibility, Status: core.OutcomePass}
}

func (p *Pipeline) runSecurity(original, patched []byte) core.ValidationOutcome {
	if !p.toggles.Security {
		return core.ValidationOutcome{
			Validator: core.ValidatorSecurity,
			Status:    core.OutcomeSkipped,
			Reason:    reasonDisabled,
		}
	}
	if err := p.rules.securityCheck(original, patched); err != nil {
		return core.ValidationOutcome{
			Validator: core.ValidatorSecurity,
			Status:    core.OutcomeFail,
			Reason:    err.Error(),
		}
	}
	return core.ValidationOutcome{Validator: core.ValidatorSecurity, Status: core.OutcomePass}
}

// skipRemaining pads the outcome list so every validator reports, marking the
// ones after a failure as skipped.
func (p *Pipeline) skipRemaining(outcomes []core.ValidationOutcome, reason string) []core.ValidationOutcome {
	order := []core.ValidatorKind{
		core.ValidatorSyntax,
		core.ValidatorSemantic,
		core.ValidatorCompatibility,
		core.ValidatorSecurity,
	}
	for _, kind := range order[len(outcomes):] {
		outcomes = append(outcomes, core.ValidationOutcome{
			Validator: kind,
			Status:    core.OutcomeSkipped,
			Reason:    reason,
		})
	}
	return outcomes
}

// mergeCandidate inserts candidate into the descending-ordered accepted list.
func mergeCandidate(accepted []core.Fix, candidate core.Fix) []core.Fix {
	merged := make([]core.Fix, 0, len(accepted)+1)
	inserted := false
	for _, f := range accepted {
		if !inserted && candidate.Location.Span.Start > f.Location.Span.Start {
			merged = append(merged, candidate)
			inserted = true
		}
		merged = append(merged, f)
	}
	if !inserted {
		merged = append(merged, candidate)
	}
	return merged
}
