package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// semanticCheck runs best-effort structural checks on the post-edit file.
// These are advisory strength: they catch edits that visibly break structure
// without attempting full type inference.
func semanticCheck(lang Language, original, patched []byte, replacement string) error {
	if err := checkDelimiterBalance(original, patched); err != nil {
		return err
	}
	if err := checkDeclarationsPreserved(lang, original, patched); err != nil {
		return err
	}
	if err := checkDirectivesPreserved(lang, original, patched); err != nil {
		return err
	}
	if lang == LangGo {
		if err := checkImportsPresent(original, patched, replacement); err != nil {
			return err
		}
	}
	return nil
}

var delimiters = [...]struct{ open, close byte }{
	{'{', '}'},
	{'(', ')'},
	{'[', ']'},
}

// checkDelimiterBalance fails when an edit takes a balanced file out of
// balance. A file that was already unbalanced (e.g. a template fragment) is
// left alone.
func checkDelimiterBalance(original, patched []byte) error {
	for _, d := range delimiters {
		before := countByte(original, d.open) - countByte(original, d.close)
		after := countByte(patched, d.open) - countByte(patched, d.close)
		if before == 0 && after != 0 {
			return fmt.Errorf("edit unbalances %c%c by %+d", d.open, d.close, after)
		}
	}
	return nil
}

func countByte(b []byte, c byte) int {
	n := 0
	for _, x := range b {
		if x == c {
			n++
		}
	}
	return n
}

var declPatterns = map[Language][]*regexp.Regexp{
	LangGo: {
		regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s*)?(\w+)`),
		regexp.MustCompile(`(?m)^type\s+(\w+)`),
	},
	LangRust: {
		regexp.MustCompile(`(?m)^\s*(?:pub\s+)?fn\s+(\w+)`),
		regexp.MustCompile(`(?m)^\s*(?:pub\s+)?mod\s+(\w+)`),
		regexp.MustCompile(`(?m)^\s*(?:pub\s+)?struct\s+(\w+)`),
	},
	LangPython: {
		regexp.MustCompile(`(?m)^def\s+(\w+)`),
		regexp.MustCompile(`(?m)^class\s+(\w+)`),
	},
	LangJavaScript: {
		regexp.MustCompile(`(?m)^\s*(?:export\s+)?function\s+(\w+)`),
		regexp.MustCompile(`(?m)^\s*(?:export\s+)?class\s+(\w+)`),
	},
	LangTypeScript: {
		regexp.MustCompile(`(?m)^\s*(?:export\s+)?function\s+(\w+)`),
		regexp.MustCompile(`(?m)^\s*(?:export\s+)?class\s+(\w+)`),
	},
}

// checkDeclarationsPreserved fails when a top-level declaration present in the
// original file disappears from the patched one. Renames are the business of a
// dedicated refactoring, not a spot fix.
func checkDeclarationsPreserved(lang Language, original, patched []byte) error {
	patterns, ok := declPatterns[lang]
	if !ok {
		return nil
	}
	before := extractNames(patterns, original)
	after := extractNames(patterns, patched)
	for name := range before {
		if _, kept := after[name]; !kept {
			return fmt.Errorf("declaration %q was removed", name)
		}
	}
	return nil
}

func extractNames(patterns []*regexp.Regexp, content []byte) map[string]struct{} {
	names := make(map[string]struct{})
	for _, p := range patterns {
		for _, m := range p.FindAllSubmatch(content, -1) {
			names[string(m[1])] = struct{}{}
		}
	}
	return names
}

var directivePatterns = map[Language][]*regexp.Regexp{
	LangGo: {
		regexp.MustCompile(`(?m)^//go:build .*$`),
		regexp.MustCompile(`(?m)^//go:embed .*$`),
	},
	LangRust: {
		regexp.MustCompile(`#\[cfg\([^)]*\)\]`),
		regexp.MustCompile(`#!\[feature\([^)]*\)\]`),
	},
}

// checkDirectivesPreserved fails when build or embed directives change; those
// carry meaning the surrounding code cannot express.
func checkDirectivesPreserved(lang Language, original, patched []byte) error {
	patterns, ok := directivePatterns[lang]
	if !ok {
		return nil
	}
	for _, p := range patterns {
		before := p.FindAllString(string(original), -1)
		after := p.FindAllString(string(patched), -1)
		if len(before) != len(after) {
			return fmt.Errorf("build directives changed (%d before, %d after)", len(before), len(after))
		}
		for i := range before {
			if before[i] != after[i] {
				return fmt.Errorf("build directive modified: %q", before[i])
			}
		}
	}
	return nil
}

var qualifiedIdent = regexp.MustCompile(`\b([a-z][a-z0-9_]*)\.[A-Z]\w*`)

// checkImportsPresent verifies that package qualifiers introduced by the
// replacement text resolve to an import in the patched file. Heuristic only:
// it cannot see dot imports or local variables shadowing package names, so it
// errs on the side of flagging genuinely missing imports.
func checkImportsPresent(original, patched []byte, replacement string) error {
	origText := string(original)
	patchedText := string(patched)

	for _, m := range qualifiedIdent.FindAllStringSubmatch(replacement, -1) {
		qualifier := m[1]
		if strings.Contains(origText, qualifier+".") {
			// Qualifier already used before the edit; the original file is
			// the authority on whether it resolves.
			continue
		}
		if !importsPackage(patchedText, qualifier) {
			return fmt.Errorf("replacement references %s.* but %q is not imported", qualifier, qualifier)
		}
	}
	return nil
}

func importsPackage(content, name string) bool {
	// Matches both `import "x/name"` and aliased `name "x/other"` forms.
	quoted := regexp.QuoteMeta(name)
	re := regexp.MustCompile(`(?m)(?:"(?:[\w./-]+/)?` + quoted + `"|^\s*` + quoted + `\s+"[\w./-]+")`)
	return re.MatchString(content)
}
