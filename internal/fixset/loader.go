// Package fixset loads proposed fix batches from disk. The suggestion source
// is untrusted: every field is checked here before the engine sees it, and
// every fix is validated again downstream regardless of claimed confidence.
package fixset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sevigo/patch-warden/internal/core"
)

var (
	// ErrEmptySet is returned when the input contains no fixes at all.
	ErrEmptySet = errors.New("fix set contains no fixes")
)

// Load reads a FixSet from a JSON file and validates it. Missing fix ids are
// synthesized deterministically from the issue id and span; a missing set id
// gets a fresh uuid.
func Load(path string) (*core.FixSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fix set: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a FixSet from raw JSON.
func Parse(data []byte) (*core.FixSet, error) {
	var set core.FixSet
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode fix set: %w", err)
	}

	if len(set.Fixes) == 0 {
		return nil, ErrEmptySet
	}
	if set.ID == "" {
		set.ID = uuid.NewString()
	}

	for i := range set.Fixes {
		fix := &set.Fixes[i]
		if fix.ID == "" {
			fix.ID = fmt.Sprintf("%s-%d-%d", fix.IssueID, fix.Location.Span.Start, fix.Location.Span.End)
		}
		if err := validateFix(i, fix); err != nil {
			return nil, err
		}
	}

	if err := checkDuplicateIDs(set.Fixes); err != nil {
		return nil, err
	}
	return &set, nil
}

func validateFix(idx int, fix *core.Fix) error {
	if fix.Location.Path == "" {
		return fmt.Errorf("fix %d (%s): missing target path", idx, fix.ID)
	}
	if filepath.IsAbs(fix.Location.Path) {
		return fmt.Errorf("fix %d (%s): target path must be relative to the project root", idx, fix.ID)
	}
	clean := filepath.ToSlash(filepath.Clean(fix.Location.Path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("fix %d (%s): target path escapes the project root", idx, fix.ID)
	}
	if !fix.Location.Span.Valid() {
		return fmt.Errorf("fix %d (%s): invalid span [%d,%d)", idx, fix.ID,
			fix.Location.Span.Start, fix.Location.Span.End)
	}
	if fix.Confidence < 0 || fix.Confidence > 1 {
		return fmt.Errorf("fix %d (%s): confidence %v outside [0,1]", idx, fix.ID, fix.Confidence)
	}
	if fix.Location.Span.Len() != len(fix.OriginalText) {
		return fmt.Errorf("fix %d (%s): span covers %d bytes but original_text has %d",
			idx, fix.ID, fix.Location.Span.Len(), len(fix.OriginalText))
	}
	return nil
}

func checkDuplicateIDs(fixes []core.Fix) error {
	seen := make(map[string]struct{}, len(fixes))
	for _, f := range fixes {
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("duplicate fix id %q", f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}
