package validate

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// maxSyntaxErrors bounds the error walk on heavily malformed input.
const maxSyntaxErrors = 50

// syntaxError is one ERROR or MISSING node found by tree-sitter.
type syntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e syntaxError) String() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Column, e.Message)
}

// parseErrors parses content with the grammar for lang and returns every
// syntax error tree-sitter reports.
func parseErrors(ctx context.Context, lang Language, content []byte) ([]syntaxError, error) {
	g := grammar(lang)
	if g == nil {
		return nil, fmt.Errorf("unsupported language %q", lang)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(g)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing failed: %w", err)
	}
	defer tree.Close()

	var errs []syntaxError
	collectErrors(tree.RootNode(), content, &errs, 0)
	return errs, nil
}

func collectErrors(node *sitter.Node, content []byte, errs *[]syntaxError, depth int) {
	// Guard against pathological nesting.
	if depth > 1000 || len(*errs) >= maxSyntaxErrors {
		return
	}

	if node.IsError() || node.IsMissing() {
		point := node.StartPoint()
		msg := "syntax error"
		if node.IsMissing() {
			msg = fmt.Sprintf("missing %s", node.Type())
		} else if ctxStr := errorContext(node, content); ctxStr != "" {
			msg = fmt.Sprintf("unexpected %q", ctxStr)
		}
		*errs = append(*errs, syntaxError{
			Line:    int(point.Row) + 1,
			Column:  int(point.Column),
			Message: msg,
		})
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectErrors(node.Child(i), content, errs, depth+1)
	}
}

func errorContext(node *sitter.Node, content []byte) string {
	start, end := node.StartByte(), node.EndByte()
	if end > uint32(len(content)) {
		end = uint32(len(content))
	}
	if end <= start || end-start > 40 {
		return ""
	}
	return string(content[start:end])
}
