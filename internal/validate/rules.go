package validate

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rule is one named pattern from the rules file.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// rulesFile is the on-disk shape of a rules document.
type rulesFile struct {
	Compatibility struct {
		ReservedSignatures []Rule `yaml:"reserved_signatures"`
	} `yaml:"compatibility"`
	Security struct {
		Denylist []Rule `yaml:"denylist"`
	} `yaml:"security"`
}

// compiledRule pairs a rule with its compiled pattern.
type compiledRule struct {
	name    string
	pattern *regexp.Regexp
}

// Rules holds the compiled patterns the compatibility and security validators
// run against pre- and post-edit content.
type Rules struct {
	reserved []compiledRule
	denylist []compiledRule
}

// Reserved signatures a companion runtime depends on. An edit that makes one
// of these disappear is rejected by the compatibility validator.
var defaultReserved = []Rule{
	{Name: "cgo-export", Pattern: `(?m)^//export\s+\w+`},
	{Name: "tauri-command", Pattern: `#\[tauri::command\]\s*(?:pub\s+)?fn\s+\w+`},
	{Name: "tauri-invoke-handler", Pattern: `\.invoke_handler\(`},
	{Name: "wails-bind", Pattern: `wails:bind`},
	{Name: "go-generate", Pattern: `(?m)^//go:generate\b.*$`},
}

// Risky constructs a fix must not introduce. The security validator fails a
// fix only when the post-edit match count exceeds the pre-edit count.
var defaultDenylist = []Rule{
	{Name: "unsafe-block", Pattern: `unsafe\s*\{`},
	{Name: "unsafe-pointer", Pattern: `unsafe\.Pointer`},
	{Name: "aws-access-key", Pattern: `AKIA[0-9A-Z]{16}`},
	{Name: "private-key-block", Pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----`},
	{Name: "hardcoded-secret", Pattern: `(?i)(password|secret|api_?key)\s*[:=]\s*"[^"\s]{8,}"`},
	{Name: "go-network-call", Pattern: `\b(?:http\.(?:Get|Post|Head)|net\.Dial)\(`},
	{Name: "go-process-exec", Pattern: `\bexec\.Command(?:Context)?\(`},
	{Name: "python-process-exec", Pattern: `\b(?:os\.system|subprocess\.(?:run|call|Popen))\(`},
	{Name: "python-eval", Pattern: `\b(?:eval|exec)\(`},
	{Name: "rust-sensitive-unwrap", Pattern: `(?:verify|auth|decrypt)\w*\([^)]*\)\s*\.unwrap\(\)`},
}

// DefaultRules returns the built-in rule set.
func DefaultRules() (*Rules, error) {
	return compileRules(defaultReserved, defaultDenylist)
}

// LoadRules reads a YAML rules file. A non-empty section replaces the built-in
// rules for that section; an empty section keeps the defaults.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	reserved := defaultReserved
	if len(file.Compatibility.ReservedSignatures) > 0 {
		reserved = file.Compatibility.ReservedSignatures
	}
	denylist := defaultDenylist
	if len(file.Security.Denylist) > 0 {
		denylist = file.Security.Denylist
	}
	return compileRules(reserved, denylist)
}

func compileRules(reserved, denylist []Rule) (*Rules, error) {
	rules := &Rules{}
	for _, r := range reserved {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid reserved signature %q: %w", r.Name, err)
		}
		rules.reserved = append(rules.reserved, compiledRule{name: r.Name, pattern: re})
	}
	for _, r := range denylist {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denylist rule %q: %w", r.Name, err)
		}
		rules.denylist = append(rules.denylist, compiledRule{name: r.Name, pattern: re})
	}
	return rules, nil
}
