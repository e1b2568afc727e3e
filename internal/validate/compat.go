package validate

import (
	"fmt"
	"regexp"
)

// IsCompatible is the pure predicate the compatibility validator is built on:
// every reserved-signature match present in the pre-edit text must survive in
// the post-edit text. It returns the first violated rule and match, if any.
func (r *Rules) IsCompatible(preEdit, postEdit []byte) (bool, string) {
	post := string(postEdit)
	for _, rule := range r.reserved {
		for _, match := range rule.pattern.FindAllString(string(preEdit), -1) {
			if !containsMatch(post, rule.pattern, match) {
				return false, fmt.Sprintf("rule %s: signature %q removed", rule.name, match)
			}
		}
	}
	return true, ""
}

func containsMatch(content string, pattern *regexp.Regexp, want string) bool {
	for _, m := range pattern.FindAllString(content, -1) {
		if m == want {
			return true
		}
	}
	return false
}
