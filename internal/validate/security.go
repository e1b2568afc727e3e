package validate

import "fmt"

// securityCheck scans the post-edit text for denylisted constructs that were
// absent (or rarer) before the edit. Pre-existing occurrences are not the
// fix's fault; only newly introduced ones fail.
func (r *Rules) securityCheck(preEdit, postEdit []byte) error {
	pre := string(preEdit)
	post := string(postEdit)
	for _, rule := range r.denylist {
		before := len(rule.pattern.FindAllStringIndex(pre, -1))
		after := len(rule.pattern.FindAllStringIndex(post, -1))
		if after > before {
			return fmt.Errorf("rule %s: edit introduces %d new occurrence(s)", rule.name, after-before)
		}
	}
	return nil
}
