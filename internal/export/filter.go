package export

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects scene objects by glob pattern. Object names are matched
// whole; "**" matches any run of characters including separators.
type Filter struct {
	Include []string
	Exclude []string
}

// Validate reports the first malformed pattern.
func (f Filter) Validate() error {
	for _, p := range append(append([]string(nil), f.Include...), f.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid object pattern %q", p)
		}
	}
	return nil
}

// Match reports whether object is included and not excluded. An empty
// include list includes everything.
func (f Filter) Match(object string) bool {
	if len(f.Include) > 0 && !matchesAny(object, f.Include) {
		return false
	}
	return !matchesAny(object, f.Exclude)
}

func matchesAny(object string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, object); err == nil && ok {
			return true
		}
	}
	return false
}
