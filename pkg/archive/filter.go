package archive

import (
	"errors"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern indicates a glob pattern that cannot be compiled.
var ErrInvalidPattern = errors.New("invalid pattern")

// GroupFilter selects log groups for archival by name glob patterns.
//
// A name passes when it matches at least one include pattern (or includes is
// empty) and matches no exclude pattern. Patterns use doublestar semantics,
// so "/aws/lambda/**" covers nested log group names.
type GroupFilter struct {
	includes []string
	excludes []string
}

// NewGroupFilter compiles include/exclude patterns. Empty includes means
// every log group is eligible.
func NewGroupFilter(includes, excludes []string) (*GroupFilter, error) {
	for _, p := range append(append([]string(nil), includes...), excludes...) {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
	}
	return &GroupFilter{includes: includes, excludes: excludes}, nil
}

// Match returns true if the log group name passes the filter.
func (f *GroupFilter) Match(name string) bool {
	if f == nil {
		return true
	}
	if len(f.includes) > 0 {
		hit := false
		for _, p := range f.includes {
			if matchPattern(p, name) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, p := range f.excludes {
		if matchPattern(p, name) {
			return false
		}
	}
	return true
}

// PatternError reports an invalid glob pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// matchPattern matches a name against a doublestar pattern.
func matchPattern(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	if err != nil {
		// Patterns are validated at construction time.
		return false
	}
	return matched
}
