package driver

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// filterTimeout bounds a single pattern match.
const filterTimeout = 100 * time.Millisecond

// NameFilter builds a Skip predicate from regular expressions. A name is
// skipped when any pattern matches it. Patterns use .NET/Perl syntax, so
// lookarounds such as `^(?!my_).*_internal$` are available. A pattern that
// times out does not match.
func NameFilter(patterns ...string) (func(string) bool, error) {
	res := make([]*regexp2.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("driver: skip pattern %q: %w", p, err)
		}
		re.MatchTimeout = filterTimeout
		res = append(res, re)
	}
	return func(name string) bool {
		for _, re := range res {
			if ok, err := re.MatchString(name); err == nil && ok {
				return true
			} else if err != nil {
				log.Debugf("skip pattern %s on %s: %s", re.String(), name, err)
			}
		}
		return false
	}, nil
}

// ExactNames builds a Skip predicate for a fixed list of names, compared
// case-insensitively as the VM compares function names.
func ExactNames(names ...string) func(string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[strings.ToLower(name)]
		return ok
	}
}

// AnyOf combines predicates; nil entries are ignored.
func AnyOf(preds ...func(string) bool) func(string) bool {
	return func(name string) bool {
		for _, p := range preds {
			if p != nil && p(name) {
				return true
			}
		}
		return false
	}
}
