package querycache

import "regexp"

// Match selects entries by decoded key components. Empty fields match
// anything.
type Match struct {
	Resource  string
	Operation string
	Method    string
}

// Filter selects cache entries for invalidation. The first non-zero field in
// the order below decides the strategy; a zero Filter (or a nil *Filter)
// matches every entry.
type Filter struct {
	// Key matches exactly one encoded key.
	Key string
	// Pattern matches encoded keys against a regular expression.
	Pattern *regexp.Regexp
	// Predicate matches encoded keys by arbitrary code.
	Predicate func(key string) bool
	// Match compares decoded key components.
	Match *Match
}

// MatchKey builds a filter for one exact key.
func MatchKey(key string) *Filter { return &Filter{Key: key} }

// MatchResource builds a filter for every entry of one resource.
func MatchResource(resource string) *Filter {
	return &Filter{Match: &Match{Resource: resource}}
}

func (f *Filter) matches(key string) bool {
	if f == nil {
		return true
	}
	switch {
	case f.Key != "":
		return f.Key == key
	case f.Pattern != nil:
		return f.Pattern.MatchString(key)
	case f.Predicate != nil:
		return f.Predicate(key)
	case f.Match != nil:
		parts, err := DecodeKey(key)
		if err != nil {
			return false
		}
		m := f.Match
		if m.Resource != "" && m.Resource != parts.Resource {
			return false
		}
		if m.Operation != "" && m.Operation != parts.Operation {
			return false
		}
		if m.Method != "" && m.Method != parts.Method {
			return false
		}
		return true
	default:
		return true
	}
}
