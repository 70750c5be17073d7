package config

import "strings"

// CollectionFilter decides which collection names may be written.
// Exclusion always wins; an empty include set means no restriction; a
// non-empty include set admits only the listed names.
type CollectionFilter struct {
	include map[string]struct{}
	exclude map[string]struct{}
}

// ParseFilter builds a CollectionFilter from comma-separated include and
// exclude lists. Names are trimmed; empty segments are dropped.
func ParseFilter(include, exclude string) CollectionFilter {
	return NewFilter(splitList(include), splitList(exclude))
}

// NewFilter builds a CollectionFilter from explicit name lists.
func NewFilter(include, exclude []string) CollectionFilter {
	f := CollectionFilter{}
	if len(include) > 0 {
		f.include = make(map[string]struct{}, len(include))
		for _, name := range include {
			f.include[name] = struct{}{}
		}
	}
	if len(exclude) > 0 {
		f.exclude = make(map[string]struct{}, len(exclude))
		for _, name := range exclude {
			f.exclude[name] = struct{}{}
		}
	}
	return f
}

// Filter builds the CollectionFilter configured by this section.
func (fc *FilterConfig) Filter() CollectionFilter {
	return ParseFilter(fc.IncludeCollections, fc.ExcludeCollections)
}

// Allows reports whether a collection name passes the filter.
func (f CollectionFilter) Allows(name string) bool {
	if _, excluded := f.exclude[name]; excluded {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	_, included := f.include[name]
	return included
}

// Empty reports whether the filter imposes no restrictions.
func (f CollectionFilter) Empty() bool {
	return len(f.include) == 0 && len(f.exclude) == 0
}

// IncludeCount returns the number of explicitly included names.
func (f CollectionFilter) IncludeCount() int {
	return len(f.include)
}

// ExcludeCount returns the number of explicitly excluded names.
func (f CollectionFilter) ExcludeCount() int {
	return len(f.exclude)
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty segments.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
