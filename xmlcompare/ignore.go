package xmlcompare

import (
	"encoding/xml"
	"sort"
)

// DefaultIgnoredNames are the elements and attributes of ETF result documents that change
// from one run to the next or depend on the installation.
var DefaultIgnoredNames = []string{
	"ExecutableTestSuite",
	"startTimestamp",
	"testTaskResult",
	"version",
	"author",
	"creationDate",
	"lastEditor",
	"lastUpdateDate",
	"resource",
	"logPath",
	"id",
	"ref",
}

// IgnoreSet is an immutable set of local names. Elements and attributes with one of these
// names are removed from both documents before they are compared, wherever they occur.
type IgnoreSet struct {
	names map[string]struct{}
}

func NewIgnoreSet(names ...string) IgnoreSet {
	s := IgnoreSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s
}

func DefaultIgnoreSet() IgnoreSet {
	return NewIgnoreSet(DefaultIgnoredNames...)
}

// Excludes is the node filter predicate: it returns true for nodes that do not take part in
// the comparison.
func (s IgnoreSet) Excludes(name xml.Name) bool {
	_, found := s.names[name.Local]
	return found
}

func (s IgnoreSet) Contains(name string) bool {
	_, found := s.names[name]
	return found
}

// Names returns the members in sorted order.
func (s IgnoreSet) Names() []string {
	ret := make([]string, 0, len(s.names))
	for n := range s.names {
		ret = append(ret, n)
	}
	sort.Strings(ret)
	return ret
}

// With returns a new set that also contains the given names.
func (s IgnoreSet) With(names ...string) IgnoreSet {
	return NewIgnoreSet(append(s.Names(), names...)...)
}
