package machine

import (
	"github.com/dolthub/swiss"

	"github.com/loomtale/dnxvm/value"
)

// store is a name-keyed, VM-lifetime persistent value store backing
// globals and flags (spec.md §3). It wraps swiss.Map the way
// lang/machine/map.go wraps it for script-level maps, keyed here by the
// plain string names flags and globals use rather than by Value.
type store struct {
	m *swiss.Map[string, value.Value]
}

func newStore() *store {
	return &store{m: swiss.NewMap[string, value.Value](8)}
}

func (s *store) get(name string) value.Value {
	v, ok := s.m.Get(name)
	if !ok {
		return value.Undef
	}
	return v
}

func (s *store) has(name string) bool {
	_, ok := s.m.Get(name)
	return ok
}

func (s *store) set(name string, v value.Value) {
	s.m.Put(name, v)
}

// setIfAbsent implements flag first-write-wins semantics (spec.md §4.3):
// it stores v only if name is not already present, returning whether it
// did.
func (s *store) setIfAbsent(name string, v value.Value) bool {
	if s.has(name) {
		return false
	}
	s.m.Put(name, v)
	return true
}
