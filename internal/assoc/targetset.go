package assoc

import (
	"fmt"
	"sort"
)

// utnCounter hands out dense UTNs starting at 0
type utnCounter struct {
	next uint32
}

func (c *utnCounter) allocate() uint32 {
	utn := c.next
	c.next++
	return utn
}

// TargetSet holds targets keyed by UTN and iterates them in ascending UTN order
type TargetSet struct {
	targets map[uint32]*Target
	utns    []uint32
}

// NewTargetSet creates an empty set
func NewTargetSet() *TargetSet {
	return &TargetSet{targets: make(map[uint32]*Target)}
}

// Len returns the number of targets
func (s *TargetSet) Len() int {
	return len(s.utns)
}

// Get returns the target with the given UTN
func (s *TargetSet) Get(utn uint32) (*Target, bool) {
	t, ok := s.targets[utn]
	return t, ok
}

// Lookup returns the target with the given UTN or an ErrUnknownUTN error
func (s *TargetSet) Lookup(utn uint32) (*Target, error) {
	t, ok := s.targets[utn]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownUTN, utn)
	}
	return t, nil
}

// Insert adds a target, replacing one with the same UTN
func (s *TargetSet) Insert(t *Target) {
	if _, exists := s.targets[t.UTN]; !exists {
		i := sort.Search(len(s.utns), func(i int) bool { return s.utns[i] >= t.UTN })
		s.utns = append(s.utns, 0)
		copy(s.utns[i+1:], s.utns[i:])
		s.utns[i] = t.UTN
	}
	s.targets[t.UTN] = t
}

// Remove deletes the target with the given UTN
func (s *TargetSet) Remove(utn uint32) {
	if _, exists := s.targets[utn]; !exists {
		return
	}
	delete(s.targets, utn)
	i := sort.Search(len(s.utns), func(i int) bool { return s.utns[i] >= utn })
	s.utns = append(s.utns[:i], s.utns[i+1:]...)
}

// UTNs returns the UTNs in ascending order
func (s *TargetSet) UTNs() []uint32 {
	out := make([]uint32, len(s.utns))
	copy(out, s.utns)
	return out
}

// Targets returns the targets in ascending UTN order
func (s *TargetSet) Targets() []*Target {
	out := make([]*Target, len(s.utns))
	for i, utn := range s.utns {
		out[i] = s.targets[utn]
	}
	return out
}
