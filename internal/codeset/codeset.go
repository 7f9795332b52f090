// Package codeset loads reserved voucher codes that must never be issued,
// for example codes already printed by a previous campaign.
package codeset

import "context"

// CodeSet is a read-only set of codes.
type CodeSet interface {
	// Contains checks if a code exists in the set.
	Contains(code string) bool

	// Size returns the number of codes in the set.
	Size() int
}

// Loader loads a gzipped code file, one code per line.
type Loader interface {
	Load(ctx context.Context, path string) (CodeSet, error)
}

// mapSet implements CodeSet with a map.
type mapSet struct {
	codes map[string]struct{}
}

// New creates a CodeSet holding the given codes.
func New(codes ...string) CodeSet {
	s := newMapSet(len(codes))
	for _, c := range codes {
		s.add(c)
	}
	return s
}

// Empty returns a set that contains nothing.
func Empty() CodeSet { return newMapSet(0) }

func newMapSet(capacity int) *mapSet {
	return &mapSet{codes: make(map[string]struct{}, capacity)}
}

func (s *mapSet) Contains(code string) bool {
	_, ok := s.codes[code]
	return ok
}

func (s *mapSet) Size() int { return len(s.codes) }

func (s *mapSet) add(code string) { s.codes[code] = struct{}{} }

// unionSet reports a code as present if any member set has it.
type unionSet []CodeSet

// Union combines sets without copying them.
func Union(sets ...CodeSet) CodeSet {
	return unionSet(sets)
}

func (u unionSet) Contains(code string) bool {
	for _, s := range u {
		if s.Contains(code) {
			return true
		}
	}
	return false
}

// Size returns the summed size of the member sets; codes present in more
// than one file are counted once per file.
func (u unionSet) Size() int {
	n := 0
	for _, s := range u {
		n += s.Size()
	}
	return n
}
