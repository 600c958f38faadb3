package resource

import (
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Set is an immutable set of resource handles backed by a bit-set.
//
// The zero value is the empty set. Operations never mutate the receiver, so a Set
// can be shared between a composite and its children without copying.
type Set struct {
	bits *bitset.BitSet
}

// NewSet returns a set containing ids. Negative ids are ignored.
func NewSet(ids ...ID) Set {
	if len(ids) == 0 {
		return Set{}
	}
	b := bitset.New(0)
	for _, id := range ids {
		if id < 0 {
			continue
		}
		b.Set(uint(id))
	}
	if b.None() {
		return Set{}
	}
	return Set{bits: b}
}

// Has reports whether id is a member.
func (s Set) Has(id ID) bool {
	if s.bits == nil || id < 0 {
		return false
	}
	return s.bits.Test(uint(id))
}

// Len returns the number of members.
func (s Set) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

// Empty reports whether the set has no members.
func (s Set) Empty() bool { return s.Len() == 0 }

// Union returns a new set with the members of both sets.
func (s Set) Union(o Set) Set {
	switch {
	case s.bits == nil && o.bits == nil:
		return Set{}
	case s.bits == nil:
		return Set{bits: o.bits.Clone()}
	case o.bits == nil:
		return Set{bits: s.bits.Clone()}
	}
	return Set{bits: s.bits.Union(o.bits)}
}

// With returns a new set that also contains ids.
func (s Set) With(ids ...ID) Set {
	return s.Union(NewSet(ids...))
}

// Intersects reports whether the sets share at least one member.
func (s Set) Intersects(o Set) bool {
	if s.bits == nil || o.bits == nil {
		return false
	}
	return s.bits.IntersectionCardinality(o.bits) > 0
}

// Equal reports whether both sets have the same members.
func (s Set) Equal(o Set) bool {
	if s.Empty() || o.Empty() {
		return s.Empty() == o.Empty()
	}
	return s.bits.SymmetricDifferenceCardinality(o.bits) == 0
}

// IDs returns the members in ascending order.
func (s Set) IDs() []ID {
	if s.bits == nil {
		return nil
	}
	out := make([]ID, 0, s.bits.Count())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		out = append(out, ID(i))
	}
	return out
}

func (s Set) String() string {
	ids := s.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
