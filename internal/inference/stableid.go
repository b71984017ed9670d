package inference

import (
	"fmt"

	"orthoinfer/pkg/domain"
)

// StableIDVersion is the version assigned to newly minted stable ids.
const StableIDVersion = 1

// StableID formats the stable identifier of a record created in the species
// with the given three letter abbreviation.
func StableID(abbreviation string, id domain.DBID) string {
	return fmt.Sprintf("R-%s-%d", abbreviation, id)
}

// IDAllocator hands out database ids above every id already in use.
type IDAllocator struct {
	next domain.DBID
}

// NewIDAllocator starts allocation above the largest of floors.
func NewIDAllocator(floors ...domain.DBID) *IDAllocator {
	var top domain.DBID
	for _, f := range floors {
		if f > top {
			top = f
		}
	}
	return &IDAllocator{next: top + 1}
}

// Next returns a fresh id.
func (a *IDAllocator) Next() domain.DBID {
	id := a.next
	a.next++
	return id
}

func (s *Session) stamp(b *domain.EntityBase) {
	b.DBID = s.ids.Next()
	b.StableID = StableID(s.target.Abbreviation, b.DBID)
	b.StableIDVersion = StableIDVersion
}

func (s *Session) stampEvent(b *domain.EventBase) {
	b.DBID = s.ids.Next()
	b.StableID = StableID(s.target.Abbreviation, b.DBID)
	b.StableIDVersion = StableIDVersion
}
