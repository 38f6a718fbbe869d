// Package object implements the generational id lookup table used for
// physics bodies, forces and simulation slots.
//
// Ids are neither pointers nor direct array positions. The index part of an
// id selects an entry in a fixed reference table, and that entry holds the
// position of the object in a dense, gap-free array. Objects can therefore
// be moved during compaction without invalidating the ids held elsewhere.
//
// A Table is not safe for concurrent use. Confine each table to the one
// goroutine (or job) that owns it during a tick.
package object

// ID identifies an object in a Table. The low IndexBits select the
// reference slot, the remaining bits form a generation that changes each
// time the slot is reused.
type ID uint32

// Index is the index part of an ID.
type Index uint16

const (
	// IndexBits is the number of ID bits used for the reference index.
	IndexBits = 12

	// ReferenceCount is the size of the reference table.
	ReferenceCount = 1 << IndexBits

	// MaxObjects is the number of objects a table can hold at once.
	// One reference always stays on the free list.
	MaxObjects = ReferenceCount - 1

	// IndexMask strips the generation part of an ID.
	IndexMask ID = ReferenceCount - 1

	// GenerationStep is added to a slot's ID whenever the slot is reused.
	GenerationStep ID = IndexMask + 1

	// InvalidIndex marks a reference that points to no dense entry.
	InvalidIndex Index = 1<<16 - 1
)

// Index returns the reference index encoded in id.
func (id ID) Index() Index {
	return Index(id & IndexMask)
}

// Generation returns the generation part of id (id minus its index).
func (id ID) Generation() ID {
	return id &^ IndexMask
}
