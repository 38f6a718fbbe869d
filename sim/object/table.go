package object

import (
	"fmt"
	"iter"
)

// Reference maps an ID to the position of its object in the dense array and
// links the free list.
type Reference struct {
	id         ID
	nextFree   Index
	denseIndex Index
}

// ID returns the full id currently valid for this reference slot.
func (r Reference) ID() ID { return r.id }

// DenseIndex returns the position of the referenced object in the dense
// array, or InvalidIndex.
func (r Reference) DenseIndex() Index { return r.denseIndex }

// slot stores an object together with its id, so compaction can find the
// reference of a moved object.
type slot[T any] struct {
	id     ID
	object T
}

// Table hands out stable ids for values kept in a packed array.
//
// Pointers returned by Get and GetByIndex stay valid until the next
// Allocate, Remove or Reserve call.
type Table[T any] struct {
	// freeHead and freeTail delimit the free list, a queue threaded through
	// the reference table.
	freeHead Index
	freeTail Index

	references []Reference
	objects    []slot[T]
}

// NewTable creates an empty table with every reference slot on the free
// list.
func NewTable[T any]() *Table[T] {
	t := &Table[T]{
		references: make([]Reference, ReferenceCount),
		freeHead:   0,
		freeTail:   ReferenceCount - 1,
	}
	for i := range t.references {
		t.references[i] = Reference{
			id:         ID(i),
			nextFree:   Index(i + 1),
			denseIndex: InvalidIndex,
		}
	}
	return t
}

// Destroy releases the table storage. All objects must have been removed.
func (t *Table[T]) Destroy() {
	if len(t.objects) != 0 {
		panic(fmt.Sprintf("object table destroyed with %d live objects", len(t.objects)))
	}
	t.references = nil
	t.objects = nil
}

// TryGetReference returns the reference for id if, and only if, id is the
// id currently stored in its slot and the slot points to a live object.
func (t *Table[T]) TryGetReference(id ID) (Reference, bool) {
	ref, ok := t.lookup(id)
	if !ok {
		return Reference{}, false
	}
	return *ref, true
}

// lookup needs no range check: every index value selects a valid slot.
func (t *Table[T]) lookup(id ID) (*Reference, bool) {
	ref := &t.references[id.Index()]
	if ref.id != id || ref.denseIndex == InvalidIndex {
		return nil, false
	}
	return ref, true
}

// Has reports whether id refers to a live object.
func (t *Table[T]) Has(id ID) bool {
	_, ok := t.lookup(id)
	return ok
}

// Get returns the object for id. It panics if id is stale or unknown.
func (t *Table[T]) Get(id ID) *T {
	ref, ok := t.lookup(id)
	if !ok {
		panic(fmt.Sprintf("object %#x does not exist", uint32(id)))
	}
	s := &t.objects[ref.denseIndex]
	if s.id != id {
		panic(fmt.Sprintf("object %#x: dense entry holds %#x", uint32(id), uint32(s.id)))
	}
	return &s.object
}

// Allocate creates a zero-valued object and returns its id. It panics when
// all MaxObjects slots are in use.
func (t *Table[T]) Allocate() ID {
	if t.freeHead == t.freeTail {
		panic(fmt.Sprintf("can't allocate more than %d objects", MaxObjects))
	}

	ref := &t.references[t.freeHead]
	t.freeHead = ref.nextFree

	ref.id += GenerationStep
	ref.denseIndex = Index(len(t.objects))
	t.objects = append(t.objects, slot[T]{id: ref.id})
	return ref.id
}

// Remove deletes the object for id. The last object of the dense array is
// moved into the freed position, and the released index is appended to the
// free list so it is reused as late as possible.
func (t *Table[T]) Remove(id ID) {
	ref, ok := t.lookup(id)
	if !ok {
		panic(fmt.Sprintf("can't remove object %#x: it does not exist", uint32(id)))
	}

	last := len(t.objects) - 1
	t.objects[ref.denseIndex] = t.objects[last]

	moved, ok := t.lookup(t.objects[ref.denseIndex].id)
	if !ok {
		panic(fmt.Sprintf("object table corrupt: moved object %#x has no reference",
			uint32(t.objects[ref.denseIndex].id)))
	}
	moved.denseIndex = ref.denseIndex

	var zero slot[T]
	t.objects[last] = zero
	t.objects = t.objects[:last]

	ref.denseIndex = InvalidIndex

	index := id.Index()
	t.references[t.freeTail].nextFree = index
	t.freeTail = index
}

// Reserve grows the dense array capacity to hold at least n objects.
func (t *Table[T]) Reserve(n int) {
	if n > MaxObjects {
		panic(fmt.Sprintf("can't reserve %d objects, table holds at most %d", n, MaxObjects))
	}
	if n <= cap(t.objects) {
		return
	}
	grown := make([]slot[T], len(t.objects), n)
	copy(grown, t.objects)
	t.objects = grown
}

// GetByIndex returns the object at position i of the dense array.
func (t *Table[T]) GetByIndex(i int) *T {
	return &t.objects[i].object
}

// GetIDByIndex returns the id of the object at position i of the dense
// array.
func (t *Table[T]) GetIDByIndex(i int) ID {
	return t.objects[i].id
}

// Count returns the number of live objects.
func (t *Table[T]) Count() int {
	return len(t.objects)
}

// All iterates the live objects in dense order. The table must not be
// modified during iteration.
func (t *Table[T]) All() iter.Seq2[ID, *T] {
	return func(yield func(ID, *T) bool) {
		for i := range t.objects {
			if !yield(t.objects[i].id, &t.objects[i].object) {
				return
			}
		}
	}
}
