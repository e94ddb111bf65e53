// Package entityid provides an arena-style entity identifier and an
// allocator for it, so the world router can address entities by a cheap
// fixed-size value instead of a pointer or a string.
package entityid

// ID encodes a 32-bit index in the lower bits and a 32-bit generation in
// the upper bits. The generation increments whenever the index is reused,
// so a stale ID naturally fails Alive() instead of aliasing a new entity.
type ID uint64

// Nil is the zero value, used for "no parent" (the world root) and for
// absent optional references.
const Nil ID = 0

func newID(index uint32, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) Index() uint32      { return uint32(id) }
func (id ID) Generation() uint32 { return uint32(id >> 32) }
func (id ID) IsNil() bool        { return id == Nil }

// Pool allocates and recycles IDs with generation-tagged free list reuse.
type Pool struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func NewPool() *Pool {
	return &Pool{
		generations: make([]uint32, 1, 1024), // index 0 reserved, never allocated
		freeList:    make([]uint32, 0, 256),
	}
}

// Create allocates a new ID. Index 0 is never returned, since ID(0) ==
// Nil is reserved for "no reference".
func (p *Pool) Create() ID {
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return newID(idx, p.generations[idx])
	}
	if p.nextIndex == 0 {
		p.nextIndex = 1
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, make([]uint32, int(idx)-len(p.generations)+1)...)
	}
	return newID(idx, p.generations[idx])
}

// Alive reports whether id still refers to a live allocation (i.e. has not
// been Destroy()ed since, nor was it ever allocated).
func (p *Pool) Alive(id ID) bool {
	if id.IsNil() {
		return false
	}
	idx := id.Index()
	if int(idx) >= len(p.generations) {
		return false
	}
	return p.generations[idx] == id.Generation()
}

// Destroy bumps the generation at id's index, invalidating id and freeing
// the index for reuse by a future Create.
func (p *Pool) Destroy(id ID) {
	if id.IsNil() {
		return
	}
	idx := id.Index()
	if int(idx) >= len(p.generations) || p.generations[idx] != id.Generation() {
		return // already destroyed or never allocated: stale reference
	}
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
}
