// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

// ScopeHandle identifies one scope entry within a [Client]. Handles are
// allocated by an append-only, monotonically increasing counter and are
// never reused while still in use, replacing the original's intrusive
// red-black tree lookup with a map keyed by handle (spec.md §9
// "Red-black tree indices", "Cycles & back-references").
type ScopeHandle int

// invalidHandle marks "no handle" / "not found".
const invalidHandle = -1

// handleTable allocates monotonically increasing non-negative handles
// and tracks which are currently in use, wrapping around
// [math.MaxInt32] back to zero with an in-use check to skip collisions
// (spec.md §9).
type handleTable struct {
	next   int
	inUse  map[int]bool
}

func newHandleTable() *handleTable {
	return &handleTable{inUse: make(map[int]bool)}
}

const maxHandle = 0x7FFFFFFF

// alloc returns a fresh, currently-unused handle.
func (t *handleTable) alloc() int {
	for {
		h := t.next
		t.next++
		if t.next > maxHandle || t.next < 0 {
			t.next = 0
		}
		if !t.inUse[h] {
			t.inUse[h] = true
			return h
		}
	}
}

// free releases h so it is no longer reported in use. It does not make
// h immediately reusable ahead of the monotonic counter reaching it
// again (by design: this avoids a freshly freed handle being handed
// back out while a caller may still hold a stale reference to it).
func (t *handleTable) free(h int) {
	delete(t.inUse, h)
}
