// Package order provides the pure id-list reordering primitives every move
// path funnels through: pointer drag, keyboard move, and programmatic moves
// such as relocating a task on completion.
package order

// ReorderWithin removes activeID from its current position in ids and
// reinserts it at the position overID occupies. When overID is empty or not
// present, the item moves to the end. Returns the input slice unchanged when
// activeID is not present.
func ReorderWithin(ids []string, activeID, overID string) []string {
	from := indexOf(ids, activeID)
	if from < 0 {
		return ids
	}
	if activeID == overID {
		// Dragging an item onto itself changes nothing.
		return append([]string(nil), ids...)
	}

	without := make([]string, 0, len(ids))
	without = append(without, ids[:from]...)
	without = append(without, ids[from+1:]...)

	to := indexOf(without, overID)
	if overID == "" || to < 0 {
		to = len(without)
	}
	return insertAt(without, to, activeID)
}

// MoveBetween removes activeID from fromIDs and inserts it into toIDs at the
// index of overID, or at the end when overID is absent from toIDs. Returns
// both inputs unchanged (aliased) when activeID is not in fromIDs.
func MoveBetween(fromIDs, toIDs []string, activeID, overID string) (from, to []string) {
	i := indexOf(fromIDs, activeID)
	if i < 0 {
		return fromIDs, toIDs
	}

	from = make([]string, 0, len(fromIDs)-1)
	from = append(from, fromIDs[:i]...)
	from = append(from, fromIDs[i+1:]...)

	at := indexOf(toIDs, overID)
	if at < 0 {
		at = len(toIDs)
	}
	to = insertAt(toIDs, at, activeID)
	return from, to
}

// InsertAt inserts id into ids at the given index, clamping out-of-range
// indexes to append-at-end. A negative index also appends.
func InsertAt(ids []string, index int, id string) []string {
	return insertAt(ids, index, id)
}

// Remove returns ids without the first occurrence of id. The input is
// returned unchanged when id is absent.
func Remove(ids []string, id string) []string {
	i := indexOf(ids, id)
	if i < 0 {
		return ids
	}
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	out = append(out, ids[i+1:]...)
	return out
}

func indexOf(ids []string, id string) int {
	if id == "" {
		return -1
	}
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func insertAt(ids []string, index int, id string) []string {
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	out = append(out, ids[index:]...)
	return out
}
