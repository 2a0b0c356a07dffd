package order

import (
	"reflect"
	"testing"
)

func TestReorderWithin(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		activeID string
		overID   string
		want     []string
	}{
		{"move to front", []string{"a", "b", "c"}, "c", "a", []string{"c", "a", "b"}},
		{"move to middle", []string{"a", "b", "c"}, "a", "c", []string{"b", "a", "c"}},
		{"move to end via empty over", []string{"a", "b", "c"}, "a", "", []string{"b", "c", "a"}},
		{"over not present appends", []string{"a", "b", "c"}, "a", "zz", []string{"b", "c", "a"}},
		{"onto itself is a no-op", []string{"a", "b", "c"}, "b", "b", []string{"a", "b", "c"}},
		{"single element", []string{"a"}, "a", "a", []string{"a"}},
		{"adjacent swap", []string{"a", "b"}, "b", "a", []string{"b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReorderWithin(tt.ids, tt.activeID, tt.overID)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReorderWithin(%v, %q, %q) = %v, want %v", tt.ids, tt.activeID, tt.overID, got, tt.want)
			}
		})
	}
}

func TestReorderWithinAbsentID(t *testing.T) {
	ids := []string{"a", "b", "c"}
	got := ReorderWithin(ids, "missing", "b")
	if !reflect.DeepEqual(got, ids) {
		t.Fatalf("absent id should return input unchanged, got %v", got)
	}
	// Must alias the input, not copy it
	if &got[0] != &ids[0] {
		t.Error("absent id should return the input slice itself")
	}
}

func TestReorderWithinNeverDuplicates(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	for _, active := range ids {
		for _, over := range append([]string{""}, ids...) {
			got := ReorderWithin(ids, active, over)
			if len(got) != len(ids) {
				t.Fatalf("ReorderWithin(%v, %q, %q): length %d, want %d", ids, active, over, len(got), len(ids))
			}
			seen := map[string]int{}
			for _, id := range got {
				seen[id]++
			}
			for id, n := range seen {
				if n != 1 {
					t.Fatalf("ReorderWithin(%v, %q, %q): %q appears %d times", ids, active, over, id, n)
				}
			}
		}
	}
}

func TestMoveBetween(t *testing.T) {
	tests := []struct {
		name     string
		from     []string
		to       []string
		activeID string
		overID   string
		wantFrom []string
		wantTo   []string
	}{
		{"into middle", []string{"t", "x", "y"}, []string{"z", "w"}, "t", "w", []string{"x", "y"}, []string{"z", "t", "w"}},
		{"into empty column", []string{"a", "b"}, nil, "a", "", []string{"b"}, []string{"a"}},
		{"over absent appends", []string{"a", "b"}, []string{"c"}, "b", "zz", []string{"a"}, []string{"c", "b"}},
		{"empty over appends", []string{"a"}, []string{"c", "d"}, "a", "", nil, []string{"c", "d", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotFrom, gotTo := MoveBetween(tt.from, tt.to, tt.activeID, tt.overID)
			if len(gotFrom) != len(tt.wantFrom) || (len(gotFrom) > 0 && !reflect.DeepEqual(gotFrom, tt.wantFrom)) {
				t.Errorf("from = %v, want %v", gotFrom, tt.wantFrom)
			}
			if !reflect.DeepEqual(gotTo, tt.wantTo) {
				t.Errorf("to = %v, want %v", gotTo, tt.wantTo)
			}
		})
	}
}

func TestMoveBetweenPreservesCount(t *testing.T) {
	from := []string{"a", "b", "c"}
	to := []string{"d", "e"}
	gotFrom, gotTo := MoveBetween(from, to, "b", "e")
	if len(gotFrom)+len(gotTo) != len(from)+len(to) {
		t.Fatalf("total count changed: %d + %d != %d + %d", len(gotFrom), len(gotTo), len(from), len(to))
	}
	count := 0
	for _, id := range gotFrom {
		if id == "b" {
			count++
		}
	}
	for _, id := range gotTo {
		if id == "b" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("moved id appears %d times across both lists, want 1", count)
	}
}

func TestMoveBetweenAbsentID(t *testing.T) {
	from := []string{"a", "b"}
	to := []string{"c"}
	gotFrom, gotTo := MoveBetween(from, to, "missing", "c")
	if &gotFrom[0] != &from[0] || &gotTo[0] != &to[0] {
		t.Fatal("absent active id should return both inputs aliased")
	}
}

func TestInsertAtClamps(t *testing.T) {
	ids := []string{"a", "b"}
	if got := InsertAt(ids, 99, "c"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("index beyond length should append, got %v", got)
	}
	if got := InsertAt(ids, -1, "c"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("negative index should append, got %v", got)
	}
	if got := InsertAt(ids, 0, "c"); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("index 0 should prepend, got %v", got)
	}
}

func TestRemove(t *testing.T) {
	ids := []string{"a", "b", "c"}
	if got := Remove(ids, "b"); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Remove = %v", got)
	}
	if got := Remove(ids, "zz"); &got[0] != &ids[0] {
		t.Error("removing absent id should return the input slice itself")
	}
}
