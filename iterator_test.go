package reactor

import "testing"

func TestIteratorEmptyItems(t *testing.T) {
	iter := &Iterator[int]{}
	if got := iter.Next(); got != 0 {
		t.Errorf("Next() with empty items = %d, want 0", got)
	}
	if got := iter.Peek(); got != 0 {
		t.Errorf("Peek() with empty items = %d, want 0", got)
	}
}

func TestIteratorEmptyItemsPointer(t *testing.T) {
	type item struct{ n int }
	iter := &Iterator[*item]{}
	if got := iter.Next(); got != nil {
		t.Errorf("Next() with empty items = %v, want nil", got)
	}
	if got := iter.Peek(); got != nil {
		t.Errorf("Peek() with empty items = %v, want nil", got)
	}
}

func TestIteratorWithItemsWraps(t *testing.T) {
	iter := &Iterator[int]{Items: []int{1, 2, 3}}
	if got := iter.Next(); got != 2 {
		t.Errorf("Next() = %d, want 2", got)
	}
	if got := iter.Next(); got != 3 {
		t.Errorf("Next() = %d, want 3", got)
	}
	if got := iter.Next(); got != 1 {
		t.Errorf("Next() = %d, want 1 (wrap around)", got)
	}
}

func TestIteratorPeekDoesNotAdvance(t *testing.T) {
	iter := &Iterator[int]{Items: []int{10, 20, 30}}
	if got := iter.Peek(); got != 10 {
		t.Errorf("Peek() = %d, want 10", got)
	}
	if got := iter.Peek(); got != 10 {
		t.Errorf("Peek() after Peek() = %d, want 10 (no advance)", got)
	}
	if got := iter.Next(); got != 20 {
		t.Errorf("Next() = %d, want 20", got)
	}
	if got := iter.Peek(); got != 20 {
		t.Errorf("Peek() after Next() = %d, want 20", got)
	}
}

func TestRotateRight1StartsRoundRobinAtFirstElement(t *testing.T) {
	loops := []*EventLoop{{}, {}, {}, {}}
	it := NewIterator(rotateRight1(loops))

	var order []*EventLoop
	for i := 0; i < 8; i++ {
		order = append(order, it.Next())
	}
	want := []*EventLoop{loops[0], loops[1], loops[2], loops[3], loops[0], loops[1], loops[2], loops[3]}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("round-robin order[%d] = loop %p, want %p", i, order[i], want[i])
		}
	}
}
