package jitterbuffer

import "testing"

func TestFrameStoreAppendOrder(t *testing.T) {
	s := NewFrameStore()
	s.Append(Frame{SeqNum: 1})
	s.Append(Frame{SeqNum: 2})
	s.Append(Frame{SeqNum: 3})

	if s.Count() != 3 {
		t.Fatalf("expected 3 frames, got %d", s.Count())
	}
	first, ok := s.PeekFirst()
	if !ok || first.SeqNum != 1 {
		t.Fatalf("expected head seq 1, got %+v", first)
	}
	last, ok := s.PeekLast()
	if !ok || last.SeqNum != 3 {
		t.Fatalf("expected tail seq 3, got %+v", last)
	}
}

func TestFrameStoreInsertSortedOutOfOrder(t *testing.T) {
	s := NewFrameStore()
	s.InsertSorted(Frame{SeqNum: 5})
	s.InsertSorted(Frame{SeqNum: 3})
	s.InsertSorted(Frame{SeqNum: 4})
	s.InsertSorted(Frame{SeqNum: 1})

	want := []uint16{1, 3, 4, 5}
	i := 0
	s.Iterate(func(f Frame) bool {
		if f.SeqNum != want[i] {
			t.Fatalf("index %d: expected seq %d, got %d", i, want[i], f.SeqNum)
		}
		i++
		return true
	})
	if i != len(want) {
		t.Fatalf("expected %d frames, iterated %d", len(want), i)
	}
}

func TestFrameStoreInsertSortedDuplicateDropped(t *testing.T) {
	s := NewFrameStore()
	s.InsertSorted(Frame{SeqNum: 10, Payload: []byte("first")})
	s.InsertSorted(Frame{SeqNum: 10, Payload: []byte("dup")})

	if s.Count() != 1 {
		t.Fatalf("expected duplicate to be dropped, count=%d", s.Count())
	}
	f, _ := s.PeekFirst()
	if string(f.Payload) != "first" {
		t.Fatalf("expected original frame retained, got %q", f.Payload)
	}
}

func TestFrameStoreInsertSortedWrapAware(t *testing.T) {
	s := NewFrameStore()
	s.InsertSorted(Frame{SeqNum: 65534})
	s.InsertSorted(Frame{SeqNum: 65535})
	s.InsertSorted(Frame{SeqNum: 1})
	s.InsertSorted(Frame{SeqNum: 0})

	want := []uint16{65534, 65535, 0, 1}
	i := 0
	s.Iterate(func(f Frame) bool {
		if f.SeqNum != want[i] {
			t.Fatalf("index %d: expected seq %d, got %d", i, want[i], f.SeqNum)
		}
		i++
		return true
	})
}

func TestFrameStoreContainsAndPop(t *testing.T) {
	s := NewFrameStore()
	s.Append(Frame{SeqNum: 7})

	if !s.Contains(7) {
		t.Fatalf("expected Contains(7) true")
	}
	if s.Contains(8) {
		t.Fatalf("expected Contains(8) false")
	}

	f, ok := s.PopFirst()
	if !ok || f.SeqNum != 7 {
		t.Fatalf("unexpected pop result: %+v, %v", f, ok)
	}
	if s.Count() != 0 {
		t.Fatalf("expected empty store after pop, count=%d", s.Count())
	}
	if _, ok := s.PopFirst(); ok {
		t.Fatalf("expected PopFirst on empty store to report false")
	}
}

func TestFrameStoreClearInvokesDiscard(t *testing.T) {
	s := NewFrameStore()
	s.Append(Frame{SeqNum: 1})
	s.Append(Frame{SeqNum: 2, DataType: DataTypeSID})

	var discarded []uint16
	s.Clear(func(f Frame) { discarded = append(discarded, f.SeqNum) })

	if s.Count() != 0 {
		t.Fatalf("expected store empty after Clear")
	}
	if len(discarded) != 2 || discarded[0] != 1 || discarded[1] != 2 {
		t.Fatalf("unexpected discard order: %v", discarded)
	}
}
