package jitterbuffer

import "testing"

func TestSeqAfter(t *testing.T) {
	cases := []struct {
		a, b uint16
		want bool
	}{
		{2, 1, true},
		{1, 2, false},
		{1, 1, false},
		{0, 65535, true},
		{65535, 0, false},
	}
	for _, c := range cases {
		if got := seqAfter(c.a, c.b); got != c.want {
			t.Errorf("seqAfter(%d,%d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestSeqGEQ(t *testing.T) {
	if !seqGEQ(5, 5) {
		t.Errorf("expected seqGEQ(5,5) true")
	}
	if !seqGEQ(0, 65535) {
		t.Errorf("expected seqGEQ(0,65535) true across wrap")
	}
	if seqGEQ(65535, 0) {
		t.Errorf("expected seqGEQ(65535,0) false across wrap")
	}
}

func TestTsGEQWrapNoWrap(t *testing.T) {
	if !tsGEQWrap(1000, 500) {
		t.Errorf("expected 1000 >= 500")
	}
	if tsGEQWrap(500, 1000) {
		t.Errorf("expected 500 < 1000")
	}
}

func TestTsGEQWrapAcrossBoundary(t *testing.T) {
	if !tsGEQWrap(100, 0xFFFF-100) {
		t.Errorf("expected wrapped timestamp to compare as after")
	}
}

func TestSeqGap(t *testing.T) {
	if seqGap(10, 5) != 5 {
		t.Errorf("expected gap of 5")
	}
	if seqGap(2, 65534) != 4 {
		t.Errorf("expected wrap-aware gap of 4, got %d", seqGap(2, 65534))
	}
}
