package space

import "testing"

func TestTriIndexesOrder(t *testing.T) {
	got := TriIndexes(0, 9)
	want := []int{0, 9, 3, 6, 1, 2, 4, 5, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestTriIndexesIsPermutation(t *testing.T) {
	for n := 1; n <= 40; n++ {
		left := 5
		right := left + n - 1
		got := TriIndexes(right, left)
		if len(got) != n {
			t.Fatalf("n=%d: expected %d indexes, got %d (%v)", n, n, len(got), got)
		}
		seen := make(map[int]bool)
		for _, v := range got {
			if v < left || v > right || seen[v] {
				t.Fatalf("n=%d: bad index %d in %v", n, v, got)
			}
			seen[v] = true
		}
	}
}

func TestTriIndexesSegmentMidpoint(t *testing.T) {
	got := TriIndexes(0, 4)
	want := []int{0, 4, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestTriPoints(t *testing.T) {
	tests := []struct {
		l, r, a, b int
	}{
		{0, 9, 3, 6},
		{0, 2, 1, 2},
		{4, 4, 4, 4},
		{2, 3, 2, 2},
	}
	for _, tt := range tests {
		a, b := TriPoints(tt.l, tt.r)
		if a != tt.a || b != tt.b {
			t.Errorf("TriPoints(%d,%d) = (%d,%d), want (%d,%d)", tt.l, tt.r, a, b, tt.a, tt.b)
		}
	}
}
