package space

import "testing"

func keys(cs []Coordinate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Key()
	}
	return out
}

func assertKeys(t *testing.T, got []Coordinate, want ...string) {
	t.Helper()
	g := keys(got)
	if len(g) != len(want) {
		t.Fatalf("expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, g)
		}
	}
}

func TestNewLineDiagonal(t *testing.T) {
	l, err := NewLine(Size{5, 5}, Coordinate{1, 2}, NewDirection([]int{1, 1}))
	if err != nil {
		t.Fatalf("NewLine: %v", err)
	}
	assertKeys(t, l.Points(), "0,1", "1,2", "2,3", "3,4")
	if i, ok := l.Index(Coordinate{1, 2}); !ok || i != 1 {
		t.Fatalf("expected (1,2) at index 1, got %d %v", i, ok)
	}
	if l.Contains(Coordinate{4, 4}) {
		t.Fatalf("(4,4) is not on the line")
	}
}

func TestLineThroughIsOrderIndependent(t *testing.T) {
	size := Size{5, 5}
	a, err := LineThrough(size, Coordinate{1, 2}, Coordinate{3, 0})
	if err != nil {
		t.Fatalf("LineThrough: %v", err)
	}
	b, err := LineThrough(size, Coordinate{3, 0}, Coordinate{1, 2})
	if err != nil {
		t.Fatalf("LineThrough: %v", err)
	}
	assertKeys(t, a.Points(), "0,3", "1,2", "2,1", "3,0")
	assertKeys(t, b.Points(), keys(a.Points())...)
	if !a.Direction().Equal(b.Direction()) {
		t.Fatalf("expected equal directions")
	}
}

func TestNewLineZeroDirection(t *testing.T) {
	l, err := NewLine(Size{3}, Coordinate{1}, NewDirection([]int{0}))
	if err != nil {
		t.Fatalf("NewLine: %v", err)
	}
	assertKeys(t, l.Points(), "1")
}

func TestNewLineRejectsOutOfBounds(t *testing.T) {
	if _, err := NewLine(Size{3}, Coordinate{3}, NewDirection([]int{1})); err == nil {
		t.Fatalf("expected error for point outside the space")
	}
}
