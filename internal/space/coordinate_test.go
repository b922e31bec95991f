package space

import (
	"errors"
	"testing"
)

func TestCoordinateKeyRoundTrip(t *testing.T) {
	c := Coordinate{3, 0, 12}
	if c.Key() != "3,0,12" {
		t.Fatalf("unexpected key %q", c.Key())
	}
	back, err := ParseKey(c.Key())
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if !back.Equal(c) {
		t.Fatalf("expected %v, got %v", c, back)
	}
	if _, err := ParseKey("1,x"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

func TestSizeCheck(t *testing.T) {
	s := Size{3, 4}
	if err := s.Check(Coordinate{2, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Check(Coordinate{3, 0}); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if err := s.Check(Coordinate{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSizeValidate(t *testing.T) {
	if err := (Size{}).Validate(); !errors.Is(err, ErrEmptySpace) {
		t.Fatalf("expected ErrEmptySpace, got %v", err)
	}
	if err := (Size{2, 0}).Validate(); !errors.Is(err, ErrEmptyAxis) {
		t.Fatalf("expected ErrEmptyAxis, got %v", err)
	}
	if err := (Size{1}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSizeCenterAndTotal(t *testing.T) {
	s := Size{5, 4, 1}
	if !s.Center().Equal(Coordinate{2, 2, 0}) {
		t.Fatalf("unexpected center %v", s.Center())
	}
	if s.Total() != 20 {
		t.Fatalf("expected 20 points, got %d", s.Total())
	}
}

func TestSizeWalkRowMajor(t *testing.T) {
	var got []string
	Size{2, 3}.Walk(func(c Coordinate) bool {
		got = append(got, c.Key())
		return true
	})
	want := []string{"0,0", "0,1", "0,2", "1,0", "1,1", "1,2"}
	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("point %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	count := 0
	Size{4, 4}.Walk(func(Coordinate) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Fatalf("expected walk to stop after 3 points, got %d", count)
	}
}

func TestCoordinateListHelpers(t *testing.T) {
	list := []Coordinate{{0, 0}, {1, 1}, {2, 2}}
	if IndexOf(list, Coordinate{1, 1}) != 1 {
		t.Fatalf("expected index 1")
	}
	list = Remove(list, Coordinate{1, 1})
	if len(list) != 2 || IndexOf(list, Coordinate{1, 1}) != -1 {
		t.Fatalf("expected (1,1) to be removed, got %v", list)
	}

	set := Set{}
	set.Add(Coordinate{1, 2})
	set.Add(Coordinate{1, 2})
	if len(set) != 1 || !set.Has(Coordinate{1, 2}) {
		t.Fatalf("unexpected set %v", set)
	}
}
