package space

// TriIndexes returns the ternary-bisection visiting order of [left, right]:
// both ends first, then the two interior split points of every segment,
// breadth first. A segment of length 2 contributes its midpoint and shorter
// segments stop the recursion. Reversed bounds are swapped.
func TriIndexes(left, right int) []int {
	if left == right {
		return []int{left}
	}
	if left > right {
		left, right = right, left
	}
	out := []int{left, right}
	type segment struct{ l, r int }
	queue := []segment{{left, right}}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		length := s.r - s.l
		switch {
		case length <= 1:
			continue
		case length == 2:
			out = append(out, s.l+1)
			continue
		}
		mid1, mid2 := triSplit(s.l, s.r)
		out = append(out, mid1, mid2)
		queue = append(queue, segment{s.l, mid1}, segment{mid1, mid2}, segment{mid2, s.r})
	}
	return out
}

// TriPoints returns only the top-level split pair of [left, right]
func TriPoints(left, right int) (int, int) {
	if left > right {
		left, right = right, left
	}
	switch right - left {
	case 0, 1:
		return left, left
	case 2:
		return left + 1, right
	}
	return triSplit(left, right)
}

func triSplit(l, r int) (int, int) {
	mid1 := l + (r-l)/3
	mid2 := mid1 + (r-mid1)/2
	return mid1, mid2
}
