package world

// Rect is a half-open rectangle: x in [X1, X2), y in [Y1, Y2).
type Rect struct {
	X1, Y1, X2, Y2 int
}

// Width returns the number of columns.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns the number of rows.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Area returns the number of cells.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Empty reports whether the rectangle contains no cells.
func (r Rect) Empty() bool { return r.X2 <= r.X1 || r.Y2 <= r.Y1 }

// Contains reports whether (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X1 && x < r.X2 && y >= r.Y1 && y < r.Y2
}

// EdgeOf returns the edge crossed by an out-of-bounds coordinate. Vertical
// edges win over horizontal ones so corners resolve deterministically.
func (r Rect) EdgeOf(x, y int) (Edge, bool) {
	switch {
	case y < r.Y1:
		return EdgeTop, true
	case y >= r.Y2:
		return EdgeBottom, true
	case x < r.X1:
		return EdgeLeft, true
	case x >= r.X2:
		return EdgeRight, true
	default:
		return 0, false
	}
}
