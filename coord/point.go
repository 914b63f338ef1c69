package coord

import "strconv"

type Point struct{ X, Y, Z float64 }

func (p Point) Equal(b Point) bool {
	return p.X == b.X && p.Y == b.Y && p.Z == b.Z
}

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	p.Z += target.Z
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	p.Z -= target.Z
	return p
}

func fmtAxis(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

// String renders the point the way GRBL reports coordinates.
func (p Point) String() string {
	return fmtAxis(p.X) + "," + fmtAxis(p.Y) + "," + fmtAxis(p.Z)
}
