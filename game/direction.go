package game

// Direction is one of the 8 compass labels used on the wire
type Direction string

const (
	DirUp        Direction = "up"
	DirDown      Direction = "down"
	DirLeft      Direction = "left"
	DirRight     Direction = "right"
	DirUpLeft    Direction = "up-left"
	DirUpRight   Direction = "up-right"
	DirDownLeft  Direction = "down-left"
	DirDownRight Direction = "down-right"
)

// ParseDirection validates a wire direction label
func ParseDirection(s string) (Direction, bool) {
	d := Direction(s)
	switch d {
	case DirUp, DirDown, DirLeft, DirRight, DirUpLeft, DirUpRight, DirDownLeft, DirDownRight:
		return d, true
	}
	return "", false
}

// Vector returns the unit vector for d; diagonals use cos45 per axis.
// Screen coordinates: y grows downward.
func (d Direction) Vector() (float64, float64) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	case DirUpLeft:
		return -cos45, -cos45
	case DirUpRight:
		return cos45, -cos45
	case DirDownLeft:
		return -cos45, cos45
	case DirDownRight:
		return cos45, cos45
	}
	return 0, 0
}

// directionFromAxes labels a per-axis input combination; ok is false when
// both axes are neutral.
func directionFromAxes(dx, dy int) (Direction, bool) {
	switch {
	case dx < 0 && dy < 0:
		return DirUpLeft, true
	case dx > 0 && dy < 0:
		return DirUpRight, true
	case dx < 0 && dy > 0:
		return DirDownLeft, true
	case dx > 0 && dy > 0:
		return DirDownRight, true
	case dx < 0:
		return DirLeft, true
	case dx > 0:
		return DirRight, true
	case dy < 0:
		return DirUp, true
	case dy > 0:
		return DirDown, true
	}
	return "", false
}
