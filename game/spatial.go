package game

import "math"

// SpatialCellSize is about 2x the obstacle size
const SpatialCellSize = 80.0

// SpatialGrid is a uniform grid for broad-phase queries, keyed by entity id
type SpatialGrid struct {
	cols, rows int
	cells      [][]string
}

// NewSpatialGrid sizes a grid to cover a w x h world
func NewSpatialGrid(w, h float64) *SpatialGrid {
	cols := int(math.Ceil(w/SpatialCellSize)) + 1
	rows := int(math.Ceil(h/SpatialCellSize)) + 1
	return &SpatialGrid{
		cols:  cols,
		rows:  rows,
		cells: make([][]string, cols*rows),
	}
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *SpatialGrid) clampCell(cx, cy int) (int, int) {
	if cx < 0 {
		cx = 0
	} else if cx >= g.cols {
		cx = g.cols - 1
	}
	if cy < 0 {
		cy = 0
	} else if cy >= g.rows {
		cy = g.rows - 1
	}
	return cx, cy
}

func (g *SpatialGrid) span(x, y, radius float64) (minCX, minCY, maxCX, maxCY int) {
	minCX, minCY = g.clampCell(int(math.Floor((x-radius)/SpatialCellSize)), int(math.Floor((y-radius)/SpatialCellSize)))
	maxCX, maxCY = g.clampCell(int(math.Floor((x+radius)/SpatialCellSize)), int(math.Floor((y+radius)/SpatialCellSize)))
	return
}

// InsertCircle adds an entity id to all cells overlapping its bounding box
func (g *SpatialGrid) InsertCircle(x, y, radius float64, id string) {
	minCX, minCY, maxCX, maxCY := g.span(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*g.cols + cx
			g.cells[idx] = append(g.cells[idx], id)
		}
	}
}

// Query returns all ids in cells that overlap the given bounding box.
// An id inserted as a circle may appear more than once.
func (g *SpatialGrid) Query(x, y, radius float64) []string {
	var ids []string
	minCX, minCY, maxCX, maxCY := g.span(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			ids = append(ids, g.cells[cy*g.cols+cx]...)
		}
	}
	return ids
}
