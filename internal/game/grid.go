package game

import (
	"fmt"
	"sort"
)

// Grid is a sparse cell map keyed by packed coordinates.
// The vertical extent is fixed to Rows; horizontal extent is derived
// from the occupied cells and never assumed to be centred on zero.
// A Grid is never the source of truth for a match: the ordered block
// log is, and Rebuild derives the grid from it.
type Grid struct {
	cells  map[int64]Cell
	blocks int
	minX   int
	maxX   int
}

func key(x, y int) int64 {
	return int64(x)<<32 | int64(uint32(y))
}

// NewGrid creates an empty grid
func NewGrid() *Grid {
	return &Grid{cells: make(map[int64]Cell)}
}

// Rebuild replays an ordered block list from an empty grid
func Rebuild(blocks []Block) (*Grid, error) {
	g := NewGrid()
	for i, b := range blocks {
		if err := g.place(b); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	return g, nil
}

// Clone creates a copy of the grid
func (g *Grid) Clone() *Grid {
	c := &Grid{
		cells:  make(map[int64]Cell, len(g.cells)+2),
		blocks: g.blocks,
		minX:   g.minX,
		maxX:   g.maxX,
	}
	for k, v := range g.cells {
		c.cells[k] = v
	}
	return c
}

// Apply returns a new grid with the block's two cells inserted.
// The receiver is left untouched.
func (g *Grid) Apply(b Block) (*Grid, error) {
	next := g.Clone()
	if err := next.place(b); err != nil {
		return nil, err
	}
	return next, nil
}

// place inserts a block in place
func (g *Grid) place(b Block) error {
	cells := b.Cells()
	for _, c := range cells {
		if c.Y < 0 || c.Y >= Rows {
			return ErrOutOfBounds
		}
		if _, ok := g.cells[key(c.X, c.Y)]; ok {
			return &OverlapError{X: c.X, Y: c.Y}
		}
	}

	id := g.blocks
	for i, c := range cells {
		g.cells[key(c.X, c.Y)] = Cell{
			Owner:       b.Owner,
			Orientation: b.Orientation,
			BlockID:     id,
			Origin:      i == 0,
		}
		if g.blocks == 0 && i == 0 {
			g.minX, g.maxX = c.X, c.X
		}
		if c.X < g.minX {
			g.minX = c.X
		}
		if c.X > g.maxX {
			g.maxX = c.X
		}
	}
	g.blocks++
	return nil
}

// At returns the cell at (x, y)
func (g *Grid) At(x, y int) (Cell, bool) {
	c, ok := g.cells[key(x, y)]
	return c, ok
}

// Occupied reports whether (x, y) holds a cell
func (g *Grid) Occupied(x, y int) bool {
	_, ok := g.cells[key(x, y)]
	return ok
}

// Empty reports whether no block has been placed
func (g *Grid) Empty() bool {
	return g.blocks == 0
}

// BlockCount returns the number of blocks applied
func (g *Grid) BlockCount() int {
	return g.blocks
}

// Bounds returns the occupied column range. ok is false on an empty grid.
func (g *Grid) Bounds() (minX, maxX int, ok bool) {
	if g.blocks == 0 {
		return 0, -1, false
	}
	return g.minX, g.maxX, true
}

// Height returns the stack height of column x
func (g *Grid) Height(x int) int {
	h := 0
	for h < Rows && g.Occupied(x, h) {
		h++
	}
	return h
}

// CellsOf returns the coordinates owned by a side, ordered by x then y
func (g *Grid) CellsOf(owner Side) []Coord {
	coords := make([]Coord, 0, len(g.cells)/2+1)
	for k, c := range g.cells {
		if c.Owner != owner {
			continue
		}
		coords = append(coords, Coord{X: int(k >> 32), Y: int(int32(uint32(k)))})
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Y < coords[j].Y
	})
	return coords
}

// Equal reports whether two grids hold identical cells
func (g *Grid) Equal(other *Grid) bool {
	if len(g.cells) != len(other.cells) || g.blocks != other.blocks {
		return false
	}
	for k, v := range g.cells {
		if ov, ok := other.cells[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Matrix returns the grid as a column-major matrix of owners between the
// occupied bounds. Nil for an empty grid.
func (g *Grid) Matrix() [][]Side {
	minX, maxX, ok := g.Bounds()
	if !ok {
		return nil
	}
	out := make([][]Side, maxX-minX+1)
	for x := minX; x <= maxX; x++ {
		col := make([]Side, Rows)
		for y := 0; y < Rows; y++ {
			if c, ok := g.At(x, y); ok {
				col[y] = c.Owner
			}
		}
		out[x-minX] = col
	}
	return out
}
