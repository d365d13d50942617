package game

import "fmt"

// Board dimensions and rules
const (
	Rows      = 9 // fixed vertical extent, y in [0, Rows)
	MaxWidth  = 9 // maximum structural width in columns
	WinLength = 5
	NoRow     = -1
)

// Side identifies one of the two seats. The host always holds First.
type Side int

const (
	NoSide Side = iota
	First
	Second
)

// Opponent returns the other side
func (s Side) Opponent() Side {
	switch s {
	case First:
		return Second
	case Second:
		return First
	}
	return NoSide
}

// Index returns 0 for First and 1 for Second, for per-side arrays
func (s Side) Index() int {
	if s == Second {
		return 1
	}
	return 0
}

func (s Side) String() string {
	switch s {
	case First:
		return "first"
	case Second:
		return "second"
	}
	return ""
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "first":
		*s = First
	case "second":
		*s = Second
	case "":
		*s = NoSide
	default:
		return fmt.Errorf("unknown side %q", text)
	}
	return nil
}

// Orientation of a block
type Orientation int

const (
	Vertical Orientation = iota
	Horizontal
)

// Orientations in move enumeration order
var Orientations = [2]Orientation{Vertical, Horizontal}

func (o Orientation) String() string {
	if o == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Orientation) UnmarshalText(text []byte) error {
	switch string(text) {
	case "vertical":
		*o = Vertical
	case "horizontal":
		*o = Horizontal
	default:
		return fmt.Errorf("unknown orientation %q", text)
	}
	return nil
}

// Coord is a grid coordinate
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cell is one occupied grid position
type Cell struct {
	Owner       Side
	Orientation Orientation
	BlockID     int
	Origin      bool // false for the extension half
}

// Block is a two-cell domino anchored at (X, Y)
type Block struct {
	X           int         `json:"x"`
	Y           int         `json:"y"`
	Orientation Orientation `json:"orientation"`
	Owner       Side        `json:"owner"`
}

// Cells returns the origin and extension coordinates
func (b Block) Cells() [2]Coord {
	if b.Orientation == Horizontal {
		return [2]Coord{{b.X, b.Y}, {b.X + 1, b.Y}}
	}
	return [2]Coord{{b.X, b.Y}, {b.X, b.Y + 1}}
}
