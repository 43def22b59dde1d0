package engine

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var ErrInvalidBoard = errors.New("invalid board")

type SpaceType string

const (
	SpaceNeutral SpaceType = "NEUTRAL"
	SpaceCoin    SpaceType = "COIN"
	SpaceTrap    SpaceType = "TRAP"
	SpaceChaos   SpaceType = "CHAOS"
	SpaceDuel    SpaceType = "DUEL"
	SpaceStar    SpaceType = "STAR"
)

func (t SpaceType) valid() bool {
	switch t {
	case SpaceNeutral, SpaceCoin, SpaceTrap, SpaceChaos, SpaceDuel, SpaceStar:
		return true
	}
	return false
}

// Space is one node of the board graph. X/Y are percentages of the display
// and only matter for rendering.
type Space struct {
	ID   int       `json:"id" yaml:"id"`
	Type SpaceType `json:"type" yaml:"type"`
	X    float64   `json:"x" yaml:"x"`
	Y    float64   `json:"y" yaml:"y"`
	Next []int     `json:"next" yaml:"next"`
}

// Board is immutable once a session is created.
type Board struct {
	Spaces []Space `json:"spaces" yaml:"spaces"`
}

const DefaultBoardSize = 24

// DefaultBoard is a single 24-space loop laid out on an ellipse.
func DefaultBoard() Board {
	spaces := make([]Space, DefaultBoardSize)
	for i := range spaces {
		angle := float64(i) / DefaultBoardSize * 2 * math.Pi

		t := SpaceDuel
		switch {
		case i == 0:
			t = SpaceNeutral
		case i == 12:
			t = SpaceStar
		case i%6 == 0:
			t = SpaceChaos
		case i%4 == 0:
			t = SpaceTrap
		case i%2 == 0:
			t = SpaceCoin
		}

		spaces[i] = Space{
			ID:   i,
			Type: t,
			X:    50 + 40*math.Cos(angle),
			Y:    50 + 40*math.Sin(angle),
			Next: []int{(i + 1) % DefaultBoardSize},
		}
	}
	return Board{Spaces: spaces}
}

// LoadBoard reads a board layout from a YAML file.
func LoadBoard(path string) (Board, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Board{}, err
	}
	var board Board
	if err := yaml.Unmarshal(b, &board); err != nil {
		return Board{}, fmt.Errorf("parse board %s: %w", path, err)
	}
	if err := board.Validate(); err != nil {
		return Board{}, err
	}
	return board, nil
}

// Validate checks ids match indices and every edge points at a real space.
func (b Board) Validate() error {
	if len(b.Spaces) == 0 {
		return fmt.Errorf("%w: no spaces", ErrInvalidBoard)
	}
	for i, sp := range b.Spaces {
		if sp.ID != i {
			return fmt.Errorf("%w: space at index %d has id %d", ErrInvalidBoard, i, sp.ID)
		}
		if !sp.Type.valid() {
			return fmt.Errorf("%w: space %d has unknown type %q", ErrInvalidBoard, i, sp.Type)
		}
		if len(sp.Next) == 0 {
			return fmt.Errorf("%w: space %d is a dead end", ErrInvalidBoard, i)
		}
		for _, n := range sp.Next {
			if n < 0 || n >= len(b.Spaces) {
				return fmt.Errorf("%w: space %d points at missing space %d", ErrInvalidBoard, i, n)
			}
		}
	}
	return nil
}

// Next follows the first outgoing edge.
func (b Board) Next(pos int) int {
	return b.Spaces[pos].Next[0]
}
