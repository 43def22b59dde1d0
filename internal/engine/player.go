package engine

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/DoyleJ11/party-board-backend/internal/minigame"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	MaxPlayers    = 4
	MaxNameLength = 16
	cpuAvatar     = "🤖"
)

type Look struct {
	Color  string
	Avatar string
}

// Palette is indexed by slot id.
var Palette = [MaxPlayers]Look{
	{Color: "#ef4444", Avatar: "🦁"},
	{Color: "#3b82f6", Avatar: "🦈"},
	{Color: "#22c55e", Avatar: "🐸"},
	{Color: "#eab308", Avatar: "🐝"},
}

type Player struct {
	Slot       int                 `json:"id"`
	Name       string              `json:"name"`
	Color      string              `json:"color"`
	Avatar     string              `json:"avatar"`
	Coins      int                 `json:"coins"`
	Stars      int                 `json:"stars"`
	Position   int                 `json:"position"`
	Simulated  bool                `json:"isCpu"`
	Difficulty minigame.Difficulty `json:"cpuDifficulty,omitempty"`
}

// NormalizeName cleans a display name typed on a phone: NFC, full-width
// folded to narrow, control characters dropped, whitespace collapsed,
// truncated to MaxNameLength runes. Empty names get a slot based default.
func NormalizeName(name string, slot int) string {
	name = width.Fold.String(norm.NFC.String(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")

	if r := []rune(name); len(r) > MaxNameLength {
		name = strings.TrimSpace(string(r[:MaxNameLength]))
	}
	if name == "" {
		name = fmt.Sprintf("Player %d", slot+1)
	}
	return name
}
