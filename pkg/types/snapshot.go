package types

// GameUpdate is the full replicated state. Controllers replace their copy
// with each one they receive; Version only ever grows within a room.
type GameUpdate struct {
	Version            int             `json:"version"`
	Phase              string          `json:"phase"`
	TurnPhase          string          `json:"turnPhase"`
	Mode               string          `json:"mode"`
	Players            []PlayerState   `json:"players"`
	CurrentPlayerIndex int             `json:"currentPlayerIndex"`
	CurrentMinigame    *Minigame       `json:"currentMinigame"`
	Round              int             `json:"round"`
	RoundLimit         int             `json:"roundLimit"`
	Announcement       string          `json:"announcement"`
	LastRoll           int             `json:"lastRoll,omitempty"`
	Results            []Result        `json:"results,omitempty"`
	Progress           *MinigameStatus `json:"progress,omitempty"`
}

type PlayerState struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Avatar     string `json:"avatar"`
	Coins      int    `json:"coins"`
	Stars      int    `json:"stars"`
	Position   int    `json:"position"`
	IsCPU      bool   `json:"isCpu"`
	Difficulty string `json:"cpuDifficulty,omitempty"`
}

type Minigame struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Type         string `json:"type"`
}

type Result struct {
	PlayerID int   `json:"playerId"`
	Score    int64 `json:"score"`
	Rank     int   `json:"rank"`
}

// MinigameStatus is what a controller needs to draw a running minigame.
// StartedAt is unix milliseconds on the host clock.
type MinigameStatus struct {
	StartedAt int64       `json:"startedAt"`
	Taps      map[int]int `json:"taps,omitempty"`
	Stopped   []int       `json:"stopped,omitempty"`
	Signal    string      `json:"signal,omitempty"`
	Entered   []int       `json:"entered,omitempty"`
}

type Space struct {
	ID   int     `json:"id"`
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Next []int   `json:"next"`
}

// HostView is what the shared display reads over HTTP. It carries the board
// and standings on top of the replicated state.
type HostView struct {
	GameUpdate
	RoomCode  string        `json:"roomCode"`
	Board     []Space       `json:"board"`
	Standings []PlayerState `json:"standings"`
	Links     int           `json:"links"`
}

type CreateRoomResponse struct {
	Code      string `json:"code"`
	HostToken string `json:"hostToken"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
