package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/minigame"
)

var ErrWrongPhase = errors.New("wrong phase")
var ErrNotYourTurn = errors.New("not your turn")
var ErrSessionFull = errors.New("session full")
var ErrNoPlayers = errors.New("no players")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrNotSimulated = errors.New("player is not simulated")
var ErrInvalidSetting = errors.New("invalid setting")
var ErrInputIgnored = errors.New("input ignored")
var ErrStaleTimer = errors.New("stale timer")
var ErrStaleFlavor = errors.New("stale flavor text")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrGameAlreadyCompleted = errors.New("game already completed")

type Phase string

const (
	PhaseLobby           Phase = "LOBBY"
	PhaseBoard           Phase = "BOARD"
	PhaseMinigameIntro   Phase = "MINIGAME_INTRO"
	PhaseMinigamePlay    Phase = "MINIGAME_PLAY"
	PhaseMinigameResults Phase = "MINIGAME_RESULTS"
	PhaseGameOver        Phase = "GAME_OVER"
)

type TurnPhase string

const (
	TurnStart   TurnPhase = "TURN_START"
	TurnRolling TurnPhase = "ROLLING"
	TurnMoving  TurnPhase = "MOVING"
	TurnLanded  TurnPhase = "LANDED"
	TurnEnd     TurnPhase = "TURN_END"
)

type GameMode string

const (
	ModeBoard        GameMode = "BOARD_GAME"
	ModeMinigameOnly GameMode = "MINIGAME_ONLY"
)

const DieFaces = 10

// Rules are the fixed amounts and delays of a session.
type Rules struct {
	StartingCoins int
	CoinReward    int
	TrapPenalty   int
	StarCost      int

	CPURollDelay time.Duration
	RollDuration time.Duration
	MoveStep     time.Duration
	LandedDelay  time.Duration
	MinigameTick time.Duration
	ResultsDelay time.Duration
}

type State struct {
	Phase         Phase
	TurnPhase     TurnPhase
	Mode          GameMode
	Players       []Player
	CurrentPlayer int
	Round         int
	RoundLimit    int
	Rules         Rules
	Board         Board

	Minigame          *minigame.Descriptor
	Game              *minigame.Game
	MinigameStartedAt time.Time
	LastResults       []minigame.Result

	LastRoll     int
	StepsLeft    int
	Announcement string

	// Epoch advances on every phase or turn-phase change. Timers and
	// flavor replies carry the epoch they were issued in.
	Epoch uint64
}

type CommandType string

const (
	CmdJoin          CommandType = "Join"
	CmdAddCPU        CommandType = "AddCPU"
	CmdSetDifficulty CommandType = "SetDifficulty"
	CmdSetRoundLimit CommandType = "SetRoundLimit"
	CmdSetMode       CommandType = "SetMode"
	CmdStart         CommandType = "Start"
	CmdRoll          CommandType = "Roll"
	CmdMinigameReady CommandType = "MinigameReady"
	CmdMinigameInput CommandType = "MinigameInput"
	CmdTimerFired    CommandType = "TimerFired"
	CmdFlavor        CommandType = "Flavor"
)

/*
	CmdStart         -> EvtGameStarted -> EvtTimerStarted (cpu roll) | EvtMinigameSelected
	CmdRoll          -> EvtTimerStarted (roll)
	TimerRoll        -> EvtDiceRolled -> EvtTimerStarted (move)
	TimerMoveStep    -> EvtPlayerMoved -> EvtTimerStarted (move) | EvtSpaceResolved [EvtChaosTriggered] EvtTimerStarted (landed)
	TimerLanded      -> EvtTurnAdvanced -> EvtTimerStarted (cpu roll) | EvtMinigameSelected
	CmdMinigameReady -> EvtMinigameStarted -> EvtTimerStarted (tick)
	TimerMinigameTick / CmdMinigameInput -> EvtMinigameCompleted -> EvtRoundAdvanced -> EvtTimerStarted (results) | EvtGameCompleted
	TimerResults     -> EvtTimerStarted (cpu roll) | EvtMinigameSelected
*/

type Command struct {
	Type       CommandType
	Slot       int
	Name       string
	Action     string
	Difficulty minigame.Difficulty
	RoundLimit int
	Mode       GameMode
	Timer      Timer
	Token      uint64
	Text       string
}

type EventType string

const (
	EvtPlayerJoined      EventType = "PlayerJoined"
	EvtSettingsChanged   EventType = "SettingsChanged"
	EvtGameStarted       EventType = "GameStarted"
	EvtDiceRolled        EventType = "DiceRolled"
	EvtPlayerMoved       EventType = "PlayerMoved"
	EvtSpaceResolved     EventType = "SpaceResolved"
	EvtChaosTriggered    EventType = "ChaosTriggered"
	EvtTurnAdvanced      EventType = "TurnAdvanced"
	EvtMinigameSelected  EventType = "MinigameSelected"
	EvtMinigameStarted   EventType = "MinigameStarted"
	EvtMinigameInput     EventType = "MinigameInput"
	EvtMinigameCompleted EventType = "MinigameCompleted"
	EvtRoundAdvanced     EventType = "RoundAdvanced"
	EvtAnnounced         EventType = "Announced"
	EvtTimerStarted      EventType = "TimerStarted"
	EvtGameCompleted     EventType = "GameCompleted"
)

type Event struct {
	Type  EventType
	Slot  int
	Value int
	Text  string
	Timer Timer
}

type TimerKind string

const (
	TimerCPURoll      TimerKind = "CPURoll"
	TimerRoll         TimerKind = "Roll"
	TimerMoveStep     TimerKind = "MoveStep"
	TimerLanded       TimerKind = "Landed"
	TimerMinigameTick TimerKind = "MinigameTick"
	TimerResults      TimerKind = "Results"
)

type Timer struct {
	Kind  TimerKind
	Token uint64
	After time.Duration
}

// Env is what Apply needs from the outside world.
type Env struct {
	Now  time.Time
	Rand *rand.Rand
}

// Apply runs one command against s. On error s is returned untouched and the
// command must be treated as dropped.
func Apply(s State, cmd Command, env Env) ([]Event, State, error) {
	if s.Phase == PhaseGameOver {
		return nil, s, ErrGameAlreadyCompleted
	}

	next := s.Clone()

	var events []Event
	var err error

	switch cmd.Type {
	case CmdJoin:
		events, err = next.join(cmd.Name, false)
	case CmdAddCPU:
		events, err = next.join("", true)
	case CmdSetDifficulty:
		events, err = next.setDifficulty(cmd.Slot, cmd.Difficulty)
	case CmdSetRoundLimit:
		events, err = next.setRoundLimit(cmd.RoundLimit)
	case CmdSetMode:
		events, err = next.setMode(cmd.Mode)
	case CmdStart:
		events, err = next.start(env)
	case CmdRoll:
		events, err = next.roll(cmd.Slot)
	case CmdMinigameReady:
		events, err = next.startMinigame(env)
	case CmdMinigameInput:
		events, err = next.minigameInput(cmd.Slot, cmd.Action, env)
	case CmdTimerFired:
		events, err = next.timerFired(cmd.Timer, env)
	case CmdFlavor:
		events, err = next.flavor(cmd.Token, cmd.Text)
	default:
		err = ErrUnsupportedCommand
	}

	if err != nil {
		return nil, s, err
	}
	return events, next, nil
}

func (s *State) enter(phase Phase, turn TurnPhase) {
	s.Phase = phase
	s.TurnPhase = turn
	s.Epoch++
}

func (s *State) schedule(kind TimerKind, after time.Duration) Event {
	return Event{Type: EvtTimerStarted, Timer: Timer{Kind: kind, Token: s.Epoch, After: after}}
}

func (s *State) player(slot int) (*Player, error) {
	if slot < 0 || slot >= len(s.Players) {
		return nil, ErrUnknownPlayer
	}
	return &s.Players[slot], nil
}

// Lobby

func (s *State) join(name string, simulated bool) ([]Event, error) {
	if s.Phase != PhaseLobby {
		return nil, ErrWrongPhase
	}
	if len(s.Players) >= MaxPlayers {
		return nil, ErrSessionFull
	}

	slot := len(s.Players)
	look := Palette[slot]
	p := Player{
		Slot:   slot,
		Name:   NormalizeName(name, slot),
		Color:  look.Color,
		Avatar: look.Avatar,
		Coins:  s.Rules.StartingCoins,
	}
	if simulated {
		p.Name = fmt.Sprintf("CPU %d", slot+1)
		p.Avatar = cpuAvatar
		p.Simulated = true
		p.Difficulty = minigame.DifficultyEasy
	}

	s.Players = append(s.Players, p)
	return []Event{{Type: EvtPlayerJoined, Slot: slot, Text: p.Name}}, nil
}

func (s *State) setDifficulty(slot int, d minigame.Difficulty) ([]Event, error) {
	if s.Phase != PhaseLobby {
		return nil, ErrWrongPhase
	}
	p, err := s.player(slot)
	if err != nil {
		return nil, err
	}
	if !p.Simulated {
		return nil, ErrNotSimulated
	}

	if d == "" {
		d = p.Difficulty.Next()
	}
	if !d.Valid() {
		return nil, ErrInvalidSetting
	}
	p.Difficulty = d
	return []Event{{Type: EvtSettingsChanged, Slot: slot, Text: string(d)}}, nil
}

func (s *State) setRoundLimit(n int) ([]Event, error) {
	if s.Phase != PhaseLobby {
		return nil, ErrWrongPhase
	}
	if n < 1 {
		return nil, ErrInvalidSetting
	}
	s.RoundLimit = n
	return []Event{{Type: EvtSettingsChanged, Value: n}}, nil
}

func (s *State) setMode(m GameMode) ([]Event, error) {
	if s.Phase != PhaseLobby {
		return nil, ErrWrongPhase
	}
	if m != ModeBoard && m != ModeMinigameOnly {
		return nil, ErrInvalidSetting
	}
	s.Mode = m
	return []Event{{Type: EvtSettingsChanged, Text: string(m)}}, nil
}

func (s *State) start(env Env) ([]Event, error) {
	if s.Phase != PhaseLobby {
		return nil, ErrWrongPhase
	}
	if len(s.Players) == 0 {
		return nil, ErrNoPlayers
	}

	s.Round = 1
	s.CurrentPlayer = 0
	events := []Event{{Type: EvtGameStarted, Text: string(s.Mode)}}

	if s.Mode == ModeMinigameOnly {
		s.Announcement = "PURE MINIGAME MODE!"
		return append(events, s.selectMinigame(env)...), nil
	}

	s.Announcement = "Let the Chaos Begin!"
	s.enter(PhaseBoard, TurnStart)
	return append(events, s.beginTurn()...), nil
}

// Board turn

func (s *State) beginTurn() []Event {
	s.LastRoll = 0
	s.StepsLeft = 0
	if s.Players[s.CurrentPlayer].Simulated {
		return []Event{s.schedule(TimerCPURoll, s.Rules.CPURollDelay)}
	}
	return nil
}

func (s *State) roll(slot int) ([]Event, error) {
	if s.Phase != PhaseBoard || s.TurnPhase != TurnStart {
		return nil, ErrWrongPhase
	}
	if slot != s.CurrentPlayer {
		return nil, ErrNotYourTurn
	}
	return s.beginRoll(), nil
}

func (s *State) beginRoll() []Event {
	s.enter(PhaseBoard, TurnRolling)
	return []Event{s.schedule(TimerRoll, s.Rules.RollDuration)}
}

func (s *State) timerFired(t Timer, env Env) ([]Event, error) {
	if t.Token != s.Epoch {
		return nil, ErrStaleTimer
	}

	switch {
	case t.Kind == TimerCPURoll && s.Phase == PhaseBoard && s.TurnPhase == TurnStart:
		return s.beginRoll(), nil

	case t.Kind == TimerRoll && s.Phase == PhaseBoard && s.TurnPhase == TurnRolling:
		die := env.Rand.IntN(DieFaces) + 1
		s.LastRoll = die
		s.StepsLeft = die
		s.enter(PhaseBoard, TurnMoving)
		return []Event{
			{Type: EvtDiceRolled, Slot: s.CurrentPlayer, Value: die},
			s.schedule(TimerMoveStep, s.Rules.MoveStep),
		}, nil

	case t.Kind == TimerMoveStep && s.Phase == PhaseBoard && s.TurnPhase == TurnMoving:
		return s.step(), nil

	case t.Kind == TimerLanded && s.Phase == PhaseBoard && s.TurnPhase == TurnLanded:
		return s.endTurn(env), nil

	case t.Kind == TimerMinigameTick && s.Phase == PhaseMinigamePlay:
		return s.tickMinigame(env), nil

	case t.Kind == TimerResults && s.Phase == PhaseMinigameResults:
		return s.afterResults(env), nil
	}
	return nil, ErrStaleTimer
}

func (s *State) step() []Event {
	p := &s.Players[s.CurrentPlayer]
	p.Position = s.Board.Next(p.Position)
	s.StepsLeft--

	events := []Event{{Type: EvtPlayerMoved, Slot: p.Slot, Value: p.Position}}
	if s.StepsLeft > 0 {
		return append(events, s.schedule(TimerMoveStep, s.Rules.MoveStep))
	}

	s.enter(PhaseBoard, TurnLanded)
	events = append(events, s.resolveSpace()...)
	return append(events, s.schedule(TimerLanded, s.Rules.LandedDelay))
}

func (s *State) resolveSpace() []Event {
	p := &s.Players[s.CurrentPlayer]
	space := s.Board.Spaces[p.Position]
	before := p.Coins

	var extra []Event
	switch space.Type {
	case SpaceCoin:
		p.Coins += s.Rules.CoinReward
		s.Announcement = fmt.Sprintf("+%d Coins!", s.Rules.CoinReward)
	case SpaceTrap:
		p.Coins = max(0, p.Coins-s.Rules.TrapPenalty)
		s.Announcement = fmt.Sprintf("It's a Trap! -%d Coins", s.Rules.TrapPenalty)
	case SpaceStar:
		if p.Coins >= s.Rules.StarCost {
			p.Coins -= s.Rules.StarCost
			p.Stars++
			s.Announcement = fmt.Sprintf("CROWN BOUGHT! -%d COINS", s.Rules.StarCost)
		} else {
			s.Announcement = fmt.Sprintf("Crown costs %d! Get rich first!", s.Rules.StarCost)
		}
	case SpaceChaos:
		s.Announcement = "CHAOS EVENT TRIGGERED!"
		extra = append(extra, Event{Type: EvtChaosTriggered, Slot: p.Slot, Value: s.Round})
	case SpaceDuel:
		s.Announcement = fmt.Sprintf("%s lands on a duel space!", p.Name)
	default:
		s.Announcement = fmt.Sprintf("%s takes a breather.", p.Name)
	}

	resolved := Event{Type: EvtSpaceResolved, Slot: p.Slot, Value: p.Coins - before, Text: string(space.Type)}
	return append([]Event{resolved}, extra...)
}

func (s *State) endTurn(env Env) []Event {
	s.enter(PhaseBoard, TurnEnd)
	s.CurrentPlayer = (s.CurrentPlayer + 1) % len(s.Players)
	events := []Event{{Type: EvtTurnAdvanced, Slot: s.CurrentPlayer}}

	if s.CurrentPlayer == 0 {
		return append(events, s.selectMinigame(env)...)
	}
	s.enter(PhaseBoard, TurnStart)
	return append(events, s.beginTurn()...)
}

// Minigame cycle

func (s *State) selectMinigame(env Env) []Event {
	desc := Catalog[env.Rand.IntN(len(Catalog))]
	s.Minigame = &desc
	s.Game = nil
	s.enter(PhaseMinigameIntro, TurnStart)
	return []Event{{Type: EvtMinigameSelected, Text: desc.ID}}
}

func (s *State) startMinigame(env Env) ([]Event, error) {
	if s.Phase != PhaseMinigameIntro || s.Minigame == nil {
		return nil, ErrWrongPhase
	}

	participants := make([]minigame.Participant, len(s.Players))
	for i, p := range s.Players {
		participants[i] = minigame.Participant{Slot: p.Slot, Simulated: p.Simulated, Difficulty: p.Difficulty}
	}
	game, err := minigame.Start(s.Minigame.Kind, participants, env.Rand)
	if err != nil {
		return nil, err
	}

	s.Game = game
	s.MinigameStartedAt = env.Now
	s.LastResults = nil
	s.enter(PhaseMinigamePlay, s.TurnPhase)
	return []Event{
		{Type: EvtMinigameStarted, Text: s.Minigame.ID},
		s.schedule(TimerMinigameTick, s.Rules.MinigameTick),
	}, nil
}

func (s *State) minigameInput(slot int, action string, env Env) ([]Event, error) {
	if s.Phase != PhaseMinigamePlay || s.Game == nil {
		return nil, ErrWrongPhase
	}
	if _, err := s.player(slot); err != nil {
		return nil, err
	}

	at := env.Now.Sub(s.MinigameStartedAt)
	if !s.Game.ApplyInput(slot, action, at) {
		return nil, ErrInputIgnored
	}

	events := []Event{{Type: EvtMinigameInput, Slot: slot}}
	if results, done := s.Game.Check(at); done {
		events = append(events, s.finishMinigame(results)...)
	}
	return events, nil
}

func (s *State) tickMinigame(env Env) []Event {
	results, done := s.Game.Check(env.Now.Sub(s.MinigameStartedAt))
	if !done {
		return []Event{s.schedule(TimerMinigameTick, s.Rules.MinigameTick)}
	}
	return s.finishMinigame(results)
}

// Reward is the coin payout for a minigame rank.
func Reward(rank int) int {
	return max(0, 50-10*rank)
}

func (s *State) finishMinigame(results []minigame.Result) []Event {
	s.LastResults = results
	for _, r := range results {
		s.Players[r.Slot].Coins += Reward(r.Rank)
	}

	winner := s.Players[results[0].Slot]
	s.Announcement = fmt.Sprintf("Winner: %s! (+%d Coins)", winner.Name, Reward(1))
	s.Round++

	events := []Event{
		{Type: EvtMinigameCompleted, Slot: winner.Slot, Text: s.Minigame.ID},
		{Type: EvtRoundAdvanced, Value: s.Round},
	}

	if s.Round > s.RoundLimit {
		s.enter(PhaseGameOver, s.TurnPhase)
		s.Announcement = fmt.Sprintf("Game over! %s wins!", Standings(*s)[0].Name)
		return append(events, Event{Type: EvtGameCompleted, Slot: Standings(*s)[0].Slot})
	}

	s.enter(PhaseMinigameResults, s.TurnPhase)
	return append(events, s.schedule(TimerResults, s.Rules.ResultsDelay))
}

func (s *State) afterResults(env Env) []Event {
	if s.Mode == ModeMinigameOnly {
		return s.selectMinigame(env)
	}

	s.Minigame = nil
	s.Game = nil
	s.CurrentPlayer = 0
	s.enter(PhaseBoard, TurnStart)
	return s.beginTurn()
}

// Flavor text only ever touches the announcement.
func (s *State) flavor(token uint64, text string) ([]Event, error) {
	if token != s.Epoch {
		return nil, ErrStaleFlavor
	}
	if text == "" {
		return nil, ErrInputIgnored
	}
	s.Announcement = text
	return []Event{{Type: EvtAnnounced, Text: text}}, nil
}
