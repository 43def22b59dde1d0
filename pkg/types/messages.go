// Package types holds the wire format spoken between the host and its
// controllers. Every frame is a JSON Envelope; the payload shape depends on
// Type.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownMessage = errors.New("unknown message type")

type MessageType string

// Controller -> Host
//
//	JOIN_REQUEST  { name }
//	CLIENT_INPUT  { playerId, action }   action is ROLL or a minigame token
//
// Host -> Controller
//
//	JOIN_ACK      { playerId, status, reason? }
//	GAME_UPDATE   GameUpdate
const (
	MsgJoinRequest MessageType = "JOIN_REQUEST"
	MsgJoinAck     MessageType = "JOIN_ACK"
	MsgClientInput MessageType = "CLIENT_INPUT"
	MsgGameUpdate  MessageType = "GAME_UPDATE"
)

type Envelope struct {
	Type     MessageType     `json:"type"`
	RoomCode string          `json:"roomCode,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type JoinStatus string

const (
	JoinOK   JoinStatus = "OK"
	JoinFail JoinStatus = "FAIL"
)

type JoinAck struct {
	PlayerID int        `json:"playerId"`
	Status   JoinStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`
}

const ActionRoll = "ROLL"

type ClientInput struct {
	PlayerID int    `json:"playerId"`
	Action   string `json:"action"`
}

// Encode wraps payload in an envelope and marshals it.
func Encode(t MessageType, roomCode string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, RoomCode: roomCode, Payload: raw})
}

// Decode unmarshals an envelope and its payload into the matching struct.
// It returns one of *JoinRequest, *JoinAck, *ClientInput or *GameUpdate.
func Decode(b []byte) (Envelope, any, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, nil, err
	}

	var payload any
	switch env.Type {
	case MsgJoinRequest:
		payload = &JoinRequest{}
	case MsgJoinAck:
		payload = &JoinAck{}
	case MsgClientInput:
		payload = &ClientInput{}
	case MsgGameUpdate:
		payload = &GameUpdate{}
	default:
		return env, nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return env, nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return env, payload, nil
}
