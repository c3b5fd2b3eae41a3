// Package protocol defines the game-level message envelope carried over the
// per-peer duplex channel. Framing and transport live in the handlers and
// client packages; everything here is plain JSON.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tar-gezed/odin/internal/models"
)

// MessageType discriminates the envelope payload.
type MessageType string

const (
	// Client to host.
	MsgJoinRequest MessageType = "JOIN_REQUEST"        // payload: models.Player
	MsgPlay        MessageType = "PLAYER_ACTION_PLAY"  // payload: PlayPayload
	MsgPass        MessageType = "PLAYER_ACTION_PASS"  // no payload
	MsgStartGame   MessageType = "START_GAME"          // host-only, no payload
	MsgNextRound   MessageType = "NEXT_ROUND"          // host-only, no payload

	// Host to client.
	MsgGameState   MessageType = "GAME_STATE"   // payload: models.GameState
	MsgPrivateHand MessageType = "PRIVATE_HAND" // payload: []models.Card
	MsgPlayResult  MessageType = "PLAY_RESULT"  // payload: PlayResultPayload
	MsgError       MessageType = "ERROR"        // payload: string
)

// Message is the wire envelope. Payload stays raw until the receiver knows
// the type.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PlayPayload carries a play intent: the cards the player wants to put down
// and, when the superseded top set is non-empty, the id of the one card the
// player takes into hand.
type PlayPayload struct {
	Cards        []models.Card `json:"cards"`
	PickUpCardID string        `json:"pickUpCardId,omitempty"`
}

// PlayResultPayload is the private hand delta sent back to the player whose
// play was committed: remove the played ids, append the pick-up if present.
type PlayResultPayload struct {
	PlayedCardIDs []string     `json:"playedCardIds"`
	PickUpCard    *models.Card `json:"pickUpCard,omitempty"`
}

// New builds an envelope with a marshaled payload. A nil payload yields an
// envelope with no payload field (PASS, START_GAME, NEXT_ROUND).
func New(t MessageType, payload interface{}) (Message, error) {
	msg := Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	msg.Payload = data
	return msg, nil
}

// MustNew is New for payloads that cannot fail to marshal (our own structs).
func MustNew(t MessageType, payload interface{}) Message {
	msg, err := New(t, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// DecodePayload unmarshals the payload into dst.
func (m Message) DecodePayload(dst interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// NewError builds an ERROR envelope with a plain string payload.
func NewError(text string) Message {
	return MustNew(MsgError, text)
}
