// internal/client/client.go
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tar-gezed/odin/internal/auth"
	"github.com/tar-gezed/odin/internal/game"
	"github.com/tar-gezed/odin/internal/models"
	"github.com/tar-gezed/odin/internal/protocol"
)

const writeTimeout = 5 * time.Second

// ErrInvalidPlay wraps a local validation failure so callers can show the
// reason without a server round trip.
type ErrInvalidPlay struct {
	Check game.PlayCheck
}

func (e ErrInvalidPlay) Error() string {
	return fmt.Sprintf("invalid play: %s", e.Check.Reason)
}

// Client connects one player to a room. The host rechecks everything; the
// client validates locally only to give instant feedback.
type Client struct {
	PlayerID string
	Name     string
	RoomCode string
	Store    *StateStore

	// OnError, if set, receives server ERROR payloads.
	OnError func(text string)

	conn   *websocket.Conn
	logger *logrus.Entry
}

// Dial opens the game websocket for a room, authenticating with the session
// token minted by the create or join endpoint.
func Dial(ctx context.Context, baseURL, roomCode, token string, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}
	claims, err := auth.AuthenticateJWT(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/game/ws/" + roomCode
	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"="+token)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"odin"},
		HTTPHeader:   header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial room %s: %w", roomCode, err)
	}

	return &Client{
		PlayerID: claims.PlayerID,
		Name:     claims.Name,
		RoomCode: roomCode,
		Store:    NewStateStore(),
		conn:     conn,
		logger:   logger.WithFields(logrus.Fields{"room": roomCode, "player": claims.PlayerID}),
	}, nil
}

// Listen reads host messages into the store until the connection drops or
// ctx ends. Run it on its own goroutine.
func (c *Client) Listen(ctx context.Context) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warnf("invalid message from host: %v", err)
			continue
		}

		switch msg.Type {
		case protocol.MsgGameState:
			var st models.GameState
			if err := msg.DecodePayload(&st); err != nil {
				c.logger.Warnf("bad GAME_STATE payload: %v", err)
				continue
			}
			c.Store.ApplySnapshot(st)

		case protocol.MsgPrivateHand:
			var hand []models.Card
			if err := msg.DecodePayload(&hand); err != nil {
				c.logger.Warnf("bad PRIVATE_HAND payload: %v", err)
				continue
			}
			c.Store.SetHand(hand)

		case protocol.MsgPlayResult:
			var res protocol.PlayResultPayload
			if err := msg.DecodePayload(&res); err != nil {
				c.logger.Warnf("bad PLAY_RESULT payload: %v", err)
				continue
			}
			c.Store.ApplyPlayResult(res)

		case protocol.MsgError:
			var text string
			if err := msg.DecodePayload(&text); err != nil {
				continue
			}
			c.logger.Warnf("server error: %s", text)
			if c.OnError != nil {
				c.OnError(text)
			}

		default:
			c.logger.Warnf("unexpected message type from host: %s", msg.Type)
		}
	}
}

// Join claims this player's seat in the room.
func (c *Client) Join(ctx context.Context) error {
	return c.send(ctx, protocol.MustNew(protocol.MsgJoinRequest, models.Player{
		ID:   c.PlayerID,
		Name: c.Name,
	}))
}

// StartGame asks the host to begin the first round. Host-only.
func (c *Client) StartGame(ctx context.Context) error {
	return c.send(ctx, protocol.MustNew(protocol.MsgStartGame, nil))
}

// NextRound asks the host to deal the next round. Host-only.
func (c *Client) NextRound(ctx context.Context) error {
	return c.send(ctx, protocol.MustNew(protocol.MsgNextRound, nil))
}

// PlayCards validates the play against the mirrored state, then submits it.
// The whole-hand opening restriction applies here, with the real hand size,
// before anything reaches the host.
func (c *Client) PlayCards(ctx context.Context, cards []models.Card, pickUpCardID string) error {
	top := c.Store.TopSet()
	check := game.ValidatePlay(cards, top, len(c.Store.Hand()))
	if !check.Valid {
		return ErrInvalidPlay{Check: check}
	}
	if len(top) > 0 && len(cards) < len(c.Store.Hand()) && pickUpCardID == "" {
		return fmt.Errorf("a pick-up card must be chosen from the current top set")
	}
	return c.send(ctx, protocol.MustNew(protocol.MsgPlay, protocol.PlayPayload{
		Cards:        cards,
		PickUpCardID: pickUpCardID,
	}))
}

// Pass submits a pass for this player's turn.
func (c *Client) Pass(ctx context.Context) error {
	return c.send(ctx, protocol.MustNew(protocol.MsgPass, nil))
}

// Close tears down the websocket.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Client) send(ctx context.Context, msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}
