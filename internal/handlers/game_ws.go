// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tar-gezed/odin/internal/auth"
	"github.com/tar-gezed/odin/internal/game"
	"github.com/tar-gezed/odin/internal/middleware"
	"github.com/tar-gezed/odin/internal/models"
	"github.com/tar-gezed/odin/internal/protocol"
)

const (
	// wsSubprotocol must be requested by every game client.
	wsSubprotocol = "odin"

	broadcastWriteTimeout = 3 * time.Second
	privateWriteTimeout   = 5 * time.Second
	saveResultTimeout     = 10 * time.Second
)

// peerSet tracks the live websocket connection per player in one room. A
// reconnect replaces the previous connection.
type peerSet struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newPeerSet() *peerSet {
	return &peerSet{conns: make(map[string]*websocket.Conn)}
}

func (ps *peerSet) set(playerID string, c *websocket.Conn) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.conns[playerID] = c
}

// remove drops the registration only if it still points at c, so a stale
// goroutine cannot evict a fresh reconnect.
func (ps *peerSet) remove(playerID string, c *websocket.Conn) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.conns[playerID] == c {
		delete(ps.conns, playerID)
	}
}

func (ps *peerSet) get(playerID string) (*websocket.Conn, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	c, ok := ps.conns[playerID]
	return c, ok
}

func (ps *peerSet) all() []*websocket.Conn {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	conns := make([]*websocket.Conn, 0, len(ps.conns))
	for _, c := range ps.conns {
		conns = append(conns, c)
	}
	return conns
}

// createBroadcastFunc builds the engine's BroadcastFn: marshal once, then
// fan out asynchronously so the engine loop never blocks on a slow socket.
func createBroadcastFunc(peers *peerSet, roomCode string, logger *logrus.Logger) func(protocol.Message) {
	return func(msg protocol.Message) {
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Errorf("failed to marshal broadcast %s for room %s: %v", msg.Type, roomCode, err)
			return
		}
		conns := peers.all()
		go func() {
			for _, c := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), broadcastWriteTimeout)
				err := c.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					logger.Warnf("failed to write broadcast to a peer in room %s: %v", roomCode, err)
				}
			}
		}()
	}
}

// createSendToFunc builds the engine's SendToFn for private messages (hands,
// play results, join errors). Same async contract as the broadcast path.
func createSendToFunc(peers *peerSet, roomCode string, logger *logrus.Logger) func(string, protocol.Message) {
	return func(playerID string, msg protocol.Message) {
		c, ok := peers.get(playerID)
		if !ok {
			logger.Warnf("no connection for player %s in room %s, dropping %s", playerID, roomCode, msg.Type)
			return
		}
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Errorf("failed to marshal private %s for player %s: %v", msg.Type, playerID, err)
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), privateWriteTimeout)
			defer cancel()
			if err := c.Write(ctx, websocket.MessageText, data); err != nil {
				logger.Warnf("failed to write private message to player %s in room %s: %v", playerID, roomCode, err)
			}
		}()
	}
}

// GameWSHandler upgrades the HTTP connection to WebSocket for a specific
// room. The caller must already hold a session cookie minted by the create
// or join endpoint; the websocket itself never mints identity.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomCode := strings.TrimPrefix(r.URL.Path, "/game/ws/")
		if roomCode == "" || strings.Contains(roomCode, "/") {
			http.Error(w, "Missing room code in path (/game/ws/{code})", http.StatusBadRequest)
			return
		}

		g, ok := gs.Rooms.Get(roomCode)
		if !ok {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		peers, ok := gs.peersFor(roomCode)
		if !ok {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}

		claims, err := auth.FromRequest(r)
		if err != nil {
			logger.Warnf("unauthenticated websocket attempt for room %s: %v", roomCode, err)
			http.Error(w, "Missing or invalid session token", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{wsSubprotocol},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for room %s: %v", roomCode, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != wsSubprotocol {
			logger.Warnf("client for room %s connected with invalid subprotocol: %s", roomCode, c.Subprotocol())
			c.Close(websocket.StatusPolicyViolation, "Client must use the 'odin' subprotocol.")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, roomCode)

		peers.set(claims.PlayerID, c)
		g.Join(models.Player{ID: claims.PlayerID, Name: claims.Name})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readErr := readGameMessages(ctx, c, g, claims.PlayerID, logger)

		peers.remove(claims.PlayerID, c)
		g.Leave(claims.PlayerID)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, roomCode, readErr)
	}
}

// readGameMessages reads envelopes off the socket and enqueues the matching
// engine intents until the connection drops or the context ends. Returns the
// terminal read error, nil for a normal closure.
func readGameMessages(ctx context.Context, c *websocket.Conn, g *game.Game, playerID string, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			if strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}

		if msgType != websocket.MessageText {
			logger.Warnf("received non-text message from player %s, ignoring", playerID)
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("invalid JSON from player %s: %v", playerID, err)
			sendWsError(c, "Invalid JSON format.")
			continue
		}

		switch msg.Type {
		case protocol.MsgJoinRequest:
			// The seat identity always comes from the session token; the
			// payload may only refresh the display name.
			var p models.Player
			if err := msg.DecodePayload(&p); err != nil {
				sendWsError(c, "Invalid JOIN_REQUEST payload.")
				continue
			}
			g.Join(models.Player{ID: playerID, Name: p.Name})

		case protocol.MsgPlay:
			var payload protocol.PlayPayload
			if err := msg.DecodePayload(&payload); err != nil {
				sendWsError(c, "Invalid PLAYER_ACTION_PLAY payload.")
				continue
			}
			g.Play(playerID, payload)

		case protocol.MsgPass:
			g.Pass(playerID)

		case protocol.MsgStartGame:
			g.Start(playerID)

		case protocol.MsgNextRound:
			g.NextRound(playerID)

		default:
			logger.Warnf("unknown message type '%s' from player %s", msg.Type, playerID)
			sendWsError(c, "Unknown message type: "+string(msg.Type))
		}
	}
}

// sendWsError writes an ERROR envelope directly on the connection. Used for
// transport-level problems the engine never sees.
func sendWsError(c *websocket.Conn, text string) {
	data, err := json.Marshal(protocol.NewError(text))
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), privateWriteTimeout)
	defer cancel()
	_ = c.Write(ctx, websocket.MessageText, data)
}
