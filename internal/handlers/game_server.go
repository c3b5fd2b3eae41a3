// internal/handlers/game_server.go
package handlers

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tar-gezed/odin/internal/game"
	"github.com/tar-gezed/odin/internal/journal"
	"github.com/tar-gezed/odin/internal/models"
)

// GameServer owns the room store and the per-room plumbing: it spawns an
// engine goroutine for each room, wires its broadcast callbacks to the
// websocket peer registry, and tears everything down when the room empties.
type GameServer struct {
	Rooms   *game.Store
	Logger  *logrus.Logger
	Journal *journal.Journal

	// SaveResult persists a finished game. Nil disables persistence.
	SaveResult func(ctx context.Context, final models.GameState) error

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	peers   map[string]*peerSet
}

func NewGameServer(logger *logrus.Logger, jr *journal.Journal) *GameServer {
	if logger == nil {
		logger = logrus.New()
	}
	return &GameServer{
		Rooms:   game.NewStore(),
		Logger:  logger,
		Journal: jr,
		cancels: make(map[string]context.CancelFunc),
		peers:   make(map[string]*peerSet),
	}
}

// CreateRoom registers a new room hosted by the given player, wires its
// callbacks, and starts the engine loop. The broadcast functions are
// installed before Run starts, so the engine never sees them nil.
func (gs *GameServer) CreateRoom(host models.Player) (*game.Game, error) {
	g, err := gs.Rooms.Create(host, gs.Logger, gs.Journal)
	if err != nil {
		return nil, err
	}

	peers := newPeerSet()
	g.BroadcastFn = createBroadcastFunc(peers, g.RoomCode, gs.Logger)
	g.SendToFn = createSendToFunc(peers, g.RoomCode, gs.Logger)
	g.OnEmpty = gs.dropRoom
	g.OnGameEnd = func(final models.GameState) {
		if gs.SaveResult == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), saveResultTimeout)
			defer cancel()
			if err := gs.SaveResult(ctx, final); err != nil {
				gs.Logger.WithField("room", final.RoomCode).Errorf("failed to persist game result: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	gs.mu.Lock()
	gs.cancels[g.RoomCode] = cancel
	gs.peers[g.RoomCode] = peers
	gs.mu.Unlock()

	go g.Run(ctx)
	gs.Logger.WithField("room", g.RoomCode).Infof("room created by %s", host.ID)
	return g, nil
}

// peersFor returns the websocket registry for a live room.
func (gs *GameServer) peersFor(roomCode string) (*peerSet, bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	ps, ok := gs.peers[roomCode]
	return ps, ok
}

// dropRoom stops the engine loop and forgets the room. Invoked by the engine
// when its last connected peer leaves.
func (gs *GameServer) dropRoom(roomCode string) {
	gs.Rooms.Delete(roomCode)

	gs.mu.Lock()
	cancel := gs.cancels[roomCode]
	delete(gs.cancels, roomCode)
	delete(gs.peers, roomCode)
	gs.mu.Unlock()

	if cancel != nil {
		// The engine is mid-dispatch on this intent; cancel asynchronously so
		// Run can finish it and exit.
		go cancel()
	}
	gs.Logger.WithField("room", roomCode).Info("room emptied, shutting down")
}
