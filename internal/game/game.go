// internal/game/game.go
package game

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tar-gezed/odin/internal/deck"
	"github.com/tar-gezed/odin/internal/journal"
	"github.com/tar-gezed/odin/internal/models"
	"github.com/tar-gezed/odin/internal/protocol"
)

const (
	cardsPerHand = 9
	gameEndScore = 15

	// maxPlayers is bounded by the deal: 54 cards, 9 per player.
	maxPlayers = deck.Size / cardsPerHand

	inboxSize = 64
)

type intentType int

const (
	intentJoin intentType = iota
	intentStart
	intentPlay
	intentPass
	intentNextRound
	intentLeave
	intentSnapshot
)

// intent is one unit of work for the engine loop. Transport goroutines build
// intents and enqueue them; only the loop touches game state.
type intent struct {
	typ      intentType
	playerID string
	player   models.Player        // join
	play     protocol.PlayPayload // play
	reply    chan models.GameState
}

// Game is the authoritative engine for a single room. It owns the only
// writable GameState. Intents arrive over a serialized inbox and are
// processed to completion (validate, mutate, broadcast) one at a time by the
// Run loop, so no further locking is needed.
type Game struct {
	RoomCode string

	// BroadcastFn pushes a message to every connected peer. It is called from
	// the engine loop and must not block; the transport layer installs an
	// async implementation before any peer attaches.
	BroadcastFn func(msg protocol.Message)

	// SendToFn pushes a message to a single peer (private hands, play
	// results, join errors). Same non-blocking contract as BroadcastFn.
	SendToFn func(playerID string, msg protocol.Message)

	// OnGameEnd, if set, receives a final snapshot when the phase reaches
	// GAME_END. Used to hand results to persistence without coupling the
	// engine to a database.
	OnGameEnd func(final models.GameState)

	// OnEmpty, if set, is invoked when the last connected peer leaves, so the
	// owning store can drop the room.
	OnEmpty func(roomCode string)

	logger      *logrus.Entry
	journal     *journal.Journal
	actionIndex int

	inbox chan intent
	state models.GameState
}

// New creates a room in the LOBBY phase with the host seated first. The host
// is marked disconnected until its channel attaches and it joins like any
// other peer.
func New(roomCode string, host models.Player, logger *logrus.Logger, jr *journal.Journal) *Game {
	if logger == nil {
		logger = logrus.New()
	}
	host.IsHost = true
	host.HandCount = 0
	host.Score = 0
	host.Connected = false

	return &Game{
		RoomCode: roomCode,
		logger:   logger.WithField("room", roomCode),
		journal:  jr,
		inbox:    make(chan intent, inboxSize),
		state: models.GameState{
			RoomCode: roomCode,
			HostID:   host.ID,
			Phase:    models.PhaseLobby,
			Players:  []models.Player{host},
		},
	}
}

// Run drains the intent inbox until ctx is cancelled. All state mutation
// happens on this goroutine.
func (g *Game) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-g.inbox:
			g.dispatch(in)
		}
	}
}

func (g *Game) dispatch(in intent) {
	switch in.typ {
	case intentJoin:
		g.handleJoin(in.player)
	case intentStart:
		g.handleStart(in.playerID)
	case intentPlay:
		g.handlePlay(in.playerID, in.play)
	case intentPass:
		g.handlePass(in.playerID)
	case intentNextRound:
		g.handleNextRound(in.playerID)
	case intentLeave:
		g.handleLeave(in.playerID)
	case intentSnapshot:
		in.reply <- g.state.Clone()
	}
}

// Join enqueues a join (or rejoin) request for the given player.
func (g *Game) Join(p models.Player) {
	g.inbox <- intent{typ: intentJoin, player: p}
}

// Start enqueues the host-only START command.
func (g *Game) Start(playerID string) {
	g.inbox <- intent{typ: intentStart, playerID: playerID}
}

// Play enqueues a play intent.
func (g *Game) Play(playerID string, payload protocol.PlayPayload) {
	g.inbox <- intent{typ: intentPlay, playerID: playerID, play: payload}
}

// Pass enqueues a pass intent.
func (g *Game) Pass(playerID string) {
	g.inbox <- intent{typ: intentPass, playerID: playerID}
}

// NextRound enqueues the host-only NEXT_ROUND command.
func (g *Game) NextRound(playerID string) {
	g.inbox <- intent{typ: intentNextRound, playerID: playerID}
}

// Leave enqueues a departure notice for the given player.
func (g *Game) Leave(playerID string) {
	g.inbox <- intent{typ: intentLeave, playerID: playerID}
}

// Snapshot returns a deep copy of the current public state, serialized
// through the engine loop like any other intent.
func (g *Game) Snapshot(ctx context.Context) (models.GameState, error) {
	reply := make(chan models.GameState, 1)
	select {
	case g.inbox <- intent{typ: intentSnapshot, reply: reply}:
	case <-ctx.Done():
		return models.GameState{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return models.GameState{}, ctx.Err()
	}
}

// --- intent handlers; all run on the loop goroutine ---

func (g *Game) handleJoin(p models.Player) {
	if idx := g.state.PlayerIndex(p.ID); idx != -1 {
		// Known seat reattaching. Seat order, hand count and score survive;
		// only the link status changes.
		g.state.Players[idx].Connected = true
		if p.Name != "" {
			g.state.Players[idx].Name = p.Name
		}
		g.logIntent(p.ID, "player_rejoin", nil, true)
		g.broadcastState()
		return
	}

	if g.state.Phase != models.PhaseLobby {
		g.logger.Warnf("join from %s rejected: game already started", p.ID)
		g.sendTo(p.ID, protocol.NewError("Game already started"))
		return
	}
	if len(g.state.Players) >= maxPlayers {
		g.logger.Warnf("join from %s rejected: room is full", p.ID)
		g.sendTo(p.ID, protocol.NewError("Room is full"))
		return
	}

	p.IsHost = p.ID == g.state.HostID
	p.HandCount = 0
	p.Score = 0
	p.Connected = true
	g.state.Players = append(g.state.Players, p)
	g.logIntent(p.ID, "player_join", map[string]interface{}{"name": p.Name}, true)
	g.broadcastState()
}

func (g *Game) handleStart(playerID string) {
	if playerID != g.state.HostID {
		g.logger.Warnf("start from %s ignored: not the host", playerID)
		return
	}
	if g.state.Phase != models.PhaseLobby {
		g.logger.Warnf("start ignored: phase is %s", g.state.Phase)
		return
	}
	if len(g.state.Players) < 2 {
		g.logger.Warn("start ignored: need at least 2 players")
		return
	}

	g.dealHands()
	g.state.Phase = models.PhasePlaying
	g.state.CenterStack = nil
	g.state.ConsecutivePasses = 0
	starter := g.state.Players[0].ID
	g.state.CurrentPlayerID = starter
	g.state.LastRoundFirstPlayerID = starter

	g.logIntent(playerID, "game_start", map[string]interface{}{"players": len(g.state.Players)}, true)
	g.broadcastState()
}

// dealHands builds a fresh shuffled deck and deals 9 cards to every seat,
// each hand delivered privately. The undealt remainder is tracked only as a
// count; it is never drawn from during play.
func (g *Game) dealHands() {
	cards := deck.New()
	for i := range g.state.Players {
		hand := cards[:cardsPerHand]
		cards = cards[cardsPerHand:]
		g.state.Players[i].HandCount = cardsPerHand
		g.sendTo(g.state.Players[i].ID, protocol.MustNew(protocol.MsgPrivateHand, hand))
	}
	g.state.DeckSize = len(cards)
}

func (g *Game) handlePlay(playerID string, payload protocol.PlayPayload) {
	if g.state.Phase != models.PhasePlaying || playerID != g.state.CurrentPlayerID {
		g.logger.Warnf("play from %s ignored: not their turn", playerID)
		g.logIntent(playerID, "play_rejected_turn", nil, false)
		return
	}
	idx := g.state.PlayerIndex(playerID)

	// Sets live on the center stack highest-value first.
	cards := make([]models.Card, len(payload.Cards))
	copy(cards, payload.Cards)
	deck.SortDescending(cards)

	top := g.state.TopSet()
	check := ValidatePlay(cards, top, 0)
	if !check.Valid {
		g.logger.Warnf("invalid play by %s dropped: %s", playerID, check.Reason)
		g.logIntent(playerID, "play_rejected_rule", map[string]interface{}{"reason": string(check.Reason)}, false)
		return
	}

	newCount := g.state.Players[idx].HandCount - len(cards)
	if newCount < 0 {
		// The client claims more cards than the authoritative count allows.
		g.logger.Warnf("play by %s dropped: %d cards against hand count %d",
			playerID, len(cards), g.state.Players[idx].HandCount)
		g.logIntent(playerID, "play_rejected_count", nil, false)
		return
	}

	playedIDs := make([]string, len(cards))
	for i, c := range cards {
		playedIDs[i] = c.ID
	}

	if newCount == 0 {
		// The play empties the hand: the round ends immediately and no
		// pick-up is required, even over a non-empty top set.
		g.state.Players[idx].HandCount = 0
		g.state.CenterStack = append(g.state.CenterStack, cards)
		g.state.ConsecutivePasses = 0
		g.sendTo(playerID, protocol.MustNew(protocol.MsgPlayResult,
			protocol.PlayResultPayload{PlayedCardIDs: playedIDs}))
		g.logIntent(playerID, "play", map[string]interface{}{
			"cards": len(cards), "value": check.PlayedValue, "emptiedHand": true,
		}, true)
		g.broadcastState()
		g.endRound()
		return
	}

	var pickUp *models.Card
	if len(top) > 0 {
		if payload.PickUpCardID == "" {
			g.logger.Warnf("play by %s dropped: pick-up required over a non-empty top set", playerID)
			g.logIntent(playerID, "play_rejected_pickup", nil, false)
			return
		}
		for i := range top {
			if top[i].ID == payload.PickUpCardID {
				c := top[i]
				pickUp = &c
				break
			}
		}
		if pickUp == nil {
			g.logger.Warnf("play by %s dropped: pick-up card %s not in the top set",
				playerID, payload.PickUpCardID)
			g.logIntent(playerID, "play_rejected_pickup", map[string]interface{}{
				"pickUpCardId": payload.PickUpCardID,
			}, false)
			return
		}
		newCount++
	}

	g.state.Players[idx].HandCount = newCount
	g.state.CenterStack = append(g.state.CenterStack, cards)
	g.state.CurrentPlayerID = g.state.NextPlayerID(playerID)
	g.state.ConsecutivePasses = 0
	g.sendTo(playerID, protocol.MustNew(protocol.MsgPlayResult,
		protocol.PlayResultPayload{PlayedCardIDs: playedIDs, PickUpCard: pickUp}))
	g.logIntent(playerID, "play", map[string]interface{}{
		"cards": len(cards), "value": check.PlayedValue, "pickUp": pickUp != nil,
	}, true)
	g.broadcastState()
}

func (g *Game) handlePass(playerID string) {
	if g.state.Phase != models.PhasePlaying || playerID != g.state.CurrentPlayerID {
		g.logger.Warnf("pass from %s ignored: not their turn", playerID)
		g.logIntent(playerID, "pass_rejected_turn", nil, false)
		return
	}

	g.state.ConsecutivePasses++
	next := g.state.NextPlayerID(playerID)
	trickCleared := false
	if g.state.ConsecutivePasses >= len(g.state.Players)-1 {
		// Everyone else has passed since the last play: the trick resets but
		// the round keeps going.
		g.state.ConsecutivePasses = 0
		g.state.CenterStack = nil
		trickCleared = true
	}
	g.state.CurrentPlayerID = next

	g.logIntent(playerID, "pass", map[string]interface{}{"trickCleared": trickCleared}, true)
	g.broadcastState()
}

// endRound applies per-round scoring and decides whether the game is over.
// The emptied hand contributes zero; every other seat adds its hand count.
func (g *Game) endRound() {
	gameOver := false
	for i := range g.state.Players {
		g.state.Players[i].Score += g.state.Players[i].HandCount
		if g.state.Players[i].Score >= gameEndScore {
			gameOver = true
		}
	}

	if gameOver {
		g.state.Phase = models.PhaseGameEnd
		winner := g.state.Players[0]
		for _, p := range g.state.Players[1:] {
			// Strict less-than keeps the earliest seat on ties.
			if p.Score < winner.Score {
				winner = p
			}
		}
		g.state.WinnerID = winner.ID
	} else {
		g.state.Phase = models.PhaseRoundEnd
	}

	g.logIntent("", "round_end", map[string]interface{}{"phase": string(g.state.Phase)}, true)
	g.broadcastState()

	if gameOver && g.OnGameEnd != nil {
		g.OnGameEnd(g.state.Clone())
	}
}

func (g *Game) handleNextRound(playerID string) {
	if playerID != g.state.HostID {
		g.logger.Warnf("next round from %s ignored: not the host", playerID)
		return
	}
	if g.state.Phase != models.PhaseRoundEnd && g.state.Phase != models.PhaseGameEnd {
		g.logger.Warnf("next round ignored: phase is %s", g.state.Phase)
		return
	}

	g.dealHands()
	g.state.CenterStack = nil
	g.state.ConsecutivePasses = 0

	// The starting seat rotates round over round, regardless of who played
	// last: whoever sits after the previous round's starter opens.
	prev := g.state.LastRoundFirstPlayerID
	if prev == "" {
		prev = g.state.Players[0].ID
	}
	starter := g.state.NextPlayerID(prev)
	g.state.CurrentPlayerID = starter
	g.state.LastRoundFirstPlayerID = starter
	g.state.Phase = models.PhasePlaying

	g.logIntent(playerID, "next_round", map[string]interface{}{"starter": starter}, true)
	g.broadcastState()
}

func (g *Game) handleLeave(playerID string) {
	idx := g.state.PlayerIndex(playerID)
	if idx == -1 {
		return
	}

	if g.state.Phase == models.PhaseLobby && playerID != g.state.HostID {
		// Seats only become fixed once play begins.
		g.state.Players = append(g.state.Players[:idx], g.state.Players[idx+1:]...)
	} else {
		g.state.Players[idx].Connected = false
	}
	g.logIntent(playerID, "player_leave", nil, true)

	for _, p := range g.state.Players {
		if p.Connected {
			g.broadcastState()
			return
		}
	}
	if g.OnEmpty != nil {
		g.OnEmpty(g.RoomCode)
	}
}

// broadcastState pushes a full-state snapshot to every peer. No incremental
// diffing: snapshots are wholesale replacements, which makes replays and
// duplicate deliveries harmless.
func (g *Game) broadcastState() {
	if g.BroadcastFn == nil {
		g.logger.Warn("BroadcastFn is nil, state not replicated")
		return
	}
	g.BroadcastFn(protocol.MustNew(protocol.MsgGameState, g.state.Clone()))
}

func (g *Game) sendTo(playerID string, msg protocol.Message) {
	if g.SendToFn == nil {
		g.logger.Warnf("SendToFn is nil, cannot deliver %s to %s", msg.Type, playerID)
		return
	}
	g.SendToFn(playerID, msg)
}

// logIntent records an intent outcome to the action journal, rejections
// included, for audit. Publishing happens off the loop goroutine.
func (g *Game) logIntent(actorID, action string, payload map[string]interface{}, committed bool) {
	g.actionIndex++
	if g.journal == nil {
		return
	}
	rec := journal.Record{
		RoomCode:    g.RoomCode,
		ActionIndex: g.actionIndex,
		ActorID:     actorID,
		ActionType:  action,
		Payload:     payload,
		Committed:   committed,
		Timestamp:   time.Now().UnixMilli(),
	}
	logger := g.logger
	jr := g.journal
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := jr.Publish(ctx, rec); err != nil {
			logger.Warnf("journal publish failed: %v", err)
		}
	}()
}
