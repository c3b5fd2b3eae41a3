// internal/game/game_test.go
package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tar-gezed/odin/internal/models"
	"github.com/tar-gezed/odin/internal/protocol"
)

// mockBroadcaster collects outgoing messages instead of sending them over WS.
type mockBroadcaster struct {
	mu          sync.Mutex
	allMessages []protocol.Message
	playerInbox map[string][]protocol.Message
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{playerInbox: make(map[string][]protocol.Message)}
}

func (mb *mockBroadcaster) broadcastFn(msg protocol.Message) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allMessages = append(mb.allMessages, msg)
}

func (mb *mockBroadcaster) sendToFn(playerID string, msg protocol.Message) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerInbox[playerID] = append(mb.playerInbox[playerID], msg)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allMessages = nil
	mb.playerInbox = make(map[string][]protocol.Message)
}

func (mb *mockBroadcaster) broadcastCount() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.allMessages)
}

// lastState decodes the most recent GAME_STATE broadcast.
func (mb *mockBroadcaster) lastState(t *testing.T) models.GameState {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.allMessages) - 1; i >= 0; i-- {
		if mb.allMessages[i].Type == protocol.MsgGameState {
			var st models.GameState
			require.NoError(t, mb.allMessages[i].DecodePayload(&st))
			return st
		}
	}
	t.Fatal("no GAME_STATE broadcast recorded")
	return models.GameState{}
}

// lastTo decodes the most recent private message of the given type sent to a
// player, or returns false.
func (mb *mockBroadcaster) lastTo(playerID string, msgType protocol.MessageType) (protocol.Message, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	inbox := mb.playerInbox[playerID]
	for i := len(inbox) - 1; i >= 0; i-- {
		if inbox[i].Type == msgType {
			return inbox[i], true
		}
	}
	return protocol.Message{}, false
}

// setupLobby creates a room with numPlayers seated, host first, handlers
// driven directly rather than through the Run loop.
func setupLobby(t *testing.T, numPlayers int) (*Game, []string, *mockBroadcaster) {
	require.GreaterOrEqual(t, numPlayers, 1)

	ids := make([]string, numPlayers)
	for i := range ids {
		ids[i] = uuid.NewString()
	}

	g := New("4242", models.Player{ID: ids[0], Name: "host"}, logrus.New(), nil)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.SendToFn = mb.sendToFn

	g.handleJoin(models.Player{ID: ids[0], Name: "host"})
	for i := 1; i < numPlayers; i++ {
		g.handleJoin(models.Player{ID: ids[i], Name: "guest"})
	}
	return g, ids, mb
}

func setupPlaying(t *testing.T, numPlayers int) (*Game, []string, *mockBroadcaster) {
	g, ids, mb := setupLobby(t, numPlayers)
	g.handleStart(ids[0])
	require.Equal(t, models.PhasePlaying, g.state.Phase)
	mb.clear()
	return g, ids, mb
}

func card(value int, color models.Color) models.Card {
	return models.Card{ID: uuid.NewString(), Value: value, Color: color}
}

func TestJoinSeatsPlayersAndBroadcasts(t *testing.T) {
	g, ids, mb := setupLobby(t, 3)

	st := mb.lastState(t)
	require.Len(t, st.Players, 3)
	assert.Equal(t, ids[0], st.HostID)
	assert.True(t, st.Players[0].IsHost)
	assert.False(t, st.Players[1].IsHost)
	assert.Equal(t, models.PhaseLobby, st.Phase)
	for _, p := range st.Players {
		assert.True(t, p.Connected)
	}

	// The same player joining again is a reconnect, not a new seat.
	g.handleJoin(models.Player{ID: ids[1], Name: "guest"})
	assert.Len(t, g.state.Players, 3)
}

func TestJoinAfterStartRejected(t *testing.T) {
	g, _, mb := setupPlaying(t, 2)

	late := uuid.NewString()
	g.handleJoin(models.Player{ID: late, Name: "late"})

	assert.Len(t, g.state.Players, 2)
	_, gotErr := mb.lastTo(late, protocol.MsgError)
	assert.True(t, gotErr, "late joiner should receive an ERROR")
}

func TestStartDealsNineEach(t *testing.T) {
	g, ids, mb := setupLobby(t, 3)
	g.handleStart(ids[0])

	st := mb.lastState(t)
	assert.Equal(t, models.PhasePlaying, st.Phase)
	assert.Equal(t, ids[0], st.CurrentPlayerID)
	assert.Equal(t, ids[0], st.LastRoundFirstPlayerID)
	assert.Equal(t, 54-3*9, st.DeckSize)
	assert.Zero(t, st.ConsecutivePasses)
	assert.Empty(t, st.CenterStack)

	seen := make(map[string]bool)
	for _, id := range ids {
		msg, ok := mb.lastTo(id, protocol.MsgPrivateHand)
		require.True(t, ok, "every seat gets a private hand")
		var hand []models.Card
		require.NoError(t, msg.DecodePayload(&hand))
		require.Len(t, hand, 9)
		for _, c := range hand {
			assert.False(t, seen[c.ID], "dealt cards must not repeat across hands")
			seen[c.ID] = true
		}
	}
	for _, p := range st.Players {
		assert.Equal(t, 9, p.HandCount)
	}
}

func TestStartGuards(t *testing.T) {
	g, ids, mb := setupLobby(t, 2)
	mb.clear()

	// Only the host can start.
	g.handleStart(ids[1])
	assert.Equal(t, models.PhaseLobby, g.state.Phase)
	assert.Zero(t, mb.broadcastCount())

	// Not with a single player.
	solo, soloIDs, soloMb := setupLobby(t, 1)
	soloMb.clear()
	solo.handleStart(soloIDs[0])
	assert.Equal(t, models.PhaseLobby, solo.state.Phase)

	// Host with two players starts; starting again is ignored.
	g.handleStart(ids[0])
	require.Equal(t, models.PhasePlaying, g.state.Phase)
	before := g.state.Players[0].HandCount
	g.handleStart(ids[0])
	assert.Equal(t, before, g.state.Players[0].HandCount, "second START must not redeal")
}

func TestPlayOutOfTurnSilentlyDropped(t *testing.T) {
	g, ids, mb := setupPlaying(t, 2)

	g.handlePlay(ids[1], protocol.PlayPayload{Cards: []models.Card{card(5, models.Red)}})

	assert.Zero(t, mb.broadcastCount(), "dropped intents must not broadcast")
	assert.Empty(t, g.state.CenterStack)
	assert.Equal(t, ids[0], g.state.CurrentPlayerID)
	assert.Equal(t, 9, g.state.Players[1].HandCount)
}

func TestPlayInvalidCombinationDropped(t *testing.T) {
	g, ids, mb := setupPlaying(t, 2)

	g.handlePlay(ids[0], protocol.PlayPayload{Cards: []models.Card{
		card(5, models.Red), card(7, models.Blue),
	}})

	assert.Zero(t, mb.broadcastCount())
	assert.Empty(t, g.state.CenterStack)
	assert.Equal(t, ids[0], g.state.CurrentPlayerID)
}

func TestPlayOnEmptyStack(t *testing.T) {
	g, ids, mb := setupPlaying(t, 2)

	played := []models.Card{card(2, models.Red), card(8, models.Red)}
	g.handlePlay(ids[0], protocol.PlayPayload{Cards: played})

	st := mb.lastState(t)
	require.Len(t, st.CenterStack, 1)
	// Stored highest first regardless of submission order.
	assert.Equal(t, 8, st.CenterStack[0][0].Value)
	assert.Equal(t, 2, st.CenterStack[0][1].Value)
	assert.Equal(t, 7, st.Players[0].HandCount, "two gone, none picked up")
	assert.Equal(t, ids[1], st.CurrentPlayerID)

	msg, ok := mb.lastTo(ids[0], protocol.MsgPlayResult)
	require.True(t, ok)
	var res protocol.PlayResultPayload
	require.NoError(t, msg.DecodePayload(&res))
	assert.Len(t, res.PlayedCardIDs, 2)
	assert.Nil(t, res.PickUpCard)
}

func TestPlayOverTopSetRequiresPickUp(t *testing.T) {
	g, ids, mb := setupPlaying(t, 2)

	top := []models.Card{card(5, models.Blue)}
	g.state.CenterStack = append(g.state.CenterStack, top)

	// No pick-up id: dropped.
	g.handlePlay(ids[0], protocol.PlayPayload{Cards: []models.Card{card(7, models.Red)}})
	assert.Zero(t, mb.broadcastCount())
	assert.Equal(t, ids[0], g.state.CurrentPlayerID)

	// Unknown pick-up id: dropped.
	g.handlePlay(ids[0], protocol.PlayPayload{
		Cards:        []models.Card{card(7, models.Red)},
		PickUpCardID: uuid.NewString(),
	})
	assert.Zero(t, mb.broadcastCount())

	// Valid pick-up from the superseded set.
	g.handlePlay(ids[0], protocol.PlayPayload{
		Cards:        []models.Card{card(7, models.Red)},
		PickUpCardID: top[0].ID,
	})
	st := mb.lastState(t)
	assert.Equal(t, 9, st.Players[0].HandCount, "one played, one picked up")
	assert.Equal(t, ids[1], st.CurrentPlayerID)

	msg, ok := mb.lastTo(ids[0], protocol.MsgPlayResult)
	require.True(t, ok)
	var res protocol.PlayResultPayload
	require.NoError(t, msg.DecodePayload(&res))
	require.NotNil(t, res.PickUpCard)
	assert.Equal(t, top[0].ID, res.PickUpCard.ID)
}

func TestPlayClaimingTooManyCardsDropped(t *testing.T) {
	g, ids, mb := setupPlaying(t, 2)
	g.state.Players[0].HandCount = 1

	g.handlePlay(ids[0], protocol.PlayPayload{Cards: []models.Card{
		card(4, models.Red), card(4, models.Blue),
	}})

	assert.Zero(t, mb.broadcastCount())
	assert.Equal(t, 1, g.state.Players[0].HandCount)
}

func TestEmptyHandEndsRound(t *testing.T) {
	g, ids, mb := setupPlaying(t, 3)

	// Leave a non-empty top set to prove the emptying play skips the pick-up.
	g.state.CenterStack = append(g.state.CenterStack, []models.Card{card(3, models.Blue)})
	g.state.Players[0].HandCount = 1
	g.state.Players[1].HandCount = 4
	g.state.Players[2].HandCount = 6

	g.handlePlay(ids[0], protocol.PlayPayload{Cards: []models.Card{card(9, models.Red)}})

	st := mb.lastState(t)
	assert.Equal(t, models.PhaseRoundEnd, st.Phase)
	assert.Equal(t, 0, st.Players[0].Score)
	assert.Equal(t, 4, st.Players[1].Score)
	assert.Equal(t, 6, st.Players[2].Score)
	assert.Equal(t, 0, st.Players[0].HandCount)
	assert.Empty(t, st.WinnerID)

	msg, ok := mb.lastTo(ids[0], protocol.MsgPlayResult)
	require.True(t, ok)
	var res protocol.PlayResultPayload
	require.NoError(t, msg.DecodePayload(&res))
	assert.Nil(t, res.PickUpCard, "the round-ending play never picks up")
}

func TestGameEndsAtFifteenWithSeatOrderTieBreak(t *testing.T) {
	g, ids, mb := setupPlaying(t, 3)

	g.state.Players[0].Score = 7
	g.state.Players[1].Score = 7
	g.state.Players[2].Score = 9
	g.state.Players[0].HandCount = 1
	g.state.Players[1].HandCount = 0
	g.state.Players[2].HandCount = 8 // 9 + 8 crosses the threshold

	var final models.GameState
	g.OnGameEnd = func(st models.GameState) { final = st }

	g.handlePlay(ids[0], protocol.PlayPayload{Cards: []models.Card{card(5, models.Red)}})

	st := mb.lastState(t)
	assert.Equal(t, models.PhaseGameEnd, st.Phase)
	// Seats 0 and 1 both finish on 7; the earlier seat takes the win.
	assert.Equal(t, ids[0], st.WinnerID)
	assert.Equal(t, ids[0], final.WinnerID, "OnGameEnd sees the final snapshot")
	assert.Equal(t, 17, st.Players[2].Score)
}

func TestPassAdvancesTurnAndResetsTrick(t *testing.T) {
	g, ids, mb := setupPlaying(t, 3)

	g.handlePlay(ids[0], protocol.PlayPayload{Cards: []models.Card{card(6, models.Green)}})
	require.Len(t, g.state.CenterStack, 1)

	g.handlePass(ids[1])
	st := mb.lastState(t)
	assert.Equal(t, 1, st.ConsecutivePasses)
	assert.Equal(t, ids[2], st.CurrentPlayerID)
	assert.Len(t, st.CenterStack, 1)

	// Second pass completes the lap: trick resets, round continues.
	g.handlePass(ids[2])
	st = mb.lastState(t)
	assert.Equal(t, models.PhasePlaying, st.Phase)
	assert.Zero(t, st.ConsecutivePasses)
	assert.Empty(t, st.CenterStack)
	assert.Equal(t, ids[0], st.CurrentPlayerID)
}

func TestPassOutOfTurnIgnored(t *testing.T) {
	g, ids, mb := setupPlaying(t, 2)

	g.handlePass(ids[1])
	assert.Zero(t, mb.broadcastCount())
	assert.Zero(t, g.state.ConsecutivePasses)
}

func TestPlayResetsPassCounter(t *testing.T) {
	g, ids, _ := setupPlaying(t, 3)

	g.handlePass(ids[0])
	require.Equal(t, 1, g.state.ConsecutivePasses)

	g.handlePlay(ids[1], protocol.PlayPayload{Cards: []models.Card{card(2, models.Red)}})
	assert.Zero(t, g.state.ConsecutivePasses)
}

func TestNextRoundRotatesStarter(t *testing.T) {
	g, ids, mb := setupPlaying(t, 3)

	g.state.Players[0].HandCount = 1
	g.handlePlay(ids[0], protocol.PlayPayload{Cards: []models.Card{card(9, models.Red)}})
	require.Equal(t, models.PhaseRoundEnd, g.state.Phase)
	mb.clear()

	// Only the host may continue.
	g.handleNextRound(ids[1])
	assert.Equal(t, models.PhaseRoundEnd, g.state.Phase)

	g.handleNextRound(ids[0])
	st := mb.lastState(t)
	assert.Equal(t, models.PhasePlaying, st.Phase)
	assert.Equal(t, ids[1], st.CurrentPlayerID, "starter moves one seat over")
	assert.Equal(t, ids[1], st.LastRoundFirstPlayerID)
	assert.Empty(t, st.CenterStack)
	assert.Zero(t, st.ConsecutivePasses)
	for _, p := range st.Players {
		assert.Equal(t, 9, p.HandCount)
	}

	// And rotates again the round after.
	for i := range g.state.Players {
		g.state.Players[i].Score = 0
	}
	g.state.Players[1].HandCount = 1
	g.state.CurrentPlayerID = ids[1]
	g.handlePlay(ids[1], protocol.PlayPayload{Cards: []models.Card{card(9, models.Blue)}})
	require.Equal(t, models.PhaseRoundEnd, g.state.Phase)
	g.handleNextRound(ids[0])
	assert.Equal(t, ids[2], g.state.CurrentPlayerID)
}

func TestNextRoundIgnoredMidRound(t *testing.T) {
	g, ids, mb := setupPlaying(t, 2)
	mb.clear()

	g.handleNextRound(ids[0])
	assert.Zero(t, mb.broadcastCount())
	assert.Equal(t, models.PhasePlaying, g.state.Phase)
}

func TestLeaveSemantics(t *testing.T) {
	g, ids, _ := setupLobby(t, 3)

	// In the lobby, a non-host seat is released entirely.
	g.handleLeave(ids[1])
	assert.Equal(t, -1, g.state.PlayerIndex(ids[1]))
	require.Len(t, g.state.Players, 2)

	// Once playing, a departure only flips the link status.
	g.handleStart(ids[0])
	g.handleLeave(ids[2])
	idx := g.state.PlayerIndex(ids[2])
	require.NotEqual(t, -1, idx)
	assert.False(t, g.state.Players[idx].Connected)
	assert.Equal(t, 9, g.state.Players[idx].HandCount)
}

func TestLastLeaveFiresOnEmpty(t *testing.T) {
	g, ids, _ := setupLobby(t, 2)

	var emptied string
	g.OnEmpty = func(code string) { emptied = code }

	g.handleLeave(ids[1])
	assert.Empty(t, emptied, "host is still connected")

	g.handleLeave(ids[0])
	assert.Equal(t, "4242", emptied)
}

func TestRunLoopSerializesIntents(t *testing.T) {
	hostID := uuid.NewString()
	guestID := uuid.NewString()
	g := New("9001", models.Player{ID: hostID, Name: "host"}, logrus.New(), nil)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.SendToFn = mb.sendToFn

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	g.Join(models.Player{ID: hostID, Name: "host"})
	g.Join(models.Player{ID: guestID, Name: "guest"})
	g.Start(hostID)

	// Snapshot is queued behind the intents above, so it observes all of them.
	snapCtx, snapCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer snapCancel()
	st, err := g.Snapshot(snapCtx)
	require.NoError(t, err)
	assert.Equal(t, models.PhasePlaying, st.Phase)
	require.Len(t, st.Players, 2)
	assert.Equal(t, hostID, st.CurrentPlayerID)
}
