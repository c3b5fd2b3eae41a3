package models

// Phase is the lifecycle stage of a room.
type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhasePlaying  Phase = "PLAYING"
	PhaseRoundEnd Phase = "ROUND_END"
	PhaseGameEnd  Phase = "GAME_END"
)

// GameState is the full public replicated state of one room. The host engine
// owns the only writable copy; every committed mutation is followed by a
// wholesale GAME_STATE broadcast of this struct.
type GameState struct {
	RoomCode               string   `json:"roomCode"`
	HostID                 string   `json:"hostId"`
	Phase                  Phase    `json:"phase"`
	Players                []Player `json:"players"`
	CurrentPlayerID        string   `json:"currentPlayerId"`
	CenterStack            [][]Card `json:"centerStack"`
	DeckSize               int      `json:"deckSize"`
	ConsecutivePasses      int      `json:"consecutivePasses"`
	WinnerID               string   `json:"winnerId,omitempty"`
	LastRoundFirstPlayerID string   `json:"lastRoundFirstPlayerId,omitempty"`
}

// TopSet returns the only center-stack group relevant to play legality: the
// most recently appended one. Nil when the stack is empty.
func (s *GameState) TopSet() []Card {
	if len(s.CenterStack) == 0 {
		return nil
	}
	return s.CenterStack[len(s.CenterStack)-1]
}

// PlayerIndex returns the seat index of the given player, or -1.
func (s *GameState) PlayerIndex(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// NextPlayerID advances round-robin over the seats in insertion order,
// wrapping from the last seat back to the first.
func (s *GameState) NextPlayerID(currentID string) string {
	if len(s.Players) == 0 {
		return currentID
	}
	idx := s.PlayerIndex(currentID)
	if idx == -1 {
		return s.Players[0].ID
	}
	return s.Players[(idx+1)%len(s.Players)].ID
}

// Clone deep-copies the state so snapshots handed to other goroutines never
// alias the engine's writable copy.
func (s *GameState) Clone() GameState {
	out := *s
	out.Players = make([]Player, len(s.Players))
	copy(out.Players, s.Players)
	out.CenterStack = make([][]Card, len(s.CenterStack))
	for i, set := range s.CenterStack {
		out.CenterStack[i] = make([]Card, len(set))
		copy(out.CenterStack[i], set)
	}
	return out
}
