// Package client is the player-side counterpart of the engine: a websocket
// connection, a mirror of the last broadcast state, and the private hand.
package client

import (
	"sync"

	"github.com/tar-gezed/odin/internal/deck"
	"github.com/tar-gezed/odin/internal/models"
	"github.com/tar-gezed/odin/internal/protocol"
)

// StateStore mirrors the host's last snapshot plus this player's private
// hand. Snapshots replace the mirror wholesale, so duplicate or replayed
// deliveries are harmless.
type StateStore struct {
	mu    sync.Mutex
	state models.GameState
	hand  []models.Card
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

// ApplySnapshot replaces the public mirror.
func (s *StateStore) ApplySnapshot(st models.GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// SetHand replaces the private hand, sorted for display.
func (s *StateStore) SetHand(cards []models.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hand := make([]models.Card, len(cards))
	copy(hand, cards)
	deck.SortDescending(hand)
	s.hand = hand
}

// ApplyPlayResult folds a committed play into the hand: played ids leave,
// the pick-up card, if any, joins.
func (s *StateStore) ApplyPlayResult(res protocol.PlayResultPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	played := make(map[string]bool, len(res.PlayedCardIDs))
	for _, id := range res.PlayedCardIDs {
		played[id] = true
	}
	kept := s.hand[:0]
	for _, c := range s.hand {
		if !played[c.ID] {
			kept = append(kept, c)
		}
	}
	s.hand = kept
	if res.PickUpCard != nil {
		s.hand = append(s.hand, *res.PickUpCard)
		deck.SortDescending(s.hand)
	}
}

// State returns a deep copy of the public mirror.
func (s *StateStore) State() models.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Hand returns a copy of the private hand.
func (s *StateStore) Hand() []models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	hand := make([]models.Card, len(s.hand))
	copy(hand, s.hand)
	return hand
}

// TopSet returns a copy of the top set of the mirrored center stack.
func (s *StateStore) TopSet() []models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := s.state.TopSet()
	out := make([]models.Card, len(top))
	copy(out, top)
	return out
}
