package client

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tar-gezed/odin/internal/models"
	"github.com/tar-gezed/odin/internal/protocol"
)

func card(value int) models.Card {
	return models.Card{ID: uuid.NewString(), Value: value, Color: models.Red}
}

func TestApplySnapshotReplacesWholesale(t *testing.T) {
	s := NewStateStore()

	s.ApplySnapshot(models.GameState{RoomCode: "1111", Phase: models.PhasePlaying})
	s.ApplySnapshot(models.GameState{RoomCode: "1111", Phase: models.PhaseRoundEnd})

	st := s.State()
	assert.Equal(t, models.PhaseRoundEnd, st.Phase)

	// Re-applying an older snapshot is just another replacement; the mirror
	// never merges.
	s.ApplySnapshot(models.GameState{RoomCode: "1111", Phase: models.PhasePlaying})
	assert.Equal(t, models.PhasePlaying, s.State().Phase)
}

func TestSetHandSortsForDisplay(t *testing.T) {
	s := NewStateStore()
	s.SetHand([]models.Card{card(2), card(9), card(5)})

	hand := s.Hand()
	require.Len(t, hand, 3)
	assert.Equal(t, 9, hand[0].Value)
	assert.Equal(t, 2, hand[2].Value)
}

func TestApplyPlayResult(t *testing.T) {
	s := NewStateStore()
	a, b, c := card(4), card(6), card(8)
	s.SetHand([]models.Card{a, b, c})

	pickUp := card(7)
	s.ApplyPlayResult(protocol.PlayResultPayload{
		PlayedCardIDs: []string{a.ID, c.ID},
		PickUpCard:    &pickUp,
	})

	hand := s.Hand()
	require.Len(t, hand, 2)
	assert.Equal(t, 7, hand[0].Value)
	assert.Equal(t, 6, hand[1].Value)

	// A result with no pick-up only removes.
	s.ApplyPlayResult(protocol.PlayResultPayload{PlayedCardIDs: []string{b.ID}})
	hand = s.Hand()
	require.Len(t, hand, 1)
	assert.Equal(t, pickUp.ID, hand[0].ID)
}

func TestTopSetMirrorsCenterStack(t *testing.T) {
	s := NewStateStore()
	assert.Empty(t, s.TopSet())

	bottom := []models.Card{card(3)}
	top := []models.Card{card(5), card(5)}
	s.ApplySnapshot(models.GameState{CenterStack: [][]models.Card{bottom, top}})

	got := s.TopSet()
	require.Len(t, got, 2)
	assert.Equal(t, top[0].ID, got[0].ID)
}
