package game

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tar-gezed/odin/internal/models"
)

func TestStoreCreateAndLookup(t *testing.T) {
	s := NewStore()
	host := models.Player{ID: uuid.NewString(), Name: "host"}

	g, err := s.Create(host, logrus.New(), nil)
	require.NoError(t, err)
	require.Len(t, g.RoomCode, 4)

	got, ok := s.Get(g.RoomCode)
	require.True(t, ok)
	assert.Same(t, g, got)

	_, ok = s.Get("0000")
	assert.False(t, ok)

	s.Delete(g.RoomCode)
	_, ok = s.Get(g.RoomCode)
	assert.False(t, ok)
}

func TestStoreCodesAreUnique(t *testing.T) {
	s := NewStore()
	logger := logrus.New()

	codes := make(map[string]bool)
	for i := 0; i < 50; i++ {
		g, err := s.Create(models.Player{ID: uuid.NewString()}, logger, nil)
		require.NoError(t, err)
		assert.False(t, codes[g.RoomCode], "room codes must not collide")
		codes[g.RoomCode] = true
	}
	assert.Len(t, s.Codes(), 50)
}

func TestStoreExhaustion(t *testing.T) {
	s := NewStore()
	// Occupy the entire 4-digit code space so every attempt collides.
	for i := 1000; i < 10000; i++ {
		s.rooms[fmt.Sprintf("%04d", i)] = &Game{}
	}

	_, err := s.Create(models.Player{ID: uuid.NewString()}, logrus.New(), nil)
	assert.ErrorIs(t, err, ErrRoomCodesExhausted)
}
