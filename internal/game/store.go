package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tar-gezed/odin/internal/journal"
	"github.com/tar-gezed/odin/internal/models"
)

var (
	// ErrRoomNotFound is returned when a room code resolves to nothing.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomCodesExhausted is returned when every allocation attempt
	// collided with a live room.
	ErrRoomCodesExhausted = errors.New("could not allocate a unique room code")
)

// codeAllocAttempts bounds the collision retry loop for room codes.
const codeAllocAttempts = 3

// Store holds the live rooms, keyed by their 4-digit code.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Game
	rng   *rand.Rand
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Game),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create allocates a fresh room code, retrying a bounded number of times on
// collision, and registers a new game hosted by the given player.
func (s *Store) Create(host models.Player, logger *logrus.Logger, jr *journal.Journal) (*Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < codeAllocAttempts; i++ {
		code := fmt.Sprintf("%04d", 1000+s.rng.Intn(9000))
		if _, taken := s.rooms[code]; taken {
			continue
		}
		g := New(code, host, logger, jr)
		s.rooms[code] = g
		return g, nil
	}
	return nil, ErrRoomCodesExhausted
}

// Get returns the room with the given code, if any.
func (s *Store) Get(code string) (*Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.rooms[code]
	return g, ok
}

// Delete drops a room from the store. The engine goroutine is stopped by its
// owning context, not here.
func (s *Store) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

// Codes lists the live room codes.
func (s *Store) Codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	return codes
}
