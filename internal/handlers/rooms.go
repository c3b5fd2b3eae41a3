// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tar-gezed/odin/internal/auth"
	"github.com/tar-gezed/odin/internal/game"
	"github.com/tar-gezed/odin/internal/models"
)

type createRoomRequest struct {
	Name string `json:"name"`
}

type roomResponse struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// CreateRoomHandler mints a guest session if needed, allocates a room with
// the caller as host, and returns the code to dial the websocket with.
func CreateRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req createRoomRequest
		_ = json.NewDecoder(r.Body).Decode(&req) // name is optional

		claims, err := ensureGuest(w, r, req.Name)
		if err != nil {
			http.Error(w, "failed to establish session", http.StatusInternalServerError)
			return
		}

		g, err := gs.CreateRoom(models.Player{ID: claims.PlayerID, Name: claims.Name})
		if err != nil {
			if errors.Is(err, game.ErrRoomCodesExhausted) {
				http.Error(w, "no room codes available, try again", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, roomResponse{RoomCode: g.RoomCode, PlayerID: claims.PlayerID})
	}
}

// JoinRoomHandler checks the room exists and mints a guest session so the
// caller knows its player id before dialing the websocket. The seat itself
// is claimed over the websocket.
func JoinRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		code := strings.TrimPrefix(r.URL.Path, "/rooms/join/")
		if code == "" || strings.Contains(code, "/") {
			http.Error(w, "missing room code in path (/rooms/join/{code})", http.StatusBadRequest)
			return
		}
		if _, ok := gs.Rooms.Get(code); !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		var req createRoomRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		claims, err := ensureGuest(w, r, req.Name)
		if err != nil {
			http.Error(w, "failed to establish session", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, roomResponse{RoomCode: code, PlayerID: claims.PlayerID})
	}
}

// RoomStateHandler returns the current public snapshot of a room. Handy for
// debugging and for clients that want to poll before connecting.
func RoomStateHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/rooms/state/")
		if code == "" || strings.Contains(code, "/") {
			http.Error(w, "missing room code in path (/rooms/state/{code})", http.StatusBadRequest)
			return
		}
		g, ok := gs.Rooms.Get(code)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		st, err := g.Snapshot(r.Context())
		if err != nil {
			http.Error(w, "room unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// ensureGuest returns the caller's session claims, minting a fresh guest
// identity (and cookie) when there is none. A provided name refreshes the
// display name on the existing identity.
func ensureGuest(w http.ResponseWriter, r *http.Request, name string) (auth.Claims, error) {
	claims, err := auth.FromRequest(r)
	if err == nil {
		if name != "" && name != claims.Name {
			claims.Name = name
			token, mintErr := auth.CreateJWT(claims.PlayerID, claims.Name)
			if mintErr != nil {
				return auth.Claims{}, fmt.Errorf("failed to refresh session token: %w", mintErr)
			}
			auth.SetCookie(w, token)
		}
		return claims, nil
	}

	if name == "" {
		name = "Guest"
	}
	id := uuid.NewString()
	token, err := auth.CreateJWT(id, name)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("failed to create guest token: %w", err)
	}
	auth.SetCookie(w, token)
	return auth.Claims{PlayerID: id, Name: name}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
