// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/tar-gezed/odin/internal/auth"
	"github.com/tar-gezed/odin/internal/database"
	"github.com/tar-gezed/odin/internal/handlers"
	"github.com/tar-gezed/odin/internal/journal"
	"github.com/tar-gezed/odin/internal/middleware"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// The action journal and the results database are both optional: a bare
	// server still hosts rooms, it just keeps no history.
	var jr *journal.Journal
	if os.Getenv("REDIS_ADDR") != "" {
		var err error
		jr, err = journal.Connect()
		if err != nil {
			logger.Warnf("action journal disabled: %v", err)
			jr = nil
		}
	}

	srv := handlers.NewGameServer(logger, jr)
	if os.Getenv("PG_HOST") != "" {
		database.ConnectDB()
		srv.SaveResult = database.SaveGameResult
	}

	mux := http.NewServeMux()

	// room endpoints
	mux.Handle("/rooms/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateRoomHandler(srv),
	)))
	mux.Handle("/rooms/join/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.JoinRoomHandler(srv),
	)))
	mux.Handle("/rooms/state/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomStateHandler(srv),
	)))

	// game websocket
	mux.Handle("/game/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GameWSHandler(logger, srv),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
