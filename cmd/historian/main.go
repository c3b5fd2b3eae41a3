// cmd/historian/main.go is an asynchronous historian service that pops action
// records from the Redis journal queue and persists them to PostgreSQL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/joho/godotenv/autoload"

	"github.com/tar-gezed/odin/internal/database"
	"github.com/tar-gezed/odin/internal/journal"
)

// historianService drains the journal queue into the database in batches and
// marks rooms abandoned after a period of silence.
type historianService struct {
	journal      *journal.Journal
	batchSize    int
	flushDelay   time.Duration
	inactivity   time.Duration
	lastActivity sync.Map // map[string]time.Time keyed by room code

	batchMu  sync.Mutex
	batch    []journal.Record
	ctx      context.Context
	cancelFn context.CancelFunc
}

func newHistorianService() *historianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	inactivitySec := getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600) // default 10 min

	jr, err := journal.Connect()
	if err != nil {
		log.Fatalf("historian cannot reach Redis: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &historianService{
		journal:    jr,
		batchSize:  batchSize,
		flushDelay: time.Duration(flushMs) * time.Millisecond,
		inactivity: time.Duration(inactivitySec) * time.Second,
		batch:      make([]journal.Record, 0, batchSize),
		ctx:        ctx,
		cancelFn:   cancel,
	}
}

// run starts the queue drain loop and the inactivity sweep, then blocks
// until the service is stopped.
func (hs *historianService) run() {
	database.ConnectDB()

	go hs.readQueueLoop()
	go hs.inactivityLoop()

	log.Println("odin-historian service started.")
	<-hs.ctx.Done()
	hs.flushBatchToDB()
	log.Println("odin-historian shutting down.")
}

// readQueueLoop pops records off the journal queue, flushing the batch on a
// timer and whenever it fills.
func (hs *historianService) readQueueLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// Bounded block so context cancellation is noticed.
			rec, err := hs.journal.Pop(hs.ctx, 3*time.Second)
			if err != nil {
				if hs.ctx.Err() != nil {
					return
				}
				log.Printf("[ERROR] journal pop: %v\n", err)
				continue
			}
			if rec == nil {
				continue
			}

			hs.lastActivity.Store(rec.RoomCode, time.Now())
			hs.appendToBatch(*rec)
		}
	}
}

func (hs *historianService) appendToBatch(rec journal.Record) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, rec)
	if len(hs.batch) >= hs.batchSize {
		hs.flushLocked()
	}
}

func (hs *historianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushLocked()
}

// flushLocked writes the pending batch in one transaction. Caller holds batchMu.
func (hs *historianService) flushLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]journal.Record, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return database.InsertActionRecordsTx(ctx, tx, batchCopy)
	})
	if err != nil {
		log.Printf("[ERROR] flush batch: %v\n", err)
	} else {
		log.Printf("Flushed %d actions to DB.\n", len(batchCopy))
	}
}

// inactivityLoop periodically marks rooms abandoned once they have been
// silent beyond the configured threshold.
func (hs *historianService) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			hs.lastActivity.Range(func(key, val interface{}) bool {
				roomCode, ok1 := key.(string)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > hs.inactivity {
					hs.markRoomAbandoned(roomCode)
					hs.lastActivity.Delete(roomCode)
				}
				return true
			})
		}
	}
}

// markRoomAbandoned flips a still-in-progress game to 'abandoned'.
func (hs *historianService) markRoomAbandoned(roomCode string) {
	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE games
			SET status = 'abandoned', end_time = NOW()
			WHERE room_code = $1 AND status = 'in_progress'
		`
		_, e := tx.Exec(ctx, q, roomCode)
		return e
	})
	if err != nil {
		log.Printf("failed to mark room %s abandoned: %v", roomCode, err)
	} else {
		log.Printf("Marked room %s as 'abandoned' due to inactivity.", roomCode)
	}
}

func (hs *historianService) stop() {
	hs.cancelFn()
}

func main() {
	hs := newHistorianService()
	go hs.run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	hs.stop()
	log.Println("Historian shutdown complete.")
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
