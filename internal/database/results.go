// internal/database/results.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tar-gezed/odin/internal/journal"
	"github.com/tar-gezed/odin/internal/models"
)

// SaveGameResult persists a finished game: one completed row per room plus a
// per-seat results row, all in a single transaction. The snapshot is stored
// as JSON alongside, so a finished game can be inspected without replaying
// the action log.
func SaveGameResult(ctx context.Context, final models.GameState) error {
	snapshot, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("failed to marshal final snapshot: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (room_code, status, winner_id, final_state, end_time)
			VALUES ($1, 'completed', $2, $3, NOW())
			ON CONFLICT (room_code)
			DO UPDATE SET status = 'completed', winner_id = $2, final_state = $3, end_time = NOW()
		`
		if _, e := tx.Exec(ctx, upsertGame, final.RoomCode, final.WinnerID, snapshot); e != nil {
			return e
		}

		for _, p := range final.Players {
			q := `
				INSERT INTO game_results (room_code, player_id, name, score, did_win)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (room_code, player_id)
				DO UPDATE SET score = $4, did_win = $5
			`
			if _, e := tx.Exec(ctx, q, final.RoomCode, p.ID, p.Name, p.Score, p.ID == final.WinnerID); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}

// InsertActionRecordsTx writes a batch of journal records inside the given
// transaction, upserting the owning game row so actions can arrive before the
// game finishes.
func InsertActionRecordsTx(ctx context.Context, tx pgx.Tx, recs []journal.Record) error {
	upsertGame := `
		INSERT INTO games (room_code, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (room_code) DO NOTHING
	`
	insertAction := `
		INSERT INTO game_actions (
			room_code, action_index, actor_id, action_type, payload, committed
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, rec := range recs {
		if _, err := tx.Exec(ctx, upsertGame, rec.RoomCode); err != nil {
			return err
		}
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertAction,
			rec.RoomCode, rec.ActionIndex, rec.ActorID, rec.ActionType, payload, rec.Committed,
		); err != nil {
			return err
		}
	}
	return nil
}
