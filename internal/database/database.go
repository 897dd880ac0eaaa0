// internal/database/database.go
//
// Package database durably records completed game outcomes. It is a
// collaborator, not part of the core lifecycle: when Postgres is down the
// in-memory stores keep working and the recorder just logs.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/promptclash/server/internal/game"
)

// Connect builds a pgx pool from connString (typically DATABASE_URL) and
// verifies connectivity.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// Recorder persists completed games and adjusts player ratings.
type Recorder struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// NewRecorder wraps a connected pool.
func NewRecorder(pool *pgxpool.Pool, logger *logrus.Logger) *Recorder {
	return &Recorder{pool: pool, logger: logger}
}

// eloDelta is the flat rating adjustment per result. Ratings floor at zero.
const eloDelta = 5

// RecordCompletedGame upserts the game row, one result row per player, and a
// +/-5 elo adjustment, all in a single transaction. Ties (no winner) count as
// a loss for both players.
func (r *Recorder) RecordCompletedGame(ctx context.Context, g *game.Game) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, status, source, winner, created_at, completed_at)
			VALUES ($1, 'completed', $2, NULLIF($3, ''), $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				status = 'completed',
				winner = NULLIF($3, ''),
				completed_at = $5
		`
		if _, e := tx.Exec(ctx, upsertGame, g.ID, g.Source, g.Winner, g.CreatedAt, g.UpdatedAt); e != nil {
			return e
		}

		for _, player := range g.Players {
			didWin := player == g.Winner

			resultQ := `
				INSERT INTO game_results (game_id, player_name, score, did_win)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (game_id, player_name)
				DO UPDATE SET score = $3, did_win = $4
			`
			if _, e := tx.Exec(ctx, resultQ, g.ID, player, g.Scores[player], didWin); e != nil {
				return e
			}

			delta := -eloDelta
			if didWin {
				delta = eloDelta
			}
			eloQ := `
				INSERT INTO players (name, elo)
				VALUES ($1, GREATEST(0, 10 + $2))
				ON CONFLICT (name)
				DO UPDATE SET elo = GREATEST(0, players.elo + $2)
			`
			if _, e := tx.Exec(ctx, eloQ, player, delta); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record completed game %s: %w", g.ID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"game":   g.ID,
		"winner": g.Winner,
	}).Info("recorded completed game")
	return nil
}
