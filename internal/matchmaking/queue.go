// internal/matchmaking/queue.go
//
// Package matchmaking pairs queued players FIFO and remembers who was matched
// so repeated polls are idempotent: a player who polls after being paired
// gets their game back instead of being re-queued.
package matchmaking

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/promptclash/server/internal/base"
	"github.com/promptclash/server/internal/game"
)

// Result is the answer to a queue poll.
type Result struct {
	Status   string     `json:"status"` // "matched" or "queued"
	Game     *game.Game `json:"game,omitempty"`
	Position int        `json:"position,omitempty"` // 1-indexed, queued only
}

const (
	StatusMatched = "matched"
	StatusQueued  = "queued"
)

// QueueStatus is a read-only snapshot for observability.
type QueueStatus struct {
	Size         int      `json:"size"`
	Players      []string `json:"players"`
	MatchedCount int      `json:"matched_count"`
}

// Queue is the FIFO pairing service. Its mutex guards the waiting list and
// the matched-set only; game creation always happens outside the lock so the
// queue never holds its lock while calling into the game store.
type Queue struct {
	mu      sync.Mutex
	waiting []string
	matched map[string]string // player -> game ID they were paired into

	games  *game.Store
	logger *logrus.Logger
}

// NewQueue returns an empty matchmaking queue backed by the game store.
func NewQueue(games *game.Store, logger *logrus.Logger) *Queue {
	return &Queue{
		matched: make(map[string]string),
		games:   games,
		logger:  logger,
	}
}

// Join adds a player to the queue, or answers an idempotent poll:
//   - already matched to a still-pending game: that game is returned again
//   - matched to a game that has progressed (or vanished): the stale match is
//     evicted for every player mapped to it and the player falls through to
//     normal queue logic
//   - already waiting: the current 1-indexed position is returned
//   - otherwise the player is appended; if two are now waiting the two oldest
//     are paired into a new game
func (q *Queue) Join(playerName string) (*Result, error) {
	player, err := base.NormalizeName(playerName, "player_name")
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	gameID, wasMatched := q.matched[player]
	q.mu.Unlock()

	if wasMatched {
		current, err := q.games.Get(gameID)
		if err == nil && stillPending(current) {
			return &Result{Status: StatusMatched, Game: current}, nil
		}
		// The game progressed past pending or is gone. Self-heal: drop this
		// player and anyone else mapped to the same game, then re-queue.
		q.evictMatch(gameID)
		q.logger.WithFields(logrus.Fields{
			"player": player,
			"game":   gameID,
		}).Info("matchmaking: evicted stale match")
	}

	var p1, p2 string
	q.mu.Lock()
	if pos := q.position(player); pos > 0 {
		q.mu.Unlock()
		return &Result{Status: StatusQueued, Position: pos}, nil
	}
	q.waiting = append(q.waiting, player)
	if len(q.waiting) >= 2 {
		p1, p2 = q.waiting[0], q.waiting[1]
		q.waiting = q.waiting[2:]
	}
	position := len(q.waiting)
	q.mu.Unlock()

	if p1 == "" {
		return &Result{Status: StatusQueued, Position: position}, nil
	}

	// Game creation runs outside the queue lock; the game store takes its own.
	g, err := q.games.Create([]string{p1, p2}, "", game.SourceMatchmaking)
	if err != nil {
		// Put the pair back at the head in arrival order so nobody is lost.
		q.mu.Lock()
		q.waiting = append([]string{p1, p2}, q.waiting...)
		q.mu.Unlock()
		return nil, err
	}

	q.mu.Lock()
	q.matched[p1] = g.ID
	q.matched[p2] = g.ID
	q.mu.Unlock()

	q.logger.WithFields(logrus.Fields{
		"game":    g.ID,
		"players": []string{p1, p2},
	}).Info("matchmaking: paired")
	return &Result{Status: StatusMatched, Game: g}, nil
}

// Cancel removes a player from the queue and the matched-set. Idempotent;
// the returned status is "removed" or "absent".
func (q *Queue) Cancel(playerName string) (string, error) {
	player, err := base.NormalizeName(playerName, "player_name")
	if err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := false
	for i, p := range q.waiting {
		if p == player {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			removed = true
			break
		}
	}
	if _, ok := q.matched[player]; ok {
		delete(q.matched, player)
		removed = true
	}
	if removed {
		return "removed", nil
	}
	return "absent", nil
}

// Status returns a snapshot of the queue for observability.
func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	players := make([]string, len(q.waiting))
	copy(players, q.waiting)
	return QueueStatus{
		Size:         len(q.waiting),
		Players:      players,
		MatchedCount: len(q.matched),
	}
}

// Position returns a player's 1-indexed queue position, or 0 if absent.
func (q *Queue) Position(playerName string) (int, error) {
	player, err := base.NormalizeName(playerName, "player_name")
	if err != nil {
		return 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.position(player), nil
}

// position assumes the caller holds the lock.
func (q *Queue) position(player string) int {
	for i, p := range q.waiting {
		if p == player {
			return i + 1
		}
	}
	return 0
}

func (q *Queue) evictMatch(gameID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p, id := range q.matched {
		if id == gameID {
			delete(q.matched, p)
		}
	}
}

// stillPending reports whether a matched game is still the plain pending game
// the pair was handed: no progression, no scores, no winner.
func stillPending(g *game.Game) bool {
	return g.Status == game.StatusPending && len(g.Scores) == 0 && g.Winner == ""
}
