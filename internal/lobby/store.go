// internal/lobby/store.go
package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptclash/server/internal/base"
	"github.com/promptclash/server/internal/notify"
)

// Store manages active ephemeral lobbies in memory. One coarse mutex guards
// the map; the notifier is always invoked after the lock is released, with a
// post-mutation snapshot, so a slow channel can never stall store traffic.
type Store struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby

	notifier notify.Notifier
	logger   *logrus.Logger
}

// NewStore returns an empty in-memory lobby store.
func NewStore(notifier notify.Notifier, logger *logrus.Logger) *Store {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Store{
		lobbies:  make(map[string]*Lobby),
		notifier: notifier,
		logger:   logger,
	}
}

// Create builds a lobby containing only the host.
func (s *Store) Create(hostName string) (*Lobby, error) {
	host, err := base.NormalizeName(hostName, "host_name")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	l := &Lobby{
		ID:         base.NewID("lobby"),
		Host:       host,
		Players:    []string{host},
		ReadyState: map[string]bool{host: false},
		Status:     StatusWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	s.lobbies[l.ID] = l
	snap := l.clone()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"lobby": snap.ID, "host": host}).Info("lobby created")
	s.publish(snap.ID, "player_joined", map[string]interface{}{"lobby": snap, "player": host})
	return snap, nil
}

// Join appends a player to an existing lobby.
func (s *Store) Join(lobbyID, playerName string) (*Lobby, error) {
	player, err := base.NormalizeName(playerName, "player_name")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		s.mu.Unlock()
		return nil, base.NotFoundf("lobby not found")
	}
	if l.has(player) {
		s.mu.Unlock()
		return nil, base.Conflictf("player already in lobby")
	}
	if l.IsFull() {
		s.mu.Unlock()
		return nil, base.Conflictf("lobby is full")
	}

	l.Players = append(l.Players, player)
	l.ReadyState[player] = false
	l.Status = StatusFull
	l.UpdatedAt = time.Now().UTC()
	snap := l.clone()
	s.mu.Unlock()

	s.publish(snap.ID, "player_joined", map[string]interface{}{"lobby": snap, "player": player})
	if snap.IsFull() {
		s.publish(snap.ID, "lobby_full", map[string]interface{}{"lobby": snap})
	}
	return snap, nil
}

// Leave removes a player. A departing host, or the last remaining player,
// deletes the lobby: the returned lobby is nil and deleted is true.
func (s *Store) Leave(lobbyID, playerName string) (*Lobby, bool, error) {
	player, err := base.NormalizeName(playerName, "player_name")
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		s.mu.Unlock()
		return nil, false, base.NotFoundf("lobby not found")
	}
	if !l.has(player) {
		s.mu.Unlock()
		return nil, false, base.Validationf("player not part of this lobby")
	}

	remaining := l.Players[:0:0]
	for _, p := range l.Players {
		if p != player {
			remaining = append(remaining, p)
		}
	}
	l.Players = remaining
	delete(l.ReadyState, player)

	var snap *Lobby
	deleted := player == l.Host || len(l.Players) == 0
	if deleted {
		delete(s.lobbies, lobbyID)
	} else {
		l.recomputeStatus()
		l.UpdatedAt = time.Now().UTC()
		snap = l.clone()
	}
	s.mu.Unlock()

	if deleted {
		s.logger.WithFields(logrus.Fields{"lobby": lobbyID, "player": player}).Info("lobby deleted")
	}
	s.publish(lobbyID, "player_left", map[string]interface{}{"lobbyId": lobbyID, "player": player})
	return snap, deleted, nil
}

// ToggleReady flips a player's ready flag and recomputes the lobby status.
func (s *Store) ToggleReady(lobbyID, playerName string) (*Lobby, error) {
	player, err := base.NormalizeName(playerName, "player_name")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		s.mu.Unlock()
		return nil, base.NotFoundf("lobby not found")
	}
	if !l.has(player) {
		s.mu.Unlock()
		return nil, base.Validationf("player not part of this lobby")
	}

	l.ReadyState[player] = !l.ReadyState[player]
	ready := l.ReadyState[player]
	l.recomputeStatus()
	l.UpdatedAt = time.Now().UTC()
	snap := l.clone()
	s.mu.Unlock()

	s.publish(snap.ID, "player_ready", map[string]interface{}{
		"lobby":  snap,
		"player": player,
		"ready":  ready,
	})
	return snap, nil
}

// Start moves the lobby to starting. Only the host may call it, and only once
// both players are ready. The orchestrator follows up with game creation and
// MarkStarted.
func (s *Store) Start(lobbyID, hostName string) (*Lobby, error) {
	host, err := base.NormalizeName(hostName, "host_name")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		s.mu.Unlock()
		return nil, base.NotFoundf("lobby not found")
	}
	if host != l.Host {
		s.mu.Unlock()
		return nil, base.Validationf("only the host can start the lobby")
	}
	if !l.EveryoneReady() {
		s.mu.Unlock()
		return nil, base.Conflictf("both players must be ready before starting")
	}

	l.Status = StatusStarting
	l.UpdatedAt = time.Now().UTC()
	snap := l.clone()
	s.mu.Unlock()

	return snap, nil
}

// MarkStarted flags the lobby as started after the orchestrator has created
// its game. The lobby is intentionally left in the store.
func (s *Store) MarkStarted(lobbyID string) (*Lobby, error) {
	s.mu.Lock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		s.mu.Unlock()
		return nil, base.NotFoundf("lobby not found")
	}
	l.Status = StatusStarted
	l.UpdatedAt = time.Now().UTC()
	snap := l.clone()
	s.mu.Unlock()

	return snap, nil
}

// Get returns a snapshot of a lobby.
func (s *Store) Get(lobbyID string) (*Lobby, error) {
	s.mu.Lock()
	l, ok := s.lobbies[lobbyID]
	var snap *Lobby
	if ok {
		snap = l.clone()
	}
	s.mu.Unlock()

	if !ok {
		return nil, base.NotFoundf("lobby not found")
	}
	return snap, nil
}

func (s *Store) publish(lobbyID, event string, payload interface{}) {
	s.notifier.Publish(context.Background(), notify.LobbyChannel(lobbyID), event, payload)
}
