// internal/lobby/lobby.go
package lobby

import (
	"time"
)

// Status is the lobby lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusFull     Status = "full"
	StatusReady    Status = "ready"
	StatusStarting Status = "starting"
	StatusStarted  Status = "started"
)

// Lobby is an ephemeral 2-player grouping with per-player ready flags.
// The host is always the first player; if the host leaves, the lobby is
// deleted rather than re-homed.
type Lobby struct {
	ID         string          `json:"id"`
	Host       string          `json:"host"`
	Players    []string        `json:"players"`
	ReadyState map[string]bool `json:"ready_state"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MaxPlayers is the lobby capacity. Games are strictly two-party.
const MaxPlayers = 2

// IsFull reports whether the lobby is at capacity.
func (l *Lobby) IsFull() bool {
	return len(l.Players) >= MaxPlayers
}

// EveryoneReady reports whether the lobby is full and every player is ready.
func (l *Lobby) EveryoneReady() bool {
	if !l.IsFull() {
		return false
	}
	for _, p := range l.Players {
		if !l.ReadyState[p] {
			return false
		}
	}
	return true
}

// has reports whether player is in the lobby. Names are stored normalized,
// so exact match suffices here.
func (l *Lobby) has(player string) bool {
	for _, p := range l.Players {
		if p == player {
			return true
		}
	}
	return false
}

// recomputeStatus derives waiting/full/ready from current membership and
// ready flags, overwriting whatever status the lobby held. A membership or
// ready change after Start therefore drops the lobby back out of starting.
func (l *Lobby) recomputeStatus() {
	switch {
	case l.EveryoneReady():
		l.Status = StatusReady
	case l.IsFull():
		l.Status = StatusFull
	default:
		l.Status = StatusWaiting
	}
}

// clone returns a defensive copy so callers never observe later mutation.
func (l *Lobby) clone() *Lobby {
	cp := *l
	cp.Players = make([]string, len(l.Players))
	copy(cp.Players, l.Players)
	cp.ReadyState = make(map[string]bool, len(l.ReadyState))
	for k, v := range l.ReadyState {
		cp.ReadyState[k] = v
	}
	return &cp
}
