// internal/handlers/matchmaking.go
package handlers

import (
	"net/http"

	"github.com/promptclash/server/internal/base"
)

type queueRequest struct {
	PlayerName string `json:"player_name"`
}

// JoinQueue is the idempotent matchmaking poll: the client calls it
// repeatedly with the same name until the response carries a game.
func (s *Server) JoinQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Queue.Join(req.PlayerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CancelQueue removes the caller from the waiting queue.
func (s *Server) CancelQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	status, err := s.Queue.Cancel(req.PlayerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// QueueStatus reports the queue size and waiting players. With a ?player_name
// query it also reports that player's 1-based position.
func (s *Server) QueueStatus(w http.ResponseWriter, r *http.Request) {
	status := s.Queue.Status()
	name := r.URL.Query().Get("player_name")
	if name == "" {
		writeJSON(w, http.StatusOK, status)
		return
	}
	pos, err := s.Queue.Position(name)
	if err != nil {
		writeError(w, err)
		return
	}
	if pos == 0 {
		writeError(w, base.NotFoundf("player %q is not in the queue", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"size":          status.Size,
		"players":       status.Players,
		"matched_count": status.MatchedCount,
		"position":      pos,
	})
}
