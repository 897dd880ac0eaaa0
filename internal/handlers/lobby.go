// internal/handlers/lobby.go
package handlers

import (
	"net/http"

	"github.com/promptclash/server/internal/base"
)

type lobbyRequest struct {
	LobbyID    string `json:"lobby_id"`
	PlayerName string `json:"player_name"`
}

// CreateLobby opens a new two-player lobby with the caller as host.
func (s *Server) CreateLobby(w http.ResponseWriter, r *http.Request) {
	var req lobbyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	l, err := s.Lobbies.Create(req.PlayerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// JoinLobby adds the caller to an existing lobby.
func (s *Server) JoinLobby(w http.ResponseWriter, r *http.Request) {
	var req lobbyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.LobbyID == "" {
		writeError(w, base.Validationf("lobby_id is required"))
		return
	}
	l, err := s.Lobbies.Join(req.LobbyID, req.PlayerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// LeaveLobby removes the caller. A host leaving dissolves the lobby.
func (s *Server) LeaveLobby(w http.ResponseWriter, r *http.Request) {
	var req lobbyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.LobbyID == "" {
		writeError(w, base.Validationf("lobby_id is required"))
		return
	}
	l, deleted, err := s.Lobbies.Leave(req.LobbyID, req.PlayerName)
	if err != nil {
		writeError(w, err)
		return
	}
	if deleted {
		writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ToggleReady flips the caller's ready flag.
func (s *Server) ToggleReady(w http.ResponseWriter, r *http.Request) {
	var req lobbyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.LobbyID == "" {
		writeError(w, base.Validationf("lobby_id is required"))
		return
	}
	l, err := s.Lobbies.ToggleReady(req.LobbyID, req.PlayerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// GetLobby returns a lobby snapshot.
func (s *Server) GetLobby(w http.ResponseWriter, r *http.Request) {
	l, err := s.Lobbies.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type startLobbyRequest struct {
	PlayerName string `json:"player_name"`
	Challenge  string `json:"challenge"`
}

// StartLobby performs the host-only lobby-to-game handoff.
func (s *Server) StartLobby(w http.ResponseWriter, r *http.Request) {
	var req startLobbyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	l, g, err := s.Orchestrator.StartFromLobby(r.Context(), r.PathValue("id"), req.PlayerName, req.Challenge)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lobby": l, "game": g})
}
