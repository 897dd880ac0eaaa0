// internal/handlers/game.go
package handlers

import (
	"net/http"

	"github.com/promptclash/server/internal/game"
)

type createGameRequest struct {
	Players   []string `json:"players"`
	Challenge string   `json:"challenge"`
}

// CreateGame opens a game directly, outside of lobby or matchmaking flows.
func (s *Server) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := s.Games.Create(req.Players, req.Challenge, game.SourceManual)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// GetGame returns a game snapshot.
func (s *Server) GetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.Games.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type promptRequest struct {
	PlayerName string `json:"player_name"`
	Prompt     string `json:"prompt"`
}

// SubmitPrompt records a prompt and advances the game once both are in. The
// advancement runs inline, so a completed snapshot comes back in the same
// response when this call supplied the second prompt.
func (s *Server) SubmitPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := s.Orchestrator.SubmitPrompt(r.Context(), r.PathValue("id"), req.PlayerName, req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type submissionRequest struct {
	PlayerName string `json:"player_name"`
	Submission string `json:"submission"`
}

// SubmitSubmission records a final-artifact reference and advances the game
// through the judge once both are in.
func (s *Server) SubmitSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := s.Orchestrator.SubmitSubmission(r.Context(), r.PathValue("id"), req.PlayerName, req.Submission)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type completeGameRequest struct {
	Outputs map[string]string  `json:"outputs"`
	Scores  map[string]float64 `json:"scores"`
	Winner  string             `json:"winner"`
	Status  string             `json:"status"`
}

// CompleteGame merges a caller-supplied result into the game and finalizes
// it, bypassing the orchestrator. Status defaults to completed when omitted.
func (s *Server) CompleteGame(w http.ResponseWriter, r *http.Request) {
	var req completeGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := s.Games.Complete(r.PathValue("id"), game.Result{
		Outputs: req.Outputs,
		Scores:  req.Scores,
		Winner:  req.Winner,
		Status:  game.Status(req.Status),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// RetryGame re-attempts processing of a game stuck after a collaborator
// failure.
func (s *Server) RetryGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.Orchestrator.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
