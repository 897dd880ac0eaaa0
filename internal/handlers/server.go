// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/promptclash/server/internal/base"
	"github.com/promptclash/server/internal/game"
	"github.com/promptclash/server/internal/lobby"
	"github.com/promptclash/server/internal/matchmaking"
	"github.com/promptclash/server/internal/notify"
	"github.com/promptclash/server/internal/orchestrator"
)

// Server bundles the stores, the queue, and the orchestrator behind the HTTP
// surface. Notifier is optional and only needed for the websocket routes.
type Server struct {
	Lobbies      *lobby.Store
	Games        *game.Store
	Queue        *matchmaking.Queue
	Orchestrator *orchestrator.Orchestrator
	Notifier     *notify.RedisNotifier
	Logger       *logrus.Logger
}

// Routes registers the full API surface on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.Health)

	mux.HandleFunc("POST /lobby/create", s.CreateLobby)
	mux.HandleFunc("POST /lobby/join", s.JoinLobby)
	mux.HandleFunc("POST /lobby/leave", s.LeaveLobby)
	mux.HandleFunc("POST /lobby/ready", s.ToggleReady)
	mux.HandleFunc("GET /lobby/{id}", s.GetLobby)
	mux.HandleFunc("POST /lobby/{id}/start", s.StartLobby)

	mux.HandleFunc("POST /matchmaking/join", s.JoinQueue)
	mux.HandleFunc("POST /matchmaking/cancel", s.CancelQueue)
	mux.HandleFunc("GET /matchmaking/status", s.QueueStatus)

	mux.HandleFunc("POST /game/create", s.CreateGame)
	mux.HandleFunc("GET /game/{id}", s.GetGame)
	mux.HandleFunc("POST /game/{id}/prompt", s.SubmitPrompt)
	mux.HandleFunc("POST /game/{id}/submission", s.SubmitSubmission)
	mux.HandleFunc("POST /game/{id}/complete", s.CompleteGame)
	mux.HandleFunc("POST /game/{id}/retry", s.RetryGame)

	mux.HandleFunc("GET /ws/lobby/{id}", s.LobbyWS)
	mux.HandleFunc("GET /ws/game/{id}", s.GameWS)

	return mux
}

// Health answers liveness probes.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, base.HTTPStatus(err), map[string]string{"error": err.Error()})
}

// decodeJSON parses a request body into v. An empty body is allowed so
// handlers can treat all fields as optional.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return base.Validationf("bad request payload")
	}
	return nil
}
