package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptclash/server/internal/game"
	"github.com/promptclash/server/internal/gemini"
	"github.com/promptclash/server/internal/lobby"
	"github.com/promptclash/server/internal/matchmaking"
	"github.com/promptclash/server/internal/orchestrator"
)

type stubGenerator struct{}

func (stubGenerator) GenerateSite(_ context.Context, prompt string) (*gemini.Artifact, error) {
	return &gemini.Artifact{
		Context: "User prompt: " + prompt,
		HTML:    "<main>" + prompt + "</main>",
	}, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	games := game.NewStore(nil, nil, logger)
	lobbies := lobby.NewStore(nil, logger)
	queue := matchmaking.NewQueue(games, logger)
	orch := orchestrator.New(games, lobbies, stubGenerator{}, nil, nil, logger)

	s := &Server{
		Lobbies:      lobbies,
		Games:        games,
		Queue:        queue,
		Orchestrator: orch,
		Logger:       logger,
	}
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestLobbyLifecycleOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, ts.URL+"/lobby/create", map[string]string{"player_name": "Ann"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	lobbyID := created["id"].(string)
	require.NotEmpty(t, lobbyID)
	assert.Equal(t, "waiting", created["status"])

	resp, joined := doJSON(t, http.MethodPost, ts.URL+"/lobby/join",
		map[string]string{"lobby_id": lobbyID, "player_name": "Ben"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "full", joined["status"])

	for _, name := range []string{"Ann", "Ben"} {
		resp, _ = doJSON(t, http.MethodPost, ts.URL+"/lobby/ready",
			map[string]string{"lobby_id": lobbyID, "player_name": name})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, fetched := doJSON(t, http.MethodGet, ts.URL+"/lobby/"+lobbyID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", fetched["status"])

	resp, started := doJSON(t, http.MethodPost, ts.URL+"/lobby/"+lobbyID+"/start",
		map[string]string{"player_name": "Ann"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	g := started["game"].(map[string]interface{})
	assert.NotEmpty(t, g["id"])
	assert.Equal(t, "lobby", g["source"])
}

func TestLobbyStartRequiresHost(t *testing.T) {
	_, ts := newTestServer(t)

	_, created := doJSON(t, http.MethodPost, ts.URL+"/lobby/create", map[string]string{"player_name": "Ann"})
	lobbyID := created["id"].(string)
	doJSON(t, http.MethodPost, ts.URL+"/lobby/join", map[string]string{"lobby_id": lobbyID, "player_name": "Ben"})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/lobby/"+lobbyID+"/start",
		map[string]string{"player_name": "Ben"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestLobbyNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/lobby/lobby_deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGameFlowOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, ts.URL+"/game/create",
		map[string]interface{}{"players": []string{"Ann", "Ben"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	gameID := created["id"].(string)
	assert.Equal(t, "pending", created["status"])
	assert.NotEmpty(t, created["assigned_challenge"])

	resp, snap := doJSON(t, http.MethodPost, ts.URL+"/game/"+gameID+"/prompt",
		map[string]string{"player_name": "Ann", "prompt": "a cozy blog"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", snap["status"])

	resp, snap = doJSON(t, http.MethodPost, ts.URL+"/game/"+gameID+"/prompt",
		map[string]string{"player_name": "Ben", "prompt": "a sharp store"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", snap["status"])
	assert.Contains(t, []string{"Ann", "Ben"}, snap["winner"])
	assert.Len(t, snap["outputs"], 2)
}

func TestGameValidationOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/game/create",
		map[string]interface{}{"players": []string{"Ann"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/game/create",
		map[string]interface{}{"players": []string{"Ann", "ann"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestManualCompleteOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	_, created := doJSON(t, http.MethodPost, ts.URL+"/game/create",
		map[string]interface{}{"players": []string{"Ann", "Ben"}})
	gameID := created["id"].(string)

	resp, snap := doJSON(t, http.MethodPost, ts.URL+"/game/"+gameID+"/complete",
		map[string]interface{}{
			"scores": map[string]float64{"Ann": 88, "Ben": 70},
			"winner": "ann", // canonicalized against the roster
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", snap["status"])
	assert.Equal(t, "Ann", snap["winner"])
	assert.Equal(t, 88.0, snap["scores"].(map[string]interface{})["Ann"])

	// an unknown winner is rejected
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/game/"+gameID+"/complete",
		map[string]interface{}{"winner": "Cara"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestRetryWithoutInputsConflicts(t *testing.T) {
	_, ts := newTestServer(t)
	_, created := doJSON(t, http.MethodPost, ts.URL+"/game/create",
		map[string]interface{}{"players": []string{"Ann", "Ben"}})
	gameID := created["id"].(string)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/game/"+gameID+"/retry", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMatchmakingOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp, first := doJSON(t, http.MethodPost, ts.URL+"/matchmaking/join", map[string]string{"player_name": "Ann"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "queued", first["status"])
	assert.Equal(t, float64(1), first["position"])

	// polling again is idempotent
	_, again := doJSON(t, http.MethodPost, ts.URL+"/matchmaking/join", map[string]string{"player_name": "Ann"})
	assert.Equal(t, "queued", again["status"])
	assert.Equal(t, float64(1), again["position"])

	resp, second := doJSON(t, http.MethodPost, ts.URL+"/matchmaking/join", map[string]string{"player_name": "Ben"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "matched", second["status"])
	g := second["game"].(map[string]interface{})
	assert.Equal(t, "matchmaking", g["source"])

	resp, status := doJSON(t, http.MethodGet, ts.URL+"/matchmaking/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), status["size"])

	resp, cancel := doJSON(t, http.MethodPost, ts.URL+"/matchmaking/cancel", map[string]string{"player_name": "Ann"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "absent", cancel["status"])
}

func TestQueueStatusWithPosition(t *testing.T) {
	_, ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/matchmaking/join", map[string]string{"player_name": "Ann"})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/matchmaking/status?player_name=Ann", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["position"])

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/matchmaking/status?player_name=Ben", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketUnavailableWithoutNotifier(t *testing.T) {
	_, ts := newTestServer(t)
	_, created := doJSON(t, http.MethodPost, ts.URL+"/lobby/create", map[string]string{"player_name": "Ann"})
	lobbyID := created["id"].(string)

	resp, err := http.Get(ts.URL + "/ws/lobby/" + lobbyID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestValidationErrorStatusMapping(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/lobby/create", map[string]string{"player_name": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}
