package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptclash/server/internal/base"
	"github.com/promptclash/server/internal/game"
	"github.com/promptclash/server/internal/gemini"
	"github.com/promptclash/server/internal/lobby"
)

// fakeGenerator returns deterministic artifacts, or fails on demand.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeGenerator) GenerateSite(_ context.Context, prompt string) (*gemini.Artifact, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, &gemini.RequestError{Msg: "gemini request failed"}
	}
	return &gemini.Artifact{
		Context: "User prompt: " + prompt,
		HTML:    "<main>" + prompt + "</main>",
		CSS:     "main{display:block}",
	}, nil
}

// fakeJudge hands out fixed category scores.
type fakeJudge struct {
	fail    bool
	scores  map[string]float64 // player -> every-category score
	lastReq gemini.ScoringRequest
}

func (f *fakeJudge) ScoreSubmissions(_ context.Context, req gemini.ScoringRequest) (*gemini.ScoreReport, error) {
	f.lastReq = req
	if f.fail {
		return nil, &gemini.RequestError{Msg: "gemini scoring failed"}
	}
	players := map[string]gemini.PlayerScore{}
	for _, p := range req.Players {
		per := f.scores[p]
		categories := map[string]float64{}
		feedback := map[string]string{}
		for _, cat := range gemini.Categories {
			categories[cat] = per
			feedback[cat] = "feedback for " + cat
		}
		players[p] = gemini.PlayerScore{Categories: categories, Feedback: feedback}
	}
	return &gemini.ScoreReport{Players: players}, nil
}

func newTestOrchestrator(gen Generator, judge Judge) (*Orchestrator, *game.Store, *lobby.Store) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	games := game.NewStore(nil, nil, logger)
	lobbies := lobby.NewStore(nil, logger)
	return New(games, lobbies, gen, judge, nil, logger), games, lobbies
}

func TestSubmitPromptAdvancesOnceBothPresent(t *testing.T) {
	gen := &fakeGenerator{}
	o, games, _ := newTestOrchestrator(gen, nil)
	g, err := games.Create([]string{"Ann", "Ben"}, "", game.SourceManual)
	require.NoError(t, err)

	snap, err := o.SubmitPrompt(context.Background(), g.ID, "Ann", "build a blog")
	require.NoError(t, err)
	assert.Equal(t, game.StatusPending, snap.Status)
	assert.Equal(t, 0, gen.calls)

	snap, err = o.SubmitPrompt(context.Background(), g.ID, "Ben", "build a shop")
	require.NoError(t, err)
	assert.Equal(t, game.StatusCompleted, snap.Status)
	assert.Len(t, snap.Outputs, 2)
	assert.Contains(t, []string{"Ann", "Ben"}, snap.Winner)
	assert.Equal(t, 2, gen.calls)
	assert.NotEmpty(t, snap.Scores["Ann"])
	assert.NotEmpty(t, snap.Scores["Ben"])
}

func TestGenerationFailureLeavesProcessing(t *testing.T) {
	gen := &fakeGenerator{fail: true}
	o, games, _ := newTestOrchestrator(gen, nil)
	g, err := games.Create([]string{"Ann", "Ben"}, "", game.SourceManual)
	require.NoError(t, err)

	_, err = o.SubmitPrompt(context.Background(), g.ID, "Ann", "p1")
	require.NoError(t, err)
	_, err = o.SubmitPrompt(context.Background(), g.ID, "Ben", "p2")
	require.Error(t, err)
	assert.True(t, base.IsExternal(err))

	// left in processing, not reverted, not completed
	stuck, err := games.Get(g.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusProcessing, stuck.Status)

	// retry succeeds without re-submitting prompts
	gen.mu.Lock()
	gen.fail = false
	gen.mu.Unlock()
	done, err := o.Retry(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusCompleted, done.Status)
}

func TestRetryRequiresInputs(t *testing.T) {
	o, games, _ := newTestOrchestrator(&fakeGenerator{}, nil)
	g, err := games.Create([]string{"Ann", "Ben"}, "", game.SourceManual)
	require.NoError(t, err)

	_, err = o.Retry(context.Background(), g.ID)
	require.Error(t, err)
	assert.True(t, base.IsConflict(err))

	_, err = o.SubmitPrompt(context.Background(), g.ID, "Ann", "only one")
	require.NoError(t, err)
	_, err = o.Retry(context.Background(), g.ID)
	assert.True(t, base.IsConflict(err))
}

func TestRetryIdempotentWhenCompleted(t *testing.T) {
	gen := &fakeGenerator{}
	o, games, _ := newTestOrchestrator(gen, nil)
	g, err := games.Create([]string{"Ann", "Ben"}, "", game.SourceManual)
	require.NoError(t, err)

	_, err = o.SubmitPrompt(context.Background(), g.ID, "Ann", "p1")
	require.NoError(t, err)
	done, err := o.SubmitPrompt(context.Background(), g.ID, "Ben", "p2")
	require.NoError(t, err)
	require.Equal(t, game.StatusCompleted, done.Status)

	calls := gen.calls
	again, err := o.Retry(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusCompleted, again.Status)
	assert.Equal(t, calls, gen.calls) // no re-generation
}

func TestSubmissionFlowScoresFiveCategories(t *testing.T) {
	judge := &fakeJudge{scores: map[string]float64{"Ann": 15, "Ben": 12}}
	o, games, _ := newTestOrchestrator(nil, judge)
	g, err := games.Create([]string{"Ann", "Ben"}, "", game.SourceManual)
	require.NoError(t, err)
	_, err = games.RecordPrompt(g.ID, "Ann", "warm tones")
	require.NoError(t, err)
	_, err = games.RecordPrompt(g.ID, "Ben", "minimal")
	require.NoError(t, err)

	snap, err := o.SubmitSubmission(context.Background(), g.ID, "Ann", "sub_a")
	require.NoError(t, err)
	assert.Equal(t, game.StatusPending, snap.Status)

	snap, err = o.SubmitSubmission(context.Background(), g.ID, "ben", "sub_b")
	require.NoError(t, err)
	assert.Equal(t, game.StatusCompleted, snap.Status)
	assert.Equal(t, "Ann", snap.Winner)
	assert.InDelta(t, 75.0, snap.Scores["Ann"], 1e-9)
	assert.InDelta(t, 60.0, snap.Scores["Ben"], 1e-9)
	assert.Len(t, snap.CategoryScores["Ann"], 5)
	assert.Len(t, snap.Feedback["Ben"], 5)

	// score decomposition invariant
	for _, player := range snap.Players {
		var sum float64
		for _, v := range snap.CategoryScores[player] {
			sum += v
		}
		assert.InDelta(t, snap.Scores[player], sum, 1e-6)
	}
}

func TestSubmissionFlowWithoutJudgeFails(t *testing.T) {
	o, games, _ := newTestOrchestrator(nil, nil)
	g, err := games.Create([]string{"Ann", "Ben"}, "", game.SourceManual)
	require.NoError(t, err)

	_, err = o.SubmitSubmission(context.Background(), g.ID, "Ann", "sub_a")
	require.NoError(t, err)
	_, err = o.SubmitSubmission(context.Background(), g.ID, "Ben", "sub_b")
	require.Error(t, err)
	assert.True(t, base.IsExternal(err))

	stuck, err := games.Get(g.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusProcessing, stuck.Status)
}

func TestJudgeReceivesGradingContext(t *testing.T) {
	judge := &fakeJudge{scores: map[string]float64{"Ann": 10, "Ben": 8}}
	o, games, _ := newTestOrchestrator(nil, judge)

	// empty challenge auto-assigns one from the catalog
	g, err := games.Create([]string{"Ann", "Ben"}, "", game.SourceManual)
	require.NoError(t, err)

	_, err = o.SubmitSubmission(context.Background(), g.ID, "Ann", "sub_a")
	require.NoError(t, err)
	_, err = o.SubmitSubmission(context.Background(), g.ID, "Ben", "sub_b")
	require.NoError(t, err)

	assert.Contains(t, judge.lastReq.Challenge, "Requirements:")
	assert.Contains(t, judge.lastReq.Challenge, "Grading Criteria:")
}

func TestJudgeSeesCustomChallengeVerbatim(t *testing.T) {
	judge := &fakeJudge{scores: map[string]float64{"Ann": 10, "Ben": 8}}
	o, games, _ := newTestOrchestrator(nil, judge)

	g, err := games.Create([]string{"Ann", "Ben"}, "Build a weather widget", game.SourceManual)
	require.NoError(t, err)

	_, err = o.SubmitSubmission(context.Background(), g.ID, "Ann", "sub_a")
	require.NoError(t, err)
	_, err = o.SubmitSubmission(context.Background(), g.ID, "Ben", "sub_b")
	require.NoError(t, err)

	assert.Equal(t, "Build a weather widget", judge.lastReq.Challenge)
}

func TestJudgeFailureThenRetry(t *testing.T) {
	judge := &fakeJudge{fail: true, scores: map[string]float64{"Ann": 10, "Ben": 10}}
	o, games, _ := newTestOrchestrator(nil, judge)
	g, err := games.Create([]string{"Ann", "Ben"}, "", game.SourceManual)
	require.NoError(t, err)

	_, err = o.SubmitSubmission(context.Background(), g.ID, "Ann", "sub_a")
	require.NoError(t, err)
	_, err = o.SubmitSubmission(context.Background(), g.ID, "Ben", "sub_b")
	assert.True(t, base.IsExternal(err))

	judge.fail = false
	done, err := o.Retry(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusCompleted, done.Status)
	// equal totals: the first-listed player wins the tie
	assert.Equal(t, "Ann", done.Winner)
}

func TestPickWinnerTieBreak(t *testing.T) {
	players := []string{"Ann", "Ben"}
	assert.Equal(t, "Ann", pickWinner(players, map[string]float64{"Ann": 50, "Ben": 50}))
	assert.Equal(t, "Ben", pickWinner(players, map[string]float64{"Ann": 49.9, "Ben": 50}))
	assert.Equal(t, "Ann", pickWinner(players, map[string]float64{"Ann": 50.1, "Ben": 50}))
}

func TestStartFromLobby(t *testing.T) {
	o, games, lobbies := newTestOrchestrator(&fakeGenerator{}, nil)

	l, err := lobbies.Create("Ann")
	require.NoError(t, err)
	_, err = lobbies.Join(l.ID, "Ben")
	require.NoError(t, err)
	_, err = lobbies.ToggleReady(l.ID, "Ann")
	require.NoError(t, err)
	_, err = lobbies.ToggleReady(l.ID, "Ben")
	require.NoError(t, err)

	snap, g, err := o.StartFromLobby(context.Background(), l.ID, "Ann", "")
	require.NoError(t, err)
	assert.Equal(t, lobby.StatusStarted, snap.Status)
	assert.Equal(t, []string{"Ann", "Ben"}, g.Players)
	assert.Equal(t, game.SourceLobby, g.Source)

	// the lobby is marked started, not deleted
	kept, err := lobbies.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, lobby.StatusStarted, kept.Status)

	// game is retrievable from the game store
	fetched, err := games.Get(g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, fetched.ID)
}

func TestStartFromLobbyRequiresReady(t *testing.T) {
	o, _, lobbies := newTestOrchestrator(nil, nil)
	l, err := lobbies.Create("Ann")
	require.NoError(t, err)
	_, err = lobbies.Join(l.ID, "Ben")
	require.NoError(t, err)

	_, _, err = o.StartFromLobby(context.Background(), l.ID, "Ann", "")
	assert.True(t, base.IsConflict(err))
}

func TestScoreOutputHeuristic(t *testing.T) {
	assert.Equal(t, 0.0, scoreOutput(""))

	short := scoreOutput("<p>tiny</p>")
	long := scoreOutput("<main>" + string(make([]byte, 4000)) + "</main>")
	assert.Greater(t, long, short)
	assert.LessOrEqual(t, long, 100.0)
}
