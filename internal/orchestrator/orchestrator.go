// internal/orchestrator/orchestrator.go
//
// Package orchestrator bridges the game store to the compute collaborator.
// It watches for "ready to advance" conditions after every recorded input,
// runs generation/scoring outside all store locks, and writes results back.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/promptclash/server/internal/base"
	"github.com/promptclash/server/internal/challenge"
	"github.com/promptclash/server/internal/game"
	"github.com/promptclash/server/internal/gemini"
	"github.com/promptclash/server/internal/lobby"
	"github.com/promptclash/server/internal/notify"
)

// Generator turns a player's prompt into a site artifact.
type Generator interface {
	GenerateSite(ctx context.Context, prompt string) (*gemini.Artifact, error)
}

// Judge grades both players' submissions against the challenge.
type Judge interface {
	ScoreSubmissions(ctx context.Context, req gemini.ScoringRequest) (*gemini.ScoreReport, error)
}

// Orchestrator coordinates game advancement. generator and judge may be nil:
// a nil generator falls back to a local placeholder, a nil judge makes the
// submission flow fail with ExternalServiceError until one is configured.
type Orchestrator struct {
	games     *game.Store
	lobbies   *lobby.Store
	generator Generator
	judge     Judge
	notifier  notify.Notifier
	logger    *logrus.Logger
}

// New wires an orchestrator. notifier may be nil.
func New(games *game.Store, lobbies *lobby.Store, generator Generator, judge Judge, notifier notify.Notifier, logger *logrus.Logger) *Orchestrator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Orchestrator{
		games:     games,
		lobbies:   lobbies,
		generator: generator,
		judge:     judge,
		notifier:  notifier,
		logger:    logger,
	}
}

// SubmitPrompt records a player's prompt and, once both prompts are in,
// advances the game: generation for every prompt, scoring, completion.
func (o *Orchestrator) SubmitPrompt(ctx context.Context, gameID, playerName, prompt string) (*game.Game, error) {
	g, err := o.games.RecordPrompt(gameID, playerName, prompt)
	if err != nil {
		return nil, err
	}
	if !g.NeedsGeneration() {
		return g, nil
	}
	return o.processPrompts(ctx, gameID)
}

// SubmitSubmission records a reference to a player's final artifact and, once
// both submissions are in, advances the game through the judge.
func (o *Orchestrator) SubmitSubmission(ctx context.Context, gameID, playerName, submissionRef string) (*game.Game, error) {
	g, _, err := o.games.RecordSubmission(gameID, playerName, submissionRef)
	if err != nil {
		return nil, err
	}
	if !g.NeedsScoring() {
		return g, nil
	}
	return o.processSubmissions(ctx, gameID)
}

// Retry re-attempts advancement of a game stuck in processing after a
// collaborator failure. Idempotent when the game already completed; a
// ConflictError when required inputs are still missing.
func (o *Orchestrator) Retry(ctx context.Context, gameID string) (*game.Game, error) {
	g, err := o.games.Get(gameID)
	if err != nil {
		return nil, err
	}
	if g.Status == game.StatusCompleted {
		return g, nil
	}

	haveAll := func(m map[string]string) bool {
		for _, p := range g.Players {
			if m[p] == "" {
				return false
			}
		}
		return true
	}
	switch {
	case haveAll(g.Submissions):
		return o.processSubmissions(ctx, gameID)
	case haveAll(g.Prompts):
		return o.processPrompts(ctx, gameID)
	default:
		return nil, base.Conflictf("all player inputs are required before processing")
	}
}

// StartFromLobby performs the lobby-to-game handoff: host starts the lobby,
// a game is created from its players, and the lobby is marked started (it is
// not deleted). challenge may be empty to auto-select one.
func (o *Orchestrator) StartFromLobby(ctx context.Context, lobbyID, hostName, challenge string) (*lobby.Lobby, *game.Game, error) {
	l, err := o.lobbies.Start(lobbyID, hostName)
	if err != nil {
		return nil, nil, err
	}
	o.notifier.Publish(ctx, notify.LobbyChannel(lobbyID), "game_starting", map[string]interface{}{"lobby": l})

	g, err := o.games.Create(l.Players, challenge, game.SourceLobby)
	if err != nil {
		// The lobby stays in starting; the host can retry the call.
		return nil, nil, fmt.Errorf("create game from lobby: %w", err)
	}

	l, err = o.lobbies.MarkStarted(lobbyID)
	if err != nil {
		return nil, g, err
	}
	o.notifier.Publish(ctx, notify.LobbyChannel(lobbyID), "game_started", map[string]interface{}{"lobby": l, "game": g})
	return l, g, nil
}

// processPrompts runs the prompt flow: mark processing, generate an artifact
// per player, score outputs, pick a winner, complete. All collaborator calls
// happen between MarkProcessing and Complete, outside every store lock. On
// collaborator failure the game is left in processing for a retry.
func (o *Orchestrator) processPrompts(ctx context.Context, gameID string) (*game.Game, error) {
	g, err := o.games.MarkProcessing(gameID)
	if err != nil {
		return nil, err
	}
	if g.Status == game.StatusCompleted {
		return g, nil
	}

	scores := make(map[string]float64, len(g.Players))
	for _, player := range g.Players {
		artifact, err := o.generate(ctx, g.Prompts[player])
		if err != nil {
			o.logger.WithError(err).WithFields(logrus.Fields{
				"game":   gameID,
				"player": player,
			}).Warn("generation failed, game left in processing")
			return nil, base.External("generation failed", err)
		}
		combined := artifact.Combined()
		sections := &game.Sections{HTML: artifact.HTML, CSS: artifact.CSS, JS: artifact.JS}
		if _, _, err := o.games.RecordOutput(gameID, player, combined, sections); err != nil {
			return nil, err
		}
		scores[player] = scoreOutput(combined)
	}

	winner := pickWinner(g.Players, scores)
	return o.games.Complete(gameID, game.Result{Scores: scores, Winner: winner})
}

// processSubmissions runs the submission flow through the judge.
func (o *Orchestrator) processSubmissions(ctx context.Context, gameID string) (*game.Game, error) {
	g, err := o.games.MarkProcessing(gameID)
	if err != nil {
		return nil, err
	}
	if g.Status == game.StatusCompleted {
		return g, nil
	}
	if o.judge == nil {
		return nil, base.External("scoring client is not configured", nil)
	}

	// Hand the judge the full requirements and grading criteria when the
	// assigned challenge came from the catalog; custom challenges pass
	// through as-is.
	challengeContext := g.AssignedChallenge
	if c, ok := challenge.Find(g.AssignedChallenge); ok {
		challengeContext = c.GradingContext()
	}

	req := gemini.ScoringRequest{
		Challenge:   challengeContext,
		Players:     [2]string{g.Players[0], g.Players[1]},
		Prompts:     g.Prompts,
		Submissions: g.Submissions,
	}
	report, err := o.judge.ScoreSubmissions(ctx, req)
	if err != nil {
		o.logger.WithError(err).WithField("game", gameID).Warn("scoring failed, game left in processing")
		return nil, base.External("scoring failed", err)
	}

	scores := make(map[string]float64, len(g.Players))
	categoryScores := make(map[string]map[string]float64, len(g.Players))
	feedback := make(map[string]map[string]string, len(g.Players))
	for _, player := range g.Players {
		judged, ok := report.Players[player]
		if !ok {
			return nil, base.External("judge omitted a player from the report", nil)
		}
		scores[player] = judged.Total()
		categoryScores[player] = judged.Categories
		feedback[player] = judged.Feedback
	}

	winner := pickWinner(g.Players, scores)
	return o.games.Complete(gameID, game.Result{
		Scores:         scores,
		CategoryScores: categoryScores,
		Feedback:       feedback,
		Winner:         winner,
	})
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (*gemini.Artifact, error) {
	if o.generator != nil {
		return o.generator.GenerateSite(ctx, prompt)
	}
	// Local placeholder when no generation backend is configured.
	return &gemini.Artifact{
		Context: "User prompt: " + prompt,
		HTML:    fmt.Sprintf("<section class='prototype'>Generated concept for: %s</section>", prompt),
	}, nil
}

// pickWinner returns the player with the strictly higher total score. Ties go
// to the first-listed player: deterministic, and documented as the explicit
// tie-break policy.
func pickWinner(players []string, scores map[string]float64) string {
	if len(players) == 0 {
		return ""
	}
	winner := players[0]
	best := scores[winner]
	for _, p := range players[1:] {
		if scores[p] > best {
			winner = p
			best = scores[p]
		}
	}
	return winner
}

var wordRe = regexp.MustCompile(`\b\w+\b`)

// scoreOutput is the local heuristic used by the prompt flow: output length
// (capped at 70) plus vocabulary diversity (capped at 30), rounded to two
// decimals.
func scoreOutput(output string) float64 {
	words := wordRe.FindAllString(strings.ToLower(output), -1)
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	lengthScore := math.Min(float64(len(output))*0.02, 70)
	diversityScore := math.Min(float64(len(unique))*0.5, 30)
	return math.Round((lengthScore+diversityScore)*100) / 100
}
