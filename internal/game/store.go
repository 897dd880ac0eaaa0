// internal/game/store.go
package game

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptclash/server/internal/base"
	"github.com/promptclash/server/internal/challenge"
	"github.com/promptclash/server/internal/notify"
)

// Recorder durably records a completed game's outcome. Implementations are
// collaborators: their unavailability must never prevent the in-memory
// lifecycle from completing.
type Recorder interface {
	RecordCompletedGame(ctx context.Context, g *Game) error
}

// Store owns all live games. One coarse mutex guards the map; every operation
// either fully applies or applies nothing, and external calls (notifier,
// recorder) happen only after the lock is released.
type Store struct {
	mu    sync.Mutex
	games map[string]*Game

	notifier notify.Notifier
	recorder Recorder
	logger   *logrus.Logger
}

// NewStore returns an empty in-memory game store. notifier and recorder may
// be nil.
func NewStore(notifier notify.Notifier, recorder Recorder, logger *logrus.Logger) *Store {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Store{
		games:    make(map[string]*Game),
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
	}
}

// Create builds a pending game for exactly two distinct players. When no
// challenge is supplied one is drawn from the catalog.
func (s *Store) Create(players []string, assignedChallenge, source string) (*Game, error) {
	if len(players) != 2 {
		return nil, base.Validationf("exactly two players are required")
	}
	normalized := make([]string, 2)
	for i, p := range players {
		name, err := base.NormalizeName(p, "player_name")
		if err != nil {
			return nil, err
		}
		normalized[i] = name
	}
	if strings.EqualFold(normalized[0], normalized[1]) {
		return nil, base.Validationf("players must be distinct")
	}
	if source == "" {
		source = SourceManual
	}
	if assignedChallenge == "" {
		assignedChallenge = challenge.Random().FullPrompt()
	}

	now := time.Now().UTC()
	g := &Game{
		ID:                base.NewID("game"),
		Players:           normalized,
		AssignedChallenge: assignedChallenge,
		Prompts:           map[string]string{},
		Outputs:           map[string]string{},
		OutputSections:    map[string]Sections{},
		Submissions:       map[string]string{},
		Scores:            map[string]float64{},
		CategoryScores:    map[string]map[string]float64{},
		Feedback:          map[string]map[string]string{},
		Status:            StatusPending,
		Source:            source,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	s.mu.Lock()
	s.games[g.ID] = g
	snap := g.Clone()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"game":    snap.ID,
		"players": snap.Players,
		"source":  source,
	}).Info("game created")
	s.publish(snap.ID, "game_created", map[string]interface{}{"game": snap})
	return snap, nil
}

// Get returns a snapshot of a game.
func (s *Store) Get(gameID string) (*Game, error) {
	s.mu.Lock()
	g, ok := s.games[gameID]
	var snap *Game
	if ok {
		snap = g.Clone()
	}
	s.mu.Unlock()

	if !ok {
		return nil, base.NotFoundf("game not found")
	}
	return snap, nil
}

// RecordPrompt stores a player's prompt. The prompt must be non-empty after
// trimming; the player is resolved case-insensitively.
func (s *Store) RecordPrompt(gameID, playerName, prompt string) (*Game, error) {
	player, err := base.NormalizeName(playerName, "player_name")
	if err != nil {
		return nil, err
	}
	cleaned := strings.TrimSpace(prompt)
	if cleaned == "" {
		return nil, base.Validationf("prompt cannot be empty")
	}

	s.mu.Lock()
	g, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return nil, base.NotFoundf("game not found")
	}
	canonical, err := g.CanonicalPlayer(player)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	g.Prompts[canonical] = cleaned
	g.UpdatedAt = time.Now().UTC()
	snap := g.Clone()
	s.mu.Unlock()

	s.publish(gameID, "prompt_submitted", map[string]interface{}{"gameId": gameID, "player": canonical})
	return snap, nil
}

// RecordOutput stores a player's generated artifact. sections may be nil when
// the artifact has no structured form. No status change.
func (s *Store) RecordOutput(gameID, playerName, output string, sections *Sections) (*Game, string, error) {
	s.mu.Lock()
	g, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return nil, "", base.NotFoundf("game not found")
	}
	canonical, err := g.CanonicalPlayer(playerName)
	if err != nil {
		s.mu.Unlock()
		return nil, "", err
	}
	g.Outputs[canonical] = output
	if sections != nil {
		g.OutputSections[canonical] = *sections
	}
	g.UpdatedAt = time.Now().UTC()
	snap := g.Clone()
	s.mu.Unlock()

	s.publish(gameID, "output_generated", map[string]interface{}{"gameId": gameID, "player": canonical})
	return snap, canonical, nil
}

// RecordSubmission stores an opaque reference to a player's final artifact.
func (s *Store) RecordSubmission(gameID, playerName, submissionRef string) (*Game, string, error) {
	if strings.TrimSpace(submissionRef) == "" {
		return nil, "", base.Validationf("submission reference is required")
	}

	s.mu.Lock()
	g, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return nil, "", base.NotFoundf("game not found")
	}
	canonical, err := g.CanonicalPlayer(playerName)
	if err != nil {
		s.mu.Unlock()
		return nil, "", err
	}
	g.Submissions[canonical] = submissionRef
	g.UpdatedAt = time.Now().UTC()
	snap := g.Clone()
	s.mu.Unlock()

	s.publish(gameID, "submission_received", map[string]interface{}{"gameId": gameID, "player": canonical})
	return snap, canonical, nil
}

// MarkProcessing moves the game to processing. No-op when already completed;
// status never moves backwards.
func (s *Store) MarkProcessing(gameID string) (*Game, error) {
	s.mu.Lock()
	g, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return nil, base.NotFoundf("game not found")
	}
	if g.Status == StatusCompleted {
		snap := g.Clone()
		s.mu.Unlock()
		return snap, nil
	}
	g.Status = StatusProcessing
	g.UpdatedAt = time.Now().UTC()
	snap := g.Clone()
	s.mu.Unlock()

	s.publish(gameID, "game_processing", map[string]interface{}{"game": snap})
	return snap, nil
}

// Result carries the compute collaborator's verdict into Complete. Maps merge
// into the game's existing maps, last write wins per key; every key must
// resolve to one of the game's players.
type Result struct {
	Outputs        map[string]string
	Scores         map[string]float64
	CategoryScores map[string]map[string]float64
	Feedback       map[string]map[string]string
	Winner         string
	Status         Status
}

// Complete merges the result into the game and sets its final status
// (completed when res.Status is empty). Persistence runs after the lock is
// released and never fails the completion.
func (s *Store) Complete(gameID string, res Result) (*Game, error) {
	status := res.Status
	if status == "" {
		status = StatusCompleted
	}

	s.mu.Lock()
	g, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return nil, base.NotFoundf("game not found")
	}

	// Validate every player key up front so the merge is all-or-nothing.
	rekeyed := struct {
		outputs  map[string]string
		scores   map[string]float64
		catScore map[string]map[string]float64
		feedback map[string]map[string]string
		winner   string
	}{
		outputs:  map[string]string{},
		scores:   map[string]float64{},
		catScore: map[string]map[string]float64{},
		feedback: map[string]map[string]string{},
	}
	for player, v := range res.Outputs {
		canonical, err := g.CanonicalPlayer(player)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		rekeyed.outputs[canonical] = v
	}
	for player, v := range res.Scores {
		canonical, err := g.CanonicalPlayer(player)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		rekeyed.scores[canonical] = v
	}
	for player, v := range res.CategoryScores {
		canonical, err := g.CanonicalPlayer(player)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		rekeyed.catScore[canonical] = copyFloatMap(v)
	}
	for player, v := range res.Feedback {
		canonical, err := g.CanonicalPlayer(player)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		rekeyed.feedback[canonical] = copyStringMap(v)
	}
	if res.Winner != "" {
		canonical, err := g.CanonicalPlayer(res.Winner)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		rekeyed.winner = canonical
	}

	for k, v := range rekeyed.outputs {
		g.Outputs[k] = v
	}
	for k, v := range rekeyed.scores {
		g.Scores[k] = v
	}
	for k, v := range rekeyed.catScore {
		g.CategoryScores[k] = v
	}
	for k, v := range rekeyed.feedback {
		g.Feedback[k] = v
	}
	g.Winner = rekeyed.winner
	g.Status = status
	g.UpdatedAt = time.Now().UTC()
	snap := g.Clone()
	s.mu.Unlock()

	s.publish(gameID, "game_completed", map[string]interface{}{"game": snap})
	s.persist(snap)
	return snap, nil
}

func (s *Store) persist(g *Game) {
	if s.recorder == nil || g.Status != StatusCompleted {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.RecordCompletedGame(ctx, g.Clone()); err != nil {
		s.logger.WithError(err).WithField("game", g.ID).Warn("recording completed game failed")
	}
}

func (s *Store) publish(gameID, event string, payload interface{}) {
	s.notifier.Publish(context.Background(), notify.GameChannel(gameID), event, payload)
}
