// internal/game/game.go
package game

import (
	"strings"
	"time"

	"github.com/promptclash/server/internal/base"
)

// Status is the game lifecycle state. Transitions are monotonic: a completed
// game never goes back to processing or pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Provenance tags for how a game came to exist. Informational only.
const (
	SourceManual      = "manual"
	SourceLobby       = "lobby"
	SourceMatchmaking = "matchmaking"
)

// Sections splits a generated site artifact into its parts.
type Sections struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
	JS   string `json:"js"`
}

// Game is one two-party session. Per-player maps are keyed by the canonical
// (exact-case) player name stored in Players; callers are matched to it
// case-insensitively.
type Game struct {
	ID                string                        `json:"id"`
	Players           []string                      `json:"players"`
	AssignedChallenge string                        `json:"assigned_challenge"`
	Prompts           map[string]string             `json:"prompts"`
	Outputs           map[string]string             `json:"outputs"`
	OutputSections    map[string]Sections           `json:"output_sections"`
	Submissions       map[string]string             `json:"submissions"`
	Scores            map[string]float64            `json:"scores"`
	CategoryScores    map[string]map[string]float64 `json:"category_scores"`
	Feedback          map[string]map[string]string  `json:"feedback"`
	Winner            string                        `json:"winner,omitempty"`
	Status            Status                        `json:"status"`
	Source            string                        `json:"source"`
	CreatedAt         time.Time                     `json:"created_at"`
	UpdatedAt         time.Time                     `json:"updated_at"`
}

// CanonicalPlayer resolves a caller-supplied name to the exact-case name
// stored on the game. Matching is case-insensitive; the two stored names are
// distinct, so ambiguity is impossible.
func (g *Game) CanonicalPlayer(playerName string) (string, error) {
	for _, p := range g.Players {
		if strings.EqualFold(p, playerName) {
			return p, nil
		}
	}
	return "", base.Validationf("player is not part of this game")
}

// NeedsGeneration reports whether the prompt flow should advance: the game is
// not already processing or completed and every player has a recorded prompt.
func (g *Game) NeedsGeneration() bool {
	if g.Status == StatusProcessing || g.Status == StatusCompleted {
		return false
	}
	return g.allPresent(g.Prompts)
}

// NeedsScoring is the submission-flow advancement trigger, keyed on
// submissions instead of prompts.
func (g *Game) NeedsScoring() bool {
	if g.Status == StatusProcessing || g.Status == StatusCompleted {
		return false
	}
	return g.allPresent(g.Submissions)
}

func (g *Game) allPresent(m map[string]string) bool {
	if len(g.Players) == 0 {
		return false
	}
	for _, p := range g.Players {
		if m[p] == "" {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers never observe later store mutation.
func (g *Game) Clone() *Game {
	cp := *g
	cp.Players = append([]string(nil), g.Players...)
	cp.Prompts = copyStringMap(g.Prompts)
	cp.Outputs = copyStringMap(g.Outputs)
	cp.Submissions = copyStringMap(g.Submissions)
	cp.Scores = copyFloatMap(g.Scores)

	cp.OutputSections = make(map[string]Sections, len(g.OutputSections))
	for k, v := range g.OutputSections {
		cp.OutputSections[k] = v
	}
	cp.CategoryScores = make(map[string]map[string]float64, len(g.CategoryScores))
	for k, v := range g.CategoryScores {
		cp.CategoryScores[k] = copyFloatMap(v)
	}
	cp.Feedback = make(map[string]map[string]string, len(g.Feedback))
	for k, v := range g.Feedback {
		cp.Feedback[k] = copyStringMap(v)
	}
	return &cp
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
