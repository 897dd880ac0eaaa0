// internal/gemini/client.go
//
// Package gemini is the compute collaborator client: prompt -> generated site
// artifact, and submissions -> judged category scores. Every failure mode
// (unconfigured client, transport error, malformed response) surfaces as a
// single ExternalServiceError kind so the orchestrator has one retry story.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
)

// Categories are the five fixed scoring categories, 0-20 points each. A
// player's total score is their sum.
var Categories = []string{
	"visual_design",
	"adherence",
	"creativity",
	"prompt_clarity",
	"prompt_formulation",
}

// Config configures the Gemini endpoint and HTTP behavior.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client talks to the Gemini generateContent API.
type Client struct {
	cfg Config
}

// New builds a client, filling in endpoint and transport defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg}
}

// Artifact is a generated site split into named text sections.
type Artifact struct {
	Context string `json:"context"`
	HTML    string `json:"html"`
	CSS     string `json:"css"`
	JS      string `json:"js"`
}

// Combined flattens the artifact into a single renderable string.
func (a *Artifact) Combined() string {
	return strings.Join([]string{
		a.HTML,
		"<style>",
		a.CSS,
		"</style>",
		"<script>",
		a.JS,
		"</script>",
	}, "\n\n")
}

// ScoringRequest carries everything the judge needs: the challenge, both
// players' prompts, and opaque references to their final artifacts.
type ScoringRequest struct {
	Challenge   string
	Players     [2]string
	Prompts     map[string]string
	Submissions map[string]string
}

// PlayerScore is one player's judged breakdown.
type PlayerScore struct {
	Categories map[string]float64
	Feedback   map[string]string
}

// Total is the sum of the category scores.
func (p PlayerScore) Total() float64 {
	var sum float64
	for _, v := range p.Categories {
		sum += v
	}
	return sum
}

// ScoreReport maps canonical player names to their judged scores.
type ScoreReport struct {
	Players map[string]PlayerScore
}

// RequestError is any collaborator failure: transport, HTTP status, or a
// response the client could not parse. The orchestrator wraps these into its
// ExternalServiceError kind.
type RequestError struct {
	Msg string
	Err error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RequestError) Unwrap() error { return e.Err }

func reqError(msg string, err error) error { return &RequestError{Msg: msg, Err: err} }

// GenerateSite asks the model to turn a player's prompt into a site artifact.
func (c *Client) GenerateSite(ctx context.Context, prompt string) (*Artifact, error) {
	if c.cfg.APIKey == "" {
		return nil, reqError("gemini client is not configured", nil)
	}

	raw, err := c.generateContent(ctx, buildGenerationPrompt(prompt), 65536)
	if err != nil {
		return nil, err
	}

	var artifact Artifact
	if err := unmarshalLoose(raw, &artifact); err != nil {
		return nil, reqError("gemini response missing required sections", err)
	}
	if artifact.HTML == "" {
		return nil, reqError("gemini response missing required sections", nil)
	}
	artifact.Context = strings.TrimSpace(artifact.Context)
	artifact.HTML = strings.TrimSpace(artifact.HTML)
	artifact.CSS = strings.TrimSpace(artifact.CSS)
	artifact.JS = strings.TrimSpace(artifact.JS)
	return &artifact, nil
}

// ScoreSubmissions judges both players' submissions against the challenge and
// returns per-category scores and feedback keyed by canonical player name.
func (c *Client) ScoreSubmissions(ctx context.Context, req ScoringRequest) (*ScoreReport, error) {
	if c.cfg.APIKey == "" {
		return nil, reqError("gemini client is not configured", nil)
	}

	raw, err := c.generateContent(ctx, buildScoringPrompt(req), 8192)
	if err != nil {
		return nil, err
	}

	var parsed map[string]judgedPlayer
	if err := unmarshalLoose(raw, &parsed); err != nil {
		return nil, reqError("gemini scoring response malformed", err)
	}
	p1, ok1 := parsed["player1"]
	p2, ok2 := parsed["player2"]
	if !ok1 || !ok2 {
		return nil, reqError("gemini response missing required scoring data", nil)
	}

	return &ScoreReport{Players: map[string]PlayerScore{
		req.Players[0]: p1.toScore(),
		req.Players[1]: p2.toScore(),
	}}, nil
}

type judgedPlayer struct {
	VisualDesign      float64           `json:"visual_design"`
	Adherence         float64           `json:"adherence"`
	Creativity        float64           `json:"creativity"`
	PromptClarity     float64           `json:"prompt_clarity"`
	PromptFormulation float64           `json:"prompt_formulation"`
	Feedback          map[string]string `json:"feedback"`
}

func (j judgedPlayer) toScore() PlayerScore {
	categories := map[string]float64{
		"visual_design":      clampScore(j.VisualDesign),
		"adherence":          clampScore(j.Adherence),
		"creativity":         clampScore(j.Creativity),
		"prompt_clarity":     clampScore(j.PromptClarity),
		"prompt_formulation": clampScore(j.PromptFormulation),
	}
	feedback := make(map[string]string, len(Categories))
	for _, cat := range Categories {
		feedback[cat] = j.Feedback[cat]
	}
	return PlayerScore{Categories: categories, Feedback: feedback}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 20 {
		return 20
	}
	return v
}

// generateContent performs one generateContent call and returns the model's
// raw text reply.
func (c *Client) generateContent(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.3,
			"topP":            0.8,
			"topK":            32,
			"maxOutputTokens": maxTokens,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", reqError("gemini request marshal failed", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", reqError("gemini request build failed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", reqError("gemini request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", reqError("gemini response read failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", reqError(fmt.Sprintf("gemini returned status %d", resp.StatusCode), nil)
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", reqError("gemini response decode failed", err)
	}
	text := parsed.text()
	if text == "" {
		return "", reqError("gemini response contained no text", nil)
	}
	return text, nil
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r generateContentResponse) text() string {
	var collected []string
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				collected = append(collected, part.Text)
			}
		}
	}
	return strings.Join(collected, "\n")
}

// unmarshalLoose extracts the first JSON object from a model reply that may
// be wrapped in markdown fences or surrounding prose.
func unmarshalLoose(raw string, v interface{}) error {
	cleaned := strings.Trim(strings.TrimSpace(raw), "` \n")
	if !strings.HasPrefix(cleaned, "{") {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start == -1 || end == -1 || end <= start {
			return fmt.Errorf("no JSON object in response")
		}
		cleaned = cleaned[start : end+1]
	}
	return json.Unmarshal([]byte(cleaned), v)
}

func buildGenerationPrompt(prompt string) string {
	instructions := `Respond ONLY with JSON following this schema:
{ "context": "User prompt: <prompt>", "html": "<html...>", "css": "...", "js": "..." }
Rules:
- Do NOT wrap the JSON in markdown fences.
- context must be exactly "User prompt: <prompt>".
- html/css/js must be plain text (no backticks) and must not repeat the prompt text verbatim.
- Use semantic HTML, responsive CSS, and vanilla JS only for behaviors explicitly requested.
- Do NOT add extra features beyond the descriptions of the prompt.`
	return instructions + "\nUser prompt: " + prompt
}

func buildScoringPrompt(req ScoringRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are judging a creative coding competition. Two players have submitted their work based on the requirement: %q.\n\n", req.Challenge)
	fmt.Fprintf(&b, "Player 1 (%s) prompt: %q\n", req.Players[0], req.Prompts[req.Players[0]])
	fmt.Fprintf(&b, "Player 1 (%s) submission: %q\n", req.Players[0], req.Submissions[req.Players[0]])
	fmt.Fprintf(&b, "Player 2 (%s) prompt: %q\n", req.Players[1], req.Prompts[req.Players[1]])
	fmt.Fprintf(&b, "Player 2 (%s) submission: %q\n\n", req.Players[1], req.Submissions[req.Players[1]])
	b.WriteString(`Evaluate both submissions based on these 5 criteria (20 points each, total 100 points):

1. Visual Design and Aesthetics (20 points)
2. Adherence to requirement (20 points)
3. Creativity and Innovation (20 points)
4. Prompt Clarity (20 points)
5. Prompt Formulation (20 points)

Respond ONLY with valid JSON in this exact format:
{
  "player1": {"visual_design": 0, "adherence": 0, "creativity": 0, "prompt_clarity": 0, "prompt_formulation": 0,
    "feedback": {"visual_design": "", "adherence": "", "creativity": "", "prompt_clarity": "", "prompt_formulation": ""}},
  "player2": {"visual_design": 0, "adherence": 0, "creativity": 0, "prompt_clarity": 0, "prompt_formulation": 0,
    "feedback": {"visual_design": "", "adherence": "", "creativity": "", "prompt_clarity": "", "prompt_formulation": ""}}
}

Do NOT wrap the JSON in markdown fences. Return only the JSON object.`)
	return b.String()
}
