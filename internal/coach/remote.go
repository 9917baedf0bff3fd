package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Dias221467/SuperHuman/pkg/logger"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout    = 15 * time.Second
	remoteMaxTokens   = 600
	remoteTemperature = 0.8
)

// RemoteGenerator calls an OpenAI compatible chat completion endpoint. Any
// remote failure is answered by the fallback generator instead.
type RemoteGenerator struct {
	apiKey   string
	url      string
	model    string
	client   *http.Client
	fallback Generator
}

func NewRemoteGenerator(cfg Config) *RemoteGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RemoteGenerator{
		apiKey:   cfg.APIKey,
		url:      cfg.APIURL,
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
		fallback: FallbackGenerator{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *RemoteGenerator) Generate(ctx context.Context, prompt string, c Context) (*Response, error) {
	content, err := g.complete(ctx, prompt, c)
	if err != nil {
		logger.Log.WithError(err).Warn("Coach completion failed, using fallback")
		return g.fallback.Generate(ctx, prompt, c)
	}
	return &Response{
		Content:     content,
		Suggestions: defaultSuggestions(strings.ToLower(prompt), c.TotalScore),
	}, nil
}

func (g *RemoteGenerator) complete(ctx context.Context, prompt string, c Context) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(c)},
			{Role: "user", Content: prompt},
		},
		Temperature: remoteTemperature,
		MaxTokens:   remoteMaxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("coach request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("coach endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode coach response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("coach response had no content")
	}

	logger.Log.WithFields(logrus.Fields{
		"model":       g.model,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Coach completion received")
	return out.Choices[0].Message.Content, nil
}

// SystemPrompt describes the coach persona and the user's standing.
func SystemPrompt(c Context) string {
	var b strings.Builder
	name := displayName(c)
	if c.UserName == "" {
		name = "the user"
	}

	fmt.Fprintf(&b, "You are a personal coach in the SuperHuman app helping %s with self-improvement.\n\n", name)
	b.WriteString("Be encouraging and direct. Answer the question that was asked, give one to three concrete actions the user can take now, and keep replies to three to five sentences.\n\n")
	fmt.Fprintf(&b, "User profile:\n- Level %d with %d points\n", c.Level, c.TotalScore)

	if len(c.FocusAreas) > 0 {
		fmt.Fprintf(&b, "- Focus areas: %s\n", strings.Join(c.FocusAreas, ", "))
	}
	if len(c.RecentActivities) == 0 {
		b.WriteString("- Recent activities: none logged yet\n")
	} else {
		parts := make([]string, 0, len(c.RecentActivities))
		for _, a := range c.RecentActivities {
			parts = append(parts, fmt.Sprintf("%s (%dp)", a.Name, a.Points))
		}
		fmt.Fprintf(&b, "- Recent activities: %s\n", strings.Join(parts, ", "))
	}
	if !c.Now.IsZero() {
		fmt.Fprintf(&b, "- Local time: %s\n", c.Now.Format("15:04"))
	}
	return b.String()
}
