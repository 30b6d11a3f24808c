package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com/v1/messages"
	defaultSummaryModel   = "claude-haiku-4-5"
	summaryMaxTokens      = 4096
	anthropicAPIVersion   = "2023-06-01"
	summaryPromptPreamble = "Here is the meeting transcript to summarize:\n\n"
)

// ErrEmptySummary is returned when the model replies without text.
var ErrEmptySummary = errors.New("empty response from Anthropic API")

// Summarize turns a transcript into summary.md using the Anthropic
// messages API.
type Summarize struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Endpoint     string
	Client       *http.Client
	Logger       *zap.Logger
}

// Execute summarizes transcript and writes summary.md into outDir,
// returning the file's path.
func (s *Summarize) Execute(ctx context.Context, transcript string, outDir string) (string, error) {
	if s.APIKey == "" {
		return "", fmt.Errorf("anthropic %w: set MEETBOT_ANTHROPIC_API_KEY or add anthropic_api_key to config", ErrMissingAPIKey)
	}

	payload, err := json.Marshal(s.request(transcript))
	if err != nil {
		return "", err
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultAnthropicURL
	}

	var reply messagesReply
	call := hostedCall{
		service:     "anthropic",
		endpoint:    endpoint,
		contentType: "application/json",
		auth: map[string]string{
			"x-api-key":         s.APIKey,
			"anthropic-version": anthropicAPIVersion,
		},
		body: bytes.NewReader(payload),
	}
	if err := call.do(ctx, s.Client, &reply); err != nil {
		return "", err
	}

	summary := reply.text()
	if summary == "" {
		return "", ErrEmptySummary
	}

	path := filepath.Join(outDir, "summary.md")
	if err := os.WriteFile(path, []byte("# Meeting Summary\n\n"+summary+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("writing summary: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Info("summary written", zap.String("path", path))
	}
	return path, nil
}

func (s *Summarize) request(transcript string) messagesRequest {
	model := s.Model
	if model == "" {
		model = defaultSummaryModel
	}
	return messagesRequest{
		Model:     model,
		MaxTokens: summaryMaxTokens,
		System:    s.SystemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: summaryPromptPreamble + transcript}},
	}
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesReply struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// text joins the reply's text blocks.
func (r messagesReply) text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}
