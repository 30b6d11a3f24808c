package usecases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const defaultMistralURL = "https://api.mistral.ai/v1/audio/transcriptions"

// ErrMissingAPIKey is returned when a hosted service has no key configured.
var ErrMissingAPIKey = errors.New("API key not set")

// Transcribe handles audio transcription via Mistral Voxtral API.
type Transcribe struct {
	APIKey   string
	Model    string
	Endpoint string
	Client   *http.Client
	Logger   *zap.Logger
}

// TranscriptSegment represents a diarized segment of the transcript.
type TranscriptSegment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// TranscriptResult holds the full transcription result.
type TranscriptResult struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
	Path     string              `json:"-"`
}

// Execute transcribes the audio file and writes transcript.md to outDir.
func (t *Transcribe) Execute(ctx context.Context, audioPath string, outDir string) (*TranscriptResult, error) {
	if t.APIKey == "" {
		return nil, fmt.Errorf("mistral %w: set MEETBOT_MISTRAL_API_KEY or add mistral_api_key to config", ErrMissingAPIKey)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	model := t.Model
	if model == "" {
		model = "voxtral-mini-latest"
	}
	if err := writer.WriteField("model", model); err != nil {
		return nil, err
	}
	if err := writer.WriteField("diarize", "true"); err != nil {
		return nil, err
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = defaultMistralURL
	}
	t.logger().Info("uploading audio for transcription", zap.String("path", audioPath), zap.String("model", model))

	var apiResp transcriptionAPIResponse
	call := hostedCall{
		service:     "mistral",
		endpoint:    endpoint,
		contentType: writer.FormDataContentType(),
		auth:        map[string]string{"Authorization": "Bearer " + t.APIKey},
		body:        body,
	}
	if err := call.do(ctx, t.Client, &apiResp); err != nil {
		return nil, err
	}

	result := &TranscriptResult{
		Text: apiResp.Text,
	}
	for _, seg := range apiResp.Segments {
		result.Segments = append(result.Segments, TranscriptSegment{
			Speaker: seg.Speaker,
			Text:    seg.Text,
		})
	}

	result.Path = filepath.Join(outDir, "transcript.md")
	if err := os.WriteFile(result.Path, []byte(formatTranscript(result)), 0o644); err != nil {
		return nil, fmt.Errorf("writing transcript: %w", err)
	}

	t.logger().Info("transcript written", zap.String("path", result.Path), zap.Int("segments", len(result.Segments)))
	return result, nil
}

func (t *Transcribe) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func formatTranscript(result *TranscriptResult) string {
	var sb strings.Builder
	sb.WriteString("# Meeting Transcript\n\n")

	if len(result.Segments) > 0 {
		currentSpeaker := ""
		for i, seg := range result.Segments {
			if i == 0 || seg.Speaker != currentSpeaker {
				currentSpeaker = seg.Speaker
				speaker := currentSpeaker
				if speaker == "" {
					speaker = "Unknown"
				}
				fmt.Fprintf(&sb, "\n**%s:**\n", speaker)
			}
			sb.WriteString(strings.TrimSpace(seg.Text) + " ")
		}
	} else {
		// no diarization
		sb.WriteString(result.Text)
	}

	sb.WriteString("\n")
	return sb.String()
}

// transcriptionAPIResponse matches the Mistral transcription API response.
type transcriptionAPIResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	} `json:"segments"`
}
