package usecases

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranscribe_WritesDiarizedTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "voxtral-mini-latest", r.FormValue("model"))
		require.Equal(t, "true", r.FormValue("diarize"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		require.Equal(t, "recording.wav", hdr.Filename)
		data, _ := io.ReadAll(f)
		require.Equal(t, "RIFF", string(data))

		json.NewEncoder(w).Encode(map[string]any{
			"text": "hello there general kenobi",
			"segments": []map[string]string{
				{"speaker": "speaker_1", "text": "hello there"},
				{"speaker": "speaker_1", "text": "again"},
				{"speaker": "", "text": "general kenobi"},
			},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	audioPath := filepath.Join(dir, "recording.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("RIFF"), 0o644))

	tr := &Transcribe{APIKey: "key", Endpoint: srv.URL, Client: srv.Client()}
	res, err := tr.Execute(context.Background(), audioPath, dir)
	require.NoError(t, err)
	require.Len(t, res.Segments, 3)

	md, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	require.Equal(t, "# Meeting Transcript\n\n\n**speaker_1:**\nhello there again \n**Unknown:**\ngeneral kenobi \n", string(md))
}

func TestTranscribe_Errors(t *testing.T) {
	tr := &Transcribe{}
	_, err := tr.Execute(context.Background(), "x.wav", t.TempDir())
	require.ErrorIs(t, err, ErrMissingAPIKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	dir := t.TempDir()
	audioPath := filepath.Join(dir, "a.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("RIFF"), 0o644))
	tr = &Transcribe{APIKey: "k", Endpoint: srv.URL}
	_, err = tr.Execute(context.Background(), audioPath, dir)
	require.ErrorContains(t, err, "HTTP 429")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "mistral", apiErr.Service)
	require.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	require.NoFileExists(t, filepath.Join(dir, "transcript.md"))
}

func TestFormatTranscript_PlainText(t *testing.T) {
	got := formatTranscript(&TranscriptResult{Text: "just words"})
	require.Equal(t, "# Meeting Transcript\n\njust words\n", got)
}

func TestSummarize_WritesSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, defaultSummaryModel, req.Model)
		require.Equal(t, "be brief", req.System)
		require.Contains(t, req.Messages[0].Content, "the transcript")
		w.Write([]byte(`{"content":[{"type":"text","text":"## Summary\nShort."}]}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := &Summarize{APIKey: "k", SystemPrompt: "be brief", Endpoint: srv.URL}
	path, err := s.Execute(context.Background(), "the transcript", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "# Meeting Summary\n\n## Summary\nShort.\n", string(data))
}

func TestSummarize_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	s := &Summarize{APIKey: "k", Endpoint: srv.URL}
	_, err := s.Execute(context.Background(), "t", t.TempDir())
	require.ErrorIs(t, err, ErrEmptySummary)

	_, err = (&Summarize{}).Execute(context.Background(), "t", t.TempDir())
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSummarize_APIErrorAndBadJSON(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"overloaded_error"}`, 529)
	}))
	defer failing.Close()

	dir := t.TempDir()
	s := &Summarize{APIKey: "k", Model: "claude-sonnet-4-5", Endpoint: failing.URL}
	_, err := s.Execute(context.Background(), "t", dir)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "anthropic", apiErr.Service)
	require.Equal(t, 529, apiErr.Status)
	require.Contains(t, apiErr.Body, "overloaded_error")
	require.NoFileExists(t, filepath.Join(dir, "summary.md"))

	garbled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":`))
	}))
	defer garbled.Close()
	s.Endpoint = garbled.URL
	_, err = s.Execute(context.Background(), "t", dir)
	require.ErrorContains(t, err, "parsing anthropic response")
}
