package usecases

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting"
)

// AudioFileName is the name of the recording inside a meeting folder.
const AudioFileName = "recording.wav"

// PrepareMeeting creates the folder that holds one session's artifacts.
type PrepareMeeting struct {
	MeetingsDir    string
	FolderTemplate string
}

// FolderTemplateData holds the template variables available for folder naming.
type FolderTemplateData struct {
	Year   string
	Month  string
	Day    string
	Hour   string
	Minute string
	Second string
	Name   string
	Code   string
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Execute renders the folder name for a session starting at now and
// creates it. name is an optional user label.
func (p *PrepareMeeting) Execute(now time.Time, meetingURL, name string) (*meeting.Meeting, error) {
	dirName, err := p.renderFolderName(now, name, meetingCode(meetingURL))
	if err != nil {
		return nil, fmt.Errorf("rendering folder name: %w", err)
	}
	dir := filepath.Join(p.MeetingsDir, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating meeting directory: %w", err)
	}
	return &meeting.Meeting{
		Name:      name,
		URL:       meetingURL,
		Dir:       dir,
		StartedAt: now,
		AudioPath: filepath.Join(dir, AudioFileName),
	}, nil
}

func (p *PrepareMeeting) renderFolderName(t time.Time, name, code string) (string, error) {
	tmpl, err := template.New("folder").Parse(p.FolderTemplate)
	if err != nil {
		return "", fmt.Errorf("invalid folder template: %w", err)
	}

	data := FolderTemplateData{
		Year:   t.Format("2006"),
		Month:  t.Format("01"),
		Day:    t.Format("02"),
		Hour:   t.Format("15"),
		Minute: t.Format("04"),
		Second: t.Format("05"),
		Name:   unsafeNameChars.ReplaceAllString(name, "-"),
		Code:   code,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing folder template: %w", err)
	}
	out := strings.TrimSpace(buf.String())
	if out == "" || strings.ContainsAny(out, `/\`) {
		return "", fmt.Errorf("folder template produced an invalid name %q", out)
	}
	return out, nil
}

// meetingCode extracts the last path segment of a meeting URL, e.g.
// "abc-defg-hij".
func meetingCode(meetingURL string) string {
	s := strings.TrimRight(meetingURL, "/")
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return unsafeNameChars.ReplaceAllString(s, "")
}
