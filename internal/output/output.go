package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"github.com/08351ty/Google-Meet-Bot/internal/audio"
	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
)

type Formatter struct {
	w     io.Writer
	color bool
}

// NewFormatter styles output only when w is a terminal.
func NewFormatter(w io.Writer) *Formatter {
	f := &Formatter{w: w}
	if file, ok := w.(*os.File); ok && term.IsTerminal(file.Fd()) {
		f.color = true
	}
	return f
}

func (f *Formatter) style(s lipgloss.Style, text string) string {
	if !f.color {
		return text
	}
	return s.Render(text)
}

func (f *Formatter) Joining(url string, limit time.Duration) {
	fmt.Fprintf(f.w, "🌐 Joining %s (recording up to %s)\n", url, formatDuration(limit))
}

func (f *Formatter) Stopping() {
	fmt.Fprintf(f.w, "\n%s\n", f.style(warnStyle, "⏹️  Interrupted, leaving the call and saving audio..."))
}

// SessionEnded prints the outcome and any warnings collected during the run.
func (f *Formatter) SessionEnded(res *meeting.SessionResult) {
	if res == nil {
		return
	}
	reason := map[meeting.State]string{
		meeting.StateTimedOut:    "time limit reached",
		meeting.StateEarlyExit:   "everyone else left",
		meeting.StateCaptureLost: "audio capture stopped",
		meeting.StateInterrupted: "interrupted",
		meeting.StateFailed:      "failed",
	}[res.Outcome]
	if reason == "" {
		reason = res.Outcome.String()
	}
	fmt.Fprintf(f.w, "⏹️  Recording stopped (%s, %s)\n", formatDuration(res.AudioDuration), reason)
	for _, w := range res.Warnings {
		f.Warning(w)
	}
	if res.ManualLeaveRequired {
		f.Warning("Leave the call manually in the browser")
	}
}

func (f *Formatter) Transcribing() {
	fmt.Fprintf(f.w, "📝 Transcribing audio...\n")
}

func (f *Formatter) TranscribeDone(path string) {
	f.Success("Transcript saved: " + path)
}

func (f *Formatter) Summarizing() {
	fmt.Fprintf(f.w, "🤖 Generating summary...\n")
}

func (f *Formatter) SummarizeDone(path string) {
	f.Success("Summary saved: " + path)
}

func (f *Formatter) Archived(location string) {
	f.Success("Archived to " + location)
}

func (f *Formatter) MeetingComplete(dir string) {
	fmt.Fprintf(f.w, "\n📁 Meeting saved: %s\n", dir)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "%s\n", f.style(errStyle, "❌ "+msg))
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "%s\n", f.style(okStyle, "✅ "+msg))
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "%s\n", f.style(warnStyle, "⚠️  "+msg))
}

func (f *Formatter) MeetingListHeader() {
	fmt.Fprintf(f.w, "%s\n\n", f.style(headStyle, "📁 Meetings:"))
}

func (f *Formatter) MeetingListItem(m meeting.Meeting) {
	status := ""
	if m.TranscriptPath != "" && m.SummaryPath != "" {
		status = " ✅"
	} else if m.TranscriptPath != "" {
		status = " 📝"
	}
	if m.ArchivedTo != "" {
		status += " ☁️"
	}
	name := m.Name
	if name == "" {
		name = m.URL
	}
	detail := fmt.Sprintf("%s, %s, %s", m.StartedAt.Local().Format("2006-01-02 15:04"), formatDuration(m.AudioDuration), m.Outcome)
	fmt.Fprintf(f.w, "  %s  %s%s\n    %s\n", f.style(dimStyle, m.ID), name, status, f.style(dimStyle, detail))
}

func (f *Formatter) DeviceListItem(d audio.InputDevice) {
	marker := "  "
	if d.Default {
		marker = "★ "
	}
	fmt.Fprintf(f.w, "%s%s %s\n", marker, d.Name,
		f.style(dimStyle, fmt.Sprintf("(%s, %d ch, %.0f Hz)", d.HostAPI, d.Channels, d.DefaultSampleRate)))
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✅ %s: %s\n", name, detail)
	} else {
		fmt.Fprintf(f.w, "  %s\n", f.style(errStyle, fmt.Sprintf("❌ %s: %s", name, detail)))
	}
}

func (f *Formatter) Plain(lines ...string) {
	fmt.Fprintln(f.w, strings.Join(lines, "\n"))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
