package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// LocalProcess is a running Chromium-family browser process.
type LocalProcess struct {
	PID  int32
	Name string
	// DebugPort is empty when remote debugging was not enabled.
	DebugPort string
}

var browserNames = []string{"chrome", "chromium", "google chrome", "msedge", "brave"}

func isBrowserName(name string) bool {
	name = strings.TrimSuffix(strings.ToLower(name), ".exe")
	for _, b := range browserNames {
		if name == b || strings.HasPrefix(name, b+"-") || strings.HasPrefix(name, b+"_") {
			return true
		}
	}
	return false
}

// debugPort extracts the --remote-debugging-port value from argv.
func debugPort(args []string) string {
	const flag = "--remote-debugging-port"
	for i, a := range args {
		if v, ok := strings.CutPrefix(a, flag+"="); ok {
			return v
		}
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// LocalProcesses lists the browser processes on this machine. Child
// processes (renderers, GPU) are skipped.
func LocalProcesses(ctx context.Context) ([]LocalProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	var out []LocalProcess
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !isBrowserName(name) {
			continue
		}
		args, err := p.CmdlineSliceWithContext(ctx)
		if err != nil {
			continue
		}
		if isChildProcess(args) {
			continue
		}
		out = append(out, LocalProcess{PID: p.Pid, Name: name, DebugPort: debugPort(args)})
	}
	return out, nil
}

func isChildProcess(args []string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, "--type=") {
			return true
		}
	}
	return false
}

// DefaultChromePath returns the usual install location of Chrome for goos.
func DefaultChromePath(goos string) string {
	switch goos {
	case "windows":
		for _, p := range []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		} {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		return `C:\Program Files\Google\Chrome\Application\chrome.exe`
	case "darwin":
		return "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
	default:
		return "google-chrome"
	}
}

// DefaultUserDataDir is the profile directory of the debugging instance.
func DefaultUserDataDir(dataDir string) string {
	return filepath.Join(dataDir, "chrome-profile")
}

// LaunchCommand renders the shell command that starts a browser with
// remote debugging on port.
func LaunchCommand(chromePath, port, userDataDir string) string {
	return fmt.Sprintf("%q --remote-debugging-port=%s --user-data-dir=%q", chromePath, port, userDataDir)
}
