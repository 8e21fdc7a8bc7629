package shell

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// BrowserOpener opens URLs in the user's default browser. It is both the
// fallback when a webview window cannot be created and the opener of choice
// for the headless `login` command. The resulting Window cannot be closed,
// focused, or observed: the browser belongs to the user, so the coordinator
// relies on the loopback redirect and polling channels instead of
// window-lifecycle signals.
type BrowserOpener struct{}

// Open launches the browser at url. The label and opts are recorded for
// logging only.
func (BrowserOpener) Open(ctx context.Context, label, url string, opts Options) (Window, error) {
	cmd := browserCommand(ctx, url)
	if cmd == nil {
		return nil, fmt.Errorf("no browser launcher for platform %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	// Detach: the launcher exits immediately on most platforms, and we do
	// not want a zombie if it does not.
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("browser launcher exited with error", "error", err)
		}
	}()

	slog.Info("opened system browser for authentication", "label", label)

	return &browserWindow{label: label, done: make(chan struct{})}, nil
}

func browserCommand(ctx context.Context, url string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", url)
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	case "linux":
		return exec.CommandContext(ctx, "xdg-open", url)
	default:
		return nil
	}
}

// browserWindow is the degenerate Window for an external browser tab.
type browserWindow struct {
	label string
	done  chan struct{}
}

func (w *browserWindow) Label() string { return w.label }

func (w *browserWindow) Navigate(url string) error {
	return fmt.Errorf("cannot navigate an external browser window")
}

// Show and Focus are no-ops: the browser manages its own chrome.
func (w *browserWindow) Show() error  { return nil }
func (w *browserWindow) Focus() error { return nil }

// Close cannot reach the external browser; the tab stays with the user.
func (w *browserWindow) Close() error { return nil }

// Done never fires: closure of a browser tab is unobservable, which is
// exactly why the polling completion channel exists.
func (w *browserWindow) Done() <-chan struct{} { return w.done }
