// Package shell abstracts the UI surfaces of the desk application: the
// primary window, the transient authentication window, and the event bus
// they communicate over. The two surfaces are isolated execution contexts
// that share nothing except bus messages and the durable credential store.
package shell

import "context"

// Labels identifying the two surfaces. Window-scoped logic ("am I the
// popup or the main window?") branches on these.
const (
	LabelPrimary = "main"
	LabelAuth    = "oauth-auth"
)

// Options controls how a window is opened.
type Options struct {
	Title     string
	Width     int
	Height    int
	Visible   bool
	Focus     bool // the auth window is opened with Focus false so the primary window stays on top
	Resizable bool
}

// Window is a single UI surface.
type Window interface {
	// Label identifies the surface (LabelPrimary or LabelAuth).
	Label() string

	// Navigate points the surface at a URL.
	Navigate(url string) error

	// Show makes the surface visible without stealing focus.
	Show() error

	// Focus brings the surface to the foreground.
	Focus() error

	// Close destroys the surface. Only the owner may call it.
	Close() error

	// Done is closed when the surface goes away, whether by Close or by
	// the user dismissing it.
	Done() <-chan struct{}
}

// Opener creates windows. The production shell supplies a webview-backed
// implementation; BrowserOpener degrades to the system browser; tests use
// FakeOpener.
type Opener interface {
	Open(ctx context.Context, label, url string, opts Options) (Window, error)
}
