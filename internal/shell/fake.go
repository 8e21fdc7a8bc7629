package shell

import (
	"context"
	"sync"
)

// FakeWindow is an in-process Window for tests.
type FakeWindow struct {
	mu          sync.Mutex
	label       string
	url         string
	shown       bool
	focused     bool
	closed      bool
	done        chan struct{}
	NavigateErr error
	FocusErr    error
}

// NewFakeWindow creates a fake window with the given label.
func NewFakeWindow(label string) *FakeWindow {
	return &FakeWindow{label: label, done: make(chan struct{})}
}

func (w *FakeWindow) Label() string { return w.label }

func (w *FakeWindow) Navigate(url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.NavigateErr != nil {
		return w.NavigateErr
	}
	w.url = url
	return nil
}

func (w *FakeWindow) Show() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shown = true
	return nil
}

func (w *FakeWindow) Focus() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FocusErr != nil {
		return w.FocusErr
	}
	w.focused = true
	return nil
}

func (w *FakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
	return nil
}

func (w *FakeWindow) Done() <-chan struct{} { return w.done }

// URL returns the last navigated URL.
func (w *FakeWindow) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

// Closed reports whether Close was called (or the user dismissed it).
func (w *FakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Focused reports whether Focus was called.
func (w *FakeWindow) Focused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// DismissByUser simulates the user closing the window.
func (w *FakeWindow) DismissByUser() {
	_ = w.Close()
}

// FakeOpener returns FakeWindows and records every open call.
type FakeOpener struct {
	mu      sync.Mutex
	windows []*FakeWindow
	Err     error // when set, Open fails with it
}

// Open creates a new FakeWindow navigated to url.
func (o *FakeOpener) Open(ctx context.Context, label, url string, opts Options) (Window, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	w := NewFakeWindow(label)
	w.url = url
	if opts.Visible {
		w.shown = true
	}
	o.windows = append(o.windows, w)
	return w, nil
}

// Windows returns every window opened so far.
func (o *FakeOpener) Windows() []*FakeWindow {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*FakeWindow, len(o.windows))
	copy(out, o.windows)
	return out
}

// OpenCount returns how many windows were opened.
func (o *FakeOpener) OpenCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.windows)
}
