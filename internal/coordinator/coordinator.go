// Package coordinator runs interactive Microsoft 365 logins: it opens the
// authentication window, watches every way the flow can come back (redirect
// interception, cross-window events, credential polling, window close) and
// delivers exactly one outcome per attempt.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/croceverde/trasporti-desk/internal/autherr"
	"github.com/croceverde/trasporti-desk/internal/azuread"
	"github.com/croceverde/trasporti-desk/internal/credstore"
	"github.com/croceverde/trasporti-desk/internal/shell"
)

// State is the observable phase of the current login attempt.
type State int32

const (
	StateIdle State = iota
	StateAwaitingRedirect
	StateExchangingCode
	StateAuthenticated
	StateFailed
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRedirect:
		return "awaiting_redirect"
	case StateExchangingCode:
		return "exchanging_code"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a login attempt.
func (s State) Terminal() bool {
	switch s {
	case StateAuthenticated, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// Outcome is the single result delivered for a login attempt.
type Outcome struct {
	State      State
	Credential *credstore.Credential
	Err        error
}

// Exchanger redeems an authorization code for tokens.
// *azuread.Client satisfies it.
type Exchanger interface {
	Exchange(ctx context.Context, req azuread.ExchangeRequest) (*azuread.Token, error)
}

// IDTokenVerifier validates the ID token returned by the exchange against
// the nonce of the session that initiated it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken, nonce string) error
}

// Config carries the provider settings and the timing knobs of the flow.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// ServiceURL keys the saved credential, normally the SharePoint site.
	ServiceURL string

	PollInterval    time.Duration
	PollMaxAttempts int
	CloseGraceDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = 60
	}
	if c.CloseGraceDelay <= 0 {
		c.CloseGraceDelay = 1500 * time.Millisecond
	}
}

// Coordinator owns at most one login attempt at a time. Starting a new
// attempt supersedes the previous one.
type Coordinator struct {
	cfg       Config
	store     credstore.Store
	exchanger Exchanger
	opener    shell.Opener
	bus       *shell.Bus

	fallback shell.Opener
	primary  shell.Window
	verifier IDTokenVerifier

	mu      sync.Mutex
	current *Login
}

func New(cfg Config, store credstore.Store, ex Exchanger, opener shell.Opener, bus *shell.Bus) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		cfg:       cfg,
		store:     store,
		exchanger: ex,
		opener:    opener,
		bus:       bus,
	}
}

// SetPrimaryWindow registers the main application window so it can be kept
// visible and focused while the authentication window is open. Only shells
// that embed their own windows have one to register; under the browser
// shell the system browser owns every surface and the hook stays unset.
func (c *Coordinator) SetPrimaryWindow(w shell.Window) { c.primary = w }

// SetFallbackOpener registers a second opener, typically the system
// browser, used when the embedded window cannot be created.
func (c *Coordinator) SetFallbackOpener(o shell.Opener) { c.fallback = o }

// SetIDTokenVerifier enables ID token validation after the exchange.
func (c *Coordinator) SetIDTokenVerifier(v IDTokenVerifier) { c.verifier = v }

// State reports the phase of the most recent login attempt.
func (c *Coordinator) State() State {
	c.mu.Lock()
	login := c.current
	c.mu.Unlock()
	if login == nil {
		return StateIdle
	}
	return State(login.state.Load())
}

// IsAuthenticated reports whether a credential is stored for the
// configured service.
func (c *Coordinator) IsAuthenticated() bool {
	return c.store.IsAuthenticated(c.cfg.ServiceURL)
}

// Begin starts a new login attempt. A pending attempt is cancelled first;
// its callers see a Cancelled outcome. The returned Login delivers exactly
// one Outcome on its Outcome channel.
func (c *Coordinator) Begin(ctx context.Context) (*Login, error) {
	if c.cfg.TenantID == "" || c.cfg.ClientID == "" {
		return nil, autherr.New(autherr.KindConfigurationIncomplete,
			"tenant ID and client ID must be configured before signing in")
	}

	sess, err := newSession(c.cfg)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindUnknown, "could not prepare login session", err)
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	login := &Login{
		coordinator: c,
		session:     sess,
		outcome:     make(chan Outcome, 1),
		cancelCtx:   cancel,
	}
	login.state.Store(int32(StateAwaitingRedirect))

	c.mu.Lock()
	prev := c.current
	c.current = login
	c.mu.Unlock()

	if prev != nil && !prev.finished.Load() {
		slog.Info("superseding pending login attempt", "session_id", prev.session.ID)
		prev.finish(Outcome{
			State: StateCancelled,
			Err:   autherr.New(autherr.KindCancelled, "superseded by a new login attempt"),
		})
	}

	window, err := c.openAuthWindow(ctx, sess.AuthURL)
	if err != nil {
		login.finish(Outcome{State: StateFailed, Err: err})
		return nil, err
	}
	login.window = window

	// The user keeps working in the main window; the auth window is shown
	// but never steals focus.
	if c.primary != nil {
		if err := c.primary.Show(); err != nil {
			slog.Debug("could not show primary window", "error", err)
		}
		if err := c.primary.Focus(); err != nil {
			slog.Debug("could not focus primary window", "error", err)
		}
	}

	slog.Info("login attempt started", "session_id", sess.ID)

	go login.watchBus(sessionCtx)
	go login.poll(sessionCtx)
	go login.watchWindowClose(sessionCtx)

	return login, nil
}

func (c *Coordinator) openAuthWindow(ctx context.Context, url string) (shell.Window, error) {
	opts := shell.Options{
		Title:     "Accedi a Microsoft 365",
		Width:     600,
		Height:    700,
		Visible:   true,
		Focus:     false,
		Resizable: true,
	}

	window, err := c.opener.Open(ctx, shell.LabelAuth, url, opts)
	if err == nil {
		return window, nil
	}
	slog.Warn("could not open embedded auth window", "error", err)

	if c.fallback != nil {
		window, ferr := c.fallback.Open(ctx, shell.LabelAuth, url, opts)
		if ferr == nil {
			slog.Info("opened authentication in fallback browser")
			return window, nil
		}
		slog.Warn("fallback browser failed too", "error", ferr)
	}

	return nil, autherr.Wrap(autherr.KindWindowCreationFailed,
		"could not open the authentication window", err)
}

// HandleCallback reports an intercepted provider redirect to the pending
// login. The state parameter must match the session's state exactly.
func (c *Coordinator) HandleCallback(ctx context.Context, state, code, errParam string) error {
	login := c.pendingLogin()
	if login == nil {
		return autherr.New(autherr.KindUnknown, "no login session is pending")
	}
	return login.deliver(ctx, state, code, errParam, true)
}

// Cancel aborts the pending login attempt, if any.
func (c *Coordinator) Cancel() {
	login := c.pendingLogin()
	if login == nil {
		return
	}
	login.finish(Outcome{
		State: StateCancelled,
		Err:   autherr.New(autherr.KindCancelled, "login cancelled by the user"),
	})
}

// SubmitManualCode completes the flow with a code the user copied from the
// browser address bar. It refuses to run if the session's code was already
// redeemed: authorization codes are single-use.
func (c *Coordinator) SubmitManualCode(ctx context.Context, code string) (*credstore.Credential, error) {
	if code == "" {
		return nil, autherr.New(autherr.KindUnknown, "authorization code is empty")
	}

	login := c.pendingLogin()
	if login == nil {
		return nil, autherr.New(autherr.KindUnknown, "no login session to complete")
	}
	if login.session.exchanged.Load() {
		return nil, autherr.New(autherr.KindInvalidGrant,
			"the code for this session was already redeemed, start a new login")
	}

	// Manual entry competes with the automatic channels for the same
	// single-use claim; losing means one of them is already completing.
	if !login.session.claim() {
		return nil, autherr.New(autherr.KindInvalidGrant,
			"another completion path already claimed this login")
	}
	login.session.exchanged.Store(true)
	login.state.Store(int32(StateExchangingCode))

	token, err := c.exchanger.Exchange(ctx, c.exchangeRequest(code, login.session.Verifier))
	if err != nil {
		login.finish(Outcome{State: StateFailed, Err: err})
		return nil, err
	}

	cred, err := c.saveToken(ctx, login.session, token)
	if err != nil {
		login.finish(Outcome{State: StateFailed, Err: err})
		return nil, err
	}

	login.finish(Outcome{State: StateAuthenticated, Credential: cred})
	return cred, nil
}

func (c *Coordinator) pendingLogin() *Login {
	c.mu.Lock()
	login := c.current
	c.mu.Unlock()
	if login == nil || login.finished.Load() {
		return nil
	}
	return login
}

func (c *Coordinator) exchangeRequest(code, verifier string) azuread.ExchangeRequest {
	return azuread.ExchangeRequest{
		TenantID:     c.cfg.TenantID,
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURI:  c.cfg.RedirectURI,
		Scopes:       c.cfg.Scopes,
		Code:         code,
		CodeVerifier: verifier,
	}
}

// saveToken validates the ID token when a verifier is configured, persists
// the credential and announces the success on the bus.
func (c *Coordinator) saveToken(ctx context.Context, sess *Session, token *azuread.Token) (*credstore.Credential, error) {
	if c.verifier != nil && token.IDToken != "" {
		if err := c.verifier.Verify(ctx, token.IDToken, sess.Nonce); err != nil {
			return nil, autherr.Wrap(autherr.KindMalformedResponse, "ID token validation failed", err)
		}
	}

	cred := credstore.Credential{
		ServiceURL:   c.cfg.ServiceURL,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		ObtainedAt:   time.Now(),
	}
	if err := c.store.Save(cred); err != nil {
		return nil, autherr.Wrap(autherr.KindUnknown, "could not save credentials", err)
	}

	c.bus.Publish(shell.Event{Topic: shell.TopicAuthSuccess})
	return &cred, nil
}
