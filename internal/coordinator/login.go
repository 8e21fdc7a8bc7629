package coordinator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/croceverde/trasporti-desk/internal/autherr"
	"github.com/croceverde/trasporti-desk/internal/shell"
)

// Login is one in-flight authentication attempt. Three detection channels
// run concurrently against it: the redirect callback, the cross-window code
// event and the credential poll. Whichever claims the session first drives
// it to its terminal state; the others stand down.
type Login struct {
	coordinator *Coordinator
	session     *Session
	window      shell.Window

	outcome   chan Outcome
	cancelCtx context.CancelFunc
	state     atomic.Int32
	finished  atomic.Bool
}

// Outcome delivers the single terminal result of the attempt.
func (l *Login) Outcome() <-chan Outcome { return l.outcome }

// AuthURL returns the authorization URL of this attempt, for display when
// the user needs to open it by hand.
func (l *Login) AuthURL() string { return l.session.AuthURL }

// SessionID identifies the attempt in logs.
func (l *Login) SessionID() string { return l.session.ID }

// deliver processes one redirect result. stateKnown marks sources that
// always carry the state parameter; bus events may omit it, in which case
// the code is accepted as-is because the auth surface already validated it.
func (l *Login) deliver(ctx context.Context, state, code, errParam string, stateKnown bool) error {
	if errParam != "" {
		err := autherr.New(autherr.KindAuthorizationDenied, errParam)
		if l.session.claim() {
			l.finish(Outcome{State: StateFailed, Err: err})
		}
		return err
	}

	if code == "" {
		return autherr.New(autherr.KindUnknown, "redirect carried neither code nor error")
	}

	if stateKnown || state != "" {
		if state != l.session.State {
			err := autherr.New(autherr.KindStateMismatch, "state parameter does not match this session")
			if l.session.claim() {
				l.finish(Outcome{State: StateFailed, Err: err})
			}
			return err
		}
	}

	if !l.session.claim() {
		// Another channel got here first.
		return nil
	}

	l.exchange(ctx, code)
	return nil
}

// exchange redeems the code and persists the resulting credential.
// The caller must hold the claim.
func (l *Login) exchange(ctx context.Context, code string) {
	l.session.exchanged.Store(true)
	l.state.Store(int32(StateExchangingCode))
	slog.Info("exchanging authorization code", "session_id", l.session.ID)

	token, err := l.coordinator.exchanger.Exchange(ctx, l.coordinator.exchangeRequest(code, l.session.Verifier))
	if err != nil {
		l.finish(Outcome{State: StateFailed, Err: err})
		return
	}

	cred, err := l.coordinator.saveToken(ctx, l.session, token)
	if err != nil {
		l.finish(Outcome{State: StateFailed, Err: err})
		return
	}

	l.finish(Outcome{State: StateAuthenticated, Credential: cred})
}

// watchBus listens for code events relayed from the auth surface.
func (l *Login) watchBus(ctx context.Context) {
	events, unsubscribe := l.coordinator.bus.Subscribe(shell.TopicCodeReceived)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := l.deliver(ctx, ev.State, ev.Code, "", ev.State != ""); err != nil {
				slog.Warn("code event rejected", "session_id", l.session.ID, "error", err)
			}
		}
	}
}

// poll periodically checks the credential store, catching completions that
// happened outside this process. After the attempt budget is spent the
// session times out.
func (l *Login) poll(ctx context.Context) {
	ticker := time.NewTicker(l.coordinator.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if l.coordinator.store.IsAuthenticated(l.coordinator.cfg.ServiceURL) {
			if l.session.claim() {
				cred, err := l.coordinator.store.Load(l.coordinator.cfg.ServiceURL)
				if err != nil {
					l.finish(Outcome{State: StateFailed,
						Err: autherr.Wrap(autherr.KindUnknown, "could not load saved credentials", err)})
					return
				}
				slog.Info("credentials detected by polling", "session_id", l.session.ID, "attempt", attempt)
				l.finish(Outcome{State: StateAuthenticated, Credential: cred})
			}
			return
		}

		if attempt >= l.coordinator.cfg.PollMaxAttempts {
			if l.session.claim() {
				l.finish(Outcome{State: StateTimedOut,
					Err: autherr.New(autherr.KindTimedOut, "authentication did not complete in time")})
			}
			return
		}
	}
}

// watchWindowClose handles the user closing the auth window. The redirect
// may have landed moments before the close, so a short grace period passes
// before the final credential check decides between success and dismissal.
func (l *Login) watchWindowClose(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-l.window.Done():
	}

	if l.finished.Load() {
		return
	}

	timer := time.NewTimer(l.coordinator.cfg.CloseGraceDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if !l.session.claim() {
		return
	}

	if l.coordinator.store.IsAuthenticated(l.coordinator.cfg.ServiceURL) {
		cred, err := l.coordinator.store.Load(l.coordinator.cfg.ServiceURL)
		if err != nil {
			l.finish(Outcome{State: StateFailed,
				Err: autherr.Wrap(autherr.KindUnknown, "could not load saved credentials", err)})
			return
		}
		l.finish(Outcome{State: StateAuthenticated, Credential: cred})
		return
	}

	l.finish(Outcome{
		State: StateCancelled,
		Err:   autherr.New(autherr.KindCancelled, "authentication window closed"),
	})
}

// finish delivers the outcome exactly once, stops the watchers and closes
// the auth window.
func (l *Login) finish(out Outcome) {
	if !l.finished.CompareAndSwap(false, true) {
		return
	}

	l.state.Store(int32(out.State))
	l.cancelCtx()

	if l.window != nil {
		if err := l.window.Close(); err != nil {
			slog.Debug("could not close auth window", "error", err)
		}
	}

	if out.Err != nil {
		slog.Warn("login finished", "session_id", l.session.ID, "state", out.State.String(), "error", out.Err)
	} else {
		slog.Info("login finished", "session_id", l.session.ID, "state", out.State.String())
	}

	l.outcome <- out
}
