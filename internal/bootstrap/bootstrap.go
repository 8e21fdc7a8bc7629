// Package bootstrap decides what happens when an application surface loads:
// unauthenticated users land on the login page, authenticated users never
// see it again, and a login page opened by a provider redirect completes
// the flow instead of rendering the form.
package bootstrap

import (
	"fmt"
	"net/url"

	"github.com/croceverde/trasporti-desk/internal/credstore"
)

// Action is the decision taken for a page load.
type Action int

const (
	// ActionProceed renders the requested page.
	ActionProceed Action = iota
	// ActionRedirectLogin sends the surface to the login page.
	ActionRedirectLogin
	// ActionRedirectHome sends the surface to the main page.
	ActionRedirectHome
	// ActionCompleteLogin finishes the flow with the code found in the URL.
	ActionCompleteLogin
	// ActionShowError renders the login page with a provider error.
	ActionShowError
)

func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionRedirectLogin:
		return "redirect_login"
	case ActionRedirectHome:
		return "redirect_home"
	case ActionCompleteLogin:
		return "complete_login"
	case ActionShowError:
		return "show_error"
	default:
		return "unknown"
	}
}

// Decision carries the action and its parameters.
type Decision struct {
	Action Action
	Target string // redirect target for the redirect actions
	Code   string // authorization code for ActionCompleteLogin
	State  string // state parameter accompanying the code, may be empty
	ErrMsg string // provider error for ActionShowError
}

// Guard evaluates page loads against the stored credentials.
type Guard struct {
	store      credstore.Store
	serviceURL string
	loginURL   string
	homeURL    string
}

// NewGuard creates a guard for the given service.
func NewGuard(store credstore.Store, serviceURL, loginURL, homeURL string) *Guard {
	return &Guard{
		store:      store,
		serviceURL: serviceURL,
		loginURL:   loginURL,
		homeURL:    homeURL,
	}
}

// OnProtectedLoad gates a protected page. Unauthenticated surfaces are sent
// to the login page before any content renders.
func (g *Guard) OnProtectedLoad() Decision {
	if g.store.IsAuthenticated(g.serviceURL) {
		return Decision{Action: ActionProceed}
	}
	return Decision{Action: ActionRedirectLogin, Target: g.loginURL}
}

// OnLoginLoad gates the login page. The stored credential wins over
// anything in the URL: a user who is already signed in goes straight to the
// main page even when the URL still carries a stale code. Otherwise the
// query and then the fragment are inspected for a provider redirect result.
func (g *Guard) OnLoginLoad(pageURL string) (Decision, error) {
	if g.store.IsAuthenticated(g.serviceURL) {
		return Decision{Action: ActionRedirectHome, Target: g.homeURL}, nil
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return Decision{}, fmt.Errorf("invalid page URL: %w", err)
	}

	params := u.Query()
	if params.Get("code") == "" && params.Get("error") == "" && u.Fragment != "" {
		// Some providers return the result in the fragment.
		if fragParams, err := url.ParseQuery(u.Fragment); err == nil {
			params = fragParams
		}
	}

	if errParam := params.Get("error"); errParam != "" {
		msg := params.Get("error_description")
		if msg == "" {
			msg = errParam
		}
		return Decision{Action: ActionShowError, ErrMsg: msg}, nil
	}

	if code := params.Get("code"); code != "" {
		return Decision{
			Action: ActionCompleteLogin,
			Code:   code,
			State:  params.Get("state"),
		}, nil
	}

	return Decision{Action: ActionProceed}, nil
}
