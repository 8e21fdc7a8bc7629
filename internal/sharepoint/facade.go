package sharepoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/croceverde/trasporti-desk/internal/autherr"
	"github.com/croceverde/trasporti-desk/internal/coordinator"
	"github.com/croceverde/trasporti-desk/internal/credstore"
)

// ListNames maps each record set the app knows to its SharePoint list
// title. Zero values fall back to the standard titles of the site.
type ListNames struct {
	ServiziGiorno   string
	ProssimiServizi string
	Tesserati       string
	Automezzi       string
	Operatori       string
}

func (l *ListNames) applyDefaults() {
	if l.ServiziGiorno == "" {
		l.ServiziGiorno = "Servizi Giorno"
	}
	if l.ProssimiServizi == "" {
		l.ProssimiServizi = "Prossimi Servizi"
	}
	if l.Tesserati == "" {
		l.Tesserati = "Tesserati"
	}
	if l.Automezzi == "" {
		l.Automezzi = "Automezzi"
	}
	if l.Operatori == "" {
		l.Operatori = "Operatori"
	}
}

// AuthFlow is the slice of the login coordinator the facade needs.
type AuthFlow interface {
	Begin(ctx context.Context) (*coordinator.Login, error)
	SubmitManualCode(ctx context.Context, code string) (*credstore.Credential, error)
	Cancel()
}

// API is the bridge the display layer calls. It mirrors the commands the
// renderer knows: authentication checks, credential handling and record
// queries, with demo data when nobody is signed in.
type API struct {
	flow       AuthFlow
	store      credstore.Store
	client     *Client
	serviceURL string
	lists      ListNames
}

// NewAPI wires the facade.
func NewAPI(flow AuthFlow, store credstore.Store, client *Client, serviceURL string, lists ListNames) *API {
	lists.applyDefaults()
	return &API{
		flow:       flow,
		store:      store,
		client:     client,
		serviceURL: serviceURL,
		lists:      lists,
	}
}

// CheckAuthentication reports whether a credential is stored.
func (a *API) CheckAuthentication() bool {
	return a.store.IsAuthenticated(a.serviceURL)
}

// SaveCredentials stores a token obtained outside the interactive flow.
func (a *API) SaveCredentials(accessToken string) error {
	return a.store.Save(credstore.Credential{
		ServiceURL:  a.serviceURL,
		AccessToken: accessToken,
		ObtainedAt:  time.Now(),
	})
}

// ClearCredentials signs the user out.
func (a *API) ClearCredentials() error {
	return a.store.Delete(a.serviceURL)
}

// StartAuthentication begins the interactive login and returns its
// authorization URL alongside the attempt handle.
func (a *API) StartAuthentication(ctx context.Context) (*coordinator.Login, error) {
	return a.flow.Begin(ctx)
}

// CompleteOAuthAuthentication finishes the flow with a manually pasted code.
func (a *API) CompleteOAuthAuthentication(ctx context.Context, code string) (*credstore.Credential, error) {
	return a.flow.SubmitManualCode(ctx, code)
}

// CancelAuthentication aborts the pending login attempt.
func (a *API) CancelAuthentication() {
	a.flow.Cancel()
}

// GetRecords returns the text records of the named list, or the demo data
// when nobody is signed in.
func (a *API) GetRecords(ctx context.Context, listName string, opts QueryOptions) ([]Record, error) {
	if !a.CheckAuthentication() {
		slog.Info("demo mode, serving sample records", "list", listName)
		return DemoServices(), nil
	}

	items, err := a.client.GetListItems(ctx, listName, opts)
	if err != nil {
		return nil, err
	}
	return RecordsFromItems(items), nil
}

// SearchRecords fetches the list and filters it by the query string.
func (a *API) SearchRecords(ctx context.Context, listName, query string) ([]Record, error) {
	records, err := a.GetRecords(ctx, listName, QueryOptions{})
	if err != nil {
		return nil, err
	}
	return Filter(records, query), nil
}

// DayServices returns the transport services scheduled for today.
func (a *API) DayServices(ctx context.Context) ([]Record, error) {
	return a.GetRecords(ctx, a.lists.ServiziGiorno, QueryOptions{})
}

// UpcomingServices returns the services planned for the coming days.
func (a *API) UpcomingServices(ctx context.Context) ([]Record, error) {
	return a.GetRecords(ctx, a.lists.ProssimiServizi, QueryOptions{})
}

// Members returns the association members roster.
func (a *API) Members(ctx context.Context) ([]Record, error) {
	return a.GetRecords(ctx, a.lists.Tesserati, QueryOptions{})
}

// Vehicles returns the vehicle fleet list.
func (a *API) Vehicles(ctx context.Context) ([]Record, error) {
	return a.GetRecords(ctx, a.lists.Automezzi, QueryOptions{})
}

// Operators returns the operator roster.
func (a *API) Operators(ctx context.Context) ([]Record, error) {
	return a.GetRecords(ctx, a.lists.Operatori, QueryOptions{})
}

// AddDayService creates a service record in the day services list.
func (a *API) AddDayService(ctx context.Context, fields map[string]any) error {
	return a.addRecord(ctx, a.lists.ServiziGiorno, fields)
}

// UpdateDayService merges the given fields into an existing service record.
func (a *API) UpdateDayService(ctx context.Context, itemID int, fields map[string]any) error {
	return a.updateRecord(ctx, a.lists.ServiziGiorno, itemID, fields)
}

// FieldTitles returns the internal-name to display-title map of a list.
func (a *API) FieldTitles(ctx context.Context, listName string) (map[string]string, error) {
	if err := a.requireAuthentication(); err != nil {
		return nil, err
	}
	return a.client.GetFieldsMap(ctx, listName)
}

func (a *API) addRecord(ctx context.Context, listName string, fields map[string]any) error {
	if err := a.requireAuthentication(); err != nil {
		return err
	}
	return a.client.AddItem(ctx, listName, fields)
}

func (a *API) updateRecord(ctx context.Context, listName string, itemID int, fields map[string]any) error {
	if err := a.requireAuthentication(); err != nil {
		return err
	}
	return a.client.UpdateItem(ctx, listName, itemID, fields)
}

// requireAuthentication gates the write paths: demo data is read-only.
func (a *API) requireAuthentication() error {
	if !a.CheckAuthentication() {
		return autherr.New(autherr.KindConfigurationIncomplete,
			"no stored credential, sign in before writing records")
	}
	return nil
}
