package sharepoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/croceverde/trasporti-desk/internal/autherr"
	"github.com/croceverde/trasporti-desk/internal/credstore"
)

type staticTokens string

func (s staticTokens) AccessToken() (string, error) { return string(s), nil }

func newListServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client := NewClient(ts.URL, staticTokens("test-token"))
	return client
}

func TestGetListItems(t *testing.T) {
	var gotPath, gotAuth, gotAccept string
	client := newListServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[
			{"Id":1,"Title":"Servizio","FieldValuesAsText":{"socio_trasportato":"ASTUTI GUIDO","comune_prelievo":"ROMA"}},
			{"Id":2,"Title":"Altro","FieldValuesAsText":{"socio_trasportato":"BIANCHI ANNA"}}
		]}`))
	})

	items, err := client.GetListItems(context.Background(), "Servizi Giorno", QueryOptions{Top: 50})
	if err != nil {
		t.Fatalf("GetListItems: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Text["socio_trasportato"] != "ASTUTI GUIDO" {
		t.Errorf("text projection = %v", items[0].Text)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAccept != "application/json;odata=nometadata" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if !strings.Contains(gotPath, "getbytitle('Servizi%20Giorno')") {
		t.Errorf("list name not escaped in path: %q", gotPath)
	}
	if !strings.Contains(gotPath, "%24top=50") {
		t.Errorf("top option missing from query: %q", gotPath)
	}
}

func TestGetListItemsUnauthorized(t *testing.T) {
	client := newListServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetListItems(context.Background(), "Servizi Giorno", QueryOptions{})
	if autherr.KindOf(err) != autherr.KindInvalidGrant {
		t.Fatalf("error kind = %v, want InvalidGrant", autherr.KindOf(err))
	}
}

func TestGetFieldsMap(t *testing.T) {
	client := newListServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[
			{"InternalName":"socio_trasportato","Title":"Socio Trasportato"},
			{"InternalName":"km","Title":""}
		]}`))
	})

	fields, err := client.GetFieldsMap(context.Background(), "Servizi Giorno")
	if err != nil {
		t.Fatalf("GetFieldsMap: %v", err)
	}
	if fields["socio_trasportato"] != "Socio Trasportato" {
		t.Errorf("fields = %v", fields)
	}
	if fields["km"] != "km" {
		t.Errorf("empty title must fall back to the internal name, got %q", fields["km"])
	}
}

func TestAddItem(t *testing.T) {
	var gotMethod, gotContentType string
	client := newListServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	})

	err := client.AddItem(context.Background(), "Servizi Giorno", map[string]any{
		"socio_trasportato": "VERDI LUCIA",
		"km":                12,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotContentType != "application/json;odata=nometadata" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestUpdateItem(t *testing.T) {
	var gotMethod, gotPath, gotOverride, gotMatch string
	client := newListServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotOverride = r.Header.Get("X-HTTP-Method")
		gotMatch = r.Header.Get("If-Match")
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateItem(context.Background(), "Servizi Giorno", 42, map[string]any{
		"OraSottoCasa": "08:30",
	})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if !strings.HasSuffix(gotPath, "/items(42)") {
		t.Errorf("path = %q, want the items(42) endpoint", gotPath)
	}
	if gotOverride != "MERGE" {
		t.Errorf("X-HTTP-Method = %q, want MERGE", gotOverride)
	}
	if gotMatch != "*" {
		t.Errorf("If-Match = %q, want *", gotMatch)
	}
}

func TestClientNormalizesSiteURL(t *testing.T) {
	client := NewClient("contoso.sharepoint.com/sites/trasporti/", staticTokens("t"))
	if client.siteURL != "https://contoso.sharepoint.com/sites/trasporti" {
		t.Errorf("siteURL = %q", client.siteURL)
	}
}

func TestFilterRecords(t *testing.T) {
	records := []Record{
		{"socio_trasportato": "ASTUTI GUIDO", "comune_prelievo": "ROMA"},
		{"socio_trasportato": "BIANCHI ANNA", "comune_prelievo": "FIUMICINO"},
		{"socio_trasportato": "VERDI LUCIA", "motivazione": "visita a Roma"},
	}

	tests := []struct {
		query string
		want  int
	}{
		{"roma", 2},
		{"ROMA", 2},
		{"bianchi", 1},
		{"  guido ", 1},
		{"", 3},
		{"nessuno", 0},
	}

	for _, tt := range tests {
		if got := len(Filter(records, tt.query)); got != tt.want {
			t.Errorf("Filter(%q) matched %d records, want %d", tt.query, got, tt.want)
		}
	}
}

func TestAPIServesDemoDataWhenUnauthenticated(t *testing.T) {
	store := credstore.NewMemoryStore()
	api := NewAPI(nil, store, nil, "https://contoso.sharepoint.com/sites/trasporti", ListNames{})

	records, err := api.GetRecords(context.Background(), "Servizi Giorno", QueryOptions{})
	if err != nil {
		t.Fatalf("GetRecords: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("demo mode must return sample records")
	}

	// Demo records still go through the filter.
	matched, err := api.SearchRecords(context.Background(), "Servizi Giorno", "astuti")
	if err != nil {
		t.Fatalf("SearchRecords: %v", err)
	}
	if len(matched) != 1 {
		t.Errorf("matched %d demo records, want 1", len(matched))
	}
}

func TestAPIFetchesListWhenAuthenticated(t *testing.T) {
	const service = "https://contoso.sharepoint.com/sites/trasporti"

	store := credstore.NewMemoryStore()
	if err := store.Save(credstore.Credential{
		ServiceURL:  service,
		AccessToken: "stored-token",
		ObtainedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"FieldValuesAsText":{"socio_trasportato":"DAL VIVO"}}]}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, &StoreTokenSource{Store: store, ServiceURL: service})
	api := NewAPI(nil, store, client, service, ListNames{})

	records, err := api.GetRecords(context.Background(), "Servizi Giorno", QueryOptions{})
	if err != nil {
		t.Fatalf("GetRecords: %v", err)
	}
	if len(records) != 1 || records[0]["socio_trasportato"] != "DAL VIVO" {
		t.Fatalf("records = %v", records)
	}
	if gotAuth != "Bearer stored-token" {
		t.Errorf("Authorization = %q, want the stored token", gotAuth)
	}
}

func TestAPIResolvesConfiguredListTitles(t *testing.T) {
	const service = "https://contoso.sharepoint.com/sites/trasporti"

	store := credstore.NewMemoryStore()
	if err := store.Save(credstore.Credential{
		ServiceURL:  service,
		AccessToken: "stored-token",
		ObtainedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, &StoreTokenSource{Store: store, ServiceURL: service})
	api := NewAPI(nil, store, client, service, ListNames{ServiziGiorno: "LOREAPP_SERVIZI"})

	if _, err := api.DayServices(context.Background()); err != nil {
		t.Fatalf("DayServices: %v", err)
	}
	if !strings.Contains(gotPath, "getbytitle('LOREAPP_SERVIZI')") {
		t.Errorf("path = %q, want the configured list title", gotPath)
	}

	// Unset names fall back to the standard titles.
	if _, err := api.Members(context.Background()); err != nil {
		t.Fatalf("Members: %v", err)
	}
	if !strings.Contains(gotPath, "getbytitle('Tesserati')") {
		t.Errorf("path = %q, want the default members title", gotPath)
	}
}

func TestAPIWritePathsRequireAuthentication(t *testing.T) {
	store := credstore.NewMemoryStore()
	api := NewAPI(nil, store, nil, "https://contoso.sharepoint.com/sites/trasporti", ListNames{})

	err := api.AddDayService(context.Background(), map[string]any{"TRASP": "VERDI LUCIA"})
	if autherr.KindOf(err) != autherr.KindConfigurationIncomplete {
		t.Fatalf("add error kind = %v, want ConfigurationIncomplete", autherr.KindOf(err))
	}

	err = api.UpdateDayService(context.Background(), 7, map[string]any{"Km": 12})
	if autherr.KindOf(err) != autherr.KindConfigurationIncomplete {
		t.Fatalf("update error kind = %v, want ConfigurationIncomplete", autherr.KindOf(err))
	}

	if _, err = api.FieldTitles(context.Background(), "Servizi Giorno"); autherr.KindOf(err) != autherr.KindConfigurationIncomplete {
		t.Fatalf("fields error kind = %v, want ConfigurationIncomplete", autherr.KindOf(err))
	}
}

func TestAPIUpdateDayService(t *testing.T) {
	const service = "https://contoso.sharepoint.com/sites/trasporti"

	store := credstore.NewMemoryStore()
	if err := store.Save(credstore.Credential{
		ServiceURL:  service,
		AccessToken: "stored-token",
		ObtainedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var gotPath, gotOverride string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotOverride = r.Header.Get("X-HTTP-Method")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, &StoreTokenSource{Store: store, ServiceURL: service})
	api := NewAPI(nil, store, client, service, ListNames{})

	if err := api.UpdateDayService(context.Background(), 42, map[string]any{"OraSottoCasa": "08:30"}); err != nil {
		t.Fatalf("UpdateDayService: %v", err)
	}
	if !strings.Contains(gotPath, "getbytitle('Servizi%20Giorno')") || !strings.HasSuffix(gotPath, "/items(42)") {
		t.Errorf("path = %q, want the day services items(42) endpoint", gotPath)
	}
	if gotOverride != "MERGE" {
		t.Errorf("X-HTTP-Method = %q, want MERGE", gotOverride)
	}
}

func TestCheckAuthentication(t *testing.T) {
	const service = "https://contoso.sharepoint.com/sites/trasporti"
	store := credstore.NewMemoryStore()
	api := NewAPI(nil, store, nil, service, ListNames{})

	if api.CheckAuthentication() {
		t.Error("empty store must not report authenticated")
	}
	if err := api.SaveCredentials("direct-token"); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	if !api.CheckAuthentication() {
		t.Error("saved token must report authenticated")
	}
	if err := api.ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}
	if api.CheckAuthentication() {
		t.Error("cleared store must not report authenticated")
	}
}
