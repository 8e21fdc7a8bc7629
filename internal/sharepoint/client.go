// Package sharepoint talks to the SharePoint REST API of the transport
// site: list items, list fields and item creation. It also carries the
// facade the display layer calls, including the demo data served when no
// credential is stored.
package sharepoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/croceverde/trasporti-desk/internal/autherr"
	"github.com/croceverde/trasporti-desk/internal/credstore"
)

const defaultTop = 200

// TokenSource provides the bearer token for API calls.
type TokenSource interface {
	AccessToken() (string, error)
}

// StoreTokenSource reads the token from the credential store on every call,
// so a login completed mid-session is picked up immediately.
type StoreTokenSource struct {
	Store      credstore.Store
	ServiceURL string
}

func (s *StoreTokenSource) AccessToken() (string, error) {
	cred, err := s.load()
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

func (s *StoreTokenSource) load() (*credstore.Credential, error) {
	cred, err := s.Store.Load(s.ServiceURL)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindConfigurationIncomplete, "no stored credential", err)
	}
	if cred.AccessToken == "" {
		return nil, autherr.New(autherr.KindConfigurationIncomplete, "stored credential has no access token")
	}
	return cred, nil
}

// Client is a minimal OData client for SharePoint lists.
type Client struct {
	siteURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a client for the given site. The site URL is
// normalized to https when no scheme is present.
func NewClient(siteURL string, tokens TokenSource) *Client {
	siteURL = strings.TrimRight(siteURL, "/")
	if siteURL != "" && !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		siteURL = "https://" + strings.TrimLeft(siteURL, "/")
	}
	return &Client{
		siteURL:    siteURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient overrides the HTTP client, used by tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// QueryOptions narrows a list query.
type QueryOptions struct {
	Top     int
	Filter  string
	OrderBy string
}

// Item is one list item: the raw fields plus their text projection.
type Item struct {
	Fields json.RawMessage
	Text   map[string]string
}

// GetListItems fetches items of the named list with their text projection.
func (c *Client) GetListItems(ctx context.Context, listName string, opts QueryOptions) ([]Item, error) {
	top := opts.Top
	if top <= 0 {
		top = defaultTop
	}

	query := url.Values{}
	query.Set("$select", "*,FieldValuesAsText")
	query.Set("$expand", "FieldValuesAsText")
	query.Set("$top", strconv.Itoa(top))
	if opts.Filter != "" {
		query.Set("$filter", opts.Filter)
	}
	if opts.OrderBy != "" {
		query.Set("$orderby", opts.OrderBy)
	}

	endpoint := fmt.Sprintf("%s/_api/web/lists/getbytitle('%s')/items?%s",
		c.siteURL, url.PathEscape(listName), query.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}

	items := make([]Item, 0, len(parsed.Value))
	for _, raw := range parsed.Value {
		var text struct {
			FieldValuesAsText map[string]string `json:"FieldValuesAsText"`
		}
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("failed to decode list item: %w", err)
		}
		items = append(items, Item{Fields: raw, Text: text.FieldValuesAsText})
	}

	slog.Debug("list items fetched", "list", listName, "count", len(items))
	return items, nil
}

// GetFieldsMap returns InternalName to display title for the named list.
func (c *Client) GetFieldsMap(ctx context.Context, listName string) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/_api/web/lists/getbytitle('%s')/fields?$select=InternalName,Title",
		c.siteURL, url.PathEscape(listName))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Value []struct {
			InternalName string `json:"InternalName"`
			Title        string `json:"Title"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode fields response: %w", err)
	}

	fields := make(map[string]string, len(parsed.Value))
	for _, f := range parsed.Value {
		title := f.Title
		if title == "" {
			title = f.InternalName
		}
		fields[f.InternalName] = title
	}
	return fields, nil
}

// AddItem creates a list item from the given fields.
func (c *Client) AddItem(ctx context.Context, listName string, fields map[string]any) error {
	endpoint := fmt.Sprintf("%s/_api/web/lists/getbytitle('%s')/items",
		c.siteURL, url.PathEscape(listName))

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;odata=nometadata")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return autherr.Wrap(autherr.KindNetworkFailure, "SharePoint request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}
	slog.Info("list item created", "list", listName)
	return nil
}

// UpdateItem merges the given fields into an existing list item.
// SharePoint expresses updates as a POST with a MERGE method override.
func (c *Client) UpdateItem(ctx context.Context, listName string, itemID int, fields map[string]any) error {
	endpoint := fmt.Sprintf("%s/_api/web/lists/getbytitle('%s')/items(%d)",
		c.siteURL, url.PathEscape(listName), itemID)

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;odata=nometadata")
	req.Header.Set("X-HTTP-Method", "MERGE")
	req.Header.Set("If-Match", "*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return autherr.Wrap(autherr.KindNetworkFailure, "SharePoint request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}
	slog.Info("list item updated", "list", listName, "item_id", itemID)
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindNetworkFailure, "SharePoint request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (c *Client) authorize(req *http.Request) error {
	token, err := c.tokens.AccessToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json;odata=nometadata")
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return autherr.New(autherr.KindInvalidGrant,
			"SharePoint rejected the access token, sign in again")
	case resp.StatusCode >= 400:
		return fmt.Errorf("SharePoint returned status %d", resp.StatusCode)
	}
	return nil
}
