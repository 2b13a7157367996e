// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sitecheckout/internal/catalog"
	"sitecheckout/internal/logger"
	"sitecheckout/internal/order"
)

// ErrRejected is matched by every response whose status is not "success".
var ErrRejected = errors.New("inventory backend rejected the request")

// StatusError carries a logical failure reported by the backend.
type StatusError struct {
	Endpoint   string
	HTTPStatus int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %q (HTTP %d): %s", e.Endpoint, e.Status, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: status %q (HTTP %d)", e.Endpoint, e.Status, e.HTTPStatus)
}

func (e *StatusError) Unwrap() error { return ErrRejected }

// Action is one of the password-gated stock operations.
type Action string

const (
	LoadStock       Action = "load_stock"
	DownloadStock   Action = "download_stock"
	LoadAllData     Action = "load_all_data"
	DownloadAllData Action = "download_all_data"
)

// Actions lists every stock action in display order.
var Actions = []Action{LoadStock, DownloadStock, LoadAllData, DownloadAllData}

// ParseAction accepts both the endpoint name and its dashed form.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ReplaceAll(s, "-", "_"))
	if _, err := a.Method(); err != nil {
		return "", err
	}
	return a, nil
}

// Method returns the HTTP method the backend expects for the action.
func (a Action) Method() (string, error) {
	switch a {
	case LoadStock, LoadAllData:
		return http.MethodGet, nil
	case DownloadStock, DownloadAllData:
		return http.MethodPost, nil
	}
	return "", fmt.Errorf("unknown stock action %q", string(a))
}

// Client talks to the inventory backend. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type foremenResponse struct {
	Foremen []string `json:"foremen"`
}

type submitRequest struct {
	Data []order.Entry `json:"data"`
}

// LoadCatalog fetches GET /get_items_and_types.
func (c *Client) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	var p catalog.Payload
	if err := c.getJSON(ctx, "/get_items_and_types", nil, &p); err != nil {
		return nil, err
	}
	return catalog.New(p), nil
}

// LoadForemen fetches GET /get_foremen.
func (c *Client) LoadForemen(ctx context.Context) ([]string, error) {
	var resp foremenResponse
	if err := c.getJSON(ctx, "/get_foremen", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Foremen, nil
}

// Search fetches name suggestions from GET /search?q=<text>&type=name.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	params := url.Values{"q": {query}, "type": {"name"}}
	var names []string
	if err := c.getJSON(ctx, "/search", params, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Submit posts the batch to POST /submit.
func (c *Client) Submit(ctx context.Context, entries []order.Entry) error {
	body, err := json.Marshal(submitRequest{Data: entries})
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}
	return c.doStatus(ctx, http.MethodPost, "/submit", body)
}

// RunStockAction triggers one of the load/download endpoints.
func (c *Client) RunStockAction(ctx context.Context, a Action) error {
	method, err := a.Method()
	if err != nil {
		return err
	}
	var body []byte
	if method == http.MethodPost {
		body = []byte("{}")
	}
	return c.doStatus(ctx, method, "/"+string(a), body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body []byte) (*http.Request, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	logger.LogInfo("Backend GET %s -> %d in %v", path, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: unexpected HTTP status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: failed to decode response: %w", path, err)
	}
	return nil
}

// doStatus sends a request answered with {"status": ...}. The backend reports failures
// with HTTP 4xx/5xx and a JSON status body, so the body is read regardless of the code.
func (c *Client) doStatus(ctx context.Context, method, path string, body []byte) error {
	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()
	logger.LogInfo("Backend %s %s -> %d in %v", method, path, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	var status statusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return fmt.Errorf("%s %s: unexpected response (HTTP %d): %w", method, path, resp.StatusCode, err)
	}
	if status.Status != "success" {
		return &StatusError{
			Endpoint:   path,
			HTTPStatus: resp.StatusCode,
			Status:     status.Status,
			Message:    status.Message,
		}
	}
	return nil
}
