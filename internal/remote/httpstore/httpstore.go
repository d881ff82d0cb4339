// Package httpstore implements the remote document store contract
// over a REST API plus a websocket watch endpoint.
package httpstore

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

	"github.com/rs/zerolog"

	"github.com/fieldops/fieldsync/internal/core/logging"
	"github.com/fieldops/fieldsync/internal/core/remote"
)

// Options configure the client. Zero values take defaults.
type Options struct {
	// BaseURL is the API root, e.g. "https://sync.example.com".
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Client talks to the document API. Implements remote.Store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

var _ remote.Store = (*Client)(nil)

// New constructs a client for the given API root.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    &http.Client{Timeout: opts.Timeout},
		log:     logging.Component("httpstore"),
	}
}

// apiError is the wire shape of an error response body.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do executes the request and classifies the response. Network errors
// and 5xx/429 responses are transient; other non-2xx responses are
// rejections. The returned body must be closed by the caller when the
// error is nil.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, &remote.TransientError{Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &remote.TransientError{
			Err: fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode),
		}
	}

	var parsed apiError
	_ = json.Unmarshal(body, &parsed)
	return nil, &remote.RejectionError{
		StatusCode: resp.StatusCode,
		Code:       parsed.Error.Code,
		Message:    parsed.Error.Message,
	}
}

func (c *Client) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/%s/%s", collection, id), nil)
	if err != nil {
		return remote.Document{}, err
	}

	resp, err := c.do(req)
	if err != nil {
		var rej *remote.RejectionError
		if errors.As(err, &rej) && rej.StatusCode == http.StatusNotFound {
			return remote.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, remote.ErrNotFound)
		}
		return remote.Document{}, err
	}
	defer resp.Body.Close()

	var doc remote.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return remote.Document{}, fmt.Errorf("get %s/%s: decode: %w", collection, id, err)
	}
	return doc, nil
}

func (c *Client) Query(ctx context.Context, collection string, filters ...remote.Filter) ([]remote.Document, error) {
	params := url.Values{}
	for _, f := range filters {
		params.Set(f.Field, f.Value)
	}
	path := "/v1/" + collection
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Documents []remote.Document `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("query %s: decode: %w", collection, err)
	}
	return out.Documents, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, data json.RawMessage) error {
	req, err := c.newRequest(ctx, http.MethodPut, fmt.Sprintf("/v1/%s/%s", collection, id), bytes.NewReader(data))
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/v1/%s/%s", collection, id), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		// Deleting a missing document is not an error.
		var rej *remote.RejectionError
		if errors.As(err, &rej) && rej.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	resp.Body.Close()
	return nil
}

// Health probes the API. Suitable as a connectivity monitor prober.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
