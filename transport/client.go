// Package transport performs single HTTP exchanges against the backend's
// REST resource endpoint and Auth endpoint. It attaches the header policy,
// classifies outcomes into typed failures and never retries.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-garage-desk/internal/config"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxResponseSize limits a response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

const (
	endpointRest = "rest"
	endpointAuth = "auth"

	headerAPIKey        = "apikey"
	headerAuthorization = "Authorization"
	headerPrefer        = "Prefer"
	headerContentRange  = "Content-Range"

	preferRepresentation = "return=representation"
	preferMergeDuplicate = "resolution=merge-duplicates"
	preferExactCount     = "count=exact"
)

// Client is the single HTTP gateway to the backend. It is stateless apart
// from its configuration and reads the session store fresh on every call.
type Client struct {
	restURL    string
	authURL    string
	apiKey     string
	serviceKey string
	httpClient *http.Client
	store      *session.Store
	logger     zerolog.Logger
	metrics    *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Its timeout bounds every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a Client for the configured backend.
func New(cfg config.BackendConfig, store *session.Store, options ...Option) *Client {
	c := &Client{
		restURL:    strings.TrimSuffix(cfg.GetRestURL(), "/"),
		authURL:    strings.TrimSuffix(cfg.GetAuthURL(), "/"),
		apiKey:     cfg.GetAPIKey(),
		serviceKey: cfg.GetServiceKey(),
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout()},
		store:      store,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Request is one exchange with the REST resource endpoint.
type Request struct {
	Method   string      // GET, HEAD, POST, PATCH or DELETE
	Resource string      // Resource (table) name
	Query    query.Query // Filters, ordering, window
	Body     any         // JSON body for POST/PATCH
	Upsert   bool        // Merge on conflict instead of failing
}

// Response is a successful (2xx) exchange.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Total  int // Exact count, when the query asked for one
}

// AuthRequest is one exchange with the Auth endpoint.
type AuthRequest struct {
	Method      string
	Path        string     // e.g. "/token"
	Params      url.Values // e.g. grant_type=password
	Body        any
	BearerToken string // User token for endpoints acting on the signed-in account
}

// Rest performs req against the resource endpoint. Mutations always ask for
// the full affected-record representation back.
func (c *Client) Rest(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Resource) == "" {
		return nil, errors.InvalidQuery("resource name is empty")
	}
	params, err := req.Query.Values()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	c.authorizeRest(header)

	var prefer []string
	switch req.Method {
	case http.MethodPost, http.MethodPatch, http.MethodDelete:
		if req.Upsert {
			prefer = append(prefer, preferMergeDuplicate)
		}
		prefer = append(prefer, preferRepresentation)
	}
	if req.Query.ExactCount() {
		prefer = append(prefer, preferExactCount)
	}
	if len(prefer) > 0 {
		header.Set(headerPrefer, strings.Join(prefer, ","))
	}

	resp, err := c.do(ctx, endpointRest, req.Method, c.resourceURL(req.Resource, params), req.Body, header)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Rest] %s %s", req.Method, req.Resource)
	}
	if req.Query.ExactCount() {
		resp.Total = c.total(req.Resource, resp.Header)
	}
	return resp, nil
}

// Count returns the exact number of rows matching q. A missing or malformed
// Content-Range header is reported as 0, not as an error.
func (c *Client) Count(ctx context.Context, resource string, q query.Query) (int, error) {
	resp, err := c.Rest(ctx, Request{Method: http.MethodHead, Resource: resource, Query: q.WithExactCount()})
	if err != nil {
		return 0, err
	}
	return resp.Total, nil
}

// Auth performs req against the Auth endpoint.
func (c *Client) Auth(ctx context.Context, req AuthRequest) (*Response, error) {
	header := http.Header{}
	header.Set(headerAPIKey, c.apiKey)
	bearer := req.BearerToken
	if bearer == "" {
		bearer = c.apiKey
	}
	header.Set(headerAuthorization, "Bearer "+bearer)

	target := c.authURL + "/" + strings.TrimPrefix(req.Path, "/")
	if len(req.Params) > 0 {
		target += "?" + req.Params.Encode()
	}

	resp, err := c.do(ctx, endpointAuth, req.Method, target, req.Body, header)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Auth] %s %s", req.Method, req.Path)
	}
	return resp, nil
}

// authorizeRest applies the per-request identity policy: the signed-in
// user's token while the session is valid, otherwise the service key.
func (c *Client) authorizeRest(header http.Header) {
	header.Set(headerAPIKey, c.apiKey)
	if token, ok := c.store.ValidAccessToken(); ok {
		header.Set(headerAuthorization, "Bearer "+token)
		return
	}
	header.Set(headerAuthorization, "Bearer "+c.serviceKey)
}

func (c *Client) resourceURL(resource string, params url.Values) string {
	target := c.restURL + "/" + url.PathEscape(resource)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return target
}

func (c *Client) do(ctx context.Context, endpoint, method, target string, body any, header http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.InvalidQuery("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.InvalidQuery("build request: %v", err)
	}
	httpReq.Header = header
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observe(endpoint, method, 0, time.Since(started))
		c.logger.Debug().Str("endpoint", endpoint).Str("method", method).Err(err).Msg("backend request failed")
		return nil, &errors.TransportError{Cause: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize+1))
	elapsed := time.Since(started)
	c.metrics.observe(endpoint, method, httpResp.StatusCode, elapsed)
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Str("path", httpReq.URL.Path).
		Int("status", httpResp.StatusCode).
		Dur("duration", elapsed).
		Msg("backend request")
	if err != nil {
		return nil, &errors.TransportError{Cause: err}
	}
	if len(data) > maxResponseSize {
		return nil, errors.Wrapf(errors.ErrResponseTooLarge, "%s %s: body exceeds %d bytes", method, httpReq.URL.Path, maxResponseSize)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &errors.RemoteRequestFailedError{Status: httpResp.StatusCode, Body: string(data)}
	}

	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func (c *Client) total(resource string, header http.Header) int {
	raw := header.Get(headerContentRange)
	total, ok := ParseContentRange(raw)
	if !ok {
		c.logger.Warn().Str("resource", resource).Str("content_range", raw).Msg("exact count unavailable, reporting 0")
	}
	return total
}
