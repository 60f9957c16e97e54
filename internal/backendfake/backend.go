// Package backendfake is an in-memory stand-in for the hosted backend. It
// serves the REST resource grammar under /rest/v1 and the Auth endpoint under
// /auth/v1 so packages can be tested end to end over real HTTP.
package backendfake

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/config"
)

const (
	DefaultAPIKey     = "anon-key"
	DefaultServiceKey = "service-key"

	restPrefix = "/rest/v1/"
	authPrefix = "/auth/v1/"
)

// Provisioning controls how the fake's database trigger creates the
// application user row after sign-up.
type Provisioning int

const (
	ProvisionImmediately Provisioning = iota // Row exists before sign-up returns
	ProvisionDelayed                         // Row appears after the configured delay
	ProvisionNever                           // Trigger is missing
)

// RecordedRequest is one request the fake received.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type fault struct {
	status    int
	body      string
	remaining int
}

type pendingRow struct {
	readyAt time.Time
	row     row
}

// Backend holds the fake's state. All methods are safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	apiKey     string
	serviceKey string
	issuer     string
	jwtSecret  []byte
	rsaKey     *rsa.PrivateKey
	rsaKeyID   string
	accessTTL  time.Duration
	omitExpiry bool
	confirm    bool
	shuffle    bool
	rng        *rand.Rand
	nowFunc    func() time.Time

	provisioning   Provisioning
	provisionDelay time.Duration
	pending        []pendingRow

	tables  map[string][]row
	unique  map[string][][]string
	users   map[string]*authUser // by email
	refresh map[string]uuid.UUID // refresh token -> auth user id
	revoked map[string]bool      // revoked access tokens

	faults   map[string]*fault
	requests []RecordedRequest
}

type Option func(*Backend)

func WithKeys(apiKey, serviceKey string) Option {
	return func(b *Backend) {
		b.apiKey = apiKey
		b.serviceKey = serviceKey
	}
}

func WithProvisioning(mode Provisioning, delay time.Duration) Option {
	return func(b *Backend) {
		b.provisioning = mode
		b.provisionDelay = delay
	}
}

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.accessTTL = ttl
	}
}

// WithoutExpiresIn leaves expires_in out of token responses.
func WithoutExpiresIn() Option {
	return func(b *Backend) {
		b.omitExpiry = true
	}
}

// WithEmailConfirmation makes sign-up return the account without a session.
func WithEmailConfirmation() Option {
	return func(b *Backend) {
		b.confirm = true
	}
}

// WithRSASigning signs access tokens with RS256 instead of HS256.
func WithRSASigning(key *rsa.PrivateKey, keyID string) Option {
	return func(b *Backend) {
		b.rsaKey = key
		b.rsaKeyID = keyID
	}
}

// WithInsertionOrder returns unordered reads in insertion order instead of
// shuffling them.
func WithInsertionOrder() Option {
	return func(b *Backend) {
		b.shuffle = false
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(b *Backend) {
		b.nowFunc = now
	}
}

// WithUnique adds a unique constraint over columns of table.
func WithUnique(table string, columns ...string) Option {
	return func(b *Backend) {
		b.unique[table] = append(b.unique[table], columns)
	}
}

// New creates a Backend with the garage schema's unique constraints.
func New(options ...Option) *Backend {
	b := &Backend{
		apiKey:     DefaultAPIKey,
		serviceKey: DefaultServiceKey,
		jwtSecret:  []byte("backendfake-jwt-secret"),
		accessTTL:  time.Hour,
		shuffle:    true,
		rng:        rand.New(rand.NewPCG(1, 2)),
		nowFunc:    time.Now,
		tables:     map[string][]row{},
		unique: map[string][][]string{
			"users":    {{"email"}, {"auth_user_id"}},
			"vehicles": {{"license_plate"}},
			"services": {{"name"}},
		},
		users:   map[string]*authUser{},
		refresh: map[string]uuid.UUID{},
		revoked: map[string]bool{},
		faults:  map[string]*fault{},
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Server is a Backend listening on a local HTTP port.
type Server struct {
	*Backend
	*httptest.Server
}

// Start serves a new Backend. Callers must Close the returned server.
func Start(options ...Option) *Server {
	b := New(options...)
	srv := httptest.NewServer(b)
	b.mu.Lock()
	b.issuer = srv.URL + "/auth/v1"
	b.mu.Unlock()
	return &Server{Backend: b, Server: srv}
}

// ClientConfig returns client configuration pointing at the server.
func (s *Server) ClientConfig(overrides ...func(*config.Values)) config.Config {
	v := config.Values{
		BaseURL:          s.URL,
		APIKey:           s.apiKey,
		ServiceKey:       s.serviceKey,
		RequestTimeout:   5 * time.Second,
		ProvisioningWait: 50 * time.Millisecond,
	}
	for _, o := range overrides {
		o(&v)
	}
	return config.New(v)
}

// Issuer is the "iss" claim of issued access tokens.
func (b *Backend) Issuer() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issuer
}

// Fail makes the next times requests to method+path answer status with body.
// Path is the full request path, e.g. "/rest/v1/vehicles".
func (b *Backend) Fail(method, path string, status int, body string, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[method+" "+path] = &fault{status: status, body: body, remaining: times}
}

// Requests returns a copy of the request log.
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// RequestCount counts logged requests matching method and path.
func (b *Backend) RequestCount(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) ResetRequests() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

// Seed inserts records into table, assigning id and created_at when absent.
// It panics on values that do not encode as JSON objects.
func (b *Backend) Seed(table string, records ...any) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		r, err := toRow(rec)
		if err != nil {
			panic(err)
		}
		b.fillDefaults(r)
		b.tables[table] = append(b.tables[table], r)
		out = append(out, r.clone())
	}
	return out
}

// Rows returns a copy of the visible rows of table.
func (b *Backend) Rows(table string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promotePending()
	out := make([]map[string]any, 0, len(b.tables[table]))
	for _, r := range b.tables[table] {
		out = append(out, r.clone())
	}
	return out
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	b.mu.Lock()
	b.requests = append(b.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	if f, ok := b.faults[r.Method+" "+r.URL.Path]; ok && f.remaining > 0 {
		f.remaining--
		b.mu.Unlock()
		writeRaw(w, f.status, f.body)
		return
	}
	b.mu.Unlock()

	if r.Header.Get("apikey") != b.apiKey && r.Header.Get("apikey") != b.serviceKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, restPrefix):
		b.serveRest(w, r, strings.TrimPrefix(r.URL.Path, restPrefix), body)
	case strings.HasPrefix(r.URL.Path, authPrefix):
		b.serveAuth(w, r, strings.TrimPrefix(r.URL.Path, authPrefix), body)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	}
}

func (b *Backend) now() time.Time {
	return b.nowFunc()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
