package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/jrsteele09/go-garage-desk/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/jrsteele09/go-garage-desk/internal/errors"
)

const defaultProvisioningWait = 500 * time.Millisecond

// SignUpRequest carries the credentials and profile of a new account.
type SignUpRequest struct {
	Email    string
	Password string
	FullName string
	Role     session.Role // Defaults to client
	ShopID   *uuid.UUID   // Shop affiliation for mechanics and admins
}

// Manager drives the session lifecycle against the Auth endpoint and keeps
// the session store current. The store is the single source of truth for
// whether a session exists; the manager only records transient states.
type Manager struct {
	client           AuthClient
	store            *session.Store
	identities       IdentityRepo
	logger           zerolog.Logger
	provisioningWait time.Duration
	verifier         *oidc.IDTokenVerifier

	refreshGroup singleflight.Group

	mu       sync.Mutex
	inFlight State // Authenticating or Refreshing while a transition runs, otherwise Anonymous
}

var _ oauth2.TokenSource = (*Manager)(nil)

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithProvisioningWait sets the single bounded wait for the backend to
// provision a new account's identity before the manager creates it.
func WithProvisioningWait(wait time.Duration) ManagerOption {
	return func(m *Manager) {
		m.provisioningWait = wait
	}
}

// WithTokenVerifier verifies the signature, issuer and audience of every
// access token the Auth endpoint returns. Without it tokens are trusted as
// received over TLS.
func WithTokenVerifier(verifier *oidc.IDTokenVerifier) ManagerOption {
	return func(m *Manager) {
		m.verifier = verifier
	}
}

// NewManager initializes a Manager. The session store's clock drives expiry.
func NewManager(client AuthClient, store *session.Store, identities IdentityRepo, options ...ManagerOption) (*Manager, error) {
	if client == nil {
		return nil, errors.New("[NewManager] auth client is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] session store is required")
	}
	if identities == nil {
		return nil, errors.New("[NewManager] identity repo is required")
	}

	m := &Manager{
		client:           client,
		store:            store,
		identities:       identities,
		logger:           log.Logger,
		provisioningWait: defaultProvisioningWait,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// State reports the current lifecycle state. Expired is derived from the
// stored session's expiry on every call.
func (m *Manager) State() State {
	m.mu.Lock()
	inFlight := m.inFlight
	m.mu.Unlock()
	if inFlight != Anonymous {
		return inFlight
	}

	current, ok := m.store.Current()
	if !ok {
		return Anonymous
	}
	if current.IsExpired(m.store.Now()) {
		return Expired
	}
	return Authenticated
}

// SignUp creates an account, resolves its application identity and stores
// the new session. The session is stored only once the identity exists.
func (m *Manager) SignUp(ctx context.Context, req SignUpRequest) (*session.Session, error) {
	if req.Role == "" {
		req.Role = session.RoleClient
	}
	if !req.Role.Valid() {
		return nil, &apperrors.AuthFailedError{Reason: InvalidRoleErr.Error() + " " + string(req.Role), Cause: InvalidRoleErr}
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, &apperrors.AuthFailedError{Reason: MissingCredentialErr.Error(), Cause: MissingCredentialErr}
	}

	m.begin(Authenticating)
	defer m.end()

	data := map[string]any{
		"full_name": req.FullName,
		"role":      string(req.Role),
	}
	if req.ShopID != nil {
		data["shop_id"] = req.ShopID.String()
	}
	resp, err := m.client.Auth(ctx, transport.AuthRequest{
		Method: http.MethodPost,
		Path:   "/signup",
		Body: map[string]any{
			"email":    req.Email,
			"password": req.Password,
			"data":     data,
		},
	})
	if err != nil {
		return nil, errors.Wrap(authFailure(err, "sign-up rejected"), "[Manager.SignUp] signup")
	}

	s, err := m.sessionFrom(ctx, resp)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.SignUp] session")
	}
	m.store.Clear()

	identity, err := m.provisionIdentity(ctx, s.AuthUserID, req)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.SignUp] provisionIdentity")
	}

	s = s.WithIdentity(identity)
	m.store.Set(s)
	m.logger.Info().Str("user_id", identity.ID.String()).Str("role", string(identity.Role)).Msg("signed up")
	return &s, nil
}

// SignIn exchanges credentials for a session. An account without an
// application identity fails with IdentityNotProvisioned.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, &apperrors.AuthFailedError{Reason: MissingCredentialErr.Error(), Cause: MissingCredentialErr}
	}

	m.begin(Authenticating)
	defer m.end()

	resp, err := m.client.Auth(ctx, transport.AuthRequest{
		Method: http.MethodPost,
		Path:   "/token",
		Params: url.Values{"grant_type": {"password"}},
		Body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, errors.Wrap(authFailure(err, "invalid login credentials"), "[Manager.SignIn] password grant")
	}

	s, err := m.sessionFrom(ctx, resp)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.SignIn] session")
	}
	m.store.Clear()

	identity, err := m.identities.FindByAuthUserID(ctx, s.AuthUserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.SignIn] FindByAuthUserID")
	}
	if identity == nil {
		m.logger.Warn().Str("auth_user_id", s.AuthUserID.String()).Msg("account has no application identity")
		return nil, errors.Wrapf(apperrors.ErrIdentityNotProvisioned, "[Manager.SignIn] auth user %s", s.AuthUserID)
	}

	s = s.WithIdentity(identity)
	m.store.Set(s)
	m.logger.Info().Str("user_id", identity.ID.String()).Msg("signed in")
	return &s, nil
}

// SignOut clears the local session first and then invalidates it remotely.
// A failed remote call is logged and ignored.
func (m *Manager) SignOut(ctx context.Context) error {
	current, ok := m.store.Current()
	m.store.Clear()
	if !ok {
		return nil
	}

	_, err := m.client.Auth(ctx, transport.AuthRequest{
		Method:      http.MethodPost,
		Path:        "/logout",
		BearerToken: current.AccessToken,
	})
	if err != nil {
		m.logger.Warn().Err(err).Msg("remote sign-out failed, local session cleared")
		return nil
	}
	m.logger.Info().Msg("signed out")
	return nil
}

// RefreshSession exchanges the refresh token for a new pair. Concurrent
// callers share one remote call, which runs detached from any single
// caller's cancellation and is bounded by the transport timeout. A caller
// whose ctx ends stops waiting without failing the others. On failure the
// session is cleared and the manager is Anonymous.
func (m *Manager) RefreshSession(ctx context.Context) (*session.Session, error) {
	shared := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		return m.refresh(shared)
	})
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "[Manager.RefreshSession] abandoned")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s := res.Val.(session.Session)
		return &s, nil
	}
}

func (m *Manager) refresh(ctx context.Context) (session.Session, error) {
	current, ok := m.store.Current()
	if !ok {
		return session.Session{}, errors.Wrap(apperrors.ErrNoSession, "[Manager.RefreshSession]")
	}

	m.begin(Refreshing)
	defer m.end()

	resp, err := m.client.Auth(ctx, transport.AuthRequest{
		Method: http.MethodPost,
		Path:   "/token",
		Params: url.Values{"grant_type": {"refresh_token"}},
		Body:   map[string]string{"refresh_token": current.RefreshToken},
	})
	if err != nil {
		m.store.ClearIf(current.RefreshToken)
		m.logger.Warn().Err(err).Msg("session refresh failed, signed out")
		return session.Session{}, errors.Wrap(authFailure(err, "refresh rejected"), "[Manager.RefreshSession] refresh grant")
	}

	s, err := m.sessionFrom(ctx, resp)
	if err != nil {
		m.store.ClearIf(current.RefreshToken)
		m.logger.Warn().Err(err).Msg("session refresh returned an unusable session, signed out")
		return session.Session{}, errors.Wrap(err, "[Manager.RefreshSession] session")
	}

	s = s.WithIdentity(current.Identity)
	if !m.store.Replace(current.RefreshToken, s) {
		m.logger.Info().Msg("session changed during refresh, refreshed tokens discarded")
		return session.Session{}, errors.Wrap(apperrors.ErrNoSession, "[Manager.RefreshSession] session changed during refresh")
	}
	m.logger.Info().Time("expires_at", s.ExpiresAt).Msg("session refreshed")
	return s, nil
}

// CurrentSession returns the stored session, refreshing it first when it is
// within the expiry skew. It returns nil without error when signed out.
func (m *Manager) CurrentSession(ctx context.Context) (*session.Session, error) {
	current, ok := m.store.Current()
	if !ok {
		return nil, nil
	}
	if current.IsExpired(m.store.Now()) {
		return m.RefreshSession(ctx)
	}
	return &current, nil
}

// CurrentUser returns the signed-in identity, or nil when signed out.
func (m *Manager) CurrentUser(ctx context.Context) (*session.Identity, error) {
	s, err := m.CurrentSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	return s.Identity, nil
}

func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	s, err := m.CurrentSession(ctx)
	return err == nil && s != nil
}

// Token implements oauth2.TokenSource over the current session.
func (m *Manager) Token() (*oauth2.Token, error) {
	s, err := m.CurrentSession(context.Background())
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Wrap(apperrors.ErrNoSession, "[Manager.Token]")
	}
	return s.OAuth2Token(), nil
}

// AuthUser fetches the provider's account record for the signed-in user.
func (m *Manager) AuthUser(ctx context.Context) (*Account, error) {
	return m.account(ctx, http.MethodGet, nil)
}

// UpdateMetadata merges data into the signed-in account's metadata.
func (m *Manager) UpdateMetadata(ctx context.Context, data map[string]any) (*Account, error) {
	return m.account(ctx, http.MethodPut, map[string]any{"data": data})
}

func (m *Manager) account(ctx context.Context, method string, body any) (*Account, error) {
	s, err := m.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Wrap(apperrors.ErrNoSession, "[Manager.account]")
	}

	resp, err := m.client.Auth(ctx, transport.AuthRequest{Method: method, Path: "/user", Body: body, BearerToken: s.AccessToken})
	if err != nil {
		return nil, errors.Wrapf(err, "[Manager.account] %s /user", method)
	}
	var acc Account
	if err := transport.DecodeObject(resp, &acc); err != nil {
		return nil, errors.Wrap(err, "[Manager.account] decode")
	}
	return &acc, nil
}

// provisionIdentity resolves the identity the backend provisions for a new
// account: look up, wait once, look up again, then create it directly. The
// backend's record wins a race: a conflicting create adopts it.
func (m *Manager) provisionIdentity(ctx context.Context, authUserID uuid.UUID, req SignUpRequest) (*session.Identity, error) {
	var identity *session.Identity
	lookup := func() error {
		found, err := m.identities.FindByAuthUserID(ctx, authUserID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if found == nil {
			return identityPendingErr
		}
		identity = found
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(m.provisioningWait), 1), ctx)
	err := backoff.Retry(lookup, policy)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, identityPendingErr) {
		return nil, err
	}

	m.logger.Warn().Str("auth_user_id", authUserID.String()).Dur("waited", m.provisioningWait).Msg("identity not provisioned, creating it")
	created, err := m.identities.Create(ctx, session.Identity{
		AuthUserID: authUserID,
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:   req.FullName,
		Role:       req.Role,
		ShopID:     req.ShopID,
	})
	if err == nil {
		return &created, nil
	}

	var remote *apperrors.RemoteRequestFailedError
	if errors.As(err, &remote) && remote.Conflict() {
		found, lookupErr := m.identities.FindByAuthUserID(ctx, authUserID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if found != nil {
			m.logger.Info().Str("auth_user_id", authUserID.String()).Msg("adopted identity provisioned concurrently")
			return found, nil
		}
	}
	return nil, errors.Wrapf(apperrors.ErrIdentityNotProvisioned, "[Manager.provisionIdentity] create failed: %v", err)
}

func (m *Manager) sessionFrom(ctx context.Context, resp *transport.Response) (session.Session, error) {
	tr, err := decodeTokenResponse(resp)
	if err != nil {
		return session.Session{}, &apperrors.AuthFailedError{Reason: "unreadable token response", Cause: err}
	}
	if tr.AccessToken == "" {
		return session.Session{}, &apperrors.AuthFailedError{Reason: "no session returned, the account may need email confirmation"}
	}
	if m.verifier != nil {
		if _, err := m.verifier.Verify(ctx, tr.AccessToken); err != nil {
			return session.Session{}, &apperrors.AuthFailedError{Reason: "access token failed verification", Cause: err}
		}
	}
	return newSession(tr, m.store.Now())
}

func (m *Manager) begin(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = s
}

func (m *Manager) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = Anonymous
}
