package backendfake

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type authUser struct {
	ID           uuid.UUID
	Email        string
	PasswordHash []byte
	Metadata     map[string]any
	CreatedAt    time.Time
}

func (u *authUser) view() map[string]any {
	return map[string]any{
		"id":            u.ID.String(),
		"aud":           "authenticated",
		"role":          "authenticated",
		"email":         u.Email,
		"user_metadata": u.Metadata,
		"created_at":    u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type credentials struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	RefreshToken string         `json:"refresh_token"`
	Data         map[string]any `json:"data"`
}

func (b *Backend) serveAuth(w http.ResponseWriter, r *http.Request, path string, body []byte) {
	var creds credentials
	if len(body) > 0 {
		if err := json.Unmarshal(body, &creds); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "Could not read request body"})
			return
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case path == "signup" && r.Method == http.MethodPost:
		b.signUp(w, creds)
	case path == "token" && r.Method == http.MethodPost:
		switch r.URL.Query().Get("grant_type") {
		case "password":
			b.passwordGrant(w, creds)
		case "refresh_token":
			b.refreshGrant(w, creds)
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type", "error_description": "unsupported grant type"})
		}
	case path == "logout" && r.Method == http.MethodPost:
		b.logout(w, r)
	case path == "user" && r.Method == http.MethodGet:
		if u, ok := b.bearerUser(r); ok {
			writeJSON(w, http.StatusOK, u.view())
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
	case path == "user" && r.Method == http.MethodPut:
		u, ok := b.bearerUser(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
			return
		}
		for k, v := range creds.Data {
			u.Metadata[k] = v
		}
		writeJSON(w, http.StatusOK, u.view())
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "msg": "not found"})
	}
}

func (b *Backend) signUp(w http.ResponseWriter, creds credentials) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if !strings.Contains(email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "Unable to validate email address: invalid format"})
		return
	}
	if len(creds.Password) < 6 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "weak_password", "msg": "Password should be at least 6 characters"})
		return
	}
	if _, exists := b.users[email]; exists {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "user_already_exists", "msg": "User already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.MinCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"code": 500, "msg": err.Error()})
		return
	}
	metadata := creds.Data
	if metadata == nil {
		metadata = map[string]any{}
	}
	u := &authUser{ID: uuid.New(), Email: email, PasswordHash: hash, Metadata: metadata, CreatedAt: b.now()}
	b.users[email] = u
	b.provision(u)

	if b.confirm {
		writeJSON(w, http.StatusOK, u.view())
		return
	}
	b.writeSession(w, u)
}

// provision plays the database trigger that mirrors a new account into the
// users resource.
func (b *Backend) provision(u *authUser) {
	role, _ := u.Metadata["role"].(string)
	if role == "" {
		role = "client"
	}
	fullName, _ := u.Metadata["full_name"].(string)
	r := row{
		"auth_user_id": u.ID.String(),
		"email":        u.Email,
		"full_name":    fullName,
		"role":         role,
		"shop_id":      u.Metadata["shop_id"],
	}
	b.fillDefaults(r)

	switch b.provisioning {
	case ProvisionImmediately:
		b.tables["users"] = append(b.tables["users"], r)
	case ProvisionDelayed:
		b.pending = append(b.pending, pendingRow{readyAt: b.now().Add(b.provisionDelay), row: r})
	}
}

func (b *Backend) passwordGrant(w http.ResponseWriter, creds credentials) {
	u, ok := b.users[strings.ToLower(strings.TrimSpace(creds.Email))]
	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(creds.Password)) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
		return
	}
	b.writeSession(w, u)
}

func (b *Backend) refreshGrant(w http.ResponseWriter, creds credentials) {
	id, ok := b.refresh[creds.RefreshToken]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid Refresh Token: Refresh Token Not Found"})
		return
	}
	delete(b.refresh, creds.RefreshToken)
	u := b.userByID(id)
	if u == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "User not found"})
		return
	}
	b.writeSession(w, u)
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	u, ok := b.bearerUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
		return
	}
	for token, id := range b.refresh {
		if id == u.ID {
			delete(b.refresh, token)
		}
	}
	b.revoked[bearer(r)] = true
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) writeSession(w http.ResponseWriter, u *authUser) {
	now := b.now()
	access, err := b.signAccessToken(u, now)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"code": 500, "msg": err.Error()})
		return
	}
	refresh := uuid.NewString()
	b.refresh[refresh] = u.ID

	resp := map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"refresh_token": refresh,
		"user":          u.view(),
	}
	if !b.omitExpiry {
		resp["expires_in"] = int(b.accessTTL.Seconds())
		resp["expires_at"] = now.Add(b.accessTTL).Unix()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) signAccessToken(u *authUser, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":        u.ID.String(),
		"email":      u.Email,
		"role":       "authenticated",
		"aud":        "authenticated",
		"iss":        b.issuer,
		"iat":        now.Unix(),
		"exp":        now.Add(b.accessTTL).Unix(),
		"session_id": uuid.NewString(),
	}
	if b.rsaKey != nil {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = b.rsaKeyID
		return token.SignedString(b.rsaKey)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.jwtSecret)
}

// parseAccessToken validates a token issued by this fake. Callers hold b.mu.
func (b *Backend) parseAccessToken(raw string) (uuid.UUID, bool) {
	if raw == "" || b.revoked[raw] {
		return uuid.Nil, false
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if b.rsaKey != nil {
			return &b.rsaKey.PublicKey, nil
		}
		return b.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256", "RS256"}), jwt.WithTimeFunc(b.nowFunc))
	if err != nil || !token.Valid {
		return uuid.Nil, false
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(sub)
	return id, err == nil
}

func (b *Backend) bearerUser(r *http.Request) (*authUser, bool) {
	id, ok := b.parseAccessToken(bearer(r))
	if !ok {
		return nil, false
	}
	u := b.userByID(id)
	return u, u != nil
}

// authorized checks the REST Authorization header: a platform key or a live
// access token.
func (b *Backend) authorized(r *http.Request) bool {
	token := bearer(r)
	if token == b.apiKey || token == b.serviceKey {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.parseAccessToken(token)
	return ok
}

func (b *Backend) userByID(id uuid.UUID) *authUser {
	for _, u := range b.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// AuthUserCount returns the number of registered accounts.
func (b *Backend) AuthUserCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.users)
}

// RefreshTokenCount returns the number of live refresh tokens.
func (b *Backend) RefreshTokenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.refresh)
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
