package backendfake_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-garage-desk/internal/backendfake"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, srv *backendfake.Server, method, path string, params url.Values, body any, prefer string) (*http.Response, []map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	target := srv.URL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("apikey", backendfake.DefaultAPIKey)
	req.Header.Set("Authorization", "Bearer "+backendfake.DefaultServiceKey)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rows []map[string]any
	if method != http.MethodHead && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&rows)
	}
	return resp, rows
}

func TestBackend_RestGrammar(t *testing.T) {
	srv := backendfake.Start(backendfake.WithInsertionOrder())
	defer srv.Close()

	srv.Seed("services",
		map[string]any{"name": "Oil change", "base_price": 39.0},
		map[string]any{"name": "Brake pads", "base_price": 120.0},
		map[string]any{"name": "Brake fluid", "base_price": 55.5},
		map[string]any{"name": "Tyre rotation", "base_price": 25.0},
	)

	_, rows := do(t, srv, http.MethodGet, "/rest/v1/services", url.Values{"name": {"ilike.*brake*"}, "order": {"base_price.asc"}}, nil, "")
	require.Len(t, rows, 2)
	require.Equal(t, "Brake fluid", rows[0]["name"])

	_, rows = do(t, srv, http.MethodGet, "/rest/v1/services", url.Values{"base_price": {"gte.30", "lte.60"}}, nil, "")
	require.Len(t, rows, 2)

	_, rows = do(t, srv, http.MethodGet, "/rest/v1/services", url.Values{"or": {"(name.eq.Oil change,base_price.lt.30)"}}, nil, "")
	require.Len(t, rows, 2)

	_, rows = do(t, srv, http.MethodGet, "/rest/v1/services", url.Values{"name": {`in.("Oil change",Brake pads)`}}, nil, "")
	require.Len(t, rows, 2)

	_, rows = do(t, srv, http.MethodGet, "/rest/v1/services", url.Values{"order": {"name.desc"}, "limit": {"2"}, "offset": {"1"}}, nil, "")
	require.Len(t, rows, 2)
	require.Equal(t, "Oil change", rows[0]["name"])

	resp, _ := do(t, srv, http.MethodHead, "/rest/v1/services", url.Values{"base_price": {"gt.30"}}, nil, "count=exact")
	require.Equal(t, "0-2/3", resp.Header.Get("Content-Range"))

	resp, _ = do(t, srv, http.MethodHead, "/rest/v1/services", url.Values{"base_price": {"gt.1000"}}, nil, "count=exact")
	require.Equal(t, "*/0", resp.Header.Get("Content-Range"))

	resp, _ = do(t, srv, http.MethodGet, "/rest/v1/services", url.Values{"limit": {"2"}}, nil, "count=exact")
	require.Equal(t, "0-1/4", resp.Header.Get("Content-Range"))

	resp, _ = do(t, srv, http.MethodGet, "/rest/v1/services", url.Values{"name": {"like.x"}}, nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBackend_Mutations(t *testing.T) {
	srv := backendfake.Start()
	defer srv.Close()

	resp, rows := do(t, srv, http.MethodPost, "/rest/v1/vehicles", nil,
		[]map[string]any{{"license_plate": "AB-123", "make": "Toyota"}, {"license_plate": "CD-456", "make": "Honda"}},
		"return=representation")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, rows, 2)
	require.NotEmpty(t, rows[0]["id"])
	require.NotEmpty(t, rows[0]["created_at"])

	resp, _ = do(t, srv, http.MethodPost, "/rest/v1/vehicles", nil, map[string]any{"license_plate": "AB-123"}, "return=representation")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, rows = do(t, srv, http.MethodPost, "/rest/v1/vehicles", url.Values{"on_conflict": {"license_plate"}},
		map[string]any{"license_plate": "AB-123", "make": "Lexus"}, "resolution=merge-duplicates,return=representation")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "Lexus", rows[0]["make"])
	require.Len(t, srv.Rows("vehicles"), 2)

	_, rows = do(t, srv, http.MethodPatch, "/rest/v1/vehicles", url.Values{"make": {"eq.Honda"}}, map[string]any{"model": "Civic"}, "return=representation")
	require.Len(t, rows, 1)
	require.Equal(t, "Civic", rows[0]["model"])

	_, rows = do(t, srv, http.MethodDelete, "/rest/v1/vehicles", url.Values{"license_plate": {"eq.CD-456"}}, nil, "return=representation")
	require.Len(t, rows, 1)
	require.Len(t, srv.Rows("vehicles"), 1)
}

func TestBackend_DelayedProvisioning(t *testing.T) {
	start := time.Now()
	var elapsed atomic.Int64
	srv := backendfake.Start(
		backendfake.WithProvisioning(backendfake.ProvisionDelayed, time.Minute),
		backendfake.WithNowFunc(func() time.Time { return start.Add(time.Duration(elapsed.Load())) }),
	)
	defer srv.Close()

	resp, _ := do(t, srv, http.MethodPost, "/auth/v1/signup", nil, map[string]any{"email": "ann@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, srv.Rows("users"))

	elapsed.Store(int64(2 * time.Minute))
	require.Len(t, srv.Rows("users"), 1)
}

func TestBackend_FaultInjection(t *testing.T) {
	srv := backendfake.Start()
	defer srv.Close()

	srv.Fail(http.MethodGet, "/rest/v1/shops", http.StatusServiceUnavailable, `{"message":"down"}`, 1)
	resp, _ := do(t, srv, http.MethodGet, "/rest/v1/shops", nil, nil, "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodGet, "/rest/v1/shops", nil, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, srv.RequestCount(http.MethodGet, "/rest/v1/shops"))
}
