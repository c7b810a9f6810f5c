package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/domain/auth"
	"intranet/internal/platform/config"
)

const testSecret = "server-test-secret"

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *App {
	t.Helper()
	cfg := config.Config{
		Environment:           "test",
		StoreDriver:           config.DriverSQLite,
		SQLitePath:            ":memory:",
		SeedFile:              "testdata/seed.yaml",
		JWTSecret:             testSecret,
		MaxBodyBytes:          1 << 16,
		RateLimitPerMinute:    1000,
		EmailFrom:             "intranet@example.com",
		LeaveExpiryNoticeDays: 30,
		MetricsEnabled:        true,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func send(t *testing.T, h http.Handler, userID, role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: userID, Role: role}, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProbes(t *testing.T) {
	app := newTestApp(t)

	rec := send(t, app.Router, "", "", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = send(t, app.Router, "", "", http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = send(t, app.Router, "", "", http.MethodGet, "/api/v1/notifications/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(t, app.Router, "", "", http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.EqualValues(t, 1, env.Data["clientErrorsTotal"])
}

func TestMetricsCanBeDisabled(t *testing.T) {
	app := newTestApp(t, func(c *config.Config) { c.MetricsEnabled = false })
	rec := send(t, app.Router, "", "", http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveRequestEndToEnd(t *testing.T) {
	app := newTestApp(t)
	h := app.Router

	rec := send(t, h, "drafter", auth.RoleEmployee, http.MethodPost, "/api/v1/documents", `{
		"type": "LEAVE_REQUEST",
		"title": "Summer holiday",
		"urgency": "NORMAL",
		"payload": {"leaveType": "ANNUAL", "startAt": "2025-07-07T00:00:00Z", "endAt": "2025-07-09T00:00:00Z"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			ID        string `json:"id"`
			DocNumber string `json:"docNumber"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	docID := created.Data.ID
	assert.True(t, strings.HasPrefix(created.Data.DocNumber, "DOC-"), created.Data.DocNumber)

	rec = send(t, h, "drafter", auth.RoleEmployee, http.MethodPut, "/api/v1/documents/"+docID+"/lines", `{"lines":[{"approverId":"lead"},{"approverId":"hr"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = send(t, h, "drafter", auth.RoleEmployee, http.MethodPost, "/api/v1/documents/"+docID+"/submit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(t, h, "lead", auth.RoleEmployee, http.MethodPost, "/api/v1/documents/"+docID+"/approve", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = send(t, h, "hr", auth.RoleHR, http.MethodPost, "/api/v1/documents/"+docID+"/approve", `{"comment":"ok"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(t, h, "drafter", auth.RoleEmployee, http.MethodGet, "/api/v1/leave/2025", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entry struct {
		Data struct {
			UsedHours decimal.Decimal `json:"usedHours"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.True(t, entry.Data.UsedHours.Equal(decimal.NewFromInt(24)), entry.Data.UsedHours.String())

	// the drafter got one notification per transition addressed to them
	rec = send(t, h, "drafter", auth.RoleEmployee, http.MethodGet, "/api/v1/notifications/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	snapshot := app.Metrics.Snapshot()
	assert.EqualValues(t, 1, snapshot["leaveUsedTotal"])
}

func TestSeedSkipsInactiveUsersOnInitialize(t *testing.T) {
	app := newTestApp(t)
	rec := send(t, app.Router, "hr", auth.RoleHR, http.MethodPost, "/api/v1/leave/2025/initialize", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"year":2025,"created":3,"skipped":0}`, extractData(t, rec))
}

func TestRejectsUnknownStoreDriver(t *testing.T) {
	_, err := New(context.Background(), config.Config{StoreDriver: "mysql"})
	assert.Error(t, err)
}

func extractData(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return string(env.Data)
}
