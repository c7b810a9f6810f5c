package approvalhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/domain/approval"
	"intranet/internal/domain/auth"
	"intranet/internal/domain/directory"
	"intranet/internal/domain/leave"
	"intranet/internal/store/sqlite"
	"intranet/internal/transport/http/middleware"
)

const testSecret = "handler-test-secret"

type testServer struct {
	router http.Handler
	ledger *leave.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	users := directory.NewService(store)
	hire := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	for _, u := range []directory.User{
		{ID: "drafter", Name: "Dana Drafter", Department: "eng", HireDate: &hire, Active: true},
		{ID: "boss", Name: "Bo Boss", Department: "eng", Active: true},
		{ID: "deputy", Name: "Dee Deputy", Department: "eng", Active: true},
		{ID: "outsider", Name: "Otto Outsider", Department: "sales", Active: true},
	} {
		require.NoError(t, users.Upsert(context.Background(), u))
	}

	ledger := leave.NewService(store, users)
	svc := approval.NewService(store, users, approval.NewDispatcher(ledger, nil))

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Auth(testSecret), middleware.RequireAuth)
	h := NewHandler(svc)
	h.Idempotency = store
	h.RegisterRoutes(r)
	return &testServer{router: r, ledger: ledger}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, userID, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return s.doWithHeaders(t, userID, method, path, body, nil)
}

func (s *testServer) doWithHeaders(t *testing.T, userID, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: userID, Role: auth.RoleEmployee}, time.Hour)
	require.NoError(t, err)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeDoc(t *testing.T, env envelope) approval.Document {
	t.Helper()
	var doc struct {
		ID                string          `json:"id"`
		Status            approval.Status `json:"status"`
		CurrentApproverID string          `json:"currentApproverId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	return approval.Document{ID: doc.ID, Status: doc.Status, CurrentApproverID: doc.CurrentApproverID}
}

const leaveDraft = `{
	"type": "LEAVE_REQUEST",
	"title": "Spring break",
	"content": "Family trip",
	"payload": {"leaveType": "ANNUAL", "startAt": "2025-03-03T00:00:00Z", "endAt": "2025-03-07T00:00:00Z"}
}`

func (s *testServer) submittedLeave(t *testing.T) string {
	t.Helper()
	rec, env := s.do(t, "drafter", http.MethodPost, "/documents", leaveDraft)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decodeDoc(t, env)
	assert.Equal(t, approval.StatusDraft, doc.Status)

	rec, _ = s.do(t, "drafter", http.MethodPut, "/documents/"+doc.ID+"/lines", `{"lines":[{"approverId":"boss"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, "drafter", http.MethodPost, "/documents/"+doc.ID+"/submit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc = decodeDoc(t, env)
	assert.Equal(t, approval.StatusPending, doc.Status)
	assert.Equal(t, "boss", doc.CurrentApproverID)
	return doc.ID
}

func TestLeaveRequestApprovalFlow(t *testing.T) {
	s := newTestServer(t)
	docID := s.submittedLeave(t)

	rec, env := s.do(t, "boss", http.MethodGet, "/documents/pending/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, string(env.Data))

	rec, env = s.do(t, "boss", http.MethodPost, "/documents/"+docID+"/approve", `{"comment":"enjoy"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, approval.StatusApproved, decodeDoc(t, env).Status)

	entry, err := s.ledger.GetOrCreate(context.Background(), "drafter", 2025)
	require.NoError(t, err)
	assert.True(t, entry.UsedHours.Equal(decimal.NewFromInt(40)), entry.UsedHours.String())

	rec, env = s.do(t, "boss", http.MethodPost, "/documents/"+docID+"/approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", env.Error.Code)
}

func TestRejectAndCancelErrors(t *testing.T) {
	s := newTestServer(t)
	docID := s.submittedLeave(t)

	rec, env := s.do(t, "outsider", http.MethodPost, "/documents/"+docID+"/reject", `{"reason":"no"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Code)

	rec, env = s.do(t, "boss", http.MethodPost, "/documents/"+docID+"/cancel", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(t, "boss", http.MethodPost, "/documents/"+docID+"/reject", `{"reason":"busy week"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, approval.StatusRejected, decodeDoc(t, env).Status)

	rec, _ = s.do(t, "drafter", http.MethodPost, "/documents/"+docID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDraftRejectsBadPayloads(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, "drafter", http.MethodPost, "/documents", `{"type":"LEAVE_REQUEST"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, env = s.do(t, "drafter", http.MethodPost, "/documents", `{"type":"GENERAL_APPROVAL","title":"x","bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", env.Error.Code)

	rec, env = s.do(t, "drafter", http.MethodPost, "/documents", `{"type":"GENERAL_APPROVAL","title":"x","payload":{"category":"travel"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, env = s.do(t, "drafter", http.MethodPost, "/documents", `{"type":"GENERAL_APPROVAL","title":"x","urgency":"WHENEVER"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestDocumentVisibility(t *testing.T) {
	s := newTestServer(t)
	docID := s.submittedLeave(t)

	rec, _ := s.do(t, "boss", http.MethodGet, "/documents/"+docID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, "outsider", http.MethodGet, "/documents/"+docID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Code)

	rec, _ = s.do(t, "boss", http.MethodGet, "/documents/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, "drafter", http.MethodGet, "/documents/"+docID+"/pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec, _ = s.do(t, "outsider", http.MethodGet, "/documents/"+docID+"/pdf", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListsAndSearch(t *testing.T) {
	s := newTestServer(t)
	s.submittedLeave(t)

	rec, env := s.do(t, "drafter", http.MethodGet, "/documents/drafts?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	var list struct {
		Documents []json.RawMessage `json:"documents"`
		Total     int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Documents, 1)

	rec, _ = s.do(t, "boss", http.MethodGet, "/documents/pending", "")
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec, _ = s.do(t, "outsider", http.MethodGet, "/documents/search?q=SPRING", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec, env = s.do(t, "outsider", http.MethodGet, "/documents/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestDelegation(t *testing.T) {
	s := newTestServer(t)
	docID := s.submittedLeave(t)

	rec, env := s.do(t, "boss", http.MethodPost, "/delegations", `{"delegateId":"deputy","validTo":"2099-01-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d approval.Delegation
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, 1, d.LinesReassigned)

	rec, env = s.do(t, "deputy", http.MethodGet, "/documents/"+docID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deputy", decodeDoc(t, env).CurrentApproverID)

	rec, _ = s.do(t, "boss", http.MethodGet, "/delegations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, "boss", http.MethodPost, "/delegations", `{"delegateId":"boss"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, _ = s.do(t, "boss", http.MethodPost, "/delegations", `{"delegateId":"deputy","validFrom":"2025-02-01","validTo":"2025-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/documents/pending", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDraftReplaysIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	key := map[string]string{middleware.IdempotencyHeader: "draft-once"}

	rec, env := s.doWithHeaders(t, "drafter", http.MethodPost, "/documents", leaveDraft, key)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeDoc(t, env)

	rec, env = s.doWithHeaders(t, "drafter", http.MethodPost, "/documents", leaveDraft, key)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, first.ID, decodeDoc(t, env).ID)

	rec, env = s.do(t, "drafter", http.MethodGet, "/documents/drafts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec, env = s.doWithHeaders(t, "drafter", http.MethodPost, "/documents", `{"type":"GENERAL_APPROVAL","title":"other"}`, key)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "idempotency_conflict", env.Error.Code)

	// the same key is independent for another user
	rec, env = s.doWithHeaders(t, "outsider", http.MethodPost, "/documents", leaveDraft, key)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEqual(t, first.ID, decodeDoc(t, env).ID)
}
