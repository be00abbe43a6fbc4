package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/adapters/store"
	"github.com/mikey/comment-spam-gateway/internal/core"
	"github.com/mikey/comment-spam-gateway/internal/maintenance"
	"github.com/mikey/comment-spam-gateway/internal/utils"
	"github.com/mikey/comment-spam-gateway/internal/whitelist"
)

const testAdminToken = "s3cret"

type stubClassifier struct {
	verdict   core.Verdict
	keyStatus core.KeyStatus
}

func (s *stubClassifier) CheckComment(ctx context.Context, c *core.Comment, p *core.Post, o *core.OriginContext) core.Verdict {
	return s.verdict
}

func (s *stubClassifier) SubmitSpam(ctx context.Context, c *core.Comment, p *core.Post) core.ReportResult {
	return core.ReportResult{Submitted: true, Delivered: true}
}

func (s *stubClassifier) SubmitHam(ctx context.Context, c *core.Comment, p *core.Post) core.ReportResult {
	return core.ReportResult{Submitted: true, Delivered: true}
}

func (s *stubClassifier) VerifyKey(ctx context.Context, key string) core.KeyStatus {
	return s.keyStatus
}

func newTestIntake(t *testing.T, classifier core.Classifier) (*HTTPIntake, *store.MemoryStore) {
	t.Helper()

	logger := zap.NewNop()
	mem := store.NewMemoryStore(logger)
	service := core.NewGatewayService(
		classifier,
		mem,
		mem.Posts(),
		nil,
		maintenance.NeverPolicy{},
		whitelist.NewChecker(nil, nil),
		logger,
		false,
		30*24*time.Hour,
		15*24*time.Hour,
	)
	return NewHTTPIntake(service, logger, "127.0.0.1:0", testAdminToken, utils.NewTextProcessor(logger), 65536), mem
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSubmitComment(t *testing.T) {
	intake, mem := newTestIntake(t, &stubClassifier{verdict: core.VerdictSpam})
	router := intake.Router()

	rec := doJSON(t, router, http.MethodPost, "/comments", "", map[string]any{
		"post_id":      42,
		"author":       "viagrant",
		"author_email": "buy@pills.example.com",
		"content":      "cheap meds",
		"remote_addr":  "203.0.113.7",
		"user_agent":   "Mozilla/5.0",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp submissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "spam", resp.Verdict)
	assert.NotEmpty(t, resp.CheckID)
	assert.False(t, resp.Dropped)
	require.NotZero(t, resp.CommentID)

	stored, err := mem.Get(context.Background(), resp.CommentID)
	require.NoError(t, err)
	assert.Equal(t, core.StateSpam, stored.State)
	assert.Equal(t, "203.0.113.7", stored.AuthorIP)
}

func TestSubmitCommentFallsBackToRequestOrigin(t *testing.T) {
	intake, mem := newTestIntake(t, &stubClassifier{verdict: core.VerdictHam})
	router := intake.Router()

	req := httptest.NewRequest(http.MethodPost, "/comments", bytes.NewBufferString(`{"post_id":1,"content":"hi"}`))
	req.RemoteAddr = "198.51.100.4:51712"
	req.Header.Set("User-Agent", "TestBrowser/1.0")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp submissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	stored, err := mem.Get(context.Background(), resp.CommentID)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.4", stored.AuthorIP, "port must be stripped from the fallback address")
	assert.Equal(t, "TestBrowser/1.0", stored.UserAgent)
	assert.Equal(t, core.StatePending, stored.State)
}

func TestSubmitCommentRejectsMalformedBody(t *testing.T) {
	intake, _ := newTestIntake(t, &stubClassifier{verdict: core.VerdictHam})
	rec := httptest.NewRecorder()
	intake.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/comments", bytes.NewBufferString("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModerationRequiresAdminToken(t *testing.T) {
	intake, _ := newTestIntake(t, &stubClassifier{verdict: core.VerdictHam})
	router := intake.Router()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/comments/recheck"},
		{http.MethodPost, "/comments/1/approve"},
		{http.MethodPost, "/comments/1/spam"},
		{http.MethodPost, "/comments/1/report-spam"},
		{http.MethodPost, "/comments/1/report-ham"},
		{http.MethodDelete, "/comments/spam"},
	}
	for _, p := range paths {
		rec := doJSON(t, router, p.method, p.path, "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s without token", p.method, p.path)

		rec = doJSON(t, router, p.method, p.path, "wrong-token", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s with bad token", p.method, p.path)
	}
}

func TestEmptyAdminTokenDeniesEverything(t *testing.T) {
	intake, _ := newTestIntake(t, &stubClassifier{verdict: core.VerdictHam})
	intake.adminToken = ""

	rec := doJSON(t, intake.Router(), http.MethodPost, "/comments/recheck", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRecheckPendingEndpoint(t *testing.T) {
	classifier := &stubClassifier{verdict: core.VerdictHam}
	intake, mem := newTestIntake(t, classifier)
	router := intake.Router()

	// Admit two comments while the service answers ham.
	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/comments", "", map[string]any{
			"post_id": 1, "content": "hello", "remote_addr": "203.0.113.7",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Now the service thinks everything is spam; a recheck flips both.
	classifier.verdict = core.VerdictSpam
	rec := doJSON(t, router, http.MethodPost, "/comments/recheck", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.RecheckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 2, result.Spammed)

	n, err := mem.CountByState(context.Background(), core.StateSpam)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestModerationLifecycle(t *testing.T) {
	intake, mem := newTestIntake(t, &stubClassifier{verdict: core.VerdictSpam})
	router := intake.Router()

	rec := doJSON(t, router, http.MethodPost, "/comments", "", map[string]any{
		"post_id": 1, "content": "borderline", "remote_addr": "203.0.113.7",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp submissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Recover the false positive.
	rec = doJSON(t, router, http.MethodPost, "/comments/1/approve", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := mem.Get(context.Background(), resp.CommentID)
	require.NoError(t, err)
	assert.Equal(t, core.StateApproved, stored.State)

	// And flag it again.
	rec = doJSON(t, router, http.MethodPost, "/comments/1/spam", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err = mem.Get(context.Background(), resp.CommentID)
	require.NoError(t, err)
	assert.Equal(t, core.StateSpam, stored.State)

	// Reporting a confirmed spam comment reaches the service.
	rec = doJSON(t, router, http.MethodPost, "/comments/1/report-spam", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report core.ReportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Submitted)
}

func TestModerationMissingComment(t *testing.T) {
	intake, _ := newTestIntake(t, &stubClassifier{verdict: core.VerdictHam})
	router := intake.Router()

	rec := doJSON(t, router, http.MethodPost, "/comments/999/approve", testAdminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/comments/abc/approve", testAdminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAllSpam(t *testing.T) {
	intake, mem := newTestIntake(t, &stubClassifier{verdict: core.VerdictSpam})
	router := intake.Router()

	rec := doJSON(t, router, http.MethodPost, "/comments", "", map[string]any{
		"post_id": 1, "content": "spam", "remote_addr": "203.0.113.7",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/comments/spam", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.EqualValues(t, 1, result["deleted"])

	n, err := mem.CountByState(context.Background(), core.StateSpam)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteAllSpamRejectsBadCutoff(t *testing.T) {
	intake, _ := newTestIntake(t, &stubClassifier{verdict: core.VerdictHam})
	rec := doJSON(t, intake.Router(), http.MethodDelete, "/comments/spam?before=yesterday", testAdminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	intake, _ := newTestIntake(t, &stubClassifier{verdict: core.VerdictSpam})
	router := intake.Router()

	rec := doJSON(t, router, http.MethodPost, "/comments", "", map[string]any{
		"post_id": 1, "content": "spam", "remote_addr": "203.0.113.7",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats core.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.TotalCaught)
	assert.EqualValues(t, 1, stats.InQueue)
}

func TestVerifyKeyEndpoint(t *testing.T) {
	intake, mem := newTestIntake(t, &stubClassifier{verdict: core.VerdictHam, keyStatus: core.KeyValid})
	router := intake.Router()

	rec := doJSON(t, router, http.MethodPost, "/key/verify", "", map[string]string{"key": "abc123"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "valid", resp["status"])

	stored, err := mem.GetOption(context.Background(), core.OptionAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "abc123", stored)
}
