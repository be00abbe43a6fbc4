// Package intake exposes the gateway to the host platform over HTTP.
// It is adapter glue only; all classification and lifecycle decisions
// live in core.
package intake

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/core"
	"github.com/mikey/comment-spam-gateway/internal/utils"
)

// HTTPIntake implements ports.CommentIntake over HTTP.
type HTTPIntake struct {
	service        *core.GatewayService
	logger         *zap.Logger
	listenAddr     string
	adminToken     string
	text           *utils.TextProcessor
	maxCommentSize int
	server         *http.Server
}

// NewHTTPIntake creates a new HTTP intake.
func NewHTTPIntake(
	service *core.GatewayService,
	logger *zap.Logger,
	listenAddr string,
	adminToken string,
	text *utils.TextProcessor,
	maxCommentSize int,
) *HTTPIntake {
	return &HTTPIntake{
		service:        service,
		logger:         logger,
		listenAddr:     listenAddr,
		adminToken:     adminToken,
		text:           text,
		maxCommentSize: maxCommentSize,
	}
}

// Start starts serving the intake endpoints.
func (h *HTTPIntake) Start() error {
	h.server = &http.Server{
		Addr:         h.listenAddr,
		Handler:      h.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	h.logger.Info("Starting HTTP intake", zap.String("address", h.listenAddr))
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP intake stopped unexpectedly", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the intake down gracefully.
func (h *HTTPIntake) Stop() error {
	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

// Router builds the chi router. Exposed for tests.
func (h *HTTPIntake) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/comments", h.handleSubmit)
	r.Get("/stats", h.handleStats)
	r.Post("/key/verify", h.handleVerifyKey)

	// Moderation endpoints require the admin token.
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/comments/recheck", h.handleRecheck)
		r.Post("/comments/{id}/approve", h.handleApprove)
		r.Post("/comments/{id}/spam", h.handleMarkSpam)
		r.Post("/comments/{id}/report-spam", h.handleReportSpam)
		r.Post("/comments/{id}/report-ham", h.handleReportHam)
		r.Delete("/comments/spam", h.handleDeleteAllSpam)
	})

	return r
}

// requireAdmin guards human moderation actions. A missing or wrong
// token is a permission failure, surfaced to the operator as 403.
func (h *HTTPIntake) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if h.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			writeError(w, http.StatusForbidden, "moderation requires a valid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type submissionRequest struct {
	PostID         int64             `json:"post_id"`
	Author         string            `json:"author"`
	AuthorEmail    string            `json:"author_email"`
	AuthorURL      string            `json:"author_url"`
	Content        string            `json:"content"`
	Type           string            `json:"type"`
	RequestedState string            `json:"requested_state"`
	RemoteAddr     string            `json:"remote_addr"`
	UserAgent      string            `json:"user_agent"`
	Referrer       string            `json:"referrer"`
	Environ        map[string]string `json:"environ"`
}

type submissionResponse struct {
	CheckID   string `json:"check_id"`
	Verdict   string `json:"verdict"`
	CommentID int64  `json:"comment_id,omitempty"`
	Dropped   bool   `json:"dropped"`
}

func (h *HTTPIntake) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed submission")
		return
	}

	origin := core.OriginContext{
		RemoteAddr: req.RemoteAddr,
		UserAgent:  req.UserAgent,
		Referrer:   req.Referrer,
		Environ:    req.Environ,
	}
	if origin.RemoteAddr == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			origin.RemoteAddr = host
		} else {
			origin.RemoteAddr = r.RemoteAddr
		}
	}
	if origin.UserAgent == "" {
		origin.UserAgent = r.UserAgent()
	}
	if origin.Referrer == "" {
		origin.Referrer = r.Referer()
	}

	sub := &core.Submission{
		Comment: core.Comment{
			PostID:      req.PostID,
			Author:      req.Author,
			AuthorEmail: req.AuthorEmail,
			AuthorURL:   req.AuthorURL,
			AuthorIP:    origin.RemoteAddr,
			UserAgent:   origin.UserAgent,
			Referrer:    origin.Referrer,
			Content:     h.text.ProcessText(req.Content, h.maxCommentSize),
			Type:        core.CommentType(req.Type),
		},
		Origin:         origin,
		RequestedState: core.ModerationState(req.RequestedState),
	}

	result, err := h.service.ProcessSubmission(r.Context(), sub)
	if err != nil {
		h.logger.Error("Failed to process submission", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "submission could not be stored")
		return
	}

	writeJSON(w, http.StatusOK, submissionResponse{
		CheckID:   result.CheckID,
		Verdict:   string(result.Verdict),
		CommentID: result.CommentID,
		Dropped:   result.Dropped,
	})
}

func (h *HTTPIntake) handleRecheck(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RecheckPending(r.Context())
	if err != nil {
		h.logger.Error("Failed to recheck pending queue", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "recheck failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPIntake) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := commentID(w, r)
	if !ok {
		return
	}
	if err := h.service.Approve(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(core.StateApproved)})
}

func (h *HTTPIntake) handleMarkSpam(w http.ResponseWriter, r *http.Request) {
	id, ok := commentID(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkSpam(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(core.StateSpam)})
}

func (h *HTTPIntake) handleReportSpam(w http.ResponseWriter, r *http.Request) {
	id, ok := commentID(w, r)
	if !ok {
		return
	}
	result, err := h.service.ReportSpam(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPIntake) handleReportHam(w http.ResponseWriter, r *http.Request) {
	id, ok := commentID(w, r)
	if !ok {
		return
	}
	result, err := h.service.ReportHam(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPIntake) handleDeleteAllSpam(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now()
	if before := r.URL.Query().Get("before"); before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cutoff timestamp")
			return
		}
		cutoff = t
	}
	deleted, err := h.service.DeleteAllSpam(r.Context(), cutoff)
	if err != nil {
		h.logger.Error("Failed to delete spam", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *HTTPIntake) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to read stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type verifyKeyRequest struct {
	Key string `json:"key"`
}

func (h *HTTPIntake) handleVerifyKey(w http.ResponseWriter, r *http.Request) {
	var req verifyKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	status, err := h.service.VerifyKey(r.Context(), req.Key)
	if err != nil {
		h.logger.Error("Failed to persist key verification outcome", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "verification could not be recorded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func commentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid comment id")
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "store operation failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
