package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/whitelist"
)

// Persisted option keys.
const (
	OptionAPIKey             = "api_key"
	OptionSpamCount          = "spam_count"
	OptionDiscardOldPostSpam = "discard_old_post_spam"
)

// sentinelProbeKey is used once to distinguish "service unreachable"
// from "no credential configured yet".
const sentinelProbeKey = "1234567890ab"

// NormalizeCredential strips everything outside the accepted a-h/0-9
// alphabet and lowercases the rest.
func NormalizeCredential(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		if (r >= 'a' && r <= 'h') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GatewayService is the core classification pipeline and comment
// lifecycle orchestrator.
type GatewayService struct {
	classifier Classifier
	comments   CommentStore
	posts      PostStore
	events     EventSink
	policy     MaintenancePolicy
	whitelist  *whitelist.Checker
	logger     *zap.Logger

	discardDefault bool
	discardAge     time.Duration
	retention      time.Duration

	now func() time.Time
}

// NewGatewayService creates a new gateway service.
func NewGatewayService(
	classifier Classifier,
	comments CommentStore,
	posts PostStore,
	events EventSink,
	policy MaintenancePolicy,
	wl *whitelist.Checker,
	logger *zap.Logger,
	discardOldPostSpam bool,
	discardAge time.Duration,
	retention time.Duration,
) *GatewayService {
	return &GatewayService{
		classifier:     classifier,
		comments:       comments,
		posts:          posts,
		events:         events,
		policy:         policy,
		whitelist:      wl,
		logger:         logger,
		discardDefault: discardOldPostSpam,
		discardAge:     discardAge,
		retention:      retention,
		now:            time.Now,
	}
}

// ProcessSubmission runs one inbound comment through the classification
// pipeline and applies the verdict. Transport and protocol failures fail
// open: the comment is admitted as if unclassified.
func (s *GatewayService) ProcessSubmission(ctx context.Context, sub *Submission) (*CheckResult, error) {
	c := sub.Comment
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = s.now()
	}
	if c.Type == "" {
		c.Type = TypeComment
	}

	result := &CheckResult{
		CheckID:   uuid.NewString(),
		CheckedAt: s.now(),
	}

	post := s.resolvePost(ctx, c.PostID)

	if s.whitelist != nil && s.whitelist.IsWhitelisted(c.AuthorEmail) {
		s.logger.Info("Skipping classification for whitelisted author",
			zap.String("check_id", result.CheckID),
			zap.String("author_email", c.AuthorEmail))
		result.Verdict = VerdictHam
	} else {
		result.Verdict = s.classifier.CheckComment(ctx, &c, post, &sub.Origin)
	}

	s.logger.Debug("Comment classified",
		zap.String("check_id", result.CheckID),
		zap.String("verdict", string(result.Verdict)),
		zap.Int64("post_id", c.PostID))

	if result.Verdict == VerdictSpam {
		c.State = StateSpam
		s.incrementSpamCount(ctx)
		if s.events != nil {
			s.events.SpamCaught(ctx, &c)
		}
		if s.shouldDiscard(ctx, &c, post) {
			s.logger.Info("Discarding spam on stale post",
				zap.String("check_id", result.CheckID),
				zap.Int64("post_id", c.PostID))
			result.Dropped = true
			return result, nil
		}
	} else {
		c.State = sub.RequestedState
		if c.State == "" || c.State == StateSpam {
			c.State = StatePending
		}
	}

	if err := s.comments.Insert(ctx, &c); err != nil {
		return nil, err
	}
	result.CommentID = c.ID

	s.sweep(ctx)
	return result, nil
}

// RecheckPending re-classifies every pending comment sequentially.
// Origin context comes from the stored record; there is no live request
// environment and no discard policy in this path. Failures on a single
// comment are skipped, not fatal.
func (s *GatewayService) RecheckPending(ctx context.Context) (*RecheckResult, error) {
	pending, err := s.comments.ListByState(ctx, StatePending)
	if err != nil {
		return nil, err
	}

	result := &RecheckResult{}
	for _, c := range pending {
		result.Checked++
		post := s.resolvePost(ctx, c.PostID)
		origin := &OriginContext{
			RemoteAddr: c.AuthorIP,
			UserAgent:  c.UserAgent,
		}
		verdict := s.classifier.CheckComment(ctx, c, post, origin)
		if verdict != VerdictSpam {
			continue
		}
		if err := s.comments.SetState(ctx, c.ID, StateSpam); err != nil {
			s.logger.Warn("Failed to mark rechecked comment as spam",
				zap.Int64("comment_id", c.ID), zap.Error(err))
			result.Failed++
			continue
		}
		result.Spammed++
	}

	s.logger.Info("Recheck of pending queue complete",
		zap.Int("checked", result.Checked),
		zap.Int("spammed", result.Spammed),
		zap.Int("failed", result.Failed))
	return result, nil
}

// ReportSpam notifies the service of a human-confirmed spam comment.
// It is a no-op unless the comment exists and is already in the spam
// state, and it never fails the surrounding moderation action.
func (s *GatewayService) ReportSpam(ctx context.Context, commentID int64) (ReportResult, error) {
	c, err := s.comments.Get(ctx, commentID)
	if errors.Is(err, ErrNotFound) {
		return ReportResult{}, nil
	}
	if err != nil {
		return ReportResult{}, err
	}
	if c.State != StateSpam {
		return ReportResult{}, nil
	}
	post := s.resolvePost(ctx, c.PostID)
	if post == nil {
		return ReportResult{}, nil
	}
	return s.classifier.SubmitSpam(ctx, c, post), nil
}

// ReportHam notifies the service of a false positive.
func (s *GatewayService) ReportHam(ctx context.Context, commentID int64) (ReportResult, error) {
	c, err := s.comments.Get(ctx, commentID)
	if errors.Is(err, ErrNotFound) {
		return ReportResult{}, nil
	}
	if err != nil {
		return ReportResult{}, err
	}
	post := s.resolvePost(ctx, c.PostID)
	if post == nil {
		return ReportResult{}, nil
	}
	return s.classifier.SubmitHam(ctx, c, post), nil
}

// Approve transitions a comment out of the spam queue and reports it as
// ham so the service can learn from the correction.
func (s *GatewayService) Approve(ctx context.Context, commentID int64) error {
	if err := s.comments.SetState(ctx, commentID, StateApproved); err != nil {
		return err
	}
	if _, err := s.ReportHam(ctx, commentID); err != nil {
		s.logger.Warn("Failed to report recovered comment as ham",
			zap.Int64("comment_id", commentID), zap.Error(err))
	}
	return nil
}

// MarkSpam transitions a comment into the spam queue and reports it.
func (s *GatewayService) MarkSpam(ctx context.Context, commentID int64) error {
	if err := s.comments.SetState(ctx, commentID, StateSpam); err != nil {
		return err
	}
	if _, err := s.ReportSpam(ctx, commentID); err != nil {
		s.logger.Warn("Failed to report comment as spam",
			zap.Int64("comment_id", commentID), zap.Error(err))
	}
	return nil
}

// VerifyKey verifies a credential. A valid key is persisted, an invalid
// key clears any stored credential, and a failed verification leaves the
// stored credential untouched.
func (s *GatewayService) VerifyKey(ctx context.Context, key string) (KeyStatus, error) {
	key = NormalizeCredential(key)
	if key == "" {
		if err := s.comments.DeleteOption(ctx, OptionAPIKey); err != nil && !errors.Is(err, ErrNotFound) {
			return KeyFailed, err
		}
		return KeyInvalid, nil
	}

	status := s.classifier.VerifyKey(ctx, key)
	switch status {
	case KeyValid:
		if err := s.comments.SetOption(ctx, OptionAPIKey, key); err != nil {
			return status, err
		}
	case KeyInvalid:
		if err := s.comments.DeleteOption(ctx, OptionAPIKey); err != nil && !errors.Is(err, ErrNotFound) {
			return status, err
		}
	}
	return status, nil
}

// VerifyStored verifies the stored credential. When none is stored, a
// sentinel probe distinguishes a connectivity problem (KeyFailed) from
// a missing credential (KeyInvalid with ErrNoCredential).
func (s *GatewayService) VerifyStored(ctx context.Context) (KeyStatus, error) {
	key, err := s.comments.GetOption(ctx, OptionAPIKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return KeyFailed, err
	}
	if key == "" {
		if s.classifier.VerifyKey(ctx, sentinelProbeKey) == KeyFailed {
			return KeyFailed, nil
		}
		return KeyInvalid, ErrNoCredential
	}
	return s.VerifyKey(ctx, key)
}

// DeleteAllSpam removes every spam comment submitted before the cutoff.
func (s *GatewayService) DeleteAllSpam(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.comments.DeleteSpamBefore(ctx, cutoff)
}

// Stats returns the cumulative and live spam counts.
func (s *GatewayService) Stats(ctx context.Context) (*Stats, error) {
	inQueue, err := s.comments.CountByState(ctx, StateSpam)
	if err != nil {
		return nil, err
	}
	pending, err := s.comments.CountByState(ctx, StatePending)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalCaught: s.spamCount(ctx),
		InQueue:     inQueue,
		Pending:     pending,
	}, nil
}

func (s *GatewayService) resolvePost(ctx context.Context, postID int64) *Post {
	post, err := s.posts.Get(ctx, postID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Warn("Failed to resolve post", zap.Int64("post_id", postID), zap.Error(err))
		return nil
	}
	return post
}

// shouldDiscard implements the stale-post discard policy: primary
// comment type only, post last edited more than discardAge ago, and the
// discard option enabled.
func (s *GatewayService) shouldDiscard(ctx context.Context, c *Comment, post *Post) bool {
	if c.Type != TypeComment {
		return false
	}
	if post == nil || post.ModifiedAt.IsZero() {
		return false
	}
	if s.now().Sub(post.ModifiedAt) <= s.discardAge {
		return false
	}
	return s.discardEnabled(ctx)
}

func (s *GatewayService) discardEnabled(ctx context.Context) bool {
	v, err := s.comments.GetOption(ctx, OptionDiscardOldPostSpam)
	if errors.Is(err, ErrNotFound) {
		return s.discardDefault
	}
	if err != nil {
		s.logger.Warn("Failed to read discard option", zap.Error(err))
		return s.discardDefault
	}
	return v == "true"
}

func (s *GatewayService) spamCount(ctx context.Context) int64 {
	v, err := s.comments.GetOption(ctx, OptionSpamCount)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (s *GatewayService) incrementSpamCount(ctx context.Context) {
	n := s.spamCount(ctx) + 1
	if err := s.comments.SetOption(ctx, OptionSpamCount, strconv.FormatInt(n, 10)); err != nil {
		s.logger.Warn("Failed to update spam counter", zap.Error(err))
	}
}

// sweep is the opportunistic retention pass piggybacked on request
// traffic: purge old spam, then maybe compact.
func (s *GatewayService) sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.comments.DeleteSpamBefore(ctx, cutoff)
	if err != nil {
		s.logger.Warn("Retention sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Debug("Purged expired spam", zap.Int64("deleted", deleted))
	}
	if s.policy != nil && s.policy.ShouldCompact() {
		if err := s.comments.Compact(ctx); err != nil {
			s.logger.Warn("Store compaction failed", zap.Error(err))
		}
	}
}
