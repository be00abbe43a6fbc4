package core

import (
	"time"
)

// ModerationState is the lifecycle stage of a comment.
type ModerationState string

const (
	StatePending  ModerationState = "pending"
	StateApproved ModerationState = "approved"
	StateSpam     ModerationState = "spam"
)

// CommentType distinguishes ordinary comments from link notifications.
type CommentType string

const (
	TypeComment   CommentType = "comment"
	TypeTrackback CommentType = "trackback"
	TypePingback  CommentType = "pingback"
)

// Verdict is the outcome of classifying one comment.
type Verdict string

const (
	VerdictSpam Verdict = "spam"
	VerdictHam  Verdict = "ham"
	// VerdictUnknown means the service answered but the answer was
	// empty or unparseable.
	VerdictUnknown Verdict = "unknown"
	// VerdictUnreachable means the service could not be contacted.
	VerdictUnreachable Verdict = "unreachable"
)

// KeyStatus is the result of verifying a credential against the service.
type KeyStatus string

const (
	KeyValid   KeyStatus = "valid"
	KeyInvalid KeyStatus = "invalid"
	// KeyFailed means verification could not complete; it says nothing
	// about whether the key itself is good.
	KeyFailed KeyStatus = "failed"
)

// Comment represents a single submitted comment. The store owns the
// record; the gateway only reads it and requests state transitions.
type Comment struct {
	ID          int64
	PostID      int64
	Author      string
	AuthorEmail string
	AuthorURL   string
	AuthorIP    string
	UserAgent   string
	Referrer    string
	SubmittedAt time.Time
	Content     string
	State       ModerationState
	Type        CommentType
}

// Post is the content item a comment is attached to. Read-only here.
type Post struct {
	ID          int64
	PublishedAt time.Time
	ModifiedAt  time.Time
}

// OriginContext carries the request-origin environment of a live
// submission. Environ holds raw server variables; the wire encoding
// strips the cookie header before anything is transmitted.
type OriginContext struct {
	RemoteAddr string
	UserAgent  string
	Referrer   string
	Environ    map[string]string
}

// Submission is an inbound comment plus the context needed to classify it.
type Submission struct {
	Comment Comment
	Origin  OriginContext
	// RequestedState is the state the host platform would assign if
	// classification admits the comment (pending or approved).
	RequestedState ModerationState
}

// CheckResult describes what the pipeline did with one submission.
type CheckResult struct {
	CheckID   string
	Verdict   Verdict
	CommentID int64
	// Dropped is true when the discard policy terminated acceptance
	// entirely; nothing was persisted.
	Dropped   bool
	CheckedAt time.Time
}

// RecheckResult summarizes one pass over the pending queue.
type RecheckResult struct {
	Checked int
	Spammed int
	Failed  int
}

// ReportResult is the outcome of a fire-and-forget feedback call.
// Callers are free to discard it; tests assert on it.
type ReportResult struct {
	Submitted bool
	Delivered bool
}

// Stats is a snapshot of the spam counters.
type Stats struct {
	TotalCaught int64
	InQueue     int64
	Pending     int64
}
