package core

import (
	"context"
	"time"
)

// Classifier defines the interface to the remote classification service.
type Classifier interface {
	// CheckComment classifies one comment. Transport failure is
	// reported as VerdictUnreachable, never as an error.
	CheckComment(ctx context.Context, c *Comment, p *Post, origin *OriginContext) Verdict

	// SubmitSpam reports a human-confirmed spam comment back to the
	// service. Best effort.
	SubmitSpam(ctx context.Context, c *Comment, p *Post) ReportResult

	// SubmitHam reports a false positive back to the service. Best effort.
	SubmitHam(ctx context.Context, c *Comment, p *Post) ReportResult

	// VerifyKey checks a credential against the service.
	VerifyKey(ctx context.Context, key string) KeyStatus
}

// CommentStore is the narrow interface to the host platform's comment
// storage. Implementations own all durability concerns.
type CommentStore interface {
	// Insert persists a new comment and assigns its ID.
	Insert(ctx context.Context, c *Comment) error

	// Get retrieves a comment by ID, or ErrNotFound.
	Get(ctx context.Context, id int64) (*Comment, error)

	// SetState transitions a comment's moderation state.
	SetState(ctx context.Context, id int64, state ModerationState) error

	// ListByState returns all comments currently in the given state.
	ListByState(ctx context.Context, state ModerationState) ([]*Comment, error)

	// CountByState counts comments in the given state.
	CountByState(ctx context.Context, state ModerationState) (int64, error)

	// DeleteSpamBefore removes all spam comments submitted before the
	// cutoff and returns how many were removed.
	DeleteSpamBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Compact runs the store's storage compaction pass, if it has one.
	Compact(ctx context.Context) error

	// GetOption / SetOption / DeleteOption manage the persisted
	// key-value configuration surface (credential, spam counter, flags).
	GetOption(ctx context.Context, key string) (string, error)
	SetOption(ctx context.Context, key, value string) error
	DeleteOption(ctx context.Context, key string) error
}

// PostStore resolves the content item a comment is attached to.
type PostStore interface {
	// Get retrieves a post by ID, or ErrNotFound.
	Get(ctx context.Context, id int64) (*Post, error)
}

// EventSink receives pipeline events so collaborators (notification
// hooks, dashboards) can react without coupling to the pipeline.
type EventSink interface {
	// SpamCaught fires once per comment the pipeline marks as spam.
	SpamCaught(ctx context.Context, c *Comment)
}

// MaintenancePolicy decides when the opportunistic sweep should also
// run a storage compaction pass.
type MaintenancePolicy interface {
	ShouldCompact() bool
}
