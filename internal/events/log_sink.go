// Package events provides pipeline event sinks for collaborators such
// as notification hooks.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/core"
)

// LogSink records pipeline events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new logging event sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// SpamCaught implements core.EventSink.
func (s *LogSink) SpamCaught(ctx context.Context, c *core.Comment) {
	s.logger.Info("Spam caught",
		zap.Int64("post_id", c.PostID),
		zap.String("author_ip", c.AuthorIP),
		zap.String("comment_type", string(c.Type)))
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []core.EventSink

// SpamCaught implements core.EventSink.
func (m MultiSink) SpamCaught(ctx context.Context, c *core.Comment) {
	for _, s := range m {
		s.SpamCaught(ctx, c)
	}
}
