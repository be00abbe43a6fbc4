// Package antispam speaks the verdict protocol of the remote
// classification service: comment-check, submit-spam, submit-ham and
// verify-key over the raw transport client.
package antispam

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/core"
	"github.com/mikey/comment-spam-gateway/internal/transport"
)

// Endpoint paths, prefixed with the protocol version at call time.
const (
	endpointCommentCheck = "comment-check"
	endpointSubmitSpam   = "submit-spam"
	endpointSubmitHam    = "submit-ham"
	endpointVerifyKey    = "verify-key"
)

// wire is the transport surface the protocol client depends on.
type wire interface {
	Post(ctx context.Context, host, path string, fields map[string]string) (*transport.RawResponse, error)
}

// Client implements core.Classifier against the remote service.
type Client struct {
	transport       wire
	key             string
	serviceDomain   string
	protocolVersion string
	blog            string
	logger          *zap.Logger
}

// NewClient creates a protocol client. key routes classification
// requests to <key>.<serviceDomain>; verify-key goes to the bare
// service domain so it can validate keys that are not yet active.
func NewClient(
	tc *transport.Client,
	key string,
	serviceDomain string,
	protocolVersion string,
	blog string,
	logger *zap.Logger,
) *Client {
	return &Client{
		transport:       tc,
		key:             key,
		serviceDomain:   serviceDomain,
		protocolVersion: protocolVersion,
		blog:            blog,
		logger:          logger,
	}
}

func (c *Client) apiHost() string {
	return c.key + "." + c.serviceDomain
}

func (c *Client) path(endpoint string) string {
	return "/" + c.protocolVersion + "/" + endpoint
}

// CheckComment classifies one comment. A body of exactly "true" is
// spam, any other definite content is ham, an empty or malformed reply
// is unknown, and a transport failure is unreachable.
func (c *Client) CheckComment(ctx context.Context, comment *core.Comment, post *core.Post, origin *core.OriginContext) core.Verdict {
	fields := CheckFields(comment, post, origin, c.blog)
	resp, err := c.transport.Post(ctx, c.apiHost(), c.path(endpointCommentCheck), fields)
	if err != nil {
		c.logger.Warn("Classification service unreachable", zap.Error(err))
		return core.VerdictUnreachable
	}

	switch body := strings.TrimSpace(resp.Body); {
	case body == "true":
		return core.VerdictSpam
	case body == "":
		return core.VerdictUnknown
	default:
		return core.VerdictHam
	}
}

// SubmitSpam reports a confirmed spam comment. The response body is not
// interpreted; only transport failure is observable.
func (c *Client) SubmitSpam(ctx context.Context, comment *core.Comment, post *core.Post) core.ReportResult {
	return c.submit(ctx, endpointSubmitSpam, comment, post)
}

// SubmitHam reports a false positive.
func (c *Client) SubmitHam(ctx context.Context, comment *core.Comment, post *core.Post) core.ReportResult {
	return c.submit(ctx, endpointSubmitHam, comment, post)
}

func (c *Client) submit(ctx context.Context, endpoint string, comment *core.Comment, post *core.Post) core.ReportResult {
	fields := ReportFields(comment, post, c.blog)
	_, err := c.transport.Post(ctx, c.apiHost(), c.path(endpoint), fields)
	if err != nil {
		c.logger.Warn("Feedback report not delivered",
			zap.String("endpoint", endpoint),
			zap.Int64("comment_id", comment.ID),
			zap.Error(err))
	}
	return core.ReportResult{Submitted: true, Delivered: err == nil}
}

// VerifyKey validates a credential. Only the exact literals "valid" and
// "invalid" are definite answers; everything else, including transport
// failure, is a failed verification rather than a statement about the
// key.
func (c *Client) VerifyKey(ctx context.Context, key string) core.KeyStatus {
	fields := map[string]string{
		"key":  key,
		"blog": c.blog,
	}
	resp, err := c.transport.Post(ctx, c.serviceDomain, c.path(endpointVerifyKey), fields)
	if err != nil {
		c.logger.Warn("Key verification unreachable", zap.Error(err))
		return core.KeyFailed
	}

	switch strings.TrimSpace(resp.Body) {
	case "valid":
		return core.KeyValid
	case "invalid":
		return core.KeyInvalid
	default:
		return core.KeyFailed
	}
}
