package antispam

import (
	"strconv"

	"github.com/mikey/comment-spam-gateway/internal/core"
)

// articleDateLayout is the digits-only timestamp the service expects
// for the article_date field.
const articleDateLayout = "20060102150405"

// strippedEnvKeys are request environment variables that must never be
// transmitted.
var strippedEnvKeys = map[string]struct{}{
	"HTTP_COOKIE": {},
}

// CheckFields builds the check encoding: the full-context request used
// for live classification. It is a pure function of its inputs.
func CheckFields(c *core.Comment, p *core.Post, origin *core.OriginContext, blog string) map[string]string {
	fields := make(map[string]string, len(origin.Environ)+12)

	for k, v := range origin.Environ {
		if _, stripped := strippedEnvKeys[k]; stripped {
			continue
		}
		fields[k] = v
	}

	fields["blog"] = blog
	fields["user_ip"] = origin.RemoteAddr
	fields["user_agent"] = origin.UserAgent
	fields["referrer"] = origin.Referrer
	fields["article_date"] = articleDate(p)
	fields["comment_type"] = string(c.Type)
	fields["comment_author"] = c.Author
	fields["comment_author_email"] = c.AuthorEmail
	fields["comment_author_url"] = c.AuthorURL
	fields["comment_author_IP"] = c.AuthorIP
	fields["comment_content"] = c.Content
	fields["comment_post_ID"] = strconv.FormatInt(c.PostID, 10)

	return fields
}

// ReportFields builds the report encoding: the stored comment record
// plus site identity, with no environment dump. Used for submit-spam
// and submit-ham.
func ReportFields(c *core.Comment, p *core.Post, blog string) map[string]string {
	return map[string]string{
		"blog":                 blog,
		"article_date":         articleDate(p),
		"comment_post_ID":      strconv.FormatInt(c.PostID, 10),
		"comment_type":         string(c.Type),
		"comment_author":       c.Author,
		"comment_author_email": c.AuthorEmail,
		"comment_author_url":   c.AuthorURL,
		"comment_author_IP":    c.AuthorIP,
		"comment_agent":        c.UserAgent,
		"comment_content":      c.Content,
		"comment_date":         c.SubmittedAt.Format(articleDateLayout),
	}
}

// articleDate renders the post publish time, or empty when the post no
// longer resolves (deleted post).
func articleDate(p *core.Post) string {
	if p == nil || p.PublishedAt.IsZero() {
		return ""
	}
	return p.PublishedAt.Format(articleDateLayout)
}
