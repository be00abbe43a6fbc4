package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/core"
)

const storeTimeLayout = "2006-01-02 15:04:05"

// SQLiteStore is a SQLite implementation of the CommentStore interface.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and if necessary initializes) a SQLite-backed
// comment store.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id INTEGER NOT NULL,
			author TEXT,
			author_email TEXT,
			author_url TEXT,
			author_ip TEXT,
			user_agent TEXT,
			referrer TEXT,
			submitted_at TIMESTAMP NOT NULL,
			content TEXT,
			state TEXT NOT NULL,
			type TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_state ON comments(state)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_submitted_at ON comments(submitted_at)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY,
			published_at TIMESTAMP,
			modified_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS options (
			name TEXT PRIMARY KEY,
			value TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Insert persists a new comment and assigns its ID.
func (s *SQLiteStore) Insert(ctx context.Context, c *core.Comment) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (post_id, author, author_email, author_url, author_ip,
			user_agent, referrer, submitted_at, content, state, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.PostID, c.Author, c.AuthorEmail, c.AuthorURL, c.AuthorIP,
		c.UserAgent, c.Referrer, c.SubmittedAt.UTC().Format(storeTimeLayout),
		c.Content, string(c.State), string(c.Type))
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted comment id: %w", err)
	}
	c.ID = id
	return nil
}

// Get retrieves a comment by ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*core.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, author, author_email, author_url, author_ip,
			user_agent, referrer, submitted_at, content, state, type
		FROM comments WHERE id = ?
	`, id)
	return scanComment(row)
}

// SetState transitions a comment's moderation state.
func (s *SQLiteStore) SetState(ctx context.Context, id int64, state core.ModerationState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE comments SET state = ? WHERE id = ?
	`, string(state), id)
	if err != nil {
		return fmt.Errorf("failed to update comment state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListByState returns all comments currently in the given state.
func (s *SQLiteStore) ListByState(ctx context.Context, state core.ModerationState) ([]*core.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, author, author_email, author_url, author_ip,
			user_agent, referrer, submitted_at, content, state, type
		FROM comments WHERE state = ? ORDER BY submitted_at
	`, string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var out []*core.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountByState counts comments in the given state.
func (s *SQLiteStore) CountByState(ctx context.Context, state core.ModerationState) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(id) FROM comments WHERE state = ?
	`, string(state)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return n, nil
}

// DeleteSpamBefore removes spam comments submitted before the cutoff.
func (s *SQLiteStore) DeleteSpamBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM comments WHERE state = ? AND submitted_at < ?
	`, string(core.StateSpam), cutoff.UTC().Format(storeTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired spam: %w", err)
	}
	return res.RowsAffected()
}

// Compact reclaims space freed by purged spam.
func (s *SQLiteStore) Compact(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	s.logger.Debug("Compacted SQLite store")
	return nil
}

// GetOption retrieves a persisted option value.
func (s *SQLiteStore) GetOption(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM options WHERE name = ?
	`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read option: %w", err)
	}
	return v, nil
}

// SetOption stores a persisted option value.
func (s *SQLiteStore) SetOption(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO options (name, value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write option: %w", err)
	}
	return nil
}

// DeleteOption removes a persisted option.
func (s *SQLiteStore) DeleteOption(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM options WHERE name = ?
	`, key)
	if err != nil {
		return fmt.Errorf("failed to delete option: %w", err)
	}
	return nil
}

// PutPost stores or refreshes a post row.
func (s *SQLiteStore) PutPost(ctx context.Context, p *core.Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO posts (id, published_at, modified_at) VALUES (?, ?, ?)
	`, p.ID, p.PublishedAt.UTC().Format(storeTimeLayout), p.ModifiedAt.UTC().Format(storeTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to write post: %w", err)
	}
	return nil
}

// Posts exposes the post table as a core.PostStore.
func (s *SQLiteStore) Posts() core.PostStore {
	return sqlitePosts{s}
}

type sqlitePosts struct {
	s *SQLiteStore
}

func (p sqlitePosts) Get(ctx context.Context, id int64) (*core.Post, error) {
	var published, modified string
	err := p.s.db.QueryRowContext(ctx, `
		SELECT published_at, modified_at FROM posts WHERE id = ?
	`, id).Scan(&published, &modified)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read post: %w", err)
	}

	post := &core.Post{ID: id}
	if post.PublishedAt, err = time.Parse(storeTimeLayout, published); err != nil {
		return nil, fmt.Errorf("failed to parse published_at: %w", err)
	}
	if post.ModifiedAt, err = time.Parse(storeTimeLayout, modified); err != nil {
		return nil, fmt.Errorf("failed to parse modified_at: %w", err)
	}
	return post, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner) (*core.Comment, error) {
	var c core.Comment
	var submittedAt, state, ctype string
	err := row.Scan(&c.ID, &c.PostID, &c.Author, &c.AuthorEmail, &c.AuthorURL,
		&c.AuthorIP, &c.UserAgent, &c.Referrer, &submittedAt, &c.Content, &state, &ctype)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}
	if c.SubmittedAt, err = time.Parse(storeTimeLayout, submittedAt); err != nil {
		return nil, fmt.Errorf("failed to parse submitted_at: %w", err)
	}
	c.State = core.ModerationState(state)
	c.Type = core.CommentType(ctype)
	return &c, nil
}
