package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/core"
)

// MySQLStore is a MySQL implementation of the CommentStore interface.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore connects to MySQL and initializes the schema.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS comments (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			post_id BIGINT NOT NULL,
			author VARCHAR(255),
			author_email VARCHAR(255),
			author_url VARCHAR(255),
			author_ip VARCHAR(64),
			user_agent VARCHAR(255),
			referrer VARCHAR(255),
			submitted_at DATETIME NOT NULL,
			content TEXT,
			state VARCHAR(16) NOT NULL,
			type VARCHAR(16) NOT NULL,
			INDEX idx_comments_state (state),
			INDEX idx_comments_submitted_at (submitted_at)
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id BIGINT PRIMARY KEY,
			published_at DATETIME,
			modified_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS options (
			name VARCHAR(191) PRIMARY KEY,
			value TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// Insert persists a new comment and assigns its ID.
func (s *MySQLStore) Insert(ctx context.Context, c *core.Comment) error {
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
func (s *MySQLStore) Get(ctx context.Context, id int64) (*core.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, author, author_email, author_url, author_ip,
			user_agent, referrer, submitted_at, content, state, type
		FROM comments WHERE id = ?
	`, id)
	return scanComment(row)
}

// SetState transitions a comment's moderation state.
func (s *MySQLStore) SetState(ctx context.Context, id int64, state core.ModerationState) error {
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
func (s *MySQLStore) ListByState(ctx context.Context, state core.ModerationState) ([]*core.Comment, error) {
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
func (s *MySQLStore) CountByState(ctx context.Context, state core.ModerationState) (int64, error) {
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
func (s *MySQLStore) DeleteSpamBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM comments WHERE state = ? AND submitted_at < ?
	`, string(core.StateSpam), cutoff.UTC().Format(storeTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired spam: %w", err)
	}
	return res.RowsAffected()
}

// Compact runs OPTIMIZE TABLE on the comment table.
func (s *MySQLStore) Compact(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `OPTIMIZE TABLE comments`); err != nil {
		return fmt.Errorf("failed to optimize comments table: %w", err)
	}
	s.logger.Debug("Compacted MySQL store")
	return nil
}

// GetOption retrieves a persisted option value.
func (s *MySQLStore) GetOption(ctx context.Context, key string) (string, error) {
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
func (s *MySQLStore) SetOption(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO options (name, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write option: %w", err)
	}
	return nil
}

// DeleteOption removes a persisted option.
func (s *MySQLStore) DeleteOption(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM options WHERE name = ?
	`, key)
	if err != nil {
		return fmt.Errorf("failed to delete option: %w", err)
	}
	return nil
}

// PutPost stores or refreshes a post row.
func (s *MySQLStore) PutPost(ctx context.Context, p *core.Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, published_at, modified_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE published_at = VALUES(published_at), modified_at = VALUES(modified_at)
	`, p.ID, p.PublishedAt.UTC().Format(storeTimeLayout), p.ModifiedAt.UTC().Format(storeTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to write post: %w", err)
	}
	return nil
}

// Posts exposes the post table as a core.PostStore.
func (s *MySQLStore) Posts() core.PostStore {
	return mysqlPosts{s}
}

type mysqlPosts struct {
	s *MySQLStore
}

func (p mysqlPosts) Get(ctx context.Context, id int64) (*core.Post, error) {
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
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
