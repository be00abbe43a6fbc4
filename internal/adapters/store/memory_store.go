// Package store provides CommentStore implementations backed by
// memory, SQLite and MySQL.
package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/core"
)

// MemoryStore is an in-memory implementation of the CommentStore and
// PostStore interfaces, used for tests and single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	comments map[int64]*core.Comment
	posts    map[int64]*core.Post
	options  map[string]string
	nextID   int64
	logger   *zap.Logger
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		comments: make(map[int64]*core.Comment),
		posts:    make(map[int64]*core.Post),
		options:  make(map[string]string),
		nextID:   1,
		logger:   logger,
	}
}

// Insert persists a new comment and assigns its ID.
func (s *MemoryStore) Insert(ctx context.Context, c *core.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextID
	s.nextID++
	clone := *c
	s.comments[c.ID] = &clone
	return nil
}

// Get retrieves a comment by ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*core.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

// SetState transitions a comment's moderation state.
func (s *MemoryStore) SetState(ctx context.Context, id int64, state core.ModerationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return core.ErrNotFound
	}
	c.State = state
	return nil
}

// ListByState returns all comments currently in the given state.
func (s *MemoryStore) ListByState(ctx context.Context, state core.ModerationState) ([]*core.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Comment
	for _, c := range s.comments {
		if c.State == state {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

// CountByState counts comments in the given state.
func (s *MemoryStore) CountByState(ctx context.Context, state core.ModerationState) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, c := range s.comments {
		if c.State == state {
			n++
		}
	}
	return n, nil
}

// DeleteSpamBefore removes spam comments submitted before the cutoff.
func (s *MemoryStore) DeleteSpamBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, c := range s.comments {
		if c.State == core.StateSpam && c.SubmittedAt.Before(cutoff) {
			delete(s.comments, id)
			deleted++
		}
	}
	return deleted, nil
}

// Compact is a no-op for the in-memory store.
func (s *MemoryStore) Compact(ctx context.Context) error {
	return nil
}

// GetOption retrieves a persisted option value.
func (s *MemoryStore) GetOption(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.options[key]
	if !ok {
		return "", core.ErrNotFound
	}
	return v, nil
}

// SetOption stores a persisted option value.
func (s *MemoryStore) SetOption(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.options[key] = value
	return nil
}

// DeleteOption removes a persisted option.
func (s *MemoryStore) DeleteOption(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.options, key)
	return nil
}

// PutPost stores a post so the pipeline can resolve article context.
func (s *MemoryStore) PutPost(ctx context.Context, p *core.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *p
	s.posts[p.ID] = &clone
}

// GetPost resolves a post by ID.
func (s *MemoryStore) GetPost(ctx context.Context, id int64) (*core.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

// Posts exposes the store's post table as a core.PostStore.
func (s *MemoryStore) Posts() core.PostStore {
	return memoryPosts{s}
}

type memoryPosts struct {
	s *MemoryStore
}

func (p memoryPosts) Get(ctx context.Context, id int64) (*core.Post, error) {
	return p.s.GetPost(ctx, id)
}
