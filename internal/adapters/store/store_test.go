package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/core"
)

// commentStore is the full surface under test, shared by every backend.
type commentStore interface {
	core.CommentStore
	Posts() core.PostStore
}

// testBackends builds one fresh store per backend. Second-precision
// timestamps only: the SQL backends round-trip through a text column.
func testBackends(t *testing.T) map[string]commentStore {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "gateway.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]commentStore{
		"memory": NewMemoryStore(zap.NewNop()),
		"sqlite": sqlite,
	}
}

func storeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func TestInsertAndGet(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			submitted := storeTime(time.Now())
			c := &core.Comment{
				PostID:      42,
				Author:      "alice",
				AuthorEmail: "alice@example.com",
				AuthorURL:   "http://example.com/alice",
				AuthorIP:    "198.51.100.4",
				UserAgent:   "Mozilla/5.0",
				Referrer:    "http://example.com/post-42",
				SubmittedAt: submitted,
				Content:     "great post",
				State:       core.StatePending,
				Type:        core.TypeComment,
			}
			require.NoError(t, s.Insert(ctx, c))
			require.NotZero(t, c.ID)

			got, err := s.Get(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, c.ID, got.ID)
			assert.Equal(t, "alice", got.Author)
			assert.Equal(t, core.StatePending, got.State)
			assert.Equal(t, core.TypeComment, got.Type)
			assert.True(t, submitted.Equal(got.SubmittedAt))

			_, err = s.Get(ctx, c.ID+1000)
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestSetState(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &core.Comment{PostID: 1, SubmittedAt: storeTime(time.Now()), State: core.StatePending, Type: core.TypeComment}
			require.NoError(t, s.Insert(ctx, c))

			require.NoError(t, s.SetState(ctx, c.ID, core.StateSpam))
			got, err := s.Get(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, core.StateSpam, got.State)

			assert.ErrorIs(t, s.SetState(ctx, c.ID+1000, core.StateSpam), core.ErrNotFound)
		})
	}
}

func TestListAndCountByState(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := storeTime(time.Now())
			for i, state := range []core.ModerationState{
				core.StatePending, core.StatePending, core.StateSpam, core.StateApproved,
			} {
				c := &core.Comment{
					PostID:      1,
					SubmittedAt: base.Add(time.Duration(i) * time.Second),
					State:       state,
					Type:        core.TypeComment,
				}
				require.NoError(t, s.Insert(ctx, c))
			}

			pending, err := s.ListByState(ctx, core.StatePending)
			require.NoError(t, err)
			assert.Len(t, pending, 2)

			n, err := s.CountByState(ctx, core.StateSpam)
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			n, err = s.CountByState(ctx, core.StateApproved)
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)
		})
	}
}

func TestDeleteSpamBefore(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cutoff := storeTime(time.Now())

			oldSpam := &core.Comment{PostID: 1, SubmittedAt: cutoff.Add(-time.Hour), State: core.StateSpam, Type: core.TypeComment}
			newSpam := &core.Comment{PostID: 1, SubmittedAt: cutoff.Add(time.Hour), State: core.StateSpam, Type: core.TypeComment}
			oldPending := &core.Comment{PostID: 1, SubmittedAt: cutoff.Add(-time.Hour), State: core.StatePending, Type: core.TypeComment}
			for _, c := range []*core.Comment{oldSpam, newSpam, oldPending} {
				require.NoError(t, s.Insert(ctx, c))
			}

			deleted, err := s.DeleteSpamBefore(ctx, cutoff)
			require.NoError(t, err)
			assert.EqualValues(t, 1, deleted)

			_, err = s.Get(ctx, oldSpam.ID)
			assert.ErrorIs(t, err, core.ErrNotFound)
			_, err = s.Get(ctx, newSpam.ID)
			assert.NoError(t, err)
			_, err = s.Get(ctx, oldPending.ID)
			assert.NoError(t, err, "only spam is subject to retention")

			require.NoError(t, s.Compact(ctx))
		})
	}
}

func TestOptions(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetOption(ctx, "api_key")
			assert.ErrorIs(t, err, core.ErrNotFound)

			require.NoError(t, s.SetOption(ctx, "api_key", "abc123"))
			v, err := s.GetOption(ctx, "api_key")
			require.NoError(t, err)
			assert.Equal(t, "abc123", v)

			// Overwrite.
			require.NoError(t, s.SetOption(ctx, "api_key", "def456"))
			v, err = s.GetOption(ctx, "api_key")
			require.NoError(t, err)
			assert.Equal(t, "def456", v)

			require.NoError(t, s.DeleteOption(ctx, "api_key"))
			_, err = s.GetOption(ctx, "api_key")
			assert.ErrorIs(t, err, core.ErrNotFound)

			// Deleting a missing option is not an error.
			assert.NoError(t, s.DeleteOption(ctx, "api_key"))
		})
	}
}

func TestPosts(t *testing.T) {
	ctx := context.Background()
	published := storeTime(time.Now().Add(-48 * time.Hour))
	modified := storeTime(time.Now().Add(-24 * time.Hour))

	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore(zap.NewNop())
		s.PutPost(ctx, &core.Post{ID: 42, PublishedAt: published, ModifiedAt: modified})

		got, err := s.Posts().Get(ctx, 42)
		require.NoError(t, err)
		assert.True(t, published.Equal(got.PublishedAt))
		assert.True(t, modified.Equal(got.ModifiedAt))

		_, err = s.Posts().Get(ctx, 99)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "gateway.db"), zap.NewNop())
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.PutPost(ctx, &core.Post{ID: 42, PublishedAt: published, ModifiedAt: modified}))

		got, err := s.Posts().Get(ctx, 42)
		require.NoError(t, err)
		assert.True(t, published.Equal(got.PublishedAt))
		assert.True(t, modified.Equal(got.ModifiedAt))

		// Refresh on edit.
		edited := modified.Add(time.Hour)
		require.NoError(t, s.PutPost(ctx, &core.Post{ID: 42, PublishedAt: published, ModifiedAt: edited}))
		got, err = s.Posts().Get(ctx, 42)
		require.NoError(t, err)
		assert.True(t, edited.Equal(got.ModifiedAt))

		_, err = s.Posts().Get(ctx, 99)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestInsertIsolation(t *testing.T) {
	// Mutating the caller's struct after insert must not leak into the
	// stored record.
	ctx := context.Background()
	s := NewMemoryStore(zap.NewNop())

	c := &core.Comment{PostID: 1, SubmittedAt: storeTime(time.Now()), State: core.StatePending, Type: core.TypeComment, Content: "original"}
	require.NoError(t, s.Insert(ctx, c))
	c.Content = "mutated"

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Content)
}
