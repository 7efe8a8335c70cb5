package clipstore

import (
	"context"
	"sync"
	"time"

	"github.com/soundscene/pulse/internal/domain/model"
)

// MemoryStore implements Store in process memory. Counter increments are
// serialized by the store mutex, matching the atomicity contract of the
// SQLite implementation. Used for tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	clips map[string]model.Clip
}

// NewMemoryStore creates an empty in-memory clip store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clips: make(map[string]model.Clip)}
}

// Put inserts or replaces a clip's metadata, preserving existing counters.
func (s *MemoryStore) Put(ctx context.Context, clip *model.Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *clip
	stored.Tags = clip.NormalizedTags()
	if prev, ok := s.clips[clip.ID]; ok {
		stored.LikeCount = prev.LikeCount
		stored.CommentCount = prev.CommentCount
		stored.ShareCount = prev.ShareCount
	}
	s.clips[clip.ID] = stored
	return nil
}

// Get returns one live clip by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (model.Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clip, ok := s.clips[id]
	if !ok || clip.Deleted() {
		return model.Clip{}, ErrNotFound
	}
	return clip, nil
}

// GetMany returns live clips for the given ids, skipping unknown ones.
func (s *MemoryStore) GetMany(ctx context.Context, ids []string) ([]model.Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Clip, 0, len(ids))
	for _, id := range ids {
		if clip, ok := s.clips[id]; ok && !clip.Deleted() {
			out = append(out, clip)
		}
	}
	return out, nil
}

// List returns every live clip.
func (s *MemoryStore) List(ctx context.Context) ([]model.Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Clip, 0, len(s.clips))
	for _, clip := range s.clips {
		if !clip.Deleted() {
			out = append(out, clip)
		}
	}
	return out, nil
}

// Increment bumps one counter under the store mutex.
func (s *MemoryStore) Increment(ctx context.Context, clipID string, kind model.EngagementKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[clipID]
	if !ok || clip.Deleted() {
		return ErrNotFound
	}
	switch kind {
	case model.KindLike:
		clip.LikeCount++
	case model.KindComment:
		clip.CommentCount++
	case model.KindShare:
		clip.ShareCount++
	default:
		return model.ErrUnknownKind
	}
	s.clips[clipID] = clip
	return nil
}

// SetCounts overwrites a clip's counters.
func (s *MemoryStore) SetCounts(ctx context.Context, clipID string, likes, comments, shares int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[clipID]
	if !ok {
		return ErrNotFound
	}
	clip.LikeCount = likes
	clip.CommentCount = comments
	clip.ShareCount = shares
	s.clips[clipID] = clip
	return nil
}

// MarkDeleted records an upstream soft delete.
func (s *MemoryStore) MarkDeleted(ctx context.Context, clipID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[clipID]
	if !ok || clip.Deleted() {
		return ErrNotFound
	}
	ts := at
	clip.DeletedAt = &ts
	s.clips[clipID] = clip
	return nil
}

// Count returns the number of live clips.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, clip := range s.clips {
		if !clip.Deleted() {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
