// Package tagindex maintains the reverse lookup from tag and genre values
// to candidate clip identifiers.
package tagindex

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/soundscene/pulse/internal/domain/model"
)

// Index maps tags and genres to the clips carrying them. It mirrors clip
// store state: a clip appears under tag T iff its tag set contains T and the
// clip is not soft-deleted. Every mutation that touches a clip's tags or
// genre must go through AddClip/RemoveClip to keep the mapping consistent.
type Index struct {
	mu      sync.RWMutex
	byTag   map[string]map[string]struct{}
	byGenre map[model.Genre]map[string]struct{}
	// tagsOf remembers each clip's indexed tags so a re-add can unindex
	// tags that were removed upstream.
	tagsOf map[string]indexedClip
	strict bool
}

type indexedClip struct {
	tags  []string
	genre model.Genre
}

// Option applies a configuration option to the Index.
type Option func(*Index)

// WithStrictTags makes Query fail with ErrUnknownTag for tags that were
// never indexed, instead of returning an empty result.
func WithStrictTags() Option {
	return func(i *Index) {
		i.strict = true
	}
}

// New constructs an empty Index.
func New(opts ...Option) *Index {
	i := &Index{
		byTag:   make(map[string]map[string]struct{}),
		byGenre: make(map[model.Genre]map[string]struct{}),
		tagsOf:  make(map[string]indexedClip),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// AddClip indexes a clip under its normalized tags and its genre. Calling it
// again for a known clip re-indexes: tags dropped upstream are removed here.
// Soft-deleted clips are unindexed instead.
func (i *Index) AddClip(ctx context.Context, clip *model.Clip) {
	if clip.Deleted() {
		i.RemoveClip(ctx, clip.ID)
		return
	}

	tags := clip.NormalizedTags()

	i.mu.Lock()
	defer i.mu.Unlock()

	i.dropLocked(clip.ID)

	for _, t := range tags {
		set, ok := i.byTag[t]
		if !ok {
			set = make(map[string]struct{})
			i.byTag[t] = set
		}
		set[clip.ID] = struct{}{}
	}

	set, ok := i.byGenre[clip.Genre]
	if !ok {
		set = make(map[string]struct{})
		i.byGenre[clip.Genre] = set
	}
	set[clip.ID] = struct{}{}

	i.tagsOf[clip.ID] = indexedClip{tags: tags, genre: clip.Genre}
}

// RemoveClip unindexes a clip from every tag and genre bucket.
func (i *Index) RemoveClip(ctx context.Context, clipID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dropLocked(clipID)
}

// dropLocked removes every index entry for clipID. Caller holds i.mu.
func (i *Index) dropLocked(clipID string) {
	prev, ok := i.tagsOf[clipID]
	if !ok {
		return
	}
	for _, t := range prev.tags {
		if set, ok := i.byTag[t]; ok {
			delete(set, clipID)
			if len(set) == 0 {
				delete(i.byTag, t)
			}
		}
	}
	if set, ok := i.byGenre[prev.genre]; ok {
		delete(set, clipID)
		if len(set) == 0 {
			delete(i.byGenre, prev.genre)
		}
	}
	delete(i.tagsOf, clipID)
}

// Query returns the identifiers of clips carrying the given tag, optionally
// narrowed to a genre. An empty tag with a genre set queries by genre alone;
// both empty returns every indexed clip. Results are sorted for stable
// iteration. In strict mode an unknown tag yields ErrUnknownTag; otherwise
// the result is simply empty.
func (i *Index) Query(ctx context.Context, tag string, genre model.Genre) ([]string, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))

	i.mu.RLock()
	defer i.mu.RUnlock()

	var base map[string]struct{}
	switch {
	case tag != "":
		set, ok := i.byTag[tag]
		if !ok {
			if i.strict {
				return nil, ErrUnknownTag
			}
			return []string{}, nil
		}
		base = set
	case genre != "":
		base = i.byGenre[genre]
	default:
		out := make([]string, 0, len(i.tagsOf))
		for id := range i.tagsOf {
			out = append(out, id)
		}
		sort.Strings(out)
		return out, nil
	}

	out := make([]string, 0, len(base))
	for id := range base {
		if tag != "" && genre != "" {
			if g, ok := i.byGenre[genre]; !ok {
				continue
			} else if _, ok := g[id]; !ok {
				continue
			}
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Tags returns every indexed tag, sorted.
func (i *Index) Tags(ctx context.Context) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]string, 0, len(i.byTag))
	for t := range i.byTag {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of indexed clips.
func (i *Index) Size(ctx context.Context) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.tagsOf)
}
