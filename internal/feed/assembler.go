package feed

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kidtube/kidtube/internal/source"
)

// ErrEmptyFeed means assembly succeeded but yielded zero usable videos.
// The caller decides whether to present it as "no videos" or as an offline
// condition.
var ErrEmptyFeed = errors.New("no videos available after filtering")

// Feed is the mixed, shuffled sequence of videos the child scrolls through.
// Invariants, enforced at every mutation: no two records share an id, and no
// record belongs to a blocked channel.
type Feed []source.VideoRecord

// Contains reports whether the feed already holds a record with the given id
func (f Feed) Contains(id string) bool {
	for _, r := range f {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Fetcher is the slice of the source adapter the assembler needs
type Fetcher interface {
	Fetch(ctx context.Context, categoryID string, loadMore bool) ([]source.VideoRecord, error)
}

// Assembler builds and extends the mixed feed from several categories
type Assembler struct {
	fetcher           Fetcher
	enabledCategories func() []string
	isBlocked         func(channel string) bool
	initialCategories int
	logger            *slog.Logger
}

// AssemblerConfig configures an Assembler
type AssemblerConfig struct {
	Fetcher           Fetcher
	EnabledCategories func() []string
	IsBlocked         func(channel string) bool
	InitialCategories int
	Logger            *slog.Logger
}

// NewAssembler creates a feed assembler
func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.InitialCategories <= 0 {
		cfg.InitialCategories = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IsBlocked == nil {
		cfg.IsBlocked = func(string) bool { return false }
	}
	return &Assembler{
		fetcher:           cfg.Fetcher,
		enabledCategories: cfg.EnabledCategories,
		isBlocked:         cfg.IsBlocked,
		initialCategories: cfg.InitialCategories,
		logger:            cfg.Logger,
	}
}

// BuildInitial assembles a fresh mixed feed: up to initialCategories random
// enabled categories fetched concurrently, successes concatenated, blocked
// channels removed, duplicates dropped, and the whole collection shuffled.
// A failing category degrades the mix but never fails the build; only a
// wholly empty result is an error.
func (a *Assembler) BuildInitial(ctx context.Context) (Feed, error) {
	cats := pickN(a.enabledCategories(), a.initialCategories)

	results := make([][]source.VideoRecord, len(cats))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range cats {
		g.Go(func() error {
			records, err := a.fetcher.Fetch(gctx, cat, false)
			if err != nil {
				a.logger.Warn("category fetch failed during build", "category", cat, "error", err)
				return nil
			}
			mu.Lock()
			results[i] = records
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var mixed Feed
	for _, records := range results {
		for _, r := range records {
			if a.isBlocked(r.Channel) || mixed.Contains(r.ID) {
				continue
			}
			mixed = append(mixed, r)
		}
	}

	shuffle(mixed)

	if len(mixed) == 0 {
		return nil, ErrEmptyFeed
	}
	return mixed, nil
}

// Refill fetches one more page from a random enabled category and splices
// the genuinely new records into the feed after the cursor. The viewed
// prefix [0..cursor] is never touched; the unseen tail is reshuffled
// together with the fresh material.
func (a *Assembler) Refill(ctx context.Context, f Feed, cursor int) (Feed, error) {
	cats := a.enabledCategories()
	if len(cats) == 0 {
		return f, ErrEmptyFeed
	}
	cat := cats[rand.IntN(len(cats))]

	records, err := a.fetcher.Fetch(ctx, cat, true)
	if err != nil {
		return f, err
	}

	var fresh []source.VideoRecord
	seen := make(map[string]struct{})
	for _, r := range records {
		if a.isBlocked(r.Channel) || f.Contains(r.ID) {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		fresh = append(fresh, r)
	}

	if cursor >= len(f)-1 && len(fresh) == 0 {
		return f, nil
	}

	split := cursor + 1
	if split > len(f) {
		split = len(f)
	}

	merged := make(Feed, 0, len(f)+len(fresh))
	merged = append(merged, f[:split]...)

	upcoming := make(Feed, 0, len(f)-split+len(fresh))
	upcoming = append(upcoming, f[split:]...)
	upcoming = append(upcoming, fresh...)
	shuffle(upcoming)

	return append(merged, upcoming...), nil
}

// RemoveBlocked drops every entry whose channel is now blocked and clamps
// the cursor into bounds. The returned rebuild flag is set when the feed
// emptied out entirely and the caller should perform a full rebuild.
func (a *Assembler) RemoveBlocked(f Feed, cursor int) (Feed, int, bool) {
	kept := make(Feed, 0, len(f))
	for _, r := range f {
		if !a.isBlocked(r.Channel) {
			kept = append(kept, r)
		}
	}

	if len(kept) == 0 {
		return kept, 0, true
	}

	if cursor > len(kept)-1 {
		cursor = len(kept) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return kept, cursor, false
}

// pickN selects up to n distinct entries at random
func pickN(in []string, n int) []string {
	out := make([]string, len(in))
	copy(out, in)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// shuffle is an in-place Fisher-Yates shuffle
func shuffle(f Feed) {
	rand.Shuffle(len(f), func(i, j int) {
		f[i], f[j] = f[j], f[i]
	})
}
