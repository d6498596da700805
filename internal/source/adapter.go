package source

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/kidtube/kidtube/internal/httpx"
)

// LanguagePicker supplies the currently enabled display languages. The
// adapter picks one at random per query for variety.
type LanguagePicker func() []string

// Adapter fetches and caches short videos per category from a set of
// interchangeable search mirrors
type Adapter struct {
	client     *httpx.Client
	mirrors    []string
	maxResults int
	languages  LanguagePicker
	logger     *slog.Logger

	mu         sync.Mutex
	preferred  int // mirror index that last succeeded, tried first
	cache      map[string][]VideoRecord
	pageTokens map[string]string
	loading    map[string]bool
	lastErr    error
}

// AdapterConfig configures an Adapter
type AdapterConfig struct {
	Client     *httpx.Client
	Mirrors    []string
	MaxResults int
	Languages  LanguagePicker
	Logger     *slog.Logger
}

// NewAdapter creates a source adapter
func NewAdapter(cfg AdapterConfig) *Adapter {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 15
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = httpx.NewClient(httpx.ClientConfig{})
	}

	return &Adapter{
		client:     cfg.Client,
		mirrors:    cfg.Mirrors,
		maxResults: cfg.MaxResults,
		languages:  cfg.Languages,
		logger:     cfg.Logger,
		cache:      make(map[string][]VideoRecord),
		pageTokens: make(map[string]string),
		loading:    make(map[string]bool),
	}
}

// Fetch returns videos for a category. With loadMore false and a warm cache
// it returns the cache without a network call; otherwise it queries the
// mirrors, appending to the cache on loadMore and replacing it otherwise.
func (a *Adapter) Fetch(ctx context.Context, categoryID string, loadMore bool) ([]VideoRecord, error) {
	cat, ok := CategoryByID(categoryID)
	if !ok {
		return nil, &InvalidCategoryError{ID: categoryID}
	}

	a.mu.Lock()
	if !loadMore && len(a.cache[categoryID]) > 0 {
		cached := cloneRecords(a.cache[categoryID])
		a.mu.Unlock()
		return cached, nil
	}
	if a.loading[categoryID] {
		a.mu.Unlock()
		return nil, ErrFetchInProgress
	}
	a.loading[categoryID] = true
	pageToken := ""
	if loadMore {
		pageToken = a.pageTokens[categoryID]
	}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.loading[categoryID] = false
		a.mu.Unlock()
	}()

	query := a.buildQuery(cat)
	resp, err := a.search(ctx, query, pageToken)
	if err != nil {
		return nil, err
	}

	records := make([]VideoRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.usable() {
			records = append(records, item.toRecord(categoryID))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pageTokens[categoryID] = resp.NextPageToken
	if loadMore {
		// No dedup here: the feed assembler owns identity across categories
		a.cache[categoryID] = append(a.cache[categoryID], records...)
	} else {
		a.cache[categoryID] = records
	}

	return cloneRecords(a.cache[categoryID]), nil
}

// buildQuery picks a random query template for the category and fills the
// {lang} placeholder with a random enabled language
func (a *Adapter) buildQuery(cat Category) string {
	template := cat.Queries[rand.IntN(len(cat.Queries))]

	lang := "english"
	if a.languages != nil {
		if langs := a.languages(); len(langs) > 0 {
			lang = langs[rand.IntN(len(langs))]
		}
	}

	return strings.ReplaceAll(template, "{lang}", lang)
}

// search tries the mirrors in round-robin order starting from the one that
// last succeeded. Timeouts and non-success statuses advance to the next
// mirror; only when every mirror fails does the call error out.
func (a *Adapter) search(ctx context.Context, query, pageToken string) (*searchResponse, error) {
	params := map[string]string{
		"q":          query,
		"type":       "video",
		"duration":   "short",
		"embeddable": "true",
		"safe":       "strict",
		"max":        strconv.Itoa(a.maxResults),
	}
	if pageToken != "" {
		params["page"] = pageToken
	}

	a.mu.Lock()
	start := a.preferred
	mirrors := a.mirrors
	a.mu.Unlock()

	var mirrorErrs []error
	for i := range mirrors {
		idx := (start + i) % len(mirrors)
		endpoint := strings.TrimSuffix(mirrors[idx], "/") + "/search"

		var resp searchResponse
		err := a.client.GetJSON(ctx, endpoint, params, &resp)
		if err == nil {
			a.mu.Lock()
			a.preferred = idx
			a.lastErr = nil
			a.mu.Unlock()
			return &resp, nil
		}

		a.logger.Warn("mirror failed", "mirror", mirrors[idx], "error", err)
		mirrorErrs = append(mirrorErrs, err)

		if ctx.Err() != nil {
			break
		}
	}

	unavailable := &SourceUnavailableError{Query: query, MirrorErrors: mirrorErrs}
	a.mu.Lock()
	a.lastErr = unavailable
	a.mu.Unlock()
	return nil, unavailable
}

// Cached returns the cached videos for a category, if any
func (a *Adapter) Cached(categoryID string) []VideoRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneRecords(a.cache[categoryID])
}

// ClearCache drops cached videos and page tokens for a category, or for
// every category when id is empty. Called when settings are saved so the
// new configuration takes effect.
func (a *Adapter) ClearCache(categoryID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if categoryID == "" {
		a.cache = make(map[string][]VideoRecord)
		a.pageTokens = make(map[string]string)
		return
	}
	delete(a.cache, categoryID)
	delete(a.pageTokens, categoryID)
}

// LastError returns the most recent fetch failure; any success clears it
func (a *Adapter) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func cloneRecords(in []VideoRecord) []VideoRecord {
	if in == nil {
		return nil
	}
	out := make([]VideoRecord, len(in))
	copy(out, in)
	return out
}
