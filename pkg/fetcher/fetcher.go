package fetcher

import (
	"context"
	"time"

	"xrecap/pkg/cache"
	"xrecap/pkg/config"
	errs "xrecap/pkg/errors"
	"xrecap/pkg/logger"
	"xrecap/pkg/socialdata"
)

// Client is the upstream API surface the fetcher needs.
type Client interface {
	FetchProfile(ctx context.Context, handle string) (*socialdata.Profile, error)
	Search(ctx context.Context, query, cursor string) (*socialdata.SearchResponse, error)
}

// Options control a single history fetch.
type Options struct {
	// StopDate, when set, stops the fetch once a whole page falls before it.
	// Posts older than StopDate are never added to the collection.
	StopDate time.Time
	// MaxPages overrides the computed page ceiling when positive and lower.
	MaxPages int
	// ForceRefresh drops the cached collection before fetching.
	ForceRefresh bool
	// OnProgress, when set, is invoked after every fetched page.
	OnProgress func(p Progress)
}

// Progress is a per-page snapshot handed to the progress callback.
type Progress struct {
	Page     int
	MaxPages int
	Total    int
	New      int
	Mode     string
	// Records is a view of the live collection, not a copy. Callers must
	// treat it as read-only; it keeps growing as the fetch continues.
	Records socialdata.Collection
}

// Result is the outcome of a history fetch. Records may be partial when the
// accompanying error is non-nil; quota exhaustion in particular returns
// everything collected so far.
type Result struct {
	Handle    string
	Profile   *socialdata.Profile
	Records   socialdata.Collection
	Pages     int
	New       int
	FromCache bool
	Truncated bool
}

// Coverage returns the fraction of the account's posts present in the
// collection, in percent, clamped to 100.
func (r *Result) Coverage() float64 {
	if r.Profile == nil || r.Profile.StatusesCount <= 0 {
		return 0
	}
	pct := float64(r.Records.Len()) / float64(r.Profile.StatusesCount) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Fetcher walks an account's full posting history page by page, resuming
// from cache and persisting checkpoints along the way.
type Fetcher struct {
	client Client
	cache  *cache.Cache
	cfg    config.FetchConfig
	logger logger.Logger

	// Injectable for tests.
	sleep func(time.Duration)
}

// New creates a Fetcher. The cache may be nil; every fetch then starts cold.
func New(client Client, c *cache.Cache, cfg config.FetchConfig, log logger.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		cache:  c,
		cfg:    cfg,
		logger: log,
		sleep:  time.Sleep,
	}
}

// WithClient returns a shallow copy using a different API client. Used to
// serve per-request API keys over one fetcher.
func (f *Fetcher) WithClient(client Client) *Fetcher {
	clone := *f
	clone.client = client
	return &clone
}

// maxPagesFor computes the page ceiling for an account: a floor for small
// accounts, the post count divided by the minimum page size plus slack for
// big ones, hard-capped so a lying statuses_count cannot run away.
func (f *Fetcher) maxPagesFor(profile *socialdata.Profile) int {
	pages := f.cfg.PageFloor
	if profile != nil && profile.StatusesCount > 0 {
		needed := (profile.StatusesCount+f.cfg.PageDivisor-1)/f.cfg.PageDivisor + f.cfg.PageSlack
		if needed > pages {
			pages = needed
		}
	}
	if pages > f.cfg.MaxPagesCap {
		pages = f.cfg.MaxPagesCap
	}
	return pages
}

// FetchHistory retrieves the complete posting history for a handle. On a
// terminal upstream error the collection gathered so far is persisted and
// returned alongside the error.
func (f *Fetcher) FetchHistory(ctx context.Context, handle string, opts Options) (*Result, error) {
	handle = socialdata.SanitizeHandle(handle)
	log := f.log(handle)

	if opts.ForceRefresh {
		f.cache.DeleteRecords(ctx, handle)
	}

	records := f.cache.GetRecords(ctx, handle)
	if records == nil {
		records = socialdata.NewCollection()
	}
	cached := records.Len()

	profile, err := f.profile(ctx, handle)
	if err != nil {
		return nil, err
	}

	result := &Result{Handle: handle, Profile: profile, Records: records}

	// Everything the account ever posted is already cached; no paging needed.
	if !opts.ForceRefresh && profile.StatusesCount > 0 && cached >= profile.StatusesCount {
		log.InfoWithFields("collection already complete", map[string]interface{}{
			"cached":   cached,
			"statuses": profile.StatusesCount,
		})
		result.FromCache = true
		return result, nil
	}

	maxPages := f.maxPagesFor(profile)
	if opts.MaxPages > 0 && opts.MaxPages < maxPages {
		maxPages = opts.MaxPages
	}

	mode := startMode()
	if oldest := records.OldestID(); oldest != "" {
		// Resume below what we already have instead of re-walking the top.
		mode = boundaryMode(socialdata.DecrementID(oldest))
	}

	log.InfoWithFields("starting history fetch", map[string]interface{}{
		"cached":    cached,
		"statuses":  profile.StatusesCount,
		"max_pages": maxPages,
		"mode":      mode.kind.String(),
	})

	seen := make(map[string]bool)
	lastBatch := ""
	emptyBatches := 0
	boundaryPages := 0
	pagesSinceSave := 0
	newSinceSave := 0

	persist := func() {
		f.cache.SetRecords(ctx, handle, records)
		pagesSinceSave = 0
		newSinceSave = 0
	}

	for result.Pages < maxPages {
		if err := ctx.Err(); err != nil {
			persist()
			return result, err
		}

		query, cursor := mode.request(handle)
		sig := requestSignature(query, cursor)
		if seen[sig] {
			if mode.kind == modeBoundary {
				// The boundary is not moving; nothing more to gain.
				log.Debug("boundary request repeated, stopping")
				break
			}
			// Cursor loop detected; reroute below the oldest known post.
			oldest := records.OldestID()
			if oldest == "" {
				break
			}
			log.DebugWithFields("cursor loop detected, switching to boundary paging", map[string]interface{}{
				"oldest": oldest,
			})
			mode = boundaryMode(socialdata.DecrementID(oldest))
			boundaryPages = 0
			continue
		}
		seen[sig] = true

		page, err := f.client.Search(ctx, query, cursor)
		if err != nil {
			if errs.IsRateLimited(err) {
				// Pause and replay the same request. The signature is
				// forgotten so the retry is not mistaken for a loop.
				delete(seen, sig)
				log.WarnWithFields("page rate limited, pausing", map[string]interface{}{
					"pause": f.cfg.RateLimitPause.String(),
				})
				f.sleep(f.cfg.RateLimitPause)
				continue
			}
			persist()
			if errs.IsQuotaExhausted(err) {
				log.WarnWithFields("quota exhausted, returning partial history", map[string]interface{}{
					"collected": records.Len(),
					"pages":     result.Pages,
				})
			}
			return result, err
		}

		result.Pages++
		pagesSinceSave++

		if len(page.Tweets) == 0 {
			emptyBatches++
			if opts.OnProgress != nil {
				opts.OnProgress(Progress{
					Page:     result.Pages,
					MaxPages: maxPages,
					Total:    records.Len(),
					Mode:     mode.kind.String(),
					Records:  records,
				})
			}
			if pagesSinceSave >= f.cfg.CheckpointInterval {
				persist()
			}
			if emptyBatches >= f.cfg.EmptyBatchLimit {
				log.DebugWithFields("consecutive empty batches, stopping", map[string]interface{}{
					"batches": emptyBatches,
				})
				break
			}
			if mode.kind != modeBoundary && page.NextCursor != "" {
				mode = cursorMode(page.NextCursor)
			} else if oldest := records.OldestID(); oldest != "" {
				// Probe below everything collected so far. A repeated
				// boundary signature ends the loop at the top.
				mode = boundaryMode(socialdata.DecrementID(oldest))
			} else {
				break
			}
			f.sleep(f.cfg.PageDelay)
			continue
		}
		emptyBatches = 0

		batch := batchSignature(page.Tweets)
		if batch == lastBatch {
			// Same page served twice in a row; force the boundary below it.
			mode = boundaryMode(socialdata.DecrementID(oldestIDOf(page.Tweets)))
			boundaryPages = 0
			continue
		}
		lastBatch = batch

		added, allBeforeStop := f.absorb(records, page.Tweets, opts.StopDate)
		result.New += added
		newSinceSave += added

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Page:     result.Pages,
				MaxPages: maxPages,
				Total:    records.Len(),
				New:      added,
				Mode:     mode.kind.String(),
				Records:  records,
			})
		}

		if pagesSinceSave >= f.cfg.CheckpointInterval || newSinceSave > f.cfg.CheckpointBurst {
			persist()
		}

		if allBeforeStop {
			log.Debug("entire page precedes the stop date, fetch complete")
			break
		}

		mode, boundaryPages = f.nextMode(mode, boundaryPages, page, records, added)
		f.sleep(f.cfg.PageDelay)
	}

	if result.Pages >= maxPages {
		result.Truncated = true
		log.WarnWithFields("page ceiling reached", map[string]interface{}{
			"pages":     result.Pages,
			"collected": records.Len(),
		})
	}

	persist()

	log.InfoWithFields("history fetch finished", map[string]interface{}{
		"pages": result.Pages,
		"new":   result.New,
		"total": records.Len(),
	})
	return result, nil
}

// absorb adds a batch to the collection, skipping posts before stopDate.
// The second return reports whether every post in a non-empty batch preceded
// stopDate, which ends the fetch.
func (f *Fetcher) absorb(records socialdata.Collection, tweets []socialdata.Tweet, stopDate time.Time) (int, bool) {
	if len(tweets) == 0 {
		return 0, false
	}

	added := 0
	before := 0
	for _, t := range tweets {
		if !stopDate.IsZero() {
			if ts := t.CreatedTime(); !ts.IsZero() && ts.Before(stopDate) {
				before++
				continue
			}
		}
		added += records.Add(t)
	}
	return added, before == len(tweets)
}

// nextMode picks the strategy for the following non-empty page. A page that
// added nothing forces boundary paging below the batch; cursor paging is kept
// while it advances; boundary paging periodically re-probes the cursor in
// case the API has recovered.
func (f *Fetcher) nextMode(mode pageMode, boundaryPages int, page *socialdata.SearchResponse, records socialdata.Collection, added int) (pageMode, int) {
	if mode.kind == modeBoundary {
		boundaryPages++
		if added > 0 && boundaryPages%f.cfg.CursorProbeInterval == 0 && page.NextCursor != "" {
			return cursorMode(page.NextCursor), 0
		}
		if oldest := oldestIDOf(page.Tweets); oldest != "" {
			return boundaryMode(socialdata.DecrementID(oldest)), boundaryPages
		}
		if oldest := records.OldestID(); oldest != "" {
			return boundaryMode(socialdata.DecrementID(oldest)), boundaryPages
		}
		return mode, boundaryPages
	}

	// The cursor is re-serving records already in the collection; drop
	// below the oldest id in the batch. When the resulting boundary stops
	// moving, its repeated signature ends the loop.
	if added == 0 {
		if oldest := oldestIDOf(page.Tweets); oldest != "" {
			return boundaryMode(socialdata.DecrementID(oldest)), 0
		}
	}
	if page.NextCursor != "" {
		return cursorMode(page.NextCursor), 0
	}
	if oldest := records.OldestID(); oldest != "" {
		return boundaryMode(socialdata.DecrementID(oldest)), 0
	}
	return startMode(), 0
}

// profile returns the cached profile or fetches and caches it.
func (f *Fetcher) profile(ctx context.Context, handle string) (*socialdata.Profile, error) {
	if p := f.cache.GetProfile(ctx, handle); p != nil {
		return p, nil
	}
	p, err := f.client.FetchProfile(ctx, handle)
	if err != nil {
		return nil, err
	}
	f.cache.SetProfile(ctx, handle, p)
	return p, nil
}

func (f *Fetcher) log(handle string) logger.Logger {
	if f.logger == nil {
		return logger.GetLogger()
	}
	return f.logger.WithField("handle", handle)
}
