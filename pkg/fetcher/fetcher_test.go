package fetcher

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrecap/pkg/cache"
	"xrecap/pkg/config"
	errs "xrecap/pkg/errors"
	"xrecap/pkg/socialdata"
)

type searchCall struct {
	query  string
	cursor string
}

// fakeClient scripts upstream responses per request. The handler receives
// the query and cursor and decides what page to serve.
type fakeClient struct {
	profile    *socialdata.Profile
	profileErr error
	handler    func(query, cursor string) (*socialdata.SearchResponse, error)

	profileCalls int
	searches     []searchCall
}

func (f *fakeClient) FetchProfile(_ context.Context, _ string) (*socialdata.Profile, error) {
	f.profileCalls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeClient) Search(_ context.Context, query, cursor string) (*socialdata.SearchResponse, error) {
	f.searches = append(f.searches, searchCall{query: query, cursor: cursor})
	return f.handler(query, cursor)
}

func tw(id string, created time.Time) socialdata.Tweet {
	return socialdata.Tweet{IDStr: id, TweetCreatedAt: created.Format(time.RFC3339)}
}

// batch builds a page of posts with descending IDs starting at first.
func batch(first, count int, created time.Time) []socialdata.Tweet {
	out := make([]socialdata.Tweet, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, tw(fmt.Sprintf("%d", first-i), created))
	}
	return out
}

func newTestFetcher(client *fakeClient) (*Fetcher, *cache.Cache) {
	cfg := config.DefaultConfig()
	c := cache.New(cache.NewMemoryStore(), &cfg.Cache, nil)
	f := New(client, c, cfg.Fetch, nil)
	f.sleep = func(time.Duration) {}
	return f, c
}

func TestFetchHistoryCursorPagination(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pages := map[string]*socialdata.SearchResponse{
		"":   {Tweets: batch(100, 15, created), NextCursor: "c1"},
		"c1": {Tweets: batch(85, 15, created), NextCursor: "c2"},
		"c2": {Tweets: batch(70, 15, created)},
	}
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 45},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			if page, ok := pages[cursor]; ok && cursor != "" {
				return page, nil
			}
			if cursor == "" && query == "from:jack" {
				return pages[""], nil
			}
			return &socialdata.SearchResponse{}, nil
		},
	}

	f, c := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "@Jack", Options{})
	require.NoError(t, err)

	assert.Equal(t, 45, result.Records.Len())
	assert.Equal(t, 45, result.New)
	assert.False(t, result.FromCache)
	assert.False(t, result.Truncated)
	assert.InDelta(t, 100.0, result.Coverage(), 0.01)

	// The final collection was persisted under the records key.
	cached := c.GetRecords(context.Background(), "jack")
	require.NotNil(t, cached)
	assert.Equal(t, 45, cached.Len())
}

func TestFetchHistoryDeduplicatesOverlappingPages(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 20},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			switch cursor {
			case "":
				if query == "from:jack" {
					return &socialdata.SearchResponse{Tweets: batch(100, 15, created), NextCursor: "c1"}, nil
				}
				return &socialdata.SearchResponse{}, nil
			case "c1":
				// Overlaps the previous page by 10 posts.
				return &socialdata.SearchResponse{Tweets: batch(95, 15, created)}, nil
			default:
				return &socialdata.SearchResponse{}, nil
			}
		},
	}

	f, _ := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "jack", Options{})
	require.NoError(t, err)
	assert.Equal(t, 20, result.Records.Len())
	assert.Equal(t, 20, result.New)
}

func TestFetchHistoryQuotaExhaustedReturnsPartial(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 5000},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			calls++
			if calls <= 3 {
				return &socialdata.SearchResponse{
					Tweets:     batch(1000-(calls-1)*15, 15, created),
					NextCursor: fmt.Sprintf("c%d", calls),
				}, nil
			}
			return nil, errs.New(errs.TypeQuotaExhausted, 402, "subscription limit reached")
		},
	}

	f, c := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "jack", Options{})
	require.Error(t, err)
	assert.True(t, errs.IsQuotaExhausted(err))

	require.NotNil(t, result)
	assert.Equal(t, 45, result.Records.Len())
	assert.Equal(t, 3, result.Pages)

	// The partial collection is persisted so the next call resumes.
	cached := c.GetRecords(context.Background(), "jack")
	require.NotNil(t, cached)
	assert.Equal(t, 45, cached.Len())
}

func TestFetchHistoryRateLimitedPageIsRetried(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 15},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			calls++
			if calls == 1 {
				return nil, errs.New(errs.TypeRateLimit, 429, "slow down")
			}
			return &socialdata.SearchResponse{Tweets: batch(100, 15, created)}, nil
		},
	}

	f, _ := newTestFetcher(client)
	var pauses []time.Duration
	f.sleep = func(d time.Duration) { pauses = append(pauses, d) }

	result, err := f.FetchHistory(context.Background(), "jack", Options{})
	require.NoError(t, err)
	assert.Equal(t, 15, result.Records.Len())
	assert.Contains(t, pauses, 15*time.Second)

	// Both attempts hit the same request.
	require.GreaterOrEqual(t, len(client.searches), 2)
	assert.Equal(t, client.searches[0], client.searches[1])
}

func TestFetchHistoryStalledCursorSwitchesToBoundary(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	top := batch(100, 5, created)
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 10},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			if query == "from:jack max_id:95" {
				return &socialdata.SearchResponse{Tweets: batch(95, 5, created)}, nil
			}
			if query == "from:jack" {
				// The cursor advances but the page content never changes.
				next := "c1"
				if cursor == "c1" {
					next = "c2"
				}
				return &socialdata.SearchResponse{Tweets: top, NextCursor: next}, nil
			}
			return &socialdata.SearchResponse{}, nil
		},
	}

	f, _ := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "jack", Options{})
	require.NoError(t, err)
	assert.Equal(t, 10, result.Records.Len())

	var sawBoundary bool
	for _, call := range client.searches {
		if call.query == "from:jack max_id:95" {
			sawBoundary = true
		}
	}
	assert.True(t, sawBoundary, "a repeated batch must reroute to boundary paging")
}

func TestFetchHistoryZeroNewCursorPageDropsBelowBatch(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 30},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			switch {
			case query == "from:jack" && cursor == "":
				return &socialdata.SearchResponse{Tweets: batch(100, 15, created), NextCursor: "c1"}, nil
			case cursor == "c1":
				// A fresh cursor that re-serves a subset of known posts. The
				// older half of the account is reachable only by max_id.
				return &socialdata.SearchResponse{Tweets: batch(99, 14, created), NextCursor: "c2"}, nil
			case query == "from:jack max_id:85":
				return &socialdata.SearchResponse{Tweets: batch(85, 15, created)}, nil
			default:
				return &socialdata.SearchResponse{}, nil
			}
		},
	}

	f, _ := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "jack", Options{})
	require.NoError(t, err)

	assert.Equal(t, 30, result.Records.Len())
	assert.InDelta(t, 100.0, result.Coverage(), 0.01)

	var boundaries []string
	for _, call := range client.searches {
		if strings.Contains(call.query, "max_id:") {
			boundaries = append(boundaries, call.query)
		}
	}
	require.NotEmpty(t, boundaries, "a non-empty page adding nothing must reroute to boundary paging")
	assert.Equal(t, "from:jack max_id:85", boundaries[0], "the boundary drops below the stale batch")
}

func TestFetchHistoryStopsAfterConsecutiveStaleBatches(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 5000},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			// Every page carries a fresh cursor but only already-known posts.
			return &socialdata.SearchResponse{
				Tweets:     batch(100, 5, created),
				NextCursor: fmt.Sprintf("c%d", len(query)+len(cursor)+time.Now().Nanosecond()),
			}, nil
		},
	}

	f, _ := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "jack", Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Records.Len())
	assert.Less(t, result.Pages, 10, "stale batches must terminate the fetch early")
}

func TestFetchHistoryPageCeiling(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	next := 100000
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 100000},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			page := batch(next, 15, created)
			next -= 15
			return &socialdata.SearchResponse{Tweets: page, NextCursor: fmt.Sprintf("c%d", next)}, nil
		},
	}

	f, _ := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "jack", Options{MaxPages: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Pages)
	assert.True(t, result.Truncated)
	assert.Equal(t, 60, result.Records.Len())
}

func TestFetchHistoryEmptyAccount(t *testing.T) {
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "quiet", StatusesCount: 0},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			return &socialdata.SearchResponse{}, nil
		},
	}

	f, _ := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "quiet", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Records.Len())
	assert.Equal(t, 0.0, result.Coverage())
}

func TestFetchHistoryStopDate(t *testing.T) {
	stop := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	old := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 5000},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			switch cursor {
			case "":
				if query == "from:jack" {
					return &socialdata.SearchResponse{Tweets: batch(100, 10, recent), NextCursor: "c1"}, nil
				}
				return &socialdata.SearchResponse{}, nil
			case "c1":
				return &socialdata.SearchResponse{Tweets: batch(50, 10, old), NextCursor: "c2"}, nil
			default:
				t.Error("fetch must stop once a whole page precedes the stop date")
				return &socialdata.SearchResponse{}, nil
			}
		},
	}

	f, _ := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "jack", Options{StopDate: stop})
	require.NoError(t, err)
	assert.Equal(t, 10, result.Records.Len(), "posts before the stop date are excluded")
	assert.Equal(t, 2, result.Pages)
}

func TestFetchHistoryShortCircuitsWhenCacheComplete(t *testing.T) {
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 3},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			t.Error("no search requests expected when the cache is complete")
			return nil, nil
		},
	}

	f, c := newTestFetcher(client)
	seeded := socialdata.NewCollection()
	seeded.Add(tw("1", time.Now()), tw("2", time.Now()), tw("3", time.Now()))
	c.SetRecords(context.Background(), "jack", seeded)

	result, err := f.FetchHistory(context.Background(), "jack", Options{})
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 3, result.Records.Len())
	assert.Equal(t, 0, result.Pages)
}

func TestFetchHistoryResumesBelowCachedOldest(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 50},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			if query == "from:jack max_id:499" {
				return &socialdata.SearchResponse{Tweets: batch(499, 10, created)}, nil
			}
			return &socialdata.SearchResponse{}, nil
		},
	}

	f, c := newTestFetcher(client)
	seeded := socialdata.NewCollection()
	seeded.Add(tw("500", created), tw("510", created))
	c.SetRecords(context.Background(), "jack", seeded)

	result, err := f.FetchHistory(context.Background(), "jack", Options{})
	require.NoError(t, err)

	require.NotEmpty(t, client.searches)
	assert.Equal(t, "from:jack max_id:499", client.searches[0].query)
	assert.Equal(t, 12, result.Records.Len())
}

func TestFetchHistoryForceRefreshDropsCache(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 15},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			if query == "from:jack" && cursor == "" {
				return &socialdata.SearchResponse{Tweets: batch(100, 15, created)}, nil
			}
			return &socialdata.SearchResponse{}, nil
		},
	}

	f, c := newTestFetcher(client)
	seeded := socialdata.NewCollection()
	seeded.Add(tw("999999", created))
	c.SetRecords(context.Background(), "jack", seeded)

	result, err := f.FetchHistory(context.Background(), "jack", Options{ForceRefresh: true})
	require.NoError(t, err)

	assert.False(t, result.FromCache)
	assert.False(t, result.Records.Has("999999"), "force refresh must discard stale cached posts")
	assert.Equal(t, 15, result.Records.Len())
	require.NotEmpty(t, client.searches)
	assert.Equal(t, "from:jack", client.searches[0].query, "force refresh starts from the top")
}

func TestFetchHistoryProfileNotFound(t *testing.T) {
	client := &fakeClient{
		profileErr: errs.New(errs.TypeNotFound, 404, "user ghost not found"),
	}

	f, _ := newTestFetcher(client)
	result, err := f.FetchHistory(context.Background(), "ghost", Options{})
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Nil(t, result)
}

func TestFetchHistoryReportsProgress(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		profile: &socialdata.Profile{IDStr: "1", ScreenName: "jack", StatusesCount: 30},
		handler: func(query, cursor string) (*socialdata.SearchResponse, error) {
			if cursor == "" && query == "from:jack" {
				return &socialdata.SearchResponse{Tweets: batch(100, 15, created), NextCursor: "c1"}, nil
			}
			if cursor == "c1" {
				return &socialdata.SearchResponse{Tweets: batch(85, 15, created)}, nil
			}
			return &socialdata.SearchResponse{}, nil
		},
	}

	f, _ := newTestFetcher(client)
	var snapshots []Progress
	_, err := f.FetchHistory(context.Background(), "jack", Options{
		OnProgress: func(p Progress) { snapshots = append(snapshots, p) },
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(snapshots), 2)
	assert.Equal(t, 1, snapshots[0].Page)
	assert.Equal(t, 15, snapshots[0].New)
	assert.Equal(t, 30, snapshots[1].Total)

	// Every snapshot exposes the collection itself.
	last := snapshots[len(snapshots)-1]
	require.NotNil(t, last.Records)
	assert.Equal(t, 30, last.Records.Len())
}

func TestMaxPagesFor(t *testing.T) {
	cfg := config.DefaultConfig()
	f := New(nil, nil, cfg.Fetch, nil)

	tests := []struct {
		statuses int
		expected int
	}{
		{0, 200},      // floor
		{100, 200},    // small account stays at the floor
		{6000, 450},   // 6000/15 + 50
		{29000, 1000}, // capped
	}

	for _, tt := range tests {
		profile := &socialdata.Profile{StatusesCount: tt.statuses}
		assert.Equal(t, tt.expected, f.maxPagesFor(profile), "statuses_count=%d", tt.statuses)
	}
}
