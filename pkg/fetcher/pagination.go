package fetcher

import (
	"strings"

	"xrecap/pkg/socialdata"
)

type modeKind int

const (
	// modeStart is the first request: no cursor, no boundary.
	modeStart modeKind = iota
	// modeCursor follows the opaque pagination cursor the API returned.
	modeCursor
	// modeBoundary pages by max_id, anchored below the oldest known post.
	modeBoundary
)

func (k modeKind) String() string {
	switch k {
	case modeCursor:
		return "cursor"
	case modeBoundary:
		return "boundary"
	default:
		return "start"
	}
}

// pageMode is the pagination strategy for the next request. Cursor paging is
// preferred while the API cooperates; boundary paging is the fallback when
// cursors stall, repeat or disappear.
type pageMode struct {
	kind     modeKind
	cursor   string
	boundary string
}

func startMode() pageMode {
	return pageMode{kind: modeStart}
}

func cursorMode(token string) pageMode {
	return pageMode{kind: modeCursor, cursor: token}
}

func boundaryMode(maxID string) pageMode {
	return pageMode{kind: modeBoundary, boundary: maxID}
}

// request builds the search query and cursor for this mode.
func (m pageMode) request(handle string) (query, cursor string) {
	switch m.kind {
	case modeCursor:
		return socialdata.BuildQuery(handle, ""), m.cursor
	case modeBoundary:
		return socialdata.BuildQuery(handle, m.boundary), ""
	default:
		return socialdata.BuildQuery(handle, ""), ""
	}
}

// requestSignature identifies a request by its query and cursor. A repeated
// signature means the strategy is looping and must be rerouted.
func requestSignature(query, cursor string) string {
	return query + "|" + cursor
}

// batchSignature identifies a page of results by its ordered post IDs. Two
// consecutive identical batches mean the upstream is serving the same page
// regardless of the cursor.
func batchSignature(tweets []socialdata.Tweet) string {
	ids := make([]string, len(tweets))
	for i, t := range tweets {
		ids[i] = t.IDStr
	}
	return strings.Join(ids, ",")
}

// oldestIDOf returns the numerically smallest post ID in a batch.
func oldestIDOf(tweets []socialdata.Tweet) string {
	batch := socialdata.NewCollection()
	batch.Add(tweets...)
	return batch.OldestID()
}
