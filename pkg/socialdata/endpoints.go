package socialdata

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the upstream API root.
	DefaultBaseURL = "https://api.socialdata.tools"

	searchPath  = "/twitter/search"
	profilePath = "/twitter/user/"
)

// SanitizeHandle normalizes a user-supplied handle: strips a leading @,
// surrounding whitespace and lowercases it.
func SanitizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.ToLower(handle)
}

// BuildQuery assembles the search query for a handle's own posts. A non-empty
// maxID adds a boundary so only posts at or below that ID are returned.
func BuildQuery(handle, maxID string) string {
	q := "from:" + SanitizeHandle(handle)
	if maxID != "" {
		q += " max_id:" + maxID
	}
	return q
}

// SearchURL builds the full search endpoint URL for a query, optionally
// resuming from an opaque pagination cursor.
func SearchURL(baseURL, query, cursor string) string {
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "Latest")
	if cursor != "" {
		params.Set("next_cursor", cursor)
	}
	return fmt.Sprintf("%s%s?%s", strings.TrimSuffix(baseURL, "/"), searchPath, params.Encode())
}

// ProfileURL builds the profile lookup URL for a handle.
func ProfileURL(baseURL, handle string) string {
	return fmt.Sprintf("%s%s%s", strings.TrimSuffix(baseURL, "/"), profilePath, url.PathEscape(SanitizeHandle(handle)))
}
