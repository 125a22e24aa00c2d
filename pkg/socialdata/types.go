package socialdata

import (
	"strings"
	"time"
)

// Profile represents an account profile returned by the upstream API.
type Profile struct {
	IDStr                string `json:"id_str"`
	Name                 string `json:"name"`
	ScreenName           string `json:"screen_name"`
	Description          string `json:"description"`
	Location             string `json:"location"`
	ProfileImageURLHTTPS string `json:"profile_image_url_https"`
	FollowersCount       int    `json:"followers_count"`
	FriendsCount         int    `json:"friends_count"`
	StatusesCount        int    `json:"statuses_count"`
	FavouritesCount      int    `json:"favourites_count"`
	CreatedAt            string `json:"created_at"`
	Verified             bool   `json:"verified"`
}

// Hashtag is a single hashtag entity inside a post.
type Hashtag struct {
	Text string `json:"text"`
}

// UserMention is a single mention entity inside a post.
type UserMention struct {
	ScreenName string `json:"screen_name"`
	IDStr      string `json:"id_str"`
}

// URLEntity is a single link entity inside a post.
type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

// Entities groups the structured entities of a post.
type Entities struct {
	Hashtags     []Hashtag     `json:"hashtags"`
	UserMentions []UserMention `json:"user_mentions"`
	URLs         []URLEntity   `json:"urls"`
}

// Tweet represents a single post. The upstream API is inconsistent about
// field names across endpoints, so several fields come in pairs with one of
// the two populated.
type Tweet struct {
	IDStr          string `json:"id_str"`
	FullText       string `json:"full_text,omitempty"`
	Text           string `json:"text,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	TweetCreatedAt string `json:"tweet_created_at,omitempty"`

	RetweetCount  int `json:"retweet_count"`
	FavoriteCount int `json:"favorite_count"`
	BookmarkCount int `json:"bookmark_count"`
	ReplyCount    int `json:"reply_count"`
	ViewCount     int `json:"view_count,omitempty"`
	ViewsCount    int `json:"views_count,omitempty"`

	Source   string   `json:"source,omitempty"`
	Entities Entities `json:"entities"`

	InReplyToStatusIDStr string `json:"in_reply_to_status_id_str,omitempty"`
	InReplyToScreenName  string `json:"in_reply_to_screen_name,omitempty"`
	InReplyToUserIDStr   string `json:"in_reply_to_user_id_str,omitempty"`
}

// rubyTimeLayout is the legacy timestamp format some endpoints still emit.
const rubyTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

// CreatedTime parses the post timestamp, preferring tweet_created_at and
// accepting both RFC 3339 and the legacy format. The zero time is returned
// when neither field parses.
func (t *Tweet) CreatedTime() time.Time {
	for _, raw := range []string{t.TweetCreatedAt, t.CreatedAt} {
		if raw == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
		if ts, err := time.Parse(rubyTimeLayout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Body returns the post text, preferring the untruncated full_text field.
func (t *Tweet) Body() string {
	if t.FullText != "" {
		return t.FullText
	}
	return t.Text
}

// Engagement returns the combined like and repost count.
func (t *Tweet) Engagement() int {
	return t.FavoriteCount + t.RetweetCount
}

// Views returns the view count regardless of which field name the API used.
func (t *Tweet) Views() int {
	if t.ViewsCount > 0 {
		return t.ViewsCount
	}
	return t.ViewCount
}

// IsReply reports whether the post is a reply to another post or user.
func (t *Tweet) IsReply() bool {
	return t.InReplyToStatusIDStr != "" || t.InReplyToUserIDStr != "" ||
		strings.HasPrefix(t.Body(), "@")
}

// SearchResponse is a single page of search results.
type SearchResponse struct {
	Tweets     []Tweet `json:"tweets"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// APIError is the error payload the upstream API returns on failures.
type APIError struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}
