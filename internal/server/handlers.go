package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"xrecap/pkg/cache"
	errs "xrecap/pkg/errors"
	"xrecap/pkg/fetcher"
	"xrecap/pkg/socialdata"
	"xrecap/pkg/stats"
)

// historyResponse is the payload for /api/history.
type historyResponse struct {
	Handle   string              `json:"handle"`
	Profile  *socialdata.Profile `json:"profile"`
	Total    int                 `json:"total"`
	Coverage float64             `json:"coverage"`
	Pages    int                 `json:"pages"`
	Partial  bool                `json:"partial,omitempty"`
	Posts    []socialdata.Tweet  `json:"posts"`
}

// yearsResponse is the payload for /api/years.
type yearsResponse struct {
	Handle string `json:"handle"`
	Years  []int  `json:"years"`
	Total  int    `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	result, err := s.fetch(r, username, fetcher.Options{
		ForceRefresh: queryBool(r, "refresh"),
		MaxPages:     queryInt(r, "max_pages"),
	})
	if err != nil && !partialUsable(result, err) {
		s.writeFetchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Handle:   result.Handle,
		Profile:  result.Profile,
		Total:    result.Records.Len(),
		Coverage: result.Coverage(),
		Pages:    result.Pages,
		Partial:  err != nil,
		Posts:    result.Records.Values(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	year := queryInt(r, "year")
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	refresh := queryBool(r, "refresh")

	key := cache.StatsKey(socialdata.SanitizeHandle(username), year)
	if !refresh {
		var cached stats.Statistics
		if s.cache.GetJSON(r.Context(), key, &cached) {
			writeJSON(w, http.StatusOK, &cached)
			return
		}
	}

	// Posts before the target year do not affect its report; stop paging
	// once a whole page precedes it.
	stopDate := time.Date(year-1, time.December, 31, 0, 0, 0, 0, time.UTC)
	result, err := s.fetch(r, username, fetcher.Options{
		ForceRefresh: refresh,
		StopDate:     stopDate,
	})
	if err != nil && !partialUsable(result, err) {
		s.writeFetchError(w, err)
		return
	}

	report := stats.Compute(result.Handle, result.Records.Values(), year, stats.Options{})
	if err == nil {
		s.cache.SetJSON(r.Context(), key, report, s.cache.TTL())
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	result, err := s.fetch(r, username, fetcher.Options{})
	if err != nil && !partialUsable(result, err) {
		s.writeFetchError(w, err)
		return
	}

	years := result.Records.Years()
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, yearsResponse{
		Handle: result.Handle,
		Years:  years,
		Total:  result.Records.Len(),
	})
}

// fetch runs a history fetch, swapping in a per-request API key when the
// caller supplies one.
func (s *Server) fetch(r *http.Request, username string, opts fetcher.Options) (*fetcher.Result, error) {
	f := s.fetcher
	if apiKey := r.URL.Query().Get("api_key"); apiKey != "" {
		f = s.fetcher.WithClient(s.client.WithKey(apiKey))
	}
	return f.FetchHistory(r.Context(), username, opts)
}

// partialUsable reports whether a failed fetch still produced a collection
// worth serving. Quota exhaustion with cached or partial records degrades to
// a partial response instead of an error.
func partialUsable(result *fetcher.Result, err error) bool {
	return errs.IsQuotaExhausted(err) && result != nil && result.Records.Len() > 0
}

func (s *Server) writeFetchError(w http.ResponseWriter, err error) {
	switch errs.TypeOf(err) {
	case errs.TypeNotFound:
		writeError(w, http.StatusNotFound, "user not found")
	case errs.TypeQuotaExhausted:
		writeError(w, http.StatusPaymentRequired, "subscription limit reached")
	case errs.TypeRateLimit:
		writeError(w, http.StatusTooManyRequests, "rate limited by upstream, try again shortly")
	case errs.TypeTimeout:
		writeError(w, http.StatusGatewayTimeout, "upstream timeout")
	default:
		s.logger.WithError(err).Error("fetch failed")
		writeError(w, http.StatusBadGateway, "upstream request failed")
	}
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	if v < 0 {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
