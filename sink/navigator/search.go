package navigator

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"metasync/internal/logging"
)

const defaultSearchLimit = 10

// Searcher runs one page of a catalog search.
type Searcher interface {
	Search(ctx context.Context, q Query) (json.RawMessage, error)
}

// SearchHandler serves POST /v1/search/{query}?limit=&cursorMark= by
// proxying to the catalog.
func SearchHandler(s Searcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := Query{
			Query:      r.PathValue("query"),
			Limit:      defaultSearchLimit,
			CursorMark: r.URL.Query().Get("cursorMark"),
		}
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			q.Limit = n
		}

		page, err := s.Search(r.Context(), q)
		if err != nil {
			logging.L().Warn("catalog search failed", "query", q.Query, "err", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(page)
	})
}
