package pipeline

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// feedServer serves body as an RSS feed and returns its URL.
func feedServer(t *testing.T, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server.URL
}
