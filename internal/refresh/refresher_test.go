package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamtur01/remeta/internal/api"
)

// fakeServer imitates the two Jellyfin endpoints the refresher touches. Each
// item can be given a sequence of refresh status codes; once the sequence is
// exhausted the last code repeats, and items without one always answer 204.
type fakeServer struct {
	mu       sync.Mutex
	items    []api.Item
	statuses map[string][]int
	attempts map[string]int

	srv *httptest.Server
}

func newFakeServer(t *testing.T, items []api.Item) *fakeServer {
	t.Helper()
	f := &fakeServer{
		items:    items,
		statuses: map[string][]int{},
		attempts: map[string]int{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/Refresh") {
		parts := strings.Split(r.URL.Path, "/")
		id := parts[len(parts)-2]

		f.mu.Lock()
		n := f.attempts[id]
		f.attempts[id]++
		seq := f.statuses[id]
		f.mu.Unlock()

		status := http.StatusNoContent
		if len(seq) > 0 {
			if n >= len(seq) {
				n = len(seq) - 1
			}
			status = seq[n]
		}
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(api.ItemsResponse{Items: f.items, TotalRecordCount: len(f.items)})
}

func (f *fakeServer) attemptCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id]
}

func (f *fakeServer) refresher(opts Options) *Refresher {
	client := api.NewClient(f.srv.URL, "tok", "dev-1", "", 5*time.Second, zerolog.Nop(), false)
	return New(client, zerolog.Nop(), opts)
}

func season(id, name string) api.Item {
	return api.Item{Id: id, Name: name, Type: "Season", SeriesName: "Show"}
}

func TestSeasonPreFilter(t *testing.T) {
	f := newFakeServer(t, []api.Item{
		season("1", "Season 1"),
		{Id: "2", Name: "Pilot", Type: "Episode"},
	})
	r := f.refresher(Options{ItemTypes: []string{"Season"}})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != (Result{Success: 1, Failed: 0, Skipped: 0}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	// The Episode is dropped before the skip check, not refreshed or skipped.
	if got := f.attemptCount("2"); got != 0 {
		t.Fatalf("non-Season item refreshed %d times", got)
	}
	if got := f.attemptCount("1"); got != 1 {
		t.Fatalf("first-attempt success tried %d times, want 1", got)
	}
}

func TestSeasonsOutsideConfiguredTypesSkipped(t *testing.T) {
	f := newFakeServer(t, []api.Item{
		season("1", "Season 1"),
		season("2", "Season 2"),
	})
	r := f.refresher(Options{ItemTypes: []string{"Movie"}})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != (Result{Success: 0, Failed: 0, Skipped: 2}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.attemptCount("1") != 0 || f.attemptCount("2") != 0 {
		t.Fatal("skipped items must not be refreshed")
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	f := newFakeServer(t, []api.Item{season("x", "Season 1")})
	f.statuses["x"] = []int{
		http.StatusInternalServerError,
		http.StatusInternalServerError,
		http.StatusNoContent,
	}
	r := f.refresher(Options{ItemTypes: []string{"Season"}, MaxRetries: 3})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != (Result{Success: 1, Failed: 0, Skipped: 0}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := f.attemptCount("x"); got != 3 {
		t.Fatalf("attempted %d times, want 3", got)
	}
}

func TestRetryAfterTimeouts(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/Refresh") {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n <= 2 {
				time.Sleep(300 * time.Millisecond)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ItemsResponse{Items: []api.Item{season("x", "Season 1")}})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "tok", "dev-1", "", 50*time.Millisecond, zerolog.Nop(), false)
	r := New(client, zerolog.Nop(), Options{ItemTypes: []string{"Season"}, MaxRetries: 3})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != (Result{Success: 1, Failed: 0, Skipped: 0}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("attempted %d times, want 3", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	f := newFakeServer(t, []api.Item{season("x", "Season 1")})
	f.statuses["x"] = []int{http.StatusInternalServerError}
	r := f.refresher(Options{ItemTypes: []string{"Season"}, MaxRetries: 3})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Exactly one failed entry despite four attempts.
	if res != (Result{Success: 0, Failed: 1, Skipped: 0}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := f.attemptCount("x"); got != 4 {
		t.Fatalf("attempted %d times, want initial + 3 retries", got)
	}
}

func TestCountsSumToListed(t *testing.T) {
	f := newFakeServer(t, []api.Item{
		season("a", "Season 1"),
		season("b", "Season 2"),
		season("c", "Season 3"),
		{Id: "m", Name: "A Movie", Type: "Movie"},
	})
	f.statuses["b"] = []int{http.StatusInternalServerError}
	r := f.refresher(Options{ItemTypes: []string{"Season"}, MaxRetries: 2})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != (Result{Success: 2, Failed: 1, Skipped: 0}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	// Sum covers exactly the listing after the Season pre-filter.
	if got := res.Success + res.Failed + res.Skipped; got != 3 {
		t.Fatalf("success+failed+skipped = %d, want 3", got)
	}
}

func TestHTMLListingYieldsNoWork(t *testing.T) {
	refreshed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/Refresh") {
			refreshed = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><head><base href="https://sso.example.com/"></head></html>`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "tok", "dev-1", "", 5*time.Second, zerolog.Nop(), false)
	r := New(client, zerolog.Nop(), Options{ItemTypes: []string{"Season"}})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != (Result{}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if refreshed {
		t.Fatal("no refresh must be attempted when listing fails")
	}
}

func TestBackToBackPassesIdempotent(t *testing.T) {
	f := newFakeServer(t, []api.Item{
		season("a", "Season 1"),
		season("b", "Season 2"),
	})
	r := f.refresher(Options{ItemTypes: []string{"Season"}})

	first, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first != second {
		t.Fatalf("passes differ: %+v vs %+v", first, second)
	}
	if first != (Result{Success: 2}) {
		t.Fatalf("unexpected result: %+v", first)
	}
}

func TestBoundedPool(t *testing.T) {
	items := []api.Item{
		season("a", "Season 1"),
		season("b", "Season 2"),
		season("c", "Season 3"),
		season("d", "Season 4"),
		season("e", "Season 5"),
		season("f", "Season 6"),
	}
	f := newFakeServer(t, items)
	f.statuses["d"] = []int{http.StatusInternalServerError, http.StatusNoContent}
	r := f.refresher(Options{ItemTypes: []string{"Season"}, BatchSize: 3, MaxRetries: 3})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != (Result{Success: 6, Failed: 0, Skipped: 0}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, item := range items {
		want := 1
		if item.Id == "d" {
			want = 2
		}
		if got := f.attemptCount(item.Id); got != want {
			t.Fatalf("item %s attempted %d times, want %d", item.Id, got, want)
		}
	}
}

func TestVerifyConnectionUnreachable(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1", "tok", "dev-1", "", time.Second, zerolog.Nop(), false)
	r := New(client, zerolog.Nop(), Options{ItemTypes: []string{"Season"}})

	// Must warn and return, never fail.
	r.VerifyConnection(context.Background())
}

func TestCancelledContextStopsBetweenItems(t *testing.T) {
	f := newFakeServer(t, []api.Item{season("a", "Season 1")})
	r := f.refresher(Options{ItemTypes: []string{"Season"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
